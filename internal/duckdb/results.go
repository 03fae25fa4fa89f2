package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-phrp/internal/output"
	"github.com/inodb/vibe-phrp/internal/psm"
)

// StoredResult is one result row joined with its unique sequence.
type StoredResult struct {
	Dataset              string
	ResultID             int
	Protein              string
	Scan                 int
	Charge               int
	Peptide              string
	CleanSequence        string
	UniqueSeqID          int
	ModDescription       string
	MonoMass             float64
	DelMPPM              float64
	Rank                 int
	PrimaryScore         float64
	SecondaryScore       float64
	MultipleProteinCount int
}

// resultKey is the composite key for deduplicating results before writing.
type resultKey struct {
	resultID int
	protein  string
}

type seqProteinKey struct {
	seqID   int
	protein string
}

// Batch buffers the rows of one dataset and writes them with the DuckDB
// Appender on Flush. It implements output.Sink.
type Batch struct {
	store   *Store
	dataset string

	results     []StoredResult
	resultSeen  map[resultKey]bool
	sequences   []*output.UniqueSequence
	seqProteins []*output.SeqProtein
	protSeen    map[seqProteinKey]bool
}

var _ output.Sink = (*Batch)(nil)

// NewBatch starts a batch for dataset.
func (s *Store) NewBatch(dataset string) *Batch {
	return &Batch{
		store:      s,
		dataset:    dataset,
		resultSeen: make(map[resultKey]bool),
		protSeen:   make(map[seqProteinKey]bool),
	}
}

// Result buffers one canonical result. A result ID is stored once per
// protein.
func (b *Batch) Result(r *psm.Result, seqID int) error {
	k := resultKey{r.ResultID, r.Protein}
	if b.resultSeen[k] {
		return nil
	}
	b.resultSeen[k] = true
	b.results = append(b.results, StoredResult{
		Dataset:              b.dataset,
		ResultID:             r.ResultID,
		Protein:              r.Protein,
		Scan:                 r.Scan,
		Charge:               r.Charge,
		Peptide:              r.PeptideWithMods,
		CleanSequence:        r.CleanSequence,
		UniqueSeqID:          seqID,
		MonoMass:             r.MonoMass,
		DelMPPM:              r.DelMPPM,
		Rank:                 r.Rank,
		PrimaryScore:         r.PrimaryScore,
		SecondaryScore:       r.SecondaryScore,
		MultipleProteinCount: r.MultipleProteinCount,
	})
	return nil
}

// Sequence buffers one unique sequence.
func (b *Batch) Sequence(seq *output.UniqueSequence) error {
	b.sequences = append(b.sequences, seq)
	return nil
}

// SeqProtein buffers one sequence to protein row.
func (b *Batch) SeqProtein(p *output.SeqProtein) error {
	k := seqProteinKey{p.SeqID, p.Protein}
	if b.protSeen[k] {
		return nil
	}
	b.protSeen[k] = true
	b.seqProteins = append(b.seqProteins, p)
	return nil
}

// Len returns the number of buffered results.
func (b *Batch) Len() int {
	return len(b.results)
}

// Flush batch-inserts the buffered rows and empties the batch.
func (b *Batch) Flush(ctx context.Context) error {
	conn, err := b.store.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	if err := appendRows(conn, "results", len(b.results), func(i int) []driver.Value {
		r := b.results[i]
		return []driver.Value{
			r.Dataset, int64(r.ResultID), r.Protein, int64(r.Scan), int64(r.Charge),
			r.Peptide, r.CleanSequence, int64(r.UniqueSeqID), r.MonoMass, r.DelMPPM,
			int64(r.Rank), r.PrimaryScore, r.SecondaryScore, int64(r.MultipleProteinCount),
		}
	}); err != nil {
		return err
	}
	if err := appendRows(conn, "sequences", len(b.sequences), func(i int) []driver.Value {
		s := b.sequences[i]
		return []driver.Value{
			b.dataset, int64(s.ID), s.CleanSequence, int64(s.ModCount), s.ModDescription, s.MonoMass,
		}
	}); err != nil {
		return err
	}
	if err := appendRows(conn, "seq_proteins", len(b.seqProteins), func(i int) []driver.Value {
		p := b.seqProteins[i]
		return []driver.Value{
			b.dataset, int64(p.SeqID), p.Protein, int64(p.Cleavage), int64(p.Terminus),
		}
	}); err != nil {
		return err
	}

	b.results = b.results[:0]
	b.sequences = b.sequences[:0]
	b.seqProteins = b.seqProteins[:0]
	return nil
}

// appendRows writes n rows to table through one Appender.
func appendRows(conn *sql.Conn, table string, n int, row func(i int) []driver.Value) error {
	if n == 0 {
		return nil
	}

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", table)
		return err
	}); err != nil {
		return fmt.Errorf("create %s appender: %w", table, err)
	}
	defer appender.Close()

	for i := 0; i < n; i++ {
		if err := appender.AppendRow(row(i)...); err != nil {
			return fmt.Errorf("append %s row: %w", table, err)
		}
	}
	return appender.Flush()
}

const selectResults = `SELECT
	r.dataset, r.result_id, r.protein, r.scan, r.charge,
	r.peptide, r.clean_sequence, r.unique_seq_id, COALESCE(s.mod_description, ''),
	r.mono_mass, r.del_m_ppm, r.result_rank, r.primary_score, r.secondary_score,
	r.multiple_protein_count
	FROM results r
	LEFT JOIN sequences s ON s.dataset = r.dataset AND s.unique_seq_id = r.unique_seq_id`

// ResultsByScan returns the stored results of one scan in dataset, ordered
// by result ID.
func (s *Store) ResultsByScan(dataset string, scan int) ([]StoredResult, error) {
	rows, err := s.db.Query(selectResults+`
		WHERE r.dataset=? AND r.scan=?
		ORDER BY r.result_id, r.protein`, dataset, int64(scan))
	if err != nil {
		return nil, fmt.Errorf("query by scan: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

// ResultsByProtein returns every stored result matched to protein across
// all datasets.
func (s *Store) ResultsByProtein(protein string) ([]StoredResult, error) {
	rows, err := s.db.Query(selectResults+`
		WHERE r.protein=?
		ORDER BY r.dataset, r.result_id`, protein)
	if err != nil {
		return nil, fmt.Errorf("query by protein: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

// ProteinsForSequence returns the proteins mapped to a unique sequence.
func (s *Store) ProteinsForSequence(dataset string, seqID int) ([]string, error) {
	rows, err := s.db.Query(`SELECT protein FROM seq_proteins
		WHERE dataset=? AND unique_seq_id=?
		ORDER BY protein`, dataset, int64(seqID))
	if err != nil {
		return nil, fmt.Errorf("query sequence proteins: %w", err)
	}
	defer rows.Close()

	var proteins []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan sequence protein: %w", err)
		}
		proteins = append(proteins, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sequence proteins: %w", err)
	}
	return proteins, nil
}

// scanResults scans rows into StoredResult slices.
func scanResults(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]StoredResult, error) {
	var results []StoredResult
	for rows.Next() {
		var r StoredResult
		var resultID, scan, charge, seqID, rank, proteinCount int64
		if err := rows.Scan(
			&r.Dataset, &resultID, &r.Protein, &scan, &charge,
			&r.Peptide, &r.CleanSequence, &seqID, &r.ModDescription,
			&r.MonoMass, &r.DelMPPM, &rank, &r.PrimaryScore, &r.SecondaryScore,
			&proteinCount,
		); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.ResultID = int(resultID)
		r.Scan = int(scan)
		r.Charge = int(charge)
		r.UniqueSeqID = int(seqID)
		r.Rank = int(rank)
		r.MultipleProteinCount = int(proteinCount)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}
