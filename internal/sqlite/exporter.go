// Package sqlite exports the cross-reference tables of one dataset into a
// portable SQLite database.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/inodb/vibe-phrp/internal/mods"
	"github.com/inodb/vibe-phrp/internal/output"
	"github.com/inodb/vibe-phrp/internal/psm"
)

// Exporter writes rows inside one transaction that is committed by Close.
type Exporter struct {
	db   *sql.DB
	tx   *sql.Tx
	path string

	resultStmt     *sql.Stmt
	seqStmt        *sql.Stmt
	modDetailStmt  *sql.Stmt
	seqProteinStmt *sql.Stmt

	results int
}

var _ output.Sink = (*Exporter)(nil)

// NewExporter creates the database at path, or adds to an existing one.
func NewExporter(path string) (*Exporter, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	e := &Exporter{db: db, path: path}
	if err := e.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	e.tx, err = db.Begin()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	if err := e.prepareStatements(); err != nil {
		e.tx.Rollback()
		db.Close()
		return nil, err
	}
	return e, nil
}

func (e *Exporter) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ResultToSeqMap (
		Result_ID INTEGER PRIMARY KEY,
		Unique_Seq_ID INTEGER
	);

	CREATE TABLE IF NOT EXISTS SeqInfo (
		Unique_Seq_ID INTEGER PRIMARY KEY,
		Clean_Sequence TEXT,
		Mod_Count INTEGER,
		Mod_Description TEXT,
		Monoisotopic_Mass DOUBLE
	);

	CREATE TABLE IF NOT EXISTS ModDetails (
		Unique_Seq_ID INTEGER REFERENCES SeqInfo(Unique_Seq_ID),
		Mass_Correction_Tag TEXT,
		Position INTEGER
	);

	CREATE TABLE IF NOT EXISTS SeqToProteinMap (
		Unique_Seq_ID INTEGER REFERENCES SeqInfo(Unique_Seq_ID),
		Cleavage_State INTEGER,
		Terminus_State INTEGER,
		Protein_Name TEXT,
		Protein_Expectation_Value_Log DOUBLE,
		Protein_Intensity_Log DOUBLE,
		PRIMARY KEY (Unique_Seq_ID, Protein_Name)
	);

	CREATE TABLE IF NOT EXISTS ModSummary (
		Modification_Symbol TEXT,
		Modification_Mass DOUBLE,
		Target_Residues TEXT,
		Modification_Type TEXT,
		Mass_Correction_Tag TEXT,
		Occurrence_Count INTEGER
	);
	`
	if _, err := e.db.Exec(schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

func (e *Exporter) prepareStatements() error {
	var err error

	e.resultStmt, err = e.tx.Prepare(`INSERT OR IGNORE INTO ResultToSeqMap (Result_ID, Unique_Seq_ID) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare result statement: %w", err)
	}

	e.seqStmt, err = e.tx.Prepare(`
		INSERT OR REPLACE INTO SeqInfo (
			Unique_Seq_ID, Clean_Sequence, Mod_Count, Mod_Description, Monoisotopic_Mass
		) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare sequence statement: %w", err)
	}

	e.modDetailStmt, err = e.tx.Prepare(`INSERT INTO ModDetails (Unique_Seq_ID, Mass_Correction_Tag, Position) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare mod details statement: %w", err)
	}

	e.seqProteinStmt, err = e.tx.Prepare(`
		INSERT OR IGNORE INTO SeqToProteinMap (
			Unique_Seq_ID, Cleavage_State, Terminus_State, Protein_Name,
			Protein_Expectation_Value_Log, Protein_Intensity_Log
		) VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare sequence protein statement: %w", err)
	}
	return nil
}

// Result maps a result ID to its unique sequence. Repeated IDs are ignored.
func (e *Exporter) Result(r *psm.Result, seqID int) error {
	res, err := e.resultStmt.Exec(r.ResultID, seqID)
	if err != nil {
		return fmt.Errorf("insert result %d: %w", r.ResultID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		e.results++
	}
	return nil
}

// Sequence writes a unique sequence and its modification details.
func (e *Exporter) Sequence(seq *output.UniqueSequence) error {
	if _, err := e.seqStmt.Exec(seq.ID, seq.CleanSequence, seq.ModCount, seq.ModDescription, seq.MonoMass); err != nil {
		return fmt.Errorf("insert sequence %d: %w", seq.ID, err)
	}
	for _, m := range seq.Mods {
		if _, err := e.modDetailStmt.Exec(seq.ID, m.Tag, m.Position); err != nil {
			return fmt.Errorf("insert mod detail: %w", err)
		}
	}
	return nil
}

// SeqProtein writes one sequence to protein row.
func (e *Exporter) SeqProtein(p *output.SeqProtein) error {
	_, err := e.seqProteinStmt.Exec(
		p.SeqID,
		int(p.Cleavage),
		int(p.Terminus),
		p.Protein,
		p.ExpectationLog,
		p.IntensityLog,
	)
	if err != nil {
		return fmt.Errorf("insert sequence protein: %w", err)
	}
	return nil
}

// WriteModSummary replaces the modification summary with defs.
func (e *Exporter) WriteModSummary(defs []*mods.Definition) error {
	if _, err := e.tx.Exec(`DELETE FROM ModSummary`); err != nil {
		return fmt.Errorf("clear mod summary: %w", err)
	}
	for _, d := range defs {
		_, err := e.tx.Exec(`
			INSERT INTO ModSummary (
				Modification_Symbol, Modification_Mass, Target_Residues,
				Modification_Type, Mass_Correction_Tag, Occurrence_Count
			) VALUES (?, ?, ?, ?, ?, ?)
		`, d.SymbolString(), d.Mass, d.TargetResidues, d.Type.Code(), d.Tag, d.Occurrences)
		if err != nil {
			return fmt.Errorf("insert mod summary: %w", err)
		}
	}
	return nil
}

// Results returns the number of result IDs inserted.
func (e *Exporter) Results() int {
	return e.results
}

func (e *Exporter) closeStatements() {
	for _, stmt := range []*sql.Stmt{e.resultStmt, e.seqStmt, e.modDetailStmt, e.seqProteinStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
}

// Close commits the transaction and closes the database.
func (e *Exporter) Close() error {
	e.closeStatements()
	if err := e.tx.Commit(); err != nil {
		e.db.Close()
		return fmt.Errorf("commit: %w", err)
	}
	if err := e.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Abort rolls back everything written since NewExporter.
func (e *Exporter) Abort() error {
	e.closeStatements()
	err := e.tx.Rollback()
	if cerr := e.db.Close(); err == nil {
		err = cerr
	}
	return err
}
