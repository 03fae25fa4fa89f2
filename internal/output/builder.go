package output

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"go.uber.org/zap"

	"github.com/inodb/vibe-phrp/internal/mods"
	"github.com/inodb/vibe-phrp/internal/psm"
)

// ModDetail is one modification of a unique sequence.
type ModDetail struct {
	Tag      string
	Position int
}

// UniqueSequence is a distinct (clean sequence, modification description) pair.
type UniqueSequence struct {
	ID             int
	CleanSequence  string
	ModDescription string
	ModCount       int
	MonoMass       float64
	Mods           []ModDetail
}

// SeqProtein is one row of the sequence to protein map.
type SeqProtein struct {
	SeqID          int
	Cleavage       psm.CleavageState
	Terminus       psm.TerminusState
	Protein        string
	ExpectationLog float64
	IntensityLog   float64
}

// Sink receives every row the builder produces.
type Sink interface {
	Result(r *psm.Result, seqID int) error
	Sequence(seq *UniqueSequence) error
	SeqProtein(p *SeqProtein) error
}

type sequenceKey struct {
	clean string
	mods  string
}

type seqProteinKey struct {
	seqID   int
	protein string
}

// Builder writes the cross-reference tables for a stream of canonical
// results.
type Builder struct {
	resultToSeq *TabWriter
	seqInfo     *TabWriter
	modDetails  *TabWriter
	seqToProt   *TabWriter
	files       []*TabFile

	seen    map[psm.PeptideKey]struct{}
	tier    float64
	hasTier bool

	sequences   map[sequenceKey]*UniqueSequence
	seqProteins map[seqProteinKey]struct{}

	sinks  []Sink
	logger *zap.Logger
}

// Writers are the destinations of the cross-reference tables.
type Writers struct {
	ResultToSeqMap  io.Writer
	SeqInfo         io.Writer
	ModDetails      io.Writer
	SeqToProteinMap io.Writer
}

// NewBuilder creates a builder over w and writes the table headers.
func NewBuilder(w Writers) (*Builder, error) {
	b := newBuilder(
		NewTabWriter(w.ResultToSeqMap, ResultToSeqMapColumns),
		NewTabWriter(w.SeqInfo, SeqInfoColumns),
		NewTabWriter(w.ModDetails, ModDetailsColumns),
		NewTabWriter(w.SeqToProteinMap, SeqToProteinMapColumns),
	)
	for _, tw := range b.writers() {
		if err := tw.WriteHeader(); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	return b, nil
}

// CreateBuilder creates the cross-reference files named by p.
func CreateBuilder(p Paths) (*Builder, error) {
	var files []*TabFile
	create := func(path string, columns []string) (*TabFile, error) {
		tf, err := CreateTabFile(path, columns)
		if err != nil {
			return nil, err
		}
		files = append(files, tf)
		return tf, nil
	}
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	r2s, err := create(p.ResultToSeqMap, ResultToSeqMapColumns)
	if err != nil {
		return nil, err
	}
	info, err := create(p.SeqInfo, SeqInfoColumns)
	if err != nil {
		closeAll()
		return nil, err
	}
	details, err := create(p.ModDetails, ModDetailsColumns)
	if err != nil {
		closeAll()
		return nil, err
	}
	s2p, err := create(p.SeqToProteinMap, SeqToProteinMapColumns)
	if err != nil {
		closeAll()
		return nil, err
	}

	b := newBuilder(r2s.TabWriter, info.TabWriter, details.TabWriter, s2p.TabWriter)
	b.files = files
	return b, nil
}

func newBuilder(r2s, info, details, s2p *TabWriter) *Builder {
	return &Builder{
		resultToSeq: r2s,
		seqInfo:     info,
		modDetails:  details,
		seqToProt:   s2p,
		seen:        make(map[psm.PeptideKey]struct{}),
		sequences:   make(map[sequenceKey]*UniqueSequence),
		seqProteins: make(map[seqProteinKey]struct{}),
		logger:      zap.NewNop(),
	}
}

// SetLogger sets the logger for the builder.
func (b *Builder) SetLogger(l *zap.Logger) {
	b.logger = l
}

// AddSink registers a sink that receives every row.
func (b *Builder) AddSink(s Sink) {
	b.sinks = append(b.sinks, s)
}

// FirstOccurrence reports whether r is the first result with its peptide,
// scan and charge at the current score tier. The seen set is cleared
// whenever the primary score changes.
func (b *Builder) FirstOccurrence(r *psm.Result) bool {
	if !b.hasTier || r.PrimaryScore != b.tier {
		clear(b.seen)
		b.tier = r.PrimaryScore
		b.hasTier = true
	}
	key := r.Key()
	if _, ok := b.seen[key]; ok {
		return false
	}
	b.seen[key] = struct{}{}
	return true
}

// Add saves r, deciding first occurrence from the seen set.
func (b *Builder) Add(r *psm.Result) (bool, error) {
	first := b.FirstOccurrence(r)
	return first, b.SaveResult(r, first)
}

// SaveResult records r. The result-to-sequence row is only written for
// the first occurrence of its group. The sequence-to-protein row is written
// once per distinct (sequence, protein) pair.
func (b *Builder) SaveResult(r *psm.Result, first bool) error {
	seq, err := b.sequence(r)
	if err != nil {
		return err
	}

	for _, s := range b.sinks {
		if err := s.Result(r, seq.ID); err != nil {
			return fmt.Errorf("sink result %d: %w", r.ResultID, err)
		}
	}

	if first {
		if err := b.resultToSeq.Write(strconv.Itoa(r.ResultID), strconv.Itoa(seq.ID)); err != nil {
			return fmt.Errorf("write result to sequence map: %w", err)
		}
	}

	return b.saveProtein(seq.ID, r, r.Protein)
}

// AddProtein records an additional protein for the sequence of r, such as
// one found by peptide to protein mapping. Cleavage and terminus states are
// taken from r.
func (b *Builder) AddProtein(r *psm.Result, protein string) error {
	seq, err := b.sequence(r)
	if err != nil {
		return err
	}
	return b.saveProtein(seq.ID, r, protein)
}

// saveProtein writes a sequence to protein row once per distinct pair.
func (b *Builder) saveProtein(seqID int, r *psm.Result, protein string) error {
	key := seqProteinKey{seqID: seqID, protein: protein}
	if _, ok := b.seqProteins[key]; ok {
		return nil
	}
	b.seqProteins[key] = struct{}{}

	p := &SeqProtein{
		SeqID:    seqID,
		Cleavage: r.Cleavage(),
		Terminus: r.Terminus(),
		Protein:  protein,
	}
	if protein == r.Protein {
		p.ExpectationLog = r.ProteinExpectationLog
		p.IntensityLog = r.ProteinIntensityLog
	}
	if err := b.seqToProt.Write(
		strconv.Itoa(p.SeqID),
		strconv.Itoa(int(p.Cleavage)),
		strconv.Itoa(int(p.Terminus)),
		p.Protein,
		formatFloat(p.ExpectationLog),
		formatFloat(p.IntensityLog),
	); err != nil {
		return fmt.Errorf("write sequence to protein map: %w", err)
	}
	for _, s := range b.sinks {
		if err := s.SeqProtein(p); err != nil {
			return fmt.Errorf("sink sequence protein: %w", err)
		}
	}
	return nil
}

// sequence returns the unique sequence of r, registering and writing it
// on first sight.
func (b *Builder) sequence(r *psm.Result) (*UniqueSequence, error) {
	key := sequenceKey{clean: r.CleanSequence, mods: r.ModDescription()}
	if seq, ok := b.sequences[key]; ok {
		return seq, nil
	}

	seq := &UniqueSequence{
		ID:             len(b.sequences) + 1,
		CleanSequence:  r.CleanSequence,
		ModDescription: key.mods,
		ModCount:       len(r.Mods),
		MonoMass:       r.MonoMass,
	}
	for _, m := range r.SortedMods() {
		seq.Mods = append(seq.Mods, ModDetail{Tag: m.Def.Tag, Position: m.Position})
	}
	b.sequences[key] = seq

	id := strconv.Itoa(seq.ID)
	if err := b.seqInfo.Write(id, strconv.Itoa(seq.ModCount), seq.ModDescription,
		strconv.FormatFloat(seq.MonoMass, 'f', 7, 64)); err != nil {
		return nil, fmt.Errorf("write sequence info: %w", err)
	}
	for _, m := range seq.Mods {
		if err := b.modDetails.Write(id, m.Tag, strconv.Itoa(m.Position)); err != nil {
			return nil, fmt.Errorf("write mod details: %w", err)
		}
	}
	for _, s := range b.sinks {
		if err := s.Sequence(seq); err != nil {
			return nil, fmt.Errorf("sink sequence %d: %w", seq.ID, err)
		}
	}
	return seq, nil
}

// Sequences returns the number of unique sequences seen.
func (b *Builder) Sequences() int {
	return len(b.sequences)
}

func (b *Builder) writers() []*TabWriter {
	return []*TabWriter{b.resultToSeq, b.seqInfo, b.modDetails, b.seqToProt}
}

// Flush flushes all tables.
func (b *Builder) Flush() error {
	var errs []error
	for _, tw := range b.writers() {
		errs = append(errs, tw.Flush())
	}
	return errors.Join(errs...)
}

// Close flushes the tables and closes any files the builder created.
func (b *Builder) Close() error {
	b.logger.Debug("cross-reference tables complete",
		zap.Int("sequences", len(b.sequences)),
		zap.Int("result_rows", b.resultToSeq.Rows()),
		zap.Int("protein_rows", b.seqToProt.Rows()))

	if len(b.files) == 0 {
		return b.Flush()
	}
	var errs []error
	for _, f := range b.files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

// WriteModSummary writes one row per definition.
func WriteModSummary(w io.Writer, defs []*mods.Definition) error {
	tw := NewTabWriter(w, ModSummaryColumns)
	if err := tw.WriteHeader(); err != nil {
		return err
	}
	for _, d := range defs {
		if err := tw.Write(
			d.SymbolString(),
			strconv.FormatFloat(d.Mass, 'f', 6, 64),
			d.TargetResidues,
			d.Type.Code(),
			d.Tag,
			strconv.Itoa(d.Occurrences),
		); err != nil {
			return fmt.Errorf("write mod summary: %w", err)
		}
	}
	return tw.Flush()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
