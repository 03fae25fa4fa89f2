package moda

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/inodb/vibe-phrp/internal/lineio"
	"github.com/inodb/vibe-phrp/internal/mass"
	"github.com/inodb/vibe-phrp/internal/modseq"
	"github.com/inodb/vibe-phrp/internal/mods"
	"github.com/inodb/vibe-phrp/internal/output"
	"github.com/inodb/vibe-phrp/internal/psm"
	"github.com/inodb/vibe-phrp/internal/rank"
	"github.com/inodb/vibe-phrp/internal/synopsis"
)

// Options control MODa filtering.
type Options struct {
	// A result enters the synopsis file when either threshold passes.
	ProbabilityThreshold float64
	ScoreThreshold       float64

	Precision int
	AdjustC13 bool
}

// DefaultOptions returns the standard MODa thresholds.
func DefaultOptions() Options {
	return Options{
		ProbabilityThreshold: 0.05,
		ScoreThreshold:       50,
		Precision:            2,
		AdjustC13:            true,
	}
}

// SynopsisColumns are the columns of MODa synopsis and first-hits files.
var SynopsisColumns = []string{
	"ResultID",
	"Scan",
	"Spectrum_Index",
	"Charge",
	"PrecursorMZ",
	"DelM",
	"DelM_PPM",
	"MH",
	"Peptide",
	"Protein",
	"Score",
	"Probability",
	"Rank_Probability",
	"Peptide_Position",
}

// SynopsisLayout maps SynopsisColumns to canonical result fields.
var SynopsisLayout = synopsis.Layout{
	ResultID:       "ResultID",
	Scan:           "Scan",
	Charge:         "Charge",
	Peptide:        "Peptide",
	Protein:        "Protein",
	PrimaryScore:   "Probability",
	SecondaryScore: "Score",
	Rank:           "Rank_Probability",
	DelMPPM:        "DelM_PPM",
}

// Processor converts MODa results.
type Processor struct {
	opts    Options
	dict    *mods.Dictionary
	calc    *mass.Calculator
	errs    *psm.ErrorLog
	scanMap map[int]int
	logger  *zap.Logger
}

// NewProcessor creates a processor. Parse problems are appended to errs.
func NewProcessor(dict *mods.Dictionary, opts Options, errs *psm.ErrorLog) *Processor {
	if errs == nil {
		errs = &psm.ErrorLog{}
	}
	return &Processor{
		opts:   opts,
		dict:   dict,
		calc:   mass.NewCalculator(),
		errs:   errs,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for the processor.
func (p *Processor) SetLogger(l *zap.Logger) {
	p.logger = l
}

// SetScanMap sets the spectrum index to scan number map used when the
// spectrum name carries no scan.
func (p *Processor) SetScanMap(m map[int]int) {
	p.scanMap = m
}

// ParseLine parses one raw MODa line. index is the zero-based line index.
func (p *Processor) ParseLine(line string, index int) (*Record, psm.LineKind) {
	fields := psm.SplitLine(line)
	if len(fields) == 0 {
		return nil, psm.Invalid
	}
	if index == 0 && psm.LooksLikeHeader(fields, headerProbeColumns) {
		return nil, psm.Header
	}
	if len(fields) < MinColumns {
		p.errs.Addf("line %d: expected at least %d columns, found %d", index+1, MinColumns, len(fields))
		return nil, psm.Invalid
	}

	peptide := fields[colPeptide]
	protein := fields[colProtein]
	if peptide == "" || protein == "" {
		p.errs.Addf("line %d: missing peptide or protein", index+1)
		return nil, psm.Invalid
	}
	if !psm.IsNumber(fields[colIndex]) || !psm.IsNumber(fields[colCharge]) {
		p.errs.Addf("line %d: invalid spectrum index or charge", index+1)
		return nil, psm.Invalid
	}

	rec := &Record{
		Fields:          fields,
		SpectrumFile:    fields[colSpectrumFile],
		SpectrumIndex:   psm.ParseIntOr(fields[colIndex], 0),
		ObservedMass:    psm.ParseFloatOr(fields[colObservedMonoMass], 0),
		CalculatedMass:  psm.ParseFloatOr(fields[colCalculatedMonoMass], 0),
		Score:           psm.ParseFloatOr(fields[colScore], 0),
		Probability:     psm.ParseFloatOr(fields[colProbability], 0),
		PeptidePosition: psm.Field(fields, colPeptidePosition),
	}
	rec.Charge = psm.ParseIntOr(fields[colCharge], 0)
	rec.Scan = p.scan(rec)
	rec.SetProtein(protein)
	rec.PrimaryScore = rec.Probability
	rec.SecondaryScore = rec.Score

	p.resolve(rec, peptide, index)
	return rec, psm.DataRow
}

// scan picks the scan number: the injected map, then the spectrum name,
// then the spectrum index itself.
func (p *Processor) scan(rec *Record) int {
	if s, ok := p.scanMap[rec.SpectrumIndex]; ok {
		return s
	}
	if s, _, ok := psm.ScanFromDTAName(rec.SpectrumFile); ok {
		return s
	}
	return rec.SpectrumIndex
}

func (p *Processor) resolve(rec *Record, peptide string, index int) {
	prefix, _, _ := modseq.Split(modseq.NormalizeTermini(peptide))
	peptide = modseq.Canonicalize(peptide, func(body string) string {
		return modseq.ResolveMassOffsets(body, p.dict, p.opts.Precision, prefix == "-")
	})

	for _, err := range modseq.Apply(&rec.Result, peptide, p.dict) {
		p.errs.Addf("line %d: scan %d: %v", index+1, rec.Scan, err)
	}
	rec.ApplyStaticMods(p.dict)
	mono := rec.ComputeMass()
	rec.MH = p.calc.NeutralToMH(mono)

	if rec.ObservedMass > 0 {
		rec.DelM = rec.ObservedMass - mono
		rec.DelMPPM = mass.CorrectedDeltaPPM(rec.DelM, rec.ObservedMass, mono, p.opts.AdjustC13)
		if rec.Charge > 0 {
			rec.PrecursorMZ = p.calc.ConvoluteMass(rec.ObservedMass, 0, rec.Charge)
		}
	}
}

var (
	byProbability = rank.ByScore(func(r *Record) float64 { return r.Probability }, true)
	byScore       = rank.ByScore(func(r *Record) float64 { return r.Score }, true)

	resultOrder = byProbability.Then(byScore)
)

func (p *Processor) keep() rank.Predicate[*Record] {
	return rank.AnyOf(
		rank.AtLeast(func(r *Record) float64 { return r.Probability }, p.opts.ProbabilityThreshold),
		rank.AtLeast(func(r *Record) float64 { return r.Score }, p.opts.ScoreThreshold),
	)
}

// Process reads raw MODa results from in and writes synopsis and first-hits
// rows. Results are ranked per scan. Either writer may be nil.
func (p *Processor) Process(ctx context.Context, in *lineio.Reader, syn, fht *output.TabWriter) (psm.Stats, error) {
	var stats psm.Stats
	var synIDs, fhtIDs output.ResultIDs
	keep := p.keep()

	write := func(w *output.TabWriter, ids *output.ResultIDs, rec *Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		id, _ := ids.Next(output.ResultKey{
			Scan: rec.Scan, Charge: rec.Charge, Peptide: rec.Key().Peptide, Score: rec.Probability,
		})
		return w.Write(p.row(rec, id)...)
	}

	groups := rank.NewGroups(
		func(r *Record) rank.Key { return rank.Key{Scan: r.Scan} },
		func(group []*Record) error {
			rank.AssignRanks(group, resultOrder,
				func(r *Record) float64 { return r.Probability },
				func(r *Record, n int) { r.RankProbability = n; r.Rank = n })
			if syn == nil {
				return nil
			}
			for _, rec := range group {
				if !keep(rec) {
					continue
				}
				if err := write(syn, &synIDs, rec); err != nil {
					return err
				}
				stats.Synopsis++
			}
			return nil
		})
	firstHits := rank.NewFirstHits(
		func(r *Record) int { return r.Scan },
		func(r *Record) int { return r.Charge },
		resultOrder,
		func(rec *Record) error {
			if fht == nil {
				return nil
			}
			stats.FirstHits++
			return write(fht, &fhtIDs, rec)
		})

	err := in.Each(ctx, func(line string, index int) error {
		stats.Lines++
		rec, kind := p.ParseLine(line, index)
		switch kind {
		case psm.Header:
			return nil
		case psm.Invalid:
			stats.Invalid++
			return nil
		}
		stats.Results++
		if err := groups.Add(rec); err != nil {
			return err
		}
		return firstHits.Add(rec)
	})
	if err == nil {
		err = groups.Flush()
	}
	if err == nil {
		err = firstHits.Flush()
	}
	if err != nil {
		groups.Discard()
		firstHits.Discard()
		return stats, err
	}

	p.logger.Debug("moda results processed",
		zap.Int("lines", stats.Lines),
		zap.Int("results", stats.Results),
		zap.Int("synopsis", stats.Synopsis),
		zap.Int("first_hits", stats.FirstHits))
	return stats, nil
}

func (p *Processor) row(rec *Record, id int) []string {
	return []string{
		strconv.Itoa(id),
		strconv.Itoa(rec.Scan),
		strconv.Itoa(rec.SpectrumIndex),
		strconv.Itoa(rec.Charge),
		psm.FormatFloat(rec.PrecursorMZ, 5),
		psm.FormatFloat(rec.DelM, 5),
		psm.FormatFloat(rec.DelMPPM, 4),
		psm.FormatFloat(rec.MH, 5),
		rec.PeptideWithMods,
		rec.Protein,
		rec.Fields[colScore],
		rec.Fields[colProbability],
		strconv.Itoa(rec.RankProbability),
		rec.PeptidePosition,
	}
}
