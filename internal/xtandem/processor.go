package xtandem

import (
	"context"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/vibe-phrp/internal/mass"
	"github.com/inodb/vibe-phrp/internal/modseq"
	"github.com/inodb/vibe-phrp/internal/mods"
	"github.com/inodb/vibe-phrp/internal/output"
	"github.com/inodb/vibe-phrp/internal/psm"
	"github.com/inodb/vibe-phrp/internal/rank"
	"github.com/inodb/vibe-phrp/internal/synopsis"
)

// minExpectLog stands in for log10(0).
const minExpectLog = -300

// Options control X!Tandem filtering.
type Options struct {
	// A result enters the synopsis file when either threshold passes.
	ExpectLogThreshold  float64
	HyperscoreThreshold float64

	Precision int
	AdjustC13 bool
}

// DefaultOptions returns the standard X!Tandem thresholds.
func DefaultOptions() Options {
	return Options{
		ExpectLogThreshold:  -0.3,
		HyperscoreThreshold: 30,
		Precision:           3,
		AdjustC13:           true,
	}
}

// SynopsisColumns are the columns of X!Tandem synopsis and first-hits files.
var SynopsisColumns = []string{
	"Result_ID",
	"Group_ID",
	"Scan",
	"Charge",
	"Peptide_MH",
	"Peptide_Hyperscore",
	"Peptide_Expectation_Value_Log(e)",
	"Multiple_Protein_Count",
	"Peptide_Sequence",
	"DeltaCn2",
	"y_score",
	"y_ions",
	"b_score",
	"b_ions",
	"Delta_Mass",
	"Peptide_Intensity_Log(I)",
	"DelM_PPM",
	"Protein_Name",
	"Protein_Expectation_Value_Log(e)",
	"Protein_Intensity_Log(I)",
	"Rank_Hyperscore",
}

// SynopsisLayout maps SynopsisColumns to canonical result fields.
var SynopsisLayout = synopsis.Layout{
	ResultID:           "Result_ID",
	Scan:               "Scan",
	Charge:             "Charge",
	Peptide:            "Peptide_Sequence",
	Protein:            "Protein_Name",
	PrimaryScore:       "Peptide_Hyperscore",
	SecondaryScore:     "Peptide_Expectation_Value_Log(e)",
	Rank:               "Rank_Hyperscore",
	DelMPPM:            "DelM_PPM",
	ProteinExpectation: "Protein_Expectation_Value_Log(e)",
	ProteinIntensity:   "Protein_Intensity_Log(I)",
}

// Record is one peptide/protein match of one X!Tandem group.
type Record struct {
	psm.Result
	Hit Hit

	GroupID        int
	PrecursorMH    float64
	IntensityLog   float64
	ExpectLog      float64
	DeltaCn2       float64
	DelM           float64
	RankHyperscore int
}

// Processor converts X!Tandem results.
type Processor struct {
	opts   Options
	dict   *mods.Dictionary
	calc   *mass.Calculator
	errs   *psm.ErrorLog
	logger *zap.Logger
}

// NewProcessor creates a processor. Modification problems are appended to
// errs.
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

// Records converts a group into one record per protein/domain hit.
func (p *Processor) Records(g *Group) []*Record {
	out := make([]*Record, 0, len(g.Hits))
	for _, hit := range g.Hits {
		rec := &Record{
			Hit:          hit,
			GroupID:      g.ID,
			PrecursorMH:  g.PrecursorMH,
			IntensityLog: g.IntensityLog,
		}
		rec.Scan = g.Scan
		rec.Charge = g.Charge
		rec.Protein = hit.Protein
		rec.ProteinExpectationLog = hit.ProteinExpectationLog
		rec.ProteinIntensityLog = hit.ProteinIntensityLog
		rec.CleanSequence = hit.Sequence
		rec.Prefix = hit.Pre
		rec.Suffix = hit.Post

		rec.ExpectLog = minExpectLog
		if hit.Expect > 0 {
			rec.ExpectLog = math.Log10(hit.Expect)
		}
		rec.DeltaCn2 = rank.DeltaNorm(hit.Hyperscore, hit.Nextscore)
		rec.PrimaryScore = hit.Hyperscore
		rec.SecondaryScore = rec.ExpectLog

		p.applyMods(rec)
		out = append(out, rec)
	}
	return out
}

// applyMods places the reported modifications, adds static ones and
// computes masses. Static modifications are reported by X!Tandem like any
// other and are skipped so they are only applied once.
func (p *Processor) applyMods(rec *Record) {
	for _, site := range rec.Hit.Mods {
		term := rec.ResidueTerminus(site.Position)
		if _, ok := p.dict.FindStatic(site.Mass, site.Residue, term, p.opts.Precision); ok {
			continue
		}
		def := p.dict.LookupOrDefine(site.Mass, site.Residue, term, p.opts.Precision)
		if err := rec.AddModification(def, site.Position); err != nil {
			p.errs.Addf("group %d: %v", rec.GroupID, err)
		}
	}
	rec.ApplyStaticMods(p.dict)
	rec.PeptideWithMods = modseq.Format(&rec.Result)

	mono := rec.ComputeMass()
	if rec.PrecursorMH > 0 {
		precursor := p.calc.MHToMonoisotopic(rec.PrecursorMH)
		rec.DelM = precursor - mono
		rec.DelMPPM = mass.CorrectedDeltaPPM(rec.DelM, precursor, mono, p.opts.AdjustC13)
	}
}

var (
	byHyperscore = rank.ByScore(func(r *Record) float64 { return r.Hit.Hyperscore }, true)
	byExpectLog  = rank.ByScore(func(r *Record) float64 { return r.ExpectLog }, false)
	byPeptide    = func(a, b *Record) int { return strings.Compare(a.Key().Peptide, b.Key().Peptide) }

	// resultOrder keeps the protein rows of one peptide adjacent.
	resultOrder = byHyperscore.Then(byExpectLog, byPeptide)
)

func (p *Processor) keep() rank.Predicate[*Record] {
	return rank.AnyOf(
		rank.AtMost(func(r *Record) float64 { return r.ExpectLog }, p.opts.ExpectLogThreshold),
		rank.AtLeast(func(r *Record) float64 { return r.Hit.Hyperscore }, p.opts.HyperscoreThreshold),
	)
}

// rankGroup ranks the hits of one group by hyperscore and counts the
// additional proteins each peptide maps to.
func rankGroup(group []*Record) {
	rank.AssignRanks(group, resultOrder,
		func(r *Record) float64 { return r.Hit.Hyperscore },
		func(r *Record, n int) { r.RankHyperscore = n; r.Rank = n })

	type peptideScore struct {
		peptide string
		score   float64
	}
	counts := make(map[peptideScore]int, len(group))
	for _, rec := range group {
		counts[peptideScore{rec.Key().Peptide, rec.Hit.Hyperscore}]++
	}
	for _, rec := range group {
		rec.MultipleProteinCount = counts[peptideScore{rec.Key().Peptide, rec.Hit.Hyperscore}] - 1
	}
}

// Process reads an X!Tandem result file from in and writes synopsis and
// first-hits rows. Either writer may be nil. The context is checked before
// each group and each row.
func (p *Processor) Process(ctx context.Context, in io.Reader, syn, fht *output.TabWriter) (psm.Stats, error) {
	var stats psm.Stats
	var synIDs, fhtIDs output.ResultIDs
	keep := p.keep()

	write := func(w *output.TabWriter, ids *output.ResultIDs, rec *Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		id, _ := ids.Next(output.ResultKey{
			Scan: rec.GroupID, Charge: rec.Charge, Peptide: rec.Key().Peptide, Score: rec.Hit.Hyperscore,
		})
		return w.Write(p.row(rec, id)...)
	}

	firstHits := rank.NewFirstHits(
		func(r *Record) int { return r.GroupID },
		func(r *Record) int { return r.Charge },
		resultOrder,
		func(rec *Record) error {
			if fht == nil {
				return nil
			}
			stats.FirstHits++
			return write(fht, &fhtIDs, rec)
		})

	reader := NewReader(in)
	for {
		if err := ctx.Err(); err != nil {
			firstHits.Discard()
			return stats, err
		}
		g, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			firstHits.Discard()
			return stats, err
		}
		stats.Lines++

		group := p.Records(g)
		if len(group) == 0 {
			stats.Invalid++
			p.errs.Addf("group %d: no peptide matches", g.ID)
			continue
		}
		stats.Results += len(group)
		rankGroup(group)

		for _, rec := range group {
			if syn == nil || !keep(rec) {
				continue
			}
			if err := write(syn, &synIDs, rec); err != nil {
				firstHits.Discard()
				return stats, err
			}
			stats.Synopsis++
		}
		for _, rec := range group {
			if err := firstHits.Add(rec); err != nil {
				firstHits.Discard()
				return stats, err
			}
		}
	}
	if err := firstHits.Flush(); err != nil {
		return stats, err
	}

	p.logger.Debug("xtandem results processed",
		zap.Int("groups", stats.Lines),
		zap.Int("results", stats.Results),
		zap.Int("synopsis", stats.Synopsis),
		zap.Int("first_hits", stats.FirstHits))
	return stats, nil
}

func (p *Processor) row(rec *Record, id int) []string {
	return []string{
		strconv.Itoa(id),
		strconv.Itoa(rec.GroupID),
		strconv.Itoa(rec.Scan),
		strconv.Itoa(rec.Charge),
		psm.FormatFloat(rec.Hit.MH, 5),
		psm.FormatFloat(rec.Hit.Hyperscore, 3),
		psm.FormatFloat(rec.ExpectLog, 3),
		strconv.Itoa(rec.MultipleProteinCount),
		rec.PeptideWithMods,
		psm.FormatFloat(rec.DeltaCn2, 4),
		rec.Hit.YScore,
		rec.Hit.YIons,
		rec.Hit.BScore,
		rec.Hit.BIons,
		psm.FormatFloat(rec.Hit.Delta, 5),
		psm.FormatFloat(rec.IntensityLog, 3),
		psm.FormatFloat(rec.DelMPPM, 4),
		rec.Protein,
		psm.FormatFloat(rec.ProteinExpectationLog, 3),
		psm.FormatFloat(rec.ProteinIntensityLog, 3),
		strconv.Itoa(rec.RankHyperscore),
	}
}
