package inspect

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

// Options control InSpecT filtering.
type Options struct {
	// A result enters the synopsis file when any threshold passes.
	TotalPRMScoreThreshold float64
	FScoreThreshold        float64
	PValueThreshold        float64

	// Precision is the number of decimal digits used when matching
	// modification masses.
	Precision int
	AdjustC13 bool
}

// DefaultOptions returns the standard InSpecT thresholds.
func DefaultOptions() Options {
	return Options{
		TotalPRMScoreThreshold: 50,
		FScoreThreshold:        0,
		PValueThreshold:        0.2,
		Precision:              0,
		AdjustC13:              true,
	}
}

// SynopsisColumns are the columns of InSpecT synopsis and first-hits files.
var SynopsisColumns = []string{
	"ResultID",
	"Scan",
	"Peptide",
	"Protein",
	"Charge",
	"MQScore",
	"Length",
	"TotalPRMScore",
	"MedianPRMScore",
	"FractionY",
	"FractionB",
	"Intensity",
	"NTT",
	"PValue",
	"FScore",
	"DeltaScore",
	"DeltaScoreOther",
	"DeltaNormMQScore",
	"DeltaNormTotalPRMScore",
	"RankTotalPRMScore",
	"RankFScore",
	"MH",
	"RecordNumber",
	"DBFilePos",
	"SpecFilePos",
	"PrecursorMZ",
	"PrecursorError",
	"DelM_PPM",
}

// SynopsisLayout maps SynopsisColumns to canonical result fields.
var SynopsisLayout = synopsis.Layout{
	ResultID:       "ResultID",
	Scan:           "Scan",
	Charge:         "Charge",
	Peptide:        "Peptide",
	Protein:        "Protein",
	PrimaryScore:   "TotalPRMScore",
	SecondaryScore: "FScore",
	Rank:           "RankTotalPRMScore",
	DelMPPM:        "DelM_PPM",
}

// Processor converts InSpecT results.
type Processor struct {
	opts   Options
	dict   *mods.Dictionary
	calc   *mass.Calculator
	errs   *psm.ErrorLog
	logger *zap.Logger
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

// ParseLine parses one raw InSpecT line. index is the zero-based line index
// within the file; only line 0 may be a header.
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

	rec := &Record{Fields: fields, SpectrumFile: fields[colSpectrumFile]}
	annotation := fields[colAnnotation]
	protein := fields[colProtein]
	if annotation == "" || protein == "" {
		p.errs.Addf("line %d: missing peptide or protein", index+1)
		return nil, psm.Invalid
	}
	if !psm.IsNumber(fields[colCharge]) {
		p.errs.Addf("line %d: invalid charge %q", index+1, fields[colCharge])
		return nil, psm.Invalid
	}

	rec.Scan = psm.ResolveScan(fields[colScan], rec.SpectrumFile)
	rec.Charge = psm.ParseIntOr(fields[colCharge], 0)
	rec.SetProtein(protein)

	rec.MQScore = psm.ParseFloatOr(fields[colMQScore], 0)
	rec.TotalPRMScore = psm.ParseFloatOr(fields[colTotalPRMScore], 0)
	rec.PValue = psm.ParseFloatOr(fields[colPValue], 0)
	rec.FScore = psm.ParseFloatOr(rec.field(colFScore), 0)
	rec.PrecursorMZ = psm.ParseFloatOr(rec.field(colPrecursorMZ), 0)
	rec.PrimaryScore = rec.TotalPRMScore
	rec.SecondaryScore = rec.FScore

	p.resolve(rec, annotation, index)
	return rec, psm.DataRow
}

// resolve converts the annotation to canonical notation and computes masses.
func (p *Processor) resolve(rec *Record, annotation string, index int) {
	dynamic := p.dict.All()
	peptide := modseq.Canonicalize(annotation, func(body string) string {
		body = modseq.ReplaceTerminalMassOffsets(body, dynamic)
		body = modseq.ReplaceNamedTags(body, dynamic)
		return body
	})
	prefix, _, _ := modseq.Split(peptide)
	peptide = modseq.Canonicalize(peptide, func(body string) string {
		return modseq.ResolveMassOffsets(body, p.dict, p.opts.Precision, prefix == "-")
	})

	for _, err := range modseq.Apply(&rec.Result, peptide, p.dict) {
		p.errs.Addf("line %d: scan %d: %v", index+1, rec.Scan, err)
	}
	rec.ApplyStaticMods(p.dict)
	mono := rec.ComputeMass()
	rec.MH = p.calc.NeutralToMH(mono)

	if rec.PrecursorMZ > 0 && rec.Charge > 0 {
		precursor := p.calc.MZToNeutral(rec.PrecursorMZ, rec.Charge)
		rec.DelM = precursor - mono
		rec.DelMPPM = mass.CorrectedDeltaPPM(rec.DelM, precursor, mono, p.opts.AdjustC13)
	}
}

// keep is the synopsis filter.
func (p *Processor) keep() rank.Predicate[*Record] {
	return rank.AnyOf(
		rank.AtLeast(func(r *Record) float64 { return r.TotalPRMScore }, p.opts.TotalPRMScoreThreshold),
		rank.AtLeast(func(r *Record) float64 { return r.FScore }, p.opts.FScoreThreshold),
		rank.AtMost(func(r *Record) float64 { return r.PValue }, p.opts.PValueThreshold),
	)
}

var (
	byTotalPRM = rank.ByScore(func(r *Record) float64 { return r.TotalPRMScore }, true)
	byFScore   = rank.ByScore(func(r *Record) float64 { return r.FScore }, true)
	byMQScore  = rank.ByScore(func(r *Record) float64 { return r.MQScore }, true)

	// firstHitOrder picks the best result per scan and charge.
	firstHitOrder = byTotalPRM.Then(byFScore)
)

// rankGroup ranks the results of one scan and charge. On return the group
// is sorted by TotalPRMScore.
func rankGroup(group []*Record) {
	rank.AssignDeltaNorm(group, byMQScore.Then(byTotalPRM),
		func(r *Record) float64 { return r.MQScore },
		func(r *Record, d float64) { r.DeltaNormMQScore = d })
	rank.AssignRanks(group, byFScore.Then(byTotalPRM),
		func(r *Record) float64 { return r.FScore },
		func(r *Record, n int) { r.RankFScore = n })
	rank.AssignDeltaNorm(group, firstHitOrder,
		func(r *Record) float64 { return r.TotalPRMScore },
		func(r *Record, d float64) { r.DeltaNormTotalPRMScore = d })
	rank.AssignRanks(group, firstHitOrder,
		func(r *Record) float64 { return r.TotalPRMScore },
		func(r *Record, n int) { r.RankTotalPRMScore = n; r.Rank = n })
}

// Process reads raw InSpecT results from in and writes synopsis and
// first-hits rows. Either writer may be nil to skip that output. Headers
// are not written. On cancellation buffered groups are dropped and the
// context error is returned.
func (p *Processor) Process(ctx context.Context, in *lineio.Reader, syn, fht *output.TabWriter) (psm.Stats, error) {
	var stats psm.Stats
	var synIDs, fhtIDs output.ResultIDs
	keep := p.keep()

	write := func(w *output.TabWriter, ids *output.ResultIDs, rec *Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		id, _ := ids.Next(output.ResultKey{
			Scan: rec.Scan, Charge: rec.Charge, Peptide: rec.Key().Peptide, Score: rec.TotalPRMScore,
		})
		return w.Write(p.row(rec, id)...)
	}

	groups := rank.NewGroups(
		func(r *Record) rank.Key { return rank.Key{Scan: r.Scan, Charge: r.Charge} },
		func(group []*Record) error {
			rankGroup(group)
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
		firstHitOrder,
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

	p.logger.Debug("inspect results processed",
		zap.Int("lines", stats.Lines),
		zap.Int("results", stats.Results),
		zap.Int("synopsis", stats.Synopsis),
		zap.Int("first_hits", stats.FirstHits))
	return stats, nil
}

// row formats rec as a synopsis row.
func (p *Processor) row(rec *Record, id int) []string {
	return []string{
		strconv.Itoa(id),
		strconv.Itoa(rec.Scan),
		rec.PeptideWithMods,
		rec.Protein,
		strconv.Itoa(rec.Charge),
		rec.field(colMQScore),
		rec.field(colLength),
		rec.field(colTotalPRMScore),
		rec.field(colMedianPRMScore),
		rec.field(colFractionY),
		rec.field(colFractionB),
		rec.field(colIntensity),
		rec.field(colNTT),
		rec.field(colPValue),
		rec.field(colFScore),
		rec.field(colDeltaScore),
		rec.field(colDeltaScoreOther),
		psm.FormatFloat(rec.DeltaNormMQScore, 5),
		psm.FormatFloat(rec.DeltaNormTotalPRMScore, 5),
		strconv.Itoa(rec.RankTotalPRMScore),
		strconv.Itoa(rec.RankFScore),
		psm.FormatFloat(rec.MH, 5),
		rec.field(colRecordNumber),
		rec.field(colDBFilePos),
		rec.field(colSpecFilePos),
		rec.field(colPrecursorMZ),
		rec.field(colPrecursorError),
		psm.FormatFloat(rec.DelMPPM, 4),
	}
}
