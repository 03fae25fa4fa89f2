package phrp

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/inodb/vibe-phrp/internal/inspect"
	"github.com/inodb/vibe-phrp/internal/lineio"
	"github.com/inodb/vibe-phrp/internal/moda"
	"github.com/inodb/vibe-phrp/internal/mods"
	"github.com/inodb/vibe-phrp/internal/output"
	"github.com/inodb/vibe-phrp/internal/protmap"
	"github.com/inodb/vibe-phrp/internal/psm"
	"github.com/inodb/vibe-phrp/internal/synopsis"
	"github.com/inodb/vibe-phrp/internal/xtandem"
)

// Pipeline converts one input file. A pipeline owns all mutable state of
// its run, so separate pipelines may run concurrently.
type Pipeline struct {
	opts     Options
	dict     *mods.Dictionary
	errs     *psm.ErrorLog
	progress protmap.ProgressFunc
	logger   *zap.Logger

	dataset string
	outDir  string
	summary *Summary
}

// New creates a pipeline for opts.
func New(opts Options) *Pipeline {
	return &Pipeline{
		opts:   opts,
		errs:   &psm.ErrorLog{},
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for the pipeline.
func (p *Pipeline) SetLogger(l *zap.Logger) {
	p.logger = l
}

// SetProgress registers fn to receive protein mapping progress.
func (p *Pipeline) SetProgress(fn protmap.ProgressFunc) {
	p.progress = fn
}

// Dictionary returns the modification dictionary of the last run.
func (p *Pipeline) Dictionary() *mods.Dictionary {
	return p.dict
}

// Run converts opts with a new pipeline.
func Run(ctx context.Context, opts Options, logger *zap.Logger) (*Summary, error) {
	p := New(opts)
	if logger != nil {
		p.SetLogger(logger)
	}
	return p.Run(ctx)
}

// Run processes the input file. The summary is returned even on failure
// and reports what was done up to that point.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	p.dataset = DatasetName(p.opts.InputPath)
	p.summary = &Summary{Tool: p.opts.Tool, Input: p.opts.InputPath, Dataset: p.dataset}
	sum := p.summary

	err := p.run(ctx)
	sum.ErrorLog = p.errs.String()
	if !p.errs.Empty() {
		p.logger.Warn("some input lines were skipped",
			zap.String("input", p.opts.InputPath),
			zap.Int("logged", p.errs.Entries()),
			zap.Int("dropped", p.errs.Dropped()),
			zap.String("log", sum.ErrorLog))
	}
	if err != nil {
		return sum, err
	}

	p.logger.Info("processing complete",
		zap.String("dataset", p.dataset),
		zap.String("tool", string(p.opts.Tool)),
		zap.Int("results", sum.Stats.Results),
		zap.Int("synopsis", sum.Stats.Synopsis),
		zap.Int("first_hits", sum.Stats.FirstHits),
		zap.Int("sequences", sum.Sequences))
	return sum, nil
}

func (p *Pipeline) run(ctx context.Context) error {
	if err := p.checkPaths(); err != nil {
		return err
	}
	if err := p.loadDefinitions(); err != nil {
		return err
	}

	synPath := p.outputPath(output.SynopsisSuffix)
	if err := p.processResults(ctx, synPath); err != nil {
		return err
	}
	table, err := p.proteinTable(ctx, synPath)
	if err != nil {
		return err
	}
	return p.crossReference(ctx, synPath, table)
}

func (p *Pipeline) warn(msg string, fields ...zap.Field) {
	p.summary.Warnings = append(p.summary.Warnings, msg)
	p.logger.Warn(msg, fields...)
}

func (p *Pipeline) checkPaths() error {
	if _, err := ParseTool(string(p.opts.Tool)); err != nil {
		return newError(Unspecified, err, "select tool")
	}
	if p.opts.InputPath == "" {
		return newError(InvalidInputPath, nil, "no input file given")
	}
	info, err := os.Stat(p.opts.InputPath)
	if err != nil {
		return newError(InvalidInputPath, err, "input file %s", p.opts.InputPath)
	}
	if info.IsDir() {
		return newError(InvalidInputPath, nil, "input %s is a directory", p.opts.InputPath)
	}

	p.outDir = p.opts.OutputDir
	if p.outDir == "" {
		p.outDir = filepath.Dir(p.opts.InputPath)
	}
	if err := os.MkdirAll(p.outDir, 0755); err != nil {
		return newError(InvalidOutputPath, err, "output directory %s", p.outDir)
	}
	return nil
}

// loadDefinitions builds the modification dictionary. Missing optional
// files are reported as warnings.
func (p *Pipeline) loadDefinitions() error {
	tags := mods.DefaultTags()
	if path := p.opts.MassCorrectionTagsFile; path != "" {
		t, err := mods.LoadMassCorrectionTags(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			p.warn("mass correction tags file not found, using defaults", zap.String("path", path))
		case err != nil:
			return newError(MassCorrectionTags, err, "load %s", path)
		default:
			tags = t
		}
	}
	p.dict = mods.NewDictionary(tags)

	if path := p.opts.ModDefsFile; path != "" {
		n, err := mods.LoadModDefs(path, p.dict)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			p.warn("modification definitions file not found", zap.String("path", path))
		case err != nil:
			return newError(ModificationDefinitions, err, "load %s", path)
		default:
			p.logger.Debug("loaded modification definitions", zap.String("path", path), zap.Int("count", n))
		}
	}

	path := p.opts.ParameterFile
	if path == "" {
		if p.opts.ParameterFileRequired {
			return newError(ParameterFile, nil, "a parameter file is required")
		}
		if p.opts.Tool != XTandem {
			return nil
		}
		// X!Tandem results carry their input parameters.
		path = p.opts.InputPath
	}
	n, err := p.loadParams(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !p.opts.ParameterFileRequired:
		p.warn("parameter file not found, continuing without its modifications", zap.String("path", path))
	case err != nil:
		return newError(ParameterFile, err, "load %s", path)
	default:
		p.logger.Debug("loaded parameter file", zap.String("path", path), zap.Int("modifications", n))
	}
	return nil
}

func (p *Pipeline) loadParams(path string) (int, error) {
	switch p.opts.Tool {
	case InSpecT:
		return inspect.LoadParams(path, p.dict)
	case MODa:
		return moda.LoadParams(path, p.dict)
	}
	in, err := lineio.Open(path)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	return xtandem.ParseParams(in, p.dict)
}

// columns returns the synopsis columns and layout of the tool.
func (p *Pipeline) columns() ([]string, synopsis.Layout) {
	switch p.opts.Tool {
	case MODa:
		return moda.SynopsisColumns, moda.SynopsisLayout
	case XTandem:
		return xtandem.SynopsisColumns, xtandem.SynopsisLayout
	}
	return inspect.SynopsisColumns, inspect.SynopsisLayout
}

// processResults runs the tool processor over the input, writing the
// synopsis and first-hits files.
func (p *Pipeline) processResults(ctx context.Context, synPath string) error {
	in, err := lineio.Open(p.opts.InputPath)
	if err != nil {
		return newError(InputRead, err, "open %s", p.opts.InputPath)
	}
	defer in.Close()

	columns, _ := p.columns()
	syn, err := output.CreateTabFile(synPath, columns)
	if err != nil {
		return newError(OutputWrite, err, "create synopsis file")
	}
	var fht *output.TabFile
	if p.opts.FirstHits {
		fhtPath := p.outputPath(output.FirstHitsSuffix)
		fht, err = output.CreateTabFile(fhtPath, columns)
		if err != nil {
			syn.Close()
			return newError(OutputWrite, err, "create first-hits file")
		}
	}

	var fhtWriter *output.TabWriter
	if fht != nil {
		fhtWriter = fht.TabWriter
	}
	stats, procErr := p.process(ctx, in, syn.TabWriter, fhtWriter)
	p.summary.Stats.Add(stats)

	closeErr := syn.Close()
	p.summary.Outputs = append(p.summary.Outputs, synPath)
	if fht != nil {
		closeErr = errors.Join(closeErr, fht.Close())
		p.summary.Outputs = append(p.summary.Outputs, fht.Path())
	}
	if procErr != nil {
		return classify(InputRead, procErr, "process %s", p.opts.InputPath)
	}
	if closeErr != nil {
		return newError(OutputWrite, closeErr, "close synopsis files")
	}
	return nil
}

func (p *Pipeline) process(ctx context.Context, in *lineio.Reader, syn, fht *output.TabWriter) (psm.Stats, error) {
	logger := p.logger.With(zap.String("input", p.opts.InputPath))
	switch p.opts.Tool {
	case MODa:
		proc := moda.NewProcessor(p.dict, p.opts.MODa, p.errs)
		proc.SetLogger(logger)
		proc.SetScanMap(p.opts.ScanMap)
		return proc.Process(ctx, in, syn, fht)
	case XTandem:
		proc := xtandem.NewProcessor(p.dict, p.opts.XTandem, p.errs)
		proc.SetLogger(logger)
		return proc.Process(ctx, in, syn, fht)
	}
	proc := inspect.NewProcessor(p.dict, p.opts.InSpecT, p.errs)
	proc.SetLogger(logger)
	return proc.Process(ctx, in, syn, fht)
}

// openSynopsis opens a synopsis file for re-reading.
func (p *Pipeline) openSynopsis(path string) (*lineio.Reader, *synopsis.Reader, error) {
	in, err := lineio.Open(path)
	if err != nil {
		return nil, nil, newError(InputRead, err, "open %s", path)
	}
	_, layout := p.columns()
	r, err := synopsis.NewReader(in, layout, p.dict)
	if err != nil {
		in.Close()
		return nil, nil, newError(InputRead, err, "read %s", path)
	}
	r.SetName(path)
	return in, r, nil
}

// outputPath returns the path of a dataset-level output file.
func (p *Pipeline) outputPath(suffix string) string {
	return filepath.Join(p.outDir, p.dataset+suffix)
}
