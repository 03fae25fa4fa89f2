package phrp

import (
	"context"
	"errors"
	"os"

	"go.uber.org/zap"

	"github.com/inodb/vibe-phrp/internal/duckdb"
	"github.com/inodb/vibe-phrp/internal/modseq"
	"github.com/inodb/vibe-phrp/internal/output"
	"github.com/inodb/vibe-phrp/internal/protmap"
	"github.com/inodb/vibe-phrp/internal/psm"
	"github.com/inodb/vibe-phrp/internal/sqlite"
	"github.com/inodb/vibe-phrp/internal/synopsis"
)

// proteinTable loads or builds the peptide to protein map and writes it in
// canonical notation. It returns nil when no mapping source is configured
// or the source is unusable.
func (p *Pipeline) proteinTable(ctx context.Context, synPath string) (*protmap.Table, error) {
	var table *protmap.Table
	convert := p.canonicalPeptide

	switch {
	case p.opts.PepToProtMapFile != "":
		t, err := protmap.Load(p.opts.PepToProtMapFile)
		if err != nil {
			p.warn("peptide to protein map unavailable, continuing without it",
				zap.String("path", p.opts.PepToProtMapFile), zap.Error(err))
			return nil, nil
		}
		table = t
	case p.opts.FASTAFile != "":
		peptides, err := p.synopsisPeptides(ctx, synPath)
		if err != nil {
			return nil, err
		}
		mapper := protmap.NewFASTAMapper(peptides)
		mapper.SetProgress(func(n int) {
			p.logger.Debug("mapping peptides to proteins", zap.Int("proteins", n))
			if p.progress != nil {
				p.progress(n)
			}
		}, 1000)
		t, err := mapper.MapFile(p.opts.FASTAFile)
		if err != nil {
			p.warn("protein FASTA unavailable, continuing without protein mapping",
				zap.String("path", p.opts.FASTAFile), zap.Error(err))
			return nil, nil
		}
		table = t
		// Mapper output is already clean.
		convert = nil
	default:
		return nil, nil
	}

	path := p.outputPath(output.PepToProtMapSuffix)
	if err := protmap.WriteFile(path, table.Mappings(), convert); err != nil {
		return nil, newError(OutputWrite, err, "write %s", path)
	}
	p.summary.Outputs = append(p.summary.Outputs, path)
	p.logger.Debug("peptide to protein map ready", zap.Int("mappings", table.Len()))
	return table, nil
}

// canonicalPeptide rewrites a peptide in tool notation with canonical
// modification symbols.
func (p *Pipeline) canonicalPeptide(peptide string) string {
	dynamic := p.dict.Dynamic()
	return modseq.Canonicalize(peptide, func(body string) string {
		body = modseq.ReplaceTerminalMassOffsets(body, dynamic)
		body = modseq.ReplaceNamedTags(body, dynamic)
		return modseq.ResolveMassOffsets(body, p.dict, p.opts.precision(), false)
	})
}

// synopsisPeptides returns the clean peptides of the synopsis file.
func (p *Pipeline) synopsisPeptides(ctx context.Context, synPath string) ([]string, error) {
	in, r, err := p.openSynopsis(synPath)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	var peptides []string
	for {
		if err := ctx.Err(); err != nil {
			return nil, classify(Aborted, err, "collect peptides")
		}
		res, err := r.Next()
		if err != nil {
			return nil, newError(InputRead, err, "read %s", synPath)
		}
		if res == nil {
			return peptides, nil
		}
		peptides = append(peptides, res.CleanSequence)
	}
}

// sinks holds the optional database outputs of one run.
type sinks struct {
	store    *duckdb.Store
	batch    *duckdb.Batch
	exporter *sqlite.Exporter
}

func (p *Pipeline) openSinks(b *output.Builder) (*sinks, error) {
	s := &sinks{}
	if path := p.opts.StorePath; path != "" {
		store, err := duckdb.Open(path)
		if err != nil {
			return nil, newError(OutputWrite, err, "open result store %s", path)
		}
		if err := store.ClearDataset(p.dataset); err != nil {
			store.Close()
			return nil, newError(OutputWrite, err, "clear dataset %s", p.dataset)
		}
		s.store = store
		s.batch = store.NewBatch(p.dataset)
		b.AddSink(s.batch)
	}
	if path := p.opts.SQLitePath; path != "" {
		e, err := sqlite.NewExporter(path)
		if err != nil {
			s.abort()
			return nil, newError(OutputWrite, err, "open SQLite export %s", path)
		}
		s.exporter = e
		b.AddSink(e)
	}
	return s, nil
}

// finish writes the buffered store rows and commits the export.
func (s *sinks) finish(ctx context.Context, p *Pipeline) error {
	var errs []error
	if s.batch != nil {
		if err := s.batch.Flush(ctx); err != nil {
			errs = append(errs, err)
		} else {
			run := duckdb.Run{Dataset: p.dataset, Tool: string(p.opts.Tool), Results: p.summary.Stats.Synopsis}
			if fp, err := duckdb.StatFile(p.opts.InputPath); err == nil {
				run.Input = fp
			}
			errs = append(errs, s.store.RecordRun(run))
		}
		errs = append(errs, s.store.Close())
	}
	if s.exporter != nil {
		if err := s.exporter.WriteModSummary(p.dict.SummaryDefinitions()); err != nil {
			errs = append(errs, err, s.exporter.Abort())
		} else {
			errs = append(errs, s.exporter.Close())
		}
	}
	return errors.Join(errs...)
}

// abort discards everything the sinks buffered.
func (s *sinks) abort() {
	if s.store != nil {
		s.store.Close()
	}
	if s.exporter != nil {
		s.exporter.Abort()
	}
}

// crossReference re-reads the synopsis file and writes the cross-reference
// tables and the modification summary.
func (p *Pipeline) crossReference(ctx context.Context, synPath string, table *protmap.Table) error {
	in, r, err := p.openSynopsis(synPath)
	if err != nil {
		return err
	}
	defer in.Close()
	r.SetErrorLog(p.errs)

	paths := output.PathsFor(synPath)
	b, err := output.CreateBuilder(paths)
	if err != nil {
		return newError(OutputWrite, err, "create cross-reference files")
	}
	b.SetLogger(p.logger)
	s, err := p.openSinks(b)
	if err != nil {
		b.Close()
		return err
	}

	if err := p.saveResults(ctx, r, b, table); err != nil {
		s.abort()
		b.Close()
		return err
	}

	p.summary.Sequences = b.Sequences()
	if err := b.Close(); err != nil {
		s.abort()
		return newError(OutputWrite, err, "close cross-reference files")
	}
	p.summary.Outputs = append(p.summary.Outputs,
		paths.ResultToSeqMap, paths.SeqInfo, paths.ModDetails, paths.SeqToProteinMap)

	if err := p.writeModSummary(paths.ModSummary); err != nil {
		s.abort()
		return err
	}
	if err := s.finish(ctx, p); err != nil {
		return classify(OutputWrite, err, "write result databases")
	}
	return nil
}

// saveResults feeds the synopsis results to the builder. Consecutive rows
// sharing a result ID are one match reported against several proteins.
func (p *Pipeline) saveResults(ctx context.Context, r *synopsis.Reader, b *output.Builder, table *protmap.Table) error {
	var group []*psm.Result
	proteins := make(map[string]struct{})

	flush := func() error {
		if len(group) == 0 {
			return nil
		}
		clear(proteins)
		for _, res := range group {
			proteins[res.Protein] = struct{}{}
		}
		var extra []string
		if table != nil {
			for _, prot := range table.Proteins(group[0].CleanSequence) {
				if _, ok := proteins[prot]; !ok {
					extra = append(extra, prot)
				}
			}
		}
		count := len(proteins) + len(extra) - 1

		for _, res := range group {
			res.MultipleProteinCount = count
			first := b.FirstOccurrence(res)
			if first {
				for _, m := range res.Mods {
					p.dict.RegisterOccurrence(m.Def)
				}
			}
			if err := b.SaveResult(res, first); err != nil {
				return newError(OutputWrite, err, "save result %d", res.ResultID)
			}
		}
		for _, prot := range extra {
			if err := b.AddProtein(group[0], prot); err != nil {
				return newError(OutputWrite, err, "save protein %s", prot)
			}
		}
		p.summary.Proteins += len(proteins) + len(extra)
		group = group[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return classify(Aborted, err, "write cross-reference tables")
		}
		res, err := r.Next()
		if err != nil {
			return newError(InputRead, err, "read synopsis")
		}
		if res == nil {
			break
		}
		if len(group) > 0 && res.ResultID != group[0].ResultID {
			if err := flush(); err != nil {
				return err
			}
		}
		group = append(group, res)
	}
	return flush()
}

func (p *Pipeline) writeModSummary(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return newError(OutputWrite, err, "create %s", path)
	}
	if err := output.WriteModSummary(f, p.dict.SummaryDefinitions()); err != nil {
		f.Close()
		return newError(OutputWrite, err, "write %s", path)
	}
	if err := f.Close(); err != nil {
		return newError(OutputWrite, err, "close %s", path)
	}
	p.summary.Outputs = append(p.summary.Outputs, path)
	return nil
}
