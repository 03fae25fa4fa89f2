// Package phrp drives the conversion of one search-engine result file into
// synopsis, first-hits and cross-reference tables.
package phrp

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/inodb/vibe-phrp/internal/inspect"
	"github.com/inodb/vibe-phrp/internal/moda"
	"github.com/inodb/vibe-phrp/internal/psm"
	"github.com/inodb/vibe-phrp/internal/xtandem"
)

// Tool names a supported search engine.
type Tool string

const (
	InSpecT Tool = "inspect"
	MODa    Tool = "moda"
	XTandem Tool = "xtandem"
)

// Tools lists the supported tools.
var Tools = []Tool{InSpecT, MODa, XTandem}

// ParseTool converts a tool name, case-insensitively, to a Tool.
func ParseTool(s string) (Tool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inspect":
		return InSpecT, nil
	case "moda":
		return MODa, nil
	case "xtandem", "x!tandem", "tandem":
		return XTandem, nil
	}
	return "", fmt.Errorf("unknown tool %q (want inspect, moda or xtandem)", s)
}

// Options configure one run.
type Options struct {
	Tool      Tool
	InputPath string
	// OutputDir defaults to the directory of InputPath.
	OutputDir string

	ParameterFile string
	// ParameterFileRequired makes a missing parameter file fatal.
	ParameterFileRequired  bool
	MassCorrectionTagsFile string
	ModDefsFile            string

	// PepToProtMapFile is an existing peptide to protein map. When it is
	// empty and FASTAFile is set, the map is built from the FASTA file.
	PepToProtMapFile string
	FASTAFile        string

	// FirstHits controls whether the first-hits file is written.
	FirstHits bool

	InSpecT inspect.Options
	MODa    moda.Options
	XTandem xtandem.Options

	// ScanMap maps MODa spectrum indices to scan numbers.
	ScanMap map[int]int

	// StorePath, when set, names a DuckDB database receiving every result.
	StorePath string
	// SQLitePath, when set, names a SQLite database receiving the
	// cross-reference tables.
	SQLitePath string
}

// DefaultOptions returns options with the standard thresholds of every tool.
func DefaultOptions() Options {
	return Options{
		FirstHits: true,
		InSpecT:   inspect.DefaultOptions(),
		MODa:      moda.DefaultOptions(),
		XTandem:   xtandem.DefaultOptions(),
	}
}

// Summary reports the outcome of a run.
type Summary struct {
	Tool      Tool
	Input     string
	Dataset   string
	Stats     psm.Stats
	Sequences int
	// Proteins counts distinct (result, protein) pairs.
	Proteins int
	Outputs  []string
	Warnings []string
	// ErrorLog holds the capped per-line parse problems.
	ErrorLog string
}

// DatasetName derives the output base name from an input path by dropping
// the directory, a .gz suffix and the file extension.
func DatasetName(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".gz")
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// precision returns the mass matching precision of the configured tool.
func (o *Options) precision() int {
	switch o.Tool {
	case MODa:
		return o.MODa.Precision
	case XTandem:
		return o.XTandem.Precision
	}
	return o.InSpecT.Precision
}
