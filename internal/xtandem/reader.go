// Package xtandem converts X!Tandem XML results to PHRP synopsis and
// first-hits files.
package xtandem

import (
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/inodb/vibe-phrp/internal/psm"
)

// Types for the parts of X!Tandem output we read.

type xmlGroup struct {
	ID       string       `xml:"id,attr"`
	MH       string       `xml:"mh,attr"`
	Z        string       `xml:"z,attr"`
	Expect   string       `xml:"expect,attr"`
	SumI     string       `xml:"sumI,attr"`
	Label    string       `xml:"label,attr"`
	Type     string       `xml:"type,attr"`
	Proteins []xmlProtein `xml:"protein"`
	Support  []xmlSupport `xml:"group"`
}

type xmlSupport struct {
	Type  string    `xml:"type,attr"`
	Label string    `xml:"label,attr"`
	Notes []xmlNote `xml:"note"`
}

type xmlNote struct {
	Label string `xml:"label,attr"`
	Type  string `xml:"type,attr"`
	Text  string `xml:",chardata"`
}

type xmlProtein struct {
	ID      string      `xml:"id,attr"`
	Expect  string      `xml:"expect,attr"`
	SumI    string      `xml:"sumI,attr"`
	Label   string      `xml:"label,attr"`
	Domains []xmlDomain `xml:"peptide>domain"`
}

type xmlDomain struct {
	ID         string  `xml:"id,attr"`
	Start      string  `xml:"start,attr"`
	End        string  `xml:"end,attr"`
	Expect     string  `xml:"expect,attr"`
	MH         string  `xml:"mh,attr"`
	Delta      string  `xml:"delta,attr"`
	Hyperscore string  `xml:"hyperscore,attr"`
	Nextscore  string  `xml:"nextscore,attr"`
	YScore     string  `xml:"y_score,attr"`
	YIons      string  `xml:"y_ions,attr"`
	BScore     string  `xml:"b_score,attr"`
	BIons      string  `xml:"b_ions,attr"`
	Pre        string  `xml:"pre,attr"`
	Post       string  `xml:"post,attr"`
	Seq        string  `xml:"seq,attr"`
	AAs        []xmlAA `xml:"aa"`
}

type xmlAA struct {
	Type     string `xml:"type,attr"`
	At       string `xml:"at,attr"`
	Modified string `xml:"modified,attr"`
}

// Group is one spectrum of an X!Tandem result file: the precursor values
// and every protein/domain match.
type Group struct {
	ID           int
	Charge       int
	PrecursorMH  float64
	IntensityLog float64
	Scan         int
	Hits         []Hit
}

// Hit is one domain (peptide match) within one protein.
type Hit struct {
	Protein               string
	ProteinExpectationLog float64
	ProteinIntensityLog   float64

	Sequence   string
	Start      int
	End        int
	Pre        byte
	Post       byte
	MH         float64
	Delta      float64
	Expect     float64
	Hyperscore float64
	Nextscore  float64
	YScore     string
	YIons      string
	BScore     string
	BIons      string
	Mods       []ModSite
}

// ModSite is a modified residue reported by an <aa> element.
type ModSite struct {
	Residue  byte
	Position int // 1-based within the peptide
	Mass     float64
}

// Reader streams model groups out of an X!Tandem result file.
type Reader struct {
	d *xml.Decoder
}

// NewReader creates a reader. Encodings other than UTF-8 are handled
// through the XML declaration.
func NewReader(r io.Reader) *Reader {
	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel
	return &Reader{d: d}
}

// Next returns the next model group. It returns io.EOF after the last.
func (r *Reader) Next() (*Group, error) {
	for {
		t, err := r.d.Token()
		if err != nil {
			return nil, err
		}
		start, ok := t.(xml.StartElement)
		if !ok || start.Name.Local != "group" || attr(start, "type") != "model" {
			continue
		}
		var g xmlGroup
		if err := r.d.DecodeElement(&g, &start); err != nil {
			return nil, fmt.Errorf("decode group: %w", err)
		}
		return convertGroup(&g)
	}
}

func attr(e xml.StartElement, name string) string {
	for _, a := range e.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

var scanNotePattern = regexp.MustCompile(`(?i)scan[=: ]\s*(\d+)`)

// scanFromNotes finds the scan number in the spectrum description of the
// support groups: a DTA style name or a "scan=" token.
func scanFromNotes(support []xmlSupport) int {
	for _, s := range support {
		for _, n := range s.Notes {
			text := strings.TrimSpace(n.Text)
			if text == "" {
				continue
			}
			if scan, _, ok := psm.ScanFromDTAName(strings.Fields(text)[0]); ok {
				return scan
			}
			if m := scanNotePattern.FindStringSubmatch(text); m != nil {
				scan, _ := strconv.Atoi(m[1])
				return scan
			}
		}
	}
	return 0
}

func convertGroup(g *xmlGroup) (*Group, error) {
	id, err := strconv.Atoi(strings.TrimSpace(g.ID))
	if err != nil {
		return nil, fmt.Errorf("group id %q: %w", g.ID, err)
	}
	out := &Group{
		ID:           id,
		Charge:       psm.ParseIntOr(g.Z, 0),
		PrecursorMH:  psm.ParseFloatOr(g.MH, 0),
		IntensityLog: psm.ParseFloatOr(g.SumI, 0),
		Scan:         scanFromNotes(g.Support),
	}

	for _, p := range g.Proteins {
		for _, d := range p.Domains {
			seq := strings.ToUpper(strings.TrimSpace(d.Seq))
			if seq == "" {
				continue
			}
			start := psm.ParseIntOr(d.Start, 1)
			hit := Hit{
				Protein:               psm.TruncateProtein(p.Label),
				ProteinExpectationLog: psm.ParseFloatOr(p.Expect, 0),
				ProteinIntensityLog:   psm.ParseFloatOr(p.SumI, 0),
				Sequence:              seq,
				Start:                 start,
				End:                   psm.ParseIntOr(d.End, start+len(seq)-1),
				Pre:                   flank(d.Pre, true),
				Post:                  flank(d.Post, false),
				MH:                    psm.ParseFloatOr(d.MH, 0),
				Delta:                 psm.ParseFloatOr(d.Delta, 0),
				Expect:                psm.ParseFloatOr(d.Expect, 0),
				Hyperscore:            psm.ParseFloatOr(d.Hyperscore, 0),
				Nextscore:             psm.ParseFloatOr(d.Nextscore, 0),
				YScore:                d.YScore,
				YIons:                 d.YIons,
				BScore:                d.BScore,
				BIons:                 d.BIons,
			}
			for _, aa := range d.AAs {
				at := psm.ParseIntOr(aa.At, 0)
				pos := at - start + 1
				if pos < 1 || pos > len(seq) || aa.Modified == "" {
					continue
				}
				hit.Mods = append(hit.Mods, ModSite{
					Residue:  seq[pos-1],
					Position: pos,
					Mass:     psm.ParseFloatOr(aa.Modified, 0),
				})
			}
			out.Hits = append(out.Hits, hit)
		}
	}
	return out, nil
}

// flank returns the residue adjacent to the peptide. X!Tandem writes '['
// and ']' at protein termini.
func flank(s string, before bool) byte {
	s = strings.TrimSpace(s)
	if s == "" {
		return psm.ProteinTerminusResidue
	}
	c := s[len(s)-1]
	if !before {
		c = s[0]
	}
	switch c {
	case '[', ']', '*', '-':
		return psm.ProteinTerminusResidue
	}
	return c
}
