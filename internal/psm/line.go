package psm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// LineKind classifies a raw input line.
type LineKind int

const (
	Invalid LineKind = iota
	Header
	DataRow
)

func (k LineKind) String() string {
	switch k {
	case Header:
		return "header"
	case DataRow:
		return "data"
	}
	return "invalid"
}

// MaxErrorLogLength caps the total size of an ErrorLog in characters.
const MaxErrorLogLength = 4096

// ErrorLog accumulates per-line parse problems. Once an entry would push it
// past MaxErrorLogLength, that entry and every later one are counted but not
// stored.
type ErrorLog struct {
	sb      strings.Builder
	entries int
	dropped int
	full    bool
}

// Addf appends one entry. It reports whether the entry was stored.
func (l *ErrorLog) Addf(format string, args ...any) bool {
	entry := fmt.Sprintf(format, args...)
	if l.full || l.sb.Len()+len(entry)+1 > MaxErrorLogLength {
		l.full = true
		l.dropped++
		return false
	}
	if l.sb.Len() > 0 {
		l.sb.WriteByte('\n')
	}
	l.sb.WriteString(entry)
	l.entries++
	return true
}

// Entries returns the number of stored entries.
func (l *ErrorLog) Entries() int { return l.entries }

// Dropped returns the number of entries discarded after the cap was reached.
func (l *ErrorLog) Dropped() int { return l.dropped }

// Empty reports whether nothing has been logged.
func (l *ErrorLog) Empty() bool { return l.entries == 0 && l.dropped == 0 }

func (l *ErrorLog) String() string { return l.sb.String() }

// SplitLine trims surrounding whitespace and splits a tab-delimited line.
func SplitLine(line string) []string {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	fields := strings.Split(line, "\t")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

// LooksLikeHeader reports whether none of the first n fields is numeric.
func LooksLikeHeader(fields []string, n int) bool {
	if n > len(fields) {
		n = len(fields)
	}
	for _, f := range fields[:n] {
		if IsNumber(f) {
			return false
		}
	}
	return true
}

// IsNumber reports whether s parses as a number.
func IsNumber(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

// ParseFloatOr parses s, returning def on failure.
func ParseFloatOr(s string, def float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return def
	}
	return v
}

// ParseIntOr parses s as an integer, returning def on failure. Values such
// as "2.0" are truncated.
func ParseIntOr(s string, def int) int {
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return int(v)
	}
	return def
}

// Field returns fields[i], or "" when the column is absent.
func Field(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return fields[i]
}

var dtaNamePattern = regexp.MustCompile(`\.(\d+)\.(\d+)\.(\d+)(?:\.dta)?$`)

// ScanFromDTAName extracts the start scan and charge from a spectrum name of
// the form <dataset>.<scan>.<scan>.<charge>.dta.
func ScanFromDTAName(name string) (scan, charge int, ok bool) {
	m := dtaNamePattern.FindStringSubmatch(strings.TrimSpace(name))
	if m == nil {
		return 0, 0, false
	}
	scan, _ = strconv.Atoi(m[1])
	charge, _ = strconv.Atoi(m[3])
	return scan, charge, true
}

// ResolveScan returns the scan from the scan column, falling back to the
// spectrum name. When neither yields a scan the result is 0.
func ResolveScan(scanField, spectrumName string) int {
	if scan := ParseIntOr(scanField, 0); scan != 0 {
		return scan
	}
	if scan, _, ok := ScanFromDTAName(spectrumName); ok {
		return scan
	}
	return 0
}
