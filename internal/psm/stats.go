package psm

import (
	"math"
	"strconv"
)

// Stats counts what a phase 1 processor saw and wrote.
type Stats struct {
	Lines     int
	Results   int
	Invalid   int
	Synopsis  int
	FirstHits int
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Lines += o.Lines
	s.Results += o.Results
	s.Invalid += o.Invalid
	s.Synopsis += o.Synopsis
	s.FirstHits += o.FirstHits
}

// FormatFloat formats v with at most digits decimals, dropping trailing
// zeros. Negative zero prints as "0".
func FormatFloat(v float64, digits int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	s := strconv.FormatFloat(v, 'f', digits, 64)
	if digits > 0 {
		i := len(s)
		for i > 0 && s[i-1] == '0' {
			i--
		}
		if i > 0 && s[i-1] == '.' {
			i--
		}
		s = s[:i]
	}
	if s == "-0" {
		return "0"
	}
	return s
}
