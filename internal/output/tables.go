package output

import (
	"strings"
)

// Cross-reference table columns.
var (
	ResultToSeqMapColumns = []string{"Result_ID", "Unique_Seq_ID"}

	SeqInfoColumns = []string{"Unique_Seq_ID", "Mod_Count", "Mod_Description", "Monoisotopic_Mass"}

	ModDetailsColumns = []string{"Unique_Seq_ID", "Mass_Correction_Tag", "Position"}

	SeqToProteinMapColumns = []string{
		"Unique_Seq_ID",
		"Cleavage_State",
		"Terminus_State",
		"Protein_Name",
		"Protein_Expectation_Value_Log(e)",
		"Protein_Intensity_Log(I)",
	}

	ModSummaryColumns = []string{
		"Modification_Symbol",
		"Modification_Mass",
		"Target_Residues",
		"Modification_Type",
		"Mass_Correction_Tag",
		"Occurrence_Count",
	}
)

// File name suffixes appended to the base name of the input.
const (
	SynopsisSuffix        = "_syn.txt"
	FirstHitsSuffix       = "_fht.txt"
	ResultToSeqMapSuffix  = "_ResultToSeqMap.txt"
	SeqInfoSuffix         = "_SeqInfo.txt"
	ModDetailsSuffix      = "_ModDetails.txt"
	SeqToProteinMapSuffix = "_SeqToProteinMap.txt"
	ModSummarySuffix      = "_ModSummary.txt"
	PepToProtMapSuffix    = "_PepToProtMapMTS.txt"
)

// Paths holds the cross-reference table paths derived from one results file.
type Paths struct {
	ResultToSeqMap  string
	SeqInfo         string
	ModDetails      string
	SeqToProteinMap string
	ModSummary      string
}

// PathsFor derives the cross-reference paths from a synopsis or first-hits
// file path: Dataset_syn.txt gives Dataset_syn_SeqInfo.txt and so on.
func PathsFor(resultsPath string) Paths {
	base := strings.TrimSuffix(resultsPath, ".txt")
	return Paths{
		ResultToSeqMap:  base + ResultToSeqMapSuffix,
		SeqInfo:         base + SeqInfoSuffix,
		ModDetails:      base + ModDetailsSuffix,
		SeqToProteinMap: base + SeqToProteinMapSuffix,
		ModSummary:      base + ModSummarySuffix,
	}
}

// ResultKey identifies rows that describe the same match against different
// proteins.
type ResultKey struct {
	Scan    int
	Charge  int
	Peptide string
	Score   float64
}

// ResultIDs hands out sequential result IDs. Consecutive rows with the same
// key share one ID.
type ResultIDs struct {
	next    int
	last    ResultKey
	started bool
}

// Next returns the ID for key and whether it was shared with the previous row.
func (a *ResultIDs) Next(key ResultKey) (int, bool) {
	if a.started && key == a.last {
		return a.next, true
	}
	a.started = true
	a.last = key
	a.next++
	return a.next, false
}

// Last returns the most recently assigned ID.
func (a *ResultIDs) Last() int {
	return a.next
}
