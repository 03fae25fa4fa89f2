package psm

// ProteinTerminusResidue is the prefix or suffix residue written when a
// peptide starts or ends its protein.
const ProteinTerminusResidue = '-'

// CleavageState counts the tryptic ends of a peptide.
type CleavageState int

const (
	NonSpecific CleavageState = iota
	PartiallyCleaved
	FullyCleaved
)

// TerminusState records whether a peptide touches a protein terminus.
type TerminusState int

const (
	TerminusNone TerminusState = iota
	TerminusProteinN
	TerminusProteinC
	TerminusProteinNandC
)

// TrypticCleavage returns the cleavage state of seq given its flanking
// residues. Trypsin cuts after K or R unless followed by P; protein termini
// always count as cleaved.
func TrypticCleavage(prefix byte, seq string, suffix byte) CleavageState {
	if seq == "" {
		return NonSpecific
	}
	ends := 0
	if prefix == ProteinTerminusResidue || prefix == 0 || trypticSite(prefix, seq[0]) {
		ends++
	}
	if suffix == ProteinTerminusResidue || suffix == 0 || trypticSite(seq[len(seq)-1], suffix) {
		ends++
	}
	return CleavageState(ends)
}

func trypticSite(before, after byte) bool {
	return (before == 'K' || before == 'R') && after != 'P'
}

// TerminusFor returns the terminus state implied by the flanking residues.
func TerminusFor(prefix, suffix byte) TerminusState {
	state := TerminusNone
	if prefix == ProteinTerminusResidue {
		state = TerminusProteinN
	}
	if suffix == ProteinTerminusResidue {
		if state == TerminusProteinN {
			return TerminusProteinNandC
		}
		state = TerminusProteinC
	}
	return state
}
