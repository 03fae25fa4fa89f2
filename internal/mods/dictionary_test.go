package mods

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDictionary_AddAssignsSymbols(t *testing.T) {
	d := NewDictionary(nil)

	ox, err := d.Add(Definition{Mass: 15.994915, TargetResidues: "M", Type: Dynamic})
	require.NoError(t, err)
	assert.Equal(t, '*', ox.Symbol)
	assert.Equal(t, "Plus1Oxy", ox.Tag)

	phos, err := d.Add(Definition{Mass: 79.966331, TargetResidues: "STY", Type: Dynamic})
	require.NoError(t, err)
	assert.Equal(t, '#', phos.Symbol)

	cam, err := d.Add(Definition{Mass: 57.021464, TargetResidues: "C", Type: Static})
	require.NoError(t, err)
	assert.Equal(t, rune(0), cam.Symbol)
	assert.Equal(t, "-", cam.SymbolString())
	assert.Equal(t, "IodoAcet", cam.Tag)

	// Identical definition is not duplicated.
	again, err := d.Add(Definition{Mass: 15.994915, TargetResidues: "M", Type: Dynamic})
	require.NoError(t, err)
	assert.Same(t, ox, again)
	assert.Equal(t, 3, d.Len())
}

func TestDictionary_AddSymbolConflict(t *testing.T) {
	d := NewDictionary(nil)
	_, err := d.Add(Definition{Mass: 15.994915, TargetResidues: "M", Type: Dynamic, Symbol: '*'})
	require.NoError(t, err)

	_, err = d.Add(Definition{Mass: 79.966331, TargetResidues: "S", Type: Dynamic, Symbol: '*'})
	require.ErrorIs(t, err, ErrSymbolInUse)
}

func TestDictionary_AddTerminalFromMarkers(t *testing.T) {
	d := NewDictionary(nil)
	def, err := d.Add(Definition{Mass: 42.010565, TargetResidues: "<", Type: Dynamic})
	require.NoError(t, err)
	assert.Equal(t, PeptideNTerminus, def.AppliesTo)
	assert.True(t, def.IsNTerminal())

	def, err = d.Add(Definition{Mass: 42.010565, TargetResidues: "[", Type: ProteinTerminusStatic})
	require.NoError(t, err)
	assert.Equal(t, ProteinNTerminus, def.AppliesTo)
	assert.True(t, def.IsStatic())
}

func TestDictionary_LookupOrDefine(t *testing.T) {
	d := NewDictionary(nil)
	ox, err := d.Add(Definition{Mass: 15.994915, TargetResidues: "M", Type: Dynamic})
	require.NoError(t, err)

	// Integer-mass tools match at precision 0.
	assert.Same(t, ox, d.LookupOrDefine(16, 'M', NotTerminal, 0))
	assert.Same(t, ox, d.LookupOrDefine(15.995, 'M', NotTerminal, 2))

	// Wrong residue defines a new modification.
	w := d.LookupOrDefine(15.995, 'W', NotTerminal, 2)
	assert.NotSame(t, ox, w)
	assert.True(t, w.AutoDefined)
	assert.Equal(t, "W", w.TargetResidues)
	assert.Equal(t, "Plus1Oxy", w.Tag)
	assert.NotEqual(t, ox.Symbol, w.Symbol)

	// Unknown mass gets an UnnamedMod tag, and the same mass is found next time.
	unk := d.LookupOrDefine(53.8, 'K', NotTerminal, 1)
	assert.Equal(t, "UnnamedMod1", unk.Tag)
	assert.Same(t, unk, d.LookupOrDefine(53.83, 'K', NotTerminal, 1))
	assert.LessOrEqual(t, len(unk.Tag), MaxTagLength)
}

func TestDictionary_LookupOrDefineClosestWins(t *testing.T) {
	d := NewDictionary(nil)
	a, _ := d.Add(Definition{Mass: 42.010565, Type: Dynamic})
	b, _ := d.Add(Definition{Mass: 42.04695, Type: Dynamic})

	assert.Same(t, b, d.LookupOrDefine(42.047, 'K', NotTerminal, 0))
	assert.Same(t, a, d.LookupOrDefine(42.0, 'K', NotTerminal, 0))

	// Equal distance goes to the first definition.
	c, _ := d.Add(Definition{Mass: 10.0, Type: Dynamic})
	_, _ = d.Add(Definition{Mass: 10.5, Type: Dynamic})
	assert.Same(t, c, d.LookupOrDefine(10.25, 'A', NotTerminal, 0))
}

func TestDictionary_LookupOrDefineTerminal(t *testing.T) {
	d := NewDictionary(nil)
	nterm, _ := d.Add(Definition{Mass: 14.01565, TargetResidues: "<", Type: Dynamic})

	assert.Same(t, nterm, d.LookupOrDefine(14, 'H', PeptideNTerm, 0))
	assert.Same(t, nterm, d.LookupOrDefine(14, 'H', ProteinNTerm, 0))

	// An internal residue does not match the N-terminal definition.
	internal := d.LookupOrDefine(14, 'K', NotTerminal, 0)
	assert.NotSame(t, nterm, internal)

	// Terminal auto definitions carry the terminus marker.
	cterm := d.LookupOrDefine(-0.984, 0, PeptideCTerm, 2)
	assert.Equal(t, PeptideCTerminus, cterm.AppliesTo)
	assert.Equal(t, ">", cterm.TargetResidues)
}

func TestDictionary_StaticNotReturnedByLookup(t *testing.T) {
	d := NewDictionary(nil)
	cam, _ := d.Add(Definition{Mass: 57.021464, TargetResidues: "C", Type: Static})

	dyn := d.LookupOrDefine(57.021, 'C', NotTerminal, 2)
	assert.NotSame(t, cam, dyn)

	found, ok := d.FindStatic(57.021, 'C', NotTerminal, 2)
	require.True(t, ok)
	assert.Same(t, cam, found)
	_, ok = d.FindStatic(57.021, 'K', NotTerminal, 2)
	assert.False(t, ok)
}

func TestDictionary_SymbolsNeverRunOut(t *testing.T) {
	d := NewDictionary(nil)
	seen := make(map[rune]bool)
	for i := 0; i < len(DefaultSymbols)+10; i++ {
		def := d.LookupOrDefine(100+float64(i), 'K', NotTerminal, 0)
		assert.False(t, seen[def.Symbol], "symbol %q reused", def.Symbol)
		seen[def.Symbol] = true
	}
}

func TestDictionary_SummaryDefinitions(t *testing.T) {
	d := NewDictionary(nil)
	user, _ := d.Add(Definition{Mass: 15.994915, TargetResidues: "M", Type: Dynamic})
	unused := d.LookupOrDefine(53.8, 'K', NotTerminal, 1)
	used := d.LookupOrDefine(99.1, 'R', NotTerminal, 1)
	d.RegisterOccurrence(used)
	d.RegisterOccurrence(nil)

	summary := d.SummaryDefinitions()
	assert.Contains(t, summary, user)
	assert.Contains(t, summary, used)
	assert.NotContains(t, summary, unused)
	assert.Equal(t, 1, used.Occurrences)
}

func TestParseMassCorrectionTags(t *testing.T) {
	data := "Mass_Correction_Tag\tMonoisotopic_Mass\tAverage_Mass\n" +
		"Plus1Oxy\t15.994915\t15.9994\n" +
		"# comment line\n" +
		"Phosph\t79.966331\t79.9799\n"

	tags, err := ParseMassCorrectionTags(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 2, tags.Len())

	tag, ok := tags.Lookup(79.9663, 3)
	require.True(t, ok)
	assert.Equal(t, "Phosph", tag)

	m, ok := tags.Mass("plus1oxy")
	require.True(t, ok)
	assert.InDelta(t, 15.994915, m, 1e-9)

	_, ok = tags.Lookup(500, 2)
	assert.False(t, ok)
}

func TestParseModDefs(t *testing.T) {
	data := "# PHRP modification definitions\n" +
		"Symbol\tMass\tResidues\tType\tTag\n" +
		"*\t15.994915\tM\tD\tPlus1Oxy\n" +
		"-\t57.021464\tC\tS\tIodoAcet\n" +
		"@\tPhosph\tSTY\tD\n" +
		"-\t42.010565\t<\tD\n"

	d := NewDictionary(nil)
	n, err := ParseModDefs(strings.NewReader(data), d)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	ox, ok := d.BySymbol('*')
	require.True(t, ok)
	assert.Equal(t, "M", ox.TargetResidues)

	phos, ok := d.BySymbol('@')
	require.True(t, ok)
	assert.Equal(t, "Phosph", phos.Tag)
	assert.InDelta(t, 79.966331, phos.Mass, 1e-6)

	assert.Len(t, d.Static(), 1)
	dyn := d.Dynamic()
	require.Len(t, dyn, 3)
	assert.Equal(t, PeptideNTerminus, dyn[2].AppliesTo)
	assert.Equal(t, "Acetyl", dyn[2].Tag)
}

func TestParseModDefs_Errors(t *testing.T) {
	d := NewDictionary(nil)
	_, err := ParseModDefs(strings.NewReader("*\t15.99\tM\n"), d)
	require.Error(t, err)

	_, err = ParseModDefs(strings.NewReader("*\t15.99\tM\tQ\n"), d)
	require.Error(t, err)

	_, err = ParseModDefs(strings.NewReader("*\t15.99\tM\tD\n*\t80\tS\tD\n"), d)
	require.ErrorIs(t, err, ErrSymbolInUse)
}

func TestParseType(t *testing.T) {
	for code, want := range map[string]Type{"S": Static, "d": Dynamic, "fix": Static, "opt": Dynamic, "I": Isotopic, "P": ProteinTerminusStatic} {
		got, err := ParseType(code)
		require.NoError(t, err, code)
		assert.Equal(t, want, got, code)
		assert.NotEqual(t, "U", got.Code())
	}
}
