package ddt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDocumentMixedGrammars(t *testing.T) {
	text := "D7264 | BIB PEPSI COLA 33CL | KAR | 3\n19332_FETTINE CARCIOFO - 33 KG\nGARBAGE LINE"

	res := Parser{}.ParseDocument(text)

	require.Len(t, res.Lines, 2)
	require.Equal(t, 1, res.Skipped)

	require.Equal(t, "D7264", res.Lines[0].ProductCode)
	require.Equal(t, "BIB PEPSI COLA 33CL", res.Lines[0].ProductName)
	require.Equal(t, "KAR", res.Lines[0].Unit)
	require.Equal(t, 3.0, res.Lines[0].Quantity)
	require.Equal(t, 1, res.Lines[0].LineNumber)

	require.Equal(t, "19332", res.Lines[1].ProductCode)
	require.Equal(t, "FETTINE CARCIOFO", res.Lines[1].ProductName)
	require.Equal(t, "KG", res.Lines[1].Unit)
	require.Equal(t, 33.0, res.Lines[1].Quantity)
	require.Equal(t, 2, res.Lines[1].LineNumber)
}

func TestParseDocumentSkipsBlankLines(t *testing.T) {
	text := "\n\nA1 | Mozzarella | KG | 2\n\n  \nB2 | Farina 00 | SACK | 5\n"

	res := Parser{}.ParseDocument(text)

	require.Len(t, res.Lines, 2)
	require.Equal(t, 0, res.Skipped)
	// Line numbers count non-blank lines only.
	require.Equal(t, 1, res.Lines[0].LineNumber)
	require.Equal(t, 2, res.Lines[1].LineNumber)
}

func TestParsePipeLineFieldCount(t *testing.T) {
	_, ok := Parser{}.ParseLine("a | b | c")
	require.False(t, ok)

	_, ok = Parser{}.ParseLine("a | b | c | d | e")
	require.False(t, ok)
}

func TestParsePipeLineNonNumericQuantity(t *testing.T) {
	// Legacy behavior keeps the line with a NaN quantity.
	line, ok := Parser{}.ParseLine("X9 | Pelati 400g | CT | tre")
	require.True(t, ok)
	require.True(t, math.IsNaN(line.Quantity))

	// Strict mode rejects it.
	_, ok = Parser{StrictQuantities: true}.ParseLine("X9 | Pelati 400g | CT | tre")
	require.False(t, ok)
}

func TestParseUnderscoreDashNameKeepsUnderscores(t *testing.T) {
	line, ok := Parser{}.ParseLine("77_SALSA_BBQ_PICCANTE - 4.5 KG")
	require.True(t, ok)
	require.Equal(t, "77", line.ProductCode)
	require.Equal(t, "SALSA_BBQ_PICCANTE", line.ProductName)
	require.Equal(t, 4.5, line.Quantity)
	require.Equal(t, "KG", line.Unit)
}

func TestParseUnderscoreDashRejectsBadQuantity(t *testing.T) {
	_, ok := Parser{}.ParseLine("77_SALSA - molti KG")
	require.False(t, ok)

	_, ok = Parser{}.ParseLine("77_SALSA - 3")
	require.False(t, ok)
}

func TestParseLineUnrecognized(t *testing.T) {
	for _, line := range []string{"GARBAGE LINE", "code_name senza dash", "just-a-dash - 3 KG"} {
		_, ok := Parser{}.ParseLine(line)
		require.False(t, ok, "line %q should not parse", line)
	}
}

func TestReconstructRawRoundTrip(t *testing.T) {
	text := "D7264 | BIB PEPSI COLA 33CL | KAR | 3\nA1 | Mozzarella | KG | 2.5"

	first := Parser{}.ParseDocument(text)
	rebuilt := ReconstructRaw(first.Lines)
	second := Parser{}.ParseDocument(rebuilt)

	require.Equal(t, first.Lines, second.Lines)
	require.Equal(t, 0, second.Skipped)
}

func TestParseDocumentDeterministic(t *testing.T) {
	text := "A1 | Mozzarella | KG | 2\n19332_FETTINE CARCIOFO - 33 KG"
	p := Parser{}
	require.Equal(t, p.ParseDocument(text), p.ParseDocument(text))
}
