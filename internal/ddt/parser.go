package ddt

import (
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Line is one structured line item parsed out of the free-text body of a
// delivery note. Lines are derived on demand and never persisted.
type Line struct {
	LineNumber   int     `json:"riga"`
	ProductCode  string  `json:"codice"`
	ProductName  string  `json:"prodotto"`
	Unit         string  `json:"unita"`
	Quantity     float64 `json:"quantita"`
	OriginalLine string  `json:"testo_originale"`
}

// Parser converts delivery-note text into structured lines. Suppliers emit
// two disjoint line formats:
//
//	pipe-delimited:    code | name | unit | quantity
//	underscore-dash:   code_name - quantity unit
//
// A line matching neither format is skipped, not fatal: one bad line never
// aborts the rest of the document.
type Parser struct {
	// StrictQuantities rejects pipe-delimited lines whose quantity field is
	// not numeric. The legacy behavior keeps them with a NaN quantity.
	StrictQuantities bool
}

// Result is the outcome of a document parse.
type Result struct {
	Lines   []Line
	Skipped int
}

// ParseDocument splits text on newlines, drops blank lines and applies the
// line parser, preserving 1-based line numbers of the non-blank lines.
func (p Parser) ParseDocument(text string) Result {
	var res Result
	lineNo := 0
	for _, raw := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		lineNo++
		line, ok := p.ParseLine(trimmed)
		if !ok {
			res.Skipped++
			log.Debug().Int("line", lineNo).Str("text", trimmed).Msg("unrecognized DDT line skipped")
			continue
		}
		line.LineNumber = lineNo
		line.OriginalLine = trimmed
		res.Lines = append(res.Lines, line)
	}
	return res
}

// ParseLine parses a single trimmed line under either grammar. The boolean
// is false when the line matches neither.
func (p Parser) ParseLine(line string) (Line, bool) {
	if strings.Contains(line, "|") {
		return p.parsePipeLine(line)
	}
	if strings.Contains(line, "_") && strings.Contains(line, " - ") {
		return parseUnderscoreDashLine(line)
	}
	return Line{}, false
}

// parsePipeLine handles `code | name | unit | quantity`. Exactly four fields
// are required.
func (p Parser) parsePipeLine(line string) (Line, bool) {
	parts := strings.Split(line, "|")
	if len(parts) != 4 {
		return Line{}, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	qty, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		if p.StrictQuantities {
			return Line{}, false
		}
		qty = math.NaN()
	}
	return Line{
		ProductCode: parts[0],
		ProductName: parts[1],
		Unit:        parts[2],
		Quantity:    qty,
	}, true
}

// parseUnderscoreDashLine handles `code_name - quantity unit`. The left part
// splits on the first underscore only, so the name may itself contain
// underscores. The right part takes the first token as quantity and the last
// as unit.
func parseUnderscoreDashLine(line string) (Line, bool) {
	left, right, found := strings.Cut(line, " - ")
	if !found {
		return Line{}, false
	}
	code, name, found := strings.Cut(strings.TrimSpace(left), "_")
	if !found {
		return Line{}, false
	}
	tokens := strings.Fields(right)
	if len(tokens) < 2 {
		return Line{}, false
	}
	qty, err := strconv.ParseFloat(tokens[0], 64)
	if err != nil || math.IsInf(qty, 0) || math.IsNaN(qty) {
		return Line{}, false
	}
	return Line{
		ProductCode: strings.TrimSpace(code),
		ProductName: strings.TrimSpace(name),
		Unit:        tokens[len(tokens)-1],
		Quantity:    qty,
	}, true
}

// ReconstructRaw renders parsed lines back into pipe-delimited text. Used by
// movement batches to synthesize the DDT body of auto-generated invoices.
func ReconstructRaw(lines []Line) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.ProductCode)
		b.WriteString(" | ")
		b.WriteString(l.ProductName)
		b.WriteString(" | ")
		b.WriteString(l.Unit)
		b.WriteString(" | ")
		b.WriteString(formatQuantity(l.Quantity))
	}
	return b.String()
}

func formatQuantity(q float64) string {
	if math.IsNaN(q) {
		return ""
	}
	return strconv.FormatFloat(q, 'f', -1, 64)
}
