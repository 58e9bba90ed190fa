package geometry

import (
	"regexp"
	"strings"
)

// Width estimation placeholders. The provider reports no horizontal extent per line,
// so these stand in until real measurements exist.
const (
	// PageWidthRatio approximates an A4 portrait page width from its height.
	PageWidthRatio = 0.707
	// LineHeightWidthFactor estimates a line width from its height when the page height is unknown.
	LineHeightWidthFactor = 50.0
)

var hexMarkerRe = regexp.MustCompile(`0x[0-9A-Fa-f]+:\s*`)

// StripLineMarkers removes the provider's "0x<hex>:" line-number markers.
func StripLineMarkers(s string) string {
	return hexMarkerRe.ReplaceAllString(s, "")
}

// EstimateLineWidth returns the assumed renderable width of a line.
func EstimateLineWidth(l LineRecord) float64 {
	if ph := l.PageHeight(); ph > 0 {
		return float64(ph) * PageWidthRatio
	}
	return float64(l.Height()) * LineHeightWidthFactor
}

// SynthesizeWords splits every line into whitespace tokens and spreads the line's
// estimated width across them in proportion to token length. Indexes run 0..n-1
// across the whole document.
func SynthesizeWords(lines []LineRecord) []WordRecord {
	words := make([]WordRecord, 0, len(lines)*4)
	next := 0
	for _, line := range lines {
		tokens := strings.Fields(StripLineMarkers(line.Text))
		if len(tokens) == 0 {
			continue
		}
		totalChars := 0
		for _, t := range tokens {
			totalChars += len([]rune(t))
		}
		if totalChars == 0 {
			continue
		}
		width := EstimateLineWidth(line)
		height := float64(line.Height())
		if width <= 0 || height <= 0 {
			continue
		}

		x := 0.0
		y := float64(line.Y())
		for _, t := range tokens {
			w := width * float64(len([]rune(t))) / float64(totalChars)
			words = append(words, WordRecord{
				Index: next,
				Text:  t,
				Page:  line.Page,
				Line:  line.LineIndex,
				BBox:  Rect{X: x, Y: y, Width: w, Height: height},
			})
			x += w
			next++
		}
	}
	return words
}

// WordsOnLine returns the words synthesized from the given line index.
func WordsOnLine(words []WordRecord, lineIndex int) []WordRecord {
	var out []WordRecord
	for _, w := range words {
		if w.Line == lineIndex {
			out = append(out, w)
		}
	}
	return out
}
