package geometry

import (
	"github.com/joseph-ayodele/docextract/internal/common"
)

// LineHighlight is the vertical-only highlight of one line. X and Width are always
// zero because line metadata carries no horizontal extent.
type LineHighlight struct {
	LineNumber int      `json:"line_number"`
	Page       int      `json:"page"`
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Width      float64  `json:"width"`
	Height     float64  `json:"height"`
	PageHeight *float64 `json:"page_height"`
}

// HighlightLines resolves each requested line number against lines, in request order.
func HighlightLines(lineNumbers []int, lines []LineRecord) ([]LineHighlight, error) {
	if len(lineNumbers) == 0 {
		return nil, common.InvalidInput("lineIndexes cannot be empty")
	}
	byIndex := make(map[int]LineRecord, len(lines))
	for _, l := range lines {
		if _, ok := byIndex[l.LineIndex]; !ok {
			byIndex[l.LineIndex] = l
		}
	}

	out := make([]LineHighlight, 0, len(lineNumbers))
	for _, n := range lineNumbers {
		l, ok := byIndex[n]
		if !ok {
			return nil, IndexNotFoundError(n)
		}
		page := l.Page
		if page == 0 {
			page = 1
		}
		h := LineHighlight{
			LineNumber: n,
			Page:       page,
			Y:          float64(l.Y()),
			Height:     float64(l.Height()),
		}
		if ph := l.PageHeight(); ph != 0 {
			v := float64(ph)
			h.PageHeight = &v
		}
		out = append(out, h)
	}
	return out, nil
}
