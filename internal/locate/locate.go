// Package locate maps extracted field values back to the lines that contain them.
package locate

import (
	"strings"
	"unicode"

	"github.com/joseph-ayodele/docextract/internal/geometry"
)

// MaxWindow is the largest number of consecutive lines joined when a value spans lines.
const MaxWindow = 3

// Citation is the evidence location of a value.
type Citation struct {
	Page      int    `json:"page"`
	BBox      [4]int `json:"bbox"`
	LineIndex int    `json:"line_index"`
}

// Strategy names the matching pass that produced citations.
type Strategy string

const (
	StrategyNone   Strategy = "none"
	StrategyExact  Strategy = "exact"
	StrategyWindow Strategy = "window"
)

// Locate returns the citations for value; an unlocatable value yields an empty slice.
func Locate(value string, lines []geometry.LineRecord) []Citation {
	c, _ := LocateWithStrategy(value, lines)
	return c
}

// LocateWithStrategy tries a per-line case-insensitive substring match first. Only when
// no line matches does it join 1..MaxWindow consecutive lines with whitespace removed
// and report the first window containing the value.
func LocateWithStrategy(value string, lines []geometry.LineRecord) ([]Citation, Strategy) {
	target := strings.TrimSpace(value)
	if target == "" || len(lines) == 0 {
		return []Citation{}, StrategyNone
	}

	if c := exactMatches(strings.ToLower(target), lines); len(c) > 0 {
		return c, StrategyExact
	}
	if c := windowMatch(compact(target), lines); len(c) > 0 {
		return c, StrategyWindow
	}
	return []Citation{}, StrategyNone
}

func exactMatches(needle string, lines []geometry.LineRecord) []Citation {
	var d dedup
	for _, l := range lines {
		if strings.Contains(strings.ToLower(l.Text), needle) {
			d.add(l)
		}
	}
	return d.out
}

// windowMatch stops at the first matching window; later occurrences are not reported.
func windowMatch(needle string, lines []geometry.LineRecord) []Citation {
	if needle == "" {
		return nil
	}
	compacted := make([]string, len(lines))
	for i, l := range lines {
		compacted[i] = compact(l.Text)
	}
	for size := 1; size <= MaxWindow; size++ {
		for start := 0; start+size <= len(lines); start++ {
			joined := strings.Join(compacted[start:start+size], "")
			if !strings.Contains(joined, needle) {
				continue
			}
			var d dedup
			for _, l := range lines[start : start+size] {
				d.add(l)
			}
			return d.out
		}
	}
	return nil
}

// compact lowercases s and drops every whitespace rune.
func compact(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

type dedup struct {
	seen map[int]struct{}
	out  []Citation
}

func (d *dedup) add(l geometry.LineRecord) {
	if d.seen == nil {
		d.seen = make(map[int]struct{})
	}
	if _, ok := d.seen[l.LineIndex]; ok {
		return
	}
	d.seen[l.LineIndex] = struct{}{}
	d.out = append(d.out, NewCitation(l))
}

// NewCitation builds the citation for a line; a line without geometry cites [0,0,0,0].
func NewCitation(l geometry.LineRecord) Citation {
	c := Citation{Page: l.Page, LineIndex: l.LineIndex}
	if l.HasBox() {
		c.BBox = l.BBox
	}
	if c.Page == 0 {
		c.Page = 1
	}
	return c
}

// LineIndexes returns the line indexes of citations in order.
func LineIndexes(citations []Citation) []int {
	out := make([]int, 0, len(citations))
	for _, c := range citations {
		out = append(out, c.LineIndex)
	}
	return out
}
