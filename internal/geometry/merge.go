package geometry

import (
	"fmt"
	"sort"

	"github.com/joseph-ayodele/docextract/internal/common"
)

// Default merge tolerances.
const (
	DefaultGapRatio       = 0.5
	DefaultAlignmentRatio = 0.6
)

// Merger folds selected boxes into highlight rectangles. Two boxes merge when their
// y values differ by at most AlignmentRatio * max(height) and the horizontal gap
// between them is at most GapRatio * max(width).
type Merger struct {
	GapRatio       float64
	AlignmentRatio float64
}

// MergerOption configures a Merger.
type MergerOption func(*Merger)

func WithGapRatio(r float64) MergerOption {
	return func(m *Merger) { m.GapRatio = r }
}

func WithAlignmentRatio(r float64) MergerOption {
	return func(m *Merger) { m.AlignmentRatio = r }
}

func NewMerger(opts ...MergerOption) Merger {
	m := Merger{GapRatio: DefaultGapRatio, AlignmentRatio: DefaultAlignmentRatio}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// IndexNotFoundError reports a requested index with no known box.
func IndexNotFoundError(index int) error {
	return common.NewAppError(common.CodeIndexNotFound,
		fmt.Sprintf("no bounding box found for index %d", index), common.ErrIndexNotFound)
}

// Merge looks up every requested index in boxes and returns the merged rectangles.
// Duplicate indexes are ignored; an index missing from boxes is an error naming it.
// Output runs page by page in first-seen page order.
func (m Merger) Merge(indexes []int, boxes map[int]PageBox) ([]MergedBox, error) {
	if len(indexes) == 0 {
		return nil, common.InvalidInput("indexes cannot be empty")
	}

	seen := make(map[int]struct{}, len(indexes))
	var pageOrder []int
	byPage := make(map[int][]PageBox)
	for _, idx := range indexes {
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		box, ok := boxes[idx]
		if !ok {
			return nil, IndexNotFoundError(idx)
		}
		if _, ok := byPage[box.Page]; !ok {
			pageOrder = append(pageOrder, box.Page)
		}
		byPage[box.Page] = append(byPage[box.Page], box)
	}

	out := make([]MergedBox, 0, len(seen))
	for _, page := range pageOrder {
		out = append(out, m.mergePage(page, byPage[page])...)
	}
	return out, nil
}

func (m Merger) mergePage(page int, boxes []PageBox) []MergedBox {
	sorted := make([]PageBox, len(boxes))
	copy(sorted, boxes)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y < sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var merged []PageBox
	for _, b := range sorted {
		b.Page = page
		if n := len(merged); n > 0 && m.shouldMerge(merged[n-1], b) {
			merged[n-1] = union(merged[n-1], b)
			continue
		}
		merged = append(merged, b)
	}

	out := make([]MergedBox, len(merged))
	for i, b := range merged {
		out[i] = MergedBox{Page: b.Page, X: b.X, Y: b.Y, Width: b.Width, Height: b.Height}
	}
	return out
}

func (m Merger) shouldMerge(first, second PageBox) bool {
	if first.Page != second.Page {
		return false
	}
	aligned := abs(first.Y-second.Y) <= max(first.Height, second.Height)*m.AlignmentRatio
	gap := second.X - first.Right()
	return aligned && gap <= max(first.Width, second.Width)*m.GapRatio
}

func union(a, b PageBox) PageBox {
	x1 := min(a.X, b.X)
	y1 := min(a.Y, b.Y)
	x2 := max(a.Right(), b.Right())
	y2 := max(a.Bottom(), b.Bottom())
	return PageBox{Page: a.Page, Rect: Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// IndexWords keys word boxes by their global index.
func IndexWords(words []WordRecord) map[int]PageBox {
	out := make(map[int]PageBox, len(words))
	for _, w := range words {
		out[w.Index] = PageBox{Page: w.Page, Rect: w.BBox}
	}
	return out
}

// MergeWords merges the boxes of the requested words.
func (m Merger) MergeWords(indexes []int, words []WordRecord) ([]MergedBox, error) {
	return m.Merge(indexes, IndexWords(words))
}

// Locate merges the requested indexes against a client-supplied word payload.
func (m Merger) Locate(indexes []int, payload any) ([]MergedBox, error) {
	if len(indexes) == 0 {
		return nil, common.InvalidInput("indexes cannot be empty")
	}
	lookup, err := WordLookup(payload)
	if err != nil {
		return nil, err
	}
	return m.Merge(indexes, lookup)
}
