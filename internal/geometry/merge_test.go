package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docextract/internal/common"
)

func box(page int, x, y, w, h float64) PageBox {
	return PageBox{Page: page, Rect: Rect{X: x, Y: y, Width: w, Height: h}}
}

func TestMergeIdenticalBoxes(t *testing.T) {
	got, err := NewMerger().Merge([]int{0, 1}, map[int]PageBox{
		0: box(1, 10, 10, 20, 5),
		1: box(1, 10, 10, 20, 5),
	})
	require.NoError(t, err)
	assert.Equal(t, []MergedBox{{Page: 1, X: 10, Y: 10, Width: 20, Height: 5}}, got)
}

func TestMergeGapBoundary(t *testing.T) {
	m := NewMerger()
	tests := []struct {
		name   string
		secX   float64
		merged int
	}{
		{"gap at threshold merges", 15, 1},
		{"gap past threshold splits", 15.0001, 2},
		{"overlap merges", 8, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := m.Merge([]int{0, 1}, map[int]PageBox{
				0: box(1, 0, 0, 10, 5),
				1: box(1, tc.secX, 0, 10, 5),
			})
			require.NoError(t, err)
			assert.Len(t, got, tc.merged)
		})
	}

	got, err := m.Merge([]int{0, 1}, map[int]PageBox{0: box(1, 0, 0, 10, 5), 1: box(1, 15, 0, 10, 5)})
	require.NoError(t, err)
	assert.Equal(t, MergedBox{Page: 1, X: 0, Y: 0, Width: 25, Height: 5}, got[0])
}

func TestMergeVerticalAlignment(t *testing.T) {
	m := NewMerger()
	got, err := m.Merge([]int{0, 1}, map[int]PageBox{0: box(1, 0, 0, 10, 10), 1: box(1, 10, 6, 10, 10)})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = m.Merge([]int{0, 1}, map[int]PageBox{0: box(1, 0, 0, 10, 10), 1: box(1, 10, 6.5, 10, 10)})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestMergeOverridableRatios(t *testing.T) {
	boxes := map[int]PageBox{0: box(1, 0, 0, 10, 5), 1: box(1, 15, 0, 10, 5)}
	got, err := NewMerger(WithGapRatio(0.1)).Merge([]int{0, 1}, boxes)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = NewMerger(WithAlignmentRatio(0)).Merge([]int{0, 1}, map[int]PageBox{
		0: box(1, 0, 0, 10, 5), 1: box(1, 10, 1, 10, 5),
	})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestMergeSortsAndGroupsByPage(t *testing.T) {
	boxes := map[int]PageBox{
		0: box(2, 50, 10, 10, 5),
		1: box(1, 0, 10, 10, 5),
		2: box(2, 0, 10, 10, 5),
		3: box(2, 12, 10, 10, 5),
	}
	got, err := NewMerger().Merge([]int{0, 1, 2, 3, 0}, boxes)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, MergedBox{Page: 2, X: 0, Y: 10, Width: 22, Height: 5}, got[0])
	assert.Equal(t, MergedBox{Page: 2, X: 50, Y: 10, Width: 10, Height: 5}, got[1])
	assert.Equal(t, 1, got[2].Page)
}

func TestMergeUnknownIndex(t *testing.T) {
	words := SynthesizeWords([]LineRecord{{LineIndex: 0, Text: "a b c d e", Page: 1, BBox: [4]int{1, 10, 12, 800}}})
	require.Len(t, words, 5)

	_, err := NewMerger().MergeWords([]int{5}, words)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrIndexNotFound)
	assert.Equal(t, common.CodeIndexNotFound, common.CodeOf(err))
	assert.Contains(t, err.Error(), "index 5")

	_, err = NewMerger().MergeWords(nil, words)
	assert.Equal(t, common.CodeInvalidInput, common.CodeOf(err))
}

func TestLocateWordPayload(t *testing.T) {
	payload := decode(t, `{
		"words": [
			{"index": 0, "page": 1, "bbox": {"x": 0, "y": 0, "width": 10, "height": 5}},
			{"index": 1, "page": 1, "bbox": {"x": 12, "y": 0, "width": 10, "height": 5}},
			{"page": 1, "bbox": {"x": 0, "y": 0, "width": 1, "height": 1}}
		],
		"pages": [
			{"page": 2, "words": [{"index": 2, "bounding_box": {"left": 0, "top": 0, "right": 10, "bottom": 5}}]}
		]
	}`)

	got, err := NewMerger().Locate([]int{2, 0, 1}, payload)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, MergedBox{Page: 2, X: 0, Y: 0, Width: 10, Height: 5}, got[0])
	assert.Equal(t, MergedBox{Page: 1, X: 0, Y: 0, Width: 22, Height: 5}, got[1])

	_, err = NewMerger().Locate([]int{9}, payload)
	assert.Equal(t, common.CodeIndexNotFound, common.CodeOf(err))
}

func TestWordLookupRejectsPayloadWithoutWords(t *testing.T) {
	_, err := WordLookup(decode(t, `{"line_metadata": []}`))
	assert.Equal(t, common.CodeInvalidInput, common.CodeOf(err))

	_, err = WordLookup([]any{})
	assert.Equal(t, common.CodeInvalidInput, common.CodeOf(err))
}

func TestWordLookupAcceptsProcessorOutput(t *testing.T) {
	words := SynthesizeWords(sampleLines())
	raw := map[string]any{"bounding_boxes": map[string]any{"words": toAny(t, words)}}
	lookup, err := WordLookup(raw)
	require.NoError(t, err)
	assert.Len(t, lookup, len(words))
	assert.Equal(t, words[4].BBox, lookup[4].Rect)
}

func TestHighlightLines(t *testing.T) {
	lines := sampleLines()
	got, err := HighlightLines([]int{3, 1}, lines)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].LineNumber)
	assert.Equal(t, 2, got[0].Page)
	assert.Nil(t, got[0].PageHeight)
	require.NotNil(t, got[1].PageHeight)
	assert.Equal(t, 800.0, *got[1].PageHeight)
	assert.Equal(t, 10.0, got[1].Y)
	assert.Equal(t, 0.0, got[1].X)

	_, err = HighlightLines([]int{42}, lines)
	assert.Equal(t, common.CodeIndexNotFound, common.CodeOf(err))
	_, err = HighlightLines(nil, lines)
	assert.Equal(t, common.CodeInvalidInput, common.CodeOf(err))
}
