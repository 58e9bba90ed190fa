package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseHexLineNumbers(t *testing.T) {
	text := "0x0A: ten\n0x01: one\n0x02: two\n0x01: again\nno marker"
	assert.Equal(t, []int{1, 2, 10}, ParseHexLineNumbers(text))
	assert.Empty(t, ParseHexLineNumbers("plain text"))
}

func TestCompressLineRange(t *testing.T) {
	tests := []struct {
		in   []int
		want string
	}{
		{nil, "1"},
		{[]int{4}, "4"},
		{[]int{1, 2, 3, 7}, "1-3,7"},
		{[]int{1, 3, 4, 5, 9, 10}, "1,3-5,9-10"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CompressLineRange(tt.in))
	}
}

func TestExtractResultText(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
		want string
	}{
		{"top level", map[string]any{"result_text": "a"}, "a"},
		{"extraction", map[string]any{"extraction": map[string]any{"result_text": "b"}}, "b"},
		{"double nested", map[string]any{"extraction": map[string]any{"extraction": map[string]any{"result_text": "c"}}}, "c"},
		{"text key", map[string]any{"text": "d"}, "d"},
		{"extraction text", map[string]any{"extraction": map[string]any{"text": "e"}}, "e"},
		{"result_text wins", map[string]any{"text": "x", "extraction": map[string]any{"result_text": "f"}}, "f"},
		{"none", map[string]any{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractResultText(tt.data))
		})
	}
}

func TestExtractNested_SkipsEmpty(t *testing.T) {
	data := map[string]any{
		"line_metadata": []any{},
		"extraction": map[string]any{
			"line_metadata": []any{map[string]any{"line_no": 1}},
		},
	}
	got := ExtractNested(data, "line_metadata")
	assert.Len(t, got, 1)
	assert.Nil(t, ExtractNested(data, "pages"))
}
