package extract

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/geometry"
	"github.com/joseph-ayodele/docextract/internal/llm"
	"github.com/joseph-ayodele/docextract/internal/locate"
	"github.com/joseph-ayodele/docextract/internal/template"
)

type scriptedCompleter struct {
	replies []string
	errs    []error
	calls   atomic.Int32
	last    llm.CompletionRequest
}

func (s *scriptedCompleter) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	i := int(s.calls.Add(1)) - 1
	s.last = req
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "", errors.New("no scripted reply")
}

func invoiceTemplate(t *testing.T) *template.Template {
	t.Helper()
	tpl, err := template.Parse("invoice", []byte(`{"invoice_number": {"description": "Invoice id"}, "total": {"description": "Amount due"}}`))
	require.NoError(t, err)
	return tpl
}

func invoiceLines() []geometry.LineRecord {
	return []geometry.LineRecord{
		{LineIndex: 0, Text: "Invoice No: INV-001", Page: 1, BBox: [4]int{1, 10, 12, 800}},
		{LineIndex: 1, Text: "Total Due: 150.00", Page: 1, BBox: [4]int{1, 30, 12, 800}},
	}
}

func newTestOrchestrator(c llm.Completer) *Orchestrator {
	return NewOrchestrator(c, nil, WithRetryPolicy(llm.RetryPolicy{Attempts: 2}))
}

func TestExtractEndToEnd(t *testing.T) {
	c := &scriptedCompleter{replies: []string{`{"invoice_number":{"value":"INV-001"}, "total":{"value":"150.00"}}`}}
	lines := invoiceLines()

	res, err := newTestOrchestrator(c).Extract(context.Background(), Request{
		Text:     "Invoice No: INV-001\nTotal Due: 150.00",
		Template: invoiceTemplate(t),
		Lines:    lines,
		Words:    geometry.SynthesizeWords(lines),
	})
	require.NoError(t, err)

	assert.Equal(t, constants.ExtractReturned, res.State)
	assert.False(t, res.Degraded)
	assert.Equal(t, 1, res.Attempts)

	inv := res.Fields["invoice_number"]
	assert.Equal(t, "INV-001", inv.Value)
	assert.Equal(t, []locate.Citation{{Page: 1, BBox: [4]int{1, 10, 12, 800}, LineIndex: 0}}, inv.Citations)
	assert.Equal(t, []int{0}, inv.LineIndexes)
	assert.Equal(t, []int{2}, inv.WordIndexes)

	total := res.Fields["total"]
	assert.Equal(t, "150.00", total.Value)
	assert.Equal(t, []locate.Citation{{Page: 1, BBox: [4]int{1, 30, 12, 800}, LineIndex: 1}}, total.Citations)
	assert.Equal(t, []int{5}, total.WordIndexes)

	assert.True(t, c.last.JSONMode)
	assert.Contains(t, c.last.User, "invoice_number")
	assert.Equal(t, []string{"invoice_number", "total"}, []string{res.Ordered()[0].Key, res.Ordered()[1].Key})
}

func TestExtractDegradesToEmptyFields(t *testing.T) {
	c := &scriptedCompleter{errs: []error{errors.New("timeout"), errors.New("timeout")}}
	res, err := newTestOrchestrator(c).Extract(context.Background(), Request{
		Text:     "Invoice No: INV-001",
		Template: invoiceTemplate(t),
		Lines:    invoiceLines(),
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), c.calls.Load())
	assert.True(t, res.Degraded)
	assert.Equal(t, constants.ExtractReturned, res.State)

	require.Len(t, res.Fields, 2)
	for _, k := range []string{"invoice_number", "total"} {
		f, ok := res.Fields[k]
		require.True(t, ok, k)
		assert.Equal(t, "", f.Value)
		assert.NotNil(t, f.Citations)
		assert.Empty(t, f.Citations)
		assert.NotNil(t, f.LineIndexes)
		assert.Empty(t, f.LineIndexes)
		assert.NotNil(t, f.WordIndexes)
	}
}

func TestExtractRetriesMalformedOutput(t *testing.T) {
	c := &scriptedCompleter{replies: []string{"I cannot help with that", "```json\n{\"total\": \"150.00\"}\n```"}}
	res, err := newTestOrchestrator(c).Extract(context.Background(), Request{
		Template: invoiceTemplate(t),
		Lines:    invoiceLines(),
	})
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, "150.00", res.Fields["total"].Value)
	assert.Equal(t, "", res.Fields["invoice_number"].Value, "missing key is synthesized")
	assert.Empty(t, res.Fields["invoice_number"].Citations)
}

func TestExtractRetriesWronglyTypedValue(t *testing.T) {
	c := &scriptedCompleter{replies: []string{
		`{"total":{"value":{"nested":1}}}`,
		`{"total":{"value":"150.00"}}`,
	}}
	res, err := newTestOrchestrator(c).Extract(context.Background(), Request{
		Template: invoiceTemplate(t),
		Lines:    invoiceLines(),
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), c.calls.Load())
	assert.Equal(t, 2, res.Attempts)
	assert.False(t, res.Degraded)
	assert.Equal(t, "150.00", res.Fields["total"].Value)
}

func TestExtractDegradesWhenEveryReplyIsWronglyTyped(t *testing.T) {
	c := &scriptedCompleter{replies: []string{
		`{"total":{"value":{"nested":1}}}`,
		`{"invoice_number":[{"a":1}]}`,
	}}
	res, err := newTestOrchestrator(c).Extract(context.Background(), Request{
		Template: invoiceTemplate(t),
		Lines:    invoiceLines(),
	})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, "", res.Fields["total"].Value)
	assert.Equal(t, "", res.Fields["invoice_number"].Value)
}

func TestExtractDropsUnknownKeys(t *testing.T) {
	c := &scriptedCompleter{replies: []string{`{"results": [{"key": "total", "value": "150.00"}, {"key": "iban", "value": "DE00"}]}`}}
	res, err := newTestOrchestrator(c).Extract(context.Background(), Request{
		Template: invoiceTemplate(t),
		Lines:    invoiceLines(),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"iban"}, res.Dropped)
	_, leaked := res.Fields["iban"]
	assert.False(t, leaked)
	assert.Len(t, res.Fields, 2)
}

func TestExtractNormalizesRawBoundingBoxes(t *testing.T) {
	payload := map[string]any{
		"line_metadata": []any{
			map[string]any{"line_no": float64(1), "text": "Invoice No: INV-001", "raw_box": []any{float64(1), float64(10), float64(12), float64(800)}},
			map[string]any{"line_no": float64(2), "text": "Total Due: 150.00", "raw_box": []any{float64(0), float64(0), float64(0), float64(0)}},
		},
		"words": []any{
			map[string]any{"index": float64(0), "text": "INV-001", "page": float64(1), "line_index": float64(1),
				"bbox": map[string]any{"x": float64(0), "y": float64(10), "width": float64(40), "height": float64(12)}},
			map[string]any{"index": float64(1), "text": "INV-001", "page": float64(1),
				"bbox": map[string]any{"x": float64(0), "y": float64(10), "width": float64(40), "height": float64(12)}},
		},
	}
	c := &scriptedCompleter{replies: []string{`{"invoice_number": {"value": "INV-001"}, "total": {"value": "150.00"}}`}}
	res, err := newTestOrchestrator(c).Extract(context.Background(), Request{
		Template:      invoiceTemplate(t),
		BoundingBoxes: payload,
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, res.Fields["invoice_number"].LineIndexes)
	assert.Equal(t, []int{0}, res.Fields["invoice_number"].WordIndexes)
	assert.Empty(t, res.Fields["total"].Citations, "placeholder line was dropped")
	assert.Equal(t, "150.00", res.Fields["total"].Value)
}

func TestExtractWithoutCompleter(t *testing.T) {
	res, err := NewOrchestrator(nil, nil).Extract(context.Background(), Request{Template: invoiceTemplate(t)})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, 0, res.Attempts)
	assert.Len(t, res.Fields, 2)
}

func TestExtractRequiresTemplate(t *testing.T) {
	_, err := NewOrchestrator(nil, nil).Extract(context.Background(), Request{})
	assert.Equal(t, common.CodeInvalidInput, common.CodeOf(err))
}
