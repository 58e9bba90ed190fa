package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/extract"
	"github.com/joseph-ayodele/docextract/internal/llm"
	"github.com/joseph-ayodele/docextract/internal/ocr"
	"github.com/joseph-ayodele/docextract/internal/pipeline"
	"github.com/joseph-ayodele/docextract/internal/template"
)

const (
	sampleText  = "0x01: Invoice INV-001\n0x02: Total 150.00"
	llmReply    = `{"invoice_number":{"value":"INV-001"},"total":{"value":"150.00"}}`
	invoiceJSON = `{"invoice_number": {"description": "Invoice id"}, "total": {"description": "Amount due"}}`
)

type stubOCR struct{}

func (stubOCR) Submit(_ context.Context, _ []byte, opts ocr.SubmitOptions) (string, error) {
	return "hash-" + opts.FileName, nil
}

func (stubOCR) PollStatus(context.Context, string) (ocr.JobStatus, error) {
	return ocr.JobStatus{Status: constants.OCRStatusDone}, nil
}

func (stubOCR) WaitForCompletion(context.Context, string) (ocr.JobStatus, error) {
	return ocr.JobStatus{Status: constants.OCRStatusDone}, nil
}

func (stubOCR) Retrieve(context.Context, string) (*ocr.Extraction, error) {
	return &ocr.Extraction{Text: sampleText, Pages: 1}, nil
}

func (stubOCR) FetchHighlight(context.Context, string, string) (map[string]any, error) {
	return map[string]any{
		"line_metadata": []any{
			map[string]any{"line_index": 1, "raw_box": []any{1, 100, 20, 1000}},
			map[string]any{"line_index": 2, "raw_box": []any{1, 130, 20, 1000}},
		},
	}, nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "invoice.json"), []byte(invoiceJSON), 0o644))

	completer := llm.CompleterFunc(func(context.Context, llm.CompletionRequest) (string, error) {
		return llmReply, nil
	})
	return NewService(
		pipeline.NewProcessor(stubOCR{}, nil),
		extract.NewOrchestrator(completer, nil),
		template.NewStore(dir, template.NewMemoryCache(), nil),
		nil,
		WithDefaultTemplate("invoice"),
	)
}

func lineMetadataPayload() map[string]any {
	return map[string]any{
		"line_metadata": []any{
			map[string]any{"line_index": 1, "text": "Invoice INV-001", "raw_box": []any{1, 100, 20, 1000}},
			map[string]any{"line_index": 2, "text": "Total 150.00", "raw_box": []any{1, 130, 20, 0}},
		},
	}
}

func wordPayload() map[string]any {
	return map[string]any{
		"words": []any{
			map[string]any{"index": 0, "page": 1, "bbox": map[string]any{"x": 0, "y": 100, "width": 50, "height": 20}},
			map[string]any{"index": 1, "page": 1, "bbox": map[string]any{"x": 55, "y": 100, "width": 50, "height": 20}},
		},
	}
}
