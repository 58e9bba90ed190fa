package ocr

import (
	"context"

	"github.com/joseph-ayodele/docextract/constants"
)

// Provider is the OCR service contract. Response payloads vary by provider version
// and are kept untyped for geometry.Normalizer.
type Provider interface {
	Submit(ctx context.Context, content []byte, opts SubmitOptions) (string, error)
	PollStatus(ctx context.Context, hash string) (JobStatus, error)
	WaitForCompletion(ctx context.Context, hash string) (JobStatus, error)
	Retrieve(ctx context.Context, hash string) (*Extraction, error)
	FetchHighlight(ctx context.Context, hash string, lineRange string) (map[string]any, error)
}

// SubmitOptions mirror the provider's query parameters.
type SubmitOptions struct {
	Mode           string // "form" | "high_quality" | "low_cost" | "native_text"
	OutputMode     string // "layout_preserving" | "text"
	AddLineNumbers bool
	FileName       string
}

// DefaultSubmitOptions returns layout-preserving output with line-number markers.
func DefaultSubmitOptions(mode string) SubmitOptions {
	if mode == "" {
		mode = "form"
	}
	return SubmitOptions{Mode: mode, OutputMode: "layout_preserving", AddLineNumbers: true}
}

// JobStatus is one status poll.
type JobStatus struct {
	Status  constants.OCRStatus
	Raw     string
	Message string
}

// Extraction is the retrieved OCR result.
type Extraction struct {
	Text         string
	LineMetadata any
	Pages        any
	Raw          map[string]any
}
