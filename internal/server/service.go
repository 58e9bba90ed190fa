// Package server exposes document processing over gRPC and an HTTP JSON API.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/docextract/internal/artifact"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/extract"
	"github.com/joseph-ayodele/docextract/internal/geometry"
	"github.com/joseph-ayodele/docextract/internal/pipeline"
	"github.com/joseph-ayodele/docextract/internal/template"
)

// ExtractFieldsRequest is the body of /extract-fields. Either TemplateJSON or
// TemplateName selects the template; the configured default is used otherwise.
type ExtractFieldsRequest struct {
	FullText      string                `json:"fullText"`
	FileName      string                `json:"fileName,omitempty"`
	TemplateName  string                `json:"templateName,omitempty"`
	TemplateJSON  json.RawMessage       `json:"templateJson,omitempty"`
	BoundingBoxes any                   `json:"boundingBoxes,omitempty"`
	WordList      []geometry.WordRecord `json:"wordList,omitempty"`
}

// ExtractedField is one entry of the /extract-fields response.
type ExtractedField struct {
	Key string `json:"key"`
	extract.Field
}

type HighlightRequest struct {
	LineIndexes   []int `json:"lineIndexes"`
	BoundingBoxes any   `json:"boundingBoxes"`
}

type LocateRequest struct {
	Indexes       []int                 `json:"indexes"`
	BoundingBoxes any                   `json:"boundingBoxes"`
	WordList      []geometry.WordRecord `json:"wordList,omitempty"`
}

// Service implements the document operations independent of transport.
type Service struct {
	processor       *pipeline.Processor
	extractor       *extract.Orchestrator
	templates       *template.Store
	defaultTemplate string
	merger          geometry.Merger
	normalizer      *geometry.Normalizer
	recorder        *artifact.Recorder
	logger          *slog.Logger
}

type ServiceOption func(*Service)

func WithDefaultTemplate(name string) ServiceOption {
	return func(s *Service) { s.defaultTemplate = name }
}

func WithMerger(m geometry.Merger) ServiceOption {
	return func(s *Service) { s.merger = m }
}

func WithRecorder(r *artifact.Recorder) ServiceOption {
	return func(s *Service) { s.recorder = r }
}

func NewService(processor *pipeline.Processor, extractor *extract.Orchestrator, templates *template.Store, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		processor:  processor,
		extractor:  extractor,
		templates:  templates,
		merger:     geometry.NewMerger(),
		normalizer: geometry.NewNormalizer(logger),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload runs every file through OCR and returns the documents in input order.
func (s *Service) Upload(ctx context.Context, uploads []pipeline.Upload) ([]*pipeline.Document, error) {
	start := time.Now()
	docs, err := s.processor.ProcessAll(ctx, uploads)
	if err != nil {
		s.logger.Error("upload.failed", "req_id", common.RequestIDFromContext(ctx), "files", len(uploads), "error", err)
		return nil, err
	}
	s.logger.Info("upload.ok", "req_id", common.RequestIDFromContext(ctx), "files", len(docs), "elapsed_ms", time.Since(start).Milliseconds())
	return docs, nil
}

// ExtractFields asks the LLM for the template's fields and cites each value.
func (s *Service) ExtractFields(ctx context.Context, req ExtractFieldsRequest) ([]ExtractedField, error) {
	if err := common.NewValidator().
		Field("fullText", req.FullText, common.Required).
		Field("templateName", req.TemplateName, common.TemplateName).
		Err(); err != nil {
		return nil, err
	}
	tmpl, err := s.resolveTemplate(req)
	if err != nil {
		return nil, err
	}

	res, err := s.extractor.Extract(ctx, extract.Request{
		Text:          req.FullText,
		Template:      tmpl,
		FileName:      req.FileName,
		BoundingBoxes: req.BoundingBoxes,
		Words:         req.WordList,
	})
	if err != nil {
		return nil, err
	}
	if req.FileName != "" {
		s.recorder.SaveFields(ctx, req.FileName, res)
	}

	out := make([]ExtractedField, 0, len(res.Keys))
	for _, f := range res.Ordered() {
		out = append(out, ExtractedField{Key: f.Key, Field: f.Field})
	}
	return out, nil
}

func (s *Service) resolveTemplate(req ExtractFieldsRequest) (*template.Template, error) {
	if raw := bytes.TrimSpace(req.TemplateJSON); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		name := req.TemplateName
		if name == "" {
			name = "inline"
		}
		return template.ParseInline(name, raw)
	}
	name := req.TemplateName
	if name == "" {
		name = s.defaultTemplate
	}
	if name == "" || s.templates == nil {
		return nil, common.InvalidInput("templateJson or templateName is required")
	}
	return s.templates.Load(name)
}

// Highlight returns one rectangle per requested line number.
func (s *Service) Highlight(ctx context.Context, req HighlightRequest) ([]geometry.LineHighlight, error) {
	if len(req.LineIndexes) == 0 {
		return nil, common.InvalidInput("lineIndexes cannot be empty")
	}
	lines := s.normalizer.Normalize(req.BoundingBoxes, "")
	out, err := geometry.HighlightLines(req.LineIndexes, lines)
	if err != nil {
		s.logger.Warn("highlight.failed", "req_id", common.RequestIDFromContext(ctx), "error", err)
		return nil, err
	}
	return out, nil
}

// Locate merges the selected word boxes into per-page highlight rectangles.
// A wordList echoed back from an upload takes precedence over boundingBoxes.
func (s *Service) Locate(ctx context.Context, req LocateRequest) ([]geometry.MergedBox, error) {
	var (
		out []geometry.MergedBox
		err error
	)
	if len(req.WordList) > 0 {
		out, err = s.merger.MergeWords(req.Indexes, req.WordList)
	} else {
		out, err = s.merger.Locate(req.Indexes, req.BoundingBoxes)
	}
	if err != nil {
		s.logger.Warn("locate.failed", "req_id", common.RequestIDFromContext(ctx), "error", err)
		return nil, err
	}
	return out, nil
}
