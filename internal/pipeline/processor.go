// Package pipeline turns uploaded documents into OCR text plus normalized line and word geometry.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/artifact"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/geometry"
	"github.com/joseph-ayodele/docextract/internal/ocr"
)

// DefaultConcurrency bounds how many files of one upload are processed at once.
const DefaultConcurrency = 4

// Upload is one file received from a client.
type Upload struct {
	FileName string
	Content  []byte
}

type BoundingBoxes struct {
	Words        []geometry.WordRecord `json:"words"`
	LineMetadata []geometry.LineRecord `json:"line_metadata"`
}

// Document is the processed result for one upload.
type Document struct {
	FileName      string        `json:"file_name"`
	Text          string        `json:"text"`
	WhisperHash   string        `json:"whisper_hash"`
	BoundingBoxes BoundingBoxes `json:"bounding_boxes"`
	Pages         any           `json:"pages"`
}

// Processor coordinates OCR, geometry normalization and artifact capture.
type Processor struct {
	logger      *slog.Logger
	ocr         ocr.Provider
	normalizer  *geometry.Normalizer
	recorder    *artifact.Recorder
	mode        string
	concurrency int
}

type Option func(*Processor)

func WithRecorder(r *artifact.Recorder) Option { return func(p *Processor) { p.recorder = r } }

func WithMode(mode string) Option { return func(p *Processor) { p.mode = mode } }

func WithConcurrency(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

func NewProcessor(provider ocr.Provider, logger *slog.Logger, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		logger:      logger,
		ocr:         provider,
		normalizer:  geometry.NewNormalizer(logger),
		mode:        "form",
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessFile runs one upload through OCR and geometry normalization.
func (p *Processor) ProcessFile(ctx context.Context, up Upload) (*Document, error) {
	start := time.Now()
	rid := common.RequestIDFromContext(ctx)

	if err := validateUpload(up); err != nil {
		p.logger.Warn("processor.validate.failed", "req_id", rid, "file_name", up.FileName, "error", err)
		return nil, err
	}
	p.recorder.SaveInput(ctx, up.FileName, up.Content)

	res, err := p.runOCR(ctx, up)
	if err != nil {
		p.logger.Error("processor.ocr.failed", "req_id", rid, "file_name", up.FileName, "error", err)
		return nil, err
	}
	p.recorder.SaveText(ctx, up.FileName, res.text)

	lines := p.normalizeLines(ctx, res)
	words := geometry.SynthesizeWords(lines)
	p.recorder.SaveLines(ctx, up.FileName, lines)

	p.logger.Info("processor.file.ok",
		"req_id", rid,
		"file_name", up.FileName,
		"whisper_hash", res.hash,
		"lines", len(lines),
		"words", len(words),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &Document{
		FileName:      up.FileName,
		Text:          res.text,
		WhisperHash:   res.hash,
		BoundingBoxes: BoundingBoxes{Words: words, LineMetadata: lines},
		Pages:         res.pages,
	}, nil
}

// ProcessAll processes uploads concurrently and returns documents in input order.
// The first failure cancels the remaining work.
func (p *Processor) ProcessAll(ctx context.Context, uploads []Upload) ([]*Document, error) {
	if len(uploads) == 0 {
		return nil, common.InvalidInput("no files uploaded")
	}
	docs := make([]*Document, len(uploads))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, up := range uploads {
		g.Go(func() error {
			doc, err := p.ProcessFile(gctx, up)
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

func validateUpload(up Upload) error {
	return common.NewValidator().
		Field("file_name", up.FileName, common.Required, common.FileExtension(constants.IsAllowedFile)).
		Field("content", up.Content, common.Required).
		Err()
}
