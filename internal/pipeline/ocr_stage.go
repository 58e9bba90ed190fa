package pipeline

import (
	"context"
	"time"

	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/geometry"
	"github.com/joseph-ayodele/docextract/internal/ocr"
)

type ocrResult struct {
	hash      string
	text      string
	pages     any
	highlight map[string]any
	metadata  any
}

func (p *Processor) runOCR(ctx context.Context, up Upload) (*ocrResult, error) {
	rid := common.RequestIDFromContext(ctx)
	start := time.Now()

	opts := ocr.DefaultSubmitOptions(p.mode)
	opts.FileName = up.FileName
	hash, err := p.ocr.Submit(ctx, up.Content, opts)
	if err != nil {
		return nil, err
	}
	if hash == "" {
		return nil, common.InvalidInput("ocr returned no job hash for %s", up.FileName)
	}
	if _, err := p.ocr.WaitForCompletion(ctx, hash); err != nil {
		return nil, err
	}
	ex, err := p.ocr.Retrieve(ctx, hash)
	if err != nil {
		return nil, err
	}
	if ex == nil || ex.Text == "" {
		return nil, common.InvalidInput("ocr returned no text for %s", up.FileName)
	}

	lineRange := ocr.CompressLineRange(ocr.ParseHexLineNumbers(ex.Text))
	highlight, err := p.ocr.FetchHighlight(ctx, hash, lineRange)
	if err != nil {
		p.logger.Warn("processor.highlight.failed", "req_id", rid, "whisper_hash", hash, "error", err)
		highlight = nil
	}

	p.logger.Info("processor.ocr.ok",
		"req_id", rid,
		"file_name", up.FileName,
		"whisper_hash", hash,
		"line_range", lineRange,
		"chars", len(ex.Text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &ocrResult{
		hash:      hash,
		text:      ex.Text,
		pages:     ex.Pages,
		highlight: highlight,
		metadata:  ex.LineMetadata,
	}, nil
}

// normalizeLines prefers highlight boxes and falls back to the retrieved line metadata.
func (p *Processor) normalizeLines(ctx context.Context, res *ocrResult) []geometry.LineRecord {
	if len(res.highlight) > 0 {
		if lines := p.normalizer.Normalize(res.highlight, res.text); len(lines) > 0 {
			return lines
		}
		p.logger.Debug("processor.boxes.fallback", "req_id", common.RequestIDFromContext(ctx), "whisper_hash", res.hash)
	}
	if lines := p.normalizer.Normalize(res.metadata, res.text); len(lines) > 0 {
		return lines
	}
	return []geometry.LineRecord{}
}
