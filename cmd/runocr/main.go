package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/docextract/internal/artifact"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/ocr"
	"github.com/joseph-ayodele/docextract/internal/pipeline"
)

func main() {
	cfg := common.LoadConfig()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		logger.Error("usage", "cmd", "runocr <file> [file...]")
		os.Exit(2)
	}
	if cfg.OCR.APIKey == "" {
		logger.Error("LLMWHISPERER_API_KEY env var is required")
		os.Exit(2)
	}

	uploads := make([]pipeline.Upload, 0, len(os.Args)-1)
	for _, path := range os.Args[1:] {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Error("read file", "path", path, "error", err)
			os.Exit(1)
		}
		uploads = append(uploads, pipeline.Upload{FileName: filepath.Base(path), Content: data})
	}

	timeout := time.Duration(cfg.OCR.MaxPolls)*cfg.OCR.PollInterval + 2*cfg.OCR.Timeout
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ctx, rid := common.EnsureRequestID(ctx)

	recorder := artifact.Open(ctx, cfg.Artifacts, logger)
	defer func() { _ = recorder.Close() }()

	client := ocr.NewClient(ocr.Config{
		BaseURL:      cfg.OCR.BaseURL,
		APIKey:       cfg.OCR.APIKey,
		Mode:         cfg.OCR.Mode,
		PollInterval: cfg.OCR.PollInterval,
		MaxPolls:     cfg.OCR.MaxPolls,
		Timeout:      cfg.OCR.Timeout,
	}, logger)
	p := pipeline.NewProcessor(client, logger, pipeline.WithRecorder(recorder), pipeline.WithMode(cfg.OCR.Mode))

	start := time.Now()
	docs, err := p.ProcessAll(ctx, uploads)
	if err != nil {
		logger.Error("ocr failed", "req_id", rid, "code", common.CodeOf(err), "error", err,
			"duration_ms", time.Since(start).Milliseconds())
		os.Exit(1)
	}
	logger.Info("ocr ok", "req_id", rid, "files", len(docs), "duration_ms", time.Since(start).Milliseconds())

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(docs); err != nil {
		logger.Error("encode output", "error", err)
		os.Exit(1)
	}
}
