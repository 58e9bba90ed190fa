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
	"github.com/joseph-ayodele/docextract/internal/extract"
	"github.com/joseph-ayodele/docextract/internal/llm"
	"github.com/joseph-ayodele/docextract/internal/llm/openai"
	"github.com/joseph-ayodele/docextract/internal/template"
)

// extract runs field extraction over an OCR text file, optionally with the
// bounding-box JSON produced by runocr, and prints the fields.
func main() {
	cfg := common.LoadConfig()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		logger.Error("usage: extract <text-file> [template] [bounding-boxes.json]")
		os.Exit(2)
	}
	textPath := os.Args[1]
	tmplName := cfg.Templates.Default
	if len(os.Args) >= 3 {
		tmplName = os.Args[2]
	}

	text, err := os.ReadFile(textPath)
	if err != nil {
		logger.Error("read text", "path", textPath, "error", err)
		os.Exit(1)
	}
	var boxes any
	if len(os.Args) >= 4 {
		raw, err := os.ReadFile(os.Args[3])
		if err != nil {
			logger.Error("read bounding boxes", "path", os.Args[3], "error", err)
			os.Exit(1)
		}
		if err := json.Unmarshal(raw, &boxes); err != nil {
			logger.Error("decode bounding boxes", "path", os.Args[3], "error", err)
			os.Exit(1)
		}
	}

	tmpl, err := template.NewStore(cfg.Templates.Dir, template.NewMemoryCache(), logger).Load(tmplName)
	if err != nil {
		logger.Error("load template", "template", tmplName, "error", err)
		os.Exit(1)
	}

	client := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)
	if !client.Configured() {
		logger.Error("GROQ_API_KEY env var is required")
		os.Exit(2)
	}
	orch := extract.NewOrchestrator(client, logger,
		extract.WithRetryPolicy(llm.RetryPolicy{Attempts: cfg.LLM.MaxAttempts, Backoff: 500 * time.Millisecond}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.LLM.MaxAttempts+1)*cfg.LLM.Timeout)
	defer cancel()
	ctx, rid := common.EnsureRequestID(ctx)

	fileName := filepath.Base(textPath)
	start := time.Now()
	res, err := orch.Extract(ctx, extract.Request{
		Text:          string(text),
		Template:      tmpl,
		FileName:      fileName,
		BoundingBoxes: boxes,
	})
	if err != nil {
		logger.Error("extraction failed", "req_id", rid, "error", err)
		os.Exit(1)
	}
	logger.Info("extraction finished",
		"req_id", rid,
		"state", res.State,
		"degraded", res.Degraded,
		"attempts", res.Attempts,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	recorder := artifact.Open(ctx, cfg.Artifacts, logger)
	recorder.SaveFields(ctx, fileName, res)
	_ = recorder.Close()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res.Ordered()); err != nil {
		logger.Error("encode output", "error", err)
		os.Exit(1)
	}
}
