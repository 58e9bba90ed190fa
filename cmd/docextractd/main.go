package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/docextract/internal/artifact"
	"github.com/joseph-ayodele/docextract/internal/async"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/extract"
	"github.com/joseph-ayodele/docextract/internal/geometry"
	"github.com/joseph-ayodele/docextract/internal/llm"
	"github.com/joseph-ayodele/docextract/internal/llm/openai"
	"github.com/joseph-ayodele/docextract/internal/ocr"
	"github.com/joseph-ayodele/docextract/internal/pipeline"
	"github.com/joseph-ayodele/docextract/internal/server"
	"github.com/joseph-ayodele/docextract/internal/template"
)

func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	writes := async.NewQueue(logger, async.WithWorkers(2), async.WithQueueSize(512))
	recorder := artifact.Open(ctx, cfg.Artifacts, logger).UseQueue(writes)
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		writes.Shutdown(drainCtx)
		if err := recorder.Close(); err != nil {
			logger.Error("failed to close artifact sinks", "error", err)
		}
	}()

	templates := template.NewStore(cfg.Templates.Dir, template.NewMemoryCache(), logger)
	logger.Info("templates loaded", "dir", cfg.Templates.Dir, "count", templates.Warm())

	ocrClient := ocr.NewClient(ocr.Config{
		BaseURL:      cfg.OCR.BaseURL,
		APIKey:       cfg.OCR.APIKey,
		Mode:         cfg.OCR.Mode,
		PollInterval: cfg.OCR.PollInterval,
		MaxPolls:     cfg.OCR.MaxPolls,
		Timeout:      cfg.OCR.Timeout,
	}, logger)
	processor := pipeline.NewProcessor(ocrClient, logger,
		pipeline.WithRecorder(recorder),
		pipeline.WithMode(cfg.OCR.Mode),
	)

	llmClient := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)
	if !llmClient.Configured() {
		logger.Warn("GROQ_API_KEY is not set; field extraction will return empty values")
	}
	extractor := extract.NewOrchestrator(llmClient, logger,
		extract.WithRetryPolicy(llm.RetryPolicy{Attempts: cfg.LLM.MaxAttempts, Backoff: 500 * time.Millisecond}),
	)

	svc := server.NewService(processor, extractor, templates, logger,
		server.WithDefaultTemplate(cfg.Templates.Default),
		server.WithRecorder(recorder),
		server.WithMerger(geometry.NewMerger(
			geometry.WithGapRatio(cfg.Geometry.MergeGapRatio),
			geometry.WithAlignmentRatio(cfg.Geometry.LineAlignmentRatio),
		)),
	)

	// gRPC server
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(server.UnaryInterceptor(logger)))
	server.RegisterDocExtractServer(grpcServer, server.NewGRPCService(svc, logger))

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(server.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	// HTTP server
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           server.NewHTTPHandler(svc, logger).Router(cfg.Server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("docextract listening", "grpc_addr", cfg.Server.GRPCAddr, "http_addr", cfg.Server.HTTPAddr)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
	grpcServer.GracefulStop()
}
