package artifact

import (
	"context"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/docextract/internal/common"
)

// Open builds a Recorder from cfg.Sinks. A sink that cannot be opened is skipped with a warning.
func Open(ctx context.Context, cfg common.ArtifactConfig, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	var sinks []Sink
	for _, name := range cfg.Sinks {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "", "none":
		case "fs":
			sinks = append(sinks, NewFSSink(cfg.Dir))
		case "xlsx":
			sinks = append(sinks, NewXLSXSink(cfg.Dir))
		case "sqlite":
			s, err := OpenSQLite(ctx, cfg.SQLitePath, logger)
			if err != nil {
				logger.Warn("artifact.sink.unavailable", "sink", "sqlite", "error", err)
				continue
			}
			sinks = append(sinks, s)
		case "postgres":
			if cfg.DBURL == "" {
				logger.Warn("artifact.sink.unavailable", "sink", "postgres", "error", "ARTIFACT_DB_URL is empty")
				continue
			}
			s, err := OpenPostgres(ctx, cfg.DBURL, logger)
			if err != nil {
				logger.Warn("artifact.sink.unavailable", "sink", "postgres", "error", err)
				continue
			}
			sinks = append(sinks, s)
		default:
			logger.Warn("artifact.sink.unknown", "sink", name)
		}
	}
	r := NewRecorder(logger, sinks...)
	logger.Info("artifact.sinks", "sinks", r.Sinks())
	return r
}
