// Package artifact persists per-request audit artifacts. Every sink is best-effort:
// failures are logged and never reach the caller.
package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/async"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/extract"
	"github.com/joseph-ayodele/docextract/internal/geometry"
)

type Kind string

const (
	KindInput      Kind = "input"
	KindText       Kind = "text"
	KindBoxes      Kind = "bboxes"
	KindStructured Kind = "structured"
)

// Record is one artifact. Fields is set only for KindStructured.
type Record struct {
	RequestID string
	FileName  string
	Kind      Kind
	Data      []byte
	Fields    []FieldRow
}

// FieldRow is a flattened extracted field.
type FieldRow struct {
	Key         string
	Value       string
	LineIndexes []int
	Pages       []int
}

type Sink interface {
	Name() string
	Write(ctx context.Context, rec Record) error
}

var (
	unsafeChars = regexp.MustCompile(`[^\w\-]`)
	underscores = regexp.MustCompile(`_+`)
)

// SafeName drops the extension and rewrites name as lower snake case; "" becomes "file".
func SafeName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		base = ""
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = unsafeChars.ReplaceAllString(base, "_")
	base = underscores.ReplaceAllString(base, "_")
	base = strings.ToLower(strings.Trim(base, "_"))
	if base == "" {
		return "file"
	}
	return base
}

// Recorder fans records out to its sinks. A nil Recorder is a no-op.
type Recorder struct {
	sinks  []Sink
	queue  *async.Queue
	logger *slog.Logger
}

func NewRecorder(logger *slog.Logger, sinks ...Sink) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{sinks: sinks, logger: logger}
}

// UseQueue moves sink writes onto q so callers do not wait on storage.
func (r *Recorder) UseQueue(q *async.Queue) *Recorder {
	if r != nil {
		r.queue = q
	}
	return r
}

// Sinks returns the configured sink names.
func (r *Recorder) Sinks() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.sinks))
	for _, s := range r.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Record writes rec to every sink, in the background when a queue is set.
func (r *Recorder) Record(ctx context.Context, rec Record) {
	if r == nil || len(r.sinks) == 0 {
		return
	}
	if rec.RequestID == "" {
		rec.RequestID = common.RequestIDFromContext(ctx)
	}
	if r.queue != nil {
		err := r.queue.Enqueue(ctx, async.Job{
			Name:      "artifact." + string(rec.Kind),
			RequestID: rec.RequestID,
			Run: func(ctx context.Context) error {
				r.write(ctx, rec)
				return nil
			},
		})
		if err == nil {
			return
		}
		r.logger.Debug("artifact.enqueue.failed", "req_id", rec.RequestID, "error", err)
	}
	r.write(ctx, rec)
}

func (r *Recorder) write(ctx context.Context, rec Record) {
	for _, s := range r.sinks {
		start := time.Now()
		if err := s.Write(ctx, rec); err != nil {
			r.logger.Warn("artifact.write.failed",
				"req_id", rec.RequestID,
				"sink", s.Name(),
				"kind", string(rec.Kind),
				"file_name", rec.FileName,
				"error", err,
			)
			continue
		}
		r.logger.Debug("artifact.write.ok",
			"req_id", rec.RequestID,
			"sink", s.Name(),
			"kind", string(rec.Kind),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (r *Recorder) SaveInput(ctx context.Context, fileName string, data []byte) {
	r.Record(ctx, Record{FileName: fileName, Kind: KindInput, Data: data})
}

func (r *Recorder) SaveText(ctx context.Context, fileName, text string) {
	r.Record(ctx, Record{FileName: fileName, Kind: KindText, Data: []byte(text)})
}

// SaveLines writes the line metadata, skipping rows without geometry.
func (r *Recorder) SaveLines(ctx context.Context, fileName string, lines []geometry.LineRecord) {
	if r == nil {
		return
	}
	kept := make([]geometry.LineRecord, 0, len(lines))
	for _, l := range lines {
		if l.HasBox() {
			kept = append(kept, l)
		}
	}
	r.recordJSON(ctx, fileName, KindBoxes, kept, nil)
}

// SaveFields writes the extraction result.
func (r *Recorder) SaveFields(ctx context.Context, fileName string, res *extract.Result) {
	if r == nil || res == nil {
		return
	}
	ordered := res.Ordered()
	rows := make([]FieldRow, 0, len(ordered))
	for _, f := range ordered {
		row := FieldRow{Key: f.Key, Value: f.Value, LineIndexes: f.LineIndexes}
		seen := map[int]bool{}
		for _, c := range f.Citations {
			if !seen[c.Page] {
				seen[c.Page] = true
				row.Pages = append(row.Pages, c.Page)
			}
		}
		rows = append(rows, row)
	}
	r.recordJSON(ctx, fileName, KindStructured, map[string]any{
		"file_name": fileName,
		"state":     res.State,
		"degraded":  res.Degraded,
		"fields":    ordered,
	}, rows)
}

func (r *Recorder) recordJSON(ctx context.Context, fileName string, kind Kind, v any, rows []FieldRow) {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		r.logger.Warn("artifact.encode.failed", "req_id", common.RequestIDFromContext(ctx), "kind", string(kind), "error", err)
		return
	}
	r.Record(ctx, Record{FileName: fileName, Kind: kind, Data: data, Fields: rows})
}

// Close releases sinks that hold resources.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for _, s := range r.sinks {
		if c, ok := s.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// extOf returns the normalized extension of name, or "bin".
func extOf(name string) string {
	if ext := constants.NormalizeExt(filepath.Ext(name)); ext != "" {
		return ext
	}
	return "bin"
}
