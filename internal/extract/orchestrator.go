// Package extract runs template field extraction: prompt the LLM for values, then
// resolve each value's position locally.
package extract

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/geometry"
	"github.com/joseph-ayodele/docextract/internal/llm"
	"github.com/joseph-ayodele/docextract/internal/locate"
)

// Orchestrator sequences prompt, parse and locate for one request at a time.
// It holds no per-request state and is safe for concurrent use.
type Orchestrator struct {
	completer  llm.Completer
	normalizer *geometry.Normalizer
	policy     llm.RetryPolicy
	logger     *slog.Logger
}

type Option func(*Orchestrator)

func WithRetryPolicy(p llm.RetryPolicy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

func NewOrchestrator(completer llm.Completer, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		completer:  completer,
		normalizer: geometry.NewNormalizer(logger),
		policy:     llm.RetryPolicy{Attempts: llm.DefaultAttempts, Backoff: 500 * time.Millisecond},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Extract returns a value and its citations for every template key. LLM failures
// degrade to empty fields; only a missing template is an error.
func (o *Orchestrator) Extract(ctx context.Context, req Request) (*Result, error) {
	if req.Template == nil || len(req.Template.Keys) == 0 {
		return nil, common.InvalidInput("template is required")
	}
	rid := common.RequestIDFromContext(ctx)
	start := time.Now()
	keys := req.Template.Keys

	res := &Result{Keys: keys, Fields: make(map[string]Field, len(keys)), State: constants.ExtractPending}
	o.transition(rid, res, constants.ExtractPending)

	prompt := llm.BuildExtractionRequest(llm.ExtractRequest{
		Text:     req.Text,
		Keys:     keys,
		Specs:    req.Template.Fields,
		FileName: req.FileName,
	})
	o.transition(rid, res, constants.ExtractPrompted)

	values, attempts, dropped, ok := o.complete(ctx, rid, prompt, keys)
	res.Attempts = attempts
	res.Dropped = dropped
	if ok {
		o.transition(rid, res, constants.ExtractParsed)
	} else {
		res.Degraded = true
		values = make(map[string]llm.FieldValue, len(keys))
		for _, k := range keys {
			values[k] = llm.FieldValue{}
		}
		o.transition(rid, res, constants.ExtractEmptyOnFailure)
	}

	lines := req.Lines
	if len(lines) == 0 && req.BoundingBoxes != nil {
		lines = o.normalizer.Normalize(req.BoundingBoxes, req.Text)
	}
	words := req.Words
	if words == nil {
		words = wordsFromPayload(req.BoundingBoxes)
	}

	located := 0
	for _, k := range keys {
		f := emptyField()
		f.Value = values[k].String()
		if f.Value != "" {
			f.Citations = locate.Locate(f.Value, lines)
			f.LineIndexes = locate.LineIndexes(f.Citations)
			f.WordIndexes = matchWords(f.Value, f.LineIndexes, words)
			if len(f.Citations) > 0 {
				located++
			}
		}
		res.Fields[k] = f
	}
	o.transition(rid, res, constants.ExtractLocated)

	o.logger.Info("extract.done",
		"req_id", rid,
		"fields", len(keys),
		"located", located,
		"lines", len(lines),
		"words", len(words),
		"degraded", res.Degraded,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	o.transition(rid, res, constants.ExtractReturned)
	return res, nil
}

type parsed struct {
	values  map[string]llm.FieldValue
	dropped []string
}

func (o *Orchestrator) complete(ctx context.Context, rid string, prompt llm.CompletionRequest, keys []string) (map[string]llm.FieldValue, int, []string, bool) {
	if o.completer == nil {
		o.logger.Warn("extract.llm.unconfigured", "req_id", rid)
		return nil, 0, nil, false
	}

	out := llm.WithRetry(ctx, o.policy, o.logger, "extract.llm",
		func(ctx context.Context, attempt int) (parsed, error) {
			content, err := o.completer.Complete(ctx, prompt)
			if err != nil {
				return parsed{}, err
			}
			raw, err := llm.ParseResponse(content)
			if err != nil {
				o.logger.Warn("extract.llm.parse_failed", "req_id", rid, "attempt", attempt, "content_len", len(content))
				return parsed{}, err
			}
			if err := llm.ValidateResponse(raw, keys); err != nil {
				o.logger.Warn("extract.llm.invalid", "req_id", rid, "attempt", attempt, "error", err)
				return parsed{}, err
			}
			values, dropped := llm.SanitizeFields(raw, keys, o.logger)
			return parsed{values: values, dropped: dropped}, nil
		})

	if out.Empty() {
		o.logger.Error("extract.llm.failed", "req_id", rid, "attempts", out.Attempts, "error", out.Err)
		return nil, out.Attempts, nil, false
	}
	return out.Value.values, out.Attempts, out.Value.dropped, true
}

func (o *Orchestrator) transition(rid string, res *Result, to constants.ExtractState) {
	o.logger.Debug("extract.state", "req_id", rid, "from", res.State, "to", to)
	res.State = to
}

// matchWords returns the indexes of words on the cited lines whose text occurs in value.
func matchWords(value string, lineIndexes []int, words []geometry.WordRecord) []int {
	out := []int{}
	if len(words) == 0 || len(lineIndexes) == 0 {
		return out
	}
	target := squash(value)
	for _, li := range lineIndexes {
		for _, w := range geometry.WordsOnLine(words, li) {
			tok := squash(w.Text)
			if tok != "" && strings.Contains(target, tok) {
				out = append(out, w.Index)
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func squash(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// wordsFromPayload reads {"words": [...]} entries that carry a line_index.
func wordsFromPayload(payload any) []geometry.WordRecord {
	root, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	if inner, ok := root["bounding_boxes"].(map[string]any); ok {
		root = inner
	}
	items, ok := root["words"].([]any)
	if !ok {
		return nil
	}
	out := make([]geometry.WordRecord, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		if _, ok := m["line_index"]; !ok {
			continue
		}
		b, err := json.Marshal(m)
		if err != nil {
			continue
		}
		var w geometry.WordRecord
		if err := json.Unmarshal(b, &w); err != nil {
			continue
		}
		out = append(out, w)
	}
	return out
}
