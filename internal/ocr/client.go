// Package ocr talks to the LLMWhisperer v2 OCR service.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
)

type Config struct {
	BaseURL          string
	APIKey           string
	Mode             string        // default "form"
	PollInterval     time.Duration // default 2s
	MaxPolls         int           // default 90
	Timeout          time.Duration // per request, default 180s
	HighlightTimeout time.Duration // default 30s
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

var _ Provider = (*Client)(nil)

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://llmwhisperer-api.us-central.unstract.com/api/v2"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Mode == "" {
		cfg.Mode = "form"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 90
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 180 * time.Second
	}
	if cfg.HighlightTimeout <= 0 {
		cfg.HighlightTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

// Mode returns the configured processing mode.
func (c *Client) Mode() string { return c.cfg.Mode }

// Submit uploads the raw document and returns the job hash.
func (c *Client) Submit(ctx context.Context, content []byte, opts SubmitOptions) (string, error) {
	if c.cfg.APIKey == "" {
		return "", common.NewAppError(common.CodeConfig, "LLMWHISPERER_API_KEY is not configured", common.ErrInvalidInput)
	}
	if len(content) == 0 {
		return "", common.InvalidInput("document is empty")
	}
	if opts.Mode == "" {
		opts.Mode = c.cfg.Mode
	}
	if opts.OutputMode == "" {
		opts.OutputMode = "layout_preserving"
	}
	q := url.Values{}
	q.Set("mode", opts.Mode)
	q.Set("output_mode", opts.OutputMode)
	q.Set("add_line_nos", strconv.FormatBool(opts.AddLineNumbers))
	if opts.FileName != "" {
		q.Set("file_name", opts.FileName)
	}

	raw, status, err := c.do(ctx, http.MethodPost, "/whisper", q, bytes.NewReader(content), "application/octet-stream")
	if err != nil {
		return "", c.providerError("upload", status, raw, err)
	}
	payload, err := decodeObject(raw)
	if err != nil {
		return "", common.NewAppError(common.CodeOCRFailed, "ocr submit returned non-JSON body", err)
	}
	hash := extractHash(payload)
	if hash == "" {
		return "", common.NewAppError(common.CodeOCRFailed, "ocr response missing whisper hash", common.ErrOCRFailed)
	}
	c.logger.Info("ocr.submit.ok", "req_id", common.RequestIDFromContext(ctx), "whisper_hash", hash, "bytes", len(content), "mode", opts.Mode)
	return hash, nil
}

// PollStatus reads the job status once.
func (c *Client) PollStatus(ctx context.Context, hash string) (JobStatus, error) {
	q := url.Values{"whisper_hash": {hash}}
	raw, status, err := c.do(ctx, http.MethodGet, "/whisper-status", q, nil, "")
	if err != nil {
		return JobStatus{}, c.providerError("status check", status, raw, err)
	}
	payload, err := decodeObject(raw)
	if err != nil {
		return JobStatus{}, common.NewAppError(common.CodeOCRFailed, "ocr status returned non-JSON body", err)
	}
	rawStatus, _ := payload["status"].(string)
	msg, _ := payload["message"].(string)
	return JobStatus{Status: constants.ParseOCRStatus(rawStatus), Raw: rawStatus, Message: msg}, nil
}

// WaitForCompletion polls up to MaxPolls times, PollInterval apart. An explicit provider
// failure is OCR_FAILED; running out of polls is OCR_TIMEOUT.
func (c *Client) WaitForCompletion(ctx context.Context, hash string) (JobStatus, error) {
	rid := common.RequestIDFromContext(ctx)
	start := time.Now()
	for attempt := 1; attempt <= c.cfg.MaxPolls; attempt++ {
		st, err := c.PollStatus(ctx, hash)
		if err != nil {
			return st, err
		}
		c.logger.Debug("ocr.poll.status", "req_id", rid, "whisper_hash", hash, "attempt", attempt, "status", st.Raw)

		switch st.Status {
		case constants.OCRStatusDone:
			c.logger.Info("ocr.poll.done", "req_id", rid, "whisper_hash", hash, "polls", attempt, "elapsed_ms", time.Since(start).Milliseconds())
			return st, nil
		case constants.OCRStatusFailed:
			msg := st.Message
			if msg == "" {
				msg = "Unknown error"
			}
			c.logger.Error("ocr.poll.failed", "req_id", rid, "whisper_hash", hash, "message", msg)
			return st, common.NewAppError(common.CodeOCRFailed,
				fmt.Sprintf("ocr extraction failed for %s: %s", hash, msg), common.ErrOCRFailed)
		}

		if attempt == c.cfg.MaxPolls {
			break
		}
		if err := sleep(ctx, c.cfg.PollInterval); err != nil {
			return st, err
		}
	}
	c.logger.Error("ocr.poll.timeout", "req_id", rid, "whisper_hash", hash, "polls", c.cfg.MaxPolls, "elapsed_ms", time.Since(start).Milliseconds())
	return JobStatus{Status: constants.OCRStatusPending}, common.NewAppError(common.CodeOCRTimeout,
		"timed out waiting for ocr provider to finish processing", common.ErrOCRTimeout)
}

// Retrieve fetches the finished extraction.
func (c *Client) Retrieve(ctx context.Context, hash string) (*Extraction, error) {
	q := url.Values{"whisper_hash": {hash}}
	raw, status, err := c.do(ctx, http.MethodGet, "/whisper-retrieve", q, nil, "")
	if err != nil {
		return nil, c.providerError("retrieve", status, raw, err)
	}
	payload, err := decodeObject(raw)
	if err != nil {
		return nil, common.NewAppError(common.CodeOCRFailed, "ocr retrieve returned non-JSON body", err)
	}
	return &Extraction{
		Text:         ExtractResultText(payload),
		LineMetadata: ExtractNested(payload, "line_metadata"),
		Pages:        ExtractNested(payload, "pages"),
		Raw:          payload,
	}, nil
}

// FetchHighlight requests line boxes for lineRange. Any failure returns an empty map
// so callers fall back to the retrieved line metadata.
func (c *Client) FetchHighlight(ctx context.Context, hash string, lineRange string) (map[string]any, error) {
	if lineRange == "" {
		lineRange = "1"
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HighlightTimeout)
	defer cancel()

	q := url.Values{"whisper_hash": {hash}, "line_range": {lineRange}}
	raw, status, err := c.do(ctx, http.MethodGet, "/whisper-highlight", q, nil, "")
	if err != nil {
		if status == http.StatusNotFound {
			c.logger.Debug("ocr.highlight.unavailable", "whisper_hash", hash)
		} else {
			c.logger.Warn("ocr.highlight.failed", "whisper_hash", hash, "status", status, "error", err)
		}
		return map[string]any{}, nil
	}
	payload, err := decodeObject(raw)
	if err != nil {
		c.logger.Warn("ocr.highlight.decode_failed", "whisper_hash", hash, "error", err)
		return map[string]any{}, nil
	}
	fillRawBoxes(payload)
	return payload, nil
}

// fillRawBoxes copies bbox into raw_box for lines that lack one.
func fillRawBoxes(payload map[string]any) {
	lines, ok := payload["line_metadata"].([]any)
	if !ok {
		return
	}
	for _, l := range lines {
		m, ok := l.(map[string]any)
		if !ok {
			continue
		}
		if isBlank(m["raw_box"]) && !isBlank(m["bbox"]) {
			m["raw_box"] = m["bbox"]
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body io.Reader, contentType string) ([]byte, int, error) {
	rid := common.RequestIDFromContext(ctx)
	start := time.Now()
	endpoint := c.cfg.BaseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		c.logger.Error("ocr.http.build_request_error", "req_id", rid, "error", err)
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("unstract-key", c.cfg.APIKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.logger.Debug("ocr.http.request", "req_id", rid, "method", method, "path", path)
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("ocr.http.send_error", "req_id", rid, "path", path, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Warn("ocr.http.response_body_close_error", "req_id", rid, "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	c.logger.Debug("ocr.http.response",
		"req_id", rid,
		"path", path,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if resp.StatusCode/100 != 2 {
		return raw, resp.StatusCode, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return raw, resp.StatusCode, nil
}

func (c *Client) providerError(op string, status int, body []byte, err error) error {
	if status == 0 {
		return common.NewAppError(common.CodeOCRFailed, fmt.Sprintf("failed to reach ocr provider for %s", op), fmt.Errorf("%w: %v", common.ErrOCRFailed, err))
	}
	return common.NewAppError(common.CodeOCRFailed,
		fmt.Sprintf("ocr %s failed with status %d: %s", op, status, truncate(string(body), 512)),
		fmt.Errorf("%w: %v", common.ErrOCRFailed, err))
}

func decodeObject(raw []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
