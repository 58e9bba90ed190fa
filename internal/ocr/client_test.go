package ocr

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
)

type fakeWhisperer struct {
	statuses  []string
	polls     atomic.Int32
	highlight int
	submitKey string
	submitQ   string
	hashKey   string
}

func (f *fakeWhisperer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/whisper", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		f.submitKey = r.Header.Get("unstract-key")
		f.submitQ = r.URL.RawQuery
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "%PDF-1.4", string(body))
		key := f.hashKey
		if key == "" {
			key = "whisper_hash"
		}
		writeJSON(w, http.StatusAccepted, map[string]any{key: "abc123", "status": "processing"})
	})
	mux.HandleFunc("/whisper-status", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc123", r.URL.Query().Get("whisper_hash"))
		n := int(f.polls.Add(1)) - 1
		st := f.statuses[len(f.statuses)-1]
		if n < len(f.statuses) {
			st = f.statuses[n]
		}
		resp := map[string]any{"status": st}
		if st == "failed" {
			resp["message"] = "unreadable document"
		}
		writeJSON(w, http.StatusOK, resp)
	})
	mux.HandleFunc("/whisper-retrieve", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"extraction": map[string]any{
				"result_text": "0x01: Invoice INV-001\n0x02: Total 150.00",
				"line_metadata": []any{
					map[string]any{"line_no": 1, "raw": []any{1, 100, 20, 1000}},
				},
			},
			"pages": 1,
		})
	})
	mux.HandleFunc("/whisper-highlight", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1-2", r.URL.Query().Get("line_range"))
		if f.highlight != http.StatusOK {
			w.WriteHeader(f.highlight)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"line_metadata": []any{
				map[string]any{"line_index": 1, "bbox": []any{1, 100, 20, 1000}},
				map[string]any{"line_index": 2, "raw_box": []any{1, 130, 20, 1000}, "bbox": []any{9, 9, 9, 9}},
			},
		})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, f *fakeWhisperer, maxPolls int) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:      srv.URL + "/",
		APIKey:       "test-key",
		PollInterval: time.Millisecond,
		MaxPolls:     maxPolls,
	}, nil)
}

func TestClient_FullFlow(t *testing.T) {
	f := &fakeWhisperer{statuses: []string{"processing", "PROCESSED"}, highlight: http.StatusOK}
	c := newTestClient(t, f, 5)
	ctx := t.Context()

	hash, err := c.Submit(ctx, []byte("%PDF-1.4"), DefaultSubmitOptions(""))
	require.NoError(t, err)
	assert.Equal(t, "abc123", hash)
	assert.Equal(t, "test-key", f.submitKey)
	assert.Contains(t, f.submitQ, "mode=form")
	assert.Contains(t, f.submitQ, "output_mode=layout_preserving")
	assert.Contains(t, f.submitQ, "add_line_nos=true")

	st, err := c.WaitForCompletion(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, constants.OCRStatusDone, st.Status)
	assert.EqualValues(t, 2, f.polls.Load())

	ex, err := c.Retrieve(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, "0x01: Invoice INV-001\n0x02: Total 150.00", ex.Text)
	require.NotNil(t, ex.LineMetadata)
	assert.EqualValues(t, 1, ex.Pages)

	lr := CompressLineRange(ParseHexLineNumbers(ex.Text))
	hl, err := c.FetchHighlight(ctx, hash, lr)
	require.NoError(t, err)
	lines := hl["line_metadata"].([]any)
	first := lines[0].(map[string]any)
	assert.Equal(t, first["bbox"], first["raw_box"])
	second := lines[1].(map[string]any)
	assert.Equal(t, []any{float64(1), float64(130), float64(20), float64(1000)}, second["raw_box"])
}

func TestClient_SubmitAlternateHashKey(t *testing.T) {
	f := &fakeWhisperer{statuses: []string{"done"}, hashKey: "document_hash"}
	c := newTestClient(t, f, 1)
	hash, err := c.Submit(t.Context(), []byte("%PDF-1.4"), DefaultSubmitOptions("form"))
	require.NoError(t, err)
	assert.Equal(t, "abc123", hash)
}

func TestClient_SubmitMissingHash(t *testing.T) {
	f := &fakeWhisperer{statuses: []string{"done"}, hashKey: "job"}
	c := newTestClient(t, f, 1)
	_, err := c.Submit(t.Context(), []byte("%PDF-1.4"), DefaultSubmitOptions("form"))
	require.Error(t, err)
	assert.Equal(t, common.CodeOCRFailed, common.CodeOf(err))
}

func TestClient_SubmitWithoutKey(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, nil)
	_, err := c.Submit(t.Context(), []byte("x"), SubmitOptions{})
	require.Error(t, err)
	assert.Equal(t, common.CodeConfig, common.CodeOf(err))
}

func TestClient_WaitFailed(t *testing.T) {
	f := &fakeWhisperer{statuses: []string{"processing", "failed"}}
	c := newTestClient(t, f, 5)
	_, err := c.WaitForCompletion(t.Context(), "abc123")
	require.Error(t, err)
	assert.Equal(t, common.CodeOCRFailed, common.CodeOf(err))
	assert.Contains(t, err.Error(), "unreadable document")
	assert.ErrorIs(t, err, common.ErrOCRFailed)
}

func TestClient_WaitTimeout(t *testing.T) {
	f := &fakeWhisperer{statuses: []string{"processing"}}
	c := newTestClient(t, f, 3)
	_, err := c.WaitForCompletion(t.Context(), "abc123")
	require.Error(t, err)
	assert.Equal(t, common.CodeOCRTimeout, common.CodeOf(err))
	assert.EqualValues(t, 3, f.polls.Load())
}

func TestClient_WaitHonoursContext(t *testing.T) {
	f := &fakeWhisperer{statuses: []string{"processing"}}
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k", PollInterval: time.Hour, MaxPolls: 10}, nil)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err := c.WaitForCompletion(ctx, "abc123")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_HighlightFallsBackToEmpty(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusInternalServerError} {
		f := &fakeWhisperer{statuses: []string{"done"}, highlight: code}
		c := newTestClient(t, f, 1)
		hl, err := c.FetchHighlight(t.Context(), "abc123", "1-2")
		require.NoError(t, err)
		assert.Empty(t, hl)
	}
}

func TestClient_RetrieveNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k"}, nil)
	_, err := c.Retrieve(t.Context(), "abc123")
	require.Error(t, err)
	assert.Equal(t, common.CodeOCRFailed, common.CodeOf(err))
	assert.Contains(t, err.Error(), "502")
}
