package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/pipeline"
)

const (
	// MaxUploadBytes caps one multipart upload request.
	MaxUploadBytes  = 64 << 20
	maxJSONBytes    = 16 << 20
	requestIDHeader = "X-Request-ID"
)

// HTTPHandler serves the JSON API.
type HTTPHandler struct {
	svc    *Service
	logger *slog.Logger
}

func NewHTTPHandler(svc *Service, logger *slog.Logger) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPHandler{svc: svc, logger: logger}
}

// Router builds the chi router with CORS, request IDs and access logging.
func (h *HTTPHandler) Router(cfg common.ServerConfig) http.Handler {
	origins, credentials := cfg.EffectiveCORSOrigins()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: credentials,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{requestIDHeader},
		MaxAge:           300,
	}))
	r.Use(h.requestContext)

	h.Attach(r)
	return r
}

func (h *HTTPHandler) Attach(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Post("/upload", h.handleUpload)
	r.Post("/extract-fields", h.handleExtractFields)
	r.Post("/highlight", h.handleHighlight)
	r.Post("/locate", h.handleLocate)
}

func (h *HTTPHandler) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		if rid := r.Header.Get(requestIDHeader); rid != "" {
			ctx = common.WithRequestID(ctx, rid)
		}
		ctx, rid := common.EnsureRequestID(ctx)
		w.Header().Set(requestIDHeader, rid)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		h.logger.Info("http.request",
			"req_id", rid,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		h.writeError(w, r, common.InvalidInput("invalid multipart upload: %v", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		h.writeError(w, r, common.InvalidInput("no files uploaded"))
		return
	}
	uploads := make([]pipeline.Upload, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			h.writeError(w, r, common.InvalidInput("read %s: %v", fh.Filename, err))
			return
		}
		uploads = append(uploads, pipeline.Upload{FileName: fh.Filename, Content: data})
	}

	docs, err := h.svc.Upload(r.Context(), uploads)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *HTTPHandler) handleExtractFields(w http.ResponseWriter, r *http.Request) {
	var req ExtractFieldsRequest
	if !h.decode(w, r, &req) {
		return
	}
	out, err := h.svc.ExtractFields(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) handleHighlight(w http.ResponseWriter, r *http.Request) {
	var req HighlightRequest
	if !h.decode(w, r, &req) {
		return
	}
	out, err := h.svc.Highlight(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) handleLocate(w http.ResponseWriter, r *http.Request) {
	var req LocateRequest
	if !h.decode(w, r, &req) {
		return
	}
	out, err := h.svc.Locate(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	if err := dec.Decode(v); err != nil {
		h.writeError(w, r, common.InvalidInput("invalid JSON body: %v", err))
		return false
	}
	return true
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := common.HTTPStatus(err)
	level := slog.LevelWarn
	if code >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "http.error",
		"req_id", common.RequestIDFromContext(r.Context()),
		"path", r.URL.Path,
		"status", code,
		"error", err,
	)

	writeJSON(w, code, map[string]string{"code": common.CodeOf(err), "detail": common.MessageOf(err)})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}
