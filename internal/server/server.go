// Package server exposes index generation and export over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/semaphore"

	"github.com/MalithGihan/torahindex-service/internal/export"
	"github.com/MalithGihan/torahindex-service/internal/index"
	"github.com/MalithGihan/torahindex-service/internal/ingest"
	"github.com/MalithGihan/torahindex-service/internal/pipeline"
	"github.com/MalithGihan/torahindex-service/internal/store"
	"github.com/MalithGihan/torahindex-service/internal/validate"
	"github.com/MalithGihan/torahindex-service/pkg/types"
)

const (
	serviceName       = "torahindex-service"
	maxExportBody     = 8 << 20
	multipartMemory   = 8 << 20
	multipartHeadroom = 1 << 20
	maxErrorBytes     = 300
)

type Indexer interface {
	GenerateIndexFromFile(ctx context.Context, path string, kind types.IndexKind) (types.GeneratedIndex, error)
}

type Uploads interface {
	Save(name string, src io.Reader) (string, error)
}

type Options struct {
	MaxUploadBytes        int64
	PreviewCount          int
	RateLimitEvery        time.Duration
	RateLimitBurst        int
	MaxConcurrentRequests int64
	Export                export.Options
}

type Server struct {
	indexer Indexer
	uploads Uploads
	opts    Options
	log     *slog.Logger
	limiter *ipLimiter
	sem     *semaphore.Weighted
	now     func() time.Time
}

func New(indexer Indexer, uploads Uploads, opts Options, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if opts.MaxConcurrentRequests <= 0 {
		opts.MaxConcurrentRequests = 8
	}
	if opts.PreviewCount <= 0 {
		opts.PreviewCount = pipeline.DefaultPreviewCount
	}
	return &Server{
		indexer: indexer,
		uploads: uploads,
		opts:    opts,
		log:     log.With("component", "http"),
		limiter: newIPLimiter(opts.RateLimitEvery, opts.RateLimitBurst),
		sem:     semaphore.NewWeighted(opts.MaxConcurrentRequests),
		now:     time.Now,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(withLogging(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "service": serviceName})
	})

	r.Route("/api/index", func(r chi.Router) {
		r.Use(s.limiter.withRateLimit)
		r.Use(withConcurrencyLimit(s.sem))
		r.Post("/generate", s.handleGenerate)
		r.Post("/export", s.handleExport)
	})
	return r
}

type generateResponse struct {
	Success        bool                 `json:"success"`
	Data           types.GeneratedIndex `json:"data"`
	Message        string               `json:"message"`
	PreviewEntries []types.IndexEntry   `json:"previewEntries"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+multipartHeadroom)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeErr(w, http.StatusRequestEntityTooLarge, "too_large", "File exceeds upload limit")
			return
		}
		writeErr(w, http.StatusBadRequest, "bad_request", sanitizeError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, fh, err := r.FormFile("file")
	if err != nil {
		writeErr(w, http.StatusBadRequest, "no_file", "No file uploaded")
		return
	}
	defer file.Close()

	kind, ok := types.ParseKind(r.FormValue("indexType"))
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid_index_type",
			"Invalid index type. Must be one of: "+joinKinds())
		return
	}

	head := make([]byte, 8)
	n, _ := io.ReadFull(file, head)
	head = head[:n]
	if !ingest.IsPDF(fh.Header.Get("Content-Type"), head) {
		writeErr(w, http.StatusBadRequest, "not_pdf", "Only PDF files are allowed")
		return
	}

	path, err := s.uploads.Save(fh.Filename, io.MultiReader(bytes.NewReader(head), file))
	if err != nil {
		if errors.Is(err, store.ErrTooLarge) {
			writeErr(w, http.StatusRequestEntityTooLarge, "too_large", "File exceeds upload limit")
			return
		}
		s.log.Error("saving upload", "error", err)
		writeErr(w, http.StatusInternalServerError, "upload_failed", "Could not store upload")
		return
	}

	idx, err := s.indexer.GenerateIndexFromFile(r.Context(), path, kind)
	if err != nil {
		s.writePipelineErr(w, err)
		return
	}
	idx.BookName = strings.TrimSpace(r.FormValue("bookName"))
	if idx.BookName == "" {
		idx.BookName = strings.TrimSuffix(filepath.Base(fh.Filename), filepath.Ext(fh.Filename))
	}

	writeJSON(w, http.StatusOK, generateResponse{
		Success:        true,
		Data:           idx,
		Message:        fmt.Sprintf("%s index generated successfully", kind),
		PreviewEntries: pipeline.PreviewEntries(idx.Entries, s.opts.PreviewCount),
	})
}

func (s *Server) writePipelineErr(w http.ResponseWriter, err error) {
	var xe *ingest.ExtractionError
	var ge *index.GenerationError
	switch {
	case errors.As(err, &xe):
		s.log.Warn("extraction failed", "error", err)
		writeErr(w, http.StatusUnprocessableEntity, "extraction_failed", sanitizeError(err))
	case errors.As(err, &ge):
		s.log.Error("generation failed", "error", err)
		writeErr(w, http.StatusBadGateway, "generation_failed", sanitizeError(err))
	default:
		s.log.Error("pipeline failed", "error", err)
		writeErr(w, http.StatusInternalServerError, "internal_error", "Failed to generate index")
	}
}

type exportRequest struct {
	Entries   []types.IndexEntry `json:"entries"`
	IndexType types.IndexKind    `json:"indexType"`
	Format    string             `json:"format"`
	BookName  string             `json:"bookName"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxExportBody))
	if err != nil {
		writeErr(w, http.StatusRequestEntityTooLarge, "too_large", "Request body too large")
		return
	}
	if err := validate.ExportRequest(body); err != nil {
		writeErr(w, http.StatusBadRequest, "validation_failed", sanitizeError(err))
		return
	}
	var req exportRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", sanitizeError(err))
		return
	}

	renderer, err := export.New(req.Format, s.opts.Export)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "validation_failed", sanitizeError(err))
		return
	}
	for i := range req.Entries {
		if req.Entries[i].PageNumbers == nil {
			req.Entries[i].PageNumbers = []int{}
		}
	}
	doc, err := renderer.Render(types.GeneratedIndex{
		Type:        req.IndexType,
		Entries:     req.Entries,
		GeneratedAt: s.now(),
		BookName:    req.BookName,
	})
	if err != nil {
		s.log.Error("export failed", "format", req.Format, "error", err)
		writeErr(w, http.StatusInternalServerError, "export_failed", "Failed to export index")
		return
	}

	w.Header().Set("Content-Type", renderer.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="index-%s%s"`, req.IndexType, renderer.Extension()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func joinKinds() string {
	ks := types.Kinds()
	parts := make([]string, len(ks))
	for i, k := range ks {
		parts[i] = string(k)
	}
	return strings.Join(parts, ", ")
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) <= maxErrorBytes {
		return msg
	}
	cut := maxErrorBytes
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut] + "..."
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
		"code":    code,
	})
}
