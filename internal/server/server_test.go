package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/MalithGihan/torahindex-service/internal/index"
	"github.com/MalithGihan/torahindex-service/internal/ingest"
	"github.com/MalithGihan/torahindex-service/internal/store"
	"github.com/MalithGihan/torahindex-service/pkg/types"
)

type fakeIndexer struct {
	idx   types.GeneratedIndex
	err   error
	calls int
	path  string
	kind  types.IndexKind
}

func (f *fakeIndexer) GenerateIndexFromFile(_ context.Context, path string, kind types.IndexKind) (types.GeneratedIndex, error) {
	f.calls++
	f.path = path
	f.kind = kind
	_ = os.Remove(path)
	if f.err != nil {
		return types.GeneratedIndex{}, f.err
	}
	out := f.idx
	out.Type = kind
	return out, nil
}

func newTestServer(t *testing.T, ix Indexer, opts Options) *Server {
	t.Helper()
	st, err := store.New(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	if opts.RateLimitBurst == 0 {
		opts.RateLimitBurst = 100
		opts.RateLimitEvery = time.Millisecond
	}
	s := New(ix, st, opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

type upload struct {
	filename    string
	contentType string
	body        string
}

func multipartRequest(t *testing.T, fields map[string]string, file *upload) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if file != nil {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, file.filename))
		h.Set("Content-Type", file.contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(part, file.body)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/index/generate", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, rec.Body.String())
	}
	return out
}

func pdfUpload() *upload {
	return &upload{filename: "בראשית.pdf", contentType: "application/pdf", body: "%PDF-1.4 fake"}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &fakeIndexer{}, Options{})
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["ok"] != true || body["service"] != serviceName {
		t.Errorf("body = %v", body)
	}
}

func TestGenerate(t *testing.T) {
	entries := make([]types.IndexEntry, 7)
	for i := range entries {
		entries[i] = types.IndexEntry{Term: fmt.Sprintf("t%d", i), PageNumbers: []int{i + 1}}
	}
	ix := &fakeIndexer{idx: types.GeneratedIndex{Entries: entries}}
	s := newTestServer(t, ix, Options{})

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, multipartRequest(t, map[string]string{"indexType": "topics"}, pdfUpload()))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp generateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.Message != "topics index generated successfully" {
		t.Errorf("resp = %+v", resp)
	}
	if len(resp.Data.Entries) != 7 || len(resp.PreviewEntries) != 5 {
		t.Errorf("entries = %d, preview = %d", len(resp.Data.Entries), len(resp.PreviewEntries))
	}
	if resp.PreviewEntries[0].Term != "t0" || resp.PreviewEntries[4].Term != "t4" {
		t.Errorf("preview = %+v", resp.PreviewEntries)
	}
	if resp.Data.BookName != "בראשית" {
		t.Errorf("BookName = %q", resp.Data.BookName)
	}
	if ix.kind != types.KindTopics || !strings.HasSuffix(ix.path, "-בראשית.pdf") {
		t.Errorf("indexer got %q %q", ix.kind, ix.path)
	}
}

func TestGenerateBookNameField(t *testing.T) {
	ix := &fakeIndexer{}
	s := newTestServer(t, ix, Options{})
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, multipartRequest(t,
		map[string]string{"indexType": "persons", "bookName": "משנה תורה"}, pdfUpload()))

	var resp generateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Data.BookName != "משנה תורה" {
		t.Errorf("BookName = %q", resp.Data.BookName)
	}
}

func TestGenerateRejects(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		file   *upload
		status int
		code   string
	}{
		{"no file", map[string]string{"indexType": "topics"}, nil, http.StatusBadRequest, "no_file"},
		{"bad kind", map[string]string{"indexType": "places"}, pdfUpload(), http.StatusBadRequest, "invalid_index_type"},
		{"missing kind", nil, pdfUpload(), http.StatusBadRequest, "invalid_index_type"},
		{"not a pdf", map[string]string{"indexType": "topics"},
			&upload{filename: "notes.txt", contentType: "text/plain", body: "hello"}, http.StatusBadRequest, "not_pdf"},
		{"too large", map[string]string{"indexType": "topics"},
			&upload{filename: "big.pdf", contentType: "application/pdf", body: "%PDF" + strings.Repeat("x", 2<<20)},
			http.StatusRequestEntityTooLarge, "too_large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix := &fakeIndexer{}
			s := newTestServer(t, ix, Options{})
			rec := httptest.NewRecorder()
			s.Routes().ServeHTTP(rec, multipartRequest(t, tt.fields, tt.file))

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
			body := decodeBody(t, rec)
			if body["success"] != false || body["code"] != tt.code {
				t.Errorf("body = %v", body)
			}
			if ix.calls != 0 {
				t.Error("indexer called for a rejected request")
			}
		})
	}
}

func TestGeneratePipelineErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"extraction", &ingest.ExtractionError{Err: errors.New("not a PDF file")}, http.StatusUnprocessableEntity, "extraction_failed"},
		{"generation", &index.GenerationError{Err: errors.New("OpenAI API error 500")}, http.StatusBadGateway, "generation_failed"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &fakeIndexer{err: tt.err}, Options{})
			rec := httptest.NewRecorder()
			s.Routes().ServeHTTP(rec, multipartRequest(t, map[string]string{"indexType": "sources"}, pdfUpload()))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if body := decodeBody(t, rec); body["code"] != tt.code {
				t.Errorf("body = %v", body)
			}
		})
	}
}

func TestExport(t *testing.T) {
	s := newTestServer(t, &fakeIndexer{}, Options{})
	body := `{"indexType":"persons","format":"md","entries":[{"term":"משה","pageNumbers":[4]},{"term":"אהרן"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/index/export", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="index-persons.md"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	want := "# מפתח persons\n\n- **משה** (4)\n- **אהרן**\n"
	if rec.Body.String() != want {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}
}

func TestExportDefaultsToPDF(t *testing.T) {
	s := newTestServer(t, &fakeIndexer{}, Options{})
	req := httptest.NewRequest(http.MethodPost, "/api/index/export",
		strings.NewReader(`{"indexType":"topics","entries":[{"term":"Shabbat","pageNumbers":[1]}]}`))
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "application/pdf" {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
		t.Error("body is not a PDF")
	}
}

func TestExportValidation(t *testing.T) {
	s := newTestServer(t, &fakeIndexer{}, Options{})
	req := httptest.NewRequest(http.MethodPost, "/api/index/export",
		strings.NewReader(`{"indexType":"topics","format":"docx","entries":[]}`))
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != "validation_failed" {
		t.Errorf("body = %v", body)
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, &fakeIndexer{}, Options{RateLimitEvery: time.Hour, RateLimitBurst: 1})
	h := s.Routes()

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/index/export",
			strings.NewReader(`{"indexType":"topics","format":"json","entries":[]}`))
		req.RemoteAddr = "203.0.113.7:4444"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	if got := send(); got != http.StatusOK {
		t.Fatalf("first request status = %d", got)
	}
	if got := send(); got != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", got)
	}
}

func TestConcurrencyLimit(t *testing.T) {
	s := newTestServer(t, &fakeIndexer{}, Options{MaxConcurrentRequests: 1})
	if !s.sem.TryAcquire(1) {
		t.Fatal("could not take the only slot")
	}
	defer s.sem.Release(1)

	req := httptest.NewRequest(http.MethodPost, "/api/index/export", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestSanitizeErrorKeepsRunesWhole(t *testing.T) {
	long := errors.New("x" + strings.Repeat("א", 200))
	got := sanitizeError(long)
	if !utf8.ValidString(got) {
		t.Fatalf("sanitizeError() split a rune: %q", got)
	}
	if !strings.HasSuffix(got, "...") || len(got) > maxErrorBytes+3 {
		t.Errorf("sanitizeError() = %q (len %d)", got, len(got))
	}
	if short := sanitizeError(errors.New("קצר")); short != "קצר" {
		t.Errorf("sanitizeError() = %q", short)
	}
}
