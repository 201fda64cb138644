package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/bookfix/internal/chunker"
	"github.com/dgallion1/bookfix/internal/config"
	"github.com/dgallion1/bookfix/internal/correct"
	"github.com/dgallion1/bookfix/internal/markup"
	"github.com/dgallion1/bookfix/internal/normalize"
	"github.com/dgallion1/bookfix/internal/pipeline"
	"github.com/dgallion1/bookfix/internal/segment"
	"github.com/dgallion1/bookfix/internal/store"
	"github.com/dgallion1/bookfix/internal/tokens"
)

const testKey = "test-key"

type upperService struct{}

func (upperService) Correct(_ context.Context, text string) (string, error) {
	return strings.ToUpper(text), nil
}

func newTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.NewFileStore(t.TempDir(), store.DefaultNaming())
	require.NoError(t, err)
	seg, err := segment.New("img")
	require.NoError(t, err)
	norm, err := normalize.New(markup.HTMLParser{}, normalize.DefaultOptions())
	require.NoError(t, err)

	stats := correct.NewLLMStats(time.Hour)
	svc := correct.WithStats(upperService{}, stats)
	corrector := pipeline.NewCorrector(svc, tokens.Heuristic{}, norm, pipeline.CorrectorConfig{
		Chunk: chunker.Config{MaxUnitSize: 100, Strategy: chunker.StrategyRawCharacter},
		Retry: pipeline.RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}, log)

	cfg := config.Config{
		BookfixAPIKey:  testKey,
		Provider:       "openai",
		Model:          "gpt-3.5-turbo",
		WorkerCount:    1,
		MaxQueueSize:   10,
		JobTTL:         time.Hour,
		MaxUploadBytes: 1 << 20,
	}
	orch := pipeline.NewOrchestrator(cfg, corrector, st, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	return NewServer(orch, st, seg, stats, log, cfg), st
}

func do(t *testing.T, srv http.Handler, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+testKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func upload(t *testing.T, srv http.Handler, filename, content string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return do(t, srv, http.MethodPost, "/api/books", &buf, mw.FormDataContentType())
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthIsPublic(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats/llm", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/stats/llm", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadAndListSegments(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := upload(t, srv, "book.html", "Hello <img src='a.png'>World<img src='b.png'>!", map[string]string{"book_id": "b1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "b1", body["book_id"])
	assert.EqualValues(t, 3, body["segments"])

	rec = do(t, srv, http.MethodGet, "/api/books/b1/segments", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{float64(1), float64(2), float64(3)}, decode(t, rec)["segments"])

	rec = do(t, srv, http.MethodGet, "/api/books/b1/segments/2", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	seg := decode(t, rec)
	assert.Equal(t, "World<img src='b.png'>", seg["text"])
	_, hasCorrected := seg["corrected"]
	assert.False(t, hasCorrected)
}

func TestUploadGeneratesBookID(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := upload(t, srv, "notes.md", "# T\n\ntexto\n", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id, _ := decode(t, rec)["book_id"].(string)
	assert.Len(t, id, 36)
}

func TestUploadRejectsBadInput(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := upload(t, srv, "sheet.csv", "a,b", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = upload(t, srv, "book.txt", "x", map[string]string{"book_id": "../etc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCorrectSegmentJob(t *testing.T) {
	srv, st := newTestServer(t)
	require.NoError(t, st.PutSegment(context.Background(), "b1", 1, `<p class="x"> </p>texto   aqui<img src='a.png'>`))

	rec := do(t, srv, http.MethodPost, "/api/books/b1/segments/1/correct", nil, "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	jobID := decode(t, rec)["job_id"].(string)

	var status map[string]any
	require.Eventually(t, func() bool {
		rec := do(t, srv, http.MethodGet, "/api/jobs/"+jobID, nil, "")
		if rec.Code != http.StatusOK {
			return false
		}
		status = decode(t, rec)
		return status["status"] == string(pipeline.StatusCompleted)
	}, 5*time.Second, 10*time.Millisecond)

	progress := status["progress"].(map[string]any)
	assert.EqualValues(t, 1, progress["chunks_succeeded"])

	got, err := st.GetCorrected(context.Background(), "b1", 1)
	require.NoError(t, err)
	assert.Equal(t, "TEXTO AQUI<IMG SRC='A.PNG'>", got)

	rec = do(t, srv, http.MethodGet, "/api/stats/llm", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode(t, rec)["stats"].(map[string]any)
	assert.EqualValues(t, 1, stats["count"])
}

func TestCorrectBookQueuesEverySegment(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		require.NoError(t, st.PutSegment(ctx, "b1", i, "texto"))
	}

	rec := do(t, srv, http.MethodPost, "/api/books/b1/correct", nil, "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	jobs := decode(t, rec)["jobs"].([]any)
	assert.Len(t, jobs, 3)

	require.Eventually(t, func() bool {
		for i := 1; i <= 3; i++ {
			if _, err := st.GetCorrected(ctx, "b1", i); err != nil {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)
}

func TestNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/books/nope/segments", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodPost, "/api/books/nope/segments/1/correct", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/jobs/missing", nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/api/books/b1/segments/zero/correct", nil, "").Code)
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"book.epub.html":      "book.epub.html",
		"../../etc/passwd.md": "passwd.md",
		`C:\books\vol1.txt`:   "vol1.txt",
		"a..b.txt":            "a_b.txt",
		"":                    "unnamed",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q): expected %q, got %q", in, want, got)
		}
	}
}
