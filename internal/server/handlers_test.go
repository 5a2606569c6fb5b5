package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/avalign/avalign-api/internal/align"
	"github.com/avalign/avalign-api/internal/job"
	"github.com/avalign/avalign-api/internal/pipeline"
	"github.com/avalign/avalign-api/internal/storage"
)

// mockRunner implements job.Runner for testing.
type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, videoPath, audioPath, outputPath string, strategy align.Strategy) (pipeline.Result, error) {
	args := m.Called(ctx, videoPath, audioPath, outputPath, strategy)
	return args.Get(0).(pipeline.Result), args.Error(1)
}

func newTestHandlers(t *testing.T) (*Handlers, *mockRunner, job.Repository) {
	t.Helper()
	repo := job.NewMemoryRepository()
	runner := &mockRunner{}
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	svc := job.NewAlignService(repo, runner, store, logger)

	// Disable async processing so tests control execution directly.
	handlers := NewHandlers(svc, logger, WithAsyncProcessing(false))
	return handlers, runner, repo
}

func validCreateBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(CreateJobRequest{
		VideoBase64: base64.StdEncoding.EncodeToString([]byte("video-bytes")),
		AudioBase64: base64.StdEncoding.EncodeToString([]byte("audio-bytes")),
		Strategy:    "chunked",
	})
	require.NoError(t, err)
	return body
}

func TestHealth(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestCreateJob_Success(t *testing.T) {
	h, _, repo := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader(validCreateBody(t)))
	rec := httptest.NewRecorder()

	h.CreateJob(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp CreateJobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, string(job.StatusInQueue), resp.Status)

	saved, err := repo.FindByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, align.StrategyChunked, saved.Strategy)
}

func TestCreateJob_InvalidJSON(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()

	h.CreateJob(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "INVALID_JSON", resp.Code)
}

func TestCreateJob_ValidationError_MissingFields(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	body, err := json.Marshal(CreateJobRequest{VideoBase64: base64.StdEncoding.EncodeToString([]byte("v"))})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.CreateJob(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
}

func TestCreateJob_ValidationError_UnknownStrategy(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	body, err := json.Marshal(CreateJobRequest{
		VideoBase64: base64.StdEncoding.EncodeToString([]byte("v")),
		AudioBase64: base64.StdEncoding.EncodeToString([]byte("a")),
		Strategy:    "fancy",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.CreateJob(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJob_Success(t *testing.T) {
	h, _, repo := newTestHandlers(t)

	j := job.NewWithID("aln-test-1")
	require.NoError(t, repo.Save(context.Background(), j))

	req := httptest.NewRequest(http.MethodGet, "/jobs/aln-test-1", nil)
	req.SetPathValue("id", "aln-test-1")
	rec := httptest.NewRecorder()

	h.GetJob(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp JobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "aln-test-1", resp.ID)
	assert.Equal(t, string(job.StatusInQueue), resp.Status)
	assert.Nil(t, resp.Plan)
}

func TestGetJob_NotFound(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/jobs/nope", nil)
	req.SetPathValue("id", "nope")
	rec := httptest.NewRecorder()

	h.GetJob(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetJob_MissingID(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/jobs/", nil)
	rec := httptest.NewRecorder()

	h.GetJob(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJob_CompletedWithS3URL(t *testing.T) {
	h, _, repo := newTestHandlers(t)

	j := job.NewWithID("aln-s3")
	j.PushToS3 = true
	require.NoError(t, j.Start())
	j.SetPlan(job.PlanSummary{Mode: align.ModeLoopVideo, Strategy: align.StrategyChunked, LoopCount: 3, VideoDurationSec: 5, AudioDurationSec: 12})
	j.SetOutput("/tmp/never-read.mp4", "https://bucket.s3.us-east-1.amazonaws.com/aln-s3.mp4")
	require.NoError(t, j.Complete())
	require.NoError(t, repo.Save(context.Background(), j))

	req := httptest.NewRequest(http.MethodGet, "/jobs/aln-s3", nil)
	req.SetPathValue("id", "aln-s3")
	rec := httptest.NewRecorder()

	h.GetJob(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp JobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "https://bucket.s3.us-east-1.amazonaws.com/aln-s3.mp4", resp.OutputURL)
	assert.Empty(t, resp.OutputBase64)
	require.NotNil(t, resp.Plan)
	assert.Equal(t, string(align.ModeLoopVideo), resp.Plan.Mode)
	assert.Equal(t, 3, resp.Plan.LoopCount)
}

func TestGetJob_CompletedWithOutputBase64(t *testing.T) {
	h, _, repo := newTestHandlers(t)

	outputPath := filepath.Join(t.TempDir(), "out.mp4")
	require.NoError(t, os.WriteFile(outputPath, []byte("muxed-bytes"), 0600))

	j := job.NewWithID("aln-local")
	require.NoError(t, j.Start())
	j.SetPlan(job.PlanSummary{Mode: align.ModePadAudio, Strategy: align.StrategySimple, VideoDurationSec: 12, AudioDurationSec: 5})
	j.SetOutput(outputPath, "")
	require.NoError(t, j.Complete())
	require.NoError(t, repo.Save(context.Background(), j))

	req := httptest.NewRequest(http.MethodGet, "/jobs/aln-local", nil)
	req.SetPathValue("id", "aln-local")
	rec := httptest.NewRecorder()

	h.GetJob(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp JobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("muxed-bytes")), resp.OutputBase64)
	require.NotNil(t, resp.Plan)
	assert.Equal(t, string(align.ModePadAudio), resp.Plan.Mode)
}

func TestRouter_Integration(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	router := NewRouter(h, logger, DefaultConfig())

	t.Run("health endpoint", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("create job endpoint", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader(validCreateBody(t)))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("unknown route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/nope", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCORSMiddleware(t *testing.T) {
	handler := CORSMiddleware([]string{"*"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("adds headers for allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://example.com")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("handles preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", "https://example.com")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	handler := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
