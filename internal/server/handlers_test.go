package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/textbehind/textbehind-api/internal/auth"
	"github.com/textbehind/textbehind-api/internal/bgremoval"
	"github.com/textbehind/textbehind-api/internal/storage"
	"github.com/textbehind/textbehind-api/internal/video"
)

// mockGateway implements storage.Gateway for testing.
type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) IssueUploadTarget(ctx context.Context, ownerID string) (storage.UploadTarget, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).(storage.UploadTarget), args.Error(1)
}

func (m *mockGateway) IssueThumbnailTarget(ctx context.Context, videoKey string) (storage.UploadTarget, error) {
	args := m.Called(ctx, videoKey)
	return args.Get(0).(storage.UploadTarget), args.Error(1)
}

func (m *mockGateway) Store(ctx context.Context, data []byte, ownerID, contentType string) (string, error) {
	args := m.Called(ctx, data, ownerID, contentType)
	return args.String(0), args.Error(1)
}

// fakeRemover records Run calls and signals on a channel so tests can wait
// for the detached goroutine.
type fakeRemover struct {
	calls chan string
}

func newFakeRemover() *fakeRemover {
	return &fakeRemover{calls: make(chan string, 4)}
}

func (f *fakeRemover) Run(ctx context.Context, videoID, sourceURL string) (bgremoval.Outcome, error) {
	f.calls <- videoID
	return bgremoval.Outcome{Status: video.DerivedCompleted}, nil
}

type testEnv struct {
	repo     *video.MemoryRepository
	gateway  *mockGateway
	remover  *fakeRemover
	verifier *auth.Verifier
	router   http.Handler
}

func newTestEnv(t *testing.T, opts ...HandlerOption) *testEnv {
	t.Helper()

	repo := video.NewMemoryRepository()
	gateway := &mockGateway{}
	remover := newFakeRemover()
	verifier, err := auth.NewVerifier("test-secret")
	require.NoError(t, err)

	limits := Limits{MaxDurationSec: 10, MaxSizeBytes: 1024}
	h := NewHandlers(repo, gateway, remover, limits, "https://cdn.example", slog.Default(), opts...)
	router := NewRouter(h, verifier, slog.Default(), DefaultConfig())

	return &testEnv{repo: repo, gateway: gateway, remover: remover, verifier: verifier, router: router}
}

func (e *testEnv) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		token, err := e.verifier.IssueToken(userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// readyVideo creates a READY asset owned by userID directly in the repository.
func (e *testEnv) readyVideo(t *testing.T, userID string) *video.Asset {
	t.Helper()
	asset := video.New(userID, "https://cdn.example/"+userID+"/abc123/clip", 0)
	require.NoError(t, e.repo.Create(context.Background(), asset))
	return asset
}

func TestHealth_NoAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestAuth_MissingToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/videos", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_InvalidToken(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/videos", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateUpload(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.On("IssueUploadTarget", mock.Anything, "user-1").Return(storage.UploadTarget{
		UploadURL: "https://s3.example/put/clip",
		PublicURL: "https://cdn.example/user-1/abc123/clip",
		Key:       "user-1/abc123/clip",
	}, nil)
	env.gateway.On("IssueThumbnailTarget", mock.Anything, "user-1/abc123/clip").Return(storage.UploadTarget{
		UploadURL: "https://s3.example/put/thumb",
		PublicURL: "https://cdn.example/user-1/abc123/clip/thumbnail.jpg",
		Key:       "user-1/abc123/clip/thumbnail.jpg",
	}, nil)

	rec := env.do(t, http.MethodPost, "/videos/uploads", "user-1", nil)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp CreateUploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.VideoID)
	assert.Equal(t, "https://s3.example/put/clip", resp.UploadURL)
	assert.Equal(t, "https://cdn.example/user-1/abc123/clip", resp.PublicURL)
	assert.Equal(t, "https://s3.example/put/thumb", resp.ThumbnailUploadURL)

	saved, err := env.repo.FindByID(context.Background(), resp.VideoID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", saved.OwnerID)
	assert.Equal(t, video.UploadPending, saved.UploadStatus)
	assert.Equal(t, resp.PublicURL, saved.SourceURL)

	env.gateway.AssertExpectations(t)
}

func TestFinalizeUpload_StartsRemoval(t *testing.T) {
	env := newTestEnv(t)
	asset := env.readyVideo(t, "user-1")

	rec := env.do(t, http.MethodPost, "/videos/"+asset.ID+"/complete", "user-1",
		FinalizeUploadRequest{DurationSec: 7.5, SizeBytes: 512})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp VideoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(video.UploadReady), resp.UploadStatus)
	assert.Equal(t, 7.5, resp.DurationSec)
	assert.Equal(t, asset.SourceURL+"/thumbnail.jpg", resp.ThumbnailURL)

	select {
	case id := <-env.remover.calls:
		assert.Equal(t, asset.ID, id)
	case <-time.After(time.Second):
		t.Fatal("removal was not started")
	}
}

func TestFinalizeUpload_TooLong(t *testing.T) {
	env := newTestEnv(t)
	asset := env.readyVideo(t, "user-1")

	rec := env.do(t, http.MethodPost, "/videos/"+asset.ID+"/complete", "user-1",
		FinalizeUploadRequest{DurationSec: 10.5, SizeBytes: 512})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "VIDEO_TOO_LONG", resp.Code)

	saved, err := env.repo.FindByID(context.Background(), asset.ID)
	require.NoError(t, err)
	assert.Equal(t, video.UploadFailed, saved.UploadStatus)
	assert.Empty(t, env.remover.calls)
}

func TestFinalizeUpload_TooLarge(t *testing.T) {
	env := newTestEnv(t)
	asset := env.readyVideo(t, "user-1")

	rec := env.do(t, http.MethodPost, "/videos/"+asset.ID+"/complete", "user-1",
		FinalizeUploadRequest{DurationSec: 5, SizeBytes: 4096})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "VIDEO_TOO_LARGE", resp.Code)
}

func TestFinalizeUpload_ValidationError(t *testing.T) {
	env := newTestEnv(t)
	asset := env.readyVideo(t, "user-1")

	rec := env.do(t, http.MethodPost, "/videos/"+asset.ID+"/complete", "user-1",
		map[string]any{"duration_sec": 0})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
}

func TestFinalizeUpload_ForeignOwner(t *testing.T) {
	env := newTestEnv(t)
	asset := env.readyVideo(t, "user-1")

	rec := env.do(t, http.MethodPost, "/videos/"+asset.ID+"/complete", "user-2",
		FinalizeUploadRequest{DurationSec: 5, SizeBytes: 512})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, env.remover.calls)
}

func TestGetVideo(t *testing.T) {
	env := newTestEnv(t)
	asset := env.readyVideo(t, "user-1")

	rec := env.do(t, http.MethodGet, "/videos/"+asset.ID, "user-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp VideoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, asset.ID, resp.ID)
	assert.Equal(t, string(video.DerivedNotStarted), resp.RemovalStatus)
}

func TestGetVideo_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/videos/nonexistent", "user-1", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetVideo_ForeignOwnerHidden(t *testing.T) {
	env := newTestEnv(t)
	asset := env.readyVideo(t, "user-1")

	rec := env.do(t, http.MethodGet, "/videos/"+asset.ID, "user-2", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListVideos_OwnerScoped(t *testing.T) {
	env := newTestEnv(t)
	first := env.readyVideo(t, "user-1")
	time.Sleep(2 * time.Millisecond)
	second := env.readyVideo(t, "user-1")
	env.readyVideo(t, "user-2")

	rec := env.do(t, http.MethodGet, "/videos", "user-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp VideoListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Videos, 2)
	assert.Equal(t, second.ID, resp.Videos[0].ID)
	assert.Equal(t, first.ID, resp.Videos[1].ID)
}

func TestProxy_StreamsAllowedURL(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("clip bytes"))
	}))
	defer upstream.Close()

	repo := video.NewMemoryRepository()
	verifier, err := auth.NewVerifier("test-secret")
	require.NoError(t, err)
	h := NewHandlers(repo, &mockGateway{}, newFakeRemover(),
		Limits{MaxDurationSec: 10, MaxSizeBytes: 1024}, upstream.URL, slog.Default())
	router := NewRouter(h, verifier, slog.Default(), DefaultConfig())

	token, err := verifier.IssueToken("user-1")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/proxy?url="+upstream.URL+"/obj", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "clip bytes", rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
}

func TestProxy_RejectsForeignURL(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/proxy?url=https://evil.example/obj", "user-1", nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestProxy_MissingURL(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/proxy", "user-1", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
