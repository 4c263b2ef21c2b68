package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/textbehind/textbehind-api/internal/bgremoval"
	"github.com/textbehind/textbehind-api/internal/storage"
	"github.com/textbehind/textbehind-api/internal/video"
)

// Remover runs the background-removal pipeline for one video.
type Remover interface {
	Run(ctx context.Context, videoID, sourceURL string) (bgremoval.Outcome, error)
}

// Limits bounds what clients may upload.
type Limits struct {
	// MaxDurationSec is the longest accepted clip, in seconds.
	MaxDurationSec int
	// MaxSizeBytes is the largest accepted object, in bytes.
	MaxSizeBytes int64
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	repo               video.Repository
	gateway            storage.Gateway
	remover            Remover
	validator          *validator.Validate
	logger             *slog.Logger
	limits             Limits
	cdnBaseURL         string
	proxyClient        *http.Client
	enableAsyncRemoval bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncRemoval enables or disables background removal after finalize.
// When disabled, FinalizeUpload only marks the video READY and returns
// without starting the pipeline.
func WithAsyncRemoval(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncRemoval = enabled
	}
}

// WithProxyClient overrides the HTTP client used by the CDN proxy.
func WithProxyClient(c *http.Client) HandlerOption {
	return func(h *Handlers) {
		h.proxyClient = c
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(repo video.Repository, gateway storage.Gateway, remover Remover, limits Limits, cdnBaseURL string, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		repo:               repo,
		gateway:            gateway,
		remover:            remover,
		validator:          validator.New(),
		logger:             logger,
		limits:             limits,
		cdnBaseURL:         strings.TrimSuffix(cdnBaseURL, "/"),
		proxyClient:        &http.Client{Timeout: 60 * time.Second},
		enableAsyncRemoval: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateUpload handles POST /videos/uploads requests. It creates the video
// record in PENDING_UPLOAD and returns presigned PUT targets for the clip
// and its thumbnail.
func (h *Handlers) CreateUpload(w http.ResponseWriter, r *http.Request) {
	ownerID := OwnerID(r.Context())

	target, err := h.gateway.IssueUploadTarget(r.Context(), ownerID)
	if err != nil {
		h.logger.Error("failed to issue upload target",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to issue upload target", "UPLOAD_TARGET_FAILED")
		return
	}

	thumbTarget, err := h.gateway.IssueThumbnailTarget(r.Context(), target.Key)
	if err != nil {
		h.logger.Error("failed to issue thumbnail target",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to issue thumbnail target", "UPLOAD_TARGET_FAILED")
		return
	}

	asset := video.New(ownerID, target.PublicURL, 0)
	if err := h.repo.Create(r.Context(), asset); err != nil {
		h.logger.Error("failed to create video record",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create video", "VIDEO_CREATION_FAILED")
		return
	}

	h.logger.Info("upload target issued",
		slog.String("video_id", asset.ID),
		slog.String("owner_id", ownerID),
	)

	writeJSON(w, http.StatusCreated, CreateUploadResponse{
		VideoID:            asset.ID,
		UploadURL:          target.UploadURL,
		PublicURL:          target.PublicURL,
		ThumbnailUploadURL: thumbTarget.UploadURL,
		ThumbnailPublicURL: thumbTarget.PublicURL,
	})
}

// FinalizeUpload handles POST /videos/{id}/complete requests. It validates
// the client-reported duration and size against the configured limits, marks
// the upload READY and starts background removal on a detached context.
func (h *Handlers) FinalizeUpload(w http.ResponseWriter, r *http.Request) {
	ownerID := OwnerID(r.Context())
	videoID := r.PathValue("id")

	var req FinalizeUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	asset, err := h.findOwned(w, r, ownerID, videoID)
	if err != nil {
		return
	}

	if req.DurationSec > float64(h.limits.MaxDurationSec) {
		h.rejectUpload(r.Context(), w, videoID, "video exceeds the maximum duration", "VIDEO_TOO_LONG")
		return
	}
	if req.SizeBytes > h.limits.MaxSizeBytes {
		h.rejectUpload(r.Context(), w, videoID, "video exceeds the maximum size", "VIDEO_TOO_LARGE")
		return
	}

	if err := h.repo.FinalizeUpload(r.Context(), videoID, req.DurationSec); err != nil {
		h.logger.Error("failed to finalize upload",
			slog.String("video_id", videoID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to finalize upload", "FINALIZE_FAILED")
		return
	}

	// The thumbnail object lives under the clip's key.
	if err := h.repo.SetThumbnailURL(r.Context(), videoID, asset.SourceURL+"/thumbnail.jpg"); err != nil {
		h.logger.Warn("failed to store thumbnail URL",
			slog.String("video_id", videoID),
			slog.String("error", err.Error()),
		)
	}

	// Start removal in background with a detached context so it survives
	// the end of the request.
	if h.enableAsyncRemoval {
		go func(ctx context.Context, id, sourceURL string) {
			if _, runErr := h.remover.Run(ctx, id, sourceURL); runErr != nil {
				h.logger.Error("background removal failed",
					slog.String("video_id", id),
					slog.String("error", runErr.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), videoID, asset.SourceURL)
	}

	h.logger.Info("upload finalized",
		slog.String("video_id", videoID),
		slog.Float64("duration_sec", req.DurationSec),
		slog.Int64("size_bytes", req.SizeBytes),
	)

	finalized, err := h.repo.FindByID(r.Context(), videoID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch video", "VIDEO_FETCH_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, toVideoResponse(finalized))
}

// ListVideos handles GET /videos requests.
func (h *Handlers) ListVideos(w http.ResponseWriter, r *http.Request) {
	ownerID := OwnerID(r.Context())

	assets, err := h.repo.ListByOwner(r.Context(), ownerID)
	if err != nil {
		h.logger.Error("failed to list videos",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list videos", "VIDEO_LIST_FAILED")
		return
	}

	resp := VideoListResponse{Videos: make([]VideoResponse, 0, len(assets))}
	for _, asset := range assets {
		resp.Videos = append(resp.Videos, toVideoResponse(asset))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetVideo handles GET /videos/{id} requests.
func (h *Handlers) GetVideo(w http.ResponseWriter, r *http.Request) {
	ownerID := OwnerID(r.Context())
	videoID := r.PathValue("id")

	asset, err := h.findOwned(w, r, ownerID, videoID)
	if err != nil {
		return
	}
	writeJSON(w, http.StatusOK, toVideoResponse(asset))
}

// Proxy handles GET /proxy requests. It streams a CDN object with permissive
// CORS headers so browser canvases can read the pixels. Only URLs under the
// configured CDN prefix are allowed.
func (h *Handlers) Proxy(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeError(w, http.StatusBadRequest, "url parameter is required", "MISSING_URL")
		return
	}
	if !strings.HasPrefix(rawURL, h.cdnBaseURL+"/") {
		writeError(w, http.StatusForbidden, "url is not under the configured CDN", "URL_NOT_ALLOWED")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, rawURL, nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid url", "INVALID_URL")
		return
	}

	resp, err := h.proxyClient.Do(req)
	if err != nil {
		h.logger.Error("proxy request failed",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to fetch object", "PROXY_FAILED")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		writeError(w, http.StatusBadGateway, "upstream returned an error", "PROXY_FAILED")
		return
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Warn("proxy stream interrupted",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
	}
}

// findOwned loads the asset and enforces ownership; a foreign or missing
// video is a 404 either way.
func (h *Handlers) findOwned(w http.ResponseWriter, r *http.Request, ownerID, videoID string) (*video.Asset, error) {
	if videoID == "" {
		writeError(w, http.StatusBadRequest, "video ID is required", "MISSING_VIDEO_ID")
		return nil, errors.New("missing video id")
	}

	asset, err := h.repo.FindByID(r.Context(), videoID)
	if err != nil {
		if errors.Is(err, video.ErrNotFound) {
			writeError(w, http.StatusNotFound, "video not found", "VIDEO_NOT_FOUND")
			return nil, err
		}
		h.logger.Error("failed to get video",
			slog.String("video_id", videoID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get video", "VIDEO_FETCH_FAILED")
		return nil, err
	}
	if asset.OwnerID != ownerID {
		writeError(w, http.StatusNotFound, "video not found", "VIDEO_NOT_FOUND")
		return nil, video.ErrNotFound
	}
	return asset, nil
}

// rejectUpload marks the upload failed and writes the rejection.
func (h *Handlers) rejectUpload(ctx context.Context, w http.ResponseWriter, videoID, message, code string) {
	if err := h.repo.SetUploadStatus(ctx, videoID, video.UploadFailed); err != nil {
		h.logger.Error("failed to mark upload failed",
			slog.String("video_id", videoID),
			slog.String("error", err.Error()),
		)
	}
	writeError(w, http.StatusBadRequest, message, code)
}

func toVideoResponse(asset *video.Asset) VideoResponse {
	return VideoResponse{
		ID:            asset.ID,
		SourceURL:     asset.SourceURL,
		ThumbnailURL:  asset.ThumbnailURL,
		UploadStatus:  string(asset.UploadStatus),
		RemovalStatus: string(asset.DerivedStatus),
		RemovedBgURL:  asset.DerivedURL,
		RemovalError:  asset.DerivedError,
		DurationSec:   asset.DurationSec,
		CreatedAt:     asset.CreatedAt,
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
