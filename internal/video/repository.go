package video

import (
	"context"
	"errors"
	"time"
)

// Static errors for repository operations.
var (
	// ErrNotFound is returned when an asset cannot be found by ID.
	ErrNotFound = errors.New("video not found")
	// ErrRemovalInProgress is returned by BeginRemoval when another driver
	// already moved the asset into PROCESSING.
	ErrRemovalInProgress = errors.New("background removal already in progress")
)

// Repository defines the interface for video asset persistence.
type Repository interface {
	// Create persists a new asset.
	Create(ctx context.Context, asset *Asset) error

	// FindByID retrieves an asset by its unique identifier.
	// Returns ErrNotFound if the asset does not exist.
	FindByID(ctx context.Context, id string) (*Asset, error)

	// ListByOwner returns the owner's assets ordered by creation time descending.
	ListByOwner(ctx context.Context, ownerID string) ([]*Asset, error)

	// SetUploadStatus updates the upload lifecycle state.
	SetUploadStatus(ctx context.Context, id string, status UploadStatus) error

	// SetThumbnailURL records the thumbnail location.
	SetThumbnailURL(ctx context.Context, id, url string) error

	// FinalizeUpload marks the upload READY and records the clip duration
	// reported by the client.
	FinalizeUpload(ctx context.Context, id string, durationSec float64) error

	// BeginRemoval atomically moves the asset's derived status into
	// PROCESSING and clears any previous derived URL and error. It fails
	// with ErrRemovalInProgress when the asset is already PROCESSING, so
	// two concurrent drivers cannot both submit inference jobs.
	BeginRemoval(ctx context.Context, id string) error

	// SetInferenceJob records the provider's job handle for an in-flight run.
	SetInferenceJob(ctx context.Context, id, jobHandle string) error

	// CompleteRemoval marks the derived asset COMPLETED with its published URL.
	CompleteRemoval(ctx context.Context, id, derivedURL string) error

	// FailRemoval marks the derived asset FAILED with a reason.
	FailRemoval(ctx context.Context, id, reason string) error

	// FailStuckRemovals marks every asset that has been PROCESSING since
	// before the cutoff as FAILED and returns the affected IDs. Used by the
	// recovery sweep to clear runs orphaned by a restart.
	FailStuckRemovals(ctx context.Context, cutoff time.Time, reason string) ([]string, error)
}
