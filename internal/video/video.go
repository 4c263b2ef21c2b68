// Package video provides the VideoAsset aggregate for uploaded clips and
// their background-removed derivatives, along with repository interfaces
// for persistence.
package video

import (
	"time"

	"github.com/google/uuid"
)

// UploadStatus represents the upload lifecycle of a video asset.
type UploadStatus string

const (
	// UploadPending indicates the record exists but bytes have not arrived yet.
	UploadPending UploadStatus = "PENDING_UPLOAD"
	// UploadInProgress indicates the client is transferring bytes to storage.
	UploadInProgress UploadStatus = "UPLOADING"
	// UploadReady indicates the upload completed and the source URL is playable.
	UploadReady UploadStatus = "READY"
	// UploadFailed indicates the upload did not complete.
	UploadFailed UploadStatus = "UPLOAD_FAILED"
)

// DerivedStatus represents the lifecycle of the background-removed derivative.
type DerivedStatus string

const (
	// DerivedNotStarted indicates background removal has not been requested.
	DerivedNotStarted DerivedStatus = "NOT_STARTED"
	// DerivedProcessing indicates a background-removal run is in flight.
	DerivedProcessing DerivedStatus = "PROCESSING"
	// DerivedCompleted indicates the derivative is published; DerivedURL is set.
	DerivedCompleted DerivedStatus = "COMPLETED"
	// DerivedFailed indicates the last background-removal run failed.
	DerivedFailed DerivedStatus = "FAILED"
)

// IsTerminal returns true if the derived status is a terminal state.
func (s DerivedStatus) IsTerminal() bool {
	return s == DerivedCompleted || s == DerivedFailed
}

// Asset represents one uploaded clip and its derived products.
// Invariant: DerivedURL is non-empty if and only if DerivedStatus is
// DerivedCompleted. Background removal may only begin once UploadStatus
// is UploadReady.
type Asset struct {
	// ID is the unique identifier for this asset.
	ID string
	// OwnerID identifies the user who uploaded the clip.
	OwnerID string
	// SourceURL is the playable location of the original upload.
	SourceURL string
	// ThumbnailURL is the playable location of the upload's thumbnail, if any.
	ThumbnailURL string
	// UploadStatus is the upload lifecycle state.
	UploadStatus UploadStatus
	// DerivedStatus is the background-removal lifecycle state.
	DerivedStatus DerivedStatus
	// DerivedURL is the published location of the background-removed clip.
	DerivedURL string
	// DerivedError holds the reason of the last failed background-removal run.
	DerivedError string
	// InferenceJobID is the provider's handle for the in-flight prediction.
	// Persisted on submission so stuck runs can be identified after a restart.
	InferenceJobID string
	// DurationSec is the clip duration in seconds as reported at upload time.
	DurationSec float64
	// CreatedAt is when the upload began.
	CreatedAt time.Time
	// UpdatedAt is when the record last changed.
	UpdatedAt time.Time
}

// New creates a new Asset in PENDING_UPLOAD state with a generated ID.
func New(ownerID, sourceURL string, durationSec float64) *Asset {
	now := time.Now()
	return &Asset{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		SourceURL:     sourceURL,
		UploadStatus:  UploadPending,
		DerivedStatus: DerivedNotStarted,
		DurationSec:   durationSec,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Clone creates a copy of the asset for safe reads.
func (a *Asset) Clone() *Asset {
	cp := *a
	return &cp
}
