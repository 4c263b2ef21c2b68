package video

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// It uses a map with RWMutex for thread-safe access.
// Suitable for development and testing; swap for Postgres in production.
type MemoryRepository struct {
	mu     sync.RWMutex
	assets map[string]*Asset
}

// NewMemoryRepository creates a new in-memory video repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		assets: make(map[string]*Asset),
	}
}

// Create persists a new asset.
// Creates a clone to avoid external mutations.
func (r *MemoryRepository) Create(_ context.Context, asset *Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets[asset.ID] = asset.Clone()
	return nil
}

// FindByID retrieves an asset by its ID.
// Returns a clone to prevent external mutations.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	asset, ok := r.assets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return asset.Clone(), nil
}

// ListByOwner returns the owner's assets, newest first.
func (r *MemoryRepository) ListByOwner(_ context.Context, ownerID string) ([]*Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Asset, 0)
	for _, asset := range r.assets {
		if asset.OwnerID == ownerID {
			result = append(result, asset.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// SetUploadStatus updates the upload lifecycle state.
func (r *MemoryRepository) SetUploadStatus(_ context.Context, id string, status UploadStatus) error {
	return r.mutate(id, func(a *Asset) error {
		a.UploadStatus = status
		return nil
	})
}

// SetThumbnailURL records the thumbnail location.
func (r *MemoryRepository) SetThumbnailURL(_ context.Context, id, url string) error {
	return r.mutate(id, func(a *Asset) error {
		a.ThumbnailURL = url
		return nil
	})
}

// FinalizeUpload marks the upload READY and records the clip duration.
func (r *MemoryRepository) FinalizeUpload(_ context.Context, id string, durationSec float64) error {
	return r.mutate(id, func(a *Asset) error {
		a.UploadStatus = UploadReady
		a.DurationSec = durationSec
		return nil
	})
}

// BeginRemoval atomically moves the asset into PROCESSING.
func (r *MemoryRepository) BeginRemoval(_ context.Context, id string) error {
	return r.mutate(id, func(a *Asset) error {
		if a.DerivedStatus == DerivedProcessing {
			return ErrRemovalInProgress
		}
		a.DerivedStatus = DerivedProcessing
		a.DerivedURL = ""
		a.DerivedError = ""
		a.InferenceJobID = ""
		return nil
	})
}

// SetInferenceJob records the provider's job handle.
func (r *MemoryRepository) SetInferenceJob(_ context.Context, id, jobHandle string) error {
	return r.mutate(id, func(a *Asset) error {
		a.InferenceJobID = jobHandle
		return nil
	})
}

// CompleteRemoval marks the derived asset COMPLETED.
func (r *MemoryRepository) CompleteRemoval(_ context.Context, id, derivedURL string) error {
	return r.mutate(id, func(a *Asset) error {
		a.DerivedStatus = DerivedCompleted
		a.DerivedURL = derivedURL
		a.DerivedError = ""
		return nil
	})
}

// FailRemoval marks the derived asset FAILED with a reason.
func (r *MemoryRepository) FailRemoval(_ context.Context, id, reason string) error {
	return r.mutate(id, func(a *Asset) error {
		a.DerivedStatus = DerivedFailed
		a.DerivedURL = ""
		a.DerivedError = reason
		return nil
	})
}

// FailStuckRemovals fails assets stuck in PROCESSING since before the cutoff.
func (r *MemoryRepository) FailStuckRemovals(_ context.Context, cutoff time.Time, reason string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, asset := range r.assets {
		if asset.DerivedStatus == DerivedProcessing && asset.UpdatedAt.Before(cutoff) {
			asset.DerivedStatus = DerivedFailed
			asset.DerivedURL = ""
			asset.DerivedError = reason
			asset.UpdatedAt = time.Now()
			ids = append(ids, asset.ID)
		}
	}
	return ids, nil
}

// mutate applies fn to the stored asset under the write lock and bumps
// UpdatedAt on success.
func (r *MemoryRepository) mutate(id string, fn func(*Asset) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	asset, ok := r.assets[id]
	if !ok {
		return ErrNotFound
	}
	if err := fn(asset); err != nil {
		return err
	}
	asset.UpdatedAt = time.Now()
	return nil
}
