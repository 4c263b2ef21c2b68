package video

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryRepository_CreateAndFind(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	asset := New("user-1", "https://cdn.example/videos/a.mp4", 7.5)

	if err := repo.Create(ctx, asset); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	saved, err := repo.FindByID(ctx, asset.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.OwnerID != "user-1" {
		t.Errorf("expected owner 'user-1', got %q", saved.OwnerID)
	}
	if saved.UploadStatus != UploadPending {
		t.Errorf("expected upload status %s, got %s", UploadPending, saved.UploadStatus)
	}
	if saved.DerivedStatus != DerivedNotStarted {
		t.Errorf("expected derived status %s, got %s", DerivedNotStarted, saved.DerivedStatus)
	}
}

func TestMemoryRepository_UploadLifecycle(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	asset := New("user-1", "https://cdn.example/videos/a.mp4", 0)
	if err := repo.Create(ctx, asset); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := repo.SetUploadStatus(ctx, asset.ID, UploadInProgress); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	saved, _ := repo.FindByID(ctx, asset.ID)
	if saved.UploadStatus != UploadInProgress {
		t.Errorf("expected upload status %s, got %s", UploadInProgress, saved.UploadStatus)
	}

	if err := repo.FinalizeUpload(ctx, asset.ID, 8.25); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	saved, _ = repo.FindByID(ctx, asset.ID)
	if saved.UploadStatus != UploadReady {
		t.Errorf("expected upload status %s, got %s", UploadReady, saved.UploadStatus)
	}
	if saved.DurationSec != 8.25 {
		t.Errorf("expected duration 8.25, got %v", saved.DurationSec)
	}

	if err := repo.SetThumbnailURL(ctx, asset.ID, "https://cdn.example/videos/a.mp4/thumbnail.jpg"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	saved, _ = repo.FindByID(ctx, asset.ID)
	if saved.ThumbnailURL == "" {
		t.Error("expected thumbnail URL to be stored")
	}
}

func TestMemoryRepository_FindByID_NotFound(t *testing.T) {
	repo := NewMemoryRepository()

	_, err := repo.FindByID(context.Background(), "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepository_FindByID_ReturnsClone(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	asset := New("user-1", "https://cdn.example/videos/a.mp4", 5)
	_ = repo.Create(ctx, asset)

	first, _ := repo.FindByID(ctx, asset.ID)
	first.UploadStatus = UploadFailed

	second, _ := repo.FindByID(ctx, asset.ID)
	if second.UploadStatus != UploadPending {
		t.Error("mutating a returned asset must not affect the stored one")
	}
}

func TestMemoryRepository_ListByOwner_OrderedNewestFirst(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	older := New("user-1", "https://cdn.example/videos/old.mp4", 5)
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := New("user-1", "https://cdn.example/videos/new.mp4", 5)
	other := New("user-2", "https://cdn.example/videos/other.mp4", 5)

	_ = repo.Create(ctx, older)
	_ = repo.Create(ctx, newer)
	_ = repo.Create(ctx, other)

	list, err := repo.ListByOwner(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(list))
	}
	if list[0].ID != newer.ID {
		t.Errorf("expected newest asset first, got %s", list[0].ID)
	}
	if list[1].ID != older.ID {
		t.Errorf("expected oldest asset last, got %s", list[1].ID)
	}
}

func TestMemoryRepository_BeginRemoval(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	asset := New("user-1", "https://cdn.example/videos/a.mp4", 5)
	_ = repo.Create(ctx, asset)

	if err := repo.BeginRemoval(ctx, asset.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	saved, _ := repo.FindByID(ctx, asset.ID)
	if saved.DerivedStatus != DerivedProcessing {
		t.Errorf("expected derived status %s, got %s", DerivedProcessing, saved.DerivedStatus)
	}

	// Second begin while processing must be rejected.
	err := repo.BeginRemoval(ctx, asset.ID)
	if !errors.Is(err, ErrRemovalInProgress) {
		t.Errorf("expected ErrRemovalInProgress, got %v", err)
	}
}

func TestMemoryRepository_BeginRemoval_AllowedFromTerminal(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	asset := New("user-1", "https://cdn.example/videos/a.mp4", 5)
	_ = repo.Create(ctx, asset)

	_ = repo.BeginRemoval(ctx, asset.ID)
	_ = repo.FailRemoval(ctx, asset.ID, "timeout")

	// A fresh run after a terminal state starts over and clears the old reason.
	if err := repo.BeginRemoval(ctx, asset.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	saved, _ := repo.FindByID(ctx, asset.ID)
	if saved.DerivedStatus != DerivedProcessing {
		t.Errorf("expected derived status %s, got %s", DerivedProcessing, saved.DerivedStatus)
	}
	if saved.DerivedError != "" {
		t.Errorf("expected cleared derived error, got %q", saved.DerivedError)
	}
}

func TestMemoryRepository_CompleteRemoval_SetsURL(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	asset := New("user-1", "https://cdn.example/videos/a.mp4", 5)
	_ = repo.Create(ctx, asset)
	_ = repo.BeginRemoval(ctx, asset.ID)

	if err := repo.CompleteRemoval(ctx, asset.ID, "https://cdn.example/videos/out.mp4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	saved, _ := repo.FindByID(ctx, asset.ID)
	if saved.DerivedStatus != DerivedCompleted {
		t.Errorf("expected derived status %s, got %s", DerivedCompleted, saved.DerivedStatus)
	}
	if saved.DerivedURL != "https://cdn.example/videos/out.mp4" {
		t.Errorf("unexpected derived URL: %q", saved.DerivedURL)
	}
}

func TestMemoryRepository_FailRemoval_ClearsURL(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	asset := New("user-1", "https://cdn.example/videos/a.mp4", 5)
	_ = repo.Create(ctx, asset)
	_ = repo.BeginRemoval(ctx, asset.ID)

	if err := repo.FailRemoval(ctx, asset.ID, "OOM"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	saved, _ := repo.FindByID(ctx, asset.ID)
	if saved.DerivedStatus != DerivedFailed {
		t.Errorf("expected derived status %s, got %s", DerivedFailed, saved.DerivedStatus)
	}
	if saved.DerivedURL != "" {
		t.Errorf("expected empty derived URL on failure, got %q", saved.DerivedURL)
	}
	if saved.DerivedError != "OOM" {
		t.Errorf("expected derived error 'OOM', got %q", saved.DerivedError)
	}
}

func TestMemoryRepository_FailStuckRemovals(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	stuck := New("user-1", "https://cdn.example/videos/stuck.mp4", 5)
	_ = repo.Create(ctx, stuck)
	_ = repo.BeginRemoval(ctx, stuck.ID)

	fresh := New("user-1", "https://cdn.example/videos/fresh.mp4", 5)
	_ = repo.Create(ctx, fresh)
	_ = repo.BeginRemoval(ctx, fresh.ID)

	// Only the run older than the cutoff is failed.
	repo.mu.Lock()
	repo.assets[stuck.ID].UpdatedAt = time.Now().Add(-time.Hour)
	repo.mu.Unlock()

	ids, err := repo.FailStuckRemovals(ctx, time.Now().Add(-30*time.Minute), "stale after restart")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 1 || ids[0] != stuck.ID {
		t.Fatalf("expected only the stuck asset, got %v", ids)
	}

	saved, _ := repo.FindByID(ctx, stuck.ID)
	if saved.DerivedStatus != DerivedFailed {
		t.Errorf("expected derived status %s, got %s", DerivedFailed, saved.DerivedStatus)
	}
	untouched, _ := repo.FindByID(ctx, fresh.ID)
	if untouched.DerivedStatus != DerivedProcessing {
		t.Errorf("fresh run must stay PROCESSING, got %s", untouched.DerivedStatus)
	}
}
