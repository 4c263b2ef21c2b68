package bgremoval

import (
	"context"
	"log/slog"
	"time"

	"github.com/textbehind/textbehind-api/internal/video"
)

// staleReason is written to videos failed by the recovery sweep.
const staleReason = "processing interrupted; run background removal again"

// Sweeper periodically fails videos stuck in PROCESSING past a deadline.
// A process restart loses the in-flight poll loop, which would otherwise
// leave the video PROCESSING forever.
type Sweeper struct {
	repo     video.Repository
	interval time.Duration
	deadline time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper that runs every interval and fails runs
// older than deadline.
func NewSweeper(repo video.Repository, interval, deadline time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		repo:     repo,
		interval: interval,
		deadline: deadline,
		logger:   logger,
	}
}

// Run sweeps once immediately, then on every tick until the context is
// cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep fails every run stuck in PROCESSING past the deadline.
func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.deadline)

	ids, err := s.repo.FailStuckRemovals(ctx, cutoff, staleReason)
	if err != nil {
		s.logger.Error("recovery sweep failed",
			slog.String("error", err.Error()),
		)
		return
	}

	if len(ids) > 0 {
		s.logger.Warn("failed stuck background removals",
			slog.Int("count", len(ids)),
			slog.Any("video_ids", ids),
		)
	}
}
