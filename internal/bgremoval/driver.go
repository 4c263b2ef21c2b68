// Package bgremoval drives one video's journey from a READY upload to a
// terminal derived-asset status: submit to the inference provider, poll to
// a terminal state, fetch the result, optionally key out the green screen,
// and publish the derivative through the storage gateway, updating the
// video record at each meaningful transition.
package bgremoval

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/textbehind/textbehind-api/internal/poll"
	"github.com/textbehind/textbehind-api/internal/replicate"
	"github.com/textbehind/textbehind-api/internal/storage"
	"github.com/textbehind/textbehind-api/internal/video"
)

// Poll defaults: up to 100 attempts, 3 seconds apart (5 minutes worst case).
const (
	defaultPollInterval    = 3 * time.Second
	defaultPollMaxAttempts = 100
)

// Outcome is the terminal result of one driver run.
type Outcome struct {
	// Status is the final derived status, COMPLETED or FAILED.
	Status video.DerivedStatus
	// URL is the published derivative location (only on COMPLETED).
	URL string
	// Reason describes the failure (only on FAILED).
	Reason string
}

// Driver orchestrates a single video's background removal.
type Driver struct {
	repo      video.Repository
	inference replicate.Client
	gateway   storage.Gateway
	transfer  *Transferrer
	keyer     Keyer
	temp      TempStore
	logger    *slog.Logger

	pollInterval    time.Duration
	pollMaxAttempts int
}

// Keyer converts a green-screen video file into an alpha-channel one.
// Satisfied by media.FFmpegKeyer.
type Keyer interface {
	KeyGreenScreen(ctx context.Context, src, dst string) error
}

// TempStore holds intermediate files for the keying step.
// Satisfied by storage.LocalStore.
type TempStore interface {
	SaveTemp(ctx context.Context, name string, data io.Reader) (string, error)
	TempDir() string
	Cleanup(paths []string) error
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithPollInterval sets the wait between poll attempts.
func WithPollInterval(d time.Duration) DriverOption {
	return func(dr *Driver) {
		if d > 0 {
			dr.pollInterval = d
		}
	}
}

// WithPollMaxAttempts sets the poll attempt budget.
func WithPollMaxAttempts(n int) DriverOption {
	return func(dr *Driver) {
		if n > 0 {
			dr.pollMaxAttempts = n
		}
	}
}

// WithTransferrer replaces the result transferrer.
func WithTransferrer(t *Transferrer) DriverOption {
	return func(dr *Driver) {
		if t != nil {
			dr.transfer = t
		}
	}
}

// WithKeying enables the green-screen keying step between download and
// publish. Both the keyer and a temp store are required.
func WithKeying(k Keyer, temp TempStore) DriverOption {
	return func(dr *Driver) {
		dr.keyer = k
		dr.temp = temp
	}
}

// NewDriver creates a Driver.
func NewDriver(repo video.Repository, inference replicate.Client, gateway storage.Gateway, logger *slog.Logger, opts ...DriverOption) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Driver{
		repo:            repo,
		inference:       inference,
		gateway:         gateway,
		logger:          logger,
		pollInterval:    defaultPollInterval,
		pollMaxAttempts: defaultPollMaxAttempts,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.transfer == nil {
		d.transfer = NewTransferrer(logger)
	}
	return d
}

// Run drives the video to a terminal derived status exactly once.
// The video must exist and its upload status must be READY; anything else
// is a contract violation reported as ErrInvalidState before any network
// call is made. On failure paths the returned error carries the kind and
// the Outcome carries the reason; status writes on those paths are
// best-effort and never mask the primary error.
func (d *Driver) Run(ctx context.Context, videoID, sourceURL string) (Outcome, error) {
	asset, err := d.repo.FindByID(ctx, videoID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load video %s: %w", videoID, err)
	}
	if asset.UploadStatus != video.UploadReady {
		return Outcome{}, fmt.Errorf("%w: video %s is %s", ErrInvalidState, videoID, asset.UploadStatus)
	}

	// Visible to readers before any network call completes; callers must
	// tolerate PROCESSING that later becomes FAILED. The compare-and-set
	// rejects a second concurrent run for the same video.
	if err := d.repo.BeginRemoval(ctx, videoID); err != nil {
		return Outcome{}, fmt.Errorf("begin removal for %s: %w", videoID, err)
	}

	d.logger.Info("background removal started",
		slog.String("video_id", videoID),
		slog.String("source_url", sourceURL),
	)

	jobID, err := d.inference.Submit(ctx, sourceURL)
	if err != nil {
		return d.fail(ctx, videoID, "submission failed", fmt.Errorf("%w: %w", ErrSubmissionFailed, err))
	}

	// Persist the handle so a recovery sweep can identify the run after a
	// restart.
	if err := d.repo.SetInferenceJob(ctx, videoID, jobID); err != nil {
		d.logger.Warn("failed to persist inference job handle",
			slog.String("video_id", videoID),
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}

	result, err := poll.Until(ctx, d.pollInterval, d.pollMaxAttempts,
		func(ctx context.Context) (poll.Decision, replicate.PollResult, error) {
			pr, err := d.inference.Poll(ctx, jobID)
			if err != nil {
				return poll.Continue, replicate.PollResult{}, err
			}
			switch pr.Status {
			case replicate.StatusSucceeded:
				return poll.Done, pr, nil
			case replicate.StatusFailed, replicate.StatusCanceled:
				return poll.Failed, pr, nil
			default:
				return poll.Continue, pr, nil
			}
		})
	if err != nil {
		return d.fail(ctx, videoID, err.Error(), fmt.Errorf("%w: %w", ErrUpstreamFailed, err))
	}

	switch result.Outcome {
	case poll.OutcomeFailure:
		reason := result.Value.Error
		if reason == "" {
			reason = "upstream reported " + string(result.Value.Status)
		}
		return d.fail(ctx, videoID, reason, fmt.Errorf("%w: %s", ErrUpstreamFailed, reason))
	case poll.OutcomeExhausted:
		// The record says "timed out"; the outcome reason is the short form.
		if err := d.repo.FailRemoval(ctx, videoID, "timed out"); err != nil {
			d.logger.Error("failed to persist FAILED status",
				slog.String("video_id", videoID),
				slog.String("error", err.Error()),
			)
		}
		return Outcome{Status: video.DerivedFailed, Reason: "timeout"},
			fmt.Errorf("%w after %d attempts", ErrUpstreamTimeout, result.Attempts)
	}

	resultURL, err := replicate.ExtractOutputURL(result.Value.Output)
	if err != nil {
		return d.fail(ctx, videoID, "no result URL in upstream output", fmt.Errorf("%w: %w", ErrExtractionFailed, err))
	}

	d.logger.Info("inference succeeded",
		slog.String("video_id", videoID),
		slog.String("job_id", jobID),
		slog.Int("poll_attempts", result.Attempts),
	)

	data, err := d.transfer.DownloadWithRetry(ctx, resultURL)
	if err != nil {
		return d.fail(ctx, videoID, err.Error(), err)
	}

	contentType := "video/mp4"
	if d.keyer != nil {
		data, err = d.keyGreenScreen(ctx, videoID, data)
		if err != nil {
			return d.fail(ctx, videoID, err.Error(), fmt.Errorf("%w: %w", ErrKeyingFailed, err))
		}
		contentType = "video/webm"
	}

	publicURL, err := d.gateway.Store(ctx, data, asset.OwnerID, contentType)
	if err != nil {
		return d.fail(ctx, videoID, err.Error(), fmt.Errorf("%w: %w", ErrUploadFailed, err))
	}

	if err := d.repo.CompleteRemoval(ctx, videoID, publicURL); err != nil {
		// The derivative is published but the record still says PROCESSING;
		// the recovery sweep will fail it and the user can re-run.
		return Outcome{}, fmt.Errorf("persist completed status for %s: %w", videoID, err)
	}

	d.logger.Info("background removal completed",
		slog.String("video_id", videoID),
		slog.String("derived_url", publicURL),
	)

	return Outcome{Status: video.DerivedCompleted, URL: publicURL}, nil
}

// keyGreenScreen runs the keying step over the downloaded bytes via temp
// files and returns the transparent webm bytes.
func (d *Driver) keyGreenScreen(ctx context.Context, videoID string, data []byte) ([]byte, error) {
	src, err := d.temp.SaveTemp(ctx, "greenscreen", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	dst := filepath.Join(d.temp.TempDir(), fmt.Sprintf("transparent-%s.webm", videoID))
	defer func() {
		if err := d.temp.Cleanup([]string{src, dst}); err != nil {
			d.logger.Warn("temp cleanup failed", slog.String("error", err.Error()))
		}
	}()

	if err := d.keyer.KeyGreenScreen(ctx, src, dst); err != nil {
		return nil, err
	}

	return os.ReadFile(dst)
}

// fail records the FAILED status best-effort and returns the primary error.
// A failed status write is logged, not returned, so it never obscures the
// original failure.
func (d *Driver) fail(ctx context.Context, videoID, reason string, primary error) (Outcome, error) {
	if err := d.repo.FailRemoval(ctx, videoID, reason); err != nil {
		d.logger.Error("failed to persist FAILED status",
			slog.String("video_id", videoID),
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
	}

	d.logger.Warn("background removal failed",
		slog.String("video_id", videoID),
		slog.String("reason", reason),
	)

	return Outcome{Status: video.DerivedFailed, Reason: reason}, primary
}
