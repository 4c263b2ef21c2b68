package bgremoval

import "errors"

// Error kinds reported by the driver. Every kind ends with the video's
// derived status set to FAILED; none is process-fatal, each is scoped to
// the one video being processed.
var (
	// ErrInvalidState is returned when Run is called on a video whose
	// upload status is not READY.
	ErrInvalidState = errors.New("bgremoval: video upload is not ready")
	// ErrSubmissionFailed is returned when the inference job could not be
	// enqueued.
	ErrSubmissionFailed = errors.New("bgremoval: submission failed")
	// ErrUpstreamFailed is returned when the inference provider reported
	// failure or cancellation.
	ErrUpstreamFailed = errors.New("bgremoval: upstream inference failed")
	// ErrUpstreamTimeout is returned when the poll attempt budget was
	// exhausted without a terminal state.
	ErrUpstreamTimeout = errors.New("bgremoval: upstream inference timed out")
	// ErrDownloadExhausted is returned when the result fetch failed after
	// all retries.
	ErrDownloadExhausted = errors.New("bgremoval: result download exhausted")
	// ErrUploadFailed is returned when re-publishing the result to storage
	// failed.
	ErrUploadFailed = errors.New("bgremoval: result upload failed")
	// ErrExtractionFailed is returned when a succeeded inference response
	// carried no usable result URL.
	ErrExtractionFailed = errors.New("bgremoval: no result URL in upstream output")
	// ErrKeyingFailed is returned when the green-screen keying step failed.
	ErrKeyingFailed = errors.New("bgremoval: keying failed")
)
