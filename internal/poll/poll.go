// Package poll provides a bounded fixed-interval polling utility: run a check
// up to a fixed number of attempts, waiting a fixed interval between them,
// and report a tagged outcome instead of relying on loop-exit flags.
package poll

import (
	"context"
	"fmt"
	"time"
)

// Outcome tags the way a polling run ended.
type Outcome int

const (
	// OutcomeSuccess means the check reported success before the budget ran out.
	OutcomeSuccess Outcome = iota
	// OutcomeFailure means the check reported a terminal failure.
	OutcomeFailure
	// OutcomeExhausted means the attempt budget ran out without a terminal answer.
	OutcomeExhausted
)

// String returns the human-readable name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Decision is what a single check attempt reports back.
type Decision int

const (
	// Continue means the polled job is still in progress.
	Continue Decision = iota
	// Done means the polled job finished successfully.
	Done
	// Failed means the polled job finished with a terminal failure.
	Failed
)

// CheckFunc inspects the polled job once. The returned value is carried into
// the Result when the decision is Done or Failed. A non-nil error aborts
// polling immediately.
type CheckFunc[T any] func(ctx context.Context) (Decision, T, error)

// Result is the tagged result of a polling run.
type Result[T any] struct {
	Outcome  Outcome
	Value    T   // Set when Outcome is OutcomeSuccess or OutcomeFailure
	Attempts int // Number of check calls made
}

// Until polls check every interval until it reports Done or Failed, the
// attempt budget is exhausted, or the context is cancelled. The first wait
// happens before the first attempt, matching a submit-then-poll flow where
// the job cannot be finished immediately.
func Until[T any](ctx context.Context, interval time.Duration, maxAttempts int, check CheckFunc[T]) (Result[T], error) {
	var zero T
	if maxAttempts <= 0 {
		return Result[T]{Outcome: OutcomeExhausted, Value: zero}, nil
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return Result[T]{Attempts: attempt - 1}, fmt.Errorf("poll: context cancelled: %w", ctx.Err())
		case <-time.After(interval):
		}

		decision, value, err := check(ctx)
		if err != nil {
			return Result[T]{Attempts: attempt}, err
		}

		switch decision {
		case Done:
			return Result[T]{Outcome: OutcomeSuccess, Value: value, Attempts: attempt}, nil
		case Failed:
			return Result[T]{Outcome: OutcomeFailure, Value: value, Attempts: attempt}, nil
		}
	}

	return Result[T]{Outcome: OutcomeExhausted, Value: zero, Attempts: maxAttempts}, nil
}
