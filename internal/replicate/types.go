// Package replicate provides an HTTP client for the Replicate predictions API,
// used to run the background-removal (robust video matting) model.
package replicate

import "encoding/json"

// Status represents the status of a Replicate prediction.
type Status string

// Prediction statuses aligned with the Replicate API.
const (
	StatusStarting   Status = "starting"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// predictionRequest represents the request body for the predictions endpoint.
type predictionRequest struct {
	Version string          `json:"version"`
	Input   predictionInput `json:"input"`
}

// predictionInput represents the input field of a prediction request.
type predictionInput struct {
	InputVideo string `json:"input_video"`
}

// predictionResponse represents a prediction resource as returned by the API.
// Output is kept raw because its shape varies by model version: a plain URL
// string, an object carrying a "url" field, or a list of either.
type predictionResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// PollResult contains the result of polling a prediction's status.
type PollResult struct {
	Status Status
	Output json.RawMessage // Raw model output (only set when Status is StatusSucceeded)
	Error  string          // Error message (only set when Status is StatusFailed or StatusCanceled)
}
