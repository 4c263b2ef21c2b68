package replicate

import (
	"encoding/json"
	"errors"
)

// ErrNoOutputURL is returned when a succeeded prediction carries no usable
// output URL.
var ErrNoOutputURL = errors.New("replicate: no output URL in prediction result")

// outputObject is the object form of a prediction output.
type outputObject struct {
	URL string `json:"url"`
}

// ExtractOutputURL normalizes the prediction output into a single URL.
// Model versions return the output as a plain URL string, as an object with a
// "url" field, or as a non-empty list of either form; for lists the first
// element is used. Returns ErrNoOutputURL when no URL can be extracted.
func ExtractOutputURL(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", ErrNoOutputURL
	}

	// Plain string
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", ErrNoOutputURL
		}
		return s, nil
	}

	// Object with a url field
	var obj outputObject
	if err := json.Unmarshal(raw, &obj); err == nil && obj.URL != "" {
		return obj.URL, nil
	}

	// List of either form; only the first element matters
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return ExtractOutputURL(list[0])
	}

	return "", ErrNoOutputURL
}
