// Package storage provides the object-storage gateway for video assets:
// time-limited presigned upload targets, server-side stores of raw bytes,
// and the CDN-facing public URL for every stored object. A local temp-file
// store backs the keying step.
package storage

import (
	"context"
	"errors"
)

// Static errors for storage operations.
var (
	// ErrUploadFailed is returned when a transfer to the upload target is
	// rejected; it carries the storage error body.
	ErrUploadFailed = errors.New("storage: upload failed")
	// ErrNotAmazonURL is returned when a public URL cannot be derived
	// because the object URL does not carry the expected storage host.
	ErrNotAmazonURL = errors.New("storage: object URL has no S3 host prefix")
)

// UploadTarget is a time-limited destination for a direct PUT upload.
type UploadTarget struct {
	// UploadURL is the presigned PUT URL with embedded credentials.
	UploadURL string
	// PublicURL is the CDN-facing location of the object once uploaded.
	PublicURL string
	// Key is the object key inside the bucket.
	Key string
}

// Gateway defines the interface for object storage used by the upload flow
// and the background-removal driver.
type Gateway interface {
	// IssueUploadTarget returns a fresh presigned PUT target scoped to the
	// owner, with a generated object key.
	IssueUploadTarget(ctx context.Context, ownerID string) (UploadTarget, error)

	// IssueThumbnailTarget returns a presigned PUT target for the thumbnail
	// of the object identified by videoKey.
	IssueThumbnailTarget(ctx context.Context, videoKey string) (UploadTarget, error)

	// Store requests a fresh upload target scoped to the owner, transfers
	// the bytes, and returns the CDN-facing public URL.
	// Fails with ErrUploadFailed if the transfer response is not successful.
	Store(ctx context.Context, data []byte, ownerID, contentType string) (publicURL string, err error)
}
