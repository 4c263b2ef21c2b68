// Package server provides the HTTP server for the background-removal API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// CreateUploadResponse is the HTTP response for issuing upload targets.
// The client PUTs the clip and its thumbnail directly to the presigned URLs.
type CreateUploadResponse struct {
	// VideoID is the identifier of the created video record.
	VideoID string `json:"video_id"`
	// UploadURL is the presigned PUT URL for the clip.
	UploadURL string `json:"upload_url"`
	// PublicURL is the CDN URL the clip will be served from.
	PublicURL string `json:"public_url"`
	// ThumbnailUploadURL is the presigned PUT URL for the thumbnail.
	ThumbnailUploadURL string `json:"thumbnail_upload_url"`
	// ThumbnailPublicURL is the CDN URL the thumbnail will be served from.
	ThumbnailPublicURL string `json:"thumbnail_public_url"`
}

// FinalizeUploadRequest is the HTTP request body for finalizing an upload.
type FinalizeUploadRequest struct {
	// DurationSec is the clip duration in seconds as measured by the client.
	DurationSec float64 `json:"duration_sec" validate:"required,gt=0"`
	// SizeBytes is the uploaded object size in bytes.
	SizeBytes int64 `json:"size_bytes" validate:"required,gt=0"`
}

// VideoResponse is the HTTP representation of a video record.
type VideoResponse struct {
	// ID is the unique identifier of the video.
	ID string `json:"id"`
	// SourceURL is the CDN URL of the uploaded clip.
	SourceURL string `json:"source_url"`
	// ThumbnailURL is the CDN URL of the thumbnail, if one was uploaded.
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	// UploadStatus is the upload lifecycle state.
	UploadStatus string `json:"upload_status"`
	// RemovalStatus is the background-removal lifecycle state.
	RemovalStatus string `json:"removal_status"`
	// RemovedBgURL is the CDN URL of the background-removed clip when completed.
	RemovedBgURL string `json:"removed_bg_url,omitempty"`
	// RemovalError is the failure reason when removal failed.
	RemovalError string `json:"removal_error,omitempty"`
	// DurationSec is the clip duration in seconds.
	DurationSec float64 `json:"duration_sec"`
	// CreatedAt is the record creation time.
	CreatedAt time.Time `json:"created_at"`
}

// VideoListResponse is the HTTP response for listing an owner's videos.
type VideoListResponse struct {
	// Videos is the owner's videos, newest first.
	Videos []VideoResponse `json:"videos"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
