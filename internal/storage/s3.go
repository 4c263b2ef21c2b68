package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// s3HostMarker separates the S3 host from the object key in virtual-hosted
// and path-style amazonaws URLs.
const s3HostMarker = ".amazonaws.com/"

// presignTTL is how long issued upload targets stay valid.
const presignTTL = time.Hour

// S3Config holds the configuration for S3 storage.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
	CDNBaseURL      string // CDN prefix serving the bucket's objects
}

// S3Gateway implements Gateway on top of an S3 bucket fronted by a CDN.
// Uploads go straight to presigned PUT URLs; reads are served from the CDN.
type S3Gateway struct {
	presigner  *s3.PresignClient
	httpClient *http.Client
	bucket     string
	cdnBaseURL string
}

// NewS3Gateway creates a new S3Gateway.
func NewS3Gateway(ctx context.Context, cfg S3Config) (*S3Gateway, error) {
	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, clientOpts...)

	return &S3Gateway{
		presigner:  s3.NewPresignClient(client),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		bucket:     cfg.Bucket,
		cdnBaseURL: strings.TrimSuffix(cfg.CDNBaseURL, "/"),
	}, nil
}

// IssueUploadTarget returns a presigned PUT target with a fresh object key
// scoped to the owner. Key layout: <ownerID>/<random6>/<uuid>.
func (g *S3Gateway) IssueUploadTarget(ctx context.Context, ownerID string) (UploadTarget, error) {
	key := fmt.Sprintf("%s/%s/%s", ownerID, randomSuffix(), uuid.NewString())
	return g.presignPut(ctx, key, "")
}

// IssueThumbnailTarget returns a presigned PUT target for the thumbnail of
// the object identified by videoKey.
func (g *S3Gateway) IssueThumbnailTarget(ctx context.Context, videoKey string) (UploadTarget, error) {
	return g.presignPut(ctx, videoKey+"/thumbnail.jpg", "image/jpeg")
}

// presignPut issues a presigned PUT for the given key.
func (g *S3Gateway) presignPut(ctx context.Context, key, contentType string) (UploadTarget, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	req, err := g.presigner.PresignPutObject(ctx, input, s3.WithPresignExpires(presignTTL))
	if err != nil {
		return UploadTarget{}, fmt.Errorf("presign put for %q: %w", key, err)
	}

	return UploadTarget{
		UploadURL: req.URL,
		PublicURL: g.cdnBaseURL + "/" + key,
		Key:       key,
	}, nil
}

// Store requests a fresh upload target, PUTs the raw bytes to it, and
// returns the CDN-facing public URL.
func (g *S3Gateway) Store(ctx context.Context, data []byte, ownerID, contentType string) (string, error) {
	target, err := g.IssueUploadTarget(ctx, ownerID)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target.UploadURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.ContentLength = int64(len(data))

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w with status %d: %s", ErrUploadFailed, resp.StatusCode, string(body))
	}

	return target.PublicURL, nil
}

// CDNRewrite derives the CDN-facing URL for an S3 object URL by rewriting
// the storage host prefix to the CDN prefix. Query parameters (presign
// credentials) are dropped.
func CDNRewrite(cdnBaseURL, objectURL string) (string, error) {
	objectURL, _, _ = strings.Cut(objectURL, "?")
	_, key, ok := strings.Cut(objectURL, s3HostMarker)
	if !ok || key == "" {
		return "", fmt.Errorf("%w: %s", ErrNotAmazonURL, objectURL)
	}
	return strings.TrimSuffix(cdnBaseURL, "/") + "/" + key, nil
}

// randomSuffix returns the short random path segment used between the owner
// id and the object uuid in the key layout.
func randomSuffix() string {
	return uuid.NewString()[:6]
}
