// Package bootstrap provides dependency initialization for the API.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/textbehind/textbehind-api/internal/auth"
	"github.com/textbehind/textbehind-api/internal/bgremoval"
	"github.com/textbehind/textbehind-api/internal/config"
	"github.com/textbehind/textbehind-api/internal/media"
	"github.com/textbehind/textbehind-api/internal/replicate"
	"github.com/textbehind/textbehind-api/internal/server"
	"github.com/textbehind/textbehind-api/internal/storage"
	"github.com/textbehind/textbehind-api/internal/video"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Handlers *server.Handlers
	Verifier *auth.Verifier
	Sweeper  *bgremoval.Sweeper
	Close    func()
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	repo, closeRepo, err := initRepository(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	gateway, err := storage.NewS3Gateway(ctx, storage.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		CDNBaseURL:      cfg.CDNBaseURL,
	})
	if err != nil {
		closeRepo()
		return nil, fmt.Errorf("create S3 gateway: %w", err)
	}
	logger.Info("S3 storage configured",
		slog.String("bucket", cfg.S3Bucket),
		slog.String("region", cfg.S3Region),
	)

	inference, err := replicate.NewClient(cfg.ReplicateModelVersion, replicate.WithToken(cfg.ReplicateAPIToken))
	if err != nil {
		closeRepo()
		return nil, fmt.Errorf("create Replicate client: %w", err)
	}

	driverOpts := []bgremoval.DriverOption{
		bgremoval.WithPollInterval(cfg.BGPollInterval),
		bgremoval.WithPollMaxAttempts(cfg.BGPollMaxAttempts),
	}
	if cfg.KeyingEnabled {
		temp, err := storage.NewLocalStore(cfg.TempDir)
		if err != nil {
			closeRepo()
			return nil, fmt.Errorf("create temp store: %w", err)
		}
		driverOpts = append(driverOpts, bgremoval.WithKeying(media.NewFFmpegKeyer(cfg.FFmpegPath), temp))
		logger.Info("green-screen keying enabled")
	}
	driver := bgremoval.NewDriver(repo, inference, gateway, logger, driverOpts...)

	sweeper := bgremoval.NewSweeper(repo, cfg.BGSweepInterval, cfg.BGSweepDeadline, logger)

	verifier, err := auth.NewVerifier(cfg.AuthSecret)
	if err != nil {
		closeRepo()
		return nil, fmt.Errorf("create token verifier: %w", err)
	}

	limits := server.Limits{
		MaxDurationSec: cfg.MaxVideoDurationSec,
		MaxSizeBytes:   cfg.MaxVideoSizeBytes,
	}
	handlers := server.NewHandlers(repo, gateway, driver, limits, cfg.CDNBaseURL, logger)

	return &Dependencies{
		Handlers: handlers,
		Verifier: verifier,
		Sweeper:  sweeper,
		Close:    closeRepo,
	}, nil
}

// initRepository creates the video repository based on configuration.
func initRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (video.Repository, func(), error) {
	if cfg.DatabaseEnabled() {
		pg, err := video.NewPostgresRepository(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("create Postgres repository: %w", err)
		}
		logger.Info("Postgres repository configured")
		return pg, pg.Close, nil
	}

	logger.Info("in-memory repository configured")
	return video.NewMemoryRepository(), func() {}, nil
}
