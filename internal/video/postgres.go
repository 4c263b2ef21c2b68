package video

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Compile-time check that PostgresRepository implements Repository.
var _ Repository = (*PostgresRepository)(nil)

// PostgresRepository is a Postgres-backed implementation of Repository
// using a pgx connection pool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects to Postgres, applies pending migrations,
// and returns the repository.
func NewPostgresRepository(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := runMigrations(pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresRepository{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// runMigrations applies the embedded goose migrations.
func runMigrations(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

const assetColumns = `id, owner_id, source_url, thumbnail_url, upload_status,
	derived_status, derived_url, derived_error, inference_job_id,
	duration_sec, created_at, updated_at`

// Create persists a new asset.
func (r *PostgresRepository) Create(ctx context.Context, asset *Asset) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO videos (`+assetColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		asset.ID, asset.OwnerID, asset.SourceURL, asset.ThumbnailURL,
		asset.UploadStatus, asset.DerivedStatus, asset.DerivedURL,
		asset.DerivedError, asset.InferenceJobID, asset.DurationSec,
		asset.CreatedAt, asset.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

// FindByID retrieves an asset by its ID.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*Asset, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+assetColumns+` FROM videos WHERE id = $1`, id)
	asset, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select video: %w", err)
	}
	return asset, nil
}

// ListByOwner returns the owner's assets, newest first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*Asset, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+assetColumns+` FROM videos
		WHERE owner_id = $1
		ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	result := make([]*Asset, 0)
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		result = append(result, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	return result, nil
}

// SetUploadStatus updates the upload lifecycle state.
func (r *PostgresRepository) SetUploadStatus(ctx context.Context, id string, status UploadStatus) error {
	return r.exec(ctx, `
		UPDATE videos SET upload_status = $2, updated_at = now()
		WHERE id = $1`, id, status)
}

// SetThumbnailURL records the thumbnail location.
func (r *PostgresRepository) SetThumbnailURL(ctx context.Context, id, url string) error {
	return r.exec(ctx, `
		UPDATE videos SET thumbnail_url = $2, updated_at = now()
		WHERE id = $1`, id, url)
}

// FinalizeUpload marks the upload READY and records the clip duration.
func (r *PostgresRepository) FinalizeUpload(ctx context.Context, id string, durationSec float64) error {
	return r.exec(ctx, `
		UPDATE videos SET upload_status = $2, duration_sec = $3, updated_at = now()
		WHERE id = $1`, id, UploadReady, durationSec)
}

// BeginRemoval atomically moves the asset into PROCESSING. The WHERE clause
// is the compare-and-set: a concurrent driver that already holds the asset
// leaves zero rows to update.
func (r *PostgresRepository) BeginRemoval(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE videos
		SET derived_status = $2, derived_url = '', derived_error = '',
		    inference_job_id = '', updated_at = now()
		WHERE id = $1 AND derived_status <> $2`,
		id, DerivedProcessing)
	if err != nil {
		return fmt.Errorf("begin removal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from one already processing.
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return ErrRemovalInProgress
	}
	return nil
}

// SetInferenceJob records the provider's job handle.
func (r *PostgresRepository) SetInferenceJob(ctx context.Context, id, jobHandle string) error {
	return r.exec(ctx, `
		UPDATE videos SET inference_job_id = $2, updated_at = now()
		WHERE id = $1`, id, jobHandle)
}

// CompleteRemoval marks the derived asset COMPLETED.
func (r *PostgresRepository) CompleteRemoval(ctx context.Context, id, derivedURL string) error {
	return r.exec(ctx, `
		UPDATE videos
		SET derived_status = $2, derived_url = $3, derived_error = '', updated_at = now()
		WHERE id = $1`, id, DerivedCompleted, derivedURL)
}

// FailRemoval marks the derived asset FAILED with a reason.
func (r *PostgresRepository) FailRemoval(ctx context.Context, id, reason string) error {
	return r.exec(ctx, `
		UPDATE videos
		SET derived_status = $2, derived_url = '', derived_error = $3, updated_at = now()
		WHERE id = $1`, id, DerivedFailed, reason)
}

// FailStuckRemovals fails assets stuck in PROCESSING since before the cutoff.
func (r *PostgresRepository) FailStuckRemovals(ctx context.Context, cutoff time.Time, reason string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE videos
		SET derived_status = $1, derived_url = '', derived_error = $2, updated_at = now()
		WHERE derived_status = $3 AND updated_at < $4
		RETURNING id`,
		DerivedFailed, reason, DerivedProcessing, cutoff)
	if err != nil {
		return nil, fmt.Errorf("fail stuck removals: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stuck removal: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fail stuck removals: %w", err)
	}
	return ids, nil
}

// exec runs an update that must affect exactly one row.
func (r *PostgresRepository) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanAsset reads one asset from a pgx row.
func scanAsset(row pgx.Row) (*Asset, error) {
	var a Asset
	err := row.Scan(
		&a.ID, &a.OwnerID, &a.SourceURL, &a.ThumbnailURL,
		&a.UploadStatus, &a.DerivedStatus, &a.DerivedURL,
		&a.DerivedError, &a.InferenceJobID, &a.DurationSec,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
