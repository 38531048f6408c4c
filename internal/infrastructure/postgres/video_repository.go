package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hszk-dev/vidshelf/internal/domain/model"
	"github.com/hszk-dev/vidshelf/internal/domain/repository"
	"github.com/hszk-dev/vidshelf/internal/infrastructure/metrics"
)

// Schema creates the catalog table. Safe to run on every start.
const Schema = `
CREATE TABLE IF NOT EXISTS videos (
	id           BIGSERIAL   PRIMARY KEY,
	filename     TEXT        NOT NULL UNIQUE,
	title        TEXT        NOT NULL,
	overlay_text TEXT        NOT NULL DEFAULT '',
	thumbnail    TEXT        NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_videos_created_at ON videos (created_at DESC, id DESC);
`

const selectColumns = `SELECT id, filename, title, overlay_text, thumbnail, created_at FROM videos`

// DBTX is an interface that abstracts pgxpool.Pool for testability.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// VideoRepository implements repository.VideoRepository using PostgreSQL.
type VideoRepository struct {
	db DBTX
}

// NewVideoRepository creates a new VideoRepository instance.
func NewVideoRepository(db DBTX) *VideoRepository {
	return &VideoRepository{db: db}
}

// Migrate ensures the catalog schema exists.
func (r *VideoRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Create persists a new video entity and assigns its ID.
func (r *VideoRepository) Create(ctx context.Context, video *model.Video) error {
	const query = `
		INSERT INTO videos (filename, title, overlay_text, thumbnail, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	countQuery(metrics.DBQueryInsert)
	err := r.db.QueryRow(ctx, query,
		video.Filename,
		video.Title,
		video.OverlayText,
		video.Thumbnail,
		video.CreatedAt,
	).Scan(&video.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repository.ErrDuplicateVideo
		}
		return fmt.Errorf("failed to create video: %w", err)
	}

	return nil
}

// GetByID retrieves a video by its identifier.
func (r *VideoRepository) GetByID(ctx context.Context, id int64) (*model.Video, error) {
	countQuery(metrics.DBQuerySelect)
	video, err := scanVideo(r.db.QueryRow(ctx, selectColumns+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrVideoNotFound
		}
		return nil, fmt.Errorf("failed to get video by ID: %w", err)
	}

	return video, nil
}

// List returns all videos, newest first.
func (r *VideoRepository) List(ctx context.Context) ([]*model.Video, error) {
	countQuery(metrics.DBQuerySelect)
	rows, err := r.db.Query(ctx, selectColumns+` ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query videos: %w", err)
	}
	defer rows.Close()

	videos := make([]*model.Video, 0)
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating videos: %w", err)
	}

	return videos, nil
}

// Update locks the row, applies mutate and writes title and overlay text back.
func (r *VideoRepository) Update(ctx context.Context, id int64, mutate func(v *model.Video) error) (*model.Video, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	video, err := lockVideo(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := mutate(video); err != nil {
		return nil, err
	}

	const query = `
		UPDATE videos
		SET title = $2, overlay_text = $3
		WHERE id = $1
	`

	countQuery(metrics.DBQueryUpdate)
	if _, err := tx.Exec(ctx, query, id, video.Title, video.OverlayText); err != nil {
		return nil, fmt.Errorf("failed to update video: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit update: %w", err)
	}
	return video, nil
}

// Delete locks the row, calls release and removes it.
func (r *VideoRepository) Delete(ctx context.Context, id int64, release func(v *model.Video)) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	video, err := lockVideo(ctx, tx, id)
	if err != nil {
		return err
	}

	if release != nil {
		release(video)
	}

	countQuery(metrics.DBQueryDelete)
	if _, err := tx.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

func lockVideo(ctx context.Context, tx pgx.Tx, id int64) (*model.Video, error) {
	countQuery(metrics.DBQuerySelect)
	video, err := scanVideo(tx.QueryRow(ctx, selectColumns+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrVideoNotFound
		}
		return nil, fmt.Errorf("failed to lock video: %w", err)
	}
	return video, nil
}

// scanVideo scans a single row into a Video model.
// pgx.Rows satisfies pgx.Row, so this serves both QueryRow and Query.
func scanVideo(row pgx.Row) (*model.Video, error) {
	var (
		video     model.Video
		createdAt time.Time
	)

	err := row.Scan(
		&video.ID,
		&video.Filename,
		&video.Title,
		&video.OverlayText,
		&video.Thumbnail,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	video.CreatedAt = createdAt.UTC()
	return &video, nil
}

func countQuery(queryType string) {
	metrics.DBQueriesTotal.WithLabelValues(queryType, metrics.DriverPostgres).Inc()
}

// Compile-time verification that VideoRepository implements repository.VideoRepository.
var _ repository.VideoRepository = (*VideoRepository)(nil)
