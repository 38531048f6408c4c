package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/hszk-dev/vidshelf/internal/domain/model"
	"github.com/hszk-dev/vidshelf/internal/domain/repository"
	"github.com/hszk-dev/vidshelf/internal/infrastructure/metrics"
)

const selectColumns = `SELECT id, filename, title, overlay_text, thumbnail, created_at FROM videos`

// VideoRepository implements repository.VideoRepository using SQLite.
type VideoRepository struct {
	db *sql.DB
}

// NewVideoRepository creates a new VideoRepository instance.
func NewVideoRepository(db *sql.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

// Create persists a new video entity and assigns its ID.
func (r *VideoRepository) Create(ctx context.Context, video *model.Video) error {
	const query = `
		INSERT INTO videos (filename, title, overlay_text, thumbnail, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	countQuery(metrics.DBQueryInsert)
	res, err := r.db.ExecContext(ctx, query,
		video.Filename,
		video.Title,
		video.OverlayText,
		video.Thumbnail,
		video.CreatedAt.UnixNano(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateVideo
		}
		return fmt.Errorf("failed to create video: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read video id: %w", err)
	}
	video.ID = id

	return nil
}

// GetByID retrieves a video by its identifier.
func (r *VideoRepository) GetByID(ctx context.Context, id int64) (*model.Video, error) {
	countQuery(metrics.DBQuerySelect)
	video, err := scanVideo(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrVideoNotFound
		}
		return nil, fmt.Errorf("failed to get video by ID: %w", err)
	}
	return video, nil
}

// List returns all videos, newest first. Ties on created_at fall back to the
// higher ID first.
func (r *VideoRepository) List(ctx context.Context) ([]*model.Video, error) {
	countQuery(metrics.DBQuerySelect)
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY created_at DESC, id DESC`)
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

// Update applies mutate to the stored video and persists title and overlay text.
func (r *VideoRepository) Update(ctx context.Context, id int64, mutate func(v *model.Video) error) (*model.Video, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	video, err := lockVideo(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := mutate(video); err != nil {
		return nil, err
	}

	countQuery(metrics.DBQueryUpdate)
	if _, err := tx.ExecContext(ctx,
		`UPDATE videos SET title = ?, overlay_text = ? WHERE id = ?`,
		video.Title, video.OverlayText, id,
	); err != nil {
		return nil, fmt.Errorf("failed to update video: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit update: %w", err)
	}
	return video, nil
}

// Delete removes a video, calling release with the row before it is deleted.
func (r *VideoRepository) Delete(ctx context.Context, id int64, release func(v *model.Video)) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	video, err := lockVideo(ctx, tx, id)
	if err != nil {
		return err
	}

	if release != nil {
		release(video)
	}

	countQuery(metrics.DBQueryDelete)
	if _, err := tx.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

// lockVideo reads a row inside tx. SQLite has no row locks; the single
// connection already serializes transactions.
func lockVideo(ctx context.Context, tx *sql.Tx, id int64) (*model.Video, error) {
	countQuery(metrics.DBQuerySelect)
	video, err := scanVideo(tx.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrVideoNotFound
		}
		return nil, fmt.Errorf("failed to load video: %w", err)
	}
	return video, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVideo(row scanner) (*model.Video, error) {
	var (
		video     model.Video
		createdAt int64
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

	video.CreatedAt = time.Unix(0, createdAt).UTC()
	return &video, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func countQuery(queryType string) {
	metrics.DBQueriesTotal.WithLabelValues(queryType, metrics.DriverSQLite).Inc()
}

// Compile-time verification that VideoRepository implements repository.VideoRepository.
var _ repository.VideoRepository = (*VideoRepository)(nil)
