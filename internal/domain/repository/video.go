package repository

import (
	"context"

	"github.com/hszk-dev/vidshelf/internal/domain/model"
)

// VideoRepository defines the interface for catalog persistence operations.
// Implementations should be provided by the infrastructure layer (e.g., SQLite, PostgreSQL).
type VideoRepository interface {
	// Create persists a new video and assigns its ID.
	// Returns ErrDuplicateVideo if the filename is already cataloged.
	Create(ctx context.Context, video *model.Video) error

	// GetByID retrieves a video by its identifier.
	// Returns nil and ErrVideoNotFound if the video does not exist.
	GetByID(ctx context.Context, id int64) (*model.Video, error)

	// List returns all videos, newest first.
	// Returns empty slice if the catalog is empty.
	List(ctx context.Context) ([]*model.Video, error)

	// Update loads the video inside a transaction, applies mutate and writes
	// the title and overlay text back. No write happens if mutate fails.
	// Returns ErrVideoNotFound if the video does not exist.
	Update(ctx context.Context, id int64, mutate func(v *model.Video) error) (*model.Video, error)

	// Delete removes a video. release is invoked with the locked row before
	// the row is deleted, inside the same transaction, so that readers never
	// see a row whose blobs are already gone.
	// Returns ErrVideoNotFound if the video does not exist.
	Delete(ctx context.Context, id int64, release func(v *model.Video)) error
}
