package repository

import "context"

// BlobKind identifies which blob store a cleanup task targets.
type BlobKind string

const (
	BlobKindVideo     BlobKind = "video"
	BlobKindThumbnail BlobKind = "thumbnail"
)

// CleanupTask represents a blob deletion that failed during a catalog delete
// and should be retried in the background.
type CleanupTask struct {
	Kind       BlobKind `json:"kind"`
	Name       string   `json:"name"`
	RetryCount int      `json:"retry_count"`
}

// CleanupQueue defines the interface for message queue operations.
// Implementations should be provided by the infrastructure layer (e.g., RabbitMQ).
type CleanupQueue interface {
	// PublishCleanupTask sends a cleanup task to the queue.
	// Used by the API server when a best-effort blob delete fails.
	PublishCleanupTask(ctx context.Context, task CleanupTask) error

	// ConsumeCleanupTasks starts consuming cleanup tasks from the queue.
	// The handler function is called for each received task.
	// Blocks until the context is cancelled or the channel closes.
	// Used by the worker service.
	ConsumeCleanupTasks(ctx context.Context, handler func(task CleanupTask) error) error

	// Close gracefully closes the connection to the message queue.
	Close() error
}
