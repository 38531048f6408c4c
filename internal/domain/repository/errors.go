package repository

import "errors"

var (
	// ErrVideoNotFound is returned when a video cannot be found.
	ErrVideoNotFound = errors.New("video not found")

	// ErrDuplicateVideo is returned when a video with the same filename is already cataloged.
	ErrDuplicateVideo = errors.New("video already exists")

	// ErrObjectNotFound is returned when a blob does not exist in storage.
	ErrObjectNotFound = errors.New("object not found")

	// ErrBucketNotFound is returned when the configured bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrNameExhausted is returned when no free blob name could be derived.
	ErrNameExhausted = errors.New("no free blob name available")
)
