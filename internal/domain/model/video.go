package model

import (
	"errors"
	"path/filepath"
	"strings"
	"time"
)

// NoThumbnail is the Thumbnail value of a video whose thumbnail could not be
// generated. Consumers render the placeholder image instead.
const NoThumbnail = ""

// Video represents one cataloged video file.
type Video struct {
	ID          int64
	Filename    string
	Title       string
	OverlayText string
	Thumbnail   string
	CreatedAt   time.Time
}

var (
	ErrEmptyFilename = errors.New("filename cannot be empty")
	ErrTitleTooLong  = errors.New("title exceeds maximum length of 256 characters")
)

const maxTitleLength = 256

// NewVideo creates a Video for a stored blob. The title defaults to the
// filename without its extension. ID is assigned by the repository.
func NewVideo(filename, thumbnail string) (*Video, error) {
	if filename == "" {
		return nil, ErrEmptyFilename
	}

	return &Video{
		Filename:  filename,
		Title:     TitleFromFilename(filename),
		Thumbnail: thumbnail,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Annotate applies an annotation edit. The overlay text is always replaced;
// the title only when a non-empty one is given.
func (v *Video) Annotate(title, overlayText string) error {
	if len(title) > maxTitleLength {
		return ErrTitleTooLong
	}
	v.OverlayText = overlayText
	if title != "" {
		v.Title = title
	}
	return nil
}

// HasThumbnail reports whether the video references a generated thumbnail.
func (v *Video) HasThumbnail() bool {
	return v.Thumbnail != NoThumbnail
}

// TitleFromFilename strips the extension from a stored filename.
func TitleFromFilename(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}
