package thumbnail

import (
	"context"
)

// Generator defines the interface for producing a still image of a video.
type Generator interface {
	// Generate extracts a representative frame of the video at videoPath
	// into outputPath, overwriting it if present.
	//
	// Returns true only if the frame was written. Every failure (missing
	// tool, non-zero exit, timeout, unsupported input, no output produced)
	// is reported as false; callers fall back to the placeholder image.
	Generate(ctx context.Context, videoPath, outputPath string) bool
}
