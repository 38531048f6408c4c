package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// FFmpegConfig holds configuration for the FFmpeg thumbnail generator.
type FFmpegConfig struct {
	// FFmpegPath is the path to the ffmpeg binary.
	// If empty, "ffmpeg" will be used (assumes it's in PATH).
	FFmpegPath string

	// SeekOffset is the position of the extracted frame.
	// Default: 1s
	SeekOffset time.Duration

	// Timeout bounds a single ffmpeg invocation.
	// Default: 30s
	Timeout time.Duration
}

// DefaultFFmpegConfig returns an FFmpegConfig with production-ready defaults.
func DefaultFFmpegConfig() FFmpegConfig {
	return FFmpegConfig{
		FFmpegPath: "ffmpeg",
		SeekOffset: time.Second,
		Timeout:    30 * time.Second,
	}
}

// FFmpegGenerator implements Generator using the FFmpeg CLI.
type FFmpegGenerator struct {
	config FFmpegConfig
}

// Compile-time verification that FFmpegGenerator implements Generator.
var _ Generator = (*FFmpegGenerator)(nil)

// NewFFmpegGenerator creates a new FFmpeg-based thumbnail generator.
func NewFFmpegGenerator(cfg FFmpegConfig) *FFmpegGenerator {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultFFmpegConfig().Timeout
	}
	return &FFmpegGenerator{
		config: cfg,
	}
}

// Generate grabs the frame at the configured offset. Clips shorter than the
// offset yield no frame, so a failed attempt is retried once at the start.
func (g *FFmpegGenerator) Generate(ctx context.Context, videoPath, outputPath string) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("thumbnail generation panicked",
				slog.String("video", videoPath),
				slog.Any("panic", rec),
			)
			ok = false
		}
	}()

	err := g.extractFrame(ctx, videoPath, outputPath, g.config.SeekOffset)
	if err != nil && g.config.SeekOffset > 0 && ctx.Err() == nil {
		slog.Debug("thumbnail at offset failed, retrying at start",
			slog.String("video", videoPath),
			slog.Duration("offset", g.config.SeekOffset),
			slog.String("error", err.Error()),
		)
		err = g.extractFrame(ctx, videoPath, outputPath, 0)
	}
	if err != nil {
		slog.Debug("thumbnail generation failed",
			slog.String("video", videoPath),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// extractFrame runs one bounded ffmpeg invocation and checks its output.
func (g *FFmpegGenerator) extractFrame(ctx context.Context, videoPath, outputPath string, offset time.Duration) error {
	if err := g.validateInput(videoPath); err != nil {
		return err
	}

	// A stale image from an earlier run must not count as success.
	if err := os.Remove(outputPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to clear output: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, g.config.FFmpegPath, g.buildFFmpegArgs(videoPath, outputPath, offset)...)
	cmd.Stdout = nil // Discard stdout
	cmd.Stderr = nil // Discard stderr (FFmpeg outputs progress to stderr)
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg timed out or was cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("ffmpeg execution failed: %w", err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("ffmpeg produced no output: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("ffmpeg produced an empty output file")
	}
	return nil
}

// validateInput checks if the input file exists and is a regular file.
func (g *FFmpegGenerator) validateInput(videoPath string) error {
	info, err := os.Stat(videoPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("input file does not exist: %s", videoPath)
		}
		return fmt.Errorf("failed to access input file: %w", err)
	}

	if info.IsDir() {
		return fmt.Errorf("input path is a directory, expected a file: %s", videoPath)
	}

	return nil
}

// buildFFmpegArgs constructs the FFmpeg command arguments:
// -ss <offset> -i <video> -vframes 1 <output> -y
func (g *FFmpegGenerator) buildFFmpegArgs(videoPath, outputPath string, offset time.Duration) []string {
	return ffmpeg.
		Input(videoPath, ffmpeg.KwArgs{"ss": formatOffset(offset)}).
		Output(outputPath, ffmpeg.KwArgs{"vframes": 1}).
		OverWriteOutput().
		GetArgs()
}

// formatOffset renders d as HH:MM:SS.mmm.
func formatOffset(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	ms := d / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}
