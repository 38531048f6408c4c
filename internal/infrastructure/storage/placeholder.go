package storage

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hszk-dev/vidshelf/internal/domain/repository"
)

const (
	placeholderWidth  = 320
	placeholderHeight = 180
)

// EnsurePlaceholder writes a generated placeholder image to path unless a
// file already exists there. Deployments may ship their own image instead.
func EnsurePlaceholder(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat placeholder: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create placeholder directory: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(path), ".placeholder-*")
	if err != nil {
		return fmt.Errorf("create placeholder: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if err := jpeg.Encode(f, placeholderImage(), &jpeg.Options{Quality: 80}); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode placeholder: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close placeholder: %w", err)
	}

	return os.Rename(tmp, path)
}

// placeholderImage draws a play symbol on a dark background.
func placeholderImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, placeholderWidth, placeholderHeight))
	bg := color.RGBA{R: 0x2b, G: 0x2f, B: 0x36, A: 0xff}
	fg := color.RGBA{R: 0xc8, G: 0xcc, B: 0xd2, A: 0xff}

	cx, cy := placeholderWidth/2, placeholderHeight/2
	const half = 30
	for y := 0; y < placeholderHeight; y++ {
		for x := 0; x < placeholderWidth; x++ {
			img.Set(x, y, bg)
			dy := y - cy
			if dy < 0 {
				dy = -dy
			}
			// Triangle pointing right, tip at cx+half.
			if x >= cx-half && x <= cx+half && dy <= (cx+half-x)/2 {
				img.Set(x, y, fg)
			}
		}
	}
	return img
}

// openLocalFile opens a file on disk as a streamable Object.
func openLocalFile(path, name string) (*repository.Object, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", name, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, repository.ErrObjectNotFound
	}

	return &repository.Object{
		ReadSeekCloser: f,
		Name:           name,
		Size:           info.Size(),
		ContentType:    contentTypeFor(name),
		LastModified:   info.ModTime(),
	}, nil
}
