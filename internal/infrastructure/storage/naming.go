package storage

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	// maxNameAttempts bounds the collision loop of SaveVideo.
	maxNameAttempts = 10000

	maxStemLength = 200

	thumbnailExt = ".jpg"
)

// contentTypes covers video formats missing from common mime.types files.
var contentTypes = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".ogg":  "video/ogg",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".jpg":  "image/jpeg",
}

// SanitizeFilename turns a client-supplied name into a safe flat filename.
// Directory components are dropped, whitespace becomes "_" and every byte
// outside [A-Za-z0-9._-] is removed. A name left without a stem gets a
// generated one so the extension survives.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	ext := filepath.Ext(name)
	stem := cleanSegment(strings.TrimSuffix(name, ext))
	ext = cleanSegment(strings.TrimPrefix(ext, "."))

	if len(stem) > maxStemLength {
		stem = strings.TrimRight(stem[:maxStemLength], "._")
	}
	if stem == "" {
		stem = "video_" + uuid.NewString()[:8]
	}
	if ext == "" {
		return stem
	}
	return stem + "." + ext
}

func cleanSegment(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			sb.WriteByte(' ')
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			sb.WriteRune(r)
		}
	}
	return strings.Trim(strings.Join(strings.Fields(sb.String()), "_"), "._")
}

// candidateName returns the name to try on the given collision attempt:
// clip.mp4, clip_1.mp4, clip_2.mp4, ...
func candidateName(name string, attempt int) string {
	if attempt == 0 {
		return name
	}
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), attempt, ext)
}

// ThumbnailNameFor maps a stored video name to its thumbnail name.
func ThumbnailNameFor(videoName string) string {
	return strings.TrimSuffix(videoName, filepath.Ext(videoName)) + thumbnailExt
}

// validBlobName rejects names that could escape the blob directory.
func validBlobName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.Contains(name, "\x00")
}

func contentTypeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
