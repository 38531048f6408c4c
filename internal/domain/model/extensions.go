package model

import (
	"path/filepath"
	"strings"
)

// DefaultVideoExtensions lists the video formats accepted for upload.
var DefaultVideoExtensions = []string{"mp4", "webm", "ogg", "mov", "avi", "mkv"}

// ExtensionSet is a case-insensitive allow-list of file extensions.
type ExtensionSet map[string]struct{}

// NewExtensionSet builds a set from extensions with or without a leading dot.
func NewExtensionSet(exts []string) ExtensionSet {
	set := make(ExtensionSet, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			set[ext] = struct{}{}
		}
	}
	return set
}

// Allows reports whether filename has an extension in the set.
func (s ExtensionSet) Allows(filename string) bool {
	ext := filepath.Ext(filename)
	if ext == "" {
		return false
	}
	_, ok := s[strings.ToLower(ext[1:])]
	return ok
}
