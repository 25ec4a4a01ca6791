// Package artifact resolves and lists files inside a job's run directory.
//
// Callers supply untrusted relative paths; every function here guarantees the
// returned location is a regular file contained in the trusted root.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrNotFound is returned for any path that does not resolve to a regular file
// inside the root. Escapes are reported the same way as missing files.
var ErrNotFound = errors.New("artifact not found")

// Artifact describes one file directly inside a run directory.
type Artifact struct {
	Path       string    `json:"path"`
	Size       int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Resolve maps rel onto root and returns the absolute path of the file it names.
//
// Containment is checked on the cleaned absolute path before the filesystem is
// consulted, and again after symlinks are evaluated, so neither ".." sequences
// nor links pointing outside the root can escape it.
func Resolve(root, rel string) (string, error) {
	if root == "" || rel == "" || filepath.IsAbs(rel) {
		return "", ErrNotFound
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", ErrNotFound
	}
	candidate := filepath.Join(absRoot, filepath.FromSlash(rel))
	if !within(absRoot, candidate) || candidate == absRoot {
		return "", ErrNotFound
	}

	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", ErrNotFound
	}
	realCandidate, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		return "", ErrNotFound
	}
	if !within(realRoot, realCandidate) {
		return "", ErrNotFound
	}

	info, err := os.Stat(realCandidate)
	if err != nil || !info.Mode().IsRegular() {
		return "", ErrNotFound
	}

	return candidate, nil
}

// within reports whether path equals root or lies below it.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// List returns the regular files directly inside root, sorted by name.
// Subdirectories are skipped, not descended into. A missing root yields an
// empty list.
func List(root string) ([]Artifact, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Artifact{}, nil
		}
		return nil, fmt.Errorf("failed to read run directory: %w", err)
	}

	artifacts := make([]Artifact, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		artifacts = append(artifacts, Artifact{
			Path:       entry.Name(),
			Size:       info.Size(),
			ModifiedAt: info.ModTime().UTC(),
		})
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].Path < artifacts[j].Path
	})
	return artifacts, nil
}
