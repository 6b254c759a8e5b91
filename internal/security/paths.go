// Package security holds the filesystem guards used before the teleop
// binaries write session exports, plots, or database files.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideAllowedDirs is returned when a path resolves outside every
// directory it was checked against.
var ErrOutsideAllowedDirs = errors.New("path outside allowed directories")

// canonical resolves symlinks in the deepest existing prefix of p and
// rejoins the remainder, so a not-yet-created file under a symlinked
// directory still resolves to where it would actually land.
func canonical(p string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", p, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	dir := abs
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			rest, _ := filepath.Rel(parent, abs)
			return filepath.Join(resolved, rest), nil
		}
		dir = parent
	}
}

// ResolveWithin returns the canonical form of p if it lies inside dir.
// The directory itself must exist.
func ResolveWithin(p, dir string) (string, error) {
	target, err := canonical(p)
	if err != nil {
		return "", err
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", dir, err)
	}
	root, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", dir, err)
	}
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return "", fmt.Errorf("%s: %w", p, ErrOutsideAllowedDirs)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%s escapes %s: %w", p, dir, ErrOutsideAllowedDirs)
	}
	return target, nil
}

// ResolveWithinAny is ResolveWithin over several candidate directories.
// The first directory that contains p wins.
func ResolveWithinAny(p string, dirs []string) (string, error) {
	if len(dirs) == 0 {
		return "", errors.New("no allowed directories")
	}
	for _, dir := range dirs {
		if resolved, err := ResolveWithin(p, dir); err == nil {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("%s not under %v: %w", p, dirs, ErrOutsideAllowedDirs)
}

// OutputDirs is the default set of places the tools may write into: the
// system temp directory and the working directory.
func OutputDirs() ([]string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("working directory: %w", err)
	}
	return []string{os.TempDir(), cwd}, nil
}

// ValidateOutputPath checks a path a tool is about to create. It must sit
// under one of the OutputDirs and must not name an existing directory.
func ValidateOutputPath(p string) (string, error) {
	dirs, err := OutputDirs()
	if err != nil {
		return "", err
	}
	resolved, err := ResolveWithinAny(p, dirs)
	if err != nil {
		return "", err
	}
	if fi, err := os.Stat(resolved); err == nil && fi.IsDir() {
		return "", fmt.Errorf("%s is a directory", p)
	}
	return resolved, nil
}

// ValidateDatabasePath checks the session database location. The parent
// directory must already exist and the path itself, if present, must be a
// regular file.
func ValidateDatabasePath(p string) error {
	if p == "" {
		return errors.New("empty database path")
	}
	if p == ":memory:" {
		return nil
	}
	parent := filepath.Dir(p)
	fi, err := os.Stat(parent)
	if err != nil {
		return fmt.Errorf("database directory: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("database directory %s is not a directory", parent)
	}
	if fi, err := os.Stat(p); err == nil && !fi.Mode().IsRegular() {
		return fmt.Errorf("database path %s is not a regular file", p)
	}
	return nil
}

const maxFilenameLen = 128

// SanitizeFilename maps an arbitrary identifier onto [A-Za-z0-9._-],
// collapsing runs of other characters into one underscore.
func SanitizeFilename(s string) string {
	var b strings.Builder
	underscore := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
			underscore = false
		case !underscore:
			b.WriteByte('_')
			underscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}

// SessionFilename builds "<prefix>-<session>.<ext>" with every part
// sanitized.
func SessionFilename(prefix, sessionID, ext string) string {
	name := SanitizeFilename(prefix) + "-" + SanitizeFilename(sessionID)
	if ext = strings.TrimPrefix(ext, "."); ext != "" {
		name += "." + SanitizeFilename(ext)
	}
	return name
}
