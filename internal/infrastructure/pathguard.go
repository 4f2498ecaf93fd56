package infrastructure

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/yourusername/vidsplit-go/internal/domain"
)

// PathGuard confines file writes and deletes to one base directory.
// Every target is made absolute, cleaned and has its parent's symlinks
// resolved before it is compared with the base.
type PathGuard struct {
	baseDir string
}

// NewPathGuard creates the base directory if needed and returns a guard for it
func NewPathGuard(baseDir string) (*PathGuard, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory not configured")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	return &PathGuard{baseDir: resolved}, nil
}

// BaseDir returns the resolved base directory
func (g *PathGuard) BaseDir() string {
	return g.baseDir
}

// Join builds a path inside the base directory
func (g *PathGuard) Join(name string) string {
	return filepath.Join(g.baseDir, name)
}

// Check resolves path and verifies it lies strictly inside the base directory
func (g *PathGuard) Check(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrUnsafePath, path, err)
	}

	dir, name := filepath.Split(filepath.Clean(abs))
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsafePath, path)
	}

	resolvedDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrUnsafePath, path, err)
	}

	resolved := filepath.Join(resolvedDir, name)
	rel, err := filepath.Rel(g.baseDir, resolved)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is outside %s", domain.ErrUnsafePath, path, g.baseDir)
	}

	return resolved, nil
}

// Remove deletes a file inside the base directory; a missing file is not an error
func (g *PathGuard) Remove(path string) error {
	resolved, err := g.Check(path)
	if err != nil {
		return err
	}
	if err := os.Remove(resolved); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", resolved, err)
	}
	return nil
}

// RemoveMatching deletes every regular file in the base directory whose name starts with prefix
func (g *PathGuard) RemoveMatching(prefix string) (int, error) {
	names, err := g.list(prefix, "")
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, name := range names {
		if err := g.Remove(g.Join(name)); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Newest returns the most recently modified file with the given prefix and extension
func (g *PathGuard) Newest(prefix, ext string) (string, error) {
	names, err := g.list(prefix, ext)
	if err != nil {
		return "", err
	}

	var (
		newest  string
		newestT int64
	)
	for _, name := range names {
		info, err := os.Stat(g.Join(name))
		if err != nil {
			continue
		}
		if t := info.ModTime().UnixNano(); newest == "" || t > newestT {
			newest, newestT = name, t
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no file matching %s*%s: %w", prefix, ext, os.ErrNotExist)
	}
	return g.Join(newest), nil
}

// Stat returns the size of a file inside the base directory
func (g *PathGuard) Stat(path string) (int64, error) {
	resolved, err := g.Check(path)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", resolved)
	}
	return info.Size(), nil
}

// MoveOut moves a file from the base directory into destDir, copying across devices
func (g *PathGuard) MoveOut(path, destDir string) (string, error) {
	src, err := g.Check(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create destination directory: %w", err)
	}

	dest := filepath.Join(destDir, filepath.Base(src))
	if err := os.Rename(src, dest); err != nil {
		if err := copyFile(src, dest); err != nil {
			return "", fmt.Errorf("failed to move file %s: %w", src, err)
		}
		os.Remove(src)
	}
	return dest, nil
}

func (g *PathGuard) list(prefix, ext string) ([]string, error) {
	if prefix == "" || strings.ContainsAny(prefix, `/\`) {
		return nil, fmt.Errorf("%w: invalid prefix %q", domain.ErrUnsafePath, prefix)
	}

	entries, err := os.ReadDir(g.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", g.baseDir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if ext != "" && !strings.EqualFold(filepath.Ext(name), ext) {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
