package filesystem

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"tiksound/domain/media"
)

// Entry describes a regular file in the scratch directory
type Entry struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// ScratchDir is the shared directory holding transient video and audio files.
// It keeps no in-memory index; every call reads the filesystem.
type ScratchDir struct {
	root string
}

// NewScratchDir returns a ScratchDir rooted at root
func NewScratchDir(root string) *ScratchDir {
	return &ScratchDir{root: root}
}

// Root returns the directory path
func (d *ScratchDir) Root() string {
	return d.root
}

// Ensure creates the directory if it does not exist
func (d *ScratchDir) Ensure() error {
	if err := os.MkdirAll(d.root, 0755); err != nil {
		return fmt.Errorf("failed to create scratch directory %s: %w", d.root, err)
	}
	return nil
}

// Path joins name onto the root
func (d *ScratchDir) Path(name string) string {
	return filepath.Join(d.root, name)
}

// List returns the regular, non-hidden files in the directory sorted by name
func (d *ScratchDir) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read scratch directory: %w", err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if !de.Type().IsRegular() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// removed between ReadDir and Info by a concurrent request or sweep
			continue
		}
		entries = append(entries, Entry{
			Name:    de.Name(),
			Path:    filepath.Join(d.root, de.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// FindByPrefix returns the first file whose name is prefix followed by one of exts
func (d *ScratchDir) FindByPrefix(prefix string, exts ...string) (string, error) {
	entries, err := d.List()
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name, prefix+".") {
			continue
		}
		if len(exts) == 0 || hasExt(e.Name, exts) {
			return e.Path, nil
		}
	}
	return "", fmt.Errorf("%w: no file matching %s.*", media.ErrNotFound, prefix)
}

// Open returns a handle to a file in the directory. name must be a bare file name.
func (d *ScratchDir) Open(name string) (*os.File, fs.FileInfo, error) {
	if name == "" || name != filepath.Base(name) {
		return nil, nil, fmt.Errorf("%w: %q", media.ErrNotFound, name)
	}
	f, err := os.Open(d.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", media.ErrNotFound, name)
		}
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, fmt.Errorf("%w: %s", media.ErrNotFound, name)
	}
	return f, info, nil
}

// Remove deletes path; a missing file is not an error
func (d *ScratchDir) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// RemovePrefix deletes every file whose name starts with prefix followed by a dot
// and returns how many were removed.
func (d *ScratchDir) RemovePrefix(prefix string) (int, error) {
	entries, err := d.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	var errs []error
	for _, e := range entries {
		if !strings.HasPrefix(e.Name, prefix+".") {
			continue
		}
		if err := d.Remove(e.Path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func hasExt(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

var _ media.FileRemover = (*ScratchDir)(nil)

// MoveFile renames src to dst, falling back to copy and delete across filesystems
func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	in.Close()
	return os.Remove(src)
}
