// Package storage provides the on-disk file store and disk usage helpers.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DiskFileStore keeps stored file bodies on disk under a root directory.
// Metadata lives in SQLite; only bytes live here. Names may contain
// subdirectories ("images/logo.png") but must not escape the root.
type DiskFileStore struct {
	root string
}

// NewDiskFileStore creates the root directory if needed and returns the store.
func NewDiskFileStore(root string) (*DiskFileStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create files directory: %w", err)
	}
	return &DiskFileStore{root: root}, nil
}

// resolve validates name and returns its absolute path under the root.
func (d *DiskFileStore) resolve(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("file name is required")
	}
	path := filepath.Join(d.root, filepath.Clean("/"+name))
	if !strings.HasPrefix(path, d.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid file name: %s", name)
	}
	return path, nil
}

// Write stores content under name, creating subdirectories as needed.
func (d *DiskFileStore) Write(name string, content []byte) error {
	path, err := d.resolve(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create file directory: %w", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// Read returns the stored content for name.
func (d *DiskFileStore) Read(name string) ([]byte, error) {
	path, err := d.resolve(name)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file %s: %w", name, ErrNotFound)
		}
		return nil, err
	}
	return content, nil
}

// Remove deletes the stored content for name. Returns whether a file was
// actually removed; a missing file is not an error (metadata may outlive
// bytes after a partial delete).
func (d *DiskFileStore) Remove(name string) (bool, error) {
	path, err := d.resolve(name)
	if err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DiskUsageBytes returns the total size in bytes of the given paths.
// Each path may be a file or a directory (recursively summed).
// Missing or inaccessible paths are skipped (contribute 0); errors during walk are returned.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		if info.IsDir() {
			n, err := dirSize(p)
			if err != nil {
				return 0, err
			}
			total += n
		} else {
			total += info.Size()
		}
	}
	return total, nil
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info != nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
