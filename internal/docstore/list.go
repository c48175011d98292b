package docstore

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// List returns the names of documents directly inside dir: entries that are
// not hidden and carry a structured or script extension.
func (s *Store) List(ctx context.Context, dir string) ([]string, error) {
	return s.listNames(ctx, dir, func(name string) bool {
		return !strings.HasPrefix(name, ".") && s.IsDocument(name)
	})
}

// ListSubdirectories returns the entry names in dir that have no extension.
// Like the on-disk namespace itself, this is a naming convention: a name
// without a dot is treated as a subdirectory.
func (s *Store) ListSubdirectories(ctx context.Context, dir string) ([]string, error) {
	return s.listNames(ctx, dir, func(name string) bool {
		return !strings.Contains(name, ".")
	})
}

func (s *Store) listNames(ctx context.Context, dir string, keep func(string) bool) ([]string, error) {
	abs, err := s.resolve(dir)
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "listing directory", "dir", dir)

	entries, err := os.ReadDir(abs)
	if err != nil {
		s.logger.DebugContext(ctx, "list directory failed", "dir", dir, "error", err)
		return nil, fmt.Errorf("docstore: list %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if keep(e.Name()) {
			names = append(names, e.Name())
		}
	}

	s.logger.DebugContext(ctx, "list directory complete", "dir", dir, "count", len(names))
	return names, nil
}

// Info describes what sits at a path.
type Info struct {
	Path    string
	IsFile  bool
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// Stat reports the type of the entry at p. A missing path returns the
// filesystem's not-exist error.
func (s *Store) Stat(ctx context.Context, p string) (*Info, error) {
	abs, p, err := s.locate(p)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("docstore: stat %s: %w", p, err)
	}
	return &Info{
		Path:    p,
		IsFile:  fi.Mode().IsRegular(),
		IsDir:   fi.IsDir(),
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
	}, nil
}

// Exists reports whether anything exists at p.
func (s *Store) Exists(ctx context.Context, p string) (bool, error) {
	_, err := s.Stat(ctx, p)
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// Rename moves a document or directory within the store. It emits no event.
func (s *Store) Rename(ctx context.Context, oldPath, newPath string) error {
	absOld, err := s.resolve(oldPath)
	if err != nil {
		return err
	}
	absNew, err := s.resolve(newPath)
	if err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "renaming", "from", oldPath, "to", newPath)

	if err := os.Rename(absOld, absNew); err != nil {
		return fmt.Errorf("docstore: rename %s to %s: %w", oldPath, newPath, err)
	}
	return nil
}
