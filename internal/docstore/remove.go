package docstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sync/atomic"
	"syscall"

	"golang.org/x/sync/errgroup"
)

// RemoveOutcome says what RemoveTree found at the path.
type RemoveOutcome int

const (
	// RemovedFile means a single document (or symlink) was deleted.
	RemovedFile RemoveOutcome = iota
	// RemovedTree means a directory and everything under it was deleted.
	RemovedTree
	// RemoveAbsent means nothing existed at the path.
	RemoveAbsent
	// RemoveSkipped means the path is neither a file nor a directory
	// (socket, device, fifo) and was left in place.
	RemoveSkipped
)

func (o RemoveOutcome) String() string {
	switch o {
	case RemovedFile:
		return "removed_file"
	case RemovedTree:
		return "removed_tree"
	case RemoveAbsent:
		return "absent"
	case RemoveSkipped:
		return "skipped"
	}
	return "unknown"
}

// RemoveResult is returned by RemoveTree.
type RemoveResult struct {
	Path    string
	Outcome RemoveOutcome
	Files   int
	Dirs    int
}

// Delete removes exactly one document. The delete event is emitted before
// the removal is attempted. Directories are refused with EISDIR.
func (s *Store) Delete(ctx context.Context, p string) error {
	abs, p, err := s.locate(p)
	if err != nil {
		return err
	}

	s.bus.Emit(ctx, Event{Op: OpDelete, Path: p})

	s.logger.DebugContext(ctx, "deleting document", "path", p)

	info, err := os.Lstat(abs)
	if err != nil {
		return fmt.Errorf("docstore: delete %s: %w", p, err)
	}
	if info.IsDir() {
		return fmt.Errorf("docstore: delete %s: %w", p, &fs.PathError{Op: "delete", Path: abs, Err: syscall.EISDIR})
	}
	if err := os.Remove(abs); err != nil {
		s.logger.DebugContext(ctx, "delete document failed", "path", p, "error", err)
		return fmt.Errorf("docstore: delete %s: %w", p, err)
	}

	s.logger.DebugContext(ctx, "delete document complete", "path", p)
	return nil
}

// RemoveDirectory removes one empty directory.
func (s *Store) RemoveDirectory(ctx context.Context, dir string) error {
	abs, dir, err := s.locate(dir)
	if err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "removing directory", "dir", dir)

	info, err := os.Lstat(abs)
	if err != nil {
		return fmt.Errorf("docstore: remove directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("docstore: remove directory %s: %w", dir, &fs.PathError{Op: "rmdir", Path: abs, Err: syscall.ENOTDIR})
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("docstore: remove directory %s: %w", dir, err)
	}
	return nil
}

// RemoveTree deletes the document or directory tree at p. A path that does
// not exist is a success, which makes the call idempotent, and the same holds
// for every entry inside the tree: anything that disappears while the call is
// running (a concurrent RemoveTree, a listener, another process) counts as
// removed. Files inside a tree are deleted concurrently through Delete, so
// each one emits a delete event; directories are removed afterwards, deepest
// first. Symlinks are unlinked and never followed.
//
// Any path that resolves to the store root is refused with ErrRootTarget.
//
// If any entry fails for another reason the whole call fails and the tree
// may be left partially deleted.
func (s *Store) RemoveTree(ctx context.Context, p string) (*RemoveResult, error) {
	abs, p, err := s.locate(p)
	if err != nil {
		return nil, err
	}
	if p == "" {
		return nil, ErrRootTarget
	}

	info, err := os.Lstat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.DebugContext(ctx, "remove tree: path absent", "path", p)
			return &RemoveResult{Path: p, Outcome: RemoveAbsent}, nil
		}
		return nil, fmt.Errorf("docstore: remove tree %s: %w", p, err)
	}

	switch {
	case info.IsDir():
		return s.removeDir(ctx, p)
	case removable(info.Mode()):
		if err := s.Delete(ctx, p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return &RemoveResult{Path: p, Outcome: RemoveAbsent}, nil
			}
			return nil, err
		}
		return &RemoveResult{Path: p, Outcome: RemovedFile, Files: 1}, nil
	default:
		s.logger.DebugContext(ctx, "remove tree: skipping special file", "path", p, "mode", info.Mode().String())
		return &RemoveResult{Path: p, Outcome: RemoveSkipped}, nil
	}
}

func removable(m fs.FileMode) bool {
	return m.IsRegular() || m&fs.ModeSymlink != 0
}

type pendingDir struct {
	rel   string
	depth int
}

func (s *Store) removeDir(ctx context.Context, root string) (*RemoveResult, error) {
	s.logger.DebugContext(ctx, "removing tree", "path", root)

	// Breadth-first, so dirs is ordered parents before children and
	// reversing it gives a safe removal order.
	var dirs []string
	var files []string
	queue := []pendingDir{{rel: root}}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur := queue[0]
		queue = queue[1:]
		if cur.depth > s.maxDepth {
			return nil, fmt.Errorf("%w: %s is nested more than %d levels", ErrPathTooDeep, cur.rel, s.maxDepth)
		}

		abs, err := s.resolve(cur.rel)
		if err != nil {
			return nil, err
		}
		entries, err := os.ReadDir(abs)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("docstore: remove tree %s: %w", cur.rel, err)
		}
		dirs = append(dirs, cur.rel)
		for _, e := range entries {
			child := path.Join(cur.rel, e.Name())
			switch {
			case e.IsDir():
				queue = append(queue, pendingDir{rel: child, depth: cur.depth + 1})
			case removable(e.Type()):
				files = append(files, child)
			default:
				// Left in place; the parent rmdir below reports ENOTEMPTY.
				s.logger.DebugContext(ctx, "remove tree: skipping special file", "path", child)
			}
		}
	}

	var removedFiles atomic.Int64

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, f := range files {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			if err := s.Delete(gCtx, f); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			removedFiles.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.DebugContext(ctx, "remove tree failed", "path", root, "error", err)
		return nil, err
	}

	removedDirs := 0
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := s.RemoveDirectory(ctx, dirs[i]); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			s.logger.DebugContext(ctx, "remove tree failed", "path", root, "error", err)
			return nil, err
		}
		removedDirs++
	}

	res := &RemoveResult{
		Path:    root,
		Outcome: RemovedTree,
		Files:   int(removedFiles.Load()),
		Dirs:    removedDirs,
	}
	s.logger.DebugContext(ctx, "remove tree complete", "path", root, "files", res.Files, "dirs", res.Dirs)
	return res, nil
}
