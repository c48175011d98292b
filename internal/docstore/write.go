package docstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

const tmpPattern = ".folderdb-tmp-*"

// WriteOutcome says what a write call did.
type WriteOutcome int

const (
	// Written means the document was serialized and stored.
	Written WriteOutcome = iota
	// AlreadyExists means WriteIfAbsent found a file at the path and left it alone.
	AlreadyExists
	// Occupied means WriteIfAbsent found something other than a file (usually
	// a directory) at the path. It is never overwritten.
	Occupied
)

func (o WriteOutcome) String() string {
	switch o {
	case Written:
		return "written"
	case AlreadyExists:
		return "already_exists"
	case Occupied:
		return "occupied"
	}
	return "unknown"
}

// WriteResult is returned by Write and WriteIfAbsent.
type WriteResult struct {
	Path    string
	Outcome WriteOutcome
	Size    int
}

// Write serializes value and replaces the document at path. The parent
// directory must already exist. The write event is emitted before anything
// touches the disk, so subscribers see intent rather than completion.
func (s *Store) Write(ctx context.Context, path string, value any) (*WriteResult, error) {
	abs, path, err := s.locate(path)
	if err != nil {
		return nil, err
	}

	s.bus.Emit(ctx, Event{Op: OpWrite, Path: path, Payload: value})

	data, err := s.encode(path, value)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode %s: %w", path, err)
	}

	s.logger.DebugContext(ctx, "writing document", "path", path, "size", len(data))

	if err := writeAtomic(abs, data); err != nil {
		s.logger.DebugContext(ctx, "write document failed", "path", path, "error", err)
		return nil, fmt.Errorf("docstore: write %s: %w", path, err)
	}

	s.logger.DebugContext(ctx, "write document complete", "path", path)
	return &WriteResult{Path: path, Outcome: Written, Size: len(data)}, nil
}

// WriteIfAbsent provisions the parent directory and writes value only when
// nothing exists at path. A nil value is stored as an empty object for
// structured documents and as an empty file for everything else.
func (s *Store) WriteIfAbsent(ctx context.Context, path string, value any) (*WriteResult, error) {
	abs, path, err := s.locate(path)
	if err != nil {
		return nil, err
	}
	if value == nil {
		if s.IsStructured(path) {
			value = map[string]any{}
		} else {
			value = []byte{}
		}
	}

	if _, err := s.Provision(ctx, parentOf(path)); err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s.Write(ctx, path, value)
	case err != nil:
		return nil, fmt.Errorf("docstore: stat %s: %w", path, err)
	case info.Mode().IsRegular():
		s.logger.DebugContext(ctx, "document already exists", "path", path)
		return &WriteResult{Path: path, Outcome: AlreadyExists}, nil
	default:
		s.logger.DebugContext(ctx, "document path occupied", "path", path, "mode", info.Mode().String())
		return &WriteResult{Path: path, Outcome: Occupied}, nil
	}
}

func (s *Store) encode(p string, value any) ([]byte, error) {
	if codec, ok := s.codecFor(p); ok {
		data, err := codec.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
		}
		return data, nil
	}
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, value)
}

// writeAtomic writes content through a hidden temp file in the target
// directory, then renames it into place. Readers see either the old or the
// new content, never a prefix.
func writeAtomic(abs string, content []byte) error {
	dir := filepath.Dir(abs)
	tmp, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		return err
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return err
	}
	success = true
	return nil
}

func parentOf(p string) string {
	dir := path.Dir(filepath.ToSlash(p))
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}
