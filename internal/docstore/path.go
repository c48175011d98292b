package docstore

import (
	"fmt"
	"path/filepath"
	"strings"
)

// resolve maps a caller path onto the filesystem. A leading slash is
// root-relative, so "/a/b.json" and "a/b.json" name the same document.
// Anything that cleans to a location outside the root is rejected.
func (s *Store) resolve(rel string) (string, error) {
	joined := filepath.Join(s.root, filepath.FromSlash(rel))
	if !within(s.root, joined) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, rel)
	}
	return joined, nil
}

// locate resolves p and also returns its canonical root-relative form,
// which is what events and results carry. The root itself is "".
func (s *Store) locate(p string) (abs, rel string, err error) {
	abs, err = s.resolve(p)
	if err != nil {
		return "", "", err
	}
	return abs, s.relative(abs), nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// relative converts an absolute path under the root back to the
// slash-separated form callers use.
func (s *Store) relative(abs string) string {
	rel, err := filepath.Rel(s.root, abs)
	if err != nil {
		return abs
	}
	if rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}
