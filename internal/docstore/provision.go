package docstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ProvisionResult lists the directories a Provision call created, outermost
// first. It is empty when the whole chain already existed.
type ProvisionResult struct {
	Path    string
	Created []string
}

// Provision makes sure dir and all its ancestors exist. It is idempotent and
// safe to race: a concurrent caller that creates a directory first turns the
// other caller's mkdir failure into a successful stat.
func (s *Store) Provision(ctx context.Context, dir string) (*ProvisionResult, error) {
	abs, dir, err := s.locate(dir)
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "provisioning directory", "dir", dir)

	res := &ProvisionResult{Path: dir}
	stack := []string{abs}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(stack) > s.maxDepth {
			return nil, fmt.Errorf("%w: provisioning %s needs more than %d levels", ErrPathTooDeep, dir, s.maxDepth)
		}

		top := stack[len(stack)-1]
		mkErr := os.Mkdir(top, dirPerm)
		switch {
		case mkErr == nil:
			stack = stack[:len(stack)-1]
			res.Created = append(res.Created, s.relative(top))

		case errors.Is(mkErr, fs.ErrNotExist):
			parent := filepath.Dir(top)
			if parent == top {
				return nil, fmt.Errorf("docstore: provision %s: %w", dir, mkErr)
			}
			stack = append(stack, parent)

		default:
			if info, statErr := os.Stat(top); statErr == nil && info.IsDir() {
				stack = stack[:len(stack)-1]
				continue
			}
			s.logger.DebugContext(ctx, "provision directory failed", "dir", dir, "error", mkErr)
			return nil, fmt.Errorf("docstore: provision %s: %w", dir, mkErr)
		}
	}

	s.logger.DebugContext(ctx, "provision directory complete", "dir", dir, "created", len(res.Created))
	return res, nil
}
