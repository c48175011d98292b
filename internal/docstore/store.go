// Package docstore is a hierarchical document store laid directly on a
// directory tree. Documents are files addressed by a root-relative path;
// structured documents (JSON, YAML) are decoded on read and encoded on write,
// everything else is stored verbatim.
package docstore

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
)

const (
	defaultMaxDepth    = 256
	defaultConcurrency = 8

	dirPerm  fs.FileMode = 0o755
	filePerm fs.FileMode = 0o644
)

// Store is a document store rooted at an absolute directory. Operations on
// the same path are not serialized: concurrent writers race and the last
// rename wins.
type Store struct {
	root        string
	bus         *Bus
	codecs      map[string]Codec
	docExts     map[string]struct{}
	maxDepth    int
	concurrency int
	logger      *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for per-operation debug output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithBus makes the store emit on a shared bus instead of its own.
func WithBus(b *Bus) Option {
	return func(s *Store) {
		s.bus = b
	}
}

// WithCodec registers c for ext (".toml", ...), replacing any existing codec.
func WithCodec(ext string, c Codec) Option {
	return func(s *Store) {
		s.codecs[ext] = c
	}
}

// WithScriptExtensions sets the non-structured extensions that List reports
// as documents.
func WithScriptExtensions(exts ...string) Option {
	return func(s *Store) {
		s.docExts = make(map[string]struct{}, len(exts))
		for _, e := range exts {
			s.docExts[e] = struct{}{}
		}
	}
}

// WithMaxDepth bounds how many directory levels Provision may create and
// RemoveTree may descend.
func WithMaxDepth(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxDepth = n
		}
	}
}

// WithConcurrency bounds how many files RemoveTree deletes in parallel.
func WithConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// New creates a store rooted at root. The directory does not have to exist
// yet; Provision(ctx, "") creates it.
func New(root string, opts ...Option) (*Store, error) {
	if root == "" {
		return nil, ErrNoRoot
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("docstore: resolve root: %w", err)
	}

	s := &Store{
		root:        abs,
		codecs:      DefaultCodecs(),
		maxDepth:    defaultMaxDepth,
		concurrency: defaultConcurrency,
		logger:      slog.Default(),
	}
	WithScriptExtensions(DefaultScriptExtensions...)(s)
	for _, opt := range opts {
		opt(s)
	}
	if s.bus == nil {
		s.bus = NewBus()
	}
	return s, nil
}

// Root returns the absolute root directory.
func (s *Store) Root() string {
	return s.root
}

// Events returns the bus the store emits read, write and delete events on.
func (s *Store) Events() *Bus {
	return s.bus
}

// IsDocument reports whether name carries a document extension.
func (s *Store) IsDocument(name string) bool {
	ext := extOf(name)
	if _, ok := s.codecs[ext]; ok {
		return true
	}
	_, ok := s.docExts[ext]
	return ok
}

// IsStructured reports whether path is decoded and encoded with a codec.
func (s *Store) IsStructured(path string) bool {
	_, ok := s.codecs[extOf(path)]
	return ok
}

func (s *Store) codecFor(path string) (Codec, bool) {
	c, ok := s.codecs[extOf(path)]
	return c, ok
}
