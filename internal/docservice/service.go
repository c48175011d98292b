// Package docservice layers request-level behavior over the document store:
// directory-or-document reads, optimistic concurrency, id generation for
// collections, merge patches and jq search.
package docservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"dario.cat/mergo"
	"github.com/google/uuid"

	"github.com/starford/folderdb/internal/apperr"
	"github.com/starford/folderdb/internal/checksum"
	"github.com/starford/folderdb/internal/docstore"
	"github.com/starford/folderdb/internal/filter"
)

const defaultSearchLimit = 100

// DocumentDetail is the full representation of a document.
type DocumentDetail struct {
	Path     string `json:"path"`
	Value    any    `json:"value"`
	Outcome  string `json:"outcome"`
	Checksum string `json:"checksum"`
	Size     int64  `json:"size"`
}

// Listing is the representation of a directory.
type Listing struct {
	Path        string   `json:"path"`
	Documents   []string `json:"documents"`
	Directories []string `json:"directories"`
}

// Entry is what Get found: exactly one of Document and Listing is set.
type Entry struct {
	Document *DocumentDetail `json:"document,omitempty"`
	Listing  *Listing        `json:"listing,omitempty"`
}

// SearchHit is a document that matched a search expression.
type SearchHit struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// Service coordinates store operations for the HTTP and MCP layers.
type Service struct {
	store  *docstore.Store
	logger *slog.Logger
}

// NewService creates a new document service.
func NewService(store *docstore.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Store returns the underlying document store.
func (s *Service) Store() *docstore.Store {
	return s.store
}

// Get returns the listing of a directory or the content of a document.
func (s *Service) Get(ctx context.Context, p string) (*Entry, error) {
	info, err := s.store.Stat(ctx, p)
	if err != nil {
		return nil, err
	}
	if info.IsDir {
		l, err := s.List(ctx, p)
		if err != nil {
			return nil, err
		}
		return &Entry{Listing: l}, nil
	}
	d, err := s.GetDocument(ctx, p)
	if err != nil {
		return nil, err
	}
	return &Entry{Document: d}, nil
}

// GetDocument reads a single document.
func (s *Service) GetDocument(ctx context.Context, p string) (*DocumentDetail, error) {
	doc, err := s.store.Read(ctx, p)
	if err != nil {
		return nil, err
	}
	return buildDetail(doc), nil
}

// List returns the documents and subdirectories of dir.
func (s *Service) List(ctx context.Context, dir string) (*Listing, error) {
	docs, err := s.store.List(ctx, dir)
	if err != nil {
		return nil, err
	}
	dirs, err := s.store.ListSubdirectories(ctx, dir)
	if err != nil {
		return nil, err
	}
	return &Listing{Path: dir, Documents: nonNilSlice(docs), Directories: nonNilSlice(dirs)}, nil
}

// Put replaces the document at p. When ifMatch is non-empty the current
// content must still carry that checksum, otherwise apperr.ErrConflict is
// returned and nothing is written.
func (s *Service) Put(ctx context.Context, p string, value any, ifMatch string) (*docstore.WriteResult, error) {
	if ifMatch != "" {
		current, err := s.store.Read(ctx, p)
		if err != nil {
			return nil, err
		}
		if !checksum.Matches(ifMatch, current.Raw) {
			return nil, apperr.ErrConflict
		}
	}
	return s.store.Write(ctx, p, value)
}

// Create stores value at p only if nothing exists there yet. When p has no
// document extension it names a collection and the document is created
// inside it under a fresh "<uuid>.json" name.
func (s *Service) Create(ctx context.Context, p string, value any) (*docstore.WriteResult, error) {
	if !s.store.IsDocument(p) {
		p = path.Join(strings.TrimSuffix(p, "/"), uuid.NewString()+".json")
	}
	res, err := s.store.WriteIfAbsent(ctx, p, value)
	if err != nil {
		return nil, err
	}
	switch res.Outcome {
	case docstore.AlreadyExists:
		return res, fmt.Errorf("%s: %w", p, apperr.ErrAlreadyExists)
	case docstore.Occupied:
		return res, fmt.Errorf("%s: %w", p, apperr.ErrOccupied)
	}
	s.logger.InfoContext(ctx, "document created", "path", p)
	return res, nil
}

// Patch merges patch into the object stored at p. Keys in patch override
// existing keys. Only structured documents holding an object can be patched.
func (s *Service) Patch(ctx context.Context, p string, patch map[string]any) (map[string]any, error) {
	if !s.store.IsStructured(p) {
		return nil, fmt.Errorf("%s is not a structured document: %w", p, apperr.ErrNotMergeable)
	}
	doc, err := s.store.Read(ctx, p)
	if err != nil {
		return nil, err
	}
	if doc.Outcome != docstore.ReadDecoded {
		return nil, fmt.Errorf("%s does not decode: %w", p, apperr.ErrNotMergeable)
	}
	dst, ok := doc.Value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s does not hold an object: %w", p, apperr.ErrNotMergeable)
	}
	if err := mergo.Merge(&dst, patch, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merge %s: %w", p, err)
	}
	if _, err := s.store.Write(ctx, p, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// Delete removes the document or directory tree at p. Removing something
// that does not exist succeeds.
func (s *Service) Delete(ctx context.Context, p string) (*docstore.RemoveResult, error) {
	res, err := s.store.RemoveTree(ctx, p)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "path removed", "path", p, "outcome", res.Outcome.String(), "files", res.Files)
	return res, nil
}

// Upload stores data verbatim as dir/name unless something already exists
// there. Unlike Create, the name is kept even without a document extension.
func (s *Service) Upload(ctx context.Context, dir, name string, data []byte) (*docstore.WriteResult, error) {
	p := path.Join(dir, name)
	res, err := s.store.WriteIfAbsent(ctx, p, data)
	if err != nil {
		return nil, err
	}
	switch res.Outcome {
	case docstore.AlreadyExists:
		return res, fmt.Errorf("%s: %w", p, apperr.ErrAlreadyExists)
	case docstore.Occupied:
		return res, fmt.Errorf("%s: %w", p, apperr.ErrOccupied)
	}
	s.logger.InfoContext(ctx, "file uploaded", "path", p, "size", res.Size)
	return res, nil
}

// MakeDir provisions dir and its ancestors.
func (s *Service) MakeDir(ctx context.Context, dir string) (*docstore.ProvisionResult, error) {
	return s.store.Provision(ctx, dir)
}

// RemoveDir removes one empty directory.
func (s *Service) RemoveDir(ctx context.Context, dir string) error {
	return s.store.RemoveDirectory(ctx, dir)
}

// Rename moves a document or directory.
func (s *Service) Rename(ctx context.Context, from, to string) error {
	if err := s.store.Rename(ctx, from, to); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "path renamed", "from", from, "to", to)
	return nil
}

// Search reads every document directly inside dir and returns those for
// which expr yields a truthy first value. Documents that vanish or fail the
// expression at runtime are skipped. A limit of zero or less means the
// default of 100.
func (s *Service) Search(ctx context.Context, dir, expr string, limit int) ([]SearchHit, error) {
	pred, err := filter.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	names, err := s.store.List(ctx, dir)
	if err != nil {
		return nil, err
	}

	hits := []SearchHit{}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := path.Join(dir, name)
		doc, err := s.store.Read(ctx, p)
		if err != nil {
			if docstore.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		ok, err := pred.Match(ctx, doc.Value)
		if err != nil {
			s.logger.DebugContext(ctx, "search expression failed on document", "path", p, "error", err)
			continue
		}
		if ok {
			hits = append(hits, SearchHit{Path: p, Value: doc.Value})
			if len(hits) >= limit {
				break
			}
		}
	}
	return hits, nil
}

// DecodeValue turns a request body into the value Write expects for p:
// parsed JSON for structured documents, the text itself otherwise. An empty
// body for a structured document yields nil.
func (s *Service) DecodeValue(p string, body []byte) (any, error) {
	if !s.store.IsStructured(p) {
		return string(body), nil
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("%w: body is not valid JSON: %v", apperr.ErrInvalidInput, err)
	}
	return v, nil
}

// IsInputError reports whether err was caused by the caller's input rather
// than by the store or the filesystem.
func IsInputError(err error) bool {
	return errors.Is(err, apperr.ErrInvalidInput) || errors.Is(err, apperr.ErrNotMergeable)
}

func buildDetail(doc *docstore.Document) *DocumentDetail {
	return &DocumentDetail{
		Path:     doc.Path,
		Value:    doc.Value,
		Outcome:  doc.Outcome.String(),
		Checksum: checksum.Sum(doc.Raw),
		Size:     int64(len(doc.Raw)),
	}
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
