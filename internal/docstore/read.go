package docstore

import (
	"context"
	"fmt"
	"os"
)

// ReadOutcome says how a document's bytes were turned into a value.
type ReadOutcome int

const (
	// ReadDecoded means a structured document decoded cleanly.
	ReadDecoded ReadOutcome = iota
	// ReadRaw means the extension is not structured; Value is the file text.
	ReadRaw
	// ReadFallback means a structured document failed to decode and Value is
	// the file text. DecodeErr holds the decoder's complaint.
	ReadFallback
)

func (o ReadOutcome) String() string {
	switch o {
	case ReadDecoded:
		return "decoded"
	case ReadRaw:
		return "raw"
	case ReadFallback:
		return "fallback"
	}
	return "unknown"
}

// Document is the result of Read.
type Document struct {
	Path      string
	Value     any
	Raw       []byte
	Outcome   ReadOutcome
	DecodeErr error
}

// Read loads the document at path. Malformed structured documents are still
// readable: they come back as text with outcome ReadFallback, not as an error.
// A read event carrying Value is emitted once the read has succeeded.
func (s *Store) Read(ctx context.Context, path string) (*Document, error) {
	abs, path, err := s.locate(path)
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "reading document", "path", path)

	data, err := os.ReadFile(abs)
	if err != nil {
		s.logger.DebugContext(ctx, "read document failed", "path", path, "error", err)
		return nil, fmt.Errorf("docstore: read %s: %w", path, err)
	}

	doc := &Document{Path: path, Raw: data, Value: string(data), Outcome: ReadRaw}
	if codec, ok := s.codecFor(path); ok {
		v, decErr := codec.Unmarshal(data)
		if decErr != nil {
			doc.Outcome = ReadFallback
			doc.DecodeErr = decErr
			s.logger.DebugContext(ctx, "document decode failed, returning text", "path", path, "error", decErr)
		} else {
			doc.Value = v
			doc.Outcome = ReadDecoded
		}
	}

	s.bus.Emit(ctx, Event{Op: OpRead, Path: path, Payload: doc.Value})

	s.logger.DebugContext(ctx, "read document complete", "path", path, "size", len(data), "outcome", doc.Outcome.String())
	return doc, nil
}
