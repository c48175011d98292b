package sse

import (
	"context"

	"github.com/starford/folderdb/internal/docstore"
)

// Listener returns a bus listener that forwards store events to clients.
func (b *Broker) Listener() docstore.Listener {
	return func(_ context.Context, ev docstore.Event) {
		b.PublishDocumentEvent(string(ev.Op), ev.Path, SourceStore)
	}
}

// WatchCallback forwards filesystem watcher changes to clients.
func (b *Broker) WatchCallback(kind, path string) {
	b.PublishDocumentEvent(kind, path, SourceExternal)
}
