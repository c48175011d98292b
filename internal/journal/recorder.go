package journal

import (
	"context"
	"log/slog"

	"github.com/starford/folderdb/internal/docstore"
)

// Recorder returns a bus listener that journals every event it receives.
// Failures are logged and never reach the store operation.
func Recorder(db *DB, logger *slog.Logger) docstore.Listener {
	return func(ctx context.Context, ev docstore.Event) {
		if err := db.Record(context.WithoutCancel(ctx), string(ev.Op), ev.Path, ev.Payload); err != nil {
			logger.Warn("journal record failed", "op", ev.Op, "path", ev.Path, "error", err)
		}
	}
}

// Subscribe attaches a Recorder to bus for write and delete events.
func Subscribe(bus *docstore.Bus, db *DB, logger *slog.Logger) (cancel func()) {
	return bus.Subscribe(Recorder(db, logger), docstore.OpWrite, docstore.OpDelete)
}
