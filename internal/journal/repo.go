package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 1000
)

// Entry is one recorded event.
type Entry struct {
	ID         int64     `json:"id"`
	Op         string    `json:"op"`
	Path       string    `json:"path"`
	Payload    string    `json:"payload,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Record appends an event. The payload is stored as JSON; raw document
// bytes are stored as text.
func (db *DB) Record(ctx context.Context, op, path string, payload any) error {
	text, err := encodePayload(payload)
	if err != nil {
		return fmt.Errorf("journal: encode payload for %s: %w", path, err)
	}
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO events (op, path, payload, recorded_at) VALUES (?, ?, ?, ?)`,
		op, path, text, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("journal: insert event: %w", err)
	}
	return nil
}

// Recent returns the newest events first. A non-empty prefix restricts the
// result to paths equal to it or below it. limit is clamped to [1, 1000]
// and defaults to 50.
func (db *DB) Recent(ctx context.Context, limit int, prefix string) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	q := `SELECT id, op, path, payload, recorded_at FROM events`
	var args []any
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		q += ` WHERE path = ? OR path LIKE ? ESCAPE '\'`
		args = append(args, prefix, escapeLike(prefix)+"/%")
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Op, &e.Path, &e.Payload, &e.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes events recorded before cutoff and returns how many were removed.
func (db *DB) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM events WHERE recorded_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}
	return res.RowsAffected()
}

func encodePayload(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case []byte:
		return string(t), nil
	case string:
		return t, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
