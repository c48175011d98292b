package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) cb(kind, path string) {
	r.mu.Lock()
	r.events = append(r.events, kind+":"+path)
	r.mu.Unlock()
}

func (r *recorder) has(want string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == want {
			return true
		}
	}
	return false
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func startWatch(t *testing.T, root string, opts ...Option) *recorder {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	rec := &recorder{}
	go Watch(ctx, root, logger, rec.cb, opts...)
	time.Sleep(100 * time.Millisecond)
	return rec
}

func TestWatch_CreateUpdateDelete(t *testing.T) {
	root := t.TempDir()
	rec := startWatch(t, root, WithDebounce(20*time.Millisecond))

	p := filepath.Join(root, "doc.json")
	_ = os.WriteFile(p, []byte(`{}`), 0o644)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("created:doc.json")
	}, "create not reported")

	_ = os.WriteFile(p, []byte(`{"a":1}`), 0o644)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("updated:doc.json")
	}, "update not reported")

	_ = os.Remove(p)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("deleted:doc.json")
	}, "delete not reported")
}

func TestWatch_NewDirectory(t *testing.T) {
	root := t.TempDir()
	rec := startWatch(t, root)

	dir := filepath.Join(root, "a", "b")
	_ = os.MkdirAll(dir, 0o755)
	_ = os.WriteFile(filepath.Join(dir, "inner.json"), []byte(`{}`), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("created:a/b/inner.json")
	}, "file in new directory not reported")

	time.Sleep(200 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(dir, "later.json"), []byte(`{}`), 0o644)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("created:a/b/later.json")
	}, "new directory not watched")
}

func TestWatch_SkipsHiddenAndFiltered(t *testing.T) {
	root := t.TempDir()
	rec := startWatch(t, root, WithFilter(func(name string) bool {
		return strings.HasSuffix(name, ".json")
	}))

	_ = os.WriteFile(filepath.Join(root, ".folderdb-tmp-123"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(root, "ok.json"), []byte("{}"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("created:ok.json")
	}, "document not reported")

	time.Sleep(200 * time.Millisecond)
	for _, e := range rec.snapshot() {
		if strings.Contains(e, ".folderdb-tmp") || strings.Contains(e, "notes.txt") {
			t.Errorf("unexpected event %s", e)
		}
	}
}

func TestWatch_Rename(t *testing.T) {
	root := t.TempDir()
	_ = os.WriteFile(filepath.Join(root, "old.json"), []byte("{}"), 0o644)
	rec := startWatch(t, root)

	_ = os.Rename(filepath.Join(root, "old.json"), filepath.Join(root, "new.json"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("deleted:old.json") && rec.has("created:new.json")
	}, "rename not reported as delete plus create")
}

func TestWatch_StopsOnCancel(t *testing.T) {
	root := t.TempDir()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Watch(ctx, root, logger, nil) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not stop after cancel")
	}
}
