package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"testing"
)

func tempStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := New(t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNew_RequiresRoot(t *testing.T) {
	if _, err := New(""); !errors.Is(err, ErrNoRoot) {
		t.Fatalf("New(\"\") err = %v, want ErrNoRoot", err)
	}
}

func TestWriteAndReadStructured(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	value := map[string]any{
		"name":  "doc",
		"count": float64(3),
		"tags":  []any{"a", "b"},
		"nested": map[string]any{
			"ok": true,
		},
	}
	res, err := s.Write(ctx, "doc.json", value)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if res.Outcome != Written {
		t.Errorf("outcome = %v, want written", res.Outcome)
	}

	doc, err := s.Read(ctx, "doc.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if doc.Outcome != ReadDecoded {
		t.Errorf("outcome = %v, want decoded", doc.Outcome)
	}
	if !reflect.DeepEqual(doc.Value, value) {
		t.Errorf("value = %#v, want %#v", doc.Value, value)
	}
}

func TestWriteStableOutput(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	if _, err := s.Write(ctx, "a.json", map[string]any{"b": 1, "a": 2}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(s.Root(), "a.json"))
	if err != nil {
		t.Fatal(err)
	}
	want := "{\n  \"a\": 2,\n  \"b\": 1\n}"
	if string(data) != want {
		t.Errorf("on-disk = %q, want %q", data, want)
	}
}

func TestWriteAndReadYAML(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	if _, err := s.Write(ctx, "conf.yaml", map[string]any{"port": 8080, "name": "x"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	doc, err := s.Read(ctx, "conf.yaml")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	m, ok := doc.Value.(map[string]any)
	if !ok {
		t.Fatalf("value type = %T", doc.Value)
	}
	if m["port"] != 8080 || m["name"] != "x" {
		t.Errorf("value = %#v", m)
	}
}

func TestReadYAMLNonStringKeys(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	content := "1: a\ntrue: b\nnested:\n  - 2: c\nplain:\n  k: v\n"
	if err := os.WriteFile(filepath.Join(s.Root(), "keys.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := s.Read(ctx, "keys.yaml")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if doc.Outcome != ReadDecoded {
		t.Fatalf("outcome = %v, want decoded", doc.Outcome)
	}
	m, ok := doc.Value.(map[string]any)
	if !ok {
		t.Fatalf("value type = %T, want map[string]any", doc.Value)
	}
	if m["1"] != "a" || m["true"] != "b" {
		t.Errorf("value = %#v", m)
	}
	nested, ok := m["nested"].([]any)
	if !ok || len(nested) != 1 {
		t.Fatalf("nested = %#v", m["nested"])
	}
	if inner, ok := nested[0].(map[string]any); !ok || inner["2"] != "c" {
		t.Errorf("nested[0] = %#v, want map with key \"2\"", nested[0])
	}
	if _, err := json.Marshal(doc.Value); err != nil {
		t.Errorf("decoded YAML is not JSON encodable: %v", err)
	}
}

func TestReadRawNeverDecodes(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	content := []byte("{\"looks\": \"like json\"}\n")
	if _, err := s.Write(ctx, "notes.txt", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	doc, err := s.Read(ctx, "notes.txt")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if doc.Outcome != ReadRaw {
		t.Errorf("outcome = %v, want raw", doc.Outcome)
	}
	if doc.Value != string(content) {
		t.Errorf("value = %q", doc.Value)
	}
	if string(doc.Raw) != string(content) {
		t.Errorf("raw = %q", doc.Raw)
	}
}

func TestReadDecodeFallback(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(s.Root(), "broken.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := s.Read(ctx, "broken.json")
	if err != nil {
		t.Fatalf("Read should not fail on malformed JSON: %v", err)
	}
	if doc.Outcome != ReadFallback {
		t.Errorf("outcome = %v, want fallback", doc.Outcome)
	}
	if doc.DecodeErr == nil {
		t.Error("expected DecodeErr to be set")
	}
	if doc.Value != "{not json" {
		t.Errorf("value = %#v", doc.Value)
	}
}

func TestReadMissingAndDirectory(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	if _, err := s.Read(ctx, "nope.json"); KindOf(err) != KindNotFound {
		t.Errorf("missing read kind = %v, want not_found (err %v)", KindOf(err), err)
	}

	if err := os.Mkdir(filepath.Join(s.Root(), "dir.json"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Read(ctx, "dir.json"); KindOf(err) != KindIsADirectory {
		t.Errorf("directory read kind = %v, want is_a_directory (err %v)", KindOf(err), err)
	}
}

func TestWriteMissingParent(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	_, err := s.Write(ctx, "missing/doc.json", map[string]any{"x": 1})
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Write err = %v, want not-exist", err)
	}

	res, err := s.WriteIfAbsent(ctx, "missing/doc.json", map[string]any{"x": 1})
	if err != nil {
		t.Fatalf("WriteIfAbsent: %v", err)
	}
	if res.Outcome != Written {
		t.Errorf("outcome = %v, want written", res.Outcome)
	}
}

func TestWriteRawRejectsStructuredValue(t *testing.T) {
	s := tempStore(t)
	_, err := s.Write(context.Background(), "a.txt", map[string]any{"x": 1})
	if KindOf(err) != KindInvalidValue {
		t.Errorf("kind = %v, want invalid_value (err %v)", KindOf(err), err)
	}
}

func TestWriteIfAbsentKeepsFirstValue(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	first, err := s.WriteIfAbsent(ctx, "a/doc.json", map[string]any{"v": float64(1)})
	if err != nil {
		t.Fatalf("first WriteIfAbsent: %v", err)
	}
	if first.Outcome != Written {
		t.Fatalf("first outcome = %v", first.Outcome)
	}

	second, err := s.WriteIfAbsent(ctx, "a/doc.json", map[string]any{"v": float64(2)})
	if err != nil {
		t.Fatalf("second WriteIfAbsent: %v", err)
	}
	if second.Outcome != AlreadyExists {
		t.Errorf("second outcome = %v, want already_exists", second.Outcome)
	}

	doc, err := s.Read(ctx, "a/doc.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := doc.Value.(map[string]any)["v"]; got != float64(1) {
		t.Errorf("v = %v, want 1", got)
	}
}

func TestWriteIfAbsentDefaultsToEmptyObject(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	if _, err := s.WriteIfAbsent(ctx, "empty.json", nil); err != nil {
		t.Fatalf("WriteIfAbsent: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(s.Root(), "empty.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{}" {
		t.Errorf("content = %q, want {}", data)
	}
}

func TestWriteIfAbsentNilRawIsEmptyFile(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	res, err := s.WriteIfAbsent(ctx, "notes/a.txt", nil)
	if err != nil {
		t.Fatalf("WriteIfAbsent: %v", err)
	}
	if res.Outcome != Written || res.Size != 0 {
		t.Errorf("result = %+v, want written with size 0", res)
	}
	data, err := os.ReadFile(filepath.Join(s.Root(), "notes", "a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Errorf("content = %q, want empty", data)
	}
}

func TestWriteIfAbsentOccupiedByDirectory(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	if err := os.MkdirAll(filepath.Join(s.Root(), "x", "doc.json"), 0o755); err != nil {
		t.Fatal(err)
	}
	res, err := s.WriteIfAbsent(ctx, "x/doc.json", map[string]any{"a": 1})
	if err != nil {
		t.Fatalf("WriteIfAbsent: %v", err)
	}
	if res.Outcome != Occupied {
		t.Errorf("outcome = %v, want occupied", res.Outcome)
	}
	info, err := os.Stat(filepath.Join(s.Root(), "x", "doc.json"))
	if err != nil || !info.IsDir() {
		t.Error("directory at document path must be left alone")
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.Write(ctx, "doc.json", map[string]any{"i": i}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	matches, _ := filepath.Glob(filepath.Join(s.Root(), ".folderdb-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestProvisionIdempotent(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	first, err := s.Provision(ctx, "a/b/c")
	if err != nil {
		t.Fatalf("first Provision: %v", err)
	}
	if want := []string{"a", "a/b", "a/b/c"}; !reflect.DeepEqual(first.Created, want) {
		t.Errorf("created = %v, want %v", first.Created, want)
	}

	second, err := s.Provision(ctx, "a/b/c")
	if err != nil {
		t.Fatalf("second Provision: %v", err)
	}
	if len(second.Created) != 0 {
		t.Errorf("second call created %v", second.Created)
	}
	info, err := os.Stat(filepath.Join(s.Root(), "a", "b", "c"))
	if err != nil || !info.IsDir() {
		t.Fatalf("a/b/c missing after provision: %v", err)
	}
}

func TestProvisionConcurrentOverlapping(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Provision(ctx, fmt.Sprintf("deep/common/ancestor/leaf%d", i%4))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("Provision: %v", err)
		}
	}

	subs, err := s.ListSubdirectories(ctx, "deep/common/ancestor")
	if err != nil {
		t.Fatalf("ListSubdirectories: %v", err)
	}
	sort.Strings(subs)
	if want := []string{"leaf0", "leaf1", "leaf2", "leaf3"}; !reflect.DeepEqual(subs, want) {
		t.Errorf("subdirectories = %v, want %v", subs, want)
	}
}

func TestProvisionFileInTheWay(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(s.Root(), "taken"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := s.Provision(ctx, "taken")
	if KindOf(err) != KindAlreadyExists {
		t.Errorf("kind = %v, want already_exists (err %v)", KindOf(err), err)
	}
	_, err = s.Provision(ctx, "taken/child")
	if KindOf(err) != KindNotADirectory {
		t.Errorf("kind = %v, want not_a_directory (err %v)", KindOf(err), err)
	}
}

func TestProvisionDepthLimit(t *testing.T) {
	s := tempStore(t, WithMaxDepth(3))
	_, err := s.Provision(context.Background(), "a/b/c/d/e")
	if !errors.Is(err, ErrPathTooDeep) {
		t.Errorf("err = %v, want ErrPathTooDeep", err)
	}
}

func TestProvisionCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "not", "yet")
	s, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Provision(context.Background(), ""); err != nil {
		t.Fatalf("Provision root: %v", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		t.Errorf("root not created: %v", err)
	}
}

func TestRemoveTreeAbsentIsSuccess(t *testing.T) {
	s := tempStore(t)
	res, err := s.RemoveTree(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("RemoveTree: %v", err)
	}
	if res.Outcome != RemoveAbsent {
		t.Errorf("outcome = %v, want absent", res.Outcome)
	}
}

func TestRemoveTreePopulated(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	for _, d := range []string{"t/x/y/z", "t/empty", "keep"} {
		if _, err := s.Provision(ctx, d); err != nil {
			t.Fatalf("Provision %s: %v", d, err)
		}
	}
	docs := map[string]any{
		"t/a.json":     map[string]any{"a": 1},
		"t/b.txt":      "text",
		"t/x/c.json":   map[string]any{"c": 1},
		"t/x/y/z/d.js": "code",
		"keep/e.json":  map[string]any{"e": 1},
	}
	for p, v := range docs {
		if _, err := s.Write(ctx, p, v); err != nil {
			t.Fatalf("Write %s: %v", p, err)
		}
	}

	res, err := s.RemoveTree(ctx, "t")
	if err != nil {
		t.Fatalf("RemoveTree: %v", err)
	}
	if res.Outcome != RemovedTree {
		t.Errorf("outcome = %v, want removed_tree", res.Outcome)
	}
	if res.Files != 4 {
		t.Errorf("files = %d, want 4", res.Files)
	}
	if ok, _ := s.Exists(ctx, "t"); ok {
		t.Error("t still exists")
	}
	if ok, _ := s.Exists(ctx, "keep/e.json"); !ok {
		t.Error("sibling tree was removed")
	}
}

func TestRemoveTreeSingleFile(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	if _, err := s.Write(ctx, "one.json", map[string]any{}); err != nil {
		t.Fatal(err)
	}
	res, err := s.RemoveTree(ctx, "one.json")
	if err != nil {
		t.Fatalf("RemoveTree: %v", err)
	}
	if res.Outcome != RemovedFile {
		t.Errorf("outcome = %v, want removed_file", res.Outcome)
	}
}

func TestRemoveTreeDoesNotFollowSymlinks(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	outside := t.TempDir()
	precious := filepath.Join(outside, "precious.json")
	if err := os.WriteFile(precious, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Provision(ctx, "tree"); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outside, filepath.Join(s.Root(), "tree", "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	if _, err := s.RemoveTree(ctx, "tree"); err != nil {
		t.Fatalf("RemoveTree: %v", err)
	}
	if _, err := os.Stat(precious); err != nil {
		t.Errorf("file behind symlink was removed: %v", err)
	}
}

func TestRemoveTreeRefusesRoot(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	if _, err := s.WriteIfAbsent(ctx, "a/doc.json", nil); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"", ".", "./", "/", "a/..", "./a/../.", "//"} {
		if _, err := s.RemoveTree(ctx, p); !errors.Is(err, ErrRootTarget) {
			t.Errorf("RemoveTree(%q) err = %v, want ErrRootTarget", p, err)
		}
	}
	if ok, _ := s.Exists(ctx, "a/doc.json"); !ok {
		t.Error("document under root was removed")
	}
}

func TestRemoveTreeEntryVanishesMidCall(t *testing.T) {
	s := tempStore(t, WithConcurrency(1))
	ctx := context.Background()

	for _, p := range []string{"a/x.json", "a/y.json", "a/sub/z.json"} {
		if _, err := s.WriteIfAbsent(ctx, p, nil); err != nil {
			t.Fatal(err)
		}
	}

	// The first delete event removes everything else out from under the
	// walk: a sibling file, a file in a subdirectory and the subdirectory.
	var once sync.Once
	s.Events().Subscribe(func(_ context.Context, ev Event) {
		once.Do(func() {
			root := s.Root()
			for _, p := range []string{"a/x.json", "a/y.json", "a/sub/z.json"} {
				if p != ev.Path {
					_ = os.Remove(filepath.Join(root, filepath.FromSlash(p)))
				}
			}
			_ = os.Remove(filepath.Join(root, "a", "sub"))
		})
	}, OpDelete)

	res, err := s.RemoveTree(ctx, "a")
	if err != nil {
		t.Fatalf("RemoveTree: %v", err)
	}
	if res.Outcome != RemovedTree {
		t.Errorf("outcome = %v, want removed_tree", res.Outcome)
	}
	if res.Files != 1 || res.Dirs != 1 {
		t.Errorf("counts = %d files %d dirs, want 1 and 1", res.Files, res.Dirs)
	}
	if ok, _ := s.Exists(ctx, "a"); ok {
		t.Error("a still exists")
	}
}

func TestRemoveTreeConcurrentSameTree(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		p := fmt.Sprintf("t/d%d/sub/doc%d.json", i%4, i)
		if _, err := s.WriteIfAbsent(ctx, p, nil); err != nil {
			t.Fatal(err)
		}
	}

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.RemoveTree(ctx, "t"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("RemoveTree: %v", err)
	}
	if ok, _ := s.Exists(ctx, "t"); ok {
		t.Error("t still exists")
	}
}

func TestDelete(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	if err := s.Delete(ctx, "nope.json"); KindOf(err) != KindNotFound {
		t.Errorf("missing delete kind = %v", KindOf(err))
	}
	if _, err := s.Provision(ctx, "d"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "d"); KindOf(err) != KindIsADirectory {
		t.Errorf("directory delete kind = %v, want is_a_directory", KindOf(err))
	}
	if ok, _ := s.Exists(ctx, "d"); !ok {
		t.Error("Delete removed a directory")
	}
}

func TestRemoveDirectory(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	if _, err := s.WriteIfAbsent(ctx, "full/doc.json", nil); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveDirectory(ctx, "full"); KindOf(err) != KindNotEmpty {
		t.Errorf("non-empty kind = %v, want not_empty (err %v)", KindOf(err), err)
	}
	if err := s.RemoveDirectory(ctx, "full/doc.json"); KindOf(err) != KindNotADirectory {
		t.Errorf("file kind = %v, want not_a_directory", KindOf(err))
	}
	if err := s.RemoveDirectory(ctx, "absent"); KindOf(err) != KindNotFound {
		t.Errorf("absent kind = %v, want not_found", KindOf(err))
	}
	if _, err := s.Provision(ctx, "empty"); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveDirectory(ctx, "empty"); err != nil {
		t.Errorf("RemoveDirectory(empty): %v", err)
	}
}

func TestRename(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	var events int
	s.Events().Subscribe(func(context.Context, Event) { events++ })

	if _, err := s.Write(ctx, "old.json", map[string]any{"k": "v"}); err != nil {
		t.Fatal(err)
	}
	events = 0
	if err := s.Rename(ctx, "old.json", "new.json"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if events != 0 {
		t.Errorf("rename emitted %d events, want 0", events)
	}
	if ok, _ := s.Exists(ctx, "old.json"); ok {
		t.Error("old path still exists")
	}
	if _, err := s.Read(ctx, "new.json"); err != nil {
		t.Errorf("Read new path: %v", err)
	}
}

func TestListFilters(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	files := map[string]string{
		"a.json":   "{}",
		"b.js":     "x",
		"c.yml":    "a: 1",
		"d.txt":    "x",
		".hidden":  "x",
		".h.json":  "{}",
		"README":   "x",
		"x.tar.gz": "x",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(s.Root(), name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(s.Root(), "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	docs, err := s.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	sort.Strings(docs)
	if want := []string{"a.json", "b.js", "c.yml"}; !reflect.DeepEqual(docs, want) {
		t.Errorf("documents = %v, want %v", docs, want)
	}

	subs, err := s.ListSubdirectories(ctx, "")
	if err != nil {
		t.Fatalf("ListSubdirectories: %v", err)
	}
	sort.Strings(subs)
	if want := []string{"README", "sub"}; !reflect.DeepEqual(subs, want) {
		t.Errorf("subdirectories = %v, want %v", subs, want)
	}
}

func TestListErrors(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	if _, err := s.List(ctx, "missing"); KindOf(err) != KindNotFound {
		t.Errorf("missing kind = %v", KindOf(err))
	}
	if _, err := s.Write(ctx, "file.json", map[string]any{}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ListSubdirectories(ctx, "file.json"); KindOf(err) != KindNotADirectory {
		t.Errorf("file kind = %v, want not_a_directory", KindOf(err))
	}
}

func TestStat(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	if _, err := s.WriteIfAbsent(ctx, "d/f.json", nil); err != nil {
		t.Fatal(err)
	}
	fi, err := s.Stat(ctx, "d/f.json")
	if err != nil || !fi.IsFile || fi.IsDir {
		t.Errorf("file stat = %+v, %v", fi, err)
	}
	di, err := s.Stat(ctx, "d")
	if err != nil || di.IsFile || !di.IsDir {
		t.Errorf("dir stat = %+v, %v", di, err)
	}
	if _, err := s.Stat(ctx, "none"); !IsNotFound(err) {
		t.Errorf("absent stat err = %v", err)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	for _, p := range []string{"../../etc/passwd", "../outside.json", "a/../../x.json", "/../x.json"} {
		if _, err := s.Read(ctx, p); !errors.Is(err, ErrOutsideRoot) {
			t.Errorf("Read(%q) err = %v, want ErrOutsideRoot", p, err)
		}
		if _, err := s.Write(ctx, p, "x"); !errors.Is(err, ErrOutsideRoot) {
			t.Errorf("Write(%q) err = %v, want ErrOutsideRoot", p, err)
		}
		if _, err := s.RemoveTree(ctx, p); !errors.Is(err, ErrOutsideRoot) {
			t.Errorf("RemoveTree(%q) err = %v, want ErrOutsideRoot", p, err)
		}
	}
}

func TestLeadingSlashIsRootRelative(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	if _, err := s.WriteIfAbsent(ctx, "/a/doc.json", map[string]any{"x": 1}); err != nil {
		t.Fatalf("WriteIfAbsent: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "a", "doc.json")); err != nil {
		t.Errorf("document not under root: %v", err)
	}
}

// Store rooted at a directory: create a nested document, list it, then
// remove the whole tree.
func TestScenario(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	if _, err := s.WriteIfAbsent(ctx, "a/b/doc.json", map[string]any{"x": float64(1)}); err != nil {
		t.Fatalf("WriteIfAbsent: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(s.Root(), "a", "b", "doc.json"))
	if err != nil {
		t.Fatalf("document not on disk: %v", err)
	}
	if string(data) != "{\n  \"x\": 1\n}" {
		t.Errorf("content = %q", data)
	}

	names, err := s.List(ctx, "a/b")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"doc.json"}) {
		t.Errorf("List = %v", names)
	}

	if _, err := s.RemoveTree(ctx, "a"); err != nil {
		t.Fatalf("RemoveTree: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "a")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("a still present: %v", err)
	}
}
