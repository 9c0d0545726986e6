package watch

import (
	"sort"
	"sync"
	"testing"
	"time"
)

func newTestWatcher(t *testing.T, debounce time.Duration, onChange func([]string)) *Watcher {
	t.Helper()
	w, err := NewWatcher(debounce, 100, []string{".git", "node_modules"}, []string{"*.log"}, onChange)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestNewWatcherRequiresCallback(t *testing.T) {
	if _, err := NewWatcher(time.Millisecond, 1, nil, nil, nil); err == nil {
		t.Fatal("expected error for nil onChange")
	}
}

func TestNewWatcherRejectsInvalidExcludeGlob(t *testing.T) {
	if _, err := NewWatcher(time.Millisecond, 1, []string{"[bad"}, nil, func([]string) {}); err == nil {
		t.Fatal("expected error for invalid dir exclude")
	}
	if _, err := NewWatcher(time.Millisecond, 1, nil, []string{"[bad"}, func([]string) {}); err == nil {
		t.Fatal("expected error for invalid file exclude")
	}
}

func TestShouldExcludeDir(t *testing.T) {
	w := newTestWatcher(t, time.Millisecond, func([]string) {})

	if !w.shouldExcludeDir("/repo/.git") {
		t.Error(".git should be excluded")
	}
	if !w.shouldExcludeDir("/repo/a/node_modules") {
		t.Error("node_modules should be excluded")
	}
	if w.shouldExcludeDir("/repo/internal") {
		t.Error("internal should not be excluded")
	}
}

func TestShouldExcludeFile(t *testing.T) {
	w := newTestWatcher(t, time.Millisecond, func([]string) {})

	if !w.shouldExcludeFile("/repo/debug.log") {
		t.Error("log files should be excluded")
	}
	if w.shouldExcludeFile("/repo/main.go") {
		t.Error("go files should not be excluded")
	}
}

func TestFileFiltersRestrictToLanguageFiles(t *testing.T) {
	w := newTestWatcher(t, time.Millisecond, func([]string) {})
	w.SetFileFilters([]string{".go", ".py"}, []string{"BUILD"})

	cases := []struct {
		path    string
		exclude bool
	}{
		{"/repo/main.go", false},
		{"/repo/tool.py", false},
		{"/repo/third_party/BUILD", false},
		{"/repo/README.md", true},
		{"/repo/app.ts", true},
		{"/repo/debug.log", true},
	}
	for _, c := range cases {
		if got := w.shouldExcludeFile(c.path); got != c.exclude {
			t.Errorf("shouldExcludeFile(%q) = %v, want %v", c.path, got, c.exclude)
		}
	}
}

func TestDebounceBatchesChanges(t *testing.T) {
	var (
		mu      sync.Mutex
		batches [][]string
	)
	w := newTestWatcher(t, 20*time.Millisecond, func(paths []string) {
		mu.Lock()
		defer mu.Unlock()
		sorted := append([]string(nil), paths...)
		sort.Strings(sorted)
		batches = append(batches, sorted)
	})

	w.scheduleChange("/repo/a.go")
	w.scheduleChange("/repo/b.go")
	w.scheduleChange("/repo/a.go")

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		done := len(batches) > 0
		mu.Unlock()
		if done {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("debounced batch never flushed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(batches) != 1 {
		t.Fatalf("expected one batch, got %d", len(batches))
	}
	if len(batches[0]) != 2 || batches[0][0] != "/repo/a.go" || batches[0][1] != "/repo/b.go" {
		t.Fatalf("unexpected batch contents: %v", batches[0])
	}
}

func TestFlushSkipsEmptyPending(t *testing.T) {
	calls := 0
	w := newTestWatcher(t, time.Millisecond, func([]string) { calls++ })

	w.flushChanges()
	if calls != 0 {
		t.Fatal("flush with no pending changes must not fire callback")
	}
}
