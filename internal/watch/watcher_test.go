// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	calls [][]string
	fired chan struct{}
}

func newRecorder() *recorder {
	return &recorder{fired: make(chan struct{}, 16)}
}

func (r *recorder) onChange(_ context.Context, changed []string) error {
	r.mu.Lock()
	r.calls = append(r.calls, changed)
	r.mu.Unlock()
	r.fired <- struct{}{}
	return nil
}

func (r *recorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.fired:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change callback")
	}
}

func startWatcher(t *testing.T, cfg Config) {
	t.Helper()
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-errCh; err != nil {
			t.Errorf("Run() error = %v", err)
		}
	})
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcherDebounce(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	rec := newRecorder()
	startWatcher(t, Config{Root: root, Debounce: 150 * time.Millisecond, OnChange: rec.onChange})

	for _, name := range []string{"c.zip", "a.zip", "b.zip"} {
		writeFile(t, filepath.Join(root, name), "data")
		time.Sleep(10 * time.Millisecond)
	}
	rec.wait(t)
	time.Sleep(300 * time.Millisecond)

	calls := rec.snapshot()
	if len(calls) != 1 {
		t.Fatalf("OnChange called %d times, want 1: %v", len(calls), calls)
	}
	if want := []string{"a.zip", "b.zip", "c.zip"}; !slices.Equal(calls[0], want) {
		t.Errorf("changed = %v, want %v", calls[0], want)
	}
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	rec := newRecorder()
	startWatcher(t, Config{
		Root:     root,
		Patterns: []string{"**/*.zip"},
		Debounce: 100 * time.Millisecond,
		OnChange: rec.onChange,
	})

	dir := filepath.Join(root, "io", "isoload", "lint", "1.0.0")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher a moment to register the new directories.
	time.Sleep(150 * time.Millisecond)
	writeFile(t, filepath.Join(dir, "lint-1.0.0.zip"), "zip")
	rec.wait(t)

	var all []string
	for _, c := range rec.snapshot() {
		all = append(all, c...)
	}
	if !slices.Contains(all, "io/isoload/lint/1.0.0/lint-1.0.0.zip") {
		t.Errorf("changed = %v, want the new archive", all)
	}
}

func TestWatcherPatternsAndIgnores(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	rec := newRecorder()
	startWatcher(t, Config{
		Root:     root,
		Patterns: []string{"**/*.zip", "**/*.deps.toml"},
		Ignore:   []string{"scratch/**"},
		Debounce: 100 * time.Millisecond,
		OnChange: rec.onChange,
	})

	writeFile(t, filepath.Join(root, "notes.txt"), "x")
	writeFile(t, filepath.Join(root, ".partial.zip"), "x")
	writeFile(t, filepath.Join(root, "a.zip.tmp"), "x")
	writeFile(t, filepath.Join(root, "lint-1.deps.toml"), "x")
	rec.wait(t)

	calls := rec.snapshot()
	if len(calls) != 1 || !slices.Equal(calls[0], []string{"lint-1.deps.toml"}) {
		t.Errorf("OnChange calls = %v, want only lint-1.deps.toml", calls)
	}
}

func TestWatcherRelevant(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	w, err := New(Config{Root: root, Patterns: []string{"**/*.zip"}, Ignore: []string{"cache/**"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = w.fsw.Close() })

	tests := []struct {
		path    string
		wantRel string
		wantOK  bool
	}{
		{filepath.Join(root, "a", "b.zip"), "a/b.zip", true},
		{filepath.Join(root, "b.zip"), "b.zip", true},
		{filepath.Join(root, "a", "b.txt"), "a/b.txt", false},
		{filepath.Join(root, "cache", "b.zip"), "", false},
		{filepath.Join(root, "a", ".b.zip"), "", false},
		{filepath.Join(root, "a", "b.zip~"), "", false},
	}
	for _, tt := range tests {
		rel, ok := w.relevant(tt.path)
		if ok != tt.wantOK {
			t.Errorf("relevant(%q) ok = %v, want %v", tt.path, ok, tt.wantOK)
		}
		if ok && rel != tt.wantRel {
			t.Errorf("relevant(%q) = %q, want %q", tt.path, rel, tt.wantRel)
		}
	}
}

func TestWatcherSerializesCallbacks(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	var (
		mu      sync.Mutex
		active  int
		peak    int
		calls   int
		release = make(chan struct{})
		started = make(chan struct{}, 4)
	)
	startWatcher(t, Config{
		Root:     root,
		Debounce: 50 * time.Millisecond,
		OnChange: func(context.Context, []string) error {
			mu.Lock()
			active++
			calls++
			peak = max(peak, active)
			first := calls == 1
			mu.Unlock()
			started <- struct{}{}
			if first {
				<-release
			}
			mu.Lock()
			active--
			mu.Unlock()
			return nil
		},
	})

	writeFile(t, filepath.Join(root, "first.zip"), "1")
	<-started
	writeFile(t, filepath.Join(root, "second.zip"), "2")
	time.Sleep(200 * time.Millisecond)
	close(release)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("deferred change was never delivered")
	}
	mu.Lock()
	defer mu.Unlock()
	if peak != 1 {
		t.Errorf("peak concurrent callbacks = %d, want 1", peak)
	}
}

func TestWatcherCallbackErrorKeepsRunning(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	fired := make(chan struct{}, 4)
	startWatcher(t, Config{
		Root:     root,
		Debounce: 50 * time.Millisecond,
		OnChange: func(context.Context, []string) error {
			fired <- struct{}{}
			return errors.New("boom")
		},
	})

	for _, name := range []string{"a.zip", "b.zip"} {
		writeFile(t, filepath.Join(root, name), "x")
		select {
		case <-fired:
		case <-time.After(5 * time.Second):
			t.Fatalf("no callback for %s", name)
		}
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	_, err := New(Config{Root: root, Patterns: []string{"[unclosed"}})
	if !errors.Is(err, ErrInvalidPattern) {
		t.Errorf("New(bad pattern) error = %v, want ErrInvalidPattern", err)
	}
	_, err = New(Config{Root: root, Ignore: []string{"{a,b"}})
	if !errors.Is(err, ErrInvalidPattern) {
		t.Errorf("New(bad ignore) error = %v, want ErrInvalidPattern", err)
	}
	if _, err := New(Config{Root: filepath.Join(root, "missing")}); err == nil {
		t.Error("New(missing root) should fail")
	}
	file := filepath.Join(root, "file")
	writeFile(t, file, "x")
	if _, err := New(Config{Root: file}); err == nil {
		t.Error("New(file root) should fail")
	}
}

func TestWatcherRunTwice(t *testing.T) {
	t.Parallel()
	w, err := New(Config{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)

	if err := w.Run(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() error = %v, want ErrAlreadyRunning", err)
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestWatcherCloseWithoutRun(t *testing.T) {
	t.Parallel()
	w, err := New(Config{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := w.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Run() after Close error = %v, want ErrAlreadyRunning", err)
	}
}
