package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestWatcher_FiresOnTargetWrite(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(target, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var changed []string
	w := NewWatcher(func(path string) {
		mu.Lock()
		changed = append(changed, path)
		mu.Unlock()
	}, zap.NewNop())
	w.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := w.SetTarget(target); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(target, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for {
		mu.Lock()
		n := len(changed)
		mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for change callback")
		case <-time.After(20 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if filepath.Clean(changed[0]) != filepath.Clean(target) {
		t.Errorf("callback path %q, want %q", changed[0], target)
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "doc.txt")
	other := filepath.Join(dir, "other.txt")
	if err := os.WriteFile(target, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	count := 0
	w := NewWatcher(func(string) {
		mu.Lock()
		count++
		mu.Unlock()
	}, zap.NewNop())
	w.debounce = 30 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := w.SetTarget(target); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(other, []byte("noise"), 0o644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Errorf("callback fired %d times for an unrelated file", count)
	}
}

func TestWatcher_SetTargetSwitchesDirectories(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	a := filepath.Join(dirA, "a.txt")
	b := filepath.Join(dirB, "b.txt")
	for _, p := range []string{a, b} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	w := NewWatcher(nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := w.SetTarget(a); err != nil {
		t.Fatal(err)
	}
	if got := w.Target(); filepath.Clean(got) != filepath.Clean(a) {
		t.Errorf("Target() = %q, want %q", got, a)
	}

	if err := w.SetTarget(b); err != nil {
		t.Fatal(err)
	}
	if got := w.Target(); filepath.Clean(got) != filepath.Clean(b) {
		t.Errorf("Target() = %q, want %q", got, b)
	}
}

func TestWatcher_StopIdempotent(t *testing.T) {
	w := NewWatcher(nil, zap.NewNop())
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}
