package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestListenerEmitsSourceChangedOnWrite(t *testing.T) {
	dir := t.TempDir()
	real, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	out := make(chan SourceChanged, 1)
	l, err := New(map[string]string{real: "app"}, out)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main"), 0o644))

	select {
	case ev := <-out:
		require.Equal(t, "app", ev.ImageName)
	case <-time.After(debounceWindow + 3*time.Second):
		t.Fatal("timed out waiting for SourceChanged")
	}

	require.NoError(t, l.Shutdown())
}

func TestListenerDebouncesRapidWrites(t *testing.T) {
	dir := t.TempDir()
	real, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	out := make(chan SourceChanged, 4)
	l, err := New(map[string]string{real: "app"}, out)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	path := filepath.Join(dir, "main.go")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("package main"), 0o644))
		time.Sleep(100 * time.Millisecond)
	}

	select {
	case <-out:
	case <-time.After(debounceWindow + 3*time.Second):
		t.Fatal("timed out waiting for SourceChanged")
	}

	select {
	case ev := <-out:
		t.Fatalf("expected exactly one SourceChanged, got a second: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, l.Shutdown())
}

func TestListenerIgnoresUnrelatedDirectories(t *testing.T) {
	watched := t.TempDir()
	unrelated := t.TempDir()
	real, err := filepath.EvalSymlinks(watched)
	require.NoError(t, err)

	out := make(chan SourceChanged, 1)
	l, err := New(map[string]string{real: "app"}, out)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(unrelated, "other.go"), []byte("x"), 0o644))

	select {
	case ev := <-out:
		t.Fatalf("expected no SourceChanged for unrelated dir, got %+v", ev)
	case <-time.After(debounceWindow + time.Second):
	}

	require.NoError(t, l.Shutdown())
}
