package netfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherSignalsOnTomlChange(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWatcher(dir, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "br1.toml"), []byte("kind = 'branch'\nx = 0.0\ny = 0.0\n"), 0o644))

	select {
	case <-w.Reloads():
	case <-time.After(3 * time.Second):
		t.Fatal("no reload signal after toml write")
	}
}

func TestWatcherCoalescesBursts(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWatcher(dir, WithDebounce(50*time.Millisecond))
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	for i := 0; i < 5; i++ {
		name := filepath.Join(dir, "burst.toml")
		require.NoError(t, os.WriteFile(name, []byte("kind = 'group'\nx = 0.0\ny = 0.0\n"), 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-w.Reloads():
	case <-time.After(3 * time.Second):
		t.Fatal("no reload signal after burst")
	}

	// the burst has settled; no second signal should arrive
	select {
	case <-w.Reloads():
		t.Fatal("burst produced a second reload signal")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWatcher(dir, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	select {
	case <-w.Reloads():
		t.Fatal("non-toml write produced a reload signal")
	case <-time.After(200 * time.Millisecond):
	}
}
