package configwatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchSignalsOnFileWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o644))

	w, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	changes, errCh := w.Watch(ctx)

	require.NoError(t, os.WriteFile(path, []byte("a: 2\n"), 0o644))

	select {
	case _, ok := <-changes:
		assert.True(t, ok)
	case err := <-errCh:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(4 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}
}

func TestWatchIgnoresOtherFilesInSameDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sim.yaml")
	other := filepath.Join(dir, "other.txt")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o644))

	w, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	changes, _ := w.Watch(ctx)

	require.NoError(t, os.WriteFile(other, []byte("unrelated\n"), 0o644))

	select {
	case <-changes:
		t.Fatal("watcher fired for an unrelated file")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestDoubleWatchClosesImmediately(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o644))

	w, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _ = w.Watch(ctx)

	changes2, errCh2 := w.Watch(ctx)
	_, ok := <-changes2
	assert.False(t, ok)
	_, ok = <-errCh2
	assert.False(t, ok)
}

func TestStopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o644))

	w, err := New(path)
	require.NoError(t, err)
	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}
