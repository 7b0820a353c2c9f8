package watcher_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cpw/indexer/internal/watcher"
)

const registryName = "registry.sqlite"

// startWatcher creates a registry file in a temp dir and watches it.
func startWatcher(t *testing.T) (string, <-chan struct{}) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, registryName)
	require.NoError(t, os.WriteFile(path, []byte("db"), 0644))

	w, err := watcher.New(watcher.Config{RegistryPath: path, DebounceDur: 50 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	onChange, err := w.Start()
	require.NoError(t, err)
	return path, onChange
}

func expectSignal(t *testing.T, ch <-chan struct{}, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(500 * time.Millisecond):
		t.Fatal(msg)
	}
}

func expectQuiet(t *testing.T, ch <-chan struct{}, msg string) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal(msg)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_CoalescesBurstOfWrites(t *testing.T) {
	path, onChange := startWatcher(t)

	for i := 0; i < 10; i++ {
		require.NoError(t, os.WriteFile(path, []byte("rev"+strconv.Itoa(i)), 0644))
		time.Sleep(10 * time.Millisecond)
	}

	expectSignal(t, onChange, "expected a notification after writes")
	expectQuiet(t, onChange, "burst should produce a single notification")
}

func TestWatcher_WALWriteTriggers(t *testing.T) {
	path, onChange := startWatcher(t)

	require.NoError(t, os.WriteFile(path+"-wal", []byte("wal"), 0644))
	expectSignal(t, onChange, "expected notification for WAL write")
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	path, onChange := startWatcher(t)

	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(path+"-journal", []byte("x"), 0644))
	expectQuiet(t, onChange, "unrelated files should not notify")
}

func TestWatcher_StopDoesNotHang(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, registryName)
	require.NoError(t, os.WriteFile(path, []byte("db"), 0644))

	w, err := watcher.New(watcher.DefaultConfig(path))
	require.NoError(t, err)
	_, err = w.Start()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- w.Stop() }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Stop() timed out")
	}
}

func TestWatcher_StartFailsForMissingDirectory(t *testing.T) {
	w, err := watcher.New(watcher.DefaultConfig(filepath.Join(t.TempDir(), "missing", registryName)))
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	_, err = w.Start()
	require.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := watcher.DefaultConfig("/srv/modules/registry/registry.sqlite")

	require.Equal(t, "/srv/modules/registry/registry.sqlite", cfg.RegistryPath)
	require.Equal(t, time.Second, cfg.DebounceDur)
}
