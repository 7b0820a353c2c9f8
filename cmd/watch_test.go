package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cpw/indexer/internal/identity"
	"github.com/cpw/indexer/internal/rebuild"
	"github.com/cpw/indexer/internal/registry"
	"github.com/cpw/indexer/internal/testutil"
)

// syncBuffer is a bytes.Buffer safe for a writer and a polling reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRoot_WatchRebuildsOnRegistryWrite(t *testing.T) {
	dir := isolate(t)
	src := filepath.Join(dir, "a.bin")
	require.NoError(t, os.WriteFile(src, []byte("a"), 0o644))

	reg := testutil.NewRegistry(t)
	testutil.NewBuilder(t, reg).WithComponent("c1", testutil.WithSource(src)).Build()

	cfgPath := filepath.Join(dir, "indexer.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("watch:\n  debounce: 50ms\n"), 0o600))
	root := filepath.Join(dir, "Artifacts")

	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--config", cfgPath, "--watch",
		"--registry-db", reg.Path, "--artifacts-root", root})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	first := filepath.Join(root, "CID", "c1", "c1", "a.bin")
	require.Eventually(t, func() bool {
		_, err := os.Lstat(first)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond, "initial rebuild")

	testutil.NewBuilder(t, reg).WithComponent("c2", testutil.WithSource(src)).Build()

	second := filepath.Join(root, "CID", "c2", "c2", "a.bin")
	touches := 0
	require.Eventually(t, func() bool {
		if _, err := os.Lstat(second); err == nil {
			return true
		}
		// The watcher may have started after the first write; keep writing
		// rows it skips until a rebuild picks c2 up.
		touches++
		_, _ = reg.DB.Exec(`INSERT INTO scan_events (artifact_type, artifact_id) VALUES ('XYZ', ?)`,
			fmt.Sprintf("touch-%d", touches))
		return false
	}, 5*time.Second, 100*time.Millisecond, "rebuild after registry write")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}

func TestWatchRegistry_RetriesAfterUnavailable(t *testing.T) {
	dir := t.TempDir()
	regPath := filepath.Join(dir, "registry.sqlite")
	require.NoError(t, os.WriteFile(regPath, []byte("v0"), 0o644))

	var calls atomic.Int32
	r := rebuild.New(
		rebuild.WithLoader(func(context.Context, string) ([]identity.Record, error) {
			if calls.Add(1) == 1 {
				return nil, fmt.Errorf("%w: database is locked", registry.ErrRegistryUnavailable)
			}
			return nil, nil
		}),
	)
	opts := rebuild.Options{ArtifactsRoot: filepath.Join(dir, "Artifacts"), RegistryPath: regPath}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- watchRegistry(ctx, r, opts, 30*time.Millisecond, out) }()

	rev := 0
	require.Eventually(t, func() bool {
		if calls.Load() >= 2 {
			return true
		}
		rev++
		_ = os.WriteFile(regPath, []byte(fmt.Sprintf("v%d", rev)), 0o644)
		return false
	}, 5*time.Second, 100*time.Millisecond, "watch must keep going after an unavailable registry")

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Rebuild complete")
	}, 5*time.Second, 20*time.Millisecond)

	select {
	case err := <-done:
		t.Fatalf("watch exited early: %v", err)
	default:
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}

func TestWatchRegistry_MissingDirectoryFails(t *testing.T) {
	r := rebuild.New(rebuild.WithLoader(func(context.Context, string) ([]identity.Record, error) {
		return nil, nil
	}))
	opts := rebuild.Options{RegistryPath: filepath.Join(t.TempDir(), "missing", "registry.sqlite")}

	err := watchRegistry(context.Background(), r, opts, 10*time.Millisecond, io.Discard)
	require.Error(t, err)
}
