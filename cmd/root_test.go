package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cpw/indexer/internal/config"
	"github.com/cpw/indexer/internal/registry"
	"github.com/cpw/indexer/internal/testutil"
)

// isolate runs the test from an empty directory with an empty home so no
// user config is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRoot_RebuildsFromDefaultLayout(t *testing.T) {
	repo := isolate(t)
	src := filepath.Join(repo, "c1.bin")
	require.NoError(t, os.WriteFile(src, []byte("c1"), 0o644))

	reg := testutil.NewRegistryAt(t, filepath.Join(repo, "modules", "registry", "registry.sqlite"))
	testutil.NewBuilder(t, reg).WithComponent("c1", testutil.WithSource(src)).Build()

	out, err := execute(t)
	require.NoError(t, err)
	require.Contains(t, out, "Rebuild complete")

	target, err := os.Readlink(filepath.Join(repo, "Artifacts", "CID", "c1", "c1", "c1.bin"))
	require.NoError(t, err)
	require.Equal(t, src, target)
}

func TestRoot_ExplicitPathsAndCopy(t *testing.T) {
	dir := isolate(t)
	src := filepath.Join(dir, "p.py")
	require.NoError(t, os.WriteFile(src, []byte("print()"), 0o644))

	reg := testutil.NewRegistry(t)
	testutil.NewBuilder(t, reg).WithPrimary("p1", testutil.WithSource(src)).Build()
	root := filepath.Join(dir, "views")

	out, err := execute(t, "--registry-db", reg.Path, "--artifacts-root", root, "--copy", "--workers", "2")
	require.NoError(t, err)
	require.Contains(t, out, "copied")

	dest := filepath.Join(root, "PY", "unknown", "SID-count_000", "p1", "p.py")
	info, err := os.Lstat(dest)
	require.NoError(t, err)
	require.True(t, info.Mode().IsRegular(), "--copy must not create links")
}

func TestRoot_DryRunPrintsPlan(t *testing.T) {
	dir := isolate(t)
	reg := testutil.NewRegistry(t)
	testutil.NewBuilder(t, reg).WithComponent("c1", testutil.WithSource("/x/c1.bin")).Build()
	root := filepath.Join(dir, "Artifacts")

	out, err := execute(t, "--registry-db", reg.Path, "--artifacts-root", root, "--dry-run")
	require.NoError(t, err)
	require.Contains(t, out, "Dry run")
	require.Contains(t, out, filepath.Join(root, "CID", "c1"))

	_, err = os.Stat(root)
	require.True(t, os.IsNotExist(err))
}

func TestRoot_MissingRegistryFails(t *testing.T) {
	dir := isolate(t)

	_, err := execute(t, "--registry-db", filepath.Join(dir, "missing.sqlite"))
	require.ErrorIs(t, err, registry.ErrRegistryUnavailable)
}

func TestRoot_InvalidConfigFails(t *testing.T) {
	isolate(t)

	_, err := execute(t, "--workers", "0")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid configuration")
}

func TestRoot_EnvironmentOverridesPaths(t *testing.T) {
	dir := isolate(t)
	reg := testutil.NewRegistry(t)
	testutil.NewBuilder(t, reg).WithComponent("c1").Build()

	t.Setenv("CPW_REGISTRY_DB", reg.Path)
	t.Setenv("CPW_ARTIFACTS_ROOT", filepath.Join(dir, "env-views"))

	out, err := execute(t)
	require.NoError(t, err)
	require.Contains(t, out, filepath.Join(dir, "env-views"))
}

func TestRoot_RejectsArguments(t *testing.T) {
	isolate(t)

	_, err := execute(t, "extra")
	require.Error(t, err)
}

func TestConfigInit(t *testing.T) {
	dir := isolate(t)

	out, err := execute(t, "config", "init")
	require.NoError(t, err)
	require.Contains(t, out, config.DefaultConfigPath)
	_, err = os.Stat(filepath.Join(dir, config.DefaultConfigPath))
	require.NoError(t, err)

	_, err = execute(t, "config", "init")
	require.Error(t, err, "existing config must not be overwritten")

	custom := filepath.Join(dir, "custom.yaml")
	_, err = execute(t, "config", "init", custom)
	require.NoError(t, err)
	_, err = os.Stat(custom)
	require.NoError(t, err)
}
