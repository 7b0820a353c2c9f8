// Package testutil provides registry fixtures for tests.
package testutil

import (
	"database/sql"
	"embed"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/stretchr/testify/require"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Registry is a writable registry database created for a test.
type Registry struct {
	Path string
	DB   *sql.DB
}

// NewRegistry creates registry.sqlite under a temp dir and migrates it to
// the scan_events schema. The database is closed when the test completes.
func NewRegistry(t *testing.T) *Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "modules", "registry", "registry.sqlite")
	return NewRegistryAt(t, path)
}

// NewRegistryAt is NewRegistry with an explicit database path.
// Missing parent directories are created.
func NewRegistryAt(t *testing.T, path string) *Registry {
	t.Helper()
	require.NoError(t, mkdirParent(path))

	db, err := sql.Open("sqlite3", "file:"+path)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	src, err := iofs.New(migrations, "migrations")
	require.NoError(t, err)
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	require.NoError(t, err)
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	require.NoError(t, err)

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		require.NoError(t, err)
	}

	t.Cleanup(func() {
		// Closes the source and the database driver, and with it db.
		_, _ = m.Close()
	})
	return &Registry{Path: path, DB: db}
}

func mkdirParent(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0755)
}
