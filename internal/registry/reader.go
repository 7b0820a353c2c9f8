// Package registry reads current identity records from the registry store.
//
// The registry is a SQLite database owned by another subsystem. This package
// only ever opens it read-only.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/cpw/indexer/internal/cachemanager"
	"github.com/cpw/indexer/internal/identity"
	"github.com/cpw/indexer/internal/log"
)

// ErrRegistryUnavailable is returned when the registry store cannot be
// opened or read.
var ErrRegistryUnavailable = errors.New("registry unavailable")

// metadataCache memoizes decoded metadata blobs across loads. A blob always
// decodes the same way, so entries never expire.
var metadataCache = cachemanager.NewReadThroughCache[string, decodedMetadata](
	cachemanager.NewInMemoryCacheManager[string, decodedMetadata](
		"metadata", cachemanager.NoExpiration, cachemanager.DefaultCleanupInterval),
	decodeMetadata,
	cachemanager.NoExpiration,
)

type decodedMetadata struct {
	meta identity.Metadata
	err  error
}

func decodeMetadata(_ context.Context, blob string) decodedMetadata {
	meta, err := identity.DecodeMetadata(blob)
	return decodedMetadata{meta: meta, err: err}
}

// Reader provides read-only access to the registry.
type Reader struct {
	db   *sql.DB
	path string
}

// Open connects to the registry at path in read-only mode.
// Returns an error wrapping ErrRegistryUnavailable if the file is missing
// or cannot be opened.
func Open(path string) (*Reader, error) {
	log.Debug(log.CatRegistry, "Opening registry", "path", path)

	// mode=ro would otherwise surface a missing file only on first query.
	if _, err := os.Stat(path); err != nil {
		log.ErrorErr(log.CatRegistry, "Registry not found", err, "path", path)
		return nil, fmt.Errorf("%w: %s: %v", ErrRegistryUnavailable, path, err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		log.ErrorErr(log.CatRegistry, "Failed to open registry", err, "path", path)
		return nil, fmt.Errorf("%w: %s: %v", ErrRegistryUnavailable, path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		log.ErrorErr(log.CatRegistry, "Failed to ping registry", err, "path", path)
		return nil, fmt.Errorf("%w: %s: %v", ErrRegistryUnavailable, path, err)
	}

	log.Info(log.CatRegistry, "Connected to registry", "path", path)
	return &Reader{db: db, path: path}, nil
}

// Close closes the database connection.
func (r *Reader) Close() error {
	return r.db.Close()
}

// Path returns the registry file path.
func (r *Reader) Path() string {
	return r.path
}

// LoadCurrentIdentities returns one record per row that has not been
// superseded, in store row order. Malformed metadata degrades to empty
// metadata; it does not fail the load.
func (r *Reader) LoadCurrentIdentities(ctx context.Context) ([]identity.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+scanEventColumns+` FROM scan_events WHERE superseded_by_id IS NULL`,
	)
	if err != nil {
		log.ErrorErr(log.CatRegistry, "Identity query failed", err, "path", r.path)
		return nil, fmt.Errorf("%w: querying scan_events: %v", ErrRegistryUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	var records []identity.Record
	for rows.Next() {
		model, err := scanEvent(rows)
		if err != nil {
			log.ErrorErr(log.CatRegistry, "Row scan failed", err, "path", r.path)
			return nil, fmt.Errorf("%w: scanning scan_events row: %v", ErrRegistryUnavailable, err)
		}

		decoded := metadataCache.Get(ctx, model.MetadataJSON.String)
		if decoded.err != nil {
			log.Debug(log.CatRegistry, "Malformed metadata, using empty",
				"artifact_id", model.ArtifactID.String, "error", decoded.err)
		}
		records = append(records, model.toDomain(decoded.meta))
	}
	if err := rows.Err(); err != nil {
		log.ErrorErr(log.CatRegistry, "Row iteration failed", err, "path", r.path)
		return nil, fmt.Errorf("%w: iterating scan_events: %v", ErrRegistryUnavailable, err)
	}

	log.Debug(log.CatRegistry, "Loaded current identities", "count", len(records))
	return records, nil
}

// LoadCurrentIdentities opens the registry at path, loads every current
// record and closes the connection.
func LoadCurrentIdentities(ctx context.Context, path string) ([]identity.Record, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	return r.LoadCurrentIdentities(ctx)
}
