package testutil

import (
	"encoding/json"
)

// rowData holds one scan_events row to be inserted.
type rowData struct {
	artifactType string
	artifactID   string
	pynID        *string
	sidCount     any
	cidCount     any
	capability   *string
	useEnvLast   *string
	metadataJSON *string
	superseded   bool
}

// RowOption configures a row during builder setup.
type RowOption func(*rowData)

// WithParent sets pyn_id.
func WithParent(id string) RowOption {
	return func(r *rowData) { r.pynID = &id }
}

// WithSIDCount sets sid_count. Any SQLite-storable value is accepted so
// tests can store NULL, text or negative counts.
func WithSIDCount(n any) RowOption {
	return func(r *rowData) { r.sidCount = n }
}

// WithCIDCount sets cid_count.
func WithCIDCount(n any) RowOption {
	return func(r *rowData) { r.cidCount = n }
}

// WithCapability sets capability.
func WithCapability(c string) RowOption {
	return func(r *rowData) { r.capability = &c }
}

// WithEnv sets use_env_last.
func WithEnv(env string) RowOption {
	return func(r *rowData) { r.useEnvLast = &env }
}

// WithRawMetadata stores blob verbatim in metadata_json.
func WithRawMetadata(blob string) RowOption {
	return func(r *rowData) { r.metadataJSON = &blob }
}

// WithMetadata JSON-encodes meta into metadata_json.
func WithMetadata(meta map[string]any) RowOption {
	return func(r *rowData) {
		data, err := json.Marshal(meta)
		if err != nil {
			panic(err)
		}
		blob := string(data)
		r.metadataJSON = &blob
	}
}

// WithSource sets metadata_json to {"source_path": path}.
func WithSource(path string) RowOption {
	return WithMetadata(map[string]any{"source_path": path})
}

// Superseded marks the row as replaced by a later row.
func Superseded() RowOption {
	return func(r *rowData) { r.superseded = true }
}
