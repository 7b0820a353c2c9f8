package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Builder accumulates scan_events rows and inserts them in order.
type Builder struct {
	t    *testing.T
	reg  *Registry
	rows []rowData
}

// NewBuilder creates a builder for the given registry.
func NewBuilder(t *testing.T, reg *Registry) *Builder {
	t.Helper()
	return &Builder{t: t, reg: reg}
}

// WithRow adds a row with an arbitrary artifact type tag.
func (b *Builder) WithRow(artifactType, id string, opts ...RowOption) *Builder {
	row := rowData{artifactType: artifactType, artifactID: id}
	for _, opt := range opts {
		opt(&row)
	}
	b.rows = append(b.rows, row)
	return b
}

// WithPrimary adds a PYN row.
func (b *Builder) WithPrimary(id string, opts ...RowOption) *Builder {
	return b.WithRow("PYN", id, opts...)
}

// WithSequence adds a SID row.
func (b *Builder) WithSequence(id string, opts ...RowOption) *Builder {
	return b.WithRow("SID", id, opts...)
}

// WithComponent adds a CID row.
func (b *Builder) WithComponent(id string, opts ...RowOption) *Builder {
	return b.WithRow("CID", id, opts...)
}

// Build inserts all accumulated rows in order. Superseded rows get a
// non-null superseded_by_id pointing at themselves, which is all the reader
// looks at.
func (b *Builder) Build() {
	b.t.Helper()
	for _, row := range b.rows {
		id := b.insert(row)
		if row.superseded {
			_, err := b.reg.DB.Exec(`UPDATE scan_events SET superseded_by_id = id WHERE id = ?`, id)
			require.NoError(b.t, err)
		}
	}
	b.rows = nil
}

func (b *Builder) insert(row rowData) int64 {
	b.t.Helper()
	res, err := b.reg.DB.Exec(
		`INSERT INTO scan_events
			(artifact_type, artifact_id, pyn_id, sid_count, cid_count, capability, use_env_last, metadata_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		row.artifactType, row.artifactID, row.pynID, row.sidCount, row.cidCount,
		row.capability, row.useEnvLast, row.metadataJSON,
	)
	require.NoError(b.t, err)
	id, err := res.LastInsertId()
	require.NoError(b.t, err)
	return id
}
