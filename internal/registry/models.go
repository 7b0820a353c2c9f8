package registry

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cpw/indexer/internal/identity"
)

// scanEventColumns is the list of columns selected for identity rows.
const scanEventColumns = `artifact_type, artifact_id, pyn_id, sid_count, cid_count,
	capability, use_env_last, metadata_json`

// ScanEventModel represents one row of the scan_events table.
// Nullable columns map to sql.Null* types.
type ScanEventModel struct {
	ArtifactType sql.NullString
	ArtifactID   sql.NullString
	PynID        sql.NullString
	SIDCount     count
	CIDCount     count
	Capability   sql.NullString
	UseEnvLast   sql.NullString
	MetadataJSON sql.NullString
}

// scanEvent scans a row into a ScanEventModel.
func scanEvent(scanner interface{ Scan(...any) error }) (*ScanEventModel, error) {
	var m ScanEventModel
	err := scanner.Scan(
		&m.ArtifactType, &m.ArtifactID, &m.PynID,
		&m.SIDCount, &m.CIDCount,
		&m.Capability, &m.UseEnvLast, &m.MetadataJSON,
	)
	return &m, err
}

// toDomain converts the row to an identity record using already decoded metadata.
func (m *ScanEventModel) toDomain(meta identity.Metadata) identity.Record {
	common := identity.Common{
		ID:              m.ArtifactID.String,
		ParentID:        m.PynID.String,
		Capability:      m.Capability.String,
		LastEnvironment: m.UseEnvLast.String,
	}
	return identity.New(
		m.ArtifactType.String,
		common,
		int(m.SIDCount),
		int(m.CIDCount),
		meta,
	)
}

// count is a lenient sql.Scanner for the count columns. NULL, negative and
// non-numeric values read as zero. Large values are kept in full.
type count int

func (c *count) Scan(src any) error {
	*c = 0
	switch v := src.(type) {
	case nil:
		return nil
	case int64:
		*c = clampCount(v)
	case float64:
		*c = clampFloat(v)
	case bool:
		if v {
			*c = 1
		}
	case []byte:
		*c = parseCount(string(v))
	case string:
		*c = parseCount(v)
	default:
		return fmt.Errorf("unsupported count type %T", src)
	}
	return nil
}

func clampCount(n int64) count {
	if n < 0 {
		return 0
	}
	return count(n)
}

func clampFloat(f float64) count {
	if math.IsNaN(f) || f <= 0 {
		return 0
	}
	if f >= math.MaxInt {
		return count(math.MaxInt)
	}
	return count(f)
}

func parseCount(s string) count {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return clampCount(n)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return clampFloat(f)
}
