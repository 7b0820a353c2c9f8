package report

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/require"

	"github.com/cpw/indexer/internal/identity"
	"github.com/cpw/indexer/internal/rebuild"
)

func TestSummary_DryRunListsPlan(t *testing.T) {
	s := &rebuild.Summary{
		RunID:         "run-1",
		ArtifactsRoot: "/repo/Artifacts",
		DryRun:        true,
		Records:       2,
		Unknown:       1,
		Placements: []rebuild.Placement{{
			Record:  identity.New("CID", identity.Common{ID: "c1"}, 0, 0, identity.Metadata{}),
			DestDir: "/repo/Artifacts/CID/c1",
		}},
	}

	out := Summary(s)
	require.Contains(t, out, "Dry run")
	require.Contains(t, out, "run-1")
	require.Contains(t, out, "planned")
	require.NotContains(t, out, "linked")

	require.Contains(t, Plan(s, 0), "c1 /repo/Artifacts/CID/c1")

	short := Plan(s, 12)
	require.LessOrEqual(t, ansi.StringWidth(strings.TrimSuffix(short, "\n")), 12)
	require.Contains(t, short, "…")
}

func TestSummary_Rebuild(t *testing.T) {
	s := &rebuild.Summary{RunID: "run-2", Records: 3, Failures: 1}

	out := Summary(s)
	require.Contains(t, out, "Rebuild complete")
	require.Contains(t, out, "linked")
	require.Contains(t, out, "failed")
	require.Contains(t, out, "missing source")
}
