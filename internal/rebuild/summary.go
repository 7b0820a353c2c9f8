package rebuild

import (
	"time"

	"github.com/cpw/indexer/internal/placer"
)

// Summary reports what a rebuild did.
type Summary struct {
	RunID         string
	ArtifactsRoot string
	RegistryPath  string
	DryRun        bool

	// Records is the number of current records loaded.
	Records int
	// Unknown counts records skipped for an unrecognized kind.
	Unknown int
	// Failures counts placements that hit an unexpected I/O error.
	Failures int

	// Placements lists every resolved placement in load order.
	Placements []Placement

	Duration time.Duration

	outcomes map[placer.Outcome]int
}

func newSummary(runID, root, registryPath string, dryRun bool) *Summary {
	return &Summary{
		RunID:         runID,
		ArtifactsRoot: root,
		RegistryPath:  registryPath,
		DryRun:        dryRun,
		outcomes:      make(map[placer.Outcome]int),
	}
}

func (s *Summary) add(o placer.Outcome) {
	s.outcomes[o]++
	if o == placer.OutcomeFailed {
		s.Failures++
	}
}

// Count returns how many placements ended with outcome o.
func (s *Summary) Count(o placer.Outcome) int {
	return s.outcomes[o]
}

// Placed returns the number of new entries created by this run.
func (s *Summary) Placed() int {
	return s.Count(placer.OutcomeLinked) + s.Count(placer.OutcomeCopied)
}
