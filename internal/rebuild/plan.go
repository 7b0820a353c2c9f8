package rebuild

import (
	"github.com/cpw/indexer/internal/identity"
	"github.com/cpw/indexer/internal/log"
	"github.com/cpw/indexer/internal/view"
)

// Placement pairs a record with the directory its file belongs in.
type Placement struct {
	Record  identity.Record
	DestDir string
}

// Plan resolves the destination of every record under root, keeping load
// order. Records of an unrecognized kind are left out.
func Plan(root string, records []identity.Record) []Placement {
	plan := make([]Placement, 0, len(records))
	for _, rec := range records {
		dir, ok := view.Resolve(root, rec)
		if !ok {
			log.Warn(log.CatView, "Skipping record of unknown kind",
				"kind", rec.Kind(), "id", rec.Base().ID)
			continue
		}
		plan = append(plan, Placement{Record: rec, DestDir: dir})
	}
	return plan
}
