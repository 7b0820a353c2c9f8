// Package rebuild projects the registry's current state onto the view tree.
//
// A rebuild loads every current identity record, resolves the directory each
// one belongs under and places the record's file there. Only an unreadable
// registry fails a rebuild; every per-record problem is logged, counted and
// skipped. Reruns against an unchanged registry change nothing.
package rebuild

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/cpw/indexer/internal/identity"
	"github.com/cpw/indexer/internal/log"
	"github.com/cpw/indexer/internal/placer"
	"github.com/cpw/indexer/internal/registry"
	"github.com/cpw/indexer/internal/tracing"
)

// Options is the explicit configuration of one rebuild.
type Options struct {
	ArtifactsRoot string
	RegistryPath  string
	// Workers is the number of concurrent placements. Values below 2 place
	// sequentially in load order.
	Workers int
	// DryRun resolves placements without touching the filesystem.
	DryRun bool
}

// LoaderFunc loads the current identity records from the registry at path.
type LoaderFunc func(ctx context.Context, path string) ([]identity.Record, error)

// Placer places one artifact file into a directory.
type Placer interface {
	Place(source, destDir string) (placer.Outcome, error)
}

// Rebuilder runs rebuilds.
type Rebuilder struct {
	load   LoaderFunc
	placer Placer
	tracer trace.Tracer
}

// Option configures a Rebuilder.
type Option func(*Rebuilder)

// WithLoader replaces the registry loader.
func WithLoader(fn LoaderFunc) Option {
	return func(r *Rebuilder) { r.load = fn }
}

// WithPlacer replaces the artifact placer.
func WithPlacer(p Placer) Option {
	return func(r *Rebuilder) { r.placer = p }
}

// WithTracer sets the tracer used for rebuild spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Rebuilder) { r.tracer = t }
}

// New creates a Rebuilder reading the SQLite registry and placing with
// symlink-or-copy unless overridden.
func New(opts ...Option) *Rebuilder {
	r := &Rebuilder{
		load:   registry.LoadCurrentIdentities,
		placer: placer.New(placer.ModeAuto),
		tracer: tracing.Noop().Tracer(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rebuild runs one rebuild. The returned error wraps
// registry.ErrRegistryUnavailable when the registry could not be read, in
// which case nothing was placed. A cancelled ctx stops placement between
// records and returns the partial summary with ctx.Err().
func (r *Rebuilder) Rebuild(ctx context.Context, opts Options) (*Summary, error) {
	start := time.Now()

	root, err := filepath.Abs(opts.ArtifactsRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving artifacts root: %w", err)
	}
	registryPath, err := filepath.Abs(opts.RegistryPath)
	if err != nil {
		return nil, fmt.Errorf("resolving registry path: %w", err)
	}

	summary := newSummary(uuid.NewString(), root, registryPath, opts.DryRun)

	ctx, span := r.tracer.Start(ctx, tracing.SpanRebuild, trace.WithAttributes(
		attribute.String(tracing.AttrRunID, summary.RunID),
		attribute.String(tracing.AttrArtifactsRoot, root),
		attribute.String(tracing.AttrRegistryPath, registryPath),
		attribute.Bool(tracing.AttrDryRun, opts.DryRun),
	))
	defer span.End()

	log.Info(log.CatRebuild, "Rebuild started", "run", summary.RunID,
		"root", root, "registry", registryPath, "dry_run", opts.DryRun)

	records, err := r.loadRecords(ctx, registryPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "registry unavailable")
		log.ErrorErr(log.CatRebuild, "Rebuild aborted", err, "run", summary.RunID)
		return nil, err
	}
	summary.Records = len(records)

	plan := Plan(root, records)
	summary.Unknown = summary.Records - len(plan)
	summary.Placements = plan

	if !opts.DryRun {
		err = r.placeAll(ctx, plan, opts.Workers, summary)
	}

	summary.Duration = time.Since(start)
	span.SetAttributes(attribute.Int(tracing.AttrRecordCount, summary.Records))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return summary, err
	}
	span.SetStatus(codes.Ok, "")

	log.Info(log.CatRebuild, "Rebuild finished", "run", summary.RunID,
		"records", summary.Records, "linked", summary.Count(placer.OutcomeLinked),
		"copied", summary.Count(placer.OutcomeCopied), "exists", summary.Count(placer.OutcomeExists),
		"missing", summary.Count(placer.OutcomeMissingSource), "unknown", summary.Unknown,
		"failed", summary.Failures, "duration", summary.Duration)
	return summary, nil
}

func (r *Rebuilder) loadRecords(ctx context.Context, path string) ([]identity.Record, error) {
	ctx, span := r.tracer.Start(ctx, tracing.SpanRegistryLoad,
		trace.WithAttributes(attribute.String(tracing.AttrRegistryPath, path)))
	defer span.End()

	records, err := r.load(ctx, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int(tracing.AttrRecordCount, len(records)))
	return records, nil
}

// placeAll places every planned artifact. Results are recorded by index so
// concurrent placement needs no locking.
func (r *Rebuilder) placeAll(ctx context.Context, plan []Placement, workers int, summary *Summary) error {
	outcomes := make([]placer.Outcome, len(plan))
	done := make([]bool, len(plan))

	if workers < 2 {
		for i, p := range plan {
			if ctx.Err() != nil {
				break
			}
			outcomes[i] = r.placeOne(ctx, p)
			done[i] = true
		}
	} else {
		var g errgroup.Group
		g.SetLimit(workers)
		for i, p := range plan {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				outcomes[i] = r.placeOne(ctx, p)
				done[i] = true
				return nil
			})
		}
		_ = g.Wait()
	}

	for i, o := range outcomes {
		if done[i] {
			summary.add(o)
		}
	}
	return ctx.Err()
}

func (r *Rebuilder) placeOne(ctx context.Context, p Placement) placer.Outcome {
	base := p.Record.Base()
	_, span := r.tracer.Start(ctx, tracing.SpanPlace, trace.WithAttributes(
		attribute.String(tracing.AttrArtifactKind, string(p.Record.Kind())),
		attribute.String(tracing.AttrArtifactID, base.ID),
		attribute.String(tracing.AttrDestDir, p.DestDir),
	))
	defer span.End()

	outcome, err := r.placer.Place(base.SourcePath, p.DestDir)
	span.SetAttributes(attribute.String(tracing.AttrOutcome, outcome.String()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.ErrorErr(log.CatPlace, "Placement failed", err,
			"kind", p.Record.Kind(), "id", base.ID, "dest", p.DestDir)
		return placer.OutcomeFailed
	}

	log.Debug(log.CatPlace, "Placed", "kind", p.Record.Kind(), "id", base.ID,
		"dest", p.DestDir, "outcome", outcome)
	return outcome
}
