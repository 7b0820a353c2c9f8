package tracing

// Span names.
const (
	SpanRebuild      = "rebuild"
	SpanRegistryLoad = "registry.load"
	SpanPlace        = "place"
)

// Span attribute keys.
const (
	AttrRunID         = "rebuild.run_id"
	AttrArtifactsRoot = "rebuild.artifacts_root"
	AttrRegistryPath  = "registry.path"
	AttrRecordCount   = "registry.records"
	AttrArtifactKind  = "artifact.kind"
	AttrArtifactID    = "artifact.id"
	AttrDestDir       = "place.dest_dir"
	AttrOutcome       = "place.outcome"
	AttrDryRun        = "rebuild.dry_run"
)
