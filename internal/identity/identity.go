// Package identity defines the in-memory form of a registry identity record.
//
// A record is one of three closed kinds: a Primary (top-level named artifact),
// a Sequence (ordered grouping of components) or a Component (leaf artifact).
// Records whose kind tag falls outside that set decode to Unrecognized so the
// caller can skip them without failing.
package identity

// Kind is the artifact kind tag stored in the registry.
type Kind string

const (
	KindPrimary   Kind = "PYN"
	KindSequence  Kind = "SID"
	KindComponent Kind = "CID"
)

// UnknownEnvironment is used when a record has no last usage environment.
const UnknownEnvironment = "unknown"

// ParseKind maps a registry tag to a Kind.
// Returns false for tags outside the closed set.
func ParseKind(tag string) (Kind, bool) {
	switch Kind(tag) {
	case KindPrimary, KindSequence, KindComponent:
		return Kind(tag), true
	default:
		return "", false
	}
}

// Record is implemented by Primary, Sequence, Component and Unrecognized.
type Record interface {
	// Kind returns the record's kind tag. Unrecognized returns its raw tag.
	Kind() Kind
	// Base returns the fields every record shares.
	Base() Common

	isRecord()
}

// Common holds the fields shared by every kind.
// Optional string fields are empty when absent.
type Common struct {
	ID              string
	ParentID        string
	Capability      string
	LastEnvironment string
	// SourcePath may be relative; it is resolved at placement time.
	SourcePath string
}

// Primary is a top-level named artifact owning some count of sequences.
type Primary struct {
	Common
	SequenceCount int
}

// Sequence is an ordered grouping of components.
type Sequence struct {
	Common
	ComponentCount int
	// ComponentSequence is kept verbatim: never sorted or deduplicated.
	// Nil when the registry row carried no sequence.
	ComponentSequence []string
}

// Component is a leaf artifact referenced by sequences and primaries.
type Component struct {
	Common
}

// Unrecognized is a row whose kind tag is outside the closed set.
type Unrecognized struct {
	Common
	Tag string
}

func (r Primary) Kind() Kind      { return KindPrimary }
func (r Sequence) Kind() Kind     { return KindSequence }
func (r Component) Kind() Kind    { return KindComponent }
func (r Unrecognized) Kind() Kind { return Kind(r.Tag) }

func (r Primary) Base() Common      { return r.Common }
func (r Sequence) Base() Common     { return r.Common }
func (r Component) Base() Common    { return r.Common }
func (r Unrecognized) Base() Common { return r.Common }

func (Primary) isRecord()      {}
func (Sequence) isRecord()     {}
func (Component) isRecord()    {}
func (Unrecognized) isRecord() {}

// Environment returns the record's last usage environment, or
// UnknownEnvironment when it has none.
func Environment(r Record) string {
	if env := r.Base().LastEnvironment; env != "" {
		return env
	}
	return UnknownEnvironment
}

// New builds the record variant named by tag.
// Negative counts are clamped to zero. A source path in meta takes
// precedence over common.SourcePath. The component sequence is copied from
// meta, so records never share its backing array.
func New(tag string, common Common, sequenceCount, componentCount int, meta Metadata) Record {
	if meta.SourcePath != "" {
		common.SourcePath = meta.SourcePath
	}

	kind, ok := ParseKind(tag)
	if !ok {
		return Unrecognized{Common: common, Tag: tag}
	}

	switch kind {
	case KindPrimary:
		return Primary{Common: common, SequenceCount: max(sequenceCount, 0)}
	case KindSequence:
		s := Sequence{Common: common, ComponentCount: max(componentCount, 0)}
		if meta.HasComponentSequence {
			s.ComponentSequence = append(make([]string, 0, len(meta.ComponentSequence)), meta.ComponentSequence...)
		}
		return s
	default:
		return Component{Common: common}
	}
}
