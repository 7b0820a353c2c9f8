// Package view maps identity records to the directories they appear under.
//
// Every path is derived from record fields alone, so reruns against an
// unchanged registry resolve to the same layout:
//
//	<root>/PY/<env>/SID-count_NNN/<id>
//	<root>/SID/<env>/CID-count_NNN/CID-seq_<c1>_<c2>.../<id>
//	<root>/CID/<id>/<id>[__cap_<capability>]
package view

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cpw/indexer/internal/identity"
)

// Subtree names directly under the artifacts root.
const (
	PrimaryTree   = "PY"
	SequenceTree  = "SID"
	ComponentTree = "CID"
)

const (
	sequenceCountPrefix  = "SID-count_"
	componentCountPrefix = "CID-count_"
	sequencePrefix       = "CID-seq_"
	unknownSequence      = sequencePrefix + "unknown"
	capabilitySeparator  = "__cap_"
)

// Resolve returns the destination directory for rec under root.
// Returns false for records of an unrecognized kind; no path is produced.
func Resolve(root string, rec identity.Record) (string, bool) {
	switch r := rec.(type) {
	case identity.Primary:
		return filepath.Join(root, PrimaryTree, identity.Environment(r),
			CountBucket(sequenceCountPrefix, r.SequenceCount), r.ID), true
	case identity.Sequence:
		return filepath.Join(root, SequenceTree, identity.Environment(r),
			CountBucket(componentCountPrefix, r.ComponentCount),
			SequencePattern(r.ComponentSequence), r.ID), true
	case identity.Component:
		return filepath.Join(root, ComponentTree, r.ID, CapabilityFolder(r.ID, r.Capability)), true
	default:
		return "", false
	}
}

// CountBucket renders prefix followed by n zero-padded to at least three digits.
func CountBucket(prefix string, n int) string {
	return fmt.Sprintf("%s%03d", prefix, n)
}

// SequencePattern encodes an ordered component list as a folder name.
// Order and duplicates are kept as given.
func SequencePattern(seq []string) string {
	if len(seq) == 0 {
		return unknownSequence
	}
	return sequencePrefix + strings.Join(seq, "_")
}

// CapabilityFolder names a component's capability folder.
func CapabilityFolder(id, capability string) string {
	if capability == "" {
		return id
	}
	return id + capabilitySeparator + capability
}
