package identity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedMetadata reports a metadata blob that is not a JSON object.
// It is never fatal: the blob decodes to an empty Metadata.
var ErrMalformedMetadata = errors.New("malformed metadata")

// Metadata is the decoded form of a row's metadata_json column.
// Only the keys the indexer uses are kept; unknown keys are ignored.
type Metadata struct {
	SourcePath string
	// ComponentSequence holds the string form of each cid_sequence element.
	ComponentSequence    []string
	HasComponentSequence bool
}

const (
	keySourcePath  = "source_path"
	keyCIDSequence = "cid_sequence"
)

// DecodeMetadata decodes a metadata blob defensively.
//
// An empty blob yields empty Metadata and no error. A blob that is not a JSON
// object yields empty Metadata and an error wrapping ErrMalformedMetadata.
// Keys with unexpected types are treated as absent.
func DecodeMetadata(blob string) (Metadata, error) {
	if strings.TrimSpace(blob) == "" {
		return Metadata{}, nil
	}

	dec := json.NewDecoder(strings.NewReader(blob))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
	}

	var meta Metadata
	if s, ok := raw[keySourcePath].(string); ok && strings.TrimSpace(s) != "" {
		meta.SourcePath = s
	}
	if list, ok := raw[keyCIDSequence].([]any); ok {
		meta.HasComponentSequence = true
		meta.ComponentSequence = make([]string, 0, len(list))
		for _, v := range list {
			meta.ComponentSequence = append(meta.ComponentSequence, elementString(v))
		}
	}
	return meta, nil
}

// elementString renders a decoded JSON value as a folder-name fragment.
// Strings and numbers keep their literal text; anything else is compact JSON.
func elementString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case nil:
		return "null"
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(val); err != nil {
			return fmt.Sprint(val)
		}
		return strings.TrimSuffix(buf.String(), "\n")
	}
}
