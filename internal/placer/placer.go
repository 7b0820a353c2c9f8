// Package placer makes an artifact file visible inside a view directory.
//
// Placement is idempotent: an existing entry at the destination is never
// replaced, so rerunning a rebuild adds only what is missing. The entry is a
// symbolic link when the filesystem allows one and a full copy otherwise;
// callers must not assume either.
package placer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cpw/indexer/internal/log"
)

// ErrLinkUnsupported wraps the error returned when a symbolic link cannot be
// created. It is logged when placement falls back to copying.
var ErrLinkUnsupported = errors.New("symlink unsupported")

// Mode selects how files are placed.
type Mode string

const (
	// ModeAuto links and falls back to copying.
	ModeAuto Mode = "auto"
	// ModeCopy always copies.
	ModeCopy Mode = "copy"
)

// ValidMode reports whether m names a placement mode. Empty means ModeAuto.
func ValidMode(m Mode) bool {
	switch m {
	case "", ModeAuto, ModeCopy:
		return true
	default:
		return false
	}
}

// Outcome describes what a placement did.
type Outcome int

const (
	// OutcomeNoSource means the record carried no source path.
	OutcomeNoSource Outcome = iota
	// OutcomeMissingSource means the source path does not exist on disk.
	OutcomeMissingSource
	// OutcomeExists means something already occupied the destination.
	OutcomeExists
	// OutcomeLinked means a symbolic link was created.
	OutcomeLinked
	// OutcomeCopied means the source was copied.
	OutcomeCopied
	// OutcomeFailed accompanies a returned error.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoSource:
		return "no_source"
	case OutcomeMissingSource:
		return "missing_source"
	case OutcomeExists:
		return "exists"
	case OutcomeLinked:
		return "linked"
	case OutcomeCopied:
		return "copied"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Placed reports whether the outcome created a new entry.
func (o Outcome) Placed() bool {
	return o == OutcomeLinked || o == OutcomeCopied
}

// Placer places artifact files. The zero value links with copy fallback.
type Placer struct {
	Mode Mode

	// symlink is swapped in tests to simulate filesystems without links.
	symlink func(oldname, newname string) error
}

// New creates a Placer using the given mode.
func New(mode Mode) *Placer {
	return &Placer{Mode: mode}
}

// Place ensures destDir contains an entry named after source's base name
// that refers to source.
//
// A missing or empty source is a no-op and creates no directories. Returned
// errors cover only unexpected I/O failures (creating destDir or copying).
func (p *Placer) Place(source, destDir string) (Outcome, error) {
	if source == "" {
		return OutcomeNoSource, nil
	}

	abs, err := filepath.Abs(source)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("resolving source %s: %w", source, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		log.Debug(log.CatPlace, "Source missing, skipping", "source", abs)
		return OutcomeMissingSource, nil
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return OutcomeFailed, fmt.Errorf("creating %s: %w", destDir, err)
	}

	dest := filepath.Join(destDir, filepath.Base(abs))
	if _, err := os.Lstat(dest); err == nil {
		return OutcomeExists, nil
	}

	if p.Mode != ModeCopy {
		err := p.link(abs, dest)
		if err == nil {
			return OutcomeLinked, nil
		}
		if errors.Is(err, fs.ErrExist) {
			return OutcomeExists, nil
		}
		log.Debug(log.CatPlace, "Falling back to copy", "dest", dest,
			"error", fmt.Errorf("%w: %v", ErrLinkUnsupported, err))
	}

	if err := copyFile(abs, dest, info); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return OutcomeExists, nil
		}
		return OutcomeFailed, fmt.Errorf("copying %s to %s: %w", abs, dest, err)
	}
	return OutcomeCopied, nil
}

func (p *Placer) link(oldname, newname string) error {
	if p.symlink != nil {
		return p.symlink(oldname, newname)
	}
	return os.Symlink(oldname, newname)
}
