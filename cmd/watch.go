package cmd

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/cpw/indexer/internal/log"
	"github.com/cpw/indexer/internal/rebuild"
	"github.com/cpw/indexer/internal/registry"
	"github.com/cpw/indexer/internal/watcher"
)

// watchRegistry rebuilds after every debounced change to the registry until
// ctx is done. A registry that is briefly unreadable mid-write is logged and
// retried on the next change.
func watchRegistry(ctx context.Context, r *rebuild.Rebuilder, opts rebuild.Options, debounce time.Duration, out io.Writer) error {
	w, err := watcher.New(watcher.Config{RegistryPath: opts.RegistryPath, DebounceDur: debounce})
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	changes, err := w.Start()
	if err != nil {
		return err
	}
	log.Info(log.CatWatcher, "Watching registry for changes", "path", opts.RegistryPath)

	for {
		select {
		case <-ctx.Done():
			log.Info(log.CatWatcher, "Stopped watching")
			return nil
		case <-changes:
			err := runOnce(ctx, r, opts, out)
			if errors.Is(err, registry.ErrRegistryUnavailable) {
				log.Warn(log.CatWatcher, "Registry unavailable, waiting for next change", "error", err)
				continue
			}
			if err != nil {
				return err
			}
		}
	}
}
