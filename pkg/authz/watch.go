package authz

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/classhub/classhub/pkg/observability"
)

// WatchPolicy reloads the gate's policy whenever the file changes and
// blocks until the context is cancelled. Invalid or partially written
// files are logged and skipped; the previous policy stays in force.
func WatchPolicy(ctx context.Context, gate *Gate, path string, logger *observability.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// watch the directory: editors replace files on save, which drops
	// a direct file watch
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	log := logger.WithField("path", path)
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			policy, err := LoadPolicy(path)
			if err != nil {
				log.WithError(err).Warn("policy reload failed, keeping previous policy")
				continue
			}
			gate.SetPolicy(policy)
			log.Info("policy reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("policy watcher error")
		}
	}
}
