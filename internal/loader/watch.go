package loader

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"strategist/internal/storage"
	"strategist/logger"
)

// ErrWatchUnsupported is returned by Watch for stores other than a local
// directory.
var ErrWatchUnsupported = errors.New("watch needs a local dataset root")

// Watch evicts cache entries as soon as their file is written, replaced or
// removed. It blocks until ctx is done. Fingerprint checks keep the cache
// correct without it; Watch only frees memory early.
func (l *Loader) Watch(ctx context.Context, ready chan<- struct{}) error {
	root := l.catalog.Store().Root()
	if storage.IsS3(root) {
		return ErrWatchUnsupported
	}
	log := l.log.WithComponent("cache_watcher").WithFields(logger.Fields{"root": root})

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addTree(w, root); err != nil {
		return err
	}
	log.Info("watching dataset root")
	if ready != nil {
		close(ready)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("watcher error")
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if err := addTree(w, ev.Name); err != nil {
					log.WithError(err).Debug("cannot watch new path")
				}
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			rel, err := filepath.Rel(root, ev.Name)
			if err != nil {
				continue
			}
			key, ok := l.catalog.KeyFor(filepath.ToSlash(rel))
			if !ok {
				continue
			}
			if n := l.Invalidate(key); n > 0 {
				log.WithFields(logger.Fields{
					"dataset": key.String(),
					"op":      ev.Op.String(),
					"evicted": n,
				}).Info("cache entries evicted")
			}
		}
	}
}

// addTree watches dir and every directory below it. Files are ignored.
func addTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.Add(p)
	})
}
