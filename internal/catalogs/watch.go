package catalogs

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounce = 250 * time.Millisecond

// Watch reloads s whenever one of its database files changes, until ctx
// is done. Bursts of events within the debounce window cause one reload.
func (s *Set) Watch(ctx context.Context, logger *log.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(s.dir); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer w.Close()
		timer := time.NewTimer(debounce)
		if !timer.Stop() {
			<-timer.C
		}
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !isDatabase(ev.Name) || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				timer.Reset(debounce)
			case <-timer.C:
				if err := s.Reload(); err != nil {
					logger.Printf("catalogs: reload failed, keeping previous databases: %v", err)
					continue
				}
				logger.Printf("catalogs: reloaded %d databases from %s", len(s.Current().ByCategory), s.dir)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Printf("catalogs: watcher error: %v", err)
			}
		}
	}()
	return nil
}

func isDatabase(path string) bool {
	base := filepath.Base(path)
	for _, name := range Files {
		if base == name {
			return true
		}
	}
	return false
}
