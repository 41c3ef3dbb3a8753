package skills

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/securebot-ai/securebot/pkg/logger"
)

const reloadDebounce = 500 * time.Millisecond

// Watch reloads the registry whenever the skills root changes on disk.
// Events are debounced so a burst of writes (a generator persisting a new
// skill directory) triggers a single reload. Watch blocks until ctx is
// cancelled.
func (r *Registry) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create skills watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(r.dir); err != nil {
		return errors.Wrapf(err, "failed to watch skills directory %s", r.dir)
	}

	log := logger.G(ctx)
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
				timerC = timer.C
			} else {
				timer.Reset(reloadDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("skills watcher error")
		case <-timerC:
			timer = nil
			timerC = nil
			if err := r.Reload(ctx); err != nil {
				log.WithError(err).Error("skills hot reload failed")
			}
		}
	}
}
