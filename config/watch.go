package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reports on the returned channel whenever cfile is written or
// replaced. Editors often save via rename, so the parent directory is
// watched and events are filtered by name. Bursts of events within
// settle are coalesced into one notification. The channel is closed when
// ctx is done.
func Watch(ctx context.Context, cfile string, settle time.Duration) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	abs, err := filepath.Abs(cfile)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to resolve config path %s: %w", cfile, err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	changed := make(chan struct{}, 1)
	go func() {
		defer close(changed)
		defer watcher.Close()

		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					slog.Debug("Config file event", "file", event.Name, "op", event.Op.String())
					pending = time.After(settle)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("Config watcher error", "error", err)
			case <-pending:
				pending = nil
				slog.Info("Config file changed", "file", abs)
				select {
				case changed <- struct{}{}:
				default:
				}
			}
		}
	}()
	return changed, nil
}
