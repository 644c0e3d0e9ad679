// Package audio plays a random celebration sound. Sound is decoration:
// nothing in here is allowed to stop a celebration.
package audio

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Library is the set of .wav files in one directory.
type Library struct {
	dir   string
	mu    sync.RWMutex
	files []string
}

// NewLibrary scans dir once. A missing directory gives an empty library.
func NewLibrary(dir string) *Library {
	l := &Library{dir: dir}
	if err := l.Refresh(); err != nil {
		slog.Warn("Sound directory not readable, playing no sounds", "dir", dir, "error", err)
	}
	return l
}

// Refresh rereads the directory. On error the library becomes empty.
func (l *Library) Refresh() error {
	entries, err := os.ReadDir(l.dir)
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			files = append(files, filepath.Join(l.dir, e.Name()))
		}
	}
	slices.Sort(files)

	l.mu.Lock()
	l.files = files
	l.mu.Unlock()
	return err
}

// Files returns the current file list, sorted.
func (l *Library) Files() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.files)
}

// Pick chooses a file uniformly at random.
func (l *Library) Pick(rng *rand.Rand) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.files) == 0 {
		return "", false
	}
	return l.files[rng.IntN(len(l.files))], true
}

// Watch keeps the library in sync with the directory until ctx is done.
func (l *Library) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(l.dir); err != nil {
		watcher.Close()
		return err
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
					if err := l.Refresh(); err != nil {
						slog.Warn("Rescanning sound directory failed", "dir", l.dir, "error", err)
					}
					slog.Debug("Sound library changed", "dir", l.dir, "files", len(l.Files()))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("Sound directory watch error", "dir", l.dir, "error", err)
			}
		}
	}()
	return nil
}
