package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ProfileWatcher keeps the current render profile and reloads it when the file
// changes. A profile that fails to load is logged and the previous one is kept.
type ProfileWatcher struct {
	path    string
	getenv  func(string) string
	logger  *zap.Logger
	current atomic.Pointer[Profile]
	watcher *fsnotify.Watcher

	mu       sync.Mutex
	onChange []func(Profile)
}

// NewProfileWatcher loads the profile at path. An empty path yields a watcher that
// always returns DefaultProfile.
func NewProfileWatcher(path string, getenv func(string) string, logger *zap.Logger) (*ProfileWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &ProfileWatcher{path: path, getenv: getenv, logger: logger}
	profile := DefaultProfile()
	if path != "" {
		loaded, err := LoadProfile(path, getenv)
		if err != nil {
			return nil, err
		}
		profile = loaded
	}
	w.current.Store(&profile)
	return w, nil
}

// Current returns the active profile. Callers must not modify its maps.
func (w *ProfileWatcher) Current() Profile {
	return *w.current.Load()
}

// OnChange registers fn to run after every successful reload.
func (w *ProfileWatcher) OnChange(fn func(Profile)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Start watches the profile's directory until ctx is done. Editors often replace
// files instead of writing them, so the directory is watched rather than the file.
func (w *ProfileWatcher) Start(ctx context.Context) error {
	if w.path == "" {
		return nil
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create profile watcher: %w", err)
	}
	if err := fsWatcher.Add(filepath.Dir(w.path)); err != nil {
		_ = fsWatcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.watcher = fsWatcher
	go w.loop(ctx)
	return nil
}

func (w *ProfileWatcher) loop(ctx context.Context) {
	const debounce = 100 * time.Millisecond
	defer w.watcher.Close()

	var timer *time.Timer
	reload := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case <-reload:
			w.Reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("render profile watcher error", zap.Error(err))
		}
	}
}

// Reload reads the profile file again.
func (w *ProfileWatcher) Reload() {
	if w.path == "" {
		return
	}
	profile, err := LoadProfile(w.path, w.getenv)
	if err != nil {
		w.logger.Warn("render profile reload failed; keeping previous profile", zap.String("path", w.path), zap.Error(err))
		return
	}
	previous := w.current.Swap(&profile)
	if previous != nil && previous.Fingerprint == profile.Fingerprint {
		return
	}
	w.logger.Info("render profile reloaded", zap.String("path", w.path), zap.String("fingerprint", profile.Fingerprint))

	w.mu.Lock()
	callbacks := append([]func(Profile){}, w.onChange...)
	w.mu.Unlock()
	for _, fn := range callbacks {
		fn(profile)
	}
}
