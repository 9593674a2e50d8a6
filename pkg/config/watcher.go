package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ReloadFunc receives the outcome of a re-resolution triggered by a file
// change. Exactly one of cfg and err is set.
type ReloadFunc func(cfg *ResolvedConfig, err error)

// Watcher observes an owl tree and re-resolves the configuration whenever
// a relevant file changes. Reloads are debounced so editors that write in
// several steps trigger a single resolution. The Loader itself stays
// synchronous and stateless; the watcher only decides when to call it
// again.
type Watcher struct {
	loader   *Loader
	host     string
	logger   zerolog.Logger
	watcher  *fsnotify.Watcher
	debounce time.Duration
}

// NewWatcher returns a watcher that re-resolves for host through loader.
func NewWatcher(loader *Loader, host string, logger zerolog.Logger) *Watcher {
	return &Watcher{
		loader:   loader,
		host:     host,
		logger:   logger.With().Str("component", "config-watcher").Logger(),
		debounce: 500 * time.Millisecond,
	}
}

// Watch starts observing the tree and blocks until ctx is cancelled. The
// callback fires once immediately with the initial resolution, then again
// after every debounced change.
func (w *Watcher) Watch(ctx context.Context, reload ReloadFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	w.watcher = watcher
	defer watcher.Close()

	for _, dir := range w.watchDirs() {
		if err := watcher.Add(dir); err != nil {
			w.logger.Warn().Err(err).Str("dir", dir).Msg("Failed to watch directory")
		}
	}

	w.logger.Info().
		Str("root", w.loader.Root()).
		Str("host", w.host).
		Msg("Watching configuration tree")

	reload(w.loader.Resolve(ctx, w.host))

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}

			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Configuration file changed")

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				reload(w.loader.Resolve(ctx, w.host))
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// watchDirs lists the directories worth observing: the root for main.owl
// plus the hosts and groups subtrees when they exist.
func (w *Watcher) watchDirs() []string {
	dirs := []string{w.loader.Root()}
	for _, sub := range []string{"hosts", "groups"} {
		dir := filepath.Join(w.loader.Root(), sub)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// relevant filters events down to .owl writes, creates, and removes.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return strings.HasSuffix(event.Name, ".owl")
}
