package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"go.viam.com/utils"

	"go.viam.com/surroundview/logging"
)

// watchDebounce coalesces the burst of events editors produce for a single save.
const watchDebounce = 100 * time.Millisecond

// A Watcher re-reads a config file whenever it changes on disk and delivers every version that
// parses and validates, once per burst of changes.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	configs chan *Config
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWatcher starts watching the config file at filePath. The containing directory is watched so
// that editors replacing the file by rename are seen.
func NewWatcher(ctx context.Context, filePath string, logger logging.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		utils.UncheckedError(fsw.Close())
		return nil, err
	}

	cancelCtx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		path:    abs,
		watcher: fsw,
		configs: make(chan *Config),
		cancel:  cancel,
	}
	w.wg.Add(1)
	utils.ManagedGo(func() {
		w.run(cancelCtx, logger)
	}, w.wg.Done)
	return w, nil
}

func (w *Watcher) run(ctx context.Context, logger logging.Logger) {
	debounced := debounce.New(watchDebounce)
	// The debounce timer only marks a reload as due; reading and delivery stay on this goroutine so
	// that Close waits for them.
	pending := make(chan struct{}, 1)
	markPending := func() {
		select {
		case pending <- struct{}{}:
		default:
		}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnw("error watching config", "path", w.path, "error", err)
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			debounced(markPending)
		case <-pending:
			cfg, err := Read(ctx, w.path, logger)
			if err != nil {
				logger.Errorw("error reading changed config", "path", w.path, "error", err)
				continue
			}
			select {
			case <-ctx.Done():
				return
			case w.configs <- cfg:
			}
		}
	}
}

// Config returns the channel on which changed configs are delivered.
func (w *Watcher) Config() <-chan *Config {
	return w.configs
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.cancel()
	w.wg.Wait()
	return w.watcher.Close()
}
