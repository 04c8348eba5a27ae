package agents

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/JaimeStill/agent-chat/pkg/lifecycle"
	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 250 * time.Millisecond

// Watcher reloads a catalog file into a Registry whenever it changes.
// A catalog that fails to parse or validate leaves the registry as it was.
type Watcher struct {
	path    string
	reload  func() error
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	mu    sync.Mutex
	timer *time.Timer

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewWatcher watches path. reload is called after writes settle.
func NewWatcher(path string, reload func() error, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create catalog watcher: %w", err)
	}

	return &Watcher{
		path:    filepath.Clean(path),
		reload:  reload,
		watcher: fw,
		logger:  logger.With("system", "agents", "component", "catalog-watcher"),
		stopCh:  make(chan struct{}),
	}, nil
}

// Start watches the catalog's directory, since editors often replace the
// file rather than write it in place.
func (w *Watcher) Start(lc *lifecycle.Coordinator) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		w.watcher.Close()
		return fmt.Errorf("watch catalog: %w", err)
	}

	w.wg.Add(1)
	go w.loop()

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		w.Stop()
	})

	w.logger.Info("watching catalog", "path", w.path)
	return nil
}

func (w *Watcher) Stop() {
	select {
	case <-w.stopCh:
		return
	default:
		close(w.stopCh)
	}

	w.watcher.Close()
	w.wg.Wait()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("catalog watcher error", "error", err)
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(watchDebounce, func() {
		if err := w.reload(); err != nil {
			w.logger.Error("catalog reload failed", "path", w.path, "error", err)
			return
		}
		w.logger.Info("catalog reloaded", "path", w.path)
	})
}
