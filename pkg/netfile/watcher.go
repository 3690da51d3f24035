package netfile

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/flownetio/flownet/pkg/logging"
)

// DefaultDebounce is how long the watcher waits for the directory to settle
// before signalling a reload. External editors and sync tools touch files in
// bursts; one reload per burst is enough.
const DefaultDebounce = 150 * time.Millisecond

// Watcher observes a network directory and emits a debounced reload signal
// whenever any .toml file changes. The signal channel has capacity one and
// coalesces; a slow consumer sees at most one pending reload.
type Watcher struct {
	dir      string
	fsw      *fsnotify.Watcher
	debounce time.Duration
	logger   logging.Logger

	reloads  chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a Watcher
type WatcherOption func(*Watcher)

// WithDebounce sets the settle window
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithWatcherLogger sets the logger
func WithWatcherLogger(l logging.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// NewWatcher creates a watcher over the given directory
func NewWatcher(dir string, opts ...WatcherOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		dir:      dir,
		fsw:      fsw,
		debounce: DefaultDebounce,
		logger:   logging.NewNopLogger(),
		reloads:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Reloads returns the reload signal channel
func (w *Watcher) Reloads() <-chan struct{} {
	return w.reloads
}

// Start begins watching. The loop exits when the context is cancelled or
// Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.fsw.Add(w.dir); err != nil {
		return err
	}
	go w.loop(ctx)
	w.logger.Info("watching network directory", logging.Path(w.dir))
	return nil
}

// Stop stops the watcher and closes the underlying notifier
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.fsw.Close()
	})
}

func (w *Watcher) loop(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	signal := func() {
		select {
		case w.reloads <- struct{}{}:
		default:
		}
		timerC = nil
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".toml") {
				continue
			}
			w.logger.Debug("file change",
				logging.Path(event.Name),
				logging.String("op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", logging.Error(err))
		case <-timerC:
			signal()
		}
	}
}
