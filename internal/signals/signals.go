// Package signals lets another process stop a running tierup workflow by
// touching a file under .tierup/signals.
package signals

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// StopFile is the signal file name that requests a stop.
const StopFile = "stop"

// ErrStopRequested is the cancellation cause when the stop file appears.
var ErrStopRequested = errors.New("stop requested via signal file")

// pollInterval is how often the stop file is checked when fsnotify events
// are unavailable or missed.
const pollInterval = time.Second

// Watcher watches the signals directory for a stop request.
type Watcher struct {
	dir string

	mu      sync.Mutex
	stopped bool
	stopCh  chan struct{}

	watcher   *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
}

// New creates the signals directory under projectDir/.tierup and starts
// watching it. Without fsnotify it falls back to polling.
func New(projectDir string) (*Watcher, error) {
	dir := filepath.Join(projectDir, ".tierup", "signals")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:    dir,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}

	if fw, err := fsnotify.NewWatcher(); err == nil {
		if err := fw.Add(dir); err != nil {
			fw.Close()
		} else {
			w.watcher = fw
		}
	}

	go w.watch()
	return w, nil
}

func (w *Watcher) watch() {
	var events <-chan fsnotify.Event
	var errs <-chan error
	if w.watcher != nil {
		events = w.watcher.Events
		errs = w.watcher.Errors
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Base(event.Name) == StopFile && event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				// Re-check the file so late events after Clear are ignored.
				w.ShouldStop()
			}
		case _, ok := <-errs:
			if !ok {
				errs = nil
			}
		case <-ticker.C:
			w.ShouldStop()
		}
	}
}

func (w *Watcher) markStopped() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.stopped {
		w.stopped = true
		close(w.stopCh)
	}
}

// Dir returns the signals directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// ShouldStop reports whether a stop has been requested.
func (w *Watcher) ShouldStop() bool {
	if _, err := os.Stat(filepath.Join(w.dir, StopFile)); err == nil {
		w.markStopped()
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopped
}

// Stopped is closed once a stop has been requested.
func (w *Watcher) Stopped() <-chan struct{} {
	return w.stopCh
}

// SendStop creates the stop file.
func (w *Watcher) SendStop() error {
	path := filepath.Join(w.dir, StopFile)
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// Clear removes a stale stop file and resets the stop state.
func (w *Watcher) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()

	os.Remove(filepath.Join(w.dir, StopFile))
	if w.stopped {
		w.stopped = false
		w.stopCh = make(chan struct{})
	}
}

// WithCancel returns a context cancelled with ErrStopRequested when the stop
// file appears.
func (w *Watcher) WithCancel(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	w.mu.Lock()
	stopCh := w.stopCh
	w.mu.Unlock()

	go func() {
		select {
		case <-stopCh:
			cancel(ErrStopRequested)
		case <-ctx.Done():
		case <-w.done:
		}
	}()
	return ctx, func() { cancel(context.Canceled) }
}

// Close stops watching.
func (w *Watcher) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
		if w.watcher != nil {
			w.watcher.Close()
		}
	})
}
