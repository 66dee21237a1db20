package store

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watcher is a best-effort notifier for writes, creates and renames in the
// store directory (e.g. by a second AgentService sharing the same
// directory). It does not tell this process's own writes apart from other
// writers' and reports both. It never affects correctness; reads are
// already safe against concurrent writers via atomic rename. Observed
// changes are logged and exposed on Events.
type Watcher struct {
	watcher *fsnotify.Watcher
	log     *slog.Logger
	events  chan string
}

// NewWatcher starts watching dir for changes. Callers should call Close
// when done; a failure to start the watcher is non-fatal and logged.
func NewWatcher(dir string, log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "store.watch")

	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("external-change watcher unavailable", "error", err)
		return &Watcher{log: log, events: make(chan string)}
	}
	if err := w.Add(dir); err != nil {
		log.Warn("failed to watch store directory", "dir", dir, "error", err)
	}

	out := &Watcher{watcher: w, log: log, events: make(chan string, 16)}
	go out.pump()
	return out
}

func (w *Watcher) pump() {
	if w.watcher == nil {
		return
	}
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				close(w.events)
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.log.Debug("external store change observed", "file", event.Name, "op", event.Op.String())
				select {
				case w.events <- event.Name:
				default:
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("store watcher error", "error", err)
		}
	}
}

// Events exposes observed change paths; sends are dropped when the
// buffer is full.
func (w *Watcher) Events() <-chan string { return w.events }

// Close stops the watcher.
func (w *Watcher) Close() error {
	if w.watcher == nil {
		return nil
	}
	return w.watcher.Close()
}
