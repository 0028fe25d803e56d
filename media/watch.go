package media

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"video-trimmer/event"
)

// SourceChange describes what happened to a watched file.
type SourceChange struct {
	Path string
	Op   string
}

// Watcher reports changes to a loaded source file on the UI consumer.
// Changes still queued when Close runs are dropped.
type Watcher struct {
	w      *fsnotify.Watcher
	done   chan struct{}
	closed atomic.Bool
	logger *slog.Logger
}

// WatchSource watches path and posts onChange through poster whenever the
// file is written, removed or renamed. The parent directory is watched so a
// rename does not silently end the watch.
func WatchSource(path string, poster event.Poster, logger *slog.Logger, onChange func(SourceChange)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	sw := &Watcher{w: fw, done: make(chan struct{}), logger: logger}
	target := filepath.Clean(path)

	go func() {
		defer close(sw.done)
		for {
			select {
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				op := changeOp(ev.Op)
				if op == "" {
					continue
				}
				change := SourceChange{Path: path, Op: op}
				poster.Post(func() {
					if sw.closed.Load() {
						return
					}
					onChange(change)
				})
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				logger.Warn("source watcher error", "error", err)
			}
		}
	}()

	return sw, nil
}

func changeOp(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Remove):
		return "removed"
	case op.Has(fsnotify.Rename):
		return "renamed"
	case op.Has(fsnotify.Write):
		return "modified"
	default:
		return ""
	}
}

// Close stops the watch and waits for the event goroutine to exit.
func (sw *Watcher) Close() error {
	sw.closed.Store(true)
	err := sw.w.Close()
	<-sw.done
	return err
}
