package watcher

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/forumkit/searchd/internal/errdefs"
	"github.com/forumkit/searchd/internal/log"
	"github.com/fsnotify/fsnotify"
)

// Watcher watches the config file and invokes the reload callback when it
// changes. Editors replace rather than rewrite files, so the parent
// directory is watched and events are filtered by name; rapid successive
// events are debounced into one reload.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	reload   func()
	debounce time.Duration
	running  bool
	mu       sync.Mutex
	done     chan struct{}
}

func New(configPath string, reload func()) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errdefs.NewCustomError(errdefs.ErrTypeWatcherFailed, "failed to create watcher", err)
	}

	return &Watcher{
		watcher:  w,
		path:     configPath,
		reload:   reload,
		debounce: 500 * time.Millisecond,
		done:     make(chan struct{}),
	}, nil
}

func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	if w.watcher == nil {
		newWatcher, err := fsnotify.NewWatcher()
		if err != nil {
			w.mu.Unlock()
			return errdefs.NewCustomError(errdefs.ErrTypeWatcherFailed, "failed to create watcher", err)
		}
		w.watcher = newWatcher
		w.done = make(chan struct{})
	}

	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return errdefs.NewCustomError(errdefs.ErrTypeWatcherFailed, "failed to watch config dir", err)
	}

	go w.eventLoop()
	log.Infof("watching %s for config changes", w.path)
	return nil
}

func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.running = false
	close(w.done)
	err := w.watcher.Close()
	w.watcher = nil
	log.Infof("config watcher stopped")
	return err
}

func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) eventLoop() {
	var timer *time.Timer
	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("config watcher error: %v", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(w.path) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}
