package config

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Watcher re-reads the config file on change and hands the reloaded config
// to onReload. Only runtime-tunable knobs should be honored by the callback
// (debug flag, log file); the pool membership is fixed for the process
// lifetime and reloads never touch it.
type Watcher struct {
	path   string
	stopCh chan struct{}
}

// Watch starts watching path. Returns nil when path is empty.
func Watch(path string, onReload func(*Config)) *Watcher {
	if path == "" {
		return nil
	}
	w := &Watcher{path: path, stopCh: make(chan struct{})}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.WithError(err).Warn("failed to create config watcher; hot reload disabled")
		return nil
	}
	if err := watcher.Add(path); err != nil {
		log.WithError(err).WithField("path", path).Warn("failed to watch config file; hot reload disabled")
		watcher.Close()
		return nil
	}
	// Watch the directory too so atomic renames are caught.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		log.WithError(err).WithField("dir", filepath.Dir(path)).Warn("failed to watch config directory")
	}
	log.WithField("path", path).Info("config watcher started")

	go func() {
		defer watcher.Close()

		var debounce *time.Timer
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != w.path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(100*time.Millisecond, func() {
					cfg, err := Load(w.path)
					if err != nil {
						log.WithError(err).WithField("path", w.path).Warn("failed to reload config")
						return
					}
					onReload(cfg)
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("config watcher error")
			case <-w.stopCh:
				if debounce != nil {
					debounce.Stop()
				}
				return
			}
		}
	}()
	return w
}

// Stop terminates the watcher goroutine.
func (w *Watcher) Stop() {
	if w == nil {
		return
	}
	close(w.stopCh)
}
