package config

import (
	"fmt"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Manager owns the current configuration snapshot and optionally watches
// its source file for changes, swapping in a new snapshot atomically so
// concurrent readers never observe a torn config (teacher's
// config_manager.go + hot_reload.go, generalized to our config tree).
type Manager struct {
	path    string
	loader  *Loader
	current atomic.Pointer[Config]
	logger  *logrus.Logger
	watcher *fsnotify.Watcher
}

// NewManager loads configPath once and returns a Manager wrapping it.
func NewManager(configPath string) (*Manager, error) {
	loader := NewLoader()
	cfg, err := loader.Load(configPath)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		path:   configPath,
		loader: loader,
		logger: logrus.New(),
	}
	m.current.Store(cfg)
	return m, nil
}

// Config returns the current configuration snapshot. The returned pointer
// must be treated as immutable.
func (m *Manager) Config() *Config {
	return m.current.Load()
}

// WatchForChanges starts watching the config file and hot-reloads on
// write, dropping (and logging) any reload that fails validation rather
// than disturbing the running snapshot.
func (m *Manager) WatchForChanges() error {
	if m.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := watcher.Add(m.path); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch config file: %w", err)
	}
	m.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				m.reload()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.logger.WithError(err).Warn("config watcher error")
			}
		}
	}()

	return nil
}

func (m *Manager) reload() {
	cfg, err := NewLoader().Load(m.path)
	if err != nil {
		m.logger.WithError(err).Warn("config reload failed, keeping previous configuration")
		return
	}
	m.current.Store(cfg)
	m.logger.Info("configuration reloaded")
}

// Close stops watching for config changes.
func (m *Manager) Close() error {
	if m.watcher != nil {
		return m.watcher.Close()
	}
	return nil
}
