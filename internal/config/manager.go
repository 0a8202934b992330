package config

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ChangeFunc receives the previous and the newly loaded configuration.
type ChangeFunc func(old, updated *Config)

type Manager struct {
	mu          sync.RWMutex
	path        string
	optional    bool
	config      *Config
	subscribers []ChangeFunc
	watcher     *fsnotify.Watcher
	wg          sync.WaitGroup
}

// NewManager loads the configuration at path (empty selects the user
// config file) and validates it.
func NewManager(path string) (*Manager, error) {
	optional := path == ""
	if optional {
		p, err := GetConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	config, err := loadFile(path, optional)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Manager{path: path, optional: optional, config: config}, nil
}

func (m *Manager) Path() string { return m.path }

func (m *Manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to prevent external modification
	configCopy := *m.config
	return &configCopy
}

// OnChange registers fn to run after each successful reload.
func (m *Manager) OnChange(fn ChangeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

func (m *Manager) StartWatching(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Editors replace files on save, so watch the directory.
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		watcher.Close()
		return err
	}
	m.watcher = watcher

	m.wg.Add(1)
	go m.watchLoop(ctx)

	logger().Info("watching for changes", "path", m.path)
	return nil
}

func (m *Manager) Stop() {
	if m.watcher != nil {
		m.watcher.Close()
	}
	m.wg.Wait()
}

func (m *Manager) watchLoop(ctx context.Context) {
	defer m.wg.Done()
	configFileName := filepath.Base(m.path)

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFileName {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				logger().Debug("file change detected", "path", event.Name)
				m.Reload()
			}

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			logger().Warn("watcher error", "err", err)

		case <-ctx.Done():
			return
		}
	}
}

// Reload re-reads the file. An invalid file keeps the current
// configuration and returns false.
func (m *Manager) Reload() bool {
	updated, err := loadFile(m.path, m.optional)
	if err != nil {
		logger().Warn("failed to reload config", "err", err)
		return false
	}
	if err := updated.Validate(); err != nil {
		logger().Warn("invalid config after reload", "err", err)
		return false
	}

	m.mu.Lock()
	old := m.config
	m.config = updated
	subscribers := append([]ChangeFunc(nil), m.subscribers...)
	m.mu.Unlock()

	logger().Info("configuration reloaded", "path", m.path)
	for _, fn := range subscribers {
		fn(old, updated)
	}
	return true
}
