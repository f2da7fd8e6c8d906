// Package config holds the daemon's JSON configuration, hot-reloadable via
// an fsnotify watch on the backing file. daemon.reload re-reads the file
// and reports which components picked up new values.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/opslane/agentd/internal/rpcerr"
)

// TelegramConfig configures the Telegram polling bot adapter.
type TelegramConfig struct {
	Token           string   `json:"token"`
	BaseUrl         string   `json:"baseUrl,omitempty"`
	PollingTimeout  int      `json:"pollingTimeout,omitempty"`
	AllowedUpdates  []string `json:"allowedUpdates,omitempty"`
	AllowFrom       []string `json:"allowFrom,omitempty"`
	RequireMention  *bool    `json:"requireMention,omitempty"`
	StreamMode      string   `json:"streamMode,omitempty"`
	HistoryLimit    int      `json:"historyLimit,omitempty"`
	Proxy           string   `json:"proxy,omitempty"`
}

// DaemonConfig is the socket/request-handling surface.
type DaemonConfig struct {
	SocketPath       string `json:"socketPath,omitempty"`
	RequestTimeoutMs int    `json:"requestTimeoutMs,omitempty"`
	ShutdownDeadlineMs int  `json:"shutdownDeadlineMs,omitempty"`
}

// SchedulerJobConfig is one named cron job.
type SchedulerJobConfig struct {
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
	Enabled  bool   `json:"enabled"`
}

// Config is the top-level daemon configuration document.
type Config struct {
	Daemon    DaemonConfig         `json:"daemon"`
	Telegram  TelegramConfig       `json:"telegram"`
	Scheduler []SchedulerJobConfig `json:"scheduler,omitempty"`
	DataDir   string               `json:"dataDir,omitempty"`
	PulseFile string               `json:"pulseFile,omitempty"`
	SkillsDir string               `json:"skillsDir,omitempty"`
}

// Validate checks structural invariants, used by both Load and
// config.validate.
func (c *Config) Validate() error {
	for _, job := range c.Scheduler {
		if job.Name == "" {
			return rpcerr.New(rpcerr.ConfigInvalid, "scheduler job missing a name")
		}
		if job.Schedule == "" {
			return rpcerr.New(rpcerr.ConfigInvalid, "scheduler job %q missing a schedule", job.Name)
		}
	}
	return nil
}

// Manager holds the live configuration, guarded by a RWMutex, and a watch
// on its backing file for hot reload.
type Manager struct {
	path string

	mu  sync.RWMutex
	cfg Config

	watcher *fsnotify.Watcher
}

// Load reads and validates the configuration at path.
func Load(path string) (*Manager, error) {
	cfg, err := readConfig(path)
	if err != nil {
		return nil, err
	}
	return &Manager{path: path, cfg: cfg}, nil
}

func readConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, rpcerr.New(rpcerr.ConfigInvalid, "malformed config json: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Reload re-reads the backing file, replacing in-memory state if it parses
// and validates; otherwise the prior configuration is retained.
func (m *Manager) Reload() error {
	cfg, err := readConfig(m.path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return nil
}

// Watch starts an fsnotify watch on the config file, invoking onReload
// (typically Reload followed by a daemon.reload-style component refresh)
// whenever the file is written. The watch runs until the returned stop
// function closes the watcher.
func (m *Manager) Watch(onReload func()) (stop func() error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: new watcher: %w", err)
	}
	if err := watcher.Add(m.path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("config: watch %s: %w", m.path, err)
	}
	m.watcher = watcher

	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					onReload()
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return watcher.Close, nil
}
