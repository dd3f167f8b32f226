// Package config loads settings from config.yaml, HOTPAD_* environment
// variables and command-line flags (bound by the CLI), in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/himanishpuri/HotRandomPad/pkg/logger"
)

const (
	AppName    = "HotRandomPad"
	EnvPrefix  = "HOTPAD"
	configName = "config"
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Preset   PresetConfig   `mapstructure:"preset"`
	Audio    AudioConfig    `mapstructure:"audio"`
	Keys     KeysConfig     `mapstructure:"keys"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type PresetConfig struct {
	// Path is an optional JSON preset kept in sync with the database.
	Path  string `mapstructure:"path"`
	Watch bool   `mapstructure:"watch"`
}

type AudioConfig struct {
	Backend      string `mapstructure:"backend"`
	Device       string `mapstructure:"device"`
	SampleRate   int    `mapstructure:"sample_rate"`
	BufferFrames int    `mapstructure:"buffer_frames"`
	FFmpeg       string `mapstructure:"ffmpeg"`
	TempDir      string `mapstructure:"temp_dir"`
}

type KeysConfig struct {
	FoldSides bool `mapstructure:"fold_sides"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Manager owns a viper instance and the decoded Config.
type Manager struct {
	viper     *viper.Viper
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
	watching  bool
}

// NewManager looks for config.yaml in the config directory and the working
// directory. A non-empty file overrides the search.
func NewManager(file string) (*Manager, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(configName)
		configDir, err := GetConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to determine config directory: %w", err)
		}
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Short forms for the settings people reach for most.
	if err := v.BindEnv("database.path", "HOTPAD_DB_PATH"); err != nil {
		return nil, fmt.Errorf("failed to bind HOTPAD_DB_PATH: %w", err)
	}
	if err := v.BindEnv("logging.level", "HOTPAD_LOG_LEVEL", "LOG_LEVEL"); err != nil {
		return nil, fmt.Errorf("failed to bind HOTPAD_LOG_LEVEL: %w", err)
	}
	if err := v.BindEnv("logging.format", "HOTPAD_LOG_FORMAT", "LOG_FORMAT"); err != nil {
		return nil, fmt.Errorf("failed to bind HOTPAD_LOG_FORMAT: %w", err)
	}

	m := &Manager{viper: v}
	m.setDefaults()
	return m, nil
}

func (m *Manager) setDefaults() {
	m.viper.SetDefault("database.path", "")
	m.viper.SetDefault("preset.path", "")
	m.viper.SetDefault("preset.watch", false)
	m.viper.SetDefault("audio.backend", "null")
	m.viper.SetDefault("audio.device", "")
	m.viper.SetDefault("audio.sample_rate", 44100)
	m.viper.SetDefault("audio.buffer_frames", 512)
	m.viper.SetDefault("audio.ffmpeg", "ffmpeg")
	m.viper.SetDefault("audio.temp_dir", "")
	m.viper.SetDefault("keys.fold_sides", false)
	m.viper.SetDefault("logging.level", "info")
	m.viper.SetDefault("logging.format", "console")
}

// Viper exposes the underlying instance so the CLI can bind flags.
func (m *Manager) Viper() *viper.Viper { return m.viper }

// Load reads the config file (a missing one is fine) and validates the result.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return fmt.Errorf("failed to read config file %s: %w", m.viper.ConfigFileUsed(), err)
		}
	}
	return m.reload()
}

// reload must be called with m.mu held for write.
func (m *Manager) reload() error {
	cfg := &Config{}
	if err := m.viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if err := normalize(cfg); err != nil {
		return err
	}
	if err := validate(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	m.config = cfg
	return nil
}

// Config returns the last successfully loaded configuration.
func (m *Manager) Config() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// File returns the config file in use, or "" when running on defaults.
func (m *Manager) File() string {
	return m.viper.ConfigFileUsed()
}

// Watch reloads the config file when it changes and notifies callbacks.
// An invalid edit is logged and the previous config kept.
func (m *Manager) Watch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watching {
		return
	}

	m.viper.OnConfigChange(func(e fsnotify.Event) {
		log := logger.GetLogger().With("config")
		log.Debugf("config change detected: %s %s", e.Op, e.Name)

		m.mu.Lock()
		if err := m.viper.ReadInConfig(); err != nil {
			m.mu.Unlock()
			log.Warnf("failed to reread config: %v", err)
			return
		}
		if err := m.reload(); err != nil {
			m.mu.Unlock()
			log.Warnf("ignoring config change: %v", err)
			return
		}
		cfg := m.config
		callbacks := append([]func(*Config){}, m.callbacks...)
		m.mu.Unlock()

		for _, cb := range callbacks {
			cb(cfg)
		}
	})
	m.viper.WatchConfig()
	m.watching = true
}

func (m *Manager) OnConfigChange(cb func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

func normalize(cfg *Config) error {
	cfg.Audio.Backend = strings.ToLower(strings.TrimSpace(cfg.Audio.Backend))
	if cfg.Audio.Backend == "" {
		cfg.Audio.Backend = "null"
	}
	cfg.Logging.Format = strings.ToLower(strings.TrimSpace(cfg.Logging.Format))
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Database.Path == "" {
		dbPath, err := GetDatabaseFile()
		if err != nil {
			return fmt.Errorf("failed to get database path: %w", err)
		}
		cfg.Database.Path = dbPath
	}
	for _, p := range []*string{&cfg.Database.Path, &cfg.Preset.Path, &cfg.Audio.TempDir} {
		if strings.HasPrefix(*p, "~/") {
			if home, err := os.UserHomeDir(); err == nil {
				*p = filepath.Join(home, (*p)[2:])
			}
		}
	}
	return nil
}

func validate(cfg *Config) error {
	var errs []error
	switch cfg.Audio.Backend {
	case "null", "portaudio":
	default:
		errs = append(errs, fmt.Errorf("audio.backend: %q is not one of null, portaudio", cfg.Audio.Backend))
	}
	if cfg.Audio.SampleRate < 8000 || cfg.Audio.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("audio.sample_rate: %d out of range 8000-192000", cfg.Audio.SampleRate))
	}
	if cfg.Audio.BufferFrames < 16 || cfg.Audio.BufferFrames > 16384 {
		errs = append(errs, fmt.Errorf("audio.buffer_frames: %d out of range 16-16384", cfg.Audio.BufferFrames))
	}
	if _, ok := logger.ParseLevel(cfg.Logging.Level); !ok {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}
	switch cfg.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: %q is not one of console, json", cfg.Logging.Format))
	}
	if cfg.Preset.Watch && cfg.Preset.Path == "" {
		errs = append(errs, errors.New("preset.watch requires preset.path"))
	}
	return errors.Join(errs...)
}

// GetConfigDir returns $XDG_CONFIG_HOME/HotRandomPad (or the platform's
// user config directory).
func GetConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, AppName), nil
}

// GetDatabaseFile returns the default sqlite location inside the config dir.
func GetDatabaseFile() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "hotrandompad.sqlite3"), nil
}
