// Package config provides configuration management for Navigator.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/ini.v1"

	"github.com/dualpane/navigator/internal/constants"
)

// Preferences is the user configuration of the navigation core.
//
// Config file location:
//   - Windows: %USERPROFILE%\.config\navigator\preferences
//   - Unix: ~/.config/navigator/preferences
//
// INI format:
//
//	[navigation]
//	cd_follows_symlinks = false
//	show_hidden_files = true
//
//	[monitor]
//	refresh_poll_seconds = 10
//
//	[executor]
//	max_workers = 8
//	shutdown_timeout_seconds = 60
//
//	[volume]
//	poll_seconds = 30
type Preferences struct {
	Navigation NavigationConfig
	Monitor    MonitorConfig
	Executor   ExecutorConfig
	Volume     VolumeConfig
}

// NavigationConfig contains settings consumed by the change-folder task.
type NavigationConfig struct {
	// CDFollowsSymlinks lands navigation on canonical paths instead of
	// keeping the symlinked path in the location bar.
	// Default: false
	CDFollowsSymlinks bool `ini:"cd_follows_symlinks"`

	// ShowHiddenFiles includes dotfiles in folder listings.
	// Default: true
	ShowHiddenFiles bool `ini:"show_hidden_files"`
}

// MonitorConfig contains folder-monitor settings.
type MonitorConfig struct {
	// RefreshPollSeconds is the interval between change checks.
	// Minimum: 1, Default: 10
	RefreshPollSeconds int `ini:"refresh_poll_seconds"`
}

// ExecutorConfig contains worker-pool settings.
type ExecutorConfig struct {
	// MaxWorkers bounds the shared pool. Default: 8
	MaxWorkers int `ini:"max_workers"`

	// ShutdownTimeoutSeconds bounds each phase of the shutdown drain.
	// Default: 60
	ShutdownTimeoutSeconds int `ini:"shutdown_timeout_seconds"`
}

// VolumeConfig contains volume-space poller settings.
type VolumeConfig struct {
	// PollSeconds is the free-space sampling interval. Default: 30
	PollSeconds int `ini:"poll_seconds"`
}

// Validation errors
var (
	ErrInvalidPollInterval    = errors.New("refresh_poll_seconds must be at least 1")
	ErrInvalidWorkerCount     = errors.New("max_workers must be between 1 and 64")
	ErrInvalidShutdownTimeout = errors.New("shutdown_timeout_seconds must be at least 1")
)

// NewPreferences returns preferences populated with defaults.
func NewPreferences() *Preferences {
	return &Preferences{
		Navigation: NavigationConfig{
			CDFollowsSymlinks: false,
			ShowHiddenFiles:   true,
		},
		Monitor: MonitorConfig{
			RefreshPollSeconds: int(constants.DefaultPollInterval / time.Second),
		},
		Executor: ExecutorConfig{
			MaxWorkers:             constants.DefaultWorkers,
			ShutdownTimeoutSeconds: int(constants.ShutdownTimeout / time.Second),
		},
		Volume: VolumeConfig{
			PollSeconds: int(constants.VolumeSpacePollInterval / time.Second),
		},
	}
}

// DefaultPreferencesPath returns the default path of the preferences file.
func DefaultPreferencesPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "navigator", "preferences"), nil
}

// LoadPreferences reads preferences from path. A missing file yields
// defaults without error; a malformed file is an error.
func LoadPreferences(path string) (*Preferences, error) {
	prefs := NewPreferences()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return prefs, nil
	}

	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("cannot parse preferences %s: %w", path, err)
	}

	if err := file.Section("navigation").MapTo(&prefs.Navigation); err != nil {
		return nil, fmt.Errorf("invalid [navigation] section: %w", err)
	}
	if err := file.Section("monitor").MapTo(&prefs.Monitor); err != nil {
		return nil, fmt.Errorf("invalid [monitor] section: %w", err)
	}
	if err := file.Section("executor").MapTo(&prefs.Executor); err != nil {
		return nil, fmt.Errorf("invalid [executor] section: %w", err)
	}
	if err := file.Section("volume").MapTo(&prefs.Volume); err != nil {
		return nil, fmt.Errorf("invalid [volume] section: %w", err)
	}

	if err := prefs.Validate(); err != nil {
		return nil, err
	}
	return prefs, nil
}

// Save writes the preferences to path, creating parent directories.
func (p *Preferences) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	file := ini.Empty()
	if err := file.Section("navigation").ReflectFrom(&p.Navigation); err != nil {
		return err
	}
	if err := file.Section("monitor").ReflectFrom(&p.Monitor); err != nil {
		return err
	}
	if err := file.Section("executor").ReflectFrom(&p.Executor); err != nil {
		return err
	}
	if err := file.Section("volume").ReflectFrom(&p.Volume); err != nil {
		return err
	}
	return file.SaveTo(path)
}

// Validate checks value ranges.
func (p *Preferences) Validate() error {
	if p.Monitor.RefreshPollSeconds < 1 {
		return ErrInvalidPollInterval
	}
	if p.Executor.MaxWorkers < 1 || p.Executor.MaxWorkers > 64 {
		return ErrInvalidWorkerCount
	}
	if p.Executor.ShutdownTimeoutSeconds < 1 {
		return ErrInvalidShutdownTimeout
	}
	return nil
}

// FollowSymlinks implements the configuration lookup consumed by the
// navigation resolver.
func (p *Preferences) FollowSymlinks() bool {
	return p.Navigation.CDFollowsSymlinks
}

// PollInterval returns the monitor poll interval as a duration.
func (p *Preferences) PollInterval() time.Duration {
	return time.Duration(p.Monitor.RefreshPollSeconds) * time.Second
}

// ShutdownTimeout returns the shutdown drain window as a duration.
func (p *Preferences) ShutdownTimeout() time.Duration {
	return time.Duration(p.Executor.ShutdownTimeoutSeconds) * time.Second
}

// VolumePollInterval returns the volume sampling interval as a duration.
func (p *Preferences) VolumePollInterval() time.Duration {
	return time.Duration(p.Volume.PollSeconds) * time.Second
}
