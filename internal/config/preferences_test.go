package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewPreferences(t *testing.T) {
	p := NewPreferences()

	if p.Navigation.CDFollowsSymlinks {
		t.Error("expected CDFollowsSymlinks to default to false")
	}
	if !p.Navigation.ShowHiddenFiles {
		t.Error("expected ShowHiddenFiles to default to true")
	}
	if p.Monitor.RefreshPollSeconds != 10 {
		t.Errorf("expected default RefreshPollSeconds to be 10, got %d", p.Monitor.RefreshPollSeconds)
	}
	if p.Executor.MaxWorkers != 8 {
		t.Errorf("expected default MaxWorkers to be 8, got %d", p.Executor.MaxWorkers)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("defaults must validate, got %v", err)
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	p, err := LoadPreferences(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("missing file must not error, got %v", err)
	}
	if p.Monitor.RefreshPollSeconds != 10 {
		t.Errorf("expected defaults, got %+v", p)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "navigator", "preferences")

	p := NewPreferences()
	p.Navigation.CDFollowsSymlinks = true
	p.Monitor.RefreshPollSeconds = 5
	p.Executor.MaxWorkers = 4
	if err := p.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadPreferences(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !loaded.Navigation.CDFollowsSymlinks {
		t.Error("CDFollowsSymlinks not round-tripped")
	}
	if loaded.Monitor.RefreshPollSeconds != 5 {
		t.Errorf("RefreshPollSeconds not round-tripped, got %d", loaded.Monitor.RefreshPollSeconds)
	}
	if loaded.Executor.MaxWorkers != 4 {
		t.Errorf("MaxWorkers not round-tripped, got %d", loaded.Executor.MaxWorkers)
	}
	if !loaded.FollowSymlinks() {
		t.Error("FollowSymlinks accessor should reflect the loaded value")
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences")
	content := "[navigation]\ncd_follows_symlinks = true\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	p, err := LoadPreferences(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !p.Navigation.CDFollowsSymlinks {
		t.Error("explicit value not applied")
	}
	if p.Executor.MaxWorkers != 8 {
		t.Errorf("unset sections must keep defaults, got %d", p.Executor.MaxWorkers)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	p := NewPreferences()
	p.Monitor.RefreshPollSeconds = 0
	if err := p.Validate(); err != ErrInvalidPollInterval {
		t.Errorf("expected ErrInvalidPollInterval, got %v", err)
	}

	p = NewPreferences()
	p.Executor.MaxWorkers = 0
	if err := p.Validate(); err != ErrInvalidWorkerCount {
		t.Errorf("expected ErrInvalidWorkerCount, got %v", err)
	}

	p = NewPreferences()
	p.Executor.ShutdownTimeoutSeconds = 0
	if err := p.Validate(); err != ErrInvalidShutdownTimeout {
		t.Errorf("expected ErrInvalidShutdownTimeout, got %v", err)
	}
}

func TestDefaultPreferencesPath(t *testing.T) {
	path, err := DefaultPreferencesPath()
	if err != nil {
		t.Fatalf("DefaultPreferencesPath failed: %v", err)
	}
	if filepath.Base(path) != "preferences" {
		t.Errorf("unexpected path %s", path)
	}
}
