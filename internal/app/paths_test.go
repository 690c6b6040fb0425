package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePaths_ResolvesConfigDirectory(t *testing.T) {
	configHome := filepath.Join(t.TempDir(), "cfg")
	t.Setenv("XDG_CONFIG_HOME", configHome)

	paths, err := ResolvePaths()
	if err != nil {
		t.Fatalf("resolve paths: %v", err)
	}

	if paths.RootDir != filepath.Join(configHome, Name) {
		t.Fatalf("unexpected root dir: %q", paths.RootDir)
	}
	if paths.ConfigFile != filepath.Join(configHome, Name, ConfigFilename) {
		t.Fatalf("unexpected config file: %q", paths.ConfigFile)
	}
	if _, err := os.Stat(paths.RootDir); err != nil {
		t.Fatalf("expected root directory to exist: %v", err)
	}
}

func TestResolvePathsFor_KeepsFilesNextToConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vehicle")
	configFile := filepath.Join(dir, "link.yaml")

	paths, err := ResolvePathsFor(configFile)
	if err != nil {
		t.Fatalf("resolve paths: %v", err)
	}

	if paths.ConfigFile != configFile {
		t.Fatalf("unexpected config file: %q", paths.ConfigFile)
	}
	if paths.DBFile != filepath.Join(dir, DBFilename) {
		t.Fatalf("unexpected db file: %q", paths.DBFile)
	}
	if paths.LogFile != filepath.Join(dir, LogFilename) {
		t.Fatalf("unexpected log file: %q", paths.LogFile)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("expected config directory to exist: %v", err)
	}
}
