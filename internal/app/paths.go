package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Paths stores resolved runtime file locations for config, recorder and logs.
type Paths struct {
	RootDir    string
	ConfigFile string
	DBFile     string
	LogFile    string
}

func ResolvePaths() (Paths, error) {
	cfgRoot, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("resolve config dir: %w", err)
	}

	root := filepath.Join(cfgRoot, Name)
	if err := os.MkdirAll(root, 0o750); err != nil {
		return Paths{}, fmt.Errorf("create app config dir: %w", err)
	}

	return pathsIn(root, filepath.Join(root, ConfigFilename)), nil
}

// ResolvePathsFor keeps the recorder and log next to an explicit config file.
// An empty configFile falls back to ResolvePaths.
func ResolvePathsFor(configFile string) (Paths, error) {
	configFile = strings.TrimSpace(configFile)
	if configFile == "" {
		return ResolvePaths()
	}
	abs, err := filepath.Abs(configFile)
	if err != nil {
		return Paths{}, fmt.Errorf("resolve config path: %w", err)
	}
	root := filepath.Dir(abs)
	if err := os.MkdirAll(root, 0o750); err != nil {
		return Paths{}, fmt.Errorf("create config dir: %w", err)
	}

	return pathsIn(root, abs), nil
}

func pathsIn(root, configFile string) Paths {
	return Paths{
		RootDir:    root,
		ConfigFile: configFile,
		DBFile:     filepath.Join(root, DBFilename),
		LogFile:    filepath.Join(root, LogFilename),
	}
}
