package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	appDir       = "haywire"
	appDirTitled = "Haywire"
	systemDir    = "/var/lib/haywire"
)

// DefaultDataDir returns the data directory used when none is configured.
// XDG_DATA_HOME wins everywhere; otherwise the platform's per-user data
// location is used. Without a home directory it falls back to ./data.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return dataDirFor(runtime.GOOS, home, os.Getenv, isDir)
}

func dataDirFor(goos, home string, getenv func(string) string, exists func(string) bool) string {
	if xdg := getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appDir)
	}
	if home == "" {
		return "./data"
	}
	switch goos {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appDirTitled)
	case "windows":
		if local := getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, appDirTitled)
		}
		return filepath.Join(home, "AppData", "Local", appDirTitled)
	}
	// A package install may have provisioned the system directory already.
	if exists(systemDir) {
		return systemDir
	}
	return filepath.Join(home, ".local", "share", appDir)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
