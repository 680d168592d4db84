// Package config loads and validates whereabouts configuration.
package config

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// ExpandPath resolves a path taken from the config file or environment.
//
// Variables are substituted first, so a variable may itself hold a ~ path.
// Both $VAR and ${VAR} are accepted, and ${VAR:-fallback} uses fallback when
// VAR is unset or empty. A leading ~ or ~name is then replaced by the home
// directory of the current or named user. Paths whose home directory cannot
// be resolved are returned with the tilde intact.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}
	return expandHome(os.Expand(path, lookupWithFallback))
}

func lookupWithFallback(name string) string {
	key, fallback, hasFallback := strings.Cut(name, ":-")
	if value := os.Getenv(key); value != "" || !hasFallback {
		return value
	}
	return os.Expand(fallback, lookupWithFallback)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	name, rest, _ := strings.Cut(path[1:], string(filepath.Separator))
	home, ok := homeDir(name)
	if !ok {
		return path
	}
	return filepath.Join(home, rest)
}

func homeDir(name string) (string, bool) {
	if name == "" {
		home, err := os.UserHomeDir()
		return home, err == nil
	}
	u, err := user.Lookup(name)
	if err != nil || u.HomeDir == "" {
		return "", false
	}
	return u.HomeDir, true
}
