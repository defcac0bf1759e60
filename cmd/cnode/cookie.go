package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// cookieFromFile reads and trims the contents of path, defaulting to
// ~/.erlang.cookie the way `erl` itself locates the default cookie when
// none is given on the command line.
func cookieFromFile(path string) (string, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cookie: locate home directory: %w", err)
		}
		path = filepath.Join(home, ".erlang.cookie")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("cookie: read %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
