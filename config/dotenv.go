// ABOUTME: Loads environment variables from .env files without overriding the existing environment.
// ABOUTME: Searches the working directory, its parents and the config directory.

package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// LoadDotEnv reads a .env file and sets every variable not already present.
// A missing file is not an error. Lines starting with # are comments;
// KEY=VALUE, KEY="VALUE", KEY='VALUE' and export KEY=VALUE are accepted.
func LoadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		// Values can contain '='.
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		value = strings.TrimSpace(value)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		if _, exists := os.LookupEnv(key); !exists {
			if err := os.Setenv(key, value); err != nil {
				return err
			}
		}
	}
	return scanner.Err()
}

// LoadDotEnvAuto loads .env from the working directory and each parent up
// to the filesystem root, then from the config directory. Files closer to
// the working directory win because earlier loads are never overridden.
func LoadDotEnvAuto() {
	if dir, err := os.Getwd(); err == nil {
		for {
			_ = LoadDotEnv(filepath.Join(dir, ".env"))
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	_ = LoadDotEnv(filepath.Join(filepath.Dir(DefaultPath()), ".env"))
}
