package config

import (
	"os"
	"strings"
)

// LoadEnv reads ./.env into the process environment so a deployment can keep
// MEDTRACK_* overrides next to the binary. A missing file is fine; variables
// already present in the environment win over file values.
func LoadEnv() error {
	data, err := os.ReadFile(".env")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	applyEnv(string(data))
	return nil
}

// applyEnv parses KEY=VALUE lines, skipping comments and blanks. Values may
// be single- or double-quoted.
func applyEnv(data string) {
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		if key == "" || os.Getenv(key) != "" {
			continue
		}
		os.Setenv(key, value)
	}
}
