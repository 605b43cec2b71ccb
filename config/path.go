package config

import "os"

// DefaultPath is the config file read when no path is given.
const DefaultPath = "site.config.yaml"

// ResolvePath returns the config file Load would read for path.
func ResolvePath(path string) string {
	if envPath := os.Getenv(EnvConfigPath); envPath != "" {
		return envPath
	}
	return path
}
