package bachroot

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

// ConfigFile is the optional KEY=VALUE file overriding tool locations.
var ConfigFile = filepath.Join(xdg.ConfigHome, "bachroot", "bachroot.conf")

// Config struct
type Config struct {
	Values map[string]string
}

// Load the config file, then apply BACHROOT_* environment overrides.
// A missing file is not an error.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{Values: make(map[string]string)}

	// Attempt to read the file
	file, err := os.Open(path)
	if err == nil {
		defer file.Close()
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			val = strings.Trim(val, `"'`)
			cfg.Values[key] = val
		}
		if err := scanner.Err(); err != nil {
			return cfg, err
		}
	}

	mergeEnvOverrides(cfg, os.Environ())
	return cfg, nil
}

// Merge BACHROOT_* env overrides
func mergeEnvOverrides(cfg *Config, environ []string) {
	for _, env := range environ {
		if strings.HasPrefix(env, "BACHROOT_") {
			parts := strings.SplitN(env, "=", 2)
			if len(parts) == 2 {
				cfg.Values[parts[0]] = parts[1]
			}
		}
	}
}

// get returns the configured value for key, or def when unset or empty.
func (c *Config) get(key, def string) string {
	if c == nil {
		return def
	}
	if v := c.Values[key]; v != "" {
		return v
	}
	return def
}

func initConfig(cfg *Config) {
	if cfg.get("BACHROOT_DEBUG", "0") == "1" {
		setDebug(true)
	}
}
