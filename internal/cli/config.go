package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the trekctl configuration file.
type Config struct {
	// Server is the WebSocket endpoint, e.g. ws://localhost:8080/api/v1/ws.
	Server string `yaml:"server"`
	// Token is the access token minted by "treksync -mint-token".
	Token string `yaml:"token,omitempty"`
	// Codec is json or cbor.
	Codec string `yaml:"codec,omitempty"`
	// Profile is the directory holding device-local preferences.
	Profile  string `yaml:"profile,omitempty"`
	LogLevel string `yaml:"log_level,omitempty"`
	// Departure overrides the trip start date, as YYYY-MM-DD.
	Departure string `yaml:"departure,omitempty"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		Server:   "ws://localhost:8080/api/v1/ws",
		Codec:    "json",
		Profile:  filepath.Join(configDir(), "profile"),
		LogLevel: "warn",
	}
}

// DefaultConfigPath is where trekctl looks for its configuration.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "trekctl.yaml")
}

func configDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".treksync"
	}
	return filepath.Join(dir, "treksync")
}

// LoadConfig reads path over the defaults. A missing file is only an error
// when mustExist is set.
func LoadConfig(path string, mustExist bool) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is the user's own config file
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !mustExist {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the values that can be checked offline.
func (c *Config) Validate() error {
	if c.Server == "" {
		return errors.New("server is required")
	}
	switch c.Codec {
	case "", "json", "cbor":
	default:
		return fmt.Errorf("unknown codec %q", c.Codec)
	}
	if c.Departure != "" {
		if _, err := time.ParseInLocation(time.DateOnly, c.Departure, time.Local); err != nil {
			return fmt.Errorf("departure: %w", err)
		}
	}
	return nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
