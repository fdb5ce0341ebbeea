// Package config manages the server configuration stored in
// server_config.json.
package config

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the configuration file name inside the data directory.
const FileName = "server_config.json"

// ServerConfig stores all server-wide configuration.
// Loaded from server_config.json, created with defaults if missing.
type ServerConfig struct {
	// JWTSecret is the secret used to sign and verify access tokens.
	// Auto-generated if empty on first load.
	JWTSecret []byte `json:"jwt_secret"`

	// RequireAuth rejects API requests without a valid token. When false,
	// tokens are still verified when present.
	RequireAuth bool `json:"require_auth"`

	// RateLimits defines rate limiting configuration.
	RateLimits RateLimits `json:"rate_limits"`

	// Store defines document store limits.
	Store StoreLimits `json:"store"`

	// WebSocket defines realtime connection settings.
	WebSocket WebSocket `json:"websocket"`
}

// RateLimits defines rate limiting configuration (requests per minute).
type RateLimits struct {
	// WriteRatePerMin limits document writes per client IP, over HTTP and
	// WebSocket combined. 0 means unlimited.
	WriteRatePerMin int `json:"write_rate_per_min"`

	// WriteBurst is how many writes may happen back to back. 0 means
	// WriteRatePerMin / 10, at least 1.
	WriteBurst int `json:"write_burst"`
}

// Validate checks that rate limit values are non-negative.
func (r *RateLimits) Validate() error {
	if r.WriteRatePerMin < 0 {
		return errors.New("write_rate_per_min must be non-negative")
	}
	if r.WriteBurst < 0 {
		return errors.New("write_burst must be non-negative")
	}
	return nil
}

// Burst returns the effective burst size.
func (r *RateLimits) Burst() int {
	if r.WriteBurst > 0 {
		return r.WriteBurst
	}
	return max(r.WriteRatePerMin/10, 1)
}

// DefaultRateLimits returns the default rate limits.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		WriteRatePerMin: 600, // 10 writes/s sustained
		WriteBurst:      60,
	}
}

// StoreLimits bounds the document store.
type StoreLimits struct {
	// MaxDocumentBytes limits the size of one document.
	MaxDocumentBytes int `json:"max_document_bytes"`

	// CompactRatio triggers a log rewrite once the log holds this many
	// records per live document.
	CompactRatio int `json:"compact_ratio"`
}

// Validate checks that store limits are positive.
func (s *StoreLimits) Validate() error {
	if s.MaxDocumentBytes <= 0 {
		return errors.New("max_document_bytes must be positive")
	}
	if s.CompactRatio < 2 {
		return errors.New("compact_ratio must be at least 2")
	}
	return nil
}

// DefaultStoreLimits returns the default store limits.
func DefaultStoreLimits() StoreLimits {
	return StoreLimits{
		MaxDocumentBytes: 1 << 20, // 1 MiB
		CompactRatio:     4,
	}
}

// WebSocket defines realtime connection settings.
type WebSocket struct {
	// PingIntervalSec is how often the server pings idle clients. A client
	// that does not answer within twice the interval is disconnected.
	PingIntervalSec int `json:"ping_interval_sec"`

	// MaxSubscriptions limits live subscriptions per connection.
	MaxSubscriptions int `json:"max_subscriptions"`
}

// Validate checks that WebSocket values are positive.
func (w *WebSocket) Validate() error {
	if w.PingIntervalSec <= 0 {
		return errors.New("ping_interval_sec must be positive")
	}
	if w.MaxSubscriptions <= 0 {
		return errors.New("max_subscriptions must be positive")
	}
	return nil
}

// DefaultWebSocket returns the default WebSocket settings.
func DefaultWebSocket() WebSocket {
	return WebSocket{
		PingIntervalSec:  30,
		MaxSubscriptions: 256,
	}
}

// Default returns a configuration with every default and no secret.
func Default() ServerConfig {
	return ServerConfig{
		RateLimits: DefaultRateLimits(),
		Store:      DefaultStoreLimits(),
		WebSocket:  DefaultWebSocket(),
	}
}

// Validate checks that the configuration is valid.
func (c *ServerConfig) Validate() error {
	if len(c.JWTSecret) == 0 {
		return errors.New("jwt_secret is required")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("jwt_secret must be at least 32 bytes")
	}
	if err := c.RateLimits.Validate(); err != nil {
		return fmt.Errorf("rate_limits: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.WebSocket.Validate(); err != nil {
		return fmt.Errorf("websocket: %w", err)
	}
	return nil
}

// LoadServerConfig loads configuration from dataDir/server_config.json.
// Creates the file with defaults if it doesn't exist.
// Auto-generates JWTSecret if empty.
func LoadServerConfig(dataDir string) (*ServerConfig, error) {
	path := filepath.Join(dataDir, FileName)

	cfg := Default()

	data, err := os.ReadFile(path) //nolint:gosec // G304: path is constructed from dataDir, not user input
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
		}
		// File doesn't exist, will create with defaults
	} else {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
		}
	}

	// Auto-generate JWT secret if missing
	modified := false
	if len(cfg.JWTSecret) == 0 {
		cfg.JWTSecret = make([]byte, 32)
		if _, err := rand.Read(cfg.JWTSecret); err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		modified = true
	}

	// Save if we created defaults or generated a secret
	if modified || errors.Is(err, os.ErrNotExist) {
		if err := cfg.Save(dataDir); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", FileName, err)
	}
	return &cfg, nil
}

// Save saves configuration to dataDir/server_config.json.
func (c *ServerConfig) Save(dataDir string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(filepath.Join(dataDir, FileName), data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", FileName, err)
	}
	return nil
}
