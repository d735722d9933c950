package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Unresolved-sender policies for the identity resolver.
const (
	PolicyForwardDegraded = "forward-degraded"
	PolicyDropUnresolved  = "drop-unresolved"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "5511999" and 5511999.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	// Try []interface{} to handle mixed types
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	WebhookURL        string              `env:"WAHOOK_WEBHOOK_URL"         json:"webhook_url"`
	SessionDir        string              `env:"WAHOOK_SESSION_DIR"         json:"session_dir"`
	IdentityCachePath string              `env:"WAHOOK_IDENTITY_CACHE_PATH" json:"identity_cache_path"`
	LogLevel          string              `env:"WAHOOK_LOG_LEVEL"           json:"log_level"`
	AllowFrom         FlexibleStringSlice `env:"WAHOOK_ALLOW_FROM"          json:"allow_from"`
	Bridge            BridgeConfig        `json:"bridge"`
	Forward           ForwardConfig       `json:"forward"`
	Session           SessionConfig       `json:"session"`
	Gateway           GatewayConfig       `json:"gateway"`
}

// BridgeConfig points at the socket bridge process that owns the WhatsApp
// wire protocol. wahook only consumes its event stream.
type BridgeConfig struct {
	URL                     string `env:"WAHOOK_BRIDGE_URL"                       json:"url"`
	HandshakeTimeoutSeconds int    `env:"WAHOOK_BRIDGE_HANDSHAKE_TIMEOUT_SECONDS" json:"handshake_timeout_seconds"`
}

type ForwardConfig struct {
	TimeoutSeconds   int    `env:"WAHOOK_FORWARD_TIMEOUT_SECONDS"   json:"timeout_seconds"`
	CodeOnly         bool   `env:"WAHOOK_FORWARD_CODE_ONLY"         json:"code_only"`
	UnresolvedPolicy string `env:"WAHOOK_FORWARD_UNRESOLVED_POLICY" json:"unresolved_policy"`
}

type SessionConfig struct {
	ReconnectBackoffSeconds  int  `env:"WAHOOK_RECONNECT_BACKOFF_SECONDS"  json:"reconnect_backoff_seconds"`
	KeepaliveIntervalSeconds int  `env:"WAHOOK_KEEPALIVE_INTERVAL_SECONDS" json:"keepalive_interval_seconds"`
	ResetIdentitiesOnLogout  bool `env:"WAHOOK_RESET_IDENTITIES_ON_LOGOUT" json:"reset_identities_on_logout"`
}

type GatewayConfig struct {
	Enabled bool   `env:"WAHOOK_GATEWAY_ENABLED" json:"enabled"`
	Host    string `env:"WAHOOK_GATEWAY_HOST"    json:"host"`
	Port    int    `env:"WAHOOK_GATEWAY_PORT"    json:"port"`
}

func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".wahook")

	return &Config{
		SessionDir:        filepath.Join(base, "session"),
		IdentityCachePath: filepath.Join(base, "identities.json"),
		LogLevel:          "info",
		Bridge: BridgeConfig{
			URL:                     "ws://127.0.0.1:3001/ws",
			HandshakeTimeoutSeconds: 10,
		},
		Forward: ForwardConfig{
			TimeoutSeconds:   5,
			CodeOnly:         true,
			UnresolvedPolicy: PolicyForwardDegraded,
		},
		Session: SessionConfig{
			ReconnectBackoffSeconds:  5,
			KeepaliveIntervalSeconds: 30,
		},
		Gateway: GatewayConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    9091,
		},
	}
}

// LoadConfig reads the JSON config file (if present) over defaults and then
// applies environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	cfg.SessionDir = expandHome(cfg.SessionDir)
	cfg.IdentityCachePath = expandHome(cfg.IdentityCachePath)

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks the fields the daemon cannot run without.
func (c *Config) Validate() error {
	if c.WebhookURL == "" {
		return errors.New("webhook_url is required (WAHOOK_WEBHOOK_URL)")
	}
	if _, err := url.ParseRequestURI(c.WebhookURL); err != nil {
		return fmt.Errorf("invalid webhook_url: %w", err)
	}
	if c.Bridge.URL == "" {
		return errors.New("bridge.url is required (WAHOOK_BRIDGE_URL)")
	}
	switch c.Forward.UnresolvedPolicy {
	case PolicyForwardDegraded, PolicyDropUnresolved:
	default:
		return fmt.Errorf("invalid forward.unresolved_policy %q (want %q or %q)",
			c.Forward.UnresolvedPolicy, PolicyForwardDegraded, PolicyDropUnresolved)
	}
	return nil
}

func (c *ForwardConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *SessionConfig) ReconnectBackoff() time.Duration {
	if c.ReconnectBackoffSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.ReconnectBackoffSeconds) * time.Second
}

func (c *SessionConfig) KeepaliveInterval() time.Duration {
	if c.KeepaliveIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.KeepaliveIntervalSeconds) * time.Second
}

func (c *BridgeConfig) HandshakeTimeout() time.Duration {
	if c.HandshakeTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.HandshakeTimeoutSeconds) * time.Second
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
