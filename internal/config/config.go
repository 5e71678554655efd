package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds knob runtime configuration loaded from TOML.
type Config struct {
	ConfigVersion int            `toml:"config_version"`
	API           APIConfig      `toml:"api"`
	Sync          SyncConfig     `toml:"sync"`
	UI            UIConfig       `toml:"ui"`
	State         StateConfig    `toml:"state"`
	Firmware      FirmwareConfig `toml:"firmware"`
}

// APIConfig describes the remote service and the OAuth client.
type APIConfig struct {
	APIURL      string   `toml:"api_url"`
	AccountsURL string   `toml:"accounts_url"`
	ClientID    string   `toml:"client_id"`
	RedirectURI string   `toml:"redirect_uri"`
	Scopes      []string `toml:"scopes"`
	Market      string   `toml:"market"`
}

// SyncConfig tunes the sync worker. All values are milliseconds.
type SyncConfig struct {
	PollIntervalMs   int `toml:"poll_interval_ms"`
	NetworkTimeoutMs int `toml:"network_timeout_ms"`
	TokenCooldownMs  int `toml:"token_cooldown_ms"`
	StatusTTLMs      int `toml:"status_ttl_ms"`
}

type UIConfig struct {
	Theme           string `toml:"theme"`
	NoColor         bool   `toml:"no_color"`
	SeekStepSeconds int    `toml:"seek_step_seconds"`
	VolumeStep      int    `toml:"volume_step"`
	Artwork         *bool  `toml:"artwork"`
	ArtworkWidth    int    `toml:"artwork_width"`
	ArtworkHeight   int    `toml:"artwork_height"`
}

// StateConfig holds persistence settings.
type StateConfig struct {
	DBPath string `toml:"db_path"`
}

// FirmwareConfig holds the default firmware update location. A value stored
// in the state database takes precedence.
type FirmwareConfig struct {
	UpdateURL string `toml:"update_url"`
}

var defaultScopes = []string{
	"user-read-playback-state",
	"user-modify-playback-state",
	"user-read-currently-playing",
	"user-library-read",
	"user-library-modify",
	"playlist-read-private",
	"playlist-read-collaborative",
}

// Load reads configuration from disk. If path is empty, a default OS-specific
// location is used.
func Load(path string) (*Config, string, error) {
	cfgPath := path
	if cfgPath == "" {
		var err error
		cfgPath, err = DefaultPath()
		if err != nil {
			return nil, "", fmt.Errorf("resolve config path: %w", err)
		}
	}

	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, cfgPath, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := Validate(cfg); err != nil {
		return nil, cfgPath, err
	}

	return &cfg, cfgPath, nil
}

// DefaultPath returns the OS-specific config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	name := "knob"
	if runtime.GOOS == "windows" {
		name = "Knob"
	}
	base := filepath.Join(dir, name)
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(base, "config.toml"), nil
}

func applyDefaults(cfg *Config) {
	if cfg.ConfigVersion == 0 {
		cfg.ConfigVersion = 1
	}
	if cfg.API.APIURL == "" {
		cfg.API.APIURL = "https://api.spotify.com"
	}
	if cfg.API.AccountsURL == "" {
		cfg.API.AccountsURL = "https://accounts.spotify.com"
	}
	if cfg.API.RedirectURI == "" {
		cfg.API.RedirectURI = "http://127.0.0.1:8888/callback"
	}
	if len(cfg.API.Scopes) == 0 {
		cfg.API.Scopes = append([]string(nil), defaultScopes...)
	}
	if cfg.API.Market == "" {
		cfg.API.Market = "from_token"
	}
	if cfg.Sync.PollIntervalMs == 0 {
		cfg.Sync.PollIntervalMs = 5000
	}
	if cfg.Sync.NetworkTimeoutMs == 0 {
		cfg.Sync.NetworkTimeoutMs = 5000
	}
	if cfg.Sync.TokenCooldownMs == 0 {
		cfg.Sync.TokenCooldownMs = 5000
	}
	if cfg.Sync.StatusTTLMs == 0 {
		cfg.Sync.StatusTTLMs = 3000
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = "rainbow"
	}
	if cfg.UI.SeekStepSeconds == 0 {
		cfg.UI.SeekStepSeconds = 10
	}
	if cfg.UI.VolumeStep == 0 {
		cfg.UI.VolumeStep = 5
	}
	// Artwork is on unless explicitly disabled.
	if cfg.UI.Artwork == nil {
		on := true
		cfg.UI.Artwork = &on
	}
	if cfg.UI.ArtworkWidth == 0 {
		cfg.UI.ArtworkWidth = 20
	}
	if cfg.UI.ArtworkHeight == 0 {
		cfg.UI.ArtworkHeight = 10
	}
}

// Default returns a configuration with every default applied and no client id.
func Default() Config {
	var cfg Config
	applyDefaults(&cfg)
	return cfg
}

// Validate performs semantic validation of config.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.API.ClientID) == "" {
		return errors.New("api.client_id is required")
	}
	for name, raw := range map[string]string{
		"api.api_url":      cfg.API.APIURL,
		"api.accounts_url": cfg.API.AccountsURL,
		"api.redirect_uri": cfg.API.RedirectURI,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL", name)
		}
	}
	if cfg.Firmware.UpdateURL != "" {
		if u, err := url.Parse(cfg.Firmware.UpdateURL); err != nil || u.Scheme == "" {
			return errors.New("firmware.update_url must be an absolute URL")
		}
	}
	if cfg.Sync.PollIntervalMs < 1000 {
		return errors.New("sync.poll_interval_ms must be at least 1000")
	}
	if cfg.Sync.NetworkTimeoutMs < 0 || cfg.Sync.TokenCooldownMs < 0 || cfg.Sync.StatusTTLMs < 0 {
		return errors.New("sync durations must not be negative")
	}
	if cfg.UI.VolumeStep < 1 || cfg.UI.VolumeStep > 100 {
		return errors.New("ui.volume_step must be 1-100")
	}
	if cfg.UI.SeekStepSeconds < 1 {
		return errors.New("ui.seek_step_seconds must be positive")
	}
	return nil
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func (c Config) PollInterval() time.Duration   { return ms(c.Sync.PollIntervalMs) }
func (c Config) NetworkTimeout() time.Duration { return ms(c.Sync.NetworkTimeoutMs) }
func (c Config) TokenCooldown() time.Duration  { return ms(c.Sync.TokenCooldownMs) }
func (c Config) StatusTTL() time.Duration      { return ms(c.Sync.StatusTTLMs) }

// ArtworkEnabled reports whether cover art is fetched and drawn.
func (c Config) ArtworkEnabled() bool { return c.UI.Artwork == nil || *c.UI.Artwork }

// DeadlineContext returns a context with default timeout based on the network timeout.
func (c Config) DeadlineContext() (context.Context, context.CancelFunc) {
	d := c.NetworkTimeout()
	if d == 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(context.Background(), d)
}
