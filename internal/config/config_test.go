package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	valid := Default()
	valid.API.ClientID = "abc123"

	with := func(fn func(*Config)) Config {
		c := Default()
		c.API.ClientID = "abc123"
		fn(&c)
		return c
	}

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "valid config", cfg: valid},
		{
			name:    "missing client id",
			cfg:     Default(),
			wantErr: true,
		},
		{
			name:    "relative api url",
			cfg:     with(func(c *Config) { c.API.APIURL = "/v1" }),
			wantErr: true,
		},
		{
			name:    "bad firmware url",
			cfg:     with(func(c *Config) { c.Firmware.UpdateURL = "fw.bin" }),
			wantErr: true,
		},
		{
			name: "firmware url",
			cfg:  with(func(c *Config) { c.Firmware.UpdateURL = "https://example.com/fw.bin" }),
		},
		{
			name:    "poll interval too small",
			cfg:     with(func(c *Config) { c.Sync.PollIntervalMs = 10 }),
			wantErr: true,
		},
		{
			name:    "volume step out of range",
			cfg:     with(func(c *Config) { c.UI.VolumeStep = 200 }),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[api]
client_id = "abc123"

[sync]
poll_interval_ms = 3000

[ui]
artwork = false
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if resolved != path {
		t.Errorf("resolved = %q", resolved)
	}
	if cfg.PollInterval() != 3*time.Second {
		t.Errorf("poll interval = %v", cfg.PollInterval())
	}
	if cfg.NetworkTimeout() != 5*time.Second || cfg.TokenCooldown() != 5*time.Second || cfg.StatusTTL() != 3*time.Second {
		t.Errorf("sync defaults not applied: %+v", cfg.Sync)
	}
	if cfg.API.Market != "from_token" || len(cfg.API.Scopes) == 0 {
		t.Errorf("api defaults not applied: %+v", cfg.API)
	}
	if cfg.ArtworkEnabled() {
		t.Errorf("artwork explicitly disabled")
	}
	if cfg.UI.SeekStepSeconds != 10 || cfg.UI.VolumeStep != 5 {
		t.Errorf("ui defaults not applied: %+v", cfg.UI)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := Load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.toml")
	os.WriteFile(bad, []byte("[api\nclient_id="), 0o644)
	if _, _, err := Load(bad); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("expected parse error, got %v", err)
	}

	noClient := filepath.Join(dir, "noclient.toml")
	os.WriteFile(noClient, []byte("[ui]\ntheme = \"mono\"\n"), 0o644)
	if _, _, err := Load(noClient); err == nil || !strings.Contains(err.Error(), "client_id") {
		t.Fatalf("expected client_id error, got %v", err)
	}
}

func TestDeadlineContext(t *testing.T) {
	cfg := Default()
	ctx, cancel := cfg.DeadlineContext()
	defer cancel()
	deadline, ok := ctx.Deadline()
	if !ok || time.Until(deadline) > 5*time.Second {
		t.Fatalf("deadline = %v, %v", deadline, ok)
	}
}
