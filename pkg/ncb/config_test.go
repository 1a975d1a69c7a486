package ncb

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
credentials:
  path: /etc/ncb/sa.json
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Fatalf("unexpected log defaults: %q %q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.Gateway.Source != GatewaySourceNATS {
		t.Fatalf("gateway source default = %q", cfg.Gateway.Source)
	}
	if cfg.ConfigStore.Driver != ConfigStoreMemory || cfg.ConfigStore.CacheTTLSeconds != 30 {
		t.Fatalf("unexpected config store defaults: %+v", cfg.ConfigStore)
	}
	if cfg.Artifacts.Dir != "audio" || cfg.Artifacts.Extension != "mp3" {
		t.Fatalf("unexpected artifact defaults: %+v", cfg.Artifacts)
	}
	if cfg.Pipeline.SpeakingRate != 1.2 || cfg.Pipeline.Pitch != 1.0 || cfg.Pipeline.QueueSize != 64 {
		t.Fatalf("unexpected pipeline defaults: %+v", cfg.Pipeline)
	}
	if cfg.Credentials.Scope == "" {
		t.Fatalf("expected default token scope")
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("NCB_CREDS", "/run/secrets/sa.json")
	t.Setenv("NCB_VOICEVOX", "http://voicevox:50021")
	path := writeConfig(t, `
credentials:
  path: ${NCB_CREDS}
providers:
  local:
    settings:
      base_url: ${NCB_VOICEVOX}
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Credentials.Path != "/run/secrets/sa.json" {
		t.Fatalf("credentials path = %q", cfg.Credentials.Path)
	}
	if got := cfg.Providers.Local.Settings["base_url"]; got != "http://voicevox:50021" {
		t.Fatalf("local base_url = %v", got)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing credentials path",
			body:    ``,
			wantErr: "credentials.path",
		},
		{
			name: "unknown gateway source",
			body: `
credentials:
  path: /etc/ncb/sa.json
gateway:
  source: carrier_pigeon
`,
			wantErr: "gateway.source",
		},
		{
			name: "redis driver without addr",
			body: `
credentials:
  path: /etc/ncb/sa.json
config_store:
  driver: redis
`,
			wantErr: "config_store.redis.addr",
		},
		{
			name: "unknown config store driver",
			body: `
credentials:
  path: /etc/ncb/sa.json
config_store:
  driver: scrolls
`,
			wantErr: "config_store.driver",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.body)
			_, err := LoadConfig(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
