package livesub

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/livesub/pkg/configutil"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "livesub.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "log_level: debug\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected debug, got %q", cfg.LogLevel)
	}
	if cfg.Server.ServerAddr != ":3000" || cfg.Server.WebsocketPath != "/ws" {
		t.Fatalf("unexpected server defaults %+v", cfg.Server)
	}
	if cfg.Receiver.BaseDelay != time.Second || cfg.Receiver.MaxDelay != 16*time.Second {
		t.Fatalf("unexpected receiver delays %v %v", cfg.Receiver.BaseDelay, cfg.Receiver.MaxDelay)
	}
	if !configutil.BoolValue(cfg.Receiver.ResetBackoffOnConnect, false) {
		t.Fatalf("expected reset_backoff_on_connect default true")
	}
	if cfg.Translation.Provider != "mymemory" || cfg.Translation.Source != "en" || cfg.Translation.Target != "th" {
		t.Fatalf("unexpected translation defaults %+v", cfg.Translation)
	}
	if cfg.Translation.CacheSize != 200 || cfg.Translation.MinInterval != time.Second {
		t.Fatalf("unexpected translator defaults %+v", cfg.Translation.Config)
	}
	if cfg.Presenter.DebounceWindow != 100*time.Millisecond || cfg.Presenter.MaxLines != 500 {
		t.Fatalf("unexpected presenter defaults %+v", cfg.Presenter)
	}
	if cfg.Recognition.Provider != "stdin" || cfg.Recognition.Language != "en-US" {
		t.Fatalf("unexpected recognition defaults %+v", cfg.Recognition)
	}
	if !cfg.Privacy.RedactPII {
		t.Fatalf("expected redaction on by default")
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("LIVESUB_TEST_DG_KEY", "dg-secret")
	t.Setenv("LIVESUB_TEST_HOST", "class.example.com")
	cfg, err := LoadConfig(writeConfig(t, `
server:
  public_url: "https://${LIVESUB_TEST_HOST}"
recognition:
  provider: deepgram
  settings:
    api_key: "${LIVESUB_TEST_DG_KEY}"
    model: nova-2
translation:
  provider: libretranslate
  source: auto
  detect_languages: [en, th, es]
  settings:
    endpoint: "https://${LIVESUB_TEST_HOST}/translate"
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.PublicURL != "https://class.example.com" {
		t.Fatalf("expected expanded public url, got %q", cfg.Server.PublicURL)
	}
	if cfg.Recognition.Settings["api_key"] != "dg-secret" {
		t.Fatalf("expected expanded api key, got %v", cfg.Recognition.Settings["api_key"])
	}
	if got := cfg.Translation.Settings["endpoint"]; got != "https://class.example.com/translate" {
		t.Fatalf("expected expanded endpoint, got %v", got)
	}
	if cfg.Translation.Source != "auto" || len(cfg.Translation.DetectLanguages) != 3 {
		t.Fatalf("unexpected translation config %+v", cfg.Translation)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
receiver:
  base_delay: 5s
  max_delay: 2s
`))
	if err == nil || !strings.Contains(err.Error(), "receiver.max_delay") {
		t.Fatalf("expected max_delay validation error, got %v", err)
	}
	_, err = LoadConfig(writeConfig(t, "translation:\n  provider: \"\"\n"))
	if err == nil || !strings.Contains(err.Error(), "translation.provider is required") {
		t.Fatalf("expected provider validation error, got %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestLoadConfigWithoutFile(t *testing.T) {
	t.Setenv("LIVESUB_LOG_LEVEL", "warn")
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected env override, got %q", cfg.LogLevel)
	}
}
