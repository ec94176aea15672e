package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/harunnryd/livesub/pkg/transports/relay"
)

func runCLI(t *testing.T, args []string, configPath, stdin string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func writeTestConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	body = strings.ReplaceAll(body, "$DIR", dir)
	path := filepath.Join(dir, "livesub.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestWordsSaveListRemove(t *testing.T) {
	cfg := writeTestConfig(t, "log_level: error\nwords:\n  dir: $DIR/words\n")

	out, _, err := runCLI(t, []string{"words", "save", "Cat", "แมว"}, cfg, "")
	if err != nil {
		t.Fatalf("words save: %v", err)
	}
	requireContains(t, out, "Saved cat = แมว")

	if _, _, err := runCLI(t, []string{"words", "save", "cat", "ใหม่"}, cfg, ""); err != nil {
		t.Fatalf("words save again: %v", err)
	}

	out, _, err = runCLI(t, []string{"words", "list"}, cfg, "")
	if err != nil {
		t.Fatalf("words list: %v", err)
	}
	requireContains(t, out, "ใหม่")
	requireContains(t, out, "1 saved")
	if strings.Contains(out, "แมว") {
		t.Fatalf("expected translation replaced, got %s", out)
	}

	out, _, err = runCLI(t, []string{"words", "remove", "CAT"}, cfg, "")
	if err != nil {
		t.Fatalf("words remove: %v", err)
	}
	requireContains(t, out, "Removed cat")

	out, _, err = runCLI(t, []string{"words", "list"}, cfg, "")
	if err != nil {
		t.Fatalf("words list: %v", err)
	}
	requireContains(t, out, "No saved words yet")

	if _, _, err := runCLI(t, []string{"words", "remove", "dog"}, cfg, ""); err == nil {
		t.Fatalf("expected error removing unsaved word")
	}
}

func TestWordsClearRequiresConfirmation(t *testing.T) {
	cfg := writeTestConfig(t, "log_level: error\nwords:\n  dir: $DIR/words\n")
	if _, _, err := runCLI(t, []string{"words", "save", "dog", "หมา"}, cfg, ""); err != nil {
		t.Fatalf("words save: %v", err)
	}
	if _, _, err := runCLI(t, []string{"words", "clear"}, cfg, ""); err == nil {
		t.Fatalf("expected refusal without --yes")
	}
	out, _, err := runCLI(t, []string{"words", "clear", "--yes"}, cfg, "")
	if err != nil {
		t.Fatalf("words clear: %v", err)
	}
	requireContains(t, out, "Cleared 1 words")
}

func TestTranslateSavesWord(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if got := r.URL.Query().Get("langpair"); got != "en|th" {
			t.Errorf("unexpected langpair %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"responseStatus": 200,
			"responseData":   map[string]any{"translatedText": "แมว"},
		})
	}))
	defer srv.Close()

	cfg := writeTestConfig(t, `log_level: error
words:
  dir: $DIR/words
translation:
  provider: mymemory
  settings:
    endpoint: `+srv.URL+`
`)

	out, _, err := runCLI(t, []string{"translate", "Cat!", "--save"}, cfg, "")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	requireContains(t, out, "แมว")
	requireContains(t, out, "already_saved")
	if hits.Load() != 1 {
		t.Fatalf("expected one request, got %d", hits.Load())
	}

	out, _, err = runCLI(t, []string{"words", "list"}, cfg, "")
	if err != nil {
		t.Fatalf("words list: %v", err)
	}
	requireContains(t, out, "cat")
}

func TestTranslateUnknownProvider(t *testing.T) {
	cfg := writeTestConfig(t, "log_level: error\ntranslation:\n  provider: deepl\n")
	_, _, err := runCLI(t, []string{"translate", "cat"}, cfg, "")
	if err == nil || !strings.Contains(err.Error(), "translation provider not registered") {
		t.Fatalf("expected registry error, got %v", err)
	}
}

func TestPresentBroadcastsAndExports(t *testing.T) {
	srv := httptest.NewServer(relay.New(relay.Config{AllowAnyOrigin: true}).Handler())
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	cfg := writeTestConfig(t, `log_level: error
presenter:
  broadcast_url: `+wsURL+`
  export_on_stop: true
  export_dir: $DIR/out
`)
	out, _, err := runCLI(t, []string{"present"}, cfg, "~hel\nhello class\nphotosynthesis\n")
	if err != nil {
		t.Fatalf("present: %v", err)
	}
	if out != "hello class\nphotosynthesis\n" {
		t.Fatalf("expected only finalized lines on a non-terminal, got %q", out)
	}

	dir := filepath.Join(filepath.Dir(cfg), "out")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read export dir: %v", err)
	}
	if len(entries) != 1 || !strings.HasPrefix(entries[0].Name(), "livesub-transcript-") {
		t.Fatalf("expected one transcript export, got %v", entries)
	}
	b, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if string(b) != "hello class\nphotosynthesis" {
		t.Fatalf("unexpected export %q", string(b))
	}
}

func TestPresentRejectsBadDeepgramSettings(t *testing.T) {
	cfg := writeTestConfig(t, `log_level: error
recognition:
  provider: deepgram
  settings:
    model: nova-2
`)
	_, _, err := runCLI(t, []string{"present"}, cfg, "")
	if err == nil || !strings.Contains(err.Error(), "missing: api_key") {
		t.Fatalf("expected missing api_key, got %v", err)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	target := filepath.Join(t.TempDir(), "livesub.yaml")
	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", ""); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, target, "")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "mymemory en -> th")
}

func TestShareRequiresRecipient(t *testing.T) {
	cfg := writeTestConfig(t, "log_level: error\n")
	if _, _, err := runCLI(t, []string{"share"}, cfg, ""); err == nil {
		t.Fatalf("expected error without --to")
	}
}
