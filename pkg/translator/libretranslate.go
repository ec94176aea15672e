package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/harunnryd/livesub/pkg/errorsx"
)

const DefaultLibreTranslateEndpoint = "https://libretranslate.de/translate"

type LibreTranslateConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LibreTranslate posts {q, source, target, format} as JSON.
type LibreTranslate struct {
	cfg    LibreTranslateConfig
	client *http.Client
}

func NewLibreTranslate(cfg LibreTranslateConfig, client *http.Client) *LibreTranslate {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultLibreTranslateEndpoint
	}
	return &LibreTranslate{cfg: cfg, client: httpClient(client, cfg.Timeout)}
}

func (l *LibreTranslate) Name() string { return "libretranslate" }

type libreRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type libreResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error"`
}

func (l *LibreTranslate) Translate(ctx context.Context, text, source, target string) (string, error) {
	body, err := json.Marshal(libreRequest{Q: text, Source: source, Target: target, Format: "text", APIKey: l.cfg.APIKey})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonTranslateRequest)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := l.client.Do(req)
	if err != nil {
		return "", transportError(l.Name(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", statusError(l.Name(), resp.StatusCode, resp.Status)
	}
	var out libreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonTranslateAPI)
	}
	if out.Error != "" {
		return "", errorsx.Newf(errorsx.ReasonTranslateAPI, "libretranslate: %s", out.Error)
	}
	return strings.TrimSpace(out.TranslatedText), nil
}
