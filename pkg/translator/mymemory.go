package translator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/harunnryd/livesub/pkg/errorsx"
)

const DefaultMyMemoryEndpoint = "https://api.mymemory.translated.net/get"

type MyMemoryConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Email    string        `mapstructure:"email"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MyMemory calls GET <endpoint>?q=<text>&langpair=<src>|<dst>.
type MyMemory struct {
	cfg    MyMemoryConfig
	client *http.Client
}

func NewMyMemory(cfg MyMemoryConfig, client *http.Client) *MyMemory {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultMyMemoryEndpoint
	}
	return &MyMemory{cfg: cfg, client: httpClient(client, cfg.Timeout)}
}

func (m *MyMemory) Name() string { return "mymemory" }

type myMemoryResponse struct {
	ResponseStatus  json.RawMessage `json:"responseStatus"`
	ResponseDetails string          `json:"responseDetails"`
	ResponseData    struct {
		TranslatedText string `json:"translatedText"`
	} `json:"responseData"`
}

func (m *MyMemory) Translate(ctx context.Context, text, source, target string) (string, error) {
	q := url.Values{}
	q.Set("q", text)
	q.Set("langpair", source+"|"+target)
	if m.cfg.Email != "" {
		q.Set("de", m.cfg.Email)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonTranslateRequest)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return "", transportError(m.Name(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", statusError(m.Name(), resp.StatusCode, resp.Status)
	}

	var out myMemoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonTranslateAPI)
	}
	code := parseStatus(out.ResponseStatus)
	if code != http.StatusOK {
		if code == http.StatusTooManyRequests || code >= 500 {
			return "", statusError(m.Name(), code, strconv.Itoa(code)+" "+out.ResponseDetails)
		}
		return "", errorsx.Newf(errorsx.ReasonTranslateAPI, "mymemory: status %d: %s", code, out.ResponseDetails)
	}
	return strings.TrimSpace(out.ResponseData.TranslatedText), nil
}

// parseStatus accepts responseStatus as a number or a numeric string.
func parseStatus(raw json.RawMessage) int {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
