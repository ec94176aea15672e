package translator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/harunnryd/livesub/pkg/errorsx"
	"github.com/harunnryd/livesub/pkg/resilience"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const DefaultOpenAIModel = "gpt-4o-mini"

type OpenAIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// OpenAI translates a single word or phrase with a chat completion.
type OpenAI struct {
	cfg    OpenAIConfig
	client openai.Client
}

func NewOpenAI(cfg OpenAIConfig, httpc *http.Client) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient(httpc, cfg.Timeout)),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{cfg: cfg, client: openai.NewClient(opts...)}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Translate(ctx context.Context, text, source, target string) (string, error) {
	system := fmt.Sprintf("Translate the user's text from %s to %s. Reply with the translation only, no quotes or notes.", languageLabel(source), languageLabel(target))
	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", statusError(o.Name(), apiErr.StatusCode, fmt.Sprintf("%d", apiErr.StatusCode))
		}
		if ctx.Err() != nil {
			return "", errorsx.Wrap(err, errorsx.ReasonTranslateRequest)
		}
		return "", errorsx.Wrap(resilience.TransientError{Err: err}, errorsx.ReasonTranslateRequest)
	}
	if len(completion.Choices) == 0 {
		return "", errorsx.Newf(errorsx.ReasonTranslateAPI, "openai: no choices")
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

func languageLabel(code string) string {
	if code == "" || code == AutoLanguage {
		return "the detected language"
	}
	return code
}
