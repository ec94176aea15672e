package translator

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/harunnryd/livesub/pkg/errorsx"
	"github.com/harunnryd/livesub/pkg/resilience"
)

const DefaultRequestTimeout = 10 * time.Second

// Provider performs a single outbound translation request.
type Provider interface {
	Name() string
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// statusError classifies a non-2xx response: 429 is a rate limit, 5xx is
// transient, anything else is permanent.
func statusError(provider string, code int, status string) error {
	switch {
	case code == http.StatusTooManyRequests:
		return errorsx.Wrap(resilience.RateLimitError{Provider: provider, Message: "rate limit exceeded"}, errorsx.ReasonTranslateRateLimit)
	case code >= 500:
		return errorsx.Wrap(resilience.TransientError{Err: fmt.Errorf("%s: HTTP %s", provider, status)}, errorsx.ReasonTranslateRequest)
	default:
		return errorsx.Newf(errorsx.ReasonTranslateAPI, "%s: HTTP %s", provider, status)
	}
}

// transportError marks network failures as retryable.
func transportError(provider string, err error) error {
	return errorsx.Wrap(resilience.TransientError{Err: fmt.Errorf("%s request: %w", provider, err)}, errorsx.ReasonTranslateRequest)
}

func httpClient(c *http.Client, timeout time.Duration) *http.Client {
	if c != nil {
		return c
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &http.Client{Timeout: timeout}
}
