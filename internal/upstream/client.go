// Package upstream performs the HTTP calls to the provider's web pages and APIs.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/clambin/go-common/http/metrics"
	"github.com/clambin/go-common/http/roundtripper"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
)

// DefaultTimeout is the maximum duration of a single request.
const DefaultTimeout = 15 * time.Second

// Headers are sent with every request.
var Headers = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows) Gecko/20100101 Firefox/68.0",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "de-DE,de;q=0.8,en-US;q=0.5,en;q=0.3",
}

// StatusError is returned when the provider answers with anything other than 200 OK.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := "unexpected status " + strconv.Itoa(e.StatusCode) + " " + http.StatusText(e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// IsUnauthorized returns true if the provider rejected the API key.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

// IsNotFound returns true if the provider didn't find the requested page.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

func hasStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}

// Client gets pages and API responses from the provider.
type Client struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
	breaker    *gobreaker.CircuitBreaker
}

// NewClient returns a Client that sends its requests through rt (http.DefaultTransport if nil). If requestMetrics
// is not nil, requests are measured. A breaker stops calling the provider after repeated transport failures.
// HTTP errors don't trip it.
func NewClient(rt http.RoundTripper, requestMetrics metrics.RequestMetrics, logger *slog.Logger) *Client {
	if rt == nil {
		rt = http.DefaultTransport
	}
	if requestMetrics != nil {
		rt = roundtripper.New(
			roundtripper.WithRequestMetrics(requestMetrics),
			roundtripper.WithRoundTripper(rt),
		)
	}
	return &Client{
		HTTPClient: &http.Client{Transport: rt, Timeout: DefaultTimeout},
		Logger:     logger,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "wunderground",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			IsSuccessful: func(err error) bool {
				var statusErr *StatusError
				return err == nil || errors.As(err, &statusErr) || errors.Is(err, errAborted)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// errAborted marks requests stopped by the caller's context. These say nothing about the provider's health.
var errAborted = errors.New("request aborted")

// Get returns the body of target. Any status other than 200 results in a StatusError.
func (c *Client) Get(ctx context.Context, target string) ([]byte, error) {
	body, err := c.breaker.Execute(func() (any, error) {
		return c.get(ctx, target)
	})
	if err != nil {
		return nil, err
	}
	return body.([]byte), nil
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	for key, value := range Headers {
		req.Header.Set(key, value)
	}

	c.Logger.Debug("requesting", "url", Redact(target))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("get %s: %w: %w", Redact(target), errAborted, ctxErr)
		}
		return nil, fmt.Errorf("get %s: %w", Redact(target), err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", Redact(target), err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: snippet(body)}
	}
	return body, nil
}

const maxSnippet = 200

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxSnippet {
		s = s[:maxSnippet] + "..."
	}
	return s
}

var (
	apiKeyParam = regexp.MustCompile(`(apiKey=)[^&]+`)
	legacyKey   = regexp.MustCompile(`(/api/)[^/]+/`)
)

// Redact masks the API keys in a URL, so it can be logged.
func Redact(target string) string {
	target = apiKeyParam.ReplaceAllString(target, "${1}xxx")
	return legacyKey.ReplaceAllString(target, "${1}xxx/")
}

// NewRequestMetrics returns the request metrics for the provider client. Paths are reduced to their first element,
// so keys and locations don't end up in metric labels.
func NewRequestMetrics(namespace, subsystem string, labels prometheus.Labels) metrics.RequestMetrics {
	return metrics.NewRequestMetrics(metrics.Options{
		Namespace:   namespace,
		Subsystem:   subsystem,
		ConstLabels: labels,
		LabelValues: func(request *http.Request, code int) (string, string, string) {
			return request.Method, request.URL.Host + reducePath(request.URL.Path), strconv.Itoa(code)
		},
	})
}

func reducePath(path string) string {
	parts := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 3)
	switch {
	case parts[0] == "":
		return "/"
	case parts[0] == "v2" || parts[0] == "v3" || parts[0] == "v1":
		// api.weather.com: keep the version and the product
		if len(parts) > 1 {
			return "/" + parts[0] + "/" + parts[1]
		}
	}
	return "/" + parts[0]
}
