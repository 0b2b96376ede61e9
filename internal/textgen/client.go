package textgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrNoExplanation is returned when upstream declines to produce text.
var ErrNoExplanation = errors.New("textgen: no explanation")

// ExplainRequest describes a ranked list the caller wants narrated.
type ExplainRequest struct {
	UserID       string   `json:"userId"`
	Categories   []string `json:"categories"`
	Regions      []string `json:"regions"`
	Difficulties []string `json:"difficulties"`
	TourTitles   []string `json:"tourTitles"`
}

// Client defines the contract for the external text-generation service.
type Client interface {
	Explain(ctx context.Context, req ExplainRequest) (string, error)
}

// HTTPClient implements Client over HTTP.
type HTTPClient struct {
	client *resty.Client
	logger *slog.Logger
}

type explainResponse struct {
	Text string `json:"text"`
}

// NewHTTPClient constructs a text-generation client rooted at baseURL.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) (*HTTPClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("textgen: base url is required")
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(1).
		SetRetryWaitTime(100 * time.Millisecond)
	if apiKey != "" {
		client.SetHeader("X-API-Key", apiKey)
	}

	return &HTTPClient{
		client: client,
		logger: logger.With(slog.String("component", "textgen")),
	}, nil
}

// Explain asks upstream for a short natural-language reason behind a recommendation list.
func (c *HTTPClient) Explain(ctx context.Context, req ExplainRequest) (string, error) {
	var out explainResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/explain")
	if err != nil {
		return "", fmt.Errorf("textgen: request: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		text := strings.TrimSpace(out.Text)
		if text == "" {
			return "", ErrNoExplanation
		}
		return text, nil
	case http.StatusNoContent, http.StatusNotFound:
		return "", ErrNoExplanation
	default:
		c.logger.Warn("unexpected upstream status", slog.Int("status", resp.StatusCode()))
		return "", fmt.Errorf("textgen: upstream returned %d", resp.StatusCode())
	}
}
