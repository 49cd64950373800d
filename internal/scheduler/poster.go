package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AReid987/real-estate-agents/pkg/clients"
	"github.com/AReid987/real-estate-agents/pkg/config"
	"github.com/AReid987/real-estate-agents/pkg/logging"
	"github.com/AReid987/real-estate-agents/pkg/models"
)

// Poster delivers content to a social platform and returns the platform's
// post id.
type Poster interface {
	Post(ctx context.Context, platform string, content models.JSONB) (string, error)
}

// HTTPPoster posts through an external social gateway. Calls carry a bounded
// timeout and a single retry with backoff.
type HTTPPoster struct {
	client  *http.Client
	baseURL string
	apiKey  string
	retry   clients.RetryConfig
}

// NewHTTPPosterFromEnv builds a poster from SOCIAL_API_URL / SOCIAL_API_KEY
func NewHTTPPosterFromEnv() *HTTPPoster {
	return NewHTTPPoster(
		config.GetEnv("SOCIAL_API_URL", ""),
		config.GetEnv("SOCIAL_API_KEY", ""),
	)
}

func NewHTTPPoster(baseURL, apiKey string) *HTTPPoster {
	return &HTTPPoster{
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: clients.DefaultTransport(),
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		retry:   clients.SingleRetryConfig(),
	}
}

// IsConfigured reports whether a gateway URL is set
func (p *HTTPPoster) IsConfigured() bool {
	return p.baseURL != ""
}

type postRequest struct {
	Platform string       `json:"platform"`
	Content  models.JSONB `json:"content"`
}

type postResponse struct {
	PostID string `json:"post_id"`
	Error  string `json:"error,omitempty"`
}

func (p *HTTPPoster) Post(ctx context.Context, platform string, content models.JSONB) (string, error) {
	if !p.IsConfigured() {
		return "", fmt.Errorf("social gateway is not configured")
	}

	payload, err := json.Marshal(postRequest{Platform: platform, Content: content})
	if err != nil {
		return "", fmt.Errorf("failed to marshal post request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/posts", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create post request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := clients.DoWithRetry(ctx, p.client, req, p.retry)
	if err != nil {
		return "", fmt.Errorf("post request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("social gateway returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var out postResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode post response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("social gateway error: %s", out.Error)
	}

	return out.PostID, nil
}

// LogPoster stands in for the gateway when none is configured. It reports
// success with a synthetic post id so the workflow stays exercisable in
// development.
type LogPoster struct {
	logger logging.Logger
}

func NewLogPoster(logger logging.Logger) *LogPoster {
	return &LogPoster{logger: logger}
}

func (p *LogPoster) Post(ctx context.Context, platform string, content models.JSONB) (string, error) {
	postID := fmt.Sprintf("mock_%s_%d", platform, time.Now().UnixNano())
	p.logger.WithFields(logging.Fields{
		"platform": platform,
		"post_id":  postID,
	}).Info("Mock social post published")
	return postID, nil
}
