package mastodon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/paracket/paracket/internal/models"
	"github.com/paracket/paracket/internal/publisher"
)

const platformName = "mastodon"

// Publisher posts statuses to a Mastodon instance. The instance base URL is
// part of the credentials, since every account lives on its own server.
type Publisher struct {
	logger *zap.Logger
	client *http.Client
}

func New(logger *zap.Logger) *Publisher {
	return &Publisher{
		logger: logger,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *Publisher) Name() string {
	return platformName
}

func (p *Publisher) ValidateCredentials(creds models.Credentials) error {
	if err := publisher.RequireCredentials(platformName, creds, "instance", "access_token"); err != nil {
		return err
	}
	if _, err := parseInstanceURL(creds["instance"]); err != nil {
		return publisher.NewError(platformName, publisher.KindConfig, "invalid instance URL %q: %v", creds["instance"], err)
	}
	return nil
}

type statusResponse struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Error string `json:"error"`
}

func (p *Publisher) Publish(ctx context.Context, content string, _ publisher.Target, creds models.Credentials) (*publisher.Result, error) {
	if err := p.ValidateCredentials(creds); err != nil {
		return nil, err
	}

	instance, _ := parseInstanceURL(creds["instance"])

	form := url.Values{}
	form.Set("status", content)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		instance+"/api/v1/statuses", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds["access_token"])
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, publisher.NewError(platformName, publisher.KindTransient, "request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	var parsed statusResponse
	_ = json.Unmarshal(respBody, &parsed)

	switch resp.StatusCode {
	case http.StatusOK:
		if parsed.ID == "" {
			return nil, publisher.NewError(platformName, publisher.KindTransient,
				"response missing status id: %s", string(respBody))
		}
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, publisher.NewError(platformName, publisher.KindAuth,
			"invalid or expired access token: %s", apiError(parsed, respBody))
	case http.StatusNotFound:
		return nil, publisher.NewError(platformName, publisher.KindConfig,
			"instance %s does not look like a Mastodon server", instance)
	case http.StatusUnprocessableEntity:
		return nil, publisher.NewError(platformName, publisher.KindContent,
			"status rejected: %s", apiError(parsed, respBody))
	case http.StatusTooManyRequests:
		return nil, publisher.NewError(platformName, publisher.KindTransient,
			"rate limited: %s", apiError(parsed, respBody))
	default:
		return nil, publisher.NewError(platformName, publisher.KindTransient,
			"unexpected status %d: %s", resp.StatusCode, apiError(parsed, respBody))
	}

	p.logger.Info("Mastodon status published",
		zap.String("status_id", parsed.ID),
		zap.String("instance", instance))

	return &publisher.Result{
		Platform:    platformName,
		PostID:      parsed.ID,
		URL:         parsed.URL,
		PublishedAt: time.Now(),
	}, nil
}

func parseInstanceURL(raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host")
	}
	return strings.TrimSuffix(u.Scheme+"://"+u.Host, "/"), nil
}

func apiError(parsed statusResponse, raw []byte) string {
	if parsed.Error != "" {
		return parsed.Error
	}
	return string(raw)
}
