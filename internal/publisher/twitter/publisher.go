package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dghubble/oauth1"
	"go.uber.org/zap"

	"github.com/paracket/paracket/internal/models"
	"github.com/paracket/paracket/internal/publisher"
)

const platformName = "twitter"

// Publisher posts short text to the Twitter v2 API, signing requests with
// the OAuth 1.0a user-context credential quad.
type Publisher struct {
	logger  *zap.Logger
	baseURL string
}

type Option func(*Publisher)

// WithBaseURL points the client at a different API host, for tests.
func WithBaseURL(url string) Option {
	return func(p *Publisher) {
		p.baseURL = url
	}
}

func New(logger *zap.Logger, opts ...Option) *Publisher {
	p := &Publisher{
		logger:  logger,
		baseURL: "https://api.twitter.com",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) Name() string {
	return platformName
}

func (p *Publisher) ValidateCredentials(creds models.Credentials) error {
	return publisher.RequireCredentials(platformName, creds,
		"api_key", "api_secret", "access_token", "access_secret")
}

type createTweetRequest struct {
	Text string `json:"text"`
}

type createTweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
	Detail string `json:"detail"`
	Title  string `json:"title"`
}

func (p *Publisher) Publish(ctx context.Context, content string, _ publisher.Target, creds models.Credentials) (*publisher.Result, error) {
	if err := p.ValidateCredentials(creds); err != nil {
		return nil, err
	}

	body, err := json.Marshal(createTweetRequest{Text: content})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tweet: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	config := oauth1.NewConfig(creds["api_key"], creds["api_secret"])
	token := oauth1.NewToken(creds["access_token"], creds["access_secret"])
	client := config.Client(oauth1.NoContext, token)

	resp, err := client.Do(req)
	if err != nil {
		return nil, publisher.NewError(platformName, publisher.KindTransient, "request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	var parsed createTweetResponse
	_ = json.Unmarshal(respBody, &parsed)

	switch {
	case resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK:
		if parsed.Data.ID == "" {
			return nil, publisher.NewError(platformName, publisher.KindTransient,
				"response missing tweet id: %s", string(respBody))
		}
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, publisher.NewError(platformName, publisher.KindAuth,
			"unauthorized: %s", apiDetail(parsed, respBody))
	case resp.StatusCode == http.StatusForbidden:
		// Covers both write-permission problems and duplicate/oversized
		// content rejections; the detail text distinguishes them.
		if parsed.Title == "Forbidden" || parsed.Detail == "" {
			return nil, publisher.NewError(platformName, publisher.KindAuth,
				"forbidden: %s", apiDetail(parsed, respBody))
		}
		return nil, publisher.NewError(platformName, publisher.KindContent,
			"rejected: %s", parsed.Detail)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, publisher.NewError(platformName, publisher.KindTransient,
			"rate limited: %s", apiDetail(parsed, respBody))
	default:
		return nil, publisher.NewError(platformName, publisher.KindTransient,
			"unexpected status %d: %s", resp.StatusCode, apiDetail(parsed, respBody))
	}

	p.logger.Info("Tweet published", zap.String("tweet_id", parsed.Data.ID))

	return &publisher.Result{
		Platform:    platformName,
		PostID:      parsed.Data.ID,
		URL:         fmt.Sprintf("https://twitter.com/i/web/status/%s", parsed.Data.ID),
		PublishedAt: time.Now(),
	}, nil
}

func apiDetail(parsed createTweetResponse, raw []byte) string {
	if parsed.Detail != "" {
		return parsed.Detail
	}
	return string(raw)
}
