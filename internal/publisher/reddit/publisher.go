package reddit

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
	"golang.org/x/oauth2"

	"github.com/paracket/paracket/internal/models"
	"github.com/paracket/paracket/internal/publisher"
	"github.com/paracket/paracket/pkg/util"
)

const (
	platformName = "reddit"
	userAgent    = "paracket/0.1 scheduled post publisher"
)

// Publisher submits self posts to a subreddit or user profile using a Reddit
// script app (OAuth2 password grant). Content carries the title on its first
// line; the client splits it into the separate title/text fields the submit
// API demands.
type Publisher struct {
	logger   *zap.Logger
	tokenURL string
	apiURL   string
}

type Option func(*Publisher)

// WithEndpoints points the client at different token/API hosts, for tests.
func WithEndpoints(tokenURL, apiURL string) Option {
	return func(p *Publisher) {
		p.tokenURL = tokenURL
		p.apiURL = apiURL
	}
}

func New(logger *zap.Logger, opts ...Option) *Publisher {
	p := &Publisher{
		logger:   logger,
		tokenURL: "https://www.reddit.com/api/v1/access_token",
		apiURL:   "https://oauth.reddit.com",
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
		"client_id", "client_secret", "username", "password")
}

type submitResponse struct {
	JSON struct {
		Errors [][]any `json:"errors"`
		Data   struct {
			URL  string `json:"url"`
			Name string `json:"name"`
		} `json:"data"`
	} `json:"json"`
}

func (p *Publisher) Publish(ctx context.Context, content string, target publisher.Target, creds models.Credentials) (*publisher.Result, error) {
	if err := p.ValidateCredentials(creds); err != nil {
		return nil, err
	}
	if target.Subreddit == "" {
		return nil, publisher.NewError(platformName, publisher.KindConfig, "missing target subreddit")
	}

	title, body := util.SplitTitleBody(content)
	if title == "" {
		return nil, publisher.NewError(platformName, publisher.KindContent, "content has no title line")
	}

	client, err := p.authenticatedClient(ctx, creds)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("sr", target.Subreddit)
	form.Set("kind", "self")
	form.Set("title", title)
	form.Set("text", body)
	form.Set("api_type", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.apiURL+"/api/submit", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, publisher.NewError(platformName, publisher.KindTransient, "submit request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, publisher.NewError(platformName, publisher.KindAuth, "unauthorized: %s", string(respBody))
	case http.StatusForbidden:
		return nil, publisher.NewError(platformName, publisher.KindTarget,
			"posting to r/%s is forbidden (private or restricted)", target.Subreddit)
	case http.StatusNotFound:
		return nil, publisher.NewError(platformName, publisher.KindTarget,
			"r/%s does not exist", target.Subreddit)
	case http.StatusTooManyRequests:
		return nil, publisher.NewError(platformName, publisher.KindTransient, "rate limited")
	default:
		return nil, publisher.NewError(platformName, publisher.KindTransient,
			"unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed submitResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, publisher.NewError(platformName, publisher.KindTransient,
			"failed to parse submit response: %v", err)
	}

	if len(parsed.JSON.Errors) > 0 {
		return nil, mapSubmitError(parsed.JSON.Errors[0], target.Subreddit)
	}

	p.logger.Info("Reddit post submitted",
		zap.String("subreddit", target.Subreddit),
		zap.String("url", parsed.JSON.Data.URL))

	return &publisher.Result{
		Platform:    platformName,
		PostID:      parsed.JSON.Data.Name,
		URL:         parsed.JSON.Data.URL,
		PublishedAt: time.Now(),
	}, nil
}

// authenticatedClient exchanges the script-app credentials for a bearer token
// via the password grant and returns an HTTP client that carries it.
func (p *Publisher) authenticatedClient(ctx context.Context, creds models.Credentials) (*http.Client, error) {
	conf := &oauth2.Config{
		ClientID:     creds["client_id"],
		ClientSecret: creds["client_secret"],
		Endpoint: oauth2.Endpoint{
			TokenURL:  p.tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	token, err := conf.PasswordCredentialsToken(ctx, creds["username"], creds["password"])
	if err != nil {
		return nil, publisher.NewError(platformName, publisher.KindAuth, "token exchange failed: %v", err)
	}

	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(token)), nil
}

// mapSubmitError translates Reddit's [code, message, field] error triple into
// the failure taxonomy.
func mapSubmitError(triple []any, subreddit string) error {
	if len(triple) == 0 {
		return publisher.NewError(platformName, publisher.KindTransient, "submit rejected with no error code")
	}
	code, _ := triple[0].(string)
	message := ""
	if len(triple) > 1 {
		message, _ = triple[1].(string)
	}

	switch code {
	case "SUBREDDIT_NOEXIST":
		return publisher.NewError(platformName, publisher.KindTarget, "r/%s does not exist", subreddit)
	case "SUBREDDIT_NOTALLOWED", "SUBREDDIT_REQUIRED":
		return publisher.NewError(platformName, publisher.KindTarget,
			"posting to r/%s is not allowed: %s", subreddit, message)
	case "RATELIMIT":
		return publisher.NewError(platformName, publisher.KindTransient, "rate limited: %s", message)
	case "USER_REQUIRED", "INVALID_OPTION":
		return publisher.NewError(platformName, publisher.KindAuth, "%s: %s", code, message)
	case "TOO_LONG", "NO_TEXT":
		return publisher.NewError(platformName, publisher.KindContent, "%s: %s", code, message)
	default:
		return publisher.NewError(platformName, publisher.KindTransient, "%s: %s", code, message)
	}
}
