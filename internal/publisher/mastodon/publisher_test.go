package mastodon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/paracket/paracket/internal/models"
	"github.com/paracket/paracket/internal/publisher"
)

func TestPublishSuccess(t *testing.T) {
	var gotAuth, gotStatus string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/statuses", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, r.ParseForm())
		gotStatus = r.PostFormValue("status")
		w.Write([]byte(`{"id":"999","url":"https://example.social/@me/999"}`))
	}))
	defer srv.Close()

	p := New(zap.NewNop())
	creds := models.Credentials{"instance": srv.URL, "access_token": "tok"}

	result, err := p.Publish(context.Background(), "hello fediverse #go", publisher.Target{}, creds)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "hello fediverse #go", gotStatus)
	assert.Equal(t, "999", result.PostID)
	assert.Equal(t, "https://example.social/@me/999", result.URL)
}

func TestPublishAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"The access token is invalid"}`))
	}))
	defer srv.Close()

	p := New(zap.NewNop())
	creds := models.Credentials{"instance": srv.URL, "access_token": "bad"}

	_, err := p.Publish(context.Background(), "hello", publisher.Target{}, creds)
	require.Error(t, err)
	assert.Equal(t, publisher.KindAuth, publisher.KindOf(err))
	assert.Contains(t, err.Error(), "The access token is invalid")
}

func TestPublishRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"Too many requests"}`))
	}))
	defer srv.Close()

	p := New(zap.NewNop())
	creds := models.Credentials{"instance": srv.URL, "access_token": "tok"}

	_, err := p.Publish(context.Background(), "hello", publisher.Target{}, creds)
	require.Error(t, err)
	assert.Equal(t, publisher.KindTransient, publisher.KindOf(err))
}

func TestValidateCredentials(t *testing.T) {
	p := New(zap.NewNop())

	err := p.ValidateCredentials(models.Credentials{"instance": "mastodon.social"})
	require.Error(t, err)
	assert.Equal(t, publisher.KindConfig, publisher.KindOf(err))

	err = p.ValidateCredentials(models.Credentials{"instance": "mastodon.social", "access_token": "tok"})
	assert.NoError(t, err)
}

func TestParseInstanceURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"mastodon.social", "https://mastodon.social"},
		{"https://mastodon.social", "https://mastodon.social"},
		{"https://mastodon.social/", "https://mastodon.social"},
		{"http://localhost:8080", "http://localhost:8080"},
	}
	for _, tc := range tests {
		got, err := parseInstanceURL(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}
}
