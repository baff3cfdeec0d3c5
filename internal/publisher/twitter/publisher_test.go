package twitter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/paracket/paracket/internal/models"
	"github.com/paracket/paracket/internal/publisher"
)

func testCreds() models.Credentials {
	return models.Credentials{
		"api_key":       "k",
		"api_secret":    "ks",
		"access_token":  "t",
		"access_secret": "ts",
	}
}

func TestPublishSuccess(t *testing.T) {
	var gotAuth string
	var gotBody createTweetRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/2/tweets", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"1750000000000000000","text":"hi"}}`))
	}))
	defer srv.Close()

	p := New(zap.NewNop(), WithBaseURL(srv.URL))
	result, err := p.Publish(context.Background(), "hi", publisher.Target{}, testCreds())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(gotAuth, "OAuth "), "request must be OAuth1-signed, got %q", gotAuth)
	assert.Equal(t, "hi", gotBody.Text)
	assert.Equal(t, "1750000000000000000", result.PostID)
	assert.Contains(t, result.URL, result.PostID)
}

func TestPublishUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"title":"Unauthorized","detail":"Unauthorized"}`))
	}))
	defer srv.Close()

	p := New(zap.NewNop(), WithBaseURL(srv.URL))
	_, err := p.Publish(context.Background(), "hi", publisher.Target{}, testCreds())
	require.Error(t, err)
	assert.Equal(t, publisher.KindAuth, publisher.KindOf(err))
}

func TestPublishRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"detail":"Too Many Requests"}`))
	}))
	defer srv.Close()

	p := New(zap.NewNop(), WithBaseURL(srv.URL))
	_, err := p.Publish(context.Background(), "hi", publisher.Target{}, testCreds())
	require.Error(t, err)
	assert.Equal(t, publisher.KindTransient, publisher.KindOf(err))
}

func TestPublishContentRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"title":"Invalid Request","detail":"Your Tweet text is too long."}`))
	}))
	defer srv.Close()

	p := New(zap.NewNop(), WithBaseURL(srv.URL))
	_, err := p.Publish(context.Background(), strings.Repeat("x", 400), publisher.Target{}, testCreds())
	require.Error(t, err)
	assert.Equal(t, publisher.KindContent, publisher.KindOf(err))
}

func TestValidateCredentials(t *testing.T) {
	p := New(zap.NewNop())

	creds := testCreds()
	delete(creds, "access_secret")
	err := p.ValidateCredentials(creds)
	require.Error(t, err)
	assert.Equal(t, publisher.KindConfig, publisher.KindOf(err))

	assert.NoError(t, p.ValidateCredentials(testCreds()))
}
