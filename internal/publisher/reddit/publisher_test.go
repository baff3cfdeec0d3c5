package reddit

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

func testCreds() models.Credentials {
	return models.Credentials{
		"client_id":     "cid",
		"client_secret": "csec",
		"username":      "poster",
		"password":      "hunter2",
	}
}

// newTestServer stands in for both reddit hosts: the token endpoint and the
// oauth API.
func newTestServer(t *testing.T, submit http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostFormValue("grant_type") != "password" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.PostFormValue("password") != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"bearer-token","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/api/submit", submit)
	return httptest.NewServer(mux)
}

func newTestPublisher(srv *httptest.Server) *Publisher {
	return New(zap.NewNop(), WithEndpoints(srv.URL+"/api/v1/access_token", srv.URL))
}

func TestPublishSuccess(t *testing.T) {
	var gotTitle, gotText, gotSr, gotAuth string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, r.ParseForm())
		gotTitle = r.PostFormValue("title")
		gotText = r.PostFormValue("text")
		gotSr = r.PostFormValue("sr")
		w.Write([]byte(`{"json":{"errors":[],"data":{"url":"https://reddit.com/r/technology/abc","name":"t3_abc"}}}`))
	})
	defer srv.Close()

	p := newTestPublisher(srv)
	content := "We shipped a thing\n\nFirst paragraph.\n\nSecond paragraph."

	result, err := p.Publish(context.Background(), content, publisher.Target{Subreddit: "technology"}, testCreds())
	require.NoError(t, err)

	assert.Equal(t, "Bearer bearer-token", gotAuth)
	assert.Equal(t, "We shipped a thing", gotTitle)
	assert.Equal(t, "First paragraph.\n\nSecond paragraph.", gotText)
	assert.Equal(t, "technology", gotSr)
	assert.Equal(t, "t3_abc", result.PostID)
	assert.Equal(t, "https://reddit.com/r/technology/abc", result.URL)
}

func TestPublishSubredditDoesNotExist(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"json":{"errors":[["SUBREDDIT_NOEXIST","that subreddit doesn't exist","sr"]]}}`))
	})
	defer srv.Close()

	p := newTestPublisher(srv)
	_, err := p.Publish(context.Background(), "Title\n\nBody", publisher.Target{Subreddit: "nope"}, testCreds())
	require.Error(t, err)
	assert.Equal(t, publisher.KindTarget, publisher.KindOf(err))
	assert.Contains(t, err.Error(), "r/nope")
}

func TestPublishRestrictedSubreddit(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"json":{"errors":[["SUBREDDIT_NOTALLOWED","you aren't allowed to post there","sr"]]}}`))
	})
	defer srv.Close()

	p := newTestPublisher(srv)
	_, err := p.Publish(context.Background(), "Title\n\nBody", publisher.Target{Subreddit: "locked"}, testCreds())
	require.Error(t, err)
	assert.Equal(t, publisher.KindTarget, publisher.KindOf(err))
}

func TestPublishBadPassword(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("submit must not be reached when the token exchange fails")
	})
	defer srv.Close()

	creds := testCreds()
	creds["password"] = "wrong"

	p := newTestPublisher(srv)
	_, err := p.Publish(context.Background(), "Title\n\nBody", publisher.Target{Subreddit: "technology"}, creds)
	require.Error(t, err)
	assert.Equal(t, publisher.KindAuth, publisher.KindOf(err))
}

func TestPublishRequiresTarget(t *testing.T) {
	p := New(zap.NewNop())
	_, err := p.Publish(context.Background(), "Title\n\nBody", publisher.Target{}, testCreds())
	require.Error(t, err)
	assert.Equal(t, publisher.KindConfig, publisher.KindOf(err))
}

func TestPublishRequiresTitleLine(t *testing.T) {
	p := New(zap.NewNop())
	_, err := p.Publish(context.Background(), "   \nbody only", publisher.Target{Subreddit: "technology"}, testCreds())
	require.Error(t, err)
	assert.Equal(t, publisher.KindContent, publisher.KindOf(err))
}

func TestValidateCredentials(t *testing.T) {
	p := New(zap.NewNop())

	creds := testCreds()
	delete(creds, "client_secret")
	err := p.ValidateCredentials(creds)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client_secret")

	assert.NoError(t, p.ValidateCredentials(testCreds()))
}
