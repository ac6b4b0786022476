package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeGitHub serves the token endpoint and the two API calls Exchange makes.
func fakeGitHub(t *testing.T, user GitHubUser, emails []githubEmail) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "gh-access-token",
			"token_type":   "bearer",
		})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gh-access-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(user)
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(emails)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testProvider(srv *httptest.Server) *GitHubProvider {
	return newGitHubProvider("client-id", "client-secret", "http://localhost/callback",
		oauth2.Endpoint{
			AuthURL:  srv.URL + "/login/oauth/authorize",
			TokenURL: srv.URL + "/login/oauth/access_token",
		},
		srv.URL,
	)
}

func TestAuthURL_CarriesStateAndClientID(t *testing.T) {
	p := NewGitHubProvider("client-id", "secret", "http://localhost:5000/auth/github/callback")

	u, err := url.Parse(p.AuthURL("state-123"))
	require.NoError(t, err)

	assert.Equal(t, "github.com", u.Host)
	assert.Equal(t, "state-123", u.Query().Get("state"))
	assert.Equal(t, "client-id", u.Query().Get("client_id"))
}

func TestExchange_ProfileEmail(t *testing.T) {
	srv := fakeGitHub(t, GitHubUser{ID: 42, Login: "octocat", Email: "octo@example.com"}, nil)

	user, err := testProvider(srv).Exchange(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, "octo@example.com", user.Email)
}

func TestExchange_FallsBackToPrimaryVerifiedEmail(t *testing.T) {
	srv := fakeGitHub(t, GitHubUser{ID: 42, Login: "octocat"}, []githubEmail{
		{Email: "old@example.com", Primary: false, Verified: true},
		{Email: "primary@example.com", Primary: true, Verified: true},
	})

	user, err := testProvider(srv).Exchange(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, "primary@example.com", user.Email)
}

func TestExchange_NoVerifiedEmail(t *testing.T) {
	srv := fakeGitHub(t, GitHubUser{ID: 42, Login: "octocat"}, []githubEmail{
		{Email: "unverified@example.com", Primary: true, Verified: false},
	})

	_, err := testProvider(srv).Exchange(context.Background(), "code")
	assert.ErrorIs(t, err, ErrNoVerifiedEmail)
}

func TestExchange_InvalidUser(t *testing.T) {
	srv := fakeGitHub(t, GitHubUser{}, nil)

	_, err := testProvider(srv).Exchange(context.Background(), "code")
	assert.Error(t, err)
}
