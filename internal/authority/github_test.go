package authority_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/credbroker/internal/authority"
	"github.com/systmms/credbroker/internal/transport"
	"github.com/systmms/credbroker/pkg/scope"
	"github.com/systmms/credbroker/pkg/secret"
	"github.com/systmms/credbroker/tests/testutil"
)

func newTransport(t *testing.T) *transport.Client {
	t.Helper()
	c, err := transport.NewClient(transport.Config{UserAgent: "credbroker-test"}, nil)
	require.NoError(t, err)
	return c
}

func githubServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "octocat" || pass != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		switch r.URL.Path {
		case "/api/v3/authorizations":
			assert.Equal(t, http.MethodPost, r.Method)
			var req struct {
				Scopes []string `json:"scopes"`
				Note   string   `json:"note"`
			}
			body, _ := io.ReadAll(r.Body)
			assert.NoError(t, json.Unmarshal(body, &req))
			assert.ElementsMatch(t, []string{"gist", "repo"}, req.Scopes)
			assert.Equal(t, "test note", req.Note)

			switch r.Header.Get("X-GitHub-OTP") {
			case "":
				w.Header().Set("X-GitHub-OTP", "required; app")
				w.WriteHeader(http.StatusUnauthorized)
			case "123456":
				w.WriteHeader(http.StatusCreated)
				_, _ = io.WriteString(w, `{"token":"ghp_issued"}`)
			default:
				w.WriteHeader(http.StatusUnauthorized)
			}
		case "/api/v3/user":
			_, _ = io.WriteString(w, `{"login":"octocat"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestGitHubAcquireToken(t *testing.T) {
	t.Parallel()

	srv := githubServer(t)
	defer srv.Close()

	gh := authority.NewGitHub(newTransport(t), authority.GitHubOptions{Note: "test note"})
	target := secret.MustTargetURI(srv.URL)

	result, token := gh.AcquireToken(context.Background(), target, "octocat", "hunter2", "", scope.GitHubDefault)
	assert.Equal(t, authority.ResultTwoFactorApp, result)
	assert.True(t, result.IsTwoFactor())
	assert.Nil(t, token)

	result, token = gh.AcquireToken(context.Background(), target, "octocat", "hunter2", "123456", scope.GitHubDefault)
	assert.Equal(t, authority.ResultSuccess, result)
	require.NotNil(t, token)
	assert.Equal(t, "ghp_issued", token.Value())
	assert.Equal(t, secret.TokenPersonal, token.Type())

	result, token = gh.AcquireToken(context.Background(), target, "octocat", "hunter2", "000000", scope.GitHubDefault)
	assert.Equal(t, authority.ResultFailure, result)
	assert.Nil(t, token)

	result, _ = gh.AcquireToken(context.Background(), target, "octocat", "wrong", "", scope.GitHubDefault)
	assert.Equal(t, authority.ResultFailure, result)
}

func TestGitHubTwoFactorSms(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-GitHub-OTP", "required; sms")
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	gh := authority.NewGitHub(newTransport(t), authority.GitHubOptions{})
	result, token := gh.AcquireToken(context.Background(), secret.MustTargetURI(srv.URL), "u", "p", "", scope.GitHubRepo)
	assert.Equal(t, authority.ResultTwoFactorSms, result)
	assert.Nil(t, token)
}

func TestGitHubFailureModes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, "{not json") }},
		{"missing token", func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, `{"id":1}`) }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			gh := authority.NewGitHub(newTransport(t), authority.GitHubOptions{})
			result, token := gh.AcquireToken(context.Background(), secret.MustTargetURI(srv.URL), "u", "p", "", scope.GitHubRepo)
			assert.Equal(t, authority.ResultFailure, result)
			assert.Nil(t, token)
		})
	}
}

func TestGitHubUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	target := secret.MustTargetURI(srv.URL)
	srv.Close()

	gh := authority.NewGitHub(newTransport(t), authority.GitHubOptions{})
	result, token := gh.AcquireToken(context.Background(), target, "u", "p", "", scope.GitHubRepo)
	assert.Equal(t, authority.ResultFailure, result)
	assert.Nil(t, token)
	assert.False(t, gh.ValidateCredentials(context.Background(), target, secret.MustCredential("u", "p")))
}

func TestGitHubValidateCredentials(t *testing.T) {
	t.Parallel()

	srv := githubServer(t)
	defer srv.Close()

	gh := authority.NewGitHub(newTransport(t), authority.GitHubOptions{})
	target := secret.MustTargetURI(srv.URL)

	assert.True(t, gh.ValidateCredentials(context.Background(), target, secret.MustCredential("octocat", "hunter2")))
	assert.False(t, gh.ValidateCredentials(context.Background(), target, secret.MustCredential("octocat", "nope")))
}

func TestResultString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "success", authority.ResultSuccess.String())
	assert.Equal(t, "failure", authority.ResultFailure.String())
	assert.Equal(t, "two_factor_app", authority.ResultTwoFactorApp.String())
	assert.Equal(t, "two_factor_sms", authority.ResultTwoFactorSms.String())
	assert.False(t, authority.ResultSuccess.IsTwoFactor())
}

func TestGitHubIssuedTokenIsRedactedInLogs(t *testing.T) {
	t.Parallel()

	srv := githubServer(t)
	defer srv.Close()

	logs := testutil.NewTestLogger(t, true)
	gh := authority.NewGitHub(newTransport(t), authority.GitHubOptions{Note: "test note", Logger: logs.Logger()})

	result, token := gh.AcquireToken(context.Background(), secret.MustTargetURI(srv.URL), "octocat", "hunter2", "123456", scope.GitHubDefault)
	require.Equal(t, authority.ResultSuccess, result)
	require.NotNil(t, token)

	logs.AssertContains(t, "github issued token")
	logs.AssertRedacted(t, "ghp_issued")
	logs.AssertNotContains(t, "hunter2")
}

func TestGitHubValidationTimeoutIsTransient(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	logs := testutil.NewTestLogger(t, false)
	gh := authority.NewGitHub(newTransport(t), authority.GitHubOptions{Timeout: 50 * time.Millisecond, Logger: logs.Logger()})

	assert.False(t, gh.ValidateCredentials(context.Background(), secret.MustTargetURI(srv.URL), secret.MustCredential("octocat", "hunter2")))
	logs.AssertContains(t, "timed out, try again later")
	logs.AssertNotContains(t, "hunter2")
}
