package transport_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/credbroker/internal/transport"
	"github.com/systmms/credbroker/pkg/secret"
)

func newClient(t *testing.T) *transport.Client {
	t.Helper()
	c, err := transport.NewClient(transport.Config{UserAgent: "credbroker-test/1.0"}, nil)
	require.NoError(t, err)
	return c
}

func TestGetSendsHeadersAndReadsBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "credbroker-test/1.0", r.UserAgent())
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Header().Set("X-Test", "yes")
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	headers := http.Header{}
	headers.Set("Accept", "application/json")
	resp, err := newClient(t).Get(context.Background(), secret.MustTargetURI(srv.URL+"/path"), headers, transport.Options{})
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())
	assert.Equal(t, "yes", resp.Header.Get("X-Test"))
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
}

func TestRedirects(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/end", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newClient(t)
	target := secret.MustTargetURI(srv.URL + "/start")

	resp, err := c.Head(context.Background(), target, nil, transport.Options{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	resp, err = c.Head(context.Background(), target, nil, transport.Options{AllowRedirections: true})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestCredentialsChallengeAndPreAuthenticate(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="test"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "payload", string(body))
		if user == "john" && pass == "pw" {
			w.WriteHeader(http.StatusCreated)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newClient(t)
	cred := secret.MustCredential("john", "pw")
	target := secret.MustTargetURI(srv.URL)

	resp, err := c.Post(context.Background(), target, nil, []byte("payload"), transport.Options{UseCredentials: true, Credential: &cred})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, int32(2), requests.Load())

	requests.Store(0)
	resp, err = c.Post(context.Background(), target, nil, []byte("payload"), transport.Options{UseCredentials: true, PreAuthenticate: true, Credential: &cred})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, int32(1), requests.Load())

	_, err = c.Get(context.Background(), target, nil, transport.Options{UseCredentials: true})
	assert.Error(t, err)
}

func TestCookiesFollowRedirects(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("FedAuth")
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/end", http.StatusFound)
			return
		}
		_, _ = io.WriteString(w, c.Value)
	}))
	defer srv.Close()

	opts := transport.Options{
		AllowRedirections: true,
		UseCookies:        true,
		Cookies:           []*http.Cookie{{Name: "FedAuth", Value: "cookie-value"}},
	}
	resp, err := newClient(t).Get(context.Background(), secret.MustTargetURI(srv.URL+"/start"), nil, opts)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cookie-value", string(resp.Body))
}

func TestUserInfoIsNotSent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, ok := r.BasicAuth()
		assert.False(t, ok)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	u := srv.URL[:len("http://")] + "john:secret@" + srv.URL[len("http://"):]
	_, err := newClient(t).Get(context.Background(), secret.MustTargetURI(u), nil, transport.Options{})
	require.NoError(t, err)
}

func TestTimeoutIsTransient(t *testing.T) {
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

	_, err := newClient(t).Get(context.Background(), secret.MustTargetURI(srv.URL), nil, transport.Options{Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.True(t, transport.IsTimeout(err))

	var te *transport.Error
	assert.ErrorAs(t, err, &te)
}

func TestNewClientRejectsBadProxy(t *testing.T) {
	t.Parallel()

	_, err := transport.NewClient(transport.Config{Proxy: "::not a url"}, nil)
	assert.Error(t, err)

	c, err := transport.NewClient(transport.Config{Proxy: "http://proxy.local:3128"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "credbroker", c.UserAgent())
}

func TestInvalidTarget(t *testing.T) {
	t.Parallel()

	_, err := newClient(t).Get(context.Background(), secret.TargetURI{}, nil, transport.Options{})
	assert.ErrorIs(t, err, secret.ErrInvalidTargetURI)
}
