package secret_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/credbroker/pkg/secret"
)

func TestTargetNameStability(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		uris []string
		want string
	}{
		{
			name: "https_default_port",
			uris: []string{
				"https://example.com",
				"https://example.com/",
				"https://example.com///",
				"https://example.com:443",
				"https://example.com:443/",
				"  https://example.com  ",
				"https://EXAMPLE.com/",
				"HTTPS://example.com",
				"https://example.com/some/repo.git",
				"https://example.com/?query=1",
			},
			want: "ns:https://example.com",
		},
		{
			name: "http_default_port",
			uris: []string{"http://example.com", "http://example.com:80/"},
			want: "ns:http://example.com",
		},
		{
			name: "explicit_non_default_port",
			uris: []string{"https://example.com:8443", "https://example.com:8443/path/"},
			want: "ns:https://example.com:8443",
		},
		{
			name: "http_on_https_port",
			uris: []string{"http://example.com:443"},
			want: "ns:http://example.com:443",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			for _, raw := range tt.uris {
				target, err := secret.NewTargetURI(raw)
				require.NoError(t, err, raw)
				assert.Equal(t, tt.want, secret.TargetName(target, "ns"), raw)
			}
		})
	}
}

func TestPathedTargetName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{raw: "https://example.com", want: "git:https://example.com"},
		{raw: "https://example.com/", want: "git:https://example.com"},
		{raw: "https://example.com/org/repo", want: "git:https://example.com/org/repo"},
		{raw: "https://example.com/org/repo/", want: "git:https://example.com/org/repo"},
		{raw: "https://example.com:8080/org", want: "git:https://example.com:8080/org"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()

			target := secret.MustTargetURI(tt.raw)
			assert.Equal(t, tt.want, secret.PathedTargetName(target, "git"))
		})
	}
}

func TestNewTargetURIRejectsRelative(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "   ", "example.com", "/relative/path", "https://"} {
		_, err := secret.NewTargetURI(raw)
		assert.ErrorIs(t, err, secret.ErrInvalidTargetURI, raw)
	}
}

func TestTargetURIAccessors(t *testing.T) {
	t.Parallel()

	target := secret.MustTargetURI("https://john@Example.com:8443/org/repo")
	assert.Equal(t, "https", target.Scheme())
	assert.Equal(t, "example.com", target.Host())
	assert.Equal(t, 8443, target.Port())
	assert.False(t, target.IsDefaultPort())
	assert.Equal(t, "/org/repo", target.AbsolutePath())
	assert.Equal(t, "john", target.Username())
	assert.Equal(t, "https://example.com", target.Format(secret.FormatOptions{}))
	assert.Equal(t, "https://john@example.com:8443/org/repo", target.Format(secret.FormatOptions{Username: true, Port: true, Path: true}))
	assert.False(t, target.HasProxy())

	withProxy, err := target.WithProxy("http://proxy.local:3128")
	require.NoError(t, err)
	assert.True(t, withProxy.HasProxy())
	assert.Equal(t, "proxy.local:3128", withProxy.ProxyURI().Host)

	withActual, err := target.WithActual("https://alias.example.com/org/repo")
	require.NoError(t, err)
	assert.Equal(t, "alias.example.com", withActual.ActualURI().Host)
	assert.Equal(t, secret.TargetName(target, "git"), secret.TargetName(withActual, "git"))
	assert.Equal(t, "example.com", target.ActualURI().Hostname())
}

func TestTargetURIResolve(t *testing.T) {
	t.Parallel()

	target := secret.MustTargetURI("https://example.com/org/repo")
	resolved, err := target.Resolve("/_apis/connectiondata")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/_apis/connectiondata", resolved.String())

	_, err = secret.TargetURI{}.Resolve("/x")
	assert.ErrorIs(t, err, secret.ErrInvalidTargetURI)
}
