package errors_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/credbroker/internal/errors"
	"github.com/systmms/credbroker/internal/logging"
	"github.com/systmms/credbroker/internal/store"
	"github.com/systmms/credbroker/pkg/secret"
)

// TestUserErrorFormatting verifies UserError displays properly
func TestUserErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.UserError{
		Message:    "Operation failed",
		Details:    "Connection timeout",
		Suggestion: "Check network connectivity",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "Operation failed")
	assert.Contains(t, errMsg, "Connection timeout")
	assert.Contains(t, errMsg, "Check network connectivity")
	assert.Contains(t, errMsg, "💡")
}

func TestUserErrorFallsBackToCause(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("keyring locked")
	err := errors.UserError{Err: cause}

	assert.Equal(t, "keyring locked", err.Error())
	assert.ErrorIs(t, err, cause)
}

// TestConfigErrorFormatting verifies ConfigError displays with context
func TestConfigErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.ConfigError{
		Field:      "authority",
		Value:      "kerberos",
		Message:    "unknown authority",
		Suggestion: "Use one of auto, basic, github, aad, msa",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "authority")
	assert.Contains(t, errMsg, "kerberos")
	assert.Contains(t, errMsg, "unknown authority")
	assert.Contains(t, errMsg, "auto, basic")
}

func TestSuggest(t *testing.T) {
	t.Parallel()

	access := &store.AccessError{
		Op:      "access",
		Message: "run without sudo",
		Err:     store.ErrOwnershipMismatch,
	}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"access error carries its own remediation", fmt.Errorf("get: %w", access), "run without sudo"},
		{"invalid target", fmt.Errorf("parse: %w", secret.ErrInvalidTargetURI), "absolute URL"},
		{"invalid namespace", store.ErrInvalidNamespace, "non-empty"},
		{"secret service", stderrors.New("The name org.freedesktop.secrets was not provided by any .service files: Secret Service unavailable"), "gnome-keyring"},
		{"timeout", stderrors.New("context deadline exceeded"), "timed out"},
		{"dns", stderrors.New("dial tcp: lookup dev.azure.com: no such host"), "httpProxy"},
		{"transient", stderrors.New("read: connection reset by peer"), "Run the git command again"},
		{"unknown", stderrors.New("something else"), ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := errors.Suggest(tt.err)
			if tt.want == "" {
				assert.Empty(t, got)
				return
			}
			assert.Contains(t, got, tt.want)
		})
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	assert.False(t, errors.IsRetryable(nil))
	assert.True(t, errors.IsRetryable(fmt.Errorf("get token: %w", context.DeadlineExceeded)))
	assert.True(t, errors.IsRetryable(stderrors.New("i/o timeout")))
	assert.True(t, errors.IsRetryable(stderrors.New("read: connection reset by peer")))
	assert.True(t, errors.IsRetryable(stderrors.New("429 Too Many Requests")))
	assert.False(t, errors.IsRetryable(stderrors.New("401 unauthorized")))
}

func TestSimplifyError(t *testing.T) {
	t.Parallel()

	t.Run("nil", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, errors.SimplifyError(nil))
	})

	t.Run("user errors pass through", func(t *testing.T) {
		t.Parallel()
		in := errors.UserError{Message: "already friendly"}
		assert.Equal(t, in, errors.SimplifyError(fmt.Errorf("wrapped: %w", in)))
	})

	t.Run("config errors pass through", func(t *testing.T) {
		t.Parallel()
		in := errors.ConfigError{Field: "namespace", Message: "bad"}
		assert.Equal(t, in, errors.SimplifyError(in))
	})

	t.Run("access errors become user errors", func(t *testing.T) {
		t.Parallel()
		access := &store.AccessError{Op: "write", Key: "git:https://example.com", Err: stderrors.New("dbus: connection closed")}

		got := errors.SimplifyError(access)

		var userErr errors.UserError
		require.ErrorAs(t, got, &userErr)
		assert.Equal(t, "Cannot use the credential store", userErr.Message)
		assert.Contains(t, userErr.Details, "git:https://example.com")
		assert.Contains(t, userErr.Suggestion, "Secret Service")
		assert.True(t, store.IsAccessError(got))
	})

	t.Run("unknown errors are unchanged", func(t *testing.T) {
		t.Parallel()
		in := stderrors.New("boom")
		assert.Equal(t, in, errors.SimplifyError(in))
	})
}

// TestSecretsStayRedacted checks that wrapping a redacted value keeps it out of the message.
func TestSecretsStayRedacted(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("authentication failed with token %s", logging.Secret("ghp_super_secret"))
	err := errors.SimplifyError(errors.UserError{Message: "GitHub rejected the request", Err: cause})

	assert.NotContains(t, err.Error(), "ghp_super_secret")
	assert.NotContains(t, fmt.Sprintf("%v", stderrors.Unwrap(err)), "ghp_super_secret")
}
