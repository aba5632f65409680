package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/systmms/credbroker/internal/store"
	"github.com/systmms/credbroker/internal/transport"
	"github.com/systmms/credbroker/pkg/secret"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// Suggest returns a remediation hint for errors raised while talking to the OS credential
// store or an authority. It returns "" when nothing useful can be said.
func Suggest(err error) string {
	if err == nil {
		return ""
	}

	var access *store.AccessError
	if errors.As(err, &access) && access.Message != "" {
		return access.Message
	}

	switch {
	case errors.Is(err, secret.ErrInvalidTargetURI):
		return "Pass an absolute URL such as https://dev.azure.com/org"
	case errors.Is(err, store.ErrInvalidNamespace):
		return "Namespaces must be non-empty and free of " + store.IllegalNamespaceChars
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "secret service") || strings.Contains(errStr, "dbus"):
		return "No Secret Service provider is running. Start gnome-keyring or KWallet, or unlock your login keyring"
	case strings.Contains(errStr, "keychain") && strings.Contains(errStr, "denied"):
		return "Allow credbroker to access your login keychain in Keychain Access"
	case transport.IsTimeout(err) || strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded"):
		return "The operation timed out. Check your network connection or raise timeouts.network"
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host"):
		return "Unable to connect. Check your network and the httpProxy setting"
	case strings.Contains(errStr, "proxy"):
		return "Check the httpProxy setting or the CREDBROKER_HTTP_PROXY variable"
	}
	if IsRetryable(err) {
		return "The failure looks temporary. Run the git command again"
	}
	return ""
}

// IsRetryable reports whether err is likely to go away on a second attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if transport.IsTimeout(err) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"timeout",
		"temporary failure",
		"connection reset",
		"broken pipe",
		"too many requests",
	} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// SimplifyError turns errors into something fit to print to a terminal. UserError and
// ConfigError pass through; anything else gains a suggestion when one applies.
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	var userErr UserError
	if errors.As(err, &userErr) {
		return userErr
	}
	var cfgErr ConfigError
	if errors.As(err, &cfgErr) {
		return cfgErr
	}

	var access *store.AccessError
	if errors.As(err, &access) {
		return UserError{
			Message:    "Cannot use the credential store",
			Details:    access.Error(),
			Suggestion: Suggest(err),
			Err:        err,
		}
	}

	if suggestion := Suggest(err); suggestion != "" {
		return UserError{
			Message:    err.Error(),
			Suggestion: suggestion,
			Err:        err,
		}
	}

	return err
}
