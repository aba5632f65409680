package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// AssertSecretRedacted verifies that a secret value does not appear in a string and that
// the [REDACTED] marker does.
//
// Example usage:
//
//	AssertSecretRedacted(t, logs.Output(), "pat-value")
func AssertSecretRedacted(t *testing.T, output, secretValue string) {
	t.Helper()

	assert.NotContains(t, output, secretValue,
		"Secret value %q should be redacted, but appears in output", secretValue)
	assert.Contains(t, output, "[REDACTED]",
		"Expected [REDACTED] marker when secret is used")
}

// AssertNoSecretLeak verifies that none of secrets appear in output. Unlike
// AssertSecretRedacted it does not require a [REDACTED] marker, so it also fits output
// that never mentions the secrets at all, such as git protocol answers for another target.
func AssertNoSecretLeak(t *testing.T, output string, secrets []string) {
	t.Helper()

	for _, secret := range secrets {
		assert.NotContains(t, output, secret,
			"Secret %q should not appear in output", secret)
	}
}
