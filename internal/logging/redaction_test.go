package logging_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/systmms/credbroker/internal/logging"
)

func TestSecretRedaction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		format string
	}{
		{name: "string_verb", format: "%s"},
		{name: "value_verb", format: "%v"},
		{name: "go_syntax_verb", format: "%#v"},
		{name: "quoted_verb", format: "%q"},
		{name: "hex_verb", format: "%x"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := fmt.Sprintf(tt.format, logging.Secret("super-secret-password"))
			assert.Equal(t, "[REDACTED]", got)
		})
	}
}

func TestLoggerRedactsSecrets(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, false)

	logger.Info("stored token %s for %s", logging.Secret("pat-12345"), "https://example.com")
	logger.Warn("warn %v", logging.Secret("pat-12345"))
	logger.Error("error %#v", logging.Secret("pat-12345"))

	out := buf.String()
	assert.Contains(t, out, "stored token [REDACTED] for https://example.com")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "ERROR")
	assert.NotContains(t, out, "pat-12345")
}

func TestLoggerDebugGate(t *testing.T) {
	t.Parallel()

	var quiet, verbose bytes.Buffer
	logging.NewWithWriter(&quiet, false).Debug("hidden %d", 1)
	logging.NewWithWriter(&verbose, true).Debug("shown %d", 2)

	assert.Empty(t, quiet.String())
	assert.Contains(t, verbose.String(), "shown 2")
	assert.True(t, logging.NewWithWriter(&verbose, true).DebugEnabled())
}

func TestLoggerNamed(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logging.NewWithWriter(&buf, false).Named("store").Info("hello")
	assert.Contains(t, buf.String(), "store")
	assert.Contains(t, buf.String(), "hello")

	assert.NotPanics(t, func() {
		logging.Nop().Info("discarded %s", "x")
		logging.Nop().Sync()
	})
}
