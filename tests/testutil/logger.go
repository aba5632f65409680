package testutil

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/systmms/credbroker/internal/logging"
)

// TestLogger captures the output of a real logging.Logger for assertions.
//
// Example usage:
//
//	logs := NewTestLogger(t, true)
//	gh := authority.NewGitHub(client, authority.GitHubOptions{Logger: logs.Logger()})
//	...
//	logs.AssertRedacted(t, "ghp_secret")
type TestLogger struct {
	mu     sync.Mutex
	buffer bytes.Buffer
	logger *logging.Logger
}

// NewTestLogger creates a capturing logger. Debug messages are kept only when debug is true.
func NewTestLogger(t *testing.T, debug bool) *TestLogger {
	t.Helper()

	l := &TestLogger{}
	l.logger = logging.NewWithWriter(lockedWriter{l}, debug)
	return l
}

// Logger is the logger to hand to the code under test.
func (l *TestLogger) Logger() *logging.Logger {
	return l.logger
}

// Output returns everything logged so far.
func (l *TestLogger) Output() string {
	l.logger.Sync()

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buffer.String()
}

// Lines returns the non-empty output lines.
func (l *TestLogger) Lines() []string {
	var lines []string
	for _, line := range strings.Split(l.Output(), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// AssertContains asserts that the log output contains substr.
func (l *TestLogger) AssertContains(t *testing.T, substr string) {
	t.Helper()
	assert.Contains(t, l.Output(), substr, "Expected log output to contain %q", substr)
}

// AssertNotContains asserts that the log output does not contain substr.
func (l *TestLogger) AssertNotContains(t *testing.T, substr string) {
	t.Helper()
	assert.NotContains(t, l.Output(), substr, "Expected log output to NOT contain %q", substr)
}

// AssertRedacted asserts that secretValue was logged only in redacted form.
func (l *TestLogger) AssertRedacted(t *testing.T, secretValue string) {
	t.Helper()
	AssertSecretRedacted(t, l.Output(), secretValue)
}

type lockedWriter struct{ l *TestLogger }

func (w lockedWriter) Write(p []byte) (int, error) {
	w.l.mu.Lock()
	defer w.l.mu.Unlock()
	return w.l.buffer.Write(p)
}
