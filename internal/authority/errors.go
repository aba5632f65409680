package authority

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/systmms/credbroker/internal/logging"
	"github.com/systmms/credbroker/internal/metrics"
	"github.com/systmms/credbroker/internal/transport"
)

// Error describes a failed authority exchange. Public authority methods never return it;
// they log it and report a Result, nil or false instead.
type Error struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrMalformedResponse is wrapped when a response body cannot be used.
var ErrMalformedResponse = errors.New("malformed authority response")

// reportFailure logs a failed exchange and counts it. Timeouts are transient and counted apart
// so a slow network is not mistaken for rejected credentials.
func reportFailure(logger *logging.Logger, authority, what string, err error) {
	if transport.IsTimeout(err) {
		logger.Warn("%s timed out, try again later: %v", what, err)
		metrics.AuthorityRequest(authority, "timeout")
		return
	}
	logger.Warn("%s failed: %v", what, err)
	metrics.AuthorityRequest(authority, "failure")
}
