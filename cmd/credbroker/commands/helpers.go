package commands

import (
	"fmt"
	"time"

	"github.com/systmms/credbroker/internal/broker"
	dserrors "github.com/systmms/credbroker/internal/errors"
	"github.com/systmms/credbroker/pkg/secret"
)

// purgeGrace bounds how long a command waits for the background purge before exiting.
const purgeGrace = 2 * time.Second

// waitPurge lets the startup purge finish so the process does not exit mid-enumeration.
func waitPurge(b *broker.Broker) {
	select {
	case <-b.PurgeDone():
	case <-time.After(purgeGrace):
	}
}

// readRequest parses stdin into a request and its target.
func readRequest(rt *Runtime) (Request, secret.TargetURI, error) {
	req, err := ReadRequest(rt.Stdin)
	if err != nil {
		return Request{}, secret.TargetURI{}, err
	}
	target, err := req.TargetURI()
	if err != nil {
		return Request{}, secret.TargetURI{}, err
	}
	return req, target, nil
}

// parseTarget validates a URL given on the command line.
func parseTarget(raw string) (secret.TargetURI, error) {
	target, err := secret.NewTargetURI(raw)
	if err != nil {
		return secret.TargetURI{}, dserrors.UserError{
			Message:    fmt.Sprintf("invalid URL %q", raw),
			Suggestion: dserrors.Suggest(err),
			Err:        err,
		}
	}
	return target, nil
}
