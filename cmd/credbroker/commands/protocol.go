package commands

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strings"

	dserrors "github.com/systmms/credbroker/internal/errors"
	"github.com/systmms/credbroker/pkg/secret"
)

// Request is one git credential helper exchange: key=value lines terminated by a blank
// line or EOF.
type Request struct {
	Protocol string
	Host     string
	Path     string
	Username string
	Password string
	URL      string
}

// ReadRequest parses the attributes git writes to a helper's stdin. Unknown keys are ignored;
// git adds new ones over time.
func ReadRequest(r io.Reader) (Request, error) {
	var req Request
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			break
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return Request{}, dserrors.UserError{
				Message:    fmt.Sprintf("malformed credential attribute %q", line),
				Suggestion: "Input must be key=value lines as written by git credential",
			}
		}
		switch key {
		case "protocol":
			req.Protocol = value
		case "host":
			req.Host = value
		case "path":
			req.Path = value
		case "username":
			req.Username = value
		case "password":
			req.Password = value
		case "url":
			req.URL = value
		}
	}
	if err := scanner.Err(); err != nil {
		return Request{}, fmt.Errorf("failed to read credential request: %w", err)
	}

	if req.URL != "" {
		if err := req.applyURL(); err != nil {
			return Request{}, err
		}
	}
	return req, nil
}

// applyURL fills attributes from url=; explicit attributes win.
func (r *Request) applyURL() error {
	u, err := url.Parse(r.URL)
	if err != nil {
		return dserrors.UserError{
			Message: fmt.Sprintf("invalid url attribute %q", r.URL),
			Err:     err,
		}
	}
	if r.Protocol == "" {
		r.Protocol = u.Scheme
	}
	if r.Host == "" {
		r.Host = u.Host
	}
	if r.Path == "" {
		r.Path = strings.TrimPrefix(u.Path, "/")
	}
	if r.Username == "" && u.User != nil {
		r.Username = u.User.Username()
	}
	return nil
}

// TargetURI turns the request into the target the broker keys entries by.
func (r Request) TargetURI() (secret.TargetURI, error) {
	if r.Protocol == "" || r.Host == "" {
		return secret.TargetURI{}, dserrors.UserError{
			Message:    "credential request is missing protocol or host",
			Suggestion: "Run through git, or pass protocol= and host= lines on stdin",
			Err:        secret.ErrInvalidTargetURI,
		}
	}
	raw := r.Protocol + "://" + r.Host
	if r.Path != "" {
		raw += "/" + strings.TrimPrefix(r.Path, "/")
	}
	return secret.NewTargetURI(raw)
}

// Credential returns the username/password carried by a store request.
func (r Request) Credential() (secret.Credential, error) {
	return secret.NewCredential(r.Username, r.Password)
}

// WriteCredential answers a get request.
func WriteCredential(w io.Writer, cred secret.Credential) error {
	_, err := fmt.Fprintf(w, "username=%s\npassword=%s\n", cred.Username(), cred.Password())
	return err
}
