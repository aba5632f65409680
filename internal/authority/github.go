package authority

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/systmms/credbroker/internal/logging"
	"github.com/systmms/credbroker/internal/metrics"
	"github.com/systmms/credbroker/internal/transport"
	"github.com/systmms/credbroker/pkg/scope"
	"github.com/systmms/credbroker/pkg/secret"
)

const (
	// DefaultTimeout bounds authority-specific calls.
	DefaultTimeout = 15 * time.Second

	githubHost          = "github.com"
	githubAPIBase       = "https://api.github.com"
	githubOTPHeader     = "X-GitHub-OTP"
	githubAcceptHeader  = "application/vnd.github.v3+json"
	githubAuthorizePath = "/authorizations"
	githubUserPath      = "/user"
)

// Result is the outcome of a token acquisition.
type Result int

const (
	ResultFailure Result = iota
	ResultSuccess
	ResultTwoFactorApp
	ResultTwoFactorSms
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultTwoFactorApp:
		return "two_factor_app"
	case ResultTwoFactorSms:
		return "two_factor_sms"
	default:
		return "failure"
	}
}

// IsTwoFactor reports whether the authority asked for a one-time code.
func (r Result) IsTwoFactor() bool {
	return r == ResultTwoFactorApp || r == ResultTwoFactorSms
}

// Doer is the transport an authority sends requests through.
type Doer interface {
	Get(ctx context.Context, target secret.TargetURI, headers http.Header, opts transport.Options) (*transport.Response, error)
	Head(ctx context.Context, target secret.TargetURI, headers http.Header, opts transport.Options) (*transport.Response, error)
	Post(ctx context.Context, target secret.TargetURI, headers http.Header, body []byte, opts transport.Options) (*transport.Response, error)
}

// GitHub exchanges GitHub (or GitHub Enterprise) credentials for personal access tokens.
type GitHub struct {
	http    Doer
	timeout time.Duration
	note    string
	logger  *logging.Logger
}

// GitHubOptions configures a GitHub authority.
type GitHubOptions struct {
	Timeout time.Duration
	// Note labels created tokens. Defaults to "credbroker on <hostname> at <time>".
	Note   string
	Logger *logging.Logger
}

// NewGitHub creates the GitHub authority.
func NewGitHub(client Doer, opts GitHubOptions) *GitHub {
	g := &GitHub{http: client, timeout: opts.Timeout, note: opts.Note, logger: opts.Logger}
	if g.timeout <= 0 {
		g.timeout = DefaultTimeout
	}
	if g.logger == nil {
		g.logger = logging.Nop()
	}
	return g
}

type githubAuthorizationRequest struct {
	Scopes []string `json:"scopes"`
	Note   string   `json:"note"`
}

type githubAuthorizationResponse struct {
	Token string `json:"token"`
}

// AcquireToken creates a personal access token with the given scope. otp may be empty; when
// the account requires two-factor authentication and no code was supplied the result names
// the challenge kind.
func (g *GitHub) AcquireToken(ctx context.Context, targetURI secret.TargetURI, username, password, otp string, sc scope.Scope) (Result, *secret.Token) {
	result, token, err := g.acquireToken(ctx, targetURI, username, password, otp, sc)
	if err != nil {
		g.logger.Warn("github token acquisition for %s failed: %v", targetURI.Host(), err)
	}
	metrics.AuthorityRequest("github", result.String())
	return result, token
}

func (g *GitHub) acquireToken(ctx context.Context, targetURI secret.TargetURI, username, password, otp string, sc scope.Scope) (Result, *secret.Token, error) {
	endpoint, err := githubEndpoint(targetURI, githubAuthorizePath)
	if err != nil {
		return ResultFailure, nil, err
	}
	cred, err := secret.NewCredential(username, password)
	if err != nil {
		return ResultFailure, nil, err
	}

	body, err := json.Marshal(githubAuthorizationRequest{Scopes: sc.Scopes(), Note: g.tokenNote()})
	if err != nil {
		return ResultFailure, nil, err
	}

	headers := http.Header{}
	headers.Set("Accept", githubAcceptHeader)
	headers.Set("Content-Type", "application/json")
	if otp != "" {
		headers.Set(githubOTPHeader, otp)
	}

	resp, err := g.http.Post(ctx, endpoint, headers, body, transport.Options{
		UseCredentials:  true,
		PreAuthenticate: true,
		Credential:      &cred,
		UseProxy:        true,
		Timeout:         g.timeout,
	})
	if err != nil {
		return ResultFailure, nil, &Error{Op: "github authorize", Err: err}
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var parsed githubAuthorizationResponse
		if err := json.Unmarshal(resp.Body, &parsed); err != nil || parsed.Token == "" {
			return ResultFailure, nil, &Error{Op: "github authorize", StatusCode: resp.StatusCode, Err: ErrMalformedResponse}
		}
		token, err := secret.NewToken(parsed.Token, secret.TokenPersonal, uuid.Nil)
		if err != nil {
			return ResultFailure, nil, &Error{Op: "github authorize", StatusCode: resp.StatusCode, Err: err}
		}
		g.logger.Debug("github issued token %s for %s", logging.Secret(parsed.Token), targetURI.Host())
		return ResultSuccess, &token, nil

	case http.StatusUnauthorized:
		if otp == "" {
			if challenge := resp.Header.Get(githubOTPHeader); challenge != "" {
				if strings.Contains(strings.ToLower(challenge), "app") {
					return ResultTwoFactorApp, nil, nil
				}
				return ResultTwoFactorSms, nil, nil
			}
		}
		return ResultFailure, nil, &Error{Op: "github authorize", StatusCode: resp.StatusCode, Message: "credentials or code rejected"}

	default:
		return ResultFailure, nil, &Error{Op: "github authorize", StatusCode: resp.StatusCode}
	}
}

// ValidateCredentials reports whether cred authenticates against the user endpoint.
func (g *GitHub) ValidateCredentials(ctx context.Context, targetURI secret.TargetURI, cred secret.Credential) bool {
	endpoint, err := githubEndpoint(targetURI, githubUserPath)
	if err != nil {
		g.logger.Warn("github validation for %s: %v", targetURI, err)
		return false
	}

	headers := http.Header{}
	headers.Set("Accept", githubAcceptHeader)
	resp, err := g.http.Get(ctx, endpoint, headers, transport.Options{
		UseCredentials:  true,
		PreAuthenticate: true,
		Credential:      &cred,
		UseProxy:        true,
		Timeout:         g.timeout,
	})
	if err != nil {
		reportFailure(g.logger, "github", "github validation for "+targetURI.Host(), err)
		return false
	}

	ok := resp.IsSuccess()
	metrics.AuthorityRequest("github", outcome(ok))
	if !ok {
		g.logger.Debug("github rejected credentials for %s with %d", targetURI.Host(), resp.StatusCode)
	}
	return ok
}

func (g *GitHub) tokenNote() string {
	if g.note != "" {
		return g.note
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown host"
	}
	return fmt.Sprintf("credbroker on %s at %s", host, time.Now().Format(time.RFC3339))
}

// githubEndpoint maps a github.com target to the public API and anything else to the
// GitHub Enterprise API on the same host.
func githubEndpoint(targetURI secret.TargetURI, path string) (secret.TargetURI, error) {
	host := targetURI.Host()
	if host == githubHost || host == "www."+githubHost {
		return targetURI.Resolve(githubAPIBase + path)
	}
	return targetURI.Resolve("/api/v3" + path)
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
