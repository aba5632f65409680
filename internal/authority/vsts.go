package authority

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
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
	// VstsBaseDomain is the host suffix of Azure DevOps (VSTS) accounts.
	VstsBaseDomain = "visualstudio.com"
	// DefaultTokenServiceURL issues session tokens for every VSTS account.
	DefaultTokenServiceURL = "https://app.vssps.visualstudio.com"

	vstsConnectionDataPath = "/_apis/connectiondata"
	vstsSessionTokenPath   = "/_apis/token/sessiontokens"
	vstsResourceTenant     = "X-VSS-ResourceTenant"
)

// VstsOptions configures a Vsts authority.
type VstsOptions struct {
	Timeout time.Duration
	// BaseDomain overrides VstsBaseDomain.
	BaseDomain      string
	TokenServiceURL string
	Logger          *logging.Logger
}

// Vsts talks to Azure DevOps accounts: tenant detection, credential validation and
// personal access token generation.
type Vsts struct {
	http         Doer
	timeout      time.Duration
	baseDomain   string
	tokenService string
	logger       *logging.Logger
}

// NewVsts creates the VSTS authority.
func NewVsts(client Doer, opts VstsOptions) *Vsts {
	v := &Vsts{
		http:         client,
		timeout:      opts.Timeout,
		baseDomain:   strings.ToLower(opts.BaseDomain),
		tokenService: strings.TrimRight(opts.TokenServiceURL, "/"),
		logger:       opts.Logger,
	}
	if v.timeout <= 0 {
		v.timeout = DefaultTimeout
	}
	if v.baseDomain == "" {
		v.baseDomain = VstsBaseDomain
	}
	if v.tokenService == "" {
		v.tokenService = DefaultTokenServiceURL
	}
	if v.logger == nil {
		v.logger = logging.Nop()
	}
	return v
}

// IsVstsHost reports whether targetURI points at a VSTS account.
func (v *Vsts) IsVstsHost(targetURI secret.TargetURI) bool {
	host := targetURI.Host()
	return host == v.baseDomain || strings.HasSuffix(host, "."+v.baseDomain)
}

// DetectAuthority probes the account for the directory that backs it. ok is false when the
// host is not a VSTS account or the probe failed. A nil tenant with ok means a Microsoft
// account backed VSTS account.
func (v *Vsts) DetectAuthority(ctx context.Context, targetURI secret.TargetURI) (tenant uuid.UUID, ok bool) {
	if !v.IsVstsHost(targetURI) {
		return uuid.Nil, false
	}

	endpoint, err := targetURI.Resolve(vstsConnectionDataPath)
	if err != nil {
		return uuid.Nil, false
	}

	resp, err := v.http.Head(ctx, endpoint, nil, transport.Options{UseProxy: true, Timeout: v.timeout})
	if err != nil {
		reportFailure(v.logger, "vsts", "authority detection for "+targetURI.Host(), err)
		return uuid.Nil, false
	}
	metrics.AuthorityRequest("vsts", "success")

	value := strings.TrimSpace(resp.Header.Get(vstsResourceTenant))
	if value == "" {
		v.logger.Debug("%s has no resource tenant, assuming Microsoft account", targetURI.Host())
		return uuid.Nil, true
	}
	// A header may list several tenants; the first one owns the account.
	if i := strings.IndexByte(value, ','); i >= 0 {
		value = strings.TrimSpace(value[:i])
	}
	id, err := uuid.Parse(value)
	if err != nil {
		v.logger.Warn("%s reported unparsable tenant %q", targetURI.Host(), value)
		return uuid.Nil, false
	}
	v.logger.Debug("%s is backed by tenant %s", targetURI.Host(), id)
	return id, true
}

// ValidateCredentials reports whether cred authenticates against the account.
func (v *Vsts) ValidateCredentials(ctx context.Context, targetURI secret.TargetURI, cred secret.Credential) bool {
	return v.validate(ctx, targetURI, transport.Options{
		UseCredentials:  true,
		PreAuthenticate: true,
		Credential:      &cred,
	}, nil)
}

// ValidateToken reports whether token authenticates against the account.
func (v *Vsts) ValidateToken(ctx context.Context, targetURI secret.TargetURI, token secret.Token) bool {
	headers, opts, err := tokenAuthorization(token)
	if err != nil {
		v.logger.Warn("cannot validate %s: %v", token, err)
		return false
	}
	return v.validate(ctx, targetURI, opts, headers)
}

func (v *Vsts) validate(ctx context.Context, targetURI secret.TargetURI, opts transport.Options, headers http.Header) bool {
	endpoint, err := targetURI.Resolve(vstsConnectionDataPath)
	if err != nil {
		return false
	}
	opts.UseProxy = true
	opts.Timeout = v.timeout

	resp, err := v.http.Get(ctx, endpoint, headers, opts)
	if err != nil {
		reportFailure(v.logger, "vsts", "validation against "+targetURI.Host(), err)
		return false
	}
	ok := resp.IsSuccess()
	metrics.AuthorityRequest("vsts", outcome(ok))
	return ok
}

type connectionData struct {
	InstanceID string `json:"instanceId"`
}

type sessionTokenRequest struct {
	Scope          string   `json:"scope"`
	TargetAccounts []string `json:"targetAccounts"`
	DisplayName    string   `json:"displayName"`
}

type sessionTokenResponse struct {
	Token string `json:"token"`
}

// GeneratePersonalAccessToken exchanges an access or federated token for a personal access
// token limited to sc. The account's instance ID is resolved first and becomes the new
// token's target identity.
func (v *Vsts) GeneratePersonalAccessToken(ctx context.Context, targetURI secret.TargetURI, accessToken secret.Token, sc scope.Scope, requireCompact bool) *secret.Token {
	token, err := v.generatePersonalAccessToken(ctx, targetURI, accessToken, sc, requireCompact)
	if err != nil {
		reportFailure(v.logger, "vsts", "personal access token generation for "+targetURI.Host(), err)
		return nil
	}
	metrics.AuthorityRequest("vsts", "success")
	return token
}

func (v *Vsts) generatePersonalAccessToken(ctx context.Context, targetURI secret.TargetURI, accessToken secret.Token, sc scope.Scope, requireCompact bool) (*secret.Token, error) {
	headers, opts, err := tokenAuthorization(accessToken)
	if err != nil {
		return nil, err
	}
	opts.UseProxy = true
	opts.Timeout = v.timeout

	instance, err := v.instanceID(ctx, targetURI, headers, opts)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("api-version", "1.0")
	if requireCompact {
		query.Set("tokentype", "compact")
	}
	endpoint, err := targetURI.Resolve(v.tokenService + vstsSessionTokenPath + "?" + query.Encode())
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(sessionTokenRequest{
		Scope:          sc.Value(),
		TargetAccounts: []string{instance.String()},
		DisplayName:    tokenDisplayName(targetURI),
	})
	if err != nil {
		return nil, err
	}

	postHeaders := headers.Clone()
	postHeaders.Set("Content-Type", "application/json")
	postHeaders.Set("Accept", "application/json")

	resp, err := v.http.Post(ctx, endpoint, postHeaders, body, opts)
	if err != nil {
		return nil, &Error{Op: "vsts session token", Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &Error{Op: "vsts session token", StatusCode: resp.StatusCode}
	}

	var parsed sessionTokenResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil || parsed.Token == "" {
		return nil, &Error{Op: "vsts session token", StatusCode: resp.StatusCode, Err: ErrMalformedResponse}
	}
	token, err := secret.NewToken(parsed.Token, secret.TokenPersonal, instance)
	if err != nil {
		return nil, &Error{Op: "vsts session token", Err: err}
	}
	v.logger.Debug("generated personal access token %s for %s", logging.Secret(parsed.Token), targetURI.Host())
	return &token, nil
}

func (v *Vsts) instanceID(ctx context.Context, targetURI secret.TargetURI, headers http.Header, opts transport.Options) (uuid.UUID, error) {
	endpoint, err := targetURI.Resolve(vstsConnectionDataPath)
	if err != nil {
		return uuid.Nil, err
	}

	getHeaders := headers.Clone()
	getHeaders.Set("Accept", "application/json")
	resp, err := v.http.Get(ctx, endpoint, getHeaders, opts)
	if err != nil {
		return uuid.Nil, &Error{Op: "vsts connection data", Err: err}
	}
	if !resp.IsSuccess() {
		return uuid.Nil, &Error{Op: "vsts connection data", StatusCode: resp.StatusCode}
	}

	var data connectionData
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return uuid.Nil, &Error{Op: "vsts connection data", Err: ErrMalformedResponse}
	}
	id, err := uuid.Parse(data.InstanceID)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, &Error{Op: "vsts connection data", Message: "missing instance id", Err: ErrMalformedResponse}
	}
	return id, nil
}

// tokenAuthorization attaches token the way VSTS expects: access tokens as bearer,
// federated tokens as the session cookie, personal access tokens as Basic.
func tokenAuthorization(token secret.Token) (http.Header, transport.Options, error) {
	headers := http.Header{}
	var opts transport.Options

	switch token.Type() {
	case secret.TokenAzureAccess:
		headers.Set("Authorization", "Bearer "+token.Value())
	case secret.TokenAzureFederated:
		headers.Set("Cookie", token.Value())
	case secret.TokenPersonal:
		cred, err := token.ToCredential()
		if err != nil {
			return nil, opts, err
		}
		opts.UseCredentials = true
		opts.PreAuthenticate = true
		opts.Credential = &cred
	default:
		return nil, opts, fmt.Errorf("%s cannot authorize VSTS requests", token.Type())
	}
	return headers, opts, nil
}

func tokenDisplayName(targetURI secret.TargetURI) string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown host"
	}
	return fmt.Sprintf("Git: %s on %s", targetURI.Format(secret.FormatOptions{}), host)
}
