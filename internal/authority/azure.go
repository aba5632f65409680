package authority

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/systmms/credbroker/internal/logging"
	"github.com/systmms/credbroker/internal/metrics"
	"github.com/systmms/credbroker/pkg/secret"
)

// Well-known Azure DevOps identifiers.
const (
	DefaultAuthorityHost = "https://login.microsoftonline.com"
	DefaultClientID      = "872cd9fa-d31f-45e0-9eab-6e460a02d1f1"
	DefaultResource      = "499b84ac-1321-427f-aa17-267ca6975798"
	DefaultRedirectURL   = "http://localhost"

	// CommonTenant serves Microsoft accounts and directory accounts whose tenant is unknown.
	CommonTenant = "common"
)

// TokenPair is the result of an Azure token acquisition. Refresh is nil when the flow
// does not expose a refresh token.
type TokenPair struct {
	Access  secret.Token
	Refresh *secret.Token
}

// CredentialKind selects which azidentity credential a flow uses.
type CredentialKind int

const (
	CredentialInteractive CredentialKind = iota
	CredentialSilent
)

// CredentialFactory builds the azcore credential for a flow. Tests substitute it.
type CredentialFactory func(kind CredentialKind, cfg AzureConfig) (azcore.TokenCredential, error)

// AzureConfig configures an Azure authority.
type AzureConfig struct {
	AuthorityHost string
	ClientID      string
	Resource      string
	RedirectURL   string
	// Tenant is a directory GUID for AAD backed accounts, or CommonTenant.
	Tenant  string
	Timeout time.Duration
}

// Azure acquires Azure AD / Microsoft account tokens.
type Azure struct {
	cfg     AzureConfig
	tenant  uuid.UUID
	factory CredentialFactory
	logger  *logging.Logger
}

// NewAzure creates an Azure authority. A nil factory uses azidentity.
func NewAzure(cfg AzureConfig, factory CredentialFactory, logger *logging.Logger) *Azure {
	if cfg.AuthorityHost == "" {
		cfg.AuthorityHost = DefaultAuthorityHost
	}
	cfg.AuthorityHost = strings.TrimRight(cfg.AuthorityHost, "/")
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.Resource == "" {
		cfg.Resource = DefaultResource
	}
	if cfg.RedirectURL == "" {
		cfg.RedirectURL = DefaultRedirectURL
	}
	if cfg.Tenant == "" {
		cfg.Tenant = CommonTenant
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if factory == nil {
		factory = azidentityCredential
	}
	if logger == nil {
		logger = logging.Nop()
	}

	a := &Azure{cfg: cfg, factory: factory, logger: logger}
	if id, err := uuid.Parse(cfg.Tenant); err == nil {
		a.tenant = id
	}
	return a
}

// Tenant returns the directory this authority signs in to, or uuid.Nil for CommonTenant.
func (a *Azure) Tenant() uuid.UUID {
	return a.tenant
}

// AcquireTokenByRefreshToken redeems refresh for a new access token. A rotated refresh
// token is returned alongside it.
func (a *Azure) AcquireTokenByRefreshToken(ctx context.Context, targetURI secret.TargetURI, refresh secret.Token) *TokenPair {
	pair, err := a.redeemRefreshToken(ctx, refresh)
	if err != nil {
		reportFailure(a.logger, "azure", "refresh token exchange for "+targetURI.Host(), err)
		return nil
	}
	metrics.AuthorityRequest("azure", "success")
	return pair
}

func (a *Azure) redeemRefreshToken(ctx context.Context, refresh secret.Token) (*TokenPair, error) {
	if refresh.Value() == "" {
		return nil, errors.New("empty refresh token")
	}

	conf := &oauth2.Config{
		ClientID: a.cfg.ClientID,
		Endpoint: oauth2.Endpoint{
			AuthURL:   a.endpoint("authorize"),
			TokenURL:  a.endpoint("token"),
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: a.cfg.RedirectURL,
		Scopes:      a.scopes(true),
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: a.cfg.Timeout})

	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refresh.Value()}).Token()
	if err != nil {
		return nil, &Error{Op: "azure refresh", Err: err}
	}
	return a.pair(tok.AccessToken, tok.RefreshToken)
}

// AcquireTokenInteractive signs the user in through the system browser.
func (a *Azure) AcquireTokenInteractive(ctx context.Context, targetURI secret.TargetURI) *TokenPair {
	return a.acquire(ctx, targetURI, CredentialInteractive)
}

// AcquireTokenSilent acquires a token from an existing Azure CLI sign-in without prompting.
func (a *Azure) AcquireTokenSilent(ctx context.Context, targetURI secret.TargetURI) *TokenPair {
	return a.acquire(ctx, targetURI, CredentialSilent)
}

func (a *Azure) acquire(ctx context.Context, targetURI secret.TargetURI, kind CredentialKind) *TokenPair {
	pair, err := a.getToken(ctx, kind)
	if err != nil {
		reportFailure(a.logger, "azure", "azure token acquisition for "+targetURI.Host(), err)
		return nil
	}
	metrics.AuthorityRequest("azure", "success")
	return pair
}

func (a *Azure) getToken(ctx context.Context, kind CredentialKind) (*TokenPair, error) {
	cred, err := a.factory(kind, a.cfg)
	if err != nil {
		return nil, &Error{Op: "azure credential", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeoutFor(kind))
	defer cancel()

	tok, err := cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: a.scopes(false), TenantID: a.tenantParam()})
	if err != nil {
		return nil, &Error{Op: "azure get token", Err: err}
	}
	return a.pair(tok.Token, "")
}

// Interactive sign-in waits on the user, so it is not bound by the authority timeout.
func (a *Azure) timeoutFor(kind CredentialKind) time.Duration {
	if kind == CredentialInteractive {
		return 5 * time.Minute
	}
	return a.cfg.Timeout
}

func (a *Azure) pair(access, refresh string) (*TokenPair, error) {
	accessToken, err := secret.NewToken(access, secret.TokenAzureAccess, a.tenant)
	if err != nil {
		return nil, &Error{Op: "azure token", Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}
	pair := &TokenPair{Access: accessToken}
	if refresh != "" {
		refreshToken, err := secret.NewToken(refresh, secret.TokenAzureFederated, a.tenant)
		if err != nil {
			return nil, &Error{Op: "azure token", Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
		}
		pair.Refresh = &refreshToken
	}
	return pair, nil
}

func (a *Azure) endpoint(name string) string {
	return fmt.Sprintf("%s/%s/oauth2/v2.0/%s", a.cfg.AuthorityHost, a.cfg.Tenant, name)
}

func (a *Azure) scopes(offline bool) []string {
	scopes := []string{strings.TrimRight(a.cfg.Resource, "/") + "/.default"}
	if offline {
		scopes = append(scopes, "offline_access")
	}
	return scopes
}

func (a *Azure) tenantParam() string {
	if a.tenant == uuid.Nil {
		return ""
	}
	return a.tenant.String()
}

func azidentityCredential(kind CredentialKind, cfg AzureConfig) (azcore.TokenCredential, error) {
	clientOptions := azcore.ClientOptions{
		Cloud: cloud.Configuration{ActiveDirectoryAuthorityHost: cfg.AuthorityHost + "/"},
	}

	switch kind {
	case CredentialInteractive:
		return azidentity.NewInteractiveBrowserCredential(&azidentity.InteractiveBrowserCredentialOptions{
			ClientOptions: clientOptions,
			ClientID:      cfg.ClientID,
			TenantID:      cfg.Tenant,
			RedirectURL:   cfg.RedirectURL,
		})
	case CredentialSilent:
		opts := &azidentity.AzureCLICredentialOptions{}
		if cfg.Tenant != CommonTenant {
			opts.TenantID = cfg.Tenant
		}
		return azidentity.NewAzureCLICredential(opts)
	default:
		return nil, fmt.Errorf("unknown credential kind %d", kind)
	}
}
