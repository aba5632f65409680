package broker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/systmms/credbroker/internal/authority"
	"github.com/systmms/credbroker/internal/contracts"
	"github.com/systmms/credbroker/internal/logging"
	"github.com/systmms/credbroker/internal/store"
	"github.com/systmms/credbroker/pkg/scope"
	"github.com/systmms/credbroker/pkg/secret"
)

// Authority names accepted by Settings.Authority.
const (
	AuthorityAuto   = "auto"
	AuthorityBasic  = "basic"
	AuthorityGitHub = "github"
	AuthorityAAD    = "aad"
	AuthorityMSA    = "msa"
)

// Settings is everything Create needs to pick a policy and wire a broker.
type Settings struct {
	Authority string

	Namespace        string
	RefreshNamespace string
	// LegacyNamespace is purged on creation.
	LegacyNamespace string
	// IdeNamespace holds federated tokens written by an IDE. Ignored when FederatedTokens is set.
	IdeNamespace string
	UseHTTPPath  bool

	Interactive Interactivity
	Validate    bool
	VstsScope   scope.Scope
	GitHubScope scope.Scope

	Azure            authority.AzureConfig
	AuthorityTimeout time.Duration
	VstsBaseDomain   string
	TokenServiceURL  string

	Storage          contracts.SecureStorage
	Transport        authority.Doer
	AzureCredentials authority.CredentialFactory
	FederatedTokens  secret.TokenReader
	Prompts          contracts.Prompts
	// AccessCheck overrides the platform ownership check.
	AccessCheck store.AccessCheck
	Logger      *logging.Logger
}

// Detection is the outcome of choosing a policy for a target.
type Detection struct {
	Policy Policy
	Tenant uuid.UUID
}

// Detect picks the policy for targetURI. A forced authority wins; auto maps github.com to
// GitHub, probes VSTS hosts for their tenant and falls back to Basic for everything else,
// including VSTS hosts that could not be probed.
func Detect(ctx context.Context, targetURI secret.TargetURI, authorityName string, vsts *authority.Vsts) (Detection, error) {
	if err := targetURI.Validate(); err != nil {
		return Detection{}, err
	}

	switch strings.ToLower(strings.TrimSpace(authorityName)) {
	case AuthorityBasic:
		return Detection{Policy: PolicyBasic}, nil
	case AuthorityGitHub:
		return Detection{Policy: PolicyGitHub}, nil
	case AuthorityMSA:
		return Detection{Policy: PolicyMSA}, nil
	case AuthorityAAD:
		// The tenant is still worth knowing; without it sign-in goes through the common endpoint.
		tenant, _ := vsts.DetectAuthority(ctx, targetURI)
		return Detection{Policy: PolicyAAD, Tenant: tenant}, nil
	case "", AuthorityAuto:
	default:
		return Detection{}, fmt.Errorf("unknown authority %q", authorityName)
	}

	host := targetURI.Host()
	if host == "github.com" || host == "www.github.com" {
		return Detection{Policy: PolicyGitHub}, nil
	}
	if vsts.IsVstsHost(targetURI) {
		tenant, ok := vsts.DetectAuthority(ctx, targetURI)
		switch {
		case !ok:
			return Detection{Policy: PolicyBasic}, nil
		case tenant == uuid.Nil:
			return Detection{Policy: PolicyMSA}, nil
		default:
			return Detection{Policy: PolicyAAD, Tenant: tenant}, nil
		}
	}
	return Detection{Policy: PolicyBasic}, nil
}

// Create detects the policy for targetURI and assembles the matching broker.
func Create(ctx context.Context, targetURI secret.TargetURI, s Settings) (*Broker, error) {
	if s.Storage == nil || s.Transport == nil {
		return nil, fmt.Errorf("broker settings require storage and transport")
	}
	logger := s.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	vsts := authority.NewVsts(s.Transport, authority.VstsOptions{
		Timeout:         s.AuthorityTimeout,
		BaseDomain:      s.VstsBaseDomain,
		TokenServiceURL: s.TokenServiceURL,
		Logger:          logger.Named("vsts"),
	})

	detection, err := Detect(ctx, targetURI, s.Authority, vsts)
	if err != nil {
		return nil, err
	}
	logger.Debug("%s uses the %s policy", targetURI.Host(), detection.Policy)

	storeOpts := []store.Option{store.WithLogger(logger.Named("store"))}
	if s.AccessCheck != nil {
		storeOpts = append(storeOpts, store.WithAccessCheck(s.AccessCheck))
	}
	if s.UseHTTPPath {
		storeOpts = append(storeOpts, store.WithNameFunc(secret.PathedTargetName))
	}

	primary, err := store.New(s.Storage, s.Namespace, storeOpts...)
	if err != nil {
		return nil, err
	}

	opts := Options{
		Policy:      detection.Policy,
		Store:       primary,
		Prompts:     s.Prompts,
		Interactive: s.Interactive,
		Validate:    s.Validate,
		TenantID:    detection.Tenant,
		Logger:      logger.Named("broker"),
	}

	switch detection.Policy {
	case PolicyGitHub:
		opts.GitHub = authority.NewGitHub(s.Transport, authority.GitHubOptions{
			Timeout: s.AuthorityTimeout,
			Logger:  logger.Named("github"),
		})
		opts.Scope = s.GitHubScope
		opts.PurgeNamespace = s.LegacyNamespace

	case PolicyAAD, PolicyMSA:
		refresh, err := store.New(s.Storage, s.RefreshNamespace, storeOpts...)
		if err != nil {
			return nil, err
		}
		opts.RefreshStore = refresh
		opts.Vsts = vsts
		opts.Scope = s.VstsScope
		opts.PurgeNamespace = s.LegacyNamespace

		azureCfg := s.Azure
		if azureCfg.Timeout <= 0 {
			azureCfg.Timeout = s.AuthorityTimeout
		}
		azureCfg.Tenant = authority.CommonTenant
		if detection.Tenant != uuid.Nil {
			azureCfg.Tenant = detection.Tenant.String()
		}
		opts.Azure = authority.NewAzure(azureCfg, s.AzureCredentials, logger.Named("azure"))

		opts.FederatedTokens = s.FederatedTokens
		if opts.FederatedTokens == nil && s.IdeNamespace != "" {
			ide, err := store.New(s.Storage, s.IdeNamespace, storeOpts...)
			if err != nil {
				return nil, err
			}
			opts.FederatedTokens = ide
		}
	}

	return New(opts)
}
