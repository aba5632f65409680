// Package broker resolves credentials for a target by composing the secret stores with the
// authority clients.
//
// A VSTS broker walks a fixed chain: a stored personal access token, then a cached Azure
// refresh token, then a federated token captured by an IDE. Each successful step ends with a
// freshly minted personal access token persisted back through the store, so the next call
// stops at the first step. Interactive logon is a separate entry point and is never reached
// implicitly from GetCredentials.
//
// Brokers hold no mutable state beyond the tenant they last saw. Concurrent calls for the
// same target race on the store and the last write wins.
package broker

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/systmms/credbroker/internal/authority"
	"github.com/systmms/credbroker/internal/contracts"
	"github.com/systmms/credbroker/internal/logging"
	"github.com/systmms/credbroker/internal/metrics"
	"github.com/systmms/credbroker/internal/store"
	"github.com/systmms/credbroker/pkg/scope"
	"github.com/systmms/credbroker/pkg/secret"
)

// GitHubAuthority is the subset of authority.GitHub a broker uses.
type GitHubAuthority interface {
	AcquireToken(ctx context.Context, targetURI secret.TargetURI, username, password, otp string, sc scope.Scope) (authority.Result, *secret.Token)
	ValidateCredentials(ctx context.Context, targetURI secret.TargetURI, cred secret.Credential) bool
}

// AzureAuthority is the subset of authority.Azure a broker uses.
type AzureAuthority interface {
	AcquireTokenByRefreshToken(ctx context.Context, targetURI secret.TargetURI, refresh secret.Token) *authority.TokenPair
	AcquireTokenInteractive(ctx context.Context, targetURI secret.TargetURI) *authority.TokenPair
	AcquireTokenSilent(ctx context.Context, targetURI secret.TargetURI) *authority.TokenPair
}

// VstsAuthority is the subset of authority.Vsts a broker uses.
type VstsAuthority interface {
	GeneratePersonalAccessToken(ctx context.Context, targetURI secret.TargetURI, token secret.Token, sc scope.Scope, requireCompact bool) *secret.Token
	ValidateCredentials(ctx context.Context, targetURI secret.TargetURI, cred secret.Credential) bool
	ValidateToken(ctx context.Context, targetURI secret.TargetURI, token secret.Token) bool
}

// Options assembles a Broker.
type Options struct {
	Policy Policy
	// Store holds personal access tokens and credentials.
	Store *store.SecretStore
	// RefreshStore holds Azure refresh tokens. Required by the VSTS policies.
	RefreshStore *store.SecretStore
	// FederatedTokens reads tokens captured by an IDE sign-in. Optional.
	FederatedTokens secret.TokenReader

	GitHub GitHubAuthority
	Azure  AzureAuthority
	Vsts   VstsAuthority

	Prompts contracts.Prompts
	// Scope is requested when minting personal access tokens.
	Scope       scope.Scope
	Interactive Interactivity
	// Validate checks stored credentials with the authority before returning them.
	Validate bool
	// PurgeNamespace is scrubbed in the background when the broker is created.
	PurgeNamespace string
	TenantID       uuid.UUID
	Logger         *logging.Logger
}

// Broker resolves, persists and refreshes credentials for one policy.
type Broker struct {
	policy    Policy
	store     *store.SecretStore
	refresh   *store.SecretStore
	federated secret.TokenReader
	github    GitHubAuthority
	azure     AzureAuthority
	vsts      VstsAuthority
	prompts   contracts.Prompts
	scope     scope.Scope
	mode      Interactivity
	validate  bool
	logger    *logging.Logger

	mu     sync.Mutex
	tenant uuid.UUID

	purgeDone chan struct{}
}

// New validates opts and returns a broker. A purge of opts.PurgeNamespace is started in the
// background and never delays New.
func New(opts Options) (*Broker, error) {
	if opts.Store == nil {
		return nil, errors.New("broker requires a secret store")
	}
	switch opts.Policy {
	case PolicyBasic:
	case PolicyGitHub:
		if opts.GitHub == nil {
			return nil, errors.New("github policy requires a github authority")
		}
	case PolicyAAD, PolicyMSA:
		if opts.RefreshStore == nil || opts.Azure == nil || opts.Vsts == nil {
			return nil, errors.New(opts.Policy.String() + " policy requires a refresh store, an azure and a vsts authority")
		}
	default:
		return nil, errors.New("unknown broker policy " + opts.Policy.String())
	}

	b := &Broker{
		policy:    opts.Policy,
		store:     opts.Store,
		refresh:   opts.RefreshStore,
		federated: opts.FederatedTokens,
		github:    opts.GitHub,
		azure:     opts.Azure,
		vsts:      opts.Vsts,
		prompts:   opts.Prompts,
		scope:     opts.Scope,
		mode:      opts.Interactive,
		validate:  opts.Validate,
		tenant:    opts.TenantID,
		logger:    opts.Logger,
		purgeDone: make(chan struct{}),
	}
	if b.logger == nil {
		b.logger = logging.Nop()
	}
	if b.scope.IsEmpty() {
		if b.policy == PolicyGitHub {
			b.scope = scope.GitHubDefault
		} else {
			b.scope = scope.VstsDefault
		}
	}

	go b.purge(opts.PurgeNamespace)
	return b, nil
}

// Policy returns the broker's policy.
func (b *Broker) Policy() Policy {
	return b.policy
}

// TenantID returns the directory tenant last seen for this broker, or uuid.Nil.
func (b *Broker) TenantID() uuid.UUID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tenant
}

// PurgeDone is closed once the startup purge finished.
func (b *Broker) PurgeDone() <-chan struct{} {
	return b.purgeDone
}

func (b *Broker) purge(namespace string) {
	defer close(b.purgeDone)
	if namespace == "" {
		return
	}
	removed, err := b.store.PurgeCredentials(namespace)
	if err != nil {
		b.logger.Warn("purging stale tokens from %s failed: %v", namespace, err)
		return
	}
	if removed > 0 {
		b.logger.Info("removed %d stale tokens from %s", removed, namespace)
	}
}

// GetCredentials returns a usable credential from storage, or from the refresh chain for
// VSTS policies. It never prompts. A nil credential with a nil error means nothing usable was
// found.
func (b *Broker) GetCredentials(ctx context.Context, targetURI secret.TargetURI) (*secret.Credential, error) {
	if err := targetURI.Validate(); err != nil {
		return nil, err
	}

	if b.policy.IsVsts() {
		cred, err := b.storedPersonalAccessToken(ctx, targetURI)
		if err != nil || cred != nil {
			return cred, err
		}
		return b.RefreshCredentials(ctx, targetURI)
	}

	cred, err := b.store.ReadCredentials(targetURI)
	if err != nil || cred == nil {
		metrics.Resolution(b.policy.String(), "none")
		return nil, err
	}
	if b.validate && b.policy == PolicyGitHub && !b.github.ValidateCredentials(ctx, targetURI, *cred) {
		b.logger.Info("stored credentials for %s were rejected, removing them", targetURI.Host())
		if err := b.store.DeleteCredentials(targetURI); err != nil {
			return nil, err
		}
		metrics.Resolution(b.policy.String(), "none")
		return nil, nil
	}
	metrics.Resolution(b.policy.String(), "stored")
	return cred, nil
}

func (b *Broker) storedPersonalAccessToken(ctx context.Context, targetURI secret.TargetURI) (*secret.Credential, error) {
	token, err := b.store.ReadToken(targetURI)
	if err != nil || token == nil {
		return nil, err
	}
	if b.validate && !b.vsts.ValidateToken(ctx, targetURI, *token) {
		b.logger.Info("stored personal access token for %s was rejected, removing it", targetURI.Host())
		return nil, b.store.DeleteToken(targetURI)
	}

	cred, err := token.ToCredential()
	if err != nil {
		b.logger.Warn("stored token for %s is not a personal access token: %v", targetURI.Host(), err)
		return nil, nil
	}
	b.logger.Debug("personal access token for %s found in store", targetURI.Host())
	metrics.Resolution(b.policy.String(), "stored")
	return &cred, nil
}

// RefreshCredentials mints a new personal access token from a cached refresh token or, failing
// that, from a federated IDE token. Nil with a nil error means both paths came up empty.
func (b *Broker) RefreshCredentials(ctx context.Context, targetURI secret.TargetURI) (*secret.Credential, error) {
	if err := targetURI.Validate(); err != nil {
		return nil, err
	}
	if !b.policy.IsVsts() {
		return nil, nil
	}

	cred, err := b.refreshFromAzureToken(ctx, targetURI)
	if err != nil || cred != nil {
		return cred, err
	}

	cred, err = b.fromFederatedToken(ctx, targetURI)
	if err != nil || cred != nil {
		return cred, err
	}

	b.logger.Debug("no refresh path produced credentials for %s", targetURI.Host())
	metrics.Resolution(b.policy.String(), "none")
	return nil, nil
}

func (b *Broker) refreshFromAzureToken(ctx context.Context, targetURI secret.TargetURI) (*secret.Credential, error) {
	refresh, err := b.refresh.ReadToken(targetURI)
	if err != nil || refresh == nil {
		return nil, err
	}

	pair := b.azure.AcquireTokenByRefreshToken(ctx, targetURI, *refresh)
	if pair == nil {
		b.logger.Debug("refresh token for %s was not redeemed", targetURI.Host())
		return nil, nil
	}
	if err := b.keepRefreshToken(targetURI, pair); err != nil {
		return nil, err
	}
	b.recordTenant(pair.Access.TargetIdentity())

	cred, err := b.persistPersonalAccessToken(ctx, targetURI, pair.Access)
	if cred != nil {
		metrics.Resolution(b.policy.String(), "refresh")
	}
	return cred, err
}

func (b *Broker) fromFederatedToken(ctx context.Context, targetURI secret.TargetURI) (*secret.Credential, error) {
	if b.federated == nil {
		return nil, nil
	}
	token, err := b.federated.ReadToken(targetURI)
	if err != nil {
		b.logger.Warn("reading federated token for %s failed: %v", targetURI.Host(), err)
		return nil, nil
	}
	if token == nil {
		return nil, nil
	}

	cred, err := b.persistPersonalAccessToken(ctx, targetURI, *token)
	if cred != nil {
		metrics.Resolution(b.policy.String(), "federated")
	}
	return cred, err
}

func (b *Broker) persistPersonalAccessToken(ctx context.Context, targetURI secret.TargetURI, token secret.Token) (*secret.Credential, error) {
	pat := b.vsts.GeneratePersonalAccessToken(ctx, targetURI, token, b.scope, true)
	if pat == nil {
		return nil, nil
	}
	if err := b.store.WriteToken(targetURI, *pat); err != nil {
		return nil, err
	}
	cred, err := pat.ToCredential()
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// keepRefreshToken stores the rotated refresh token. One too large to store is dropped with a
// warning; the access token still yields a PAT.
func (b *Broker) keepRefreshToken(targetURI secret.TargetURI, pair *authority.TokenPair) error {
	if pair.Refresh == nil {
		return nil
	}
	err := b.refresh.WriteToken(targetURI, *pair.Refresh)
	var invalid *secret.ValidationError
	if errors.As(err, &invalid) {
		b.logger.Warn("refresh token for %s not stored: %v", targetURI.Host(), err)
		return nil
	}
	return err
}

func (b *Broker) recordTenant(id uuid.UUID) {
	if id == uuid.Nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tenant != id {
		b.logger.Debug("tenant is %s", id)
		b.tenant = id
	}
}

// SetCredentials persists a caller supplied credential. VSTS policies refuse: the directory,
// not the local store, is authoritative for them.
func (b *Broker) SetCredentials(ctx context.Context, targetURI secret.TargetURI, cred secret.Credential) (bool, error) {
	if err := targetURI.Validate(); err != nil {
		return false, err
	}
	if b.policy.IsVsts() {
		b.logger.Debug("%s accounts do not accept stored credentials, ignoring", b.policy)
		return false, nil
	}
	if err := b.store.WriteCredentials(targetURI, cred); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteCredentials removes everything stored for the target. Missing entries are fine.
func (b *Broker) DeleteCredentials(ctx context.Context, targetURI secret.TargetURI) error {
	if err := targetURI.Validate(); err != nil {
		return err
	}
	if !b.policy.IsVsts() {
		return b.store.DeleteCredentials(targetURI)
	}
	if err := b.store.DeleteToken(targetURI); err != nil {
		return err
	}
	return b.refresh.DeleteToken(targetURI)
}

// ValidateCredentials checks cred with the bound authority. Basic has no authority and
// accepts everything.
func (b *Broker) ValidateCredentials(ctx context.Context, targetURI secret.TargetURI, cred secret.Credential) bool {
	switch b.policy {
	case PolicyGitHub:
		return b.github.ValidateCredentials(ctx, targetURI, cred)
	case PolicyAAD, PolicyMSA:
		return b.vsts.ValidateCredentials(ctx, targetURI, cred)
	default:
		return true
	}
}

// Resolve is what a credential helper "get" runs: stored and refreshed credentials first,
// then a silent Azure sign-in, then interactive logon as the interactivity mode allows.
func (b *Broker) Resolve(ctx context.Context, targetURI secret.TargetURI) (*secret.Credential, error) {
	if b.mode != InteractiveAlways {
		cred, err := b.GetCredentials(ctx, targetURI)
		if err != nil || cred != nil {
			return cred, err
		}

		if b.policy.IsVsts() {
			if pair := b.azure.AcquireTokenSilent(ctx, targetURI); pair != nil {
				b.recordTenant(pair.Access.TargetIdentity())
				cred, err := b.persistPersonalAccessToken(ctx, targetURI, pair.Access)
				if err != nil || cred != nil {
					if cred != nil {
						metrics.Resolution(b.policy.String(), "silent")
					}
					return cred, err
				}
			}
		}
	}

	if b.mode == InteractiveNever {
		return nil, nil
	}
	return b.InteractiveLogon(ctx, targetURI)
}
