package broker

import (
	"context"

	"github.com/systmms/credbroker/internal/authority"
	"github.com/systmms/credbroker/internal/contracts"
	"github.com/systmms/credbroker/internal/metrics"
	"github.com/systmms/credbroker/pkg/secret"
)

// InteractiveLogon signs the user in through the host's prompts (GitHub, Basic) or the
// system browser (AAD, MSA) and stores the result. A declined prompt or a failed sign-in
// returns nil with a nil error.
func (b *Broker) InteractiveLogon(ctx context.Context, targetURI secret.TargetURI) (*secret.Credential, error) {
	if err := targetURI.Validate(); err != nil {
		return nil, err
	}

	var (
		cred *secret.Credential
		err  error
	)
	switch b.policy {
	case PolicyGitHub:
		cred, err = b.githubLogon(ctx, targetURI)
	case PolicyAAD, PolicyMSA:
		cred, err = b.azureLogon(ctx, targetURI)
	default:
		cred = b.basicLogon(targetURI)
	}

	if err == nil && cred != nil {
		metrics.Resolution(b.policy.String(), "interactive")
	}
	return cred, err
}

func (b *Broker) githubLogon(ctx context.Context, targetURI secret.TargetURI) (*secret.Credential, error) {
	if b.prompts == nil {
		return nil, nil
	}
	username, password, ok := b.prompts.AcquireCredentials(targetURI)
	if !ok {
		b.logger.Debug("credential prompt for %s declined", targetURI.Host())
		return nil, nil
	}

	result, token := b.github.AcquireToken(ctx, targetURI, username, password, "", b.scope)
	if result.IsTwoFactor() {
		kind := contracts.ChallengeSms
		if result == authority.ResultTwoFactorApp {
			kind = contracts.ChallengeApp
		}
		code, ok := b.prompts.AcquireAuthenticationCode(targetURI, kind, username)
		if !ok {
			b.prompts.ReportResult(targetURI, false, "Two-factor authentication was cancelled.")
			return nil, nil
		}
		result, token = b.github.AcquireToken(ctx, targetURI, username, password, code, b.scope)
	}

	if result != authority.ResultSuccess || token == nil {
		b.prompts.ReportResult(targetURI, false, "Logon failed, use ctrl+c to cancel basic credential prompt.")
		return nil, nil
	}

	cred, err := secret.NewCredential(username, token.Value())
	if err != nil {
		return nil, err
	}
	if err := b.store.WriteCredentials(targetURI, cred); err != nil {
		return nil, err
	}
	b.prompts.ReportResult(targetURI, true, "Logon successful.")
	return &cred, nil
}

func (b *Broker) azureLogon(ctx context.Context, targetURI secret.TargetURI) (*secret.Credential, error) {
	pair := b.azure.AcquireTokenInteractive(ctx, targetURI)
	if pair == nil {
		b.report(targetURI, false, "Sign-in failed.")
		return nil, nil
	}
	b.recordTenant(pair.Access.TargetIdentity())

	if err := b.keepRefreshToken(targetURI, pair); err != nil {
		return nil, err
	}

	cred, err := b.persistPersonalAccessToken(ctx, targetURI, pair.Access)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		b.report(targetURI, false, "A personal access token could not be created.")
		return nil, nil
	}
	b.report(targetURI, true, "Sign-in successful.")
	return cred, nil
}

// basicLogon hands back what the user typed. Git approves it with a later store once the
// remote accepted it.
func (b *Broker) basicLogon(targetURI secret.TargetURI) *secret.Credential {
	if b.prompts == nil {
		return nil
	}
	username, password, ok := b.prompts.AcquireCredentials(targetURI)
	if !ok {
		return nil
	}
	cred, err := secret.NewCredential(username, password)
	if err != nil {
		b.logger.Warn("rejected credentials for %s: %v", targetURI.Host(), err)
		return nil
	}
	return &cred
}

func (b *Broker) report(targetURI secret.TargetURI, ok bool, message string) {
	if b.prompts != nil {
		b.prompts.ReportResult(targetURI, ok, message)
	}
}
