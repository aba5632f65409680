package fakes

import (
	"context"
	"sync"

	"github.com/systmms/credbroker/internal/authority"
	"github.com/systmms/credbroker/pkg/scope"
	"github.com/systmms/credbroker/pkg/secret"
)

// GitHubCall records one AcquireToken invocation.
type GitHubCall struct {
	Username string
	Password string
	OTP      string
	Scope    scope.Scope
}

// FakeGitHubAuthority scripts AcquireToken results in order. When the script runs out the
// last entry repeats.
type FakeGitHubAuthority struct {
	mu sync.Mutex

	Results []authority.Result
	Token   *secret.Token
	// Valid is returned by ValidateCredentials.
	Valid bool

	Calls          []GitHubCall
	ValidateCalled int
}

func (f *FakeGitHubAuthority) AcquireToken(_ context.Context, _ secret.TargetURI, username, password, otp string, sc scope.Scope) (authority.Result, *secret.Token) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, GitHubCall{Username: username, Password: password, OTP: otp, Scope: sc})
	result := authority.ResultFailure
	if n := len(f.Results); n > 0 {
		i := len(f.Calls) - 1
		if i >= n {
			i = n - 1
		}
		result = f.Results[i]
	}
	if result == authority.ResultSuccess {
		return result, f.Token
	}
	return result, nil
}

func (f *FakeGitHubAuthority) ValidateCredentials(context.Context, secret.TargetURI, secret.Credential) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ValidateCalled++
	return f.Valid
}

// FakeAzureAuthority returns canned token pairs and counts calls.
type FakeAzureAuthority struct {
	mu sync.Mutex

	RefreshPair     *authority.TokenPair
	InteractivePair *authority.TokenPair
	SilentPair      *authority.TokenPair

	RefreshCalls     int
	InteractiveCalls int
	SilentCalls      int
	LastRefresh      secret.Token
}

func (f *FakeAzureAuthority) AcquireTokenByRefreshToken(_ context.Context, _ secret.TargetURI, refresh secret.Token) *authority.TokenPair {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RefreshCalls++
	f.LastRefresh = refresh
	return f.RefreshPair
}

func (f *FakeAzureAuthority) AcquireTokenInteractive(context.Context, secret.TargetURI) *authority.TokenPair {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.InteractiveCalls++
	return f.InteractivePair
}

func (f *FakeAzureAuthority) AcquireTokenSilent(context.Context, secret.TargetURI) *authority.TokenPair {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SilentCalls++
	return f.SilentPair
}

// FakeVstsAuthority mints PersonalToken for any input token and records what it was given.
type FakeVstsAuthority struct {
	mu sync.Mutex

	PersonalToken *secret.Token
	Valid         bool

	GenerateCalls  int
	ValidateCalls  int
	GeneratedFrom  []secret.Token
	RequestedScope scope.Scope
}

func (f *FakeVstsAuthority) GeneratePersonalAccessToken(_ context.Context, _ secret.TargetURI, token secret.Token, sc scope.Scope, _ bool) *secret.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GenerateCalls++
	f.GeneratedFrom = append(f.GeneratedFrom, token)
	f.RequestedScope = sc
	return f.PersonalToken
}

func (f *FakeVstsAuthority) ValidateCredentials(context.Context, secret.TargetURI, secret.Credential) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ValidateCalls++
	return f.Valid
}

func (f *FakeVstsAuthority) ValidateToken(context.Context, secret.TargetURI, secret.Token) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ValidateCalls++
	return f.Valid
}

// NetworkCalls sums every call that would have gone over the network.
func NetworkCalls(gh *FakeGitHubAuthority, az *FakeAzureAuthority, vsts *FakeVstsAuthority) int {
	n := 0
	if gh != nil {
		gh.mu.Lock()
		n += len(gh.Calls) + gh.ValidateCalled
		gh.mu.Unlock()
	}
	if az != nil {
		az.mu.Lock()
		n += az.RefreshCalls + az.InteractiveCalls + az.SilentCalls
		az.mu.Unlock()
	}
	if vsts != nil {
		vsts.mu.Lock()
		n += vsts.GenerateCalls + vsts.ValidateCalls
		vsts.mu.Unlock()
	}
	return n
}

// FakeTokenReader serves a fixed federated token.
type FakeTokenReader struct {
	Token *secret.Token
	Err   error
	Reads int
}

func (f *FakeTokenReader) ReadToken(secret.TargetURI) (*secret.Token, error) {
	f.Reads++
	return f.Token, f.Err
}
