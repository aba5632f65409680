package fakes

import (
	"sync"

	"github.com/systmms/credbroker/internal/contracts"
	"github.com/systmms/credbroker/pkg/secret"
)

// PromptResult is one ReportResult call.
type PromptResult struct {
	Succeeded bool
	Message   string
}

// FakePrompts answers prompts with canned values. Leave Decline* false and fill the values
// to accept.
type FakePrompts struct {
	mu sync.Mutex

	Username        string
	Password        string
	DeclineLogon    bool
	Code            string
	DeclineCode     bool
	CredentialCalls int
	CodeCalls       int
	CodeKinds       []contracts.ChallengeKind
	Results         []PromptResult
}

func (f *FakePrompts) AcquireCredentials(secret.TargetURI) (string, string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CredentialCalls++
	if f.DeclineLogon {
		return "", "", false
	}
	return f.Username, f.Password, true
}

func (f *FakePrompts) AcquireAuthenticationCode(_ secret.TargetURI, kind contracts.ChallengeKind, _ string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CodeCalls++
	f.CodeKinds = append(f.CodeKinds, kind)
	if f.DeclineCode {
		return "", false
	}
	return f.Code, true
}

func (f *FakePrompts) ReportResult(_ secret.TargetURI, succeeded bool, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Results = append(f.Results, PromptResult{Succeeded: succeeded, Message: message})
}

var _ contracts.Prompts = (*FakePrompts)(nil)
