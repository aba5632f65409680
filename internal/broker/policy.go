package broker

import (
	"fmt"
	"strings"
)

// Policy selects how a Broker resolves and persists credentials.
type Policy int

const (
	// PolicyBasic stores whatever username and password the caller supplies.
	PolicyBasic Policy = iota
	// PolicyGitHub trades a username and password for a GitHub personal access token.
	PolicyGitHub
	// PolicyAAD serves VSTS accounts backed by an Azure AD tenant.
	PolicyAAD
	// PolicyMSA serves VSTS accounts backed by Microsoft accounts.
	PolicyMSA
)

func (p Policy) String() string {
	switch p {
	case PolicyBasic:
		return "basic"
	case PolicyGitHub:
		return "github"
	case PolicyAAD:
		return "aad"
	case PolicyMSA:
		return "msa"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// IsVsts reports whether the policy is backed by the Azure directory.
func (p Policy) IsVsts() bool {
	return p == PolicyAAD || p == PolicyMSA
}

// Interactivity controls when a Broker prompts.
type Interactivity int

const (
	// InteractiveAuto prompts only when nothing usable was found.
	InteractiveAuto Interactivity = iota
	// InteractiveAlways ignores stored credentials and prompts.
	InteractiveAlways
	// InteractiveNever never prompts.
	InteractiveNever
)

func (i Interactivity) String() string {
	switch i {
	case InteractiveAlways:
		return "always"
	case InteractiveNever:
		return "never"
	default:
		return "auto"
	}
}

// ParseInteractivity accepts auto, always and never, plus the true/false spellings git
// configuration commonly uses.
func ParseInteractivity(s string) (Interactivity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return InteractiveAuto, nil
	case "always", "true":
		return InteractiveAlways, nil
	case "never", "false":
		return InteractiveNever, nil
	default:
		return InteractiveAuto, fmt.Errorf("unknown interactivity %q (want auto, always or never)", s)
	}
}
