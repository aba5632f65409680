package contracts

import "github.com/systmms/credbroker/pkg/secret"

// ChallengeKind identifies which second factor an authority asked for.
type ChallengeKind int

const (
	ChallengeNone ChallengeKind = iota
	ChallengeApp
	ChallengeSms
)

func (c ChallengeKind) String() string {
	switch c {
	case ChallengeApp:
		return "app"
	case ChallengeSms:
		return "sms"
	default:
		return "none"
	}
}

// Prompts are the interactive callbacks supplied by the host. Any of them may decline by
// returning ok == false.
type Prompts interface {
	// AcquireCredentials asks the user for a username and password.
	AcquireCredentials(targetURI secret.TargetURI) (username, password string, ok bool)

	// AcquireAuthenticationCode asks the user for a one-time code.
	AcquireAuthenticationCode(targetURI secret.TargetURI, kind ChallengeKind, username string) (code string, ok bool)

	// ReportResult tells the user how an interactive logon ended.
	ReportResult(targetURI secret.TargetURI, succeeded bool, message string)
}
