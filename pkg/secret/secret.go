package secret

import (
	"errors"
	"fmt"
)

// Limits imposed by the OS credential stores.
const (
	UsernameMaxLength = 511
	PasswordMaxLength = 2047
	TokenMaxLength    = 2047
)

// Kind discriminates the concrete secret variants.
type Kind int

const (
	KindCredential Kind = iota + 1
	KindToken
)

func (k Kind) String() string {
	switch k {
	case KindCredential:
		return "credential"
	case KindToken:
		return "token"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Secret is implemented by Credential and Token.
type Secret interface {
	// Kind reports which variant the secret is.
	Kind() Kind
	// Value returns the secret material (password or token value).
	Value() string
	// Validate checks the secret against the store limits.
	Validate() error
}

var (
	// ErrInvalidTargetURI is returned for empty, relative or host-less target URIs.
	ErrInvalidTargetURI = errors.New("target uri must be absolute")

	// ErrInvalidCast is returned when a token cannot be represented as a credential.
	ErrInvalidCast = errors.New("token type cannot be converted to a credential")
)

// ValidationError describes a secret that violates a structural constraint.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// TokenReader reads tokens for a target. The secure store and any external token cache
// (for example one populated by an IDE sign-in) satisfy it.
type TokenReader interface {
	ReadToken(targetURI TargetURI) (*Token, error)
}
