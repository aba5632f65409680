package secret

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// TokenType tags a Token. The numeric value is written as the first byte of the
// serialized token, so existing values must never be renumbered.
type TokenType uint8

const (
	TokenUnknown TokenType = iota
	TokenAzureAccess
	TokenAzureFederated
	TokenPersonal
	TokenTest
	TokenBitbucketPassword
	TokenBitbucketAccess
	TokenBitbucketRefresh
)

// PersonalAccessTokenUsername is the username of a credential converted from a PAT.
const PersonalAccessTokenUsername = "PersonalAccessToken"

var tokenTypeNames = map[TokenType]string{
	TokenUnknown:           "Unknown",
	TokenAzureAccess:       "Azure Access Token",
	TokenAzureFederated:    "Azure Federated Token",
	TokenPersonal:          "Personal Access Token",
	TokenTest:              "Test-only Token",
	TokenBitbucketPassword: "Bitbucket Password",
	TokenBitbucketAccess:   "Bitbucket Access Token",
	TokenBitbucketRefresh:  "Bitbucket Refresh Token",
}

// Names written by older releases, still accepted on read.
var legacyTokenTypeNames = map[string]TokenType{
	"Azure Directory Access Token":   TokenAzureAccess,
	"Azure Directory Refresh Token":  TokenAzureFederated,
	"Federated Authentication Token": TokenAzureFederated,
}

// FriendlyName is the tag stored in the secure store's name field.
func (t TokenType) FriendlyName() string {
	if name, ok := tokenTypeNames[t]; ok {
		return name
	}
	return tokenTypeNames[TokenUnknown]
}

func (t TokenType) String() string {
	return t.FriendlyName()
}

// Valid reports whether t is one of the declared token types.
func (t TokenType) Valid() bool {
	_, ok := tokenTypeNames[t]
	return ok
}

// ParseTokenType decodes a friendly name. "Unknown" is not a valid tag, so entries named
// "Unknown" are read as credentials.
func ParseTokenType(name string) (TokenType, bool) {
	for t, friendly := range tokenTypeNames {
		if t != TokenUnknown && strings.EqualFold(friendly, name) {
			return t, true
		}
	}
	for legacy, t := range legacyTokenTypeNames {
		if strings.EqualFold(legacy, name) {
			return t, true
		}
	}
	return TokenUnknown, false
}

// Token is a typed bearer value.
type Token struct {
	value          string
	typ            TokenType
	targetIdentity uuid.UUID
}

// NewToken builds a validated token. targetIdentity may be uuid.Nil.
func NewToken(value string, typ TokenType, targetIdentity uuid.UUID) (Token, error) {
	t := Token{value: value, typ: typ, targetIdentity: targetIdentity}
	if err := t.Validate(); err != nil {
		return Token{}, err
	}
	return t, nil
}

// MustToken is NewToken for literals known to be valid.
func MustToken(value string, typ TokenType) Token {
	t, err := NewToken(value, typ, uuid.Nil)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Token) Kind() Kind { return KindToken }

func (t Token) Value() string { return t.value }

func (t Token) Type() TokenType { return t.typ }

// TargetIdentity is the tenant or instance the token was issued for.
func (t Token) TargetIdentity() uuid.UUID { return t.targetIdentity }

// WithTargetIdentity returns a copy bound to id.
func (t Token) WithTargetIdentity(id uuid.UUID) Token {
	t.targetIdentity = id
	return t
}

// Validate checks that the token has a value and a declared type. Tokens held only in memory,
// such as Azure access tokens, may be of any length.
func (t Token) Validate() error {
	if t.value == "" {
		return &ValidationError{Field: "token", Message: "must not be empty"}
	}
	if !t.typ.Valid() {
		return &ValidationError{Field: "token type", Message: fmt.Sprintf("unknown value %d", uint8(t.typ))}
	}
	return nil
}

// ValidateStored adds the length limit that applies to tokens written to a secure store.
func (t Token) ValidateStored() error {
	if err := t.Validate(); err != nil {
		return err
	}
	if len(t.value) > TokenMaxLength {
		return &ValidationError{Field: "token", Message: fmt.Sprintf("exceeds %d characters", TokenMaxLength)}
	}
	return nil
}

// Equal compares type and value.
func (t Token) Equal(other Token) bool {
	return t.typ == other.typ && t.value == other.value
}

func (t Token) Hash() uint32 {
	return (uint32(t.typ) << 24) ^ hashString(t.value)
}

// ToCredential converts a personal or Bitbucket access token into a credential that can be
// handed to git. Any other token type yields ErrInvalidCast.
func (t Token) ToCredential() (Credential, error) {
	switch t.typ {
	case TokenPersonal, TokenBitbucketAccess:
		return NewCredential(PersonalAccessTokenUsername, t.value)
	default:
		return Credential{}, fmt.Errorf("%w: %s", ErrInvalidCast, t.typ.FriendlyName())
	}
}

// String never includes the token value.
func (t Token) String() string {
	return fmt.Sprintf("Token{%s}", t.typ.FriendlyName())
}

func (t Token) GoString() string {
	return t.String()
}
