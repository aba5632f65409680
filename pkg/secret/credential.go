package secret

import (
	"encoding/base64"
	"fmt"
	"hash/fnv"
	"strings"
)

// Credential is a username/password pair.
type Credential struct {
	username string
	password string
}

// NewCredential builds a validated credential. The password may be empty.
func NewCredential(username, password string) (Credential, error) {
	c := Credential{username: username, password: password}
	if err := c.Validate(); err != nil {
		return Credential{}, err
	}
	return c, nil
}

// MustCredential is NewCredential for literals known to be valid.
func MustCredential(username, password string) Credential {
	c, err := NewCredential(username, password)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Credential) Kind() Kind { return KindCredential }

// Value returns the password.
func (c Credential) Value() string { return c.password }

func (c Credential) Username() string { return c.username }

func (c Credential) Password() string { return c.password }

// Validate enforces the username/password limits.
func (c Credential) Validate() error {
	if c.username == "" {
		return &ValidationError{Field: "username", Message: "must not be empty"}
	}
	if len(c.username) > UsernameMaxLength {
		return &ValidationError{Field: "username", Message: fmt.Sprintf("exceeds %d characters", UsernameMaxLength)}
	}
	if len(c.password) > PasswordMaxLength {
		return &ValidationError{Field: "password", Message: fmt.Sprintf("exceeds %d characters", PasswordMaxLength)}
	}
	return nil
}

// Equal compares usernames case-insensitively and passwords ordinally.
func (c Credential) Equal(other Credential) bool {
	return strings.EqualFold(c.username, other.username) && c.password == other.password
}

// Hash combines the upper 16 bits of the username hash with the lower 16 bits of the
// password hash. Equal credentials hash equally.
func (c Credential) Hash() uint32 {
	return (hashString(strings.ToUpper(c.username)) & 0xFFFF0000) | (hashString(c.password) & 0x0000FFFF)
}

// Encode renders "username:password".
func (c Credential) Encode() string {
	return c.username + ":" + c.password
}

// Base64 renders the basic-auth payload for an Authorization header.
func (c Credential) Base64() string {
	return base64.StdEncoding.EncodeToString([]byte(c.Encode()))
}

// BasicAuthorization renders a complete "Basic ..." header value.
func (c Credential) BasicAuthorization() string {
	return "Basic " + c.Base64()
}

// String never includes the password.
func (c Credential) String() string {
	return fmt.Sprintf("Credential{%s}", c.username)
}

// GoString never includes the password.
func (c Credential) GoString() string {
	return c.String()
}

func hashString(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
