// Package cache provides the in-memory tier in front of the durable secure store.
package cache

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/systmms/credbroker/internal/metrics"
	"github.com/systmms/credbroker/internal/secure"
	"github.com/systmms/credbroker/pkg/secret"
)

// SecretCache maps storage keys to secrets for one namespace. All operations are
// serialized by a single mutex. Values are kept encrypted in memory.
//
// A key holds at most one secret: writing a credential over a token (or the reverse)
// replaces it, mirroring the single slot the native store has per key.
type SecretCache struct {
	namespace string
	name      secret.NameFunc

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	kind      secret.Kind
	username  string
	tokenType secret.TokenType
	identity  uuid.UUID
	value     *secure.SecureBuffer
}

// New creates an empty cache. A nil name func defaults to secret.TargetName.
func New(namespace string, name secret.NameFunc) *SecretCache {
	if name == nil {
		name = secret.TargetName
	}
	return &SecretCache{
		namespace: namespace,
		name:      name,
		entries:   make(map[string]*entry),
	}
}

// Namespace returns the namespace keys are derived with.
func (c *SecretCache) Namespace() string {
	return c.namespace
}

// TargetName returns the key used for targetURI.
func (c *SecretCache) TargetName(targetURI secret.TargetURI) string {
	return c.name(targetURI, c.namespace)
}

// ReadCredentials returns the cached credential or nil. A token cached under the same key
// is a miss.
func (c *SecretCache) ReadCredentials(targetURI secret.TargetURI) (*secret.Credential, error) {
	key, err := c.key(targetURI)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.kind != secret.KindCredential {
		metrics.CacheLookup("credential", false)
		return nil, nil
	}

	password, err := e.value.Reveal()
	if err != nil {
		return nil, fmt.Errorf("open cached credential: %w", err)
	}
	cred, err := secret.NewCredential(e.username, password)
	if err != nil {
		return nil, err
	}
	metrics.CacheLookup("credential", true)
	return &cred, nil
}

// ReadToken returns the cached token or nil. A credential cached under the same key is a
// miss.
func (c *SecretCache) ReadToken(targetURI secret.TargetURI) (*secret.Token, error) {
	key, err := c.key(targetURI)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.kind != secret.KindToken {
		metrics.CacheLookup("token", false)
		return nil, nil
	}

	value, err := e.value.Reveal()
	if err != nil {
		return nil, fmt.Errorf("open cached token: %w", err)
	}
	token, err := secret.NewToken(value, e.tokenType, e.identity)
	if err != nil {
		return nil, err
	}
	metrics.CacheLookup("token", true)
	return &token, nil
}

// WriteCredentials upserts cred under the target's key.
func (c *SecretCache) WriteCredentials(targetURI secret.TargetURI, cred secret.Credential) error {
	key, err := c.key(targetURI)
	if err != nil {
		return err
	}
	if err := cred.Validate(); err != nil {
		return err
	}

	buf, err := secure.NewSecureString(cred.Password())
	if err != nil {
		return fmt.Errorf("protect credential: %w", err)
	}

	c.put(key, &entry{kind: secret.KindCredential, username: cred.Username(), value: buf})
	return nil
}

// WriteToken upserts token under the target's key.
func (c *SecretCache) WriteToken(targetURI secret.TargetURI, token secret.Token) error {
	key, err := c.key(targetURI)
	if err != nil {
		return err
	}
	if err := token.Validate(); err != nil {
		return err
	}

	buf, err := secure.NewSecureString(token.Value())
	if err != nil {
		return fmt.Errorf("protect token: %w", err)
	}

	c.put(key, &entry{
		kind:      secret.KindToken,
		tokenType: token.Type(),
		identity:  token.TargetIdentity(),
		value:     buf,
	})
	return nil
}

// DeleteCredentials removes the key if it holds a credential.
func (c *SecretCache) DeleteCredentials(targetURI secret.TargetURI) error {
	return c.delete(targetURI, secret.KindCredential)
}

// DeleteToken removes the key if it holds a token.
func (c *SecretCache) DeleteToken(targetURI secret.TargetURI) error {
	return c.delete(targetURI, secret.KindToken)
}

// DeleteKey removes key regardless of the kind it holds.
func (c *SecretCache) DeleteKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value.Destroy()
		delete(c.entries, key)
	}
}

// Purge removes every key starting with prefix and returns how many were removed.
func (c *SecretCache) Purge(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if strings.HasPrefix(key, prefix) {
			e.value.Destroy()
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached entries.
func (c *SecretCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *SecretCache) put(key string, e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		old.value.Destroy()
	}
	c.entries[key] = e
}

func (c *SecretCache) delete(targetURI secret.TargetURI, kind secret.Kind) error {
	key, err := c.key(targetURI)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && e.kind == kind {
		e.value.Destroy()
		delete(c.entries, key)
	}
	return nil
}

func (c *SecretCache) key(targetURI secret.TargetURI) (string, error) {
	if err := targetURI.Validate(); err != nil {
		return "", err
	}
	return c.name(targetURI, c.namespace), nil
}
