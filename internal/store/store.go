// Package store persists credentials and tokens in the OS secure store behind a
// write-through in-memory cache.
//
// Reads consult the cache first and fall back to the native store on a miss, populating the
// cache. Writes go to the native store first and are mirrored into the cache only once the
// native write succeeded, so a failed write is never visible to readers.
//
// A credential and a token for the same target share one native entry. The entry's name
// field tells them apart: a token is stored under its type's friendly name, anything else
// is a username.
//
// Concurrent writes for the same target from different goroutines or processes race and
// the last write wins.
package store

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"

	"github.com/systmms/credbroker/internal/cache"
	"github.com/systmms/credbroker/internal/contracts"
	"github.com/systmms/credbroker/internal/logging"
	"github.com/systmms/credbroker/internal/metrics"
	"github.com/systmms/credbroker/pkg/secret"
)

// IllegalNamespaceChars may not appear in a namespace.
const IllegalNamespaceChars = `:;\?@=&%$`

// SecretStore is the durable, cache-fronted secret store for one namespace.
type SecretStore struct {
	storage   contracts.SecureStorage
	namespace string
	name      secret.NameFunc
	cache     *cache.SecretCache
	access    AccessCheck
	logger    *logging.Logger
}

// Option customises a SecretStore.
type Option func(*SecretStore)

// WithCache shares an existing cache. It must have been built with the same namespace and
// name func as the store.
func WithCache(c *cache.SecretCache) Option {
	return func(s *SecretStore) { s.cache = c }
}

// WithNameFunc replaces secret.TargetName, e.g. with secret.PathedTargetName.
func WithNameFunc(name secret.NameFunc) Option {
	return func(s *SecretStore) { s.name = name }
}

// WithAccessCheck replaces the platform ownership precondition.
func WithAccessCheck(check AccessCheck) Option {
	return func(s *SecretStore) { s.access = check }
}

func WithLogger(logger *logging.Logger) Option {
	return func(s *SecretStore) { s.logger = logger }
}

// ValidateNamespace rejects empty namespaces and reserved characters.
func ValidateNamespace(namespace string) error {
	if strings.TrimSpace(namespace) == "" {
		return fmt.Errorf("%w: namespace must not be empty", ErrInvalidNamespace)
	}
	if i := strings.IndexAny(namespace, IllegalNamespaceChars); i >= 0 {
		return fmt.Errorf("%w: %q contains illegal character %q", ErrInvalidNamespace, namespace, namespace[i])
	}
	return nil
}

// New creates a store over storage. It fails fast on an invalid namespace.
func New(storage contracts.SecureStorage, namespace string, opts ...Option) (*SecretStore, error) {
	if storage == nil {
		return nil, errors.New("secure storage is required")
	}
	if err := ValidateNamespace(namespace); err != nil {
		return nil, err
	}

	s := &SecretStore{
		storage:   storage,
		namespace: namespace,
		name:      secret.TargetName,
		access:    CheckOwnership,
		logger:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.access == nil {
		s.access = NoAccessCheck
	}
	if s.cache == nil {
		s.cache = cache.New(namespace, s.name)
	}
	return s, nil
}

// Namespace returns the namespace keys are scoped by.
func (s *SecretStore) Namespace() string {
	return s.namespace
}

// TargetName returns the storage key for targetURI.
func (s *SecretStore) TargetName(targetURI secret.TargetURI) string {
	return s.name(targetURI, s.namespace)
}

// ReadCredentials returns the stored credential or nil. An entry tagged as a token is a miss.
func (s *SecretStore) ReadCredentials(targetURI secret.TargetURI) (*secret.Credential, error) {
	if err := targetURI.Validate(); err != nil {
		return nil, err
	}

	if cred, err := s.cache.ReadCredentials(targetURI); err != nil || cred != nil {
		return cred, err
	}

	key := s.TargetName(targetURI)
	data, found, err := s.readNative(key)
	if err != nil || !found {
		return nil, err
	}

	if _, isToken := secret.ParseTokenType(data.Name); isToken {
		s.logger.Debug("entry %s holds a token, not a credential", key)
		return nil, nil
	}

	cred, err := secret.NewCredential(data.Name, decodePassword(data.Data))
	if err != nil {
		s.logger.Warn("ignoring unreadable credential %s: %v", key, err)
		return nil, nil
	}

	if err := s.cache.WriteCredentials(targetURI, cred); err != nil {
		s.logger.Warn("failed to cache credential %s: %v", key, err)
	}
	return &cred, nil
}

// ReadToken returns the stored token or nil. An entry whose name is not a token type, or
// whose payload cannot be decoded, is a miss.
func (s *SecretStore) ReadToken(targetURI secret.TargetURI) (*secret.Token, error) {
	if err := targetURI.Validate(); err != nil {
		return nil, err
	}

	if token, err := s.cache.ReadToken(targetURI); err != nil || token != nil {
		return token, err
	}

	key := s.TargetName(targetURI)
	data, found, err := s.readNative(key)
	if err != nil || !found {
		return nil, err
	}

	typ, isToken := secret.ParseTokenType(data.Name)
	if !isToken {
		s.logger.Debug("entry %s holds a credential, not a token", key)
		return nil, nil
	}

	token, err := secret.DeserializeToken(data.Data, typ)
	if err != nil {
		s.logger.Warn("ignoring corrupt token %s: %v", key, err)
		return nil, nil
	}

	if err := s.cache.WriteToken(targetURI, token); err != nil {
		s.logger.Warn("failed to cache token %s: %v", key, err)
	}
	return &token, nil
}

// WriteCredentials persists cred natively, then mirrors it into the cache.
func (s *SecretStore) WriteCredentials(targetURI secret.TargetURI, cred secret.Credential) error {
	if err := targetURI.Validate(); err != nil {
		return err
	}
	if err := cred.Validate(); err != nil {
		return err
	}

	key := s.TargetName(targetURI)
	if err := s.writeNative(key, cred.Username(), []byte(cred.Password())); err != nil {
		return err
	}
	return s.cache.WriteCredentials(targetURI, cred)
}

// WriteToken persists token natively in the tagged format, then mirrors it into the cache.
func (s *SecretStore) WriteToken(targetURI secret.TargetURI, token secret.Token) error {
	if err := targetURI.Validate(); err != nil {
		return err
	}

	data, err := secret.SerializeToken(token)
	if err != nil {
		s.logger.Warn("failed to serialize %s: %v", token, err)
		return err
	}

	key := s.TargetName(targetURI)
	if err := s.writeNative(key, token.Type().FriendlyName(), data); err != nil {
		return err
	}
	return s.cache.WriteToken(targetURI, token)
}

// DeleteCredentials removes the target's entry. Deleting a missing entry succeeds.
func (s *SecretStore) DeleteCredentials(targetURI secret.TargetURI) error {
	return s.delete(targetURI)
}

// DeleteToken removes the target's entry. Deleting a missing entry succeeds.
func (s *SecretStore) DeleteToken(targetURI secret.TargetURI) error {
	return s.delete(targetURI)
}

// PurgeCredentials deletes every native entry in namespace and returns how many were removed.
func (s *SecretStore) PurgeCredentials(namespace string) (int, error) {
	if err := ValidateNamespace(namespace); err != nil {
		return 0, err
	}
	if err := s.checkAccess(""); err != nil {
		return 0, err
	}

	prefix := namespace + ":"
	entries, err := s.storage.Enumerate(prefix)
	metrics.StoreOperation("enumerate", err)
	if err != nil {
		return 0, &AccessError{Op: "enumerate", Key: prefix, Err: err}
	}

	removed := 0
	for _, e := range entries {
		if !strings.HasPrefix(e.Key, prefix) {
			continue
		}
		err := s.storage.Delete(e.Key)
		metrics.StoreOperation("delete", err)
		if err != nil && !errors.Is(err, contracts.ErrNotFound) {
			s.logger.Warn("failed to purge %s: %v", e.Key, err)
			continue
		}
		removed++
	}
	s.cache.Purge(prefix)

	if removed > 0 {
		s.logger.Debug("purged %d entries from namespace %s", removed, namespace)
	}
	return removed, nil
}

func (s *SecretStore) delete(targetURI secret.TargetURI) error {
	if err := targetURI.Validate(); err != nil {
		return err
	}

	key := s.TargetName(targetURI)
	if err := s.checkAccess(key); err != nil {
		return err
	}

	err := s.storage.Delete(key)
	metrics.StoreOperation("delete", err)
	if err != nil && !errors.Is(err, contracts.ErrNotFound) {
		return &AccessError{Op: "delete", Key: key, Err: err}
	}

	s.cache.DeleteKey(key)
	return nil
}

func (s *SecretStore) readNative(key string) (contracts.SecureData, bool, error) {
	if err := s.checkAccess(key); err != nil {
		return contracts.SecureData{}, false, err
	}

	data, err := s.storage.Read(key)
	if errors.Is(err, contracts.ErrNotFound) {
		metrics.StoreOperation("read", nil)
		return contracts.SecureData{}, false, nil
	}
	metrics.StoreOperation("read", err)
	if err != nil {
		return contracts.SecureData{}, false, &AccessError{Op: "read", Key: key, Err: err}
	}
	return data, true, nil
}

func (s *SecretStore) writeNative(key, name string, data []byte) error {
	if err := s.checkAccess(key); err != nil {
		return err
	}

	err := s.storage.Write(key, name, data)
	metrics.StoreOperation("write", err)
	if err != nil {
		return &AccessError{Op: "write", Key: key, Err: err}
	}
	return nil
}

func (s *SecretStore) checkAccess(key string) error {
	if err := s.access(); err != nil {
		var ae *AccessError
		if errors.As(err, &ae) {
			out := *ae
			if out.Key == "" {
				out.Key = key
			}
			return &out
		}
		return &AccessError{Op: "access", Key: key, Message: ownershipRemediation, Err: err}
	}
	return nil
}

// decodePassword reads UTF-8 payloads as-is and UTF-16LE payloads written by Windows
// credential helpers. UTF-8 text never contains NUL bytes, UTF-16 ASCII text always does.
func decodePassword(data []byte) string {
	if len(data) >= 2 && len(data)%2 == 0 && containsNUL(data) {
		decoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		if out, err := decoder.Bytes(data); err == nil && utf8.Valid(out) {
			return string(out)
		}
	}
	return string(data)
}

func containsNUL(data []byte) bool {
	for _, b := range data {
		if b == 0 {
			return true
		}
	}
	return false
}
