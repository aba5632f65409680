// Package contracts defines the collaborator interfaces the credential core consumes.
// These interfaces enable dependency injection for testing.
package contracts

import "errors"

// ErrNotFound is returned by SecureStorage.Read for a missing key.
var ErrNotFound = errors.New("secure storage entry not found")

// SecureData is one raw entry of the OS secure store.
//
// Name is overloaded: it holds the username of a credential or the friendly name of a
// token type. That overload is the on-disk format shared with other clients.
type SecureData struct {
	Key  string
	Name string
	Data []byte
}

// SecureStorage abstracts the native secure-store primitive (Keychain, Secret Service,
// Windows Credential Manager).
type SecureStorage interface {
	// Read returns the entry stored under key, or ErrNotFound.
	Read(key string) (SecureData, error)

	// Write creates or replaces the entry under key.
	Write(key, name string, data []byte) error

	// Delete removes the entry under key. A missing key is not an error.
	Delete(key string) error

	// Enumerate returns every entry whose key starts with prefix.
	Enumerate(prefix string) ([]SecureData, error)
}
