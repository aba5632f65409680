package secure

import (
	"sync"

	"github.com/awnumar/memguard"
)

// SecureBuffer holds secret bytes encrypted in memory. It wraps memguard.Enclave, which
// encrypts the data with XSalsa20Poly1305 and keeps the key in locked, guarded pages.
//
// An empty secret (an empty password is legal) is kept without an enclave since memguard
// refuses zero-length enclaves.
type SecureBuffer struct {
	mu        sync.RWMutex
	enclave   *memguard.Enclave
	empty     bool
	destroyed bool
}

// NewSecureBuffer copies data into a protected enclave. data is left untouched; callers
// that own it should wipe it themselves.
func NewSecureBuffer(data []byte) (*SecureBuffer, error) {
	if len(data) == 0 {
		return &SecureBuffer{empty: true}, nil
	}

	// memguard wipes its source, so hand it a copy.
	src := make([]byte, len(data))
	copy(src, data)

	return &SecureBuffer{enclave: memguard.NewEnclave(src)}, nil
}

// NewSecureString is NewSecureBuffer for string material.
func NewSecureString(s string) (*SecureBuffer, error) {
	return NewSecureBuffer([]byte(s))
}

// Open decrypts the data into a locked buffer. The caller MUST Destroy the returned
// buffer when done.
//
//	locked, err := buf.Open()
//	if err != nil {
//	    return err
//	}
//	defer locked.Destroy()
//	secret := locked.Bytes()
func (s *SecureBuffer) Open() (*memguard.LockedBuffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.destroyed || s.empty {
		return memguard.NewBufferFromBytes([]byte{}), nil
	}
	return s.enclave.Open()
}

// Reveal decrypts the data and returns it as a string, wiping the intermediate buffer.
func (s *SecureBuffer) Reveal() (string, error) {
	locked, err := s.Open()
	if err != nil {
		return "", err
	}
	defer locked.Destroy()
	return string(locked.Bytes()), nil
}

// Destroy drops the enclave. Idempotent; afterwards Open returns an empty buffer.
func (s *SecureBuffer) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}
	s.enclave = nil
	s.destroyed = true
}

// Destroyed reports whether Destroy has been called.
func (s *SecureBuffer) Destroyed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.destroyed
}
