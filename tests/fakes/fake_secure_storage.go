package fakes

import (
	"sort"
	"strings"
	"sync"

	"github.com/systmms/credbroker/internal/contracts"
)

// FakeSecureStorage is an in-memory contracts.SecureStorage.
//
// Errors can be injected per operation, and EnumerateGate, when set, blocks Enumerate
// until the channel is closed so tests can observe work that must not block callers.
//
//	fake := fakes.NewFakeSecureStorage()
//	fake.Put("git:https://example.com", "john", []byte("pw"))
//	st, _ := store.New(fake, "git", store.WithAccessCheck(store.NoAccessCheck))
type FakeSecureStorage struct {
	mu      sync.Mutex
	entries map[string]contracts.SecureData
	calls   map[string]int

	ReadErr      error
	WriteErr     error
	DeleteErr    error
	EnumerateErr error

	// EnumerateGate blocks Enumerate until closed.
	EnumerateGate chan struct{}
	// EnumerateStarted is closed when Enumerate is entered, if set.
	EnumerateStarted chan struct{}
}

// NewFakeSecureStorage creates an empty fake.
func NewFakeSecureStorage() *FakeSecureStorage {
	return &FakeSecureStorage{
		entries: make(map[string]contracts.SecureData),
		calls:   make(map[string]int),
	}
}

// Put seeds an entry without counting it as a call.
func (f *FakeSecureStorage) Put(key, name string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = contracts.SecureData{Key: key, Name: name, Data: append([]byte(nil), data...)}
}

// Get returns the raw entry, bypassing call counting.
func (f *FakeSecureStorage) Get(key string) (contracts.SecureData, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[key]
	return e, ok
}

// Keys returns all stored keys, sorted.
func (f *FakeSecureStorage) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.entries))
	for k := range f.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Calls returns how many times op ("read", "write", "delete", "enumerate") was invoked.
func (f *FakeSecureStorage) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *FakeSecureStorage) Read(key string) (contracts.SecureData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls["read"]++
	if f.ReadErr != nil {
		return contracts.SecureData{}, f.ReadErr
	}
	e, ok := f.entries[key]
	if !ok {
		return contracts.SecureData{}, contracts.ErrNotFound
	}
	e.Data = append([]byte(nil), e.Data...)
	return e, nil
}

func (f *FakeSecureStorage) Write(key, name string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls["write"]++
	if f.WriteErr != nil {
		return f.WriteErr
	}
	f.entries[key] = contracts.SecureData{Key: key, Name: name, Data: append([]byte(nil), data...)}
	return nil
}

func (f *FakeSecureStorage) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls["delete"]++
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	delete(f.entries, key)
	return nil
}

func (f *FakeSecureStorage) Enumerate(prefix string) ([]contracts.SecureData, error) {
	f.mu.Lock()
	f.calls["enumerate"]++
	started, gate := f.EnumerateStarted, f.EnumerateGate
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.EnumerateErr != nil {
		return nil, f.EnumerateErr
	}
	var out []contracts.SecureData
	for k, e := range f.entries {
		if strings.HasPrefix(k, prefix) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

var _ contracts.SecureStorage = (*FakeSecureStorage)(nil)
