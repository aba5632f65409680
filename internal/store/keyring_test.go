package store_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/systmms/credbroker/internal/contracts"
	"github.com/systmms/credbroker/internal/store"
	"github.com/systmms/credbroker/pkg/secret"
)

// go-keyring's mock provider is process global, so these tests do not run in parallel.

func TestKeyringStorageRoundTrip(t *testing.T) {
	keyring.MockInit()
	k := store.NewKeyringStorage(nil)

	_, err := k.Read("git:https://example.com")
	assert.ErrorIs(t, err, contracts.ErrNotFound)

	payload := []byte{0x03, 0x00, 0xff, 'p', 'a', 't'}
	require.NoError(t, k.Write("git:https://example.com", "Personal Access Token", payload))

	got, err := k.Read("git:https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "git:https://example.com", got.Key)
	assert.Equal(t, "Personal Access Token", got.Name)
	assert.Equal(t, payload, got.Data)

	require.NoError(t, k.Delete("git:https://example.com"))
	require.NoError(t, k.Delete("git:https://example.com"))
	_, err = k.Read("git:https://example.com")
	assert.ErrorIs(t, err, contracts.ErrNotFound)
}

func TestKeyringStorageEnumerate(t *testing.T) {
	keyring.MockInit()
	k := store.NewKeyringStorage(nil)

	require.NoError(t, k.Write("legacy:https://a.example.com", "Azure Federated Token", []byte("a")))
	require.NoError(t, k.Write("legacy:https://b.example.com", "Azure Federated Token", []byte("b")))
	require.NoError(t, k.Write("git:https://a.example.com", "john", []byte("pw")))

	entries, err := k.Enumerate("legacy:")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "legacy:https://a.example.com", entries[0].Key)
	assert.Equal(t, "legacy:https://b.example.com", entries[1].Key)

	entries, err = k.Enumerate("legacy:https://b")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, k.Delete("legacy:https://a.example.com"))
	entries, err = k.Enumerate("legacy:")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestKeyringBackedSecretStore(t *testing.T) {
	keyring.MockInit()

	k := store.NewKeyringStorage(nil)
	s, err := store.New(k, "git", store.WithAccessCheck(store.NoAccessCheck))
	require.NoError(t, err)
	target := secret.MustTargetURI("https://example.com")

	require.NoError(t, s.WriteToken(target, secret.MustToken("pat", secret.TokenPersonal)))

	fresh, err := store.New(k, "git", store.WithAccessCheck(store.NoAccessCheck))
	require.NoError(t, err)
	token, err := fresh.ReadToken(target)
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, "pat", token.Value())

	removed, err := fresh.PurgeCredentials("git")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = k.Read("git:https://example.com")
	assert.ErrorIs(t, err, contracts.ErrNotFound)
}

func TestKeyringStorageFitsLargestStoredToken(t *testing.T) {
	keyring.MockInit()
	k := store.NewKeyringStorage(nil)

	token, err := secret.NewToken(strings.Repeat("t", secret.TokenMaxLength), secret.TokenAzureFederated, uuid.New())
	require.NoError(t, err)
	data, err := secret.SerializeToken(token)
	require.NoError(t, err)

	key := "adal:https://contoso.visualstudio.com"
	require.NoError(t, k.Write(key, token.Type().FriendlyName(), data))

	raw, err := keyring.Get(key, "credbroker")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(raw), store.KeyringValueLimit)

	got, err := k.Read(key)
	require.NoError(t, err)
	assert.Equal(t, data, got.Data)
	assert.Equal(t, token.Type().FriendlyName(), got.Name)
}

func TestKeyringStorageRejectsOversizedValue(t *testing.T) {
	keyring.MockInit()
	k := store.NewKeyringStorage(nil)

	err := k.Write("git:https://example.com", "john", []byte(strings.Repeat("p", store.KeyringValueLimit)))
	assert.ErrorIs(t, err, keyring.ErrSetDataTooBig)
	_, err = k.Read("git:https://example.com")
	assert.ErrorIs(t, err, contracts.ErrNotFound)

	err = k.Write("git:https://example.com", "multi\nline", []byte("pw"))
	assert.Error(t, err)
}

func TestKeyringStorageIndexShards(t *testing.T) {
	keyring.MockInit()
	k := store.NewKeyringStorage(nil)

	const hosts = 200
	for i := 0; i < hosts; i++ {
		require.NoError(t, k.Write(fmt.Sprintf("legacy:https://host-%03d.example.com", i), "john", []byte("pw")))
	}

	shards := 0
	for ; ; shards++ {
		raw, err := keyring.Get("credbroker-index", fmt.Sprintf("legacy#%d", shards))
		if err != nil {
			break
		}
		assert.LessOrEqual(t, len(raw), store.KeyringValueLimit)
	}
	assert.Greater(t, shards, 1)

	entries, err := k.Enumerate("legacy:")
	require.NoError(t, err)
	assert.Len(t, entries, hosts)

	for _, entry := range entries {
		require.NoError(t, k.Delete(entry.Key))
	}
	entries, err = k.Enumerate("legacy:")
	require.NoError(t, err)
	assert.Empty(t, entries)
	_, err = keyring.Get("credbroker-index", "legacy#0")
	assert.ErrorIs(t, err, keyring.ErrNotFound)
}
