package store

import (
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/zalando/go-keyring"

	"github.com/systmms/credbroker/internal/contracts"
	"github.com/systmms/credbroker/internal/logging"
)

const (
	// keyringAccount is the account every credbroker entry is filed under.
	keyringAccount = "credbroker"

	// keyringIndexService holds, per namespace, the keys written through this process.
	// OS keyrings cannot be listed by service prefix, so purge relies on it.
	keyringIndexService = "credbroker-index"

	// KeyringValueLimit is the largest value accepted by every keyring backend. Windows
	// Credential Manager refuses blobs over 2560 bytes.
	KeyringValueLimit = 2560

	// keyringIndexShardLimit bounds one index shard so the index never hits KeyringValueLimit.
	keyringIndexShardLimit = 2048
)

// encodeKeyringValue lays an entry out as "name\nbase64(head)\ntail". tail is the longest
// suffix of data that is valid UTF-8 without NUL bytes, so only the binary preamble of a
// token pays the base64 overhead and a password or token value is stored as is.
func encodeKeyringValue(name string, data []byte) (string, error) {
	if strings.ContainsRune(name, '\n') {
		return "", fmt.Errorf("keyring entry name %q contains a newline", name)
	}
	head := binaryHeadLen(data)

	var sb strings.Builder
	sb.Grow(len(name) + base64.StdEncoding.EncodedLen(head) + len(data) - head + 2)
	sb.WriteString(name)
	sb.WriteByte('\n')
	sb.WriteString(base64.StdEncoding.EncodeToString(data[:head]))
	sb.WriteByte('\n')
	sb.Write(data[head:])
	if sb.Len() > KeyringValueLimit {
		return "", fmt.Errorf("%w: %d bytes encoded, limit %d", keyring.ErrSetDataTooBig, sb.Len(), KeyringValueLimit)
	}
	return sb.String(), nil
}

func decodeKeyringValue(raw string) (string, []byte, error) {
	parts := strings.SplitN(raw, "\n", 3)
	if len(parts) != 3 {
		return "", nil, errors.New("decode keyring entry: malformed value")
	}
	head, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("decode keyring payload: %w", err)
	}
	return parts[0], append(head, parts[2]...), nil
}

// binaryHeadLen returns the length of the prefix of data that ends with its last byte
// that is not part of a valid, non-NUL UTF-8 rune.
func binaryHeadLen(data []byte) int {
	head := 0
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		i += size
		if r == 0 || (r == utf8.RuneError && size == 1) {
			head = i
		}
	}
	return head
}

// KeyringStorage implements contracts.SecureStorage on the OS keyring (macOS Keychain,
// Secret Service, Windows Credential Manager) via go-keyring.
type KeyringStorage struct {
	mu     sync.Mutex
	logger *logging.Logger
}

// NewKeyringStorage creates the OS keyring backed storage.
func NewKeyringStorage(logger *logging.Logger) *KeyringStorage {
	if logger == nil {
		logger = logging.Nop()
	}
	return &KeyringStorage{logger: logger}
}

// Read returns the entry for key or contracts.ErrNotFound.
func (k *KeyringStorage) Read(key string) (contracts.SecureData, error) {
	raw, err := keyring.Get(key, keyringAccount)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return contracts.SecureData{}, contracts.ErrNotFound
		}
		return contracts.SecureData{}, err
	}

	name, data, err := decodeKeyringValue(raw)
	if err != nil {
		return contracts.SecureData{}, err
	}
	return contracts.SecureData{Key: key, Name: name, Data: data}, nil
}

// Write stores name and data under key and records key in the namespace index. The index is
// updated first so an entry that exists is always reachable by Enumerate.
func (k *KeyringStorage) Write(key, name string, data []byte) error {
	raw, err := encodeKeyringValue(name, data)
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.updateIndex(key, true); err != nil {
		return fmt.Errorf("update keyring index: %w", err)
	}
	if err := keyring.Set(key, keyringAccount, raw); err != nil {
		return err
	}
	k.logger.Debug("stored %s in the OS keyring (%d bytes)", key, len(raw))
	return nil
}

// Delete removes key. A missing key is not an error.
func (k *KeyringStorage) Delete(key string) error {
	if err := keyring.Delete(key, keyringAccount); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.updateIndex(key, false); err != nil {
		return fmt.Errorf("update keyring index: %w", err)
	}
	return nil
}

// Enumerate returns the indexed entries whose key starts with prefix. The prefix must start
// with the namespace ("ns:" or "ns:https://host").
func (k *KeyringStorage) Enumerate(prefix string) ([]contracts.SecureData, error) {
	k.mu.Lock()
	keys, _, err := k.readIndex(namespaceOf(prefix))
	k.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var out []contracts.SecureData
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		data, err := k.Read(key)
		if errors.Is(err, contracts.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

func indexShardAccount(namespace string, shard int) string {
	return namespace + "#" + strconv.Itoa(shard)
}

// readIndex returns the sorted keys of namespace and the number of shards holding them.
// Shards are numbered from 0 without gaps.
func (k *KeyringStorage) readIndex(namespace string) ([]string, int, error) {
	var keys []string
	shards := 0
	for ; ; shards++ {
		raw, err := keyring.Get(keyringIndexService, indexShardAccount(namespace, shards))
		if errors.Is(err, keyring.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		for _, key := range strings.Split(raw, "\n") {
			if key != "" {
				keys = append(keys, key)
			}
		}
	}
	slices.Sort(keys)
	return keys, shards, nil
}

func (k *KeyringStorage) updateIndex(key string, present bool) error {
	if len(key) >= keyringIndexShardLimit {
		return fmt.Errorf("key of %d bytes does not fit an index shard", len(key))
	}
	namespace := namespaceOf(key)
	keys, shards, err := k.readIndex(namespace)
	if err != nil {
		return err
	}

	i, found := slices.BinarySearch(keys, key)
	switch {
	case present && found, !present && !found:
		return nil
	case present:
		keys = slices.Insert(keys, i, key)
	default:
		keys = slices.Delete(keys, i, i+1)
	}

	packed := packIndex(keys)
	for shard, raw := range packed {
		if err := keyring.Set(keyringIndexService, indexShardAccount(namespace, shard), raw); err != nil {
			return err
		}
	}
	for shard := len(packed); shard < shards; shard++ {
		err := keyring.Delete(keyringIndexService, indexShardAccount(namespace, shard))
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return err
		}
	}
	return nil
}

// packIndex splits sorted keys into newline separated shards of at most keyringIndexShardLimit bytes.
func packIndex(keys []string) []string {
	var shards []string
	var sb strings.Builder
	for _, key := range keys {
		if sb.Len() > 0 && sb.Len()+1+len(key) > keyringIndexShardLimit {
			shards = append(shards, sb.String())
			sb.Reset()
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(key)
	}
	if sb.Len() > 0 {
		shards = append(shards, sb.String())
	}
	return shards
}

func namespaceOf(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return key
}

var _ contracts.SecureStorage = (*KeyringStorage)(nil)
