package secret

import (
	"fmt"

	"github.com/google/uuid"
)

// tokenPreambleSize is the type tag plus the 16 byte target identity.
const tokenPreambleSize = 1 + 16

// SerializeToken encodes t in the tagged format. Tokens over TokenMaxLength are refused.
func SerializeToken(t Token) ([]byte, error) {
	if err := t.ValidateStored(); err != nil {
		return nil, fmt.Errorf("serialize token: %w", err)
	}

	buf := make([]byte, tokenPreambleSize+len(t.value))
	buf[0] = byte(t.typ)
	id := guidToBytes(t.targetIdentity)
	copy(buf[1:tokenPreambleSize], id[:])
	copy(buf[tokenPreambleSize:], t.value)
	return buf, nil
}

// DeserializeToken decodes data written by SerializeToken for a token of type typ.
// A short buffer or a mismatched tag is read as a legacy untagged value.
func DeserializeToken(data []byte, typ TokenType) (Token, error) {
	if !typ.Valid() {
		return Token{}, fmt.Errorf("deserialize token: unknown type %d", uint8(typ))
	}

	if len(data) > tokenPreambleSize && TokenType(data[0]) == typ {
		var raw [16]byte
		copy(raw[:], data[1:tokenPreambleSize])
		t, err := NewToken(string(data[tokenPreambleSize:]), typ, guidFromBytes(raw))
		if err != nil {
			return Token{}, fmt.Errorf("deserialize token: %w", err)
		}
		return t, nil
	}

	t, err := NewToken(string(data), typ, uuid.Nil)
	if err != nil {
		return Token{}, fmt.Errorf("deserialize legacy token: %w", err)
	}
	return t, nil
}

// guidToBytes lays out id the way a Windows GUID sits in memory: the first three groups
// little-endian, the remaining eight bytes as-is.
func guidToBytes(id uuid.UUID) [16]byte {
	var b [16]byte
	copy(b[:], id[:])
	swapGUIDGroups(&b)
	return b
}

func guidFromBytes(b [16]byte) uuid.UUID {
	swapGUIDGroups(&b)
	return uuid.UUID(b)
}

func swapGUIDGroups(b *[16]byte) {
	b[0], b[1], b[2], b[3] = b[3], b[2], b[1], b[0]
	b[4], b[5] = b[5], b[4]
	b[6], b[7] = b[7], b[6]
}
