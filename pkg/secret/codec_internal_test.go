package secret

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// The byte order matches what Guid.ToByteArray produces for the same GUID.
func TestGUIDWireLayout(t *testing.T) {
	t.Parallel()

	id := uuid.MustParse("00112233-4455-6677-8899-aabbccddeeff")
	got := guidToBytes(id)
	want := [16]byte{
		0x33, 0x22, 0x11, 0x00,
		0x55, 0x44,
		0x77, 0x66,
		0x88, 0x99, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff,
	}
	assert.Equal(t, want, got)
	assert.Equal(t, id, guidFromBytes(got))
}

func TestSerializeTokenLayout(t *testing.T) {
	t.Parallel()

	id := uuid.MustParse("00112233-4455-6677-8899-aabbccddeeff")
	token, err := NewToken("abc", TokenPersonal, id)
	assert.NoError(t, err)

	data, err := SerializeToken(token)
	assert.NoError(t, err)
	assert.Equal(t, []byte{
		byte(TokenPersonal),
		0x33, 0x22, 0x11, 0x00, 0x55, 0x44, 0x77, 0x66,
		0x88, 0x99, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff,
		'a', 'b', 'c',
	}, data)
}
