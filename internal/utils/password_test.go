package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHasher() *Hasher {
	// Minimum costs keep the suite fast; NewHasher clamps below these.
	return NewHasher(8*1024, 1, 1)
}

func TestHashAndVerify(t *testing.T) {
	h := testHasher()

	hash, err := h.Hash("Abcd1234")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
	assert.NotContains(t, hash, "Abcd1234")

	ok, err := h.Verify(hash, "Abcd1234")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify(hash, "Abcd1235")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashIsSalted(t *testing.T) {
	h := testHasher()
	a, err := h.Hash("Abcd1234")
	require.NoError(t, err)
	b, err := h.Hash("Abcd1234")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyMalformedHash(t *testing.T) {
	h := testHasher()
	for _, bad := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$aGFzaA",
	} {
		_, err := h.Verify(bad, "whatever")
		assert.ErrorIs(t, err, ErrMalformedHash, "input %q", bad)
	}
}

func TestRehashIfNeeded(t *testing.T) {
	weak := NewHasher(8*1024, 1, 1)
	strong := NewHasher(16*1024, 2, 1)

	hash, err := weak.Hash("Abcd1234")
	require.NoError(t, err)

	// Same parameters: nothing to do.
	_, changed := weak.RehashIfNeeded(hash, "Abcd1234")
	assert.False(t, changed)

	// Stronger current parameters: a fresh hash comes back and verifies.
	rehashed, changed := strong.RehashIfNeeded(hash, "Abcd1234")
	require.True(t, changed)
	ok, err := strong.Verify(rehashed, "Abcd1234")
	require.NoError(t, err)
	assert.True(t, ok)

	// Garbage input must not error out the caller.
	_, changed = strong.RehashIfNeeded("not-a-hash", "Abcd1234")
	assert.False(t, changed)
}
