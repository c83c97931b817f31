package fingerprint

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashVectorDistance(t *testing.T) {
	tests := []struct {
		a, b HashVector
		want int
	}{
		{0, 0, 0},
		{0, 1, 1},
		{0, ^HashVector(0), 64},
		{0xF0F0F0F0F0F0F0F0, 0x0F0F0F0F0F0F0F0F, 64},
		{0xFF, 0x0F, 4},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.a.Distance(tt.b), "%s vs %s", tt.a, tt.b)
		assert.Equal(t, tt.want, tt.b.Distance(tt.a))
	}
}

func TestPackUnpack(t *testing.T) {
	fp := Fingerprint{0x0123456789abcdef, 0, ^HashVector(0)}

	packed := fp.Pack()
	assert.Equal(t, "0123456789abcdef0000000000000000ffffffffffffffff", packed)
	assert.Len(t, packed, 3*HexWidth)

	back, err := Unpack(packed)
	require.NoError(t, err)
	assert.True(t, fp.Equal(back))
}

func TestUnpackAcceptsUpperCase(t *testing.T) {
	fp, err := Unpack("FFFFFFFFFFFFFFFF")
	require.NoError(t, err)
	require.Len(t, fp, 1)
	assert.Equal(t, "ffffffffffffffff", fp.Pack())
}

func TestUnpackEmpty(t *testing.T) {
	fp, err := Unpack("")
	require.NoError(t, err)
	assert.NotNil(t, fp)
	assert.True(t, fp.Empty())

	fp, err = Unpack("   ")
	require.NoError(t, err)
	assert.True(t, fp.Empty())
}

func TestUnpackRejectsMalformedLength(t *testing.T) {
	for _, packed := range []string{
		"f",
		"0123456789abcde",
		"0123456789abcdef0",
		strings.Repeat("a", HexWidth*2+3),
	} {
		_, err := Unpack(packed)
		require.Error(t, err, "length %d", len(packed))
		assert.True(t, errors.Is(err, ErrCorruptFingerprint))
	}
}

func TestUnpackRejectsNonHex(t *testing.T) {
	_, err := Unpack("0123456789abcdef0123456789abcdeg")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorruptFingerprint))
	assert.Contains(t, err.Error(), "frame 1")

	_, err = Unpack("+123456789abcdef")
	assert.True(t, errors.Is(err, ErrCorruptFingerprint))
}

func TestMustUnpackPanics(t *testing.T) {
	assert.Panics(t, func() { MustUnpack("abc") })
	assert.NotPanics(t, func() { MustUnpack("0000000000000000") })
}

func TestParseHash(t *testing.T) {
	h, err := ParseHash("00000000000000ff")
	require.NoError(t, err)
	assert.Equal(t, HashVector(0xff), h)

	_, err = ParseHash("ff")
	assert.True(t, errors.Is(err, ErrCorruptFingerprint))
}
