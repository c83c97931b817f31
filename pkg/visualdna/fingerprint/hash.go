package fingerprint

import (
	"fmt"
	"math/bits"
	"strconv"
)

const (
	// HashWidth is the number of bits in one HashVector.
	HashWidth = 64

	// HexWidth is the number of hex characters one HashVector occupies in
	// the packed representation.
	HexWidth = HashWidth / 4
)

// HashVector is the perceptual hash of a single sampled frame.
type HashVector uint64

// Distance returns the Hamming distance between h and other, in [0, HashWidth].
func (h HashVector) Distance(other HashVector) int {
	return bits.OnesCount64(uint64(h ^ other))
}

// String returns the fixed-width lowercase hex form used by Pack.
func (h HashVector) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// ParseHash parses exactly HexWidth hex characters into a HashVector.
func ParseHash(s string) (HashVector, error) {
	if len(s) != HexWidth {
		return 0, fmt.Errorf("%w: hash %q has %d characters, want %d", ErrCorruptFingerprint, s, len(s), HexWidth)
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: hash %q is not hex", ErrCorruptFingerprint, s)
	}
	return HashVector(v), nil
}
