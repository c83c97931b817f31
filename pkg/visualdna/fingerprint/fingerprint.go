package fingerprint

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCorruptFingerprint is returned when a packed fingerprint cannot be
// sliced back into whole HashVectors.
var ErrCorruptFingerprint = errors.New("corrupt fingerprint")

// Fingerprint is the ordered sequence of per-frame hashes of one video, in
// capture-time order. It is never mutated after Build returns it.
type Fingerprint []HashVector

// Len returns the number of sampled frames.
func (f Fingerprint) Len() int { return len(f) }

// Empty reports whether no frames were hashed.
func (f Fingerprint) Empty() bool { return len(f) == 0 }

// Equal reports whether both fingerprints hold the same hashes in the same order.
func (f Fingerprint) Equal(other Fingerprint) bool {
	if len(f) != len(other) {
		return false
	}
	for i := range f {
		if f[i] != other[i] {
			return false
		}
	}
	return true
}

// Pack serializes f as the concatenation of HexWidth-character hex hashes.
// An empty fingerprint packs to the empty string.
func (f Fingerprint) Pack() string {
	var b strings.Builder
	b.Grow(len(f) * HexWidth)
	for _, h := range f {
		b.WriteString(h.String())
	}
	return b.String()
}

// String is an alias for Pack.
func (f Fingerprint) String() string { return f.Pack() }

// Unpack parses a packed fingerprint. A length that is not a multiple of
// HexWidth, or any non-hex character, is reported as ErrCorruptFingerprint
// rather than silently truncated.
func Unpack(packed string) (Fingerprint, error) {
	packed = strings.TrimSpace(packed)
	if packed == "" {
		return Fingerprint{}, nil
	}
	if len(packed)%HexWidth != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of %d", ErrCorruptFingerprint, len(packed), HexWidth)
	}

	fp := make(Fingerprint, 0, len(packed)/HexWidth)
	for i := 0; i < len(packed); i += HexWidth {
		h, err := ParseHash(packed[i : i+HexWidth])
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i/HexWidth, err)
		}
		fp = append(fp, h)
	}
	return fp, nil
}

// MustUnpack is like Unpack but panics on error. Intended for tests and
// compile-time constants.
func MustUnpack(packed string) Fingerprint {
	fp, err := Unpack(packed)
	if err != nil {
		panic(err)
	}
	return fp
}
