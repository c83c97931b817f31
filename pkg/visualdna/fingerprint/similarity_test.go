package fingerprint

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomFingerprint(r *rand.Rand, n int) Fingerprint {
	fp := make(Fingerprint, n)
	for i := range fp {
		fp[i] = HashVector(r.Uint64())
	}
	return fp
}

func flipAll(fp Fingerprint) Fingerprint {
	out := make(Fingerprint, len(fp))
	for i, h := range fp {
		out[i] = ^h
	}
	return out
}

func TestSimilarityIdentity(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for n := 1; n <= 40; n++ {
		fp := randomFingerprint(r, n)
		assert.Equal(t, 100.0, Similarity(fp, fp), "length %d", n)
	}
}

func TestSimilarityEmpty(t *testing.T) {
	fp := Fingerprint{1, 2, 3}
	assert.Equal(t, 0.0, Similarity(nil, fp))
	assert.Equal(t, 0.0, Similarity(fp, nil))
	assert.Equal(t, 0.0, Similarity(Fingerprint{}, Fingerprint{}))
}

func TestSimilaritySymmetric(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 200; i++ {
		a := randomFingerprint(r, 1+r.Intn(20))
		b := randomFingerprint(r, 1+r.Intn(20))
		assert.Equal(t, Similarity(a, b), Similarity(b, a), "lengths %d/%d", len(a), len(b))
	}
}

func TestSimilaritySymmetricEqualLength(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for i := 0; i < 200; i++ {
		n := 1 + r.Intn(10)
		a := randomFingerprint(r, n)
		b := randomFingerprint(r, n)
		assert.Equal(t, Similarity(a, b), Similarity(b, a))
	}
}

func TestSimilarityBounds(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	for i := 0; i < 500; i++ {
		a := randomFingerprint(r, r.Intn(12))
		b := randomFingerprint(r, r.Intn(12))
		s := Similarity(a, b)
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 100.0)
	}
}

func TestSimilarityAllFlipped(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	h := HashVector(r.Uint64())
	same := Fingerprint{h, h, h}
	assert.Equal(t, 0.0, Similarity(same, flipAll(same)))
}

func TestSimilarityNormalization(t *testing.T) {
	base := Fingerprint{0, 0}
	tests := []struct {
		name   string
		search Fingerprint
		want   float64
	}{
		{"distance 8", Fingerprint{0xFF, 0xFF}, 75},
		{"distance 16", Fingerprint{0xFFFF, 0xFFFF}, 50},
		{"distance 32 hits the cap", Fingerprint{0xFFFFFFFF, 0xFFFFFFFF}, 0},
		{"distance 48 is clamped", Fingerprint{0xFFFFFFFFFFFF, 0xFFFFFFFFFFFF}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(base, tt.search), 1e-9)
		})
	}
}

func TestSimilarityMonotonic(t *testing.T) {
	base := Fingerprint{0, 0, 0}
	prev := 101.0
	for bits := 0; bits <= 64; bits++ {
		var h HashVector
		if bits == 64 {
			h = ^HashVector(0)
		} else {
			h = HashVector(uint64(1)<<uint(bits) - 1)
		}
		s := Similarity(base, Fingerprint{h, h, h})
		assert.LessOrEqual(t, s, prev, "bits=%d", bits)
		prev = s
	}
}

func TestBestMatchDistancesShorterBase(t *testing.T) {
	target := Fingerprint{0x0, 0xF, 0xFF}
	entry := Fingerprint{0x1, 0x3, 0xF0, 0xFFFF, 0x7}

	base, search := orient(target, entry)
	require.True(t, base.Equal(target), "shorter fingerprint must be the base")
	require.True(t, search.Equal(entry))

	dists := BestMatchDistances(base, search)
	require.Len(t, dists, 3)
	// 0x0 -> 0x1 (1 bit), 0xF -> 0x7 (1 bit), 0xFF -> 0xF0 (4 bits)
	assert.Equal(t, []int{1, 1, 4}, dists)
	assert.InDelta(t, 2.0, MeanBestMatchDistance(base, search), 1e-9)
	assert.InDelta(t, 100-(2.0/NormalizationCap)*100, Similarity(target, entry), 1e-9)
	assert.InDelta(t, Similarity(target, entry), Similarity(entry, target), 1e-9)
}

func TestBestMatchDistancesEmptySearch(t *testing.T) {
	assert.Nil(t, BestMatchDistances(Fingerprint{1}, nil))
	assert.Equal(t, 0.0, MeanBestMatchDistance(nil, Fingerprint{1}))
}
