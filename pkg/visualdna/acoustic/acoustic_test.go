package acoustic

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/VisualDNA/pkg/models"
)

const testRate = 11025

// memStore is an in-memory LandmarkStore.
type memStore struct {
	mu      sync.Mutex
	next    int
	tracks  map[string]string
	buckets map[uint32][]models.Couple
}

func newMemStore() *memStore {
	return &memStore{tracks: map[string]string{}, buckets: map[uint32][]models.Couple{}}
}

func (m *memStore) RegisterTrack(label string, durationMs int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	id := fmt.Sprintf("track-%d", m.next)
	m.tracks[id] = label
	return id, nil
}

func (m *memStore) StoreLandmarks(b map[uint32][]models.Couple) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for h, cs := range b {
		m.buckets[h] = append(m.buckets[h], cs...)
	}
	return nil
}

func (m *memStore) CouplesByHashes(hashes []uint32) (map[uint32][]models.Couple, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uint32][]models.Couple)
	for _, h := range hashes {
		if cs, ok := m.buckets[h]; ok {
			out[h] = cs
		}
	}
	return out, nil
}

func (m *memStore) LandmarkCount(trackID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, cs := range m.buckets {
		for _, c := range cs {
			if c.TrackID == trackID {
				n++
			}
		}
	}
	return n, nil
}

func (m *memStore) DeleteTrack(trackID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tracks, trackID)
	return nil
}

// melody renders a sequence of pure tones, each lasting stepSec.
func melody(freqs []float64, stepSec float64) []float64 {
	per := int(stepSec * testRate)
	out := make([]float64, 0, per*len(freqs))
	for _, f := range freqs {
		for i := 0; i < per; i++ {
			out = append(out, 0.8*math.Sin(2*math.Pi*f*float64(len(out))/testRate))
		}
	}
	return out
}

var tune = []float64{440, 660, 880, 523, 784, 1046, 392, 587, 698, 1318, 494, 740}

func TestSpectrogramFindsTone(t *testing.T) {
	const bin = 100
	freq := float64(bin) * testRate / WindowSize
	samples := make([]float64, testRate)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * freq * float64(i) / testRate)
	}

	spec, err := Spectrogram(samples, 0, 0)
	require.NoError(t, err)
	require.NotEmpty(t, spec)
	assert.Len(t, spec[0], WindowSize/2)

	for _, row := range spec {
		best := 0
		for i := range row {
			if row[i] > row[best] {
				best = i
			}
		}
		assert.Equal(t, bin, best)
	}
}

func TestSpectrogramErrors(t *testing.T) {
	_, err := Spectrogram(nil, 0, 0)
	assert.ErrorIs(t, err, ErrNoSamples)
	_, err = Spectrogram(make([]float64, WindowSize-1), 0, 0)
	assert.ErrorIs(t, err, ErrShortSample)
}

func TestHammingWindow(t *testing.T) {
	w := HammingWindow(5)
	assert.InDelta(t, 0.08, w[0], 1e-9)
	assert.InDelta(t, 1.0, w[2], 1e-9)
	assert.InDelta(t, 0.08, w[4], 1e-9)
	assert.Equal(t, []float64{1}, HammingWindow(1))
}

func TestPackAddressRoundTrip(t *testing.T) {
	addr, ok := PackAddress(300, 17, 1234)
	require.True(t, ok)
	a, b, d := UnpackAddress(addr)
	assert.Equal(t, 300, a)
	assert.Equal(t, 17, b)
	assert.Equal(t, uint32(1234), d)

	_, ok = PackAddress(512, 0, 100)
	assert.False(t, ok, "bin past 9 bits")
	_, ok = PackAddress(1, 1, MinDeltaMs-1)
	assert.False(t, ok)
	_, ok = PackAddress(1, 1, MaxDeltaMs+1)
	assert.False(t, ok)
}

func TestLandmarksFanOut(t *testing.T) {
	var peaks []Peak
	for i := 0; i < 20; i++ {
		peaks = append(peaks, Peak{TimeIdx: i, FreqIdx: 10 + i, Time: float64(i) * 0.05})
	}
	lms := Landmarks(peaks)
	// the last FanOut anchors have fewer partners
	want := 0
	for i := range peaks {
		want += min(FanOut, len(peaks)-1-i)
	}
	assert.Len(t, lms, want)
	assert.Equal(t, uint32(0), lms[0].AnchorMs)
}

func TestVotePrefersAlignedOffset(t *testing.T) {
	query := []Landmark{{Hash: 1, AnchorMs: 0}, {Hash: 2, AnchorMs: 100}, {Hash: 3, AnchorMs: 200}}
	db := map[uint32][]models.Couple{
		1: {{TrackID: "a", AnchorTimeMs: 5000}, {TrackID: "b", AnchorTimeMs: 10}},
		2: {{TrackID: "a", AnchorTimeMs: 5100}, {TrackID: "b", AnchorTimeMs: 900}},
		3: {{TrackID: "a", AnchorTimeMs: 5200}},
	}
	matches := Vote(query, db)
	require.Len(t, matches, 2)
	assert.Equal(t, models.Match{TrackID: "a", OffsetMs: 5000, Count: 3}, matches[0])
	assert.Equal(t, "b", matches[1].TrackID)
	assert.Equal(t, 1, matches[1].Count)
}

func TestConfidence(t *testing.T) {
	assert.Equal(t, 0.0, Confidence(0, 10, 10))
	assert.Equal(t, 0.0, Confidence(5, 0, 10))
	assert.Equal(t, 0.0, Confidence(5, 10, 0))

	assert.InDelta(t, 50.0, Confidence(15, 100, 1000), 1e-9)
	assert.Greater(t, Confidence(40, 100, 100), Confidence(20, 100, 100))
	assert.InDelta(t, 100.0, Confidence(100, 100, 100), 1e-9)

	// fewer than five votes are scaled down
	assert.Less(t, Confidence(4, 4, 4), Confidence(5, 5, 5))
}

func TestRegisterAndIdentify(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	id := NewIdentifier(store, DefaultConfig())

	samples := melody(tune, 0.4)
	trackID, reused, err := id.Register(ctx, samples, testRate, "a.mp4")
	require.NoError(t, err)
	assert.False(t, reused)
	assert.NotEmpty(t, trackID)

	got, err := id.Identify(ctx, samples, testRate)
	require.NoError(t, err)
	assert.Equal(t, trackID, got.TrackID)
	assert.True(t, got.Matched)
	assert.GreaterOrEqual(t, got.Confidence, 50.0)

	again, reused, err := id.Register(ctx, samples, testRate, "b.mp4")
	require.NoError(t, err)
	assert.True(t, reused)
	assert.Equal(t, trackID, again)
	assert.Len(t, store.tracks, 1)
}

func TestIdentifyEmptyStore(t *testing.T) {
	id := NewIdentifier(newMemStore(), DefaultConfig())
	got, err := id.Identify(context.Background(), melody(tune, 0.4), testRate)
	require.NoError(t, err)
	assert.Empty(t, got.TrackID)
	assert.False(t, got.Matched)
}

func TestIdentifyRejectsShortAudio(t *testing.T) {
	id := NewIdentifier(newMemStore(), DefaultConfig())
	_, err := id.Identify(context.Background(), make([]float64, 10), testRate)
	assert.ErrorIs(t, err, ErrShortSample)

	_, err = id.Identify(context.Background(), make([]float64, WindowSize), 0)
	assert.Error(t, err)
}
