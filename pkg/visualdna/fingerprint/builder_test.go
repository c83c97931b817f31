package fingerprint

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceSource replays a fixed list of frames, optionally failing at index failAt.
type sliceSource struct {
	frames []image.Image
	pos    int
	failAt int
	closed bool
}

func (s *sliceSource) Next(ctx context.Context) (image.Image, error) {
	if s.failAt >= 0 && s.pos == s.failAt {
		return nil, errors.New("boom")
	}
	if s.pos >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

func (s *sliceSource) Total() int   { return len(s.frames) }
func (s *sliceSource) Close() error { s.closed = true; return nil }

// meanHasher hashes a frame to its mean luma, which makes expected values easy to write.
type meanHasher struct{}

func (meanHasher) Name() string { return "mean" }
func (meanHasher) Hash(img image.Image) HashVector {
	g := LumaGrid(img, 1, 1)
	return HashVector(g[0])
}

func solid(v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func TestBuildPreservesOrder(t *testing.T) {
	src := &sliceSource{frames: []image.Image{solid(10), solid(200), solid(10), solid(30)}, failAt: -1}

	var calls []int
	fp, err := Build(context.Background(), src, meanHasher{}, func(done, total int) {
		calls = append(calls, done)
		assert.Equal(t, 4, total)
	})
	require.NoError(t, err)
	assert.Equal(t, Fingerprint{10, 200, 10, 30}, fp)
	assert.Equal(t, []int{1, 2, 3, 4}, calls)
}

func TestBuildNoFrames(t *testing.T) {
	fp, err := Build(context.Background(), &sliceSource{failAt: -1}, meanHasher{}, nil)
	require.NoError(t, err)
	assert.NotNil(t, fp)
	assert.True(t, fp.Empty())
}

func TestBuildPropagatesSourceError(t *testing.T) {
	src := &sliceSource{frames: []image.Image{solid(1), solid(2), solid(3)}, failAt: 2}
	_, err := Build(context.Background(), src, meanHasher{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading frame 2")
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, &sliceSource{frames: []image.Image{solid(1)}, failAt: -1}, meanHasher{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildNilArguments(t *testing.T) {
	_, err := Build(context.Background(), nil, meanHasher{}, nil)
	assert.Error(t, err)
	_, err = Build(context.Background(), &sliceSource{failAt: -1}, nil, nil)
	assert.Error(t, err)
}

func halves(w, h int, left, right uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := right
			if x < w/2 {
				v = left
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func TestAverageHasherKnownPattern(t *testing.T) {
	h := AverageHasher{}.Hash(halves(64, 64, 255, 0))
	assert.Equal(t, HashVector(0xF0F0F0F0F0F0F0F0), h)

	inv := AverageHasher{}.Hash(halves(64, 64, 0, 255))
	assert.Equal(t, HashVector(0x0F0F0F0F0F0F0F0F), inv)
	assert.Equal(t, HashWidth, h.Distance(inv))
}

func TestPHasherDeterministic(t *testing.T) {
	img := halves(320, 240, 230, 20)

	a := NewPHasher().Hash(img)
	b := NewPHasher().Hash(img)
	assert.Equal(t, a, b)

	p := NewPHasher()
	assert.Equal(t, p.Hash(img), p.Hash(img))
}

func TestPHasherRobustToScale(t *testing.T) {
	p := NewPHasher()
	small := p.Hash(halves(64, 64, 230, 20))
	large := p.Hash(halves(640, 640, 230, 20))
	assert.LessOrEqual(t, small.Distance(large), 4)
}

func TestPHasherSeparatesDifferentFrames(t *testing.T) {
	p := NewPHasher()
	a := p.Hash(halves(128, 128, 230, 20))

	vertical := image.NewGray(image.Rect(0, 0, 128, 128))
	for y := 0; y < 128; y++ {
		for x := 0; x < 128; x++ {
			if y < 64 {
				vertical.SetGray(x, y, color.Gray{Y: 230})
			} else {
				vertical.SetGray(x, y, color.Gray{Y: 20})
			}
		}
	}
	b := p.Hash(vertical)
	assert.NotEqual(t, a, b)
}

func TestLumaGridBoxAverage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 2))
	copy(img.Pix, []uint8{
		0, 100, 10, 10,
		200, 100, 30, 30,
	})
	grid := LumaGrid(img, 2, 1)
	assert.Equal(t, []float64{100, 20}, grid)

	rgba := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < len(rgba.Pix); i += 4 {
		rgba.Pix[i], rgba.Pix[i+1], rgba.Pix[i+2], rgba.Pix[i+3] = 255, 255, 255, 255
	}
	assert.Equal(t, []float64{255}, LumaGrid(rgba, 1, 1))
	assert.Equal(t, []float64{0, 0}, LumaGrid(nil, 2, 1))
}

func TestNewHasher(t *testing.T) {
	h, err := NewHasher("")
	require.NoError(t, err)
	assert.Equal(t, HasherPHash, h.Name())

	h, err = NewHasher(" AHASH ")
	require.NoError(t, err)
	assert.Equal(t, HasherAverage, h.Name())

	_, err = NewHasher("dhash")
	assert.Error(t, err)
}
