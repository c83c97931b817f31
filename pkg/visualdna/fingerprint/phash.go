package fingerprint

import (
	"fmt"
	"image"
	"image/color"
	"sort"
	"strings"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// PHashGrid is the side of the luma grid the DCT runs on.
	PHashGrid = 32
	// lowBand is the side of the low-frequency block that becomes the hash.
	lowBand = 8
)

// Hasher names accepted by NewHasher.
const (
	HasherPHash   = "phash"
	HasherAverage = "ahash"
)

// NewHasher returns the hasher registered under name.
func NewHasher(name string) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", HasherPHash:
		return NewPHasher(), nil
	case HasherAverage:
		return AverageHasher{}, nil
	default:
		return nil, fmt.Errorf("unknown hasher %q (want %q or %q)", name, HasherPHash, HasherAverage)
	}
}

// PHasher computes a DCT perceptual hash: the frame is reduced to a 32x32
// luma grid, transformed with a separable 2-D DCT, and the top-left 8x8
// block of coefficients is compared against its median.
type PHasher struct {
	dct *fourier.DCT
}

// NewPHasher returns a ready PHasher. The DCT plan carries scratch space, so
// a PHasher must not be shared across goroutines.
func NewPHasher() *PHasher {
	return &PHasher{dct: fourier.NewDCT(PHashGrid)}
}

func (p *PHasher) Name() string { return HasherPHash }

func (p *PHasher) Hash(img image.Image) HashVector {
	grid := LumaGrid(img, PHashGrid, PHashGrid)

	// rows
	rows := make([]float64, PHashGrid*PHashGrid)
	for y := 0; y < PHashGrid; y++ {
		p.dct.Transform(rows[y*PHashGrid:(y+1)*PHashGrid], grid[y*PHashGrid:(y+1)*PHashGrid])
	}

	// columns, low band only
	col := make([]float64, PHashGrid)
	out := make([]float64, PHashGrid)
	coefs := make([]float64, lowBand*lowBand)
	for x := 0; x < lowBand; x++ {
		for y := 0; y < PHashGrid; y++ {
			col[y] = rows[y*PHashGrid+x]
		}
		p.dct.Transform(out, col)
		for y := 0; y < lowBand; y++ {
			coefs[y*lowBand+x] = out[y]
		}
	}

	med := median(coefs)
	var h HashVector
	for i, c := range coefs {
		if c > med {
			h |= 1 << uint(HashWidth-1-i)
		}
	}
	return h
}

// AverageHasher is the cheap mean-threshold hash over an 8x8 luma grid.
type AverageHasher struct{}

func (AverageHasher) Name() string { return HasherAverage }

func (AverageHasher) Hash(img image.Image) HashVector {
	grid := LumaGrid(img, lowBand, lowBand)
	var sum float64
	for _, v := range grid {
		sum += v
	}
	avg := sum / float64(len(grid))

	var h HashVector
	for i, v := range grid {
		if v > avg {
			h |= 1 << uint(HashWidth-1-i)
		}
	}
	return h
}

// LumaGrid box-averages the luma of img into a w x h row-major grid of
// values in [0, 255].
func LumaGrid(img image.Image, w, h int) []float64 {
	out := make([]float64, w*h)
	if img == nil {
		return out
	}
	b := img.Bounds()
	sw, sh := b.Dx(), b.Dy()
	if sw <= 0 || sh <= 0 {
		return out
	}

	gray, isGray := img.(*image.Gray)
	luma := func(x, y int) float64 {
		if isGray {
			return float64(gray.Pix[gray.PixOffset(x, y)])
		}
		return float64(color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y)
	}

	for gy := 0; gy < h; gy++ {
		y0 := b.Min.Y + gy*sh/h
		y1 := b.Min.Y + (gy+1)*sh/h
		if y1 <= y0 {
			y1 = y0 + 1
		}
		for gx := 0; gx < w; gx++ {
			x0 := b.Min.X + gx*sw/w
			x1 := b.Min.X + (gx+1)*sw/w
			if x1 <= x0 {
				x1 = x0 + 1
			}
			var sum float64
			n := 0
			for y := y0; y < y1 && y < b.Max.Y; y++ {
				for x := x0; x < x1 && x < b.Max.X; x++ {
					sum += luma(x, y)
					n++
				}
			}
			if n > 0 {
				out[gy*w+gx] = sum / float64(n)
			}
		}
	}
	return out
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 0 {
		return (s[mid-1] + s[mid]) / 2
	}
	return s[mid]
}
