// Package acoustic implements landmark (peak-pair) audio fingerprints used to
// decide whether two videos share the same soundtrack.
package acoustic

import (
	"errors"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

const (
	WindowSize = 1024
	HopSize    = 256
)

var (
	ErrNoSamples   = errors.New("no audio samples")
	ErrShortSample = errors.New("audio shorter than one analysis window")
)

// HammingWindow returns an n-point Hamming window.
func HammingWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// Spectrogram computes the magnitude STFT of mono samples. Each row is one
// frame of windowSize/2 bins; rows are hopSize samples apart.
func Spectrogram(samples []float64, windowSize, hopSize int) ([][]float64, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	if windowSize <= 0 {
		windowSize = WindowSize
	}
	if hopSize <= 0 {
		hopSize = HopSize
	}
	if len(samples) < windowSize {
		return nil, ErrShortSample
	}

	win := HammingWindow(windowSize)
	frame := make([]float64, windowSize)
	rows := make([][]float64, 0, (len(samples)-windowSize)/hopSize+1)

	for start := 0; start+windowSize <= len(samples); start += hopSize {
		for i := range frame {
			frame[i] = samples[start+i] * win[i]
		}
		spec := fft.FFTReal(frame)

		mag := make([]float64, windowSize/2)
		for i := range mag {
			mag[i] = cmplx.Abs(spec[i])
		}
		rows = append(rows, mag)
	}
	return rows, nil
}
