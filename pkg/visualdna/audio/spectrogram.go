package audio

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/eligwz/spectrogram"

	"github.com/himanishpuri/VisualDNA/pkg/utils"
)

// RenderSpectrogram draws a linear-magnitude FFT spectrogram of a WAV file to
// a PNG. Width and height default to 2048x512.
func RenderSpectrogram(wavPath, pngPath string, width, height int) error {
	if width <= 0 {
		width = 2048
	}
	if height <= 0 {
		height = 512
	}

	samples, rate, err := ReadWavAsFloat64(wavPath)
	if err != nil {
		return err
	}

	img := spectrogram.NewImage128(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(spectrogram.ParseColor("000000")), image.Point{}, draw.Src)

	// Hamming window, FFT, magnitude, linear scale
	spectrogram.Drawfft(img, samples, uint32(rate), uint32(height), false, false, true, false)

	if err := utils.EnsureParentDir(pngPath); err != nil {
		return err
	}
	if err := spectrogram.SavePng(img, pngPath); err != nil {
		return fmt.Errorf("saving spectrogram: %w", err)
	}
	return nil
}
