// Package audio pulls the soundtrack out of a video as mono PCM.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/himanishpuri/VisualDNA/pkg/utils"
)

// DefaultSampleRate is the rate the soundtrack is resampled to.
const DefaultSampleRate = 11025

// ErrAudioExtraction is returned when no usable audio could be extracted.
// Callers treat it as "no audio match", never as a search failure.
var ErrAudioExtraction = errors.New("audio extraction failed")

type ExtractConfig struct {
	SampleRate int
	// MaxSeconds limits how much of the soundtrack is extracted; 0 means all.
	MaxSeconds int
}

// ExtractWAV writes the first audio stream of videoPath as a mono 16-bit WAV
// in outputDir and returns its path. The caller owns the returned file.
func ExtractWAV(ctx context.Context, videoPath, outputDir string, cfg ExtractConfig) (string, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
	}

	if err := utils.MakeDir(outputDir); err != nil {
		return "", err
	}

	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	outputPath := filepath.Join(outputDir, base+".wav")
	tmpPath := outputPath + ".tmp.wav"
	defer os.Remove(tmpPath)

	args := []string{"-y", "-v", "error", "-nostdin", "-i", videoPath, "-vn", "-map", "0:a:0"}
	if cfg.MaxSeconds > 0 {
		args = append(args, "-t", fmt.Sprintf("%d", cfg.MaxSeconds))
	}
	args = append(args,
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", cfg.SampleRate),
		"-c:a", "pcm_s16le",
		tmpPath,
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: ffmpeg: %v (%s)", ErrAudioExtraction, err, strings.TrimSpace(string(out)))
	}

	if st, err := os.Stat(tmpPath); err != nil || st.Size() == 0 {
		return "", fmt.Errorf("%w: no audio written for %s", ErrAudioExtraction, filepath.Base(videoPath))
	}

	if err := utils.MoveFile(tmpPath, outputPath); err != nil {
		return "", err
	}
	return outputPath, nil
}
