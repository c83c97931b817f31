package visualdna

import (
	"context"
	"fmt"

	"github.com/himanishpuri/VisualDNA/pkg/visualdna/audio"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/fingerprint"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/storage"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/video"
)

// NewSQLiteStorage opens the sqlite catalog at dbPath.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// samplerOpener adapts video.Sampler to FrameOpener.
type samplerOpener struct {
	s *video.Sampler
}

// NewSamplerOpener returns the ffmpeg-backed FrameOpener.
func NewSamplerOpener(cfg FingerprintConfig) FrameOpener {
	return samplerOpener{s: video.NewSampler(video.SamplerConfig{
		SamplesPerSecond: cfg.SamplesPerSecond,
		FFmpegPath:       cfg.FFmpegPath,
	})}
}

func (o samplerOpener) Open(ctx context.Context, path string) (fingerprint.FrameSource, error) {
	stream, err := o.s.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func (o samplerOpener) Settings() string { return o.s.Settings() }

// NewFFmpegAudioLoader returns the AudioLoader that extracts the soundtrack
// to a WAV in workDir and decodes it.
func NewFFmpegAudioLoader(cfg AudioConfig) AudioLoader {
	return func(ctx context.Context, videoPath, workDir string) ([]float64, int, error) {
		wavPath, err := audio.ExtractWAV(ctx, videoPath, workDir, audio.ExtractConfig{
			SampleRate: cfg.SampleRate,
			MaxSeconds: cfg.MaxSeconds,
		})
		if err != nil {
			return nil, 0, err
		}
		samples, rate, err := audio.ReadWavAsFloat64(wavPath)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", audio.ErrAudioExtraction, err)
		}
		return samples, rate, nil
	}
}
