package video

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// FrameSize is the side of the square grayscale frames the sampler emits.
const FrameSize = 32

type SamplerConfig struct {
	SamplesPerSecond float64
	// FFmpegPath overrides the ffmpeg binary; empty means "ffmpeg" on PATH.
	FFmpegPath string
}

// Sampler opens videos as streams of sampled frames.
type Sampler struct {
	cfg SamplerConfig
}

func NewSampler(cfg SamplerConfig) *Sampler {
	if cfg.SamplesPerSecond <= 0 {
		cfg.SamplesPerSecond = DefaultSamplesPerSecond
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	return &Sampler{cfg: cfg}
}

// Settings describes the sampling parameters, for cache keys.
func (s *Sampler) Settings() string {
	return fmt.Sprintf("sps=%g;size=%d", s.cfg.SamplesPerSecond, FrameSize)
}

// Open probes path and starts decoding it. The returned stream must be
// closed. Probe or start failures are ErrDecodeFailure.
func (s *Sampler) Open(ctx context.Context, path string) (*FrameStream, error) {
	meta, err := Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	stride := Stride(meta.FPS, s.cfg.SamplesPerSecond)

	filter := fmt.Sprintf("select=not(mod(n\\,%d)),scale=%d:%d:flags=area,format=gray", stride, FrameSize, FrameSize)
	cmd := exec.CommandContext(ctx, s.cfg.FFmpegPath,
		"-v", "error",
		"-nostdin",
		"-i", path,
		"-map", "0:v:0",
		"-an", "-sn", "-dn",
		"-vf", filter,
		"-vsync", "vfr",
		"-f", "rawvideo",
		"-pix_fmt", "gray",
		"-",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	stderr := &limitedBuffer{max: 4096}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: starting ffmpeg: %v", ErrDecodeFailure, err)
	}

	return &FrameStream{
		Meta:   meta,
		Stride: stride,
		cmd:    cmd,
		out:    bufio.NewReaderSize(stdout, FrameSize*FrameSize*16),
		stderr: stderr,
		total:  ExpectedSamples(meta.FrameCount, stride),
		name:   filepath.Base(path),
	}, nil
}

// FrameStream yields sampled frames from a running ffmpeg process.
type FrameStream struct {
	Meta   *Metadata
	Stride int

	cmd      *exec.Cmd
	out      io.Reader
	stderr   *limitedBuffer
	total    int
	produced int
	name     string

	mu      sync.Mutex
	done    bool
	waitErr error
}

// Next returns the next frame as a FrameSize x FrameSize *image.Gray, or
// io.EOF at the end of the stream.
func (f *FrameStream) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.isDone() {
		return nil, io.EOF
	}

	img := image.NewGray(image.Rect(0, 0, FrameSize, FrameSize))
	_, err := io.ReadFull(f.out, img.Pix)
	if err == nil {
		f.produced++
		return img, nil
	}
	if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		f.finish(false)
		return nil, fmt.Errorf("%w: reading frames of %s: %v", ErrDecodeFailure, f.name, err)
	}

	// stream ended; a partial trailing frame is dropped
	if werr := f.finish(true); werr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if f.produced == 0 {
			return nil, fmt.Errorf("%w: ffmpeg %s: %v (%s)", ErrDecodeFailure, f.name, werr, f.stderr.String())
		}
	}
	return nil, io.EOF
}

// Total is the expected number of frames, 0 when unknown.
func (f *FrameStream) Total() int { return f.total }

// Produced is the number of frames returned so far.
func (f *FrameStream) Produced() int { return f.produced }

// Close stops ffmpeg if it is still running and reaps it.
func (f *FrameStream) Close() error {
	f.finish(false)
	return nil
}

func (f *FrameStream) isDone() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// finish waits for ffmpeg once. When graceful is false the process is killed
// first.
func (f *FrameStream) finish(graceful bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return f.waitErr
	}
	f.done = true
	if !graceful && f.cmd.Process != nil {
		_ = f.cmd.Process.Kill()
		_ = f.cmd.Wait()
		return nil
	}
	f.waitErr = f.cmd.Wait()
	return f.waitErr
}

// limitedBuffer keeps the first max bytes written to it.
type limitedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(b.buf.String())
}
