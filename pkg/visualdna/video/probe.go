// Package video decodes videos into sampled grayscale frames with ffmpeg.
package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrDecodeFailure is returned when a video cannot be opened or decoded.
var ErrDecodeFailure = errors.New("video decode failure")

type Metadata struct {
	Filename   string
	Duration   time.Duration
	FPS        float64 // 0 when unknown
	FrameCount int     // 0 when unknown
	Width      int
	Height     int
	Codec      string
	HasAudio   bool
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		Format   string `json:"format_name"`
	} `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
	RFrameRate   string `json:"r_frame_rate"`
	NbFrames     string `json:"nb_frames"`
	Duration     string `json:"duration"`
}

// Probe reads stream metadata with ffprobe. A file without a video stream,
// or one ffprobe cannot read, is an ErrDecodeFailure.
func Probe(ctx context.Context, path string) (*Metadata, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(
		ctx,
		"ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: ffprobe %s: %v", ErrDecodeFailure, filepath.Base(path), err)
	}
	return parseProbe(path, out)
}

func parseProbe(path string, out []byte) (*Metadata, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("%w: parsing ffprobe output: %v", ErrDecodeFailure, err)
	}

	meta := &Metadata{Filename: filepath.Base(path)}
	var vs *ffprobeStream
	for i := range probe.Streams {
		s := &probe.Streams[i]
		switch s.CodecType {
		case "video":
			if vs == nil {
				vs = s
			}
		case "audio":
			meta.HasAudio = true
		}
	}
	if vs == nil {
		return nil, fmt.Errorf("%w: %s has no video stream", ErrDecodeFailure, meta.Filename)
	}

	meta.Codec = vs.CodecName
	meta.Width, meta.Height = vs.Width, vs.Height
	meta.FPS = parseRate(vs.AvgFrameRate)
	if meta.FPS == 0 {
		meta.FPS = parseRate(vs.RFrameRate)
	}

	secs, _ := strconv.ParseFloat(vs.Duration, 64)
	if secs <= 0 {
		secs, _ = strconv.ParseFloat(probe.Format.Duration, 64)
	}
	if secs > 0 {
		meta.Duration = time.Duration(secs * float64(time.Second))
	}

	if n, err := strconv.Atoi(vs.NbFrames); err == nil && n > 0 {
		meta.FrameCount = n
	} else if secs > 0 && meta.FPS > 0 {
		meta.FrameCount = int(math.Round(secs * meta.FPS))
	}
	return meta, nil
}

// parseRate parses ffprobe rates such as "30000/1001" or "25". Unknown or
// malformed rates ("0/0", "") give 0.
func parseRate(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil || n <= 0 || math.IsInf(n, 0) || math.IsNaN(n) {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d <= 0 {
		return 0
	}
	return n / d
}
