package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
)

// FrameSource yields sampled frames in strict temporal order. Next returns
// io.EOF once the stream is exhausted.
type FrameSource interface {
	Next(ctx context.Context) (image.Image, error)
	// Total is the expected number of frames, or 0 when unknown. Used only
	// for progress reporting.
	Total() int
	Close() error
}

// Hasher turns one frame into a HashVector. Implementations must be
// deterministic: the same frame always yields the same hash.
type Hasher interface {
	Name() string
	Hash(img image.Image) HashVector
}

// ProgressFunc receives the number of frames consumed so far and the
// expected total (0 when unknown). Advisory only.
type ProgressFunc func(done, total int)

// Build hashes every frame produced by src, in order, and returns the
// resulting fingerprint. Frames are neither reordered nor deduplicated.
// A source that ends without producing any frame yields a valid, empty
// fingerprint. Errors from src are returned as-is (wrapped) so that callers
// can distinguish decode failures.
func Build(ctx context.Context, src FrameSource, h Hasher, progress ProgressFunc) (Fingerprint, error) {
	if src == nil {
		return nil, errors.New("fingerprint: nil frame source")
	}
	if h == nil {
		return nil, errors.New("fingerprint: nil hasher")
	}

	total := src.Total()
	fp := make(Fingerprint, 0, total)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frame, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading frame %d: %w", len(fp), err)
		}

		fp = append(fp, h.Hash(frame))
		if progress != nil {
			progress(len(fp), total)
		}
	}

	return fp, nil
}
