package video

const (
	// DefaultSamplesPerSecond is how many frames are kept per second of video.
	DefaultSamplesPerSecond = 2
	// FallbackStride is used when the frame rate is unknown.
	FallbackStride = 15
)

// Stride returns how many decoded frames separate two samples:
// trunc(fps / samplesPerSecond), at least 1, or FallbackStride when either
// input is not positive.
func Stride(fps, samplesPerSecond float64) int {
	if fps <= 0 || samplesPerSecond <= 0 {
		return FallbackStride
	}
	s := int(fps / samplesPerSecond)
	if s < 1 {
		return 1
	}
	return s
}

// ExpectedSamples is the number of frames a stride keeps out of total.
func ExpectedSamples(total, stride int) int {
	if total <= 0 || stride <= 0 {
		return 0
	}
	return (total + stride - 1) / stride
}
