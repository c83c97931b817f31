package acoustic

import (
	"math"
	"sort"
)

// Peak is a local spectral maximum.
type Peak struct {
	TimeIdx int
	FreqIdx int
	Time    float64 // seconds
	Freq    float64 // Hz
	MagDB   float64
}

const (
	freqNeighbour = 3
	timeNeighbour = 1
	minDbAboveAvg = 3.0
	eps           = 1e-10
)

// bandEdges splits nBins into a first band of 10 bins followed by octave
// bands (10-20, 20-40, ...).
func bandEdges(nBins int) [][2]int {
	bands := [][2]int{{0, min(10, nBins)}}
	for start := 10; start < nBins; start *= 2 {
		end := min(start*2, nBins)
		bands = append(bands, [2]int{start, end})
	}
	return bands
}

// ExtractPeaks keeps, per frame, the strongest bin of every band when it is
// louder than the frame's band average by minDbAboveAvg and is not beaten by
// any neighbour. The result is ordered by time, then frequency.
func ExtractPeaks(spec [][]float64, sampleRate, windowSize, hopSize int) []Peak {
	if len(spec) == 0 || len(spec[0]) == 0 || sampleRate <= 0 {
		return nil
	}
	if windowSize <= 0 {
		windowSize = WindowSize
	}
	if hopSize <= 0 {
		hopSize = HopSize
	}

	nBins := len(spec[0])
	bands := bandEdges(nBins)
	freqRes := float64(sampleRate) / float64(windowSize)
	frameTime := float64(hopSize) / float64(sampleRate)

	peaks := make([]Peak, 0, len(spec)*2)
	idx := make([]int, len(bands))
	mags := make([]float64, len(bands))

	for t, frame := range spec {
		var sumDb float64
		for bi, b := range bands {
			idx[bi], mags[bi] = b[0], 0
			for i := b[0]; i < b[1]; i++ {
				if frame[i] > mags[bi] {
					idx[bi], mags[bi] = i, frame[i]
				}
			}
			sumDb += toDB(mags[bi])
		}
		avgDb := sumDb / float64(len(bands))

		for bi, mag := range mags {
			if mag <= 0 {
				continue
			}
			magDb := toDB(mag)
			if magDb < avgDb+minDbAboveAvg {
				continue
			}
			if !isLocalMax(spec, t, idx[bi]) {
				continue
			}
			peaks = append(peaks, Peak{
				TimeIdx: t,
				FreqIdx: idx[bi],
				Time:    float64(t) * frameTime,
				Freq:    float64(idx[bi]) * freqRes,
				MagDB:   magDb,
			})
		}
	}

	sort.Slice(peaks, func(i, j int) bool {
		if peaks[i].TimeIdx == peaks[j].TimeIdx {
			return peaks[i].FreqIdx < peaks[j].FreqIdx
		}
		return peaks[i].TimeIdx < peaks[j].TimeIdx
	})
	return peaks
}

func toDB(mag float64) float64 { return 20 * math.Log10(mag+eps) }

func isLocalMax(spec [][]float64, t, bin int) bool {
	mag := spec[t][bin]
	for dt := -timeNeighbour; dt <= timeNeighbour; dt++ {
		ti := t + dt
		if ti < 0 || ti >= len(spec) {
			continue
		}
		row := spec[ti]
		for df := -freqNeighbour; df <= freqNeighbour; df++ {
			fi := bin + df
			if fi < 0 || fi >= len(row) || (dt == 0 && df == 0) {
				continue
			}
			if row[fi] > mag {
				return false
			}
		}
	}
	return true
}
