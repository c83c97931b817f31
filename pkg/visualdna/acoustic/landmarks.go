package acoustic

import (
	"math"
	"sort"

	"github.com/himanishpuri/VisualDNA/pkg/models"
)

// Address layout: anchorBin(9) | targetBin(9) | deltaMs(14).
const (
	FreqBits  = 9
	DeltaBits = 14

	FanOut     = 6
	MinDeltaMs = 10
	MaxDeltaMs = 15000
)

// Landmark is one anchor/target peak pair reduced to a 32-bit hash, plus the
// anchor time it was seen at.
type Landmark struct {
	Hash     uint32
	AnchorMs uint32
}

// PackAddress encodes a peak pair. It reports false when a bin does not fit
// FreqBits or the delta is outside [MinDeltaMs, MaxDeltaMs].
func PackAddress(anchorBin, targetBin int, deltaMs uint32) (uint32, bool) {
	const freqMask = 1<<FreqBits - 1
	const deltaMask = 1<<DeltaBits - 1

	if deltaMs < MinDeltaMs || deltaMs > MaxDeltaMs || deltaMs > deltaMask {
		return 0, false
	}
	if anchorBin < 0 || targetBin < 0 || anchorBin > freqMask || targetBin > freqMask {
		return 0, false
	}
	return uint32(anchorBin)<<(FreqBits+DeltaBits) | uint32(targetBin)<<DeltaBits | deltaMs, true
}

// UnpackAddress reverses PackAddress.
func UnpackAddress(addr uint32) (anchorBin, targetBin int, deltaMs uint32) {
	anchorBin = int(addr >> (FreqBits + DeltaBits))
	targetBin = int(addr>>DeltaBits) & (1<<FreqBits - 1)
	deltaMs = addr & (1<<DeltaBits - 1)
	return
}

func toMs(sec float64) uint32 { return uint32(math.Round(sec * 1000)) }

// Landmarks pairs every peak with up to FanOut later peaks whose delta fits
// the address. peaks are sorted in place by time.
func Landmarks(peaks []Peak) []Landmark {
	sort.SliceStable(peaks, func(i, j int) bool { return peaks[i].Time < peaks[j].Time })

	out := make([]Landmark, 0, len(peaks)*FanOut)
	for i, anchor := range peaks {
		anchorMs := toMs(anchor.Time)
		paired := 0
		for j := i + 1; j < len(peaks) && paired < FanOut; j++ {
			addr, ok := PackAddress(anchor.FreqIdx, peaks[j].FreqIdx, toMs(peaks[j].Time)-anchorMs)
			if !ok {
				continue
			}
			out = append(out, Landmark{Hash: addr, AnchorMs: anchorMs})
			paired++
		}
	}
	return out
}

// Buckets groups landmarks by hash as couples belonging to trackID.
func Buckets(lms []Landmark, trackID string) map[uint32][]models.Couple {
	out := make(map[uint32][]models.Couple, len(lms))
	for _, lm := range lms {
		out[lm.Hash] = append(out[lm.Hash], models.Couple{TrackID: trackID, AnchorTimeMs: lm.AnchorMs})
	}
	return out
}

// UniqueHashes returns the distinct hashes of lms in ascending order.
func UniqueHashes(lms []Landmark) []uint32 {
	seen := make(map[uint32]struct{}, len(lms))
	out := make([]uint32, 0, len(lms))
	for _, lm := range lms {
		if _, ok := seen[lm.Hash]; ok {
			continue
		}
		seen[lm.Hash] = struct{}{}
		out = append(out, lm.Hash)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Vote counts, per track, how many query landmarks agree on the same time
// offset (db anchor - query anchor) and returns each track's best offset,
// most votes first. Ties go to the smaller offset and then the track id.
func Vote(query []Landmark, db map[uint32][]models.Couple) []models.Match {
	votes := make(map[string]map[int32]int)
	for _, q := range query {
		for _, c := range db[q.Hash] {
			off := int32(c.AnchorTimeMs) - int32(q.AnchorMs)
			m := votes[c.TrackID]
			if m == nil {
				m = make(map[int32]int)
				votes[c.TrackID] = m
			}
			m[off]++
		}
	}

	matches := make([]models.Match, 0, len(votes))
	for trackID, offsets := range votes {
		best := models.Match{TrackID: trackID}
		for off, n := range offsets {
			if n > best.Count || (n == best.Count && off < best.OffsetMs) {
				best.Count, best.OffsetMs = n, off
			}
		}
		matches = append(matches, best)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Count != matches[j].Count {
			return matches[i].Count > matches[j].Count
		}
		return matches[i].TrackID < matches[j].TrackID
	})
	return matches
}
