package fingerprint

// NormalizationCap is the mean best-match distance at which two
// fingerprints score zero. Half the hash width: anything this far apart is
// considered fully dissimilar. Changing it rescales every stored score.
const NormalizationCap = 32.0

// ------------------------ Scoring ------------------------

// Similarity compares two fingerprints of possibly different lengths and
// returns a score in [0, 100]. 100 means identical, 0 means fully
// dissimilar or incomparable (either side empty).
//
// The shorter fingerprint is the base sequence; every base hash is matched
// against its nearest neighbour in the longer (search) sequence and the
// best-match distances are averaged. Unmatched search hashes never act as
// queries. For equal lengths the element-wise smaller sequence is the base
// so that Similarity(a, b) == Similarity(b, a).
func Similarity(a, b Fingerprint) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	base, search := orient(a, b)
	mean := MeanBestMatchDistance(base, search)

	score := 100 - (mean/NormalizationCap)*100
	return clampScore(score)
}

// MeanBestMatchDistance averages BestMatchDistances over base. The result is
// in [0, HashWidth]; it is 0 when base is empty.
func MeanBestMatchDistance(base, search Fingerprint) float64 {
	dists := BestMatchDistances(base, search)
	if len(dists) == 0 {
		return 0
	}
	sum := 0
	for _, d := range dists {
		sum += d
	}
	return float64(sum) / float64(len(dists))
}

// BestMatchDistances returns, for every hash in base, the minimum Hamming
// distance to any hash in search. The slice has exactly len(base) entries,
// or is nil when search is empty.
func BestMatchDistances(base, search Fingerprint) []int {
	if len(search) == 0 {
		return nil
	}
	out := make([]int, len(base))
	for i, b := range base {
		best := HashWidth + 1
		for _, s := range search {
			d := b.Distance(s)
			if d < best {
				best = d
				if best == 0 {
					break
				}
			}
		}
		out[i] = best
	}
	return out
}

// orient picks (base, search) by length, breaking equal-length ties on the
// first differing hash.
func orient(a, b Fingerprint) (Fingerprint, Fingerprint) {
	switch {
	case len(a) < len(b):
		return a, b
	case len(b) < len(a):
		return b, a
	}
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return a, b
			}
			return b, a
		}
	}
	return a, b
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
