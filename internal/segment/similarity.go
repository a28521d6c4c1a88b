package segment

import "math"

// consecutiveSimilarities computes the cosine similarity of each adjacent
// embedding pair. For n vectors the result has n-1 entries; entry i sits
// between unit i and unit i+1 and marks a potential case boundary.
func consecutiveSimilarities(vectors [][]float32) []float64 {
	if len(vectors) < 2 {
		return nil
	}
	sims := make([]float64, len(vectors)-1)
	for i := 1; i < len(vectors); i++ {
		sims[i-1] = cosineSimilarity(vectors[i-1], vectors[i])
	}
	return sims
}

// cosineSimilarity returns dot(a,b) / (||a|| * ||b||), or 0 when either
// vector has zero norm. A zero-norm embedding is a degenerate but legal
// provider output and must not abort the run.
func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// Smooth applies a centered moving average of the given window width to
// series, padding both ends with replicated edge values so the output has the
// same length as the input. A window of 1 or less returns the input
// unchanged. Smoothing suppresses single-point dips that would otherwise
// trigger spurious boundaries.
func Smooth(series []float64, window int) []float64 {
	if window <= 1 || len(series) == 0 {
		return series
	}
	pad := window / 2
	padded := make([]float64, 0, len(series)+2*pad)
	for i := 0; i < pad; i++ {
		padded = append(padded, series[0])
	}
	padded = append(padded, series...)
	for i := 0; i < pad; i++ {
		padded = append(padded, series[len(series)-1])
	}

	// Valid-mode convolution with a uniform kernel, matching the padded
	// length back down to len(series) for odd windows. Even windows yield
	// one extra sample; it is dropped from the tail.
	out := make([]float64, 0, len(series))
	for start := 0; start+window <= len(padded) && len(out) < len(series); start++ {
		var sum float64
		for _, v := range padded[start : start+window] {
			sum += v
		}
		out = append(out, sum/float64(window))
	}
	return out
}

// Boundaries returns the strictly ascending indices i where smoothed[i] falls
// below threshold, each meaning "break between unit i and unit i+1". An empty
// series or no qualifying index yields nil, which downstream turns into a
// single whole-transcript segment.
func Boundaries(smoothed []float64, threshold float64) []int {
	var out []int
	for i, v := range smoothed {
		if v < threshold {
			out = append(out, i)
		}
	}
	return out
}
