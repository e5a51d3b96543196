package badger

import (
	"cmp"
	"math"
	"slices"
)

// Index tuning defaults.
const (
	defaultMaxLists   = 256
	defaultIterations = 10
	defaultProbes     = 8
)

// listCount picks the number of inverted lists for n rows: about sqrt(n).
func listCount(n, maxLists int) int {
	k := int(math.Sqrt(float64(n)))
	return max(1, min(k, maxLists, n))
}

// trainCentroids runs Lloyd's k-means over unit vectors. Seeds are spread
// evenly over the input so training is deterministic for a given row order.
func trainCentroids(vectors [][]float32, k, iterations int) [][]float32 {
	n := len(vectors)
	if n == 0 || k < 1 {
		return nil
	}
	k = min(k, n)

	centroids := make([][]float32, k)
	for c := range centroids {
		centroids[c] = slices.Clone(vectors[c*n/k])
	}

	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}

	dim := len(vectors[0])
	for iter := 0; iter < iterations; iter++ {
		changed := false
		for i, v := range vectors {
			if c := nearestCentroid(centroids, v); c != assign[i] {
				assign[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}

		sums := make([][]float32, k)
		counts := make([]int, k)
		for i, v := range vectors {
			c := assign[i]
			if sums[c] == nil {
				sums[c] = make([]float32, dim)
			}
			for j := range v {
				sums[c][j] += v[j]
			}
			counts[c]++
		}
		for c := range centroids {
			if counts[c] > 0 {
				centroids[c] = normalize(sums[c])
			}
		}
	}

	return centroids
}

// nearestCentroid returns the index of the centroid most similar to v.
func nearestCentroid(centroids [][]float32, v []float32) int {
	best, bestScore := 0, float32(math.Inf(-1))
	for c, centroid := range centroids {
		if score := dotProduct(centroid, v); score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

// rankCentroids returns up to probes centroid indexes ordered by similarity to q.
func rankCentroids(centroids [][]float32, q []float32, probes int) []int {
	type scored struct {
		index int
		score float32
	}
	ranked := make([]scored, len(centroids))
	for c, centroid := range centroids {
		ranked[c] = scored{c, dotProduct(centroid, q)}
	}
	slices.SortFunc(ranked, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})

	probes = min(probes, len(ranked))
	out := make([]int, probes)
	for i := range out {
		out[i] = ranked[i].index
	}
	return out
}

// normalize returns v scaled to unit length. Zero vectors are copied as is.
func normalize(v []float32) []float32 {
	out := slices.Clone(v)
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return out
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range out {
		out[i] *= inv
	}
	return out
}

// cosine returns the cosine similarity of a and b.
func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range min(len(a), len(b)) {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
