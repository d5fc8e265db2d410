package segment

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

const (
	kmeansRestarts = 10
	kmeansMaxIter  = 300
)

// kmeans clusters the rows into at most k groups and keeps the run with the
// lowest inertia. Labels are renumbered by first appearance.
func kmeans(rows [][]float64, k int, r *rand.Rand) []int {
	var best []int
	bestInertia := math.Inf(1)
	for run := 0; run < kmeansRestarts; run++ {
		labels, inertia := lloyd(rows, seedCentres(rows, k, r))
		if inertia < bestInertia {
			best, bestInertia = labels, inertia
		}
	}
	return relabel(best)
}

// seedCentres picks k initial centres with k-means++.
func seedCentres(rows [][]float64, k int, r *rand.Rand) [][]float64 {
	n := len(rows)
	centres := make([][]float64, 0, k)
	centres = append(centres, append([]float64(nil), rows[r.Intn(n)]...))

	dist := make([]float64, n)
	for i, row := range rows {
		dist[i] = floats.Distance(row, centres[0], 2)
		dist[i] *= dist[i]
	}
	for len(centres) < k {
		total := floats.Sum(dist)
		next := 0
		if total > 0 {
			target := r.Float64() * total
			for i, d := range dist {
				if d == 0 {
					continue
				}
				next = i
				if target -= d; target <= 0 {
					break
				}
			}
		} else {
			next = r.Intn(n)
		}
		centre := append([]float64(nil), rows[next]...)
		centres = append(centres, centre)
		for i, row := range rows {
			d := floats.Distance(row, centre, 2)
			dist[i] = math.Min(dist[i], d*d)
		}
	}
	return centres
}

func lloyd(rows [][]float64, centres [][]float64) ([]int, float64) {
	n, dims := len(rows), len(rows[0])
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	var inertia float64
	for it := 0; it < kmeansMaxIter; it++ {
		changed := false
		inertia = 0
		for i, row := range rows {
			label, d := nearest(row, centres)
			inertia += d
			if label != labels[i] {
				labels[i] = label
				changed = true
			}
		}
		if !changed {
			break
		}

		sums := make([][]float64, len(centres))
		counts := make([]int, len(centres))
		for c := range sums {
			sums[c] = make([]float64, dims)
		}
		for i, row := range rows {
			floats.Add(sums[labels[i]], row)
			counts[labels[i]]++
		}
		for c := range centres {
			// empty clusters keep their centre
			if counts[c] > 0 {
				floats.ScaleTo(centres[c], 1/float64(counts[c]), sums[c])
			}
		}
	}
	return labels, inertia
}

func nearest(row []float64, centres [][]float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for c, centre := range centres {
		var d float64
		for i, v := range row {
			diff := v - centre[i]
			d += diff * diff
		}
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

func relabel(labels []int) []int {
	mapping := map[int]int{}
	result := make([]int, len(labels))
	for i, l := range labels {
		m, ok := mapping[l]
		if !ok {
			m = len(mapping)
			mapping[l] = m
		}
		result[i] = m
	}
	return result
}
