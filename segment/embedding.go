package segment

import (
	"errors"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	maxIterations = 100
	minIterations = 2
	ritzTolerance = 1e-10
	oversampling  = 5
	filterDegree  = 8
	spectrumLow   = -1.0
)

var errEigen = errors.New("eigen decomposition failed")

// leadingEigenvectors returns the k eigenvectors of the normalized affinity
// with the largest eigenvalues. The spectrum of s lies in [-1, 1]. Every
// pass applies a Chebyshev polynomial that damps [-1, smallest Ritz value of
// the block] and amplifies what lies above, then a Rayleigh-Ritz projection
// extracts the new approximations.
func leadingEigenvectors(s *sparse, k int, r *rand.Rand) ([][]float64, error) {
	vectors, _, err := filteredSubspace(s, k, r)
	return vectors, err
}

func filteredSubspace(s *sparse, k int, r *rand.Rand) ([][]float64, int, error) {
	n := s.size()
	p := min(k+oversampling, n)
	k = min(k, n)

	q := make([][]float64, p)
	for j := range q {
		q[j] = make([]float64, n)
		for i := range q[j] {
			q[j][i] = r.NormFloat64()
		}
	}
	orthonormalize(q, r)

	w := make([][]float64, p)
	for j := range w {
		w[j] = make([]float64, n)
	}

	var previous []float64
	var vectors [][]float64
	it := 0
	for ; it < maxIterations; it++ {
		for j := range q {
			s.mulVec(w[j], q[j])
		}

		h := mat.NewSymDense(p, nil)
		for a := 0; a < p; a++ {
			for b := a; b < p; b++ {
				h.SetSym(a, b, 0.5*(floats.Dot(q[a], w[b])+floats.Dot(q[b], w[a])))
			}
		}
		var eig mat.EigenSym
		if !eig.Factorize(h, true) {
			return nil, it, errEigen
		}
		values := eig.Values(nil)
		var v mat.Dense
		eig.VectorsTo(&v)

		// descending by eigenvalue
		order := make([]int, p)
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool { return values[order[a]] > values[order[b]] })

		vectors = combine(q, &v, order)
		ritz := make([]float64, k)
		for i := range ritz {
			ritz[i] = values[order[i]]
		}
		if it >= minIterations && converged(previous, ritz) {
			break
		}
		previous = ritz

		// the damped interval ends at zero or above, keeping the growth of
		// T_degree within what Gram-Schmidt resolves
		upper := math.Max(values[order[p-1]], 0)
		q = chebyshevFilter(s, vectors, filterDegree, spectrumLow, upper)
		orthonormalize(q, r)
	}
	return vectors[:k], it, nil
}

// chebyshevFilter applies T_degree((S - cI) / e) to every column, where
// [lower, upper] = [c - e, c + e]. Components with eigenvalues in that range
// stay bounded by 1, those above upper grow.
func chebyshevFilter(s *sparse, x [][]float64, degree int, lower, upper float64) [][]float64 {
	e := (upper - lower) / 2
	c := (upper + lower) / 2
	n := len(x[0])
	result := make([][]float64, len(x))
	scratch := make([]float64, n)
	for j, col := range x {
		prev := append([]float64(nil), col...)
		cur := make([]float64, n)
		s.mulVec(cur, prev)
		for i := range cur {
			cur[i] = (cur[i] - c*prev[i]) / e
		}
		for d := 2; d <= degree; d++ {
			s.mulVec(scratch, cur)
			for i := range scratch {
				scratch[i] = 2*(scratch[i]-c*cur[i])/e - prev[i]
			}
			prev, cur, scratch = cur, scratch, prev
		}
		result[j] = cur
	}
	return result
}

// combine returns the columns of basis mixed by v, in the given order.
func combine(basis [][]float64, v *mat.Dense, order []int) [][]float64 {
	n := len(basis[0])
	result := make([][]float64, len(order))
	for c, col := range order {
		out := make([]float64, n)
		for i := range basis {
			if coeff := v.At(i, col); coeff != 0 {
				floats.AddScaled(out, coeff, basis[i])
			}
		}
		result[c] = out
	}
	return result
}

func converged(previous, current []float64) bool {
	for i := range current {
		if math.Abs(current[i]-previous[i]) > ritzTolerance*math.Max(1, math.Abs(current[i])) {
			return false
		}
	}
	return true
}

// orthonormalize runs modified Gram-Schmidt in place. Columns that collapse
// are replaced by fresh random vectors.
func orthonormalize(columns [][]float64, r *rand.Rand) {
	for j := range columns {
		for attempt := 0; ; attempt++ {
			for i := 0; i < j; i++ {
				floats.AddScaled(columns[j], -floats.Dot(columns[i], columns[j]), columns[i])
			}
			norm := floats.Norm(columns[j], 2)
			if norm > 1e-10 || attempt == 3 {
				if norm > 0 {
					floats.Scale(1/norm, columns[j])
				}
				break
			}
			for i := range columns[j] {
				columns[j][i] = r.NormFloat64()
			}
		}
	}
}
