package segment

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// pixel is a point in RGB space remembering its position in the image.
type pixel struct {
	rgb   [3]float64
	index int
}

func (p pixel) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.rgb[d] - c.(pixel).rgb[d]
}

func (p pixel) Dims() int { return 3 }

func (p pixel) Distance(c kdtree.Comparable) float64 {
	q := c.(pixel)
	var sum float64
	for i := range p.rgb {
		d := p.rgb[i] - q.rgb[i]
		sum += d * d
	}
	return sum
}

type pixels []pixel

func (p pixels) Index(i int) kdtree.Comparable { return p[i] }
func (p pixels) Len() int                       { return len(p) }
func (p pixels) Pivot(d kdtree.Dim) int         { return plane{pixels: p, Dim: d}.Pivot() }
func (p pixels) Slice(start, end int) kdtree.Interface {
	return p[start:end]
}

type plane struct {
	kdtree.Dim
	pixels
}

func (p plane) Less(i, j int) bool { return p.pixels[i].rgb[p.Dim] < p.pixels[j].rgb[p.Dim] }
func (p plane) Pivot() int         { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.pixels = p.pixels[start:end]
	return p
}
func (p plane) Swap(i, j int) { p.pixels[i], p.pixels[j] = p.pixels[j], p.pixels[i] }

type entry struct {
	col   int
	value float64
}

// sparse is a symmetric matrix in compressed row form.
type sparse struct {
	rows [][]entry
}

func (s *sparse) size() int {
	return len(s.rows)
}

// mulVec computes dst = s * v.
func (s *sparse) mulVec(dst, v []float64) {
	for i, row := range s.rows {
		var sum float64
		for _, e := range row {
			sum += e.value * v[e.col]
		}
		dst[i] = sum
	}
}

func (s *sparse) degrees() []float64 {
	result := make([]float64, len(s.rows))
	for i, row := range s.rows {
		for _, e := range row {
			result[i] += e.value
		}
	}
	return result
}

// knnAffinity connects every point to itself and its k-1 nearest
// neighbours, then symmetrises the connectivity as (C + C^T) / 2.
func knnAffinity(points []pixel, k int) *sparse {
	n := len(points)
	if k > n {
		k = n
	}
	tree := kdtree.New(append(pixels(nil), points...), false)

	raw := make([][]entry, n)
	link := func(i, j int) {
		raw[i] = append(raw[i], entry{col: j, value: 0.5})
		raw[j] = append(raw[j], entry{col: i, value: 0.5})
	}

	for i, p := range points {
		keeper := kdtree.NewNKeeper(k)
		tree.NearestSet(keeper, p)
		found := make([]kdtree.ComparableDist, 0, len(keeper.Heap))
		for _, c := range keeper.Heap {
			if c.Comparable != nil {
				found = append(found, c)
			}
		}
		sort.Slice(found, func(a, b int) bool {
			if found[a].Dist != found[b].Dist {
				return found[a].Dist < found[b].Dist
			}
			return found[a].Comparable.(pixel).index < found[b].Comparable.(pixel).index
		})

		link(i, i)
		linked := 1
		for _, c := range found {
			if linked == k {
				break
			}
			j := c.Comparable.(pixel).index
			if j == i {
				continue
			}
			link(i, j)
			linked++
		}
	}

	s := &sparse{rows: make([][]entry, n)}
	for i, row := range raw {
		sort.Slice(row, func(a, b int) bool { return row[a].col < row[b].col })
		merged := row[:0]
		for _, e := range row {
			if len(merged) > 0 && merged[len(merged)-1].col == e.col {
				merged[len(merged)-1].value += e.value
			} else {
				merged = append(merged, e)
			}
		}
		s.rows[i] = merged
	}
	return s
}

// normalize returns D^-1/2 A D^-1/2 and sqrt of the degrees.
func normalize(a *sparse) (*sparse, []float64) {
	sqrtDeg := a.degrees()
	for i, d := range sqrtDeg {
		sqrtDeg[i] = math.Sqrt(d)
	}
	result := &sparse{rows: make([][]entry, a.size())}
	for i, row := range a.rows {
		result.rows[i] = make([]entry, len(row))
		for k, e := range row {
			result.rows[i][k] = entry{col: e.col, value: e.value / (sqrtDeg[i] * sqrtDeg[e.col])}
		}
	}
	return result, sqrtDeg
}
