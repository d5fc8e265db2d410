package swap

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"facemorph/faces"

	"github.com/fogleman/delaunay"
)

var ErrDegeneratePoints = errors.New("points are collinear or coincident")

// Triangle holds three indices into a Keypoints array. The same triple
// selects corresponding points on the source and the destination face.
type Triangle [3]int

// Triangulate returns the Delaunay triangulation of the keypoints as index
// triples, each sorted ascending and the list sorted lexicographically.
func Triangulate(points faces.Keypoints) ([]Triangle, error) {
	if collinear(points[:]) {
		return nil, ErrDegeneratePoints
	}
	input := make([]delaunay.Point, len(points))
	for i, p := range points {
		input[i] = delaunay.Point{X: float64(p.X), Y: float64(p.Y)}
	}
	tri, err := delaunay.Triangulate(input)
	if err != nil {
		return nil, fmt.Errorf("delaunay: %w", err)
	}
	if len(tri.Triangles) == 0 {
		return nil, ErrDegeneratePoints
	}

	result := make([]Triangle, 0, len(tri.Triangles)/3)
	for i := 0; i+2 < len(tri.Triangles); i += 3 {
		t := Triangle{tri.Triangles[i], tri.Triangles[i+1], tri.Triangles[i+2]}
		sort.Ints(t[:])
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		if a[1] != b[1] {
			return a[1] < b[1]
		}
		return a[2] < b[2]
	})
	return result, nil
}

// collinear reports whether all points lie on one line (or coincide).
func collinear(points []image.Point) bool {
	if len(points) < 3 {
		return true
	}
	origin := points[0]
	var dir image.Point
	for _, p := range points[1:] {
		if p != origin {
			dir = p.Sub(origin)
			break
		}
	}
	if dir == (image.Point{}) {
		return true
	}
	for _, p := range points {
		d := p.Sub(origin)
		if dir.X*d.Y-dir.Y*d.X != 0 {
			return false
		}
	}
	return true
}
