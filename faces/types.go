package faces

import (
	"errors"
	"image"
)

// NumPoints is the size of the canonical facial landmark layout.
const NumPoints = 68

var (
	ErrNoFace           = errors.New("no face detected")
	ErrModelUnavailable = errors.New("landmark model unavailable")
)

// Keypoints holds the 68 landmarks of one face, indices follow the iBUG 300-W layout.
type Keypoints [NumPoints]image.Point

// Region is a named, contiguous index range [Start, End) of the layout.
type Region struct {
	Name  string
	Start int
	End   int
}

var Regions = []Region{
	{"jaw", 0, 17},
	{"right_eyebrow", 17, 22},
	{"left_eyebrow", 22, 27},
	{"nose_bridge", 27, 31},
	{"nose_tip", 31, 36},
	{"right_eye", 36, 42},
	{"left_eye", 42, 48},
	{"outer_lip", 48, 60},
	{"inner_lip", 60, 68},
}

// Region returns the points of the named region, nil for unknown names.
func (k *Keypoints) Region(name string) []image.Point {
	for _, r := range Regions {
		if r.Name == name {
			return k[r.Start:r.End]
		}
	}
	return nil
}

// Bounds returns the smallest pixel rectangle containing all points.
func (k *Keypoints) Bounds() image.Rectangle {
	r := image.Rectangle{Min: k[0], Max: k[0].Add(image.Pt(1, 1))}
	for _, p := range k[1:] {
		r = r.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
	}
	return r
}

// Pairs returns the points as [x, y] pairs, handy for JSON output.
func (k *Keypoints) Pairs() [][2]int {
	result := make([][2]int, NumPoints)
	for i, p := range k {
		result[i] = [2]int{p.X, p.Y}
	}
	return result
}

// clamp moves every point inside r.
func (k *Keypoints) clamp(r image.Rectangle) {
	for i, p := range k {
		if p.X < r.Min.X {
			p.X = r.Min.X
		} else if p.X >= r.Max.X {
			p.X = r.Max.X - 1
		}
		if p.Y < r.Min.Y {
			p.Y = r.Min.Y
		} else if p.Y >= r.Max.Y {
			p.Y = r.Max.Y - 1
		}
		k[i] = p
	}
}
