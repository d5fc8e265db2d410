package faces

import (
	"compress/bzip2"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"strings"
)

type splitFeature struct {
	idx1   int
	idx2   int
	thresh float32
}

type regressionTree struct {
	splits     []splitFeature
	leafValues [][]float32
}

// leaf walks the tree: left child when the pixel difference exceeds the threshold.
func (t *regressionTree) leaf(features []float32) []float32 {
	i := 0
	for i < len(t.splits) {
		s := t.splits[i]
		if features[s.idx1]-features[s.idx2] > s.thresh {
			i = 2*i + 1
		} else {
			i = 2*i + 2
		}
	}
	return t.leafValues[i-len(t.splits)]
}

// ShapePredictor is a cascade of regression tree forests (Kazemi & Sullivan)
// as trained and serialized by dlib's shape_predictor_trainer.
// It holds no mutable state and is safe for concurrent use.
type ShapePredictor struct {
	initialShape []float32 // x0, y0, x1, y1... in the unit square of the face box
	forests      [][]regressionTree
	anchorIdx    [][]int
	deltas       [][][2]float32
}

// LoadShapePredictor reads a dlib shape predictor file, ".bz2" files are decompressed on the fly.
func LoadShapePredictor(fileName string) (*ShapePredictor, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var r io.Reader = file
	if strings.HasSuffix(fileName, ".bz2") {
		r = bzip2.NewReader(file)
	}
	sp, err := DecodeShapePredictor(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	return sp, nil
}

// DecodeShapePredictor decodes a version 1 dlib shape predictor and validates its indices.
func DecodeShapePredictor(r io.Reader) (*ShapePredictor, error) {
	d := newDlibReader(r)
	if version := d.int64(); d.Err() == nil && version != 1 {
		return nil, fmt.Errorf("unsupported shape predictor version %d", version)
	}
	sp := &ShapePredictor{}
	sp.initialShape = d.columnVector()

	sp.forests = make([][]regressionTree, d.length())
	for i := range sp.forests {
		sp.forests[i] = make([]regressionTree, d.length())
		for j := range sp.forests[i] {
			tree := &sp.forests[i][j]
			tree.splits = make([]splitFeature, d.length())
			for k := range tree.splits {
				tree.splits[k] = splitFeature{
					idx1:   int(d.uint64()),
					idx2:   int(d.uint64()),
					thresh: d.float32(),
				}
			}
			tree.leafValues = make([][]float32, d.length())
			for k := range tree.leafValues {
				tree.leafValues[k] = d.columnVector()
			}
		}
	}

	sp.anchorIdx = make([][]int, d.length())
	for i := range sp.anchorIdx {
		sp.anchorIdx[i] = make([]int, d.length())
		for j := range sp.anchorIdx[i] {
			sp.anchorIdx[i][j] = int(d.uint64())
		}
	}

	sp.deltas = make([][][2]float32, d.length())
	for i := range sp.deltas {
		sp.deltas[i] = make([][2]float32, d.length())
		for j := range sp.deltas[i] {
			sp.deltas[i][j] = d.point()
		}
	}

	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("decode shape predictor: %w", err)
	}
	if err := sp.validate(); err != nil {
		return nil, err
	}
	return sp, nil
}

func (sp *ShapePredictor) validate() error {
	if len(sp.initialShape) == 0 || len(sp.initialShape)%2 != 0 {
		return fmt.Errorf("shape predictor: initial shape of %d values", len(sp.initialShape))
	}
	if len(sp.anchorIdx) != len(sp.forests) || len(sp.deltas) != len(sp.forests) {
		return fmt.Errorf("shape predictor: %d forests, %d anchor sets, %d delta sets",
			len(sp.forests), len(sp.anchorIdx), len(sp.deltas))
	}
	parts := sp.NumParts()
	for level, forest := range sp.forests {
		numFeatures := len(sp.deltas[level])
		if len(sp.anchorIdx[level]) != numFeatures {
			return fmt.Errorf("shape predictor: level %d has %d anchors for %d deltas", level, len(sp.anchorIdx[level]), numFeatures)
		}
		for _, a := range sp.anchorIdx[level] {
			if a >= parts {
				return fmt.Errorf("shape predictor: level %d anchor %d out of range", level, a)
			}
		}
		for t, tree := range forest {
			if len(tree.leafValues) != len(tree.splits)+1 {
				return fmt.Errorf("shape predictor: tree %d/%d has %d splits and %d leaves", level, t, len(tree.splits), len(tree.leafValues))
			}
			for _, s := range tree.splits {
				if s.idx1 >= numFeatures || s.idx2 >= numFeatures {
					return fmt.Errorf("shape predictor: tree %d/%d split feature out of range", level, t)
				}
			}
			for _, leaf := range tree.leafValues {
				if len(leaf) != len(sp.initialShape) {
					return fmt.Errorf("shape predictor: tree %d/%d leaf of %d values", level, t, len(leaf))
				}
			}
		}
	}
	return nil
}

// NumParts returns the number of landmarks the model predicts.
func (sp *ShapePredictor) NumParts() int {
	return len(sp.initialShape) / 2
}

// box is a face rectangle with inclusive right and bottom edges.
type box struct {
	left, top, right, bottom float32
}

func boxFrom(r image.Rectangle) box {
	return box{
		left:   float32(r.Min.X),
		top:    float32(r.Min.Y),
		right:  float32(r.Max.X - 1),
		bottom: float32(r.Max.Y - 1),
	}
}

// toImage maps unit square coordinates into the face box.
func (b box) toImage(x, y float32) image.Point {
	return image.Pt(
		round(b.left+x*(b.right-b.left)),
		round(b.top+y*(b.bottom-b.top)),
	)
}

func round(v float32) int {
	return int(math.Floor(float64(v) + 0.5))
}

// Predict locates the landmarks inside the face rectangle r of img.
func (sp *ShapePredictor) Predict(img *image.Gray, r image.Rectangle) []image.Point {
	current := make([]float32, len(sp.initialShape))
	copy(current, sp.initialShape)
	rect := boxFrom(r)

	var features []float32
	for level, forest := range sp.forests {
		features = sp.extractFeatures(img, rect, current, level, features)
		for i := range forest {
			for j, v := range forest[i].leaf(features) {
				current[j] += v
			}
		}
	}

	result := make([]image.Point, sp.NumParts())
	for i := range result {
		result[i] = rect.toImage(current[2*i], current[2*i+1])
	}
	return result
}

// extractFeatures samples the pixel intensities the trees of one cascade
// level compare. Sample positions are defined relative to the mean shape and
// follow the current estimate through a similarity transform.
func (sp *ShapePredictor) extractFeatures(img *image.Gray, rect box, current []float32, level int, features []float32) []float32 {
	a, b := similarity(sp.initialShape, current)
	deltas := sp.deltas[level]
	anchors := sp.anchorIdx[level]
	area := img.Bounds()

	features = features[:0]
	for i, d := range deltas {
		anchor := anchors[i]
		x := a*d[0] - b*d[1] + current[2*anchor]
		y := b*d[0] + a*d[1] + current[2*anchor+1]
		p := rect.toImage(x, y)
		if p.In(area) {
			features = append(features, float32(img.GrayAt(p.X, p.Y).Y))
		} else {
			features = append(features, 0)
		}
	}
	return features
}

// similarity returns the rotation and scale [[a -b] [b a]] that best maps the
// centred from shape onto the centred to shape in the least squares sense.
func similarity(from, to []float32) (a, b float32) {
	n := len(from) / 2
	if n < 2 {
		return 1, 0
	}
	var fx, fy, tx, ty float64
	for i := 0; i < n; i++ {
		fx += float64(from[2*i])
		fy += float64(from[2*i+1])
		tx += float64(to[2*i])
		ty += float64(to[2*i+1])
	}
	fx /= float64(n)
	fy /= float64(n)
	tx /= float64(n)
	ty /= float64(n)

	var sigma, dot, cross float64
	for i := 0; i < n; i++ {
		ax, ay := float64(from[2*i])-fx, float64(from[2*i+1])-fy
		bx, by := float64(to[2*i])-tx, float64(to[2*i+1])-ty
		sigma += ax*ax + ay*ay
		dot += ax*bx + ay*by
		cross += ax*by - ay*bx
	}
	if sigma == 0 {
		return 1, 0
	}
	return float32(dot / sigma), float32(cross / sigma)
}
