package faces

import (
	"bytes"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dlibWriter writes the subset of dlib's binary serialization the decoder reads.
type dlibWriter struct {
	bytes.Buffer
}

func (w *dlibWriter) int(v int64) {
	var ctrl byte
	m := uint64(v)
	if v < 0 {
		ctrl = 0x80
		m = uint64(-v)
	}
	var buf []byte
	for m != 0 {
		buf = append(buf, byte(m))
		m >>= 8
	}
	w.WriteByte(ctrl | byte(len(buf)))
	w.Write(buf)
}

func (w *dlibWriter) float(f float32) {
	frac, exp := math.Frexp(float64(f))
	w.int(int64(frac * (1 << 53)))
	w.int(int64(exp - 53))
}

func (w *dlibWriter) column(values []float32) {
	w.int(-int64(len(values)))
	w.int(-1)
	for _, v := range values {
		w.float(v)
	}
}

func (w *dlibWriter) predictor(sp *ShapePredictor, version int64) {
	w.int(version)
	w.column(sp.initialShape)
	w.int(int64(len(sp.forests)))
	for _, forest := range sp.forests {
		w.int(int64(len(forest)))
		for _, tree := range forest {
			w.int(int64(len(tree.splits)))
			for _, s := range tree.splits {
				w.int(int64(s.idx1))
				w.int(int64(s.idx2))
				w.float(s.thresh)
			}
			w.int(int64(len(tree.leafValues)))
			for _, leaf := range tree.leafValues {
				w.column(leaf)
			}
		}
	}
	w.int(int64(len(sp.anchorIdx)))
	for _, anchors := range sp.anchorIdx {
		w.int(int64(len(anchors)))
		for _, a := range anchors {
			w.int(int64(a))
		}
	}
	w.int(int64(len(sp.deltas)))
	for _, deltas := range sp.deltas {
		w.int(int64(len(deltas)))
		for _, d := range deltas {
			w.float(d[0])
			w.float(d[1])
		}
	}
}

// gridShape lays the 68 points out on a 10 column grid inside [0.2, 0.8].
func gridShape() []float32 {
	shape := make([]float32, 2*NumPoints)
	for i := 0; i < NumPoints; i++ {
		shape[2*i] = 0.2 + 0.6*float32(i%10)/9
		shape[2*i+1] = 0.2 + 0.6*float32(i/10)/6
	}
	return shape
}

func constLeaf(v float32) []float32 {
	leaf := make([]float32, 2*NumPoints)
	for i := range leaf {
		leaf[i] = v
	}
	return leaf
}

// testPredictor has a single tree comparing the pixels under points 0 and 1.
// A bright point 0 moves every landmark by +0.1, otherwise by -0.1.
func testPredictor() *ShapePredictor {
	return &ShapePredictor{
		initialShape: gridShape(),
		forests: [][]regressionTree{{{
			splits:     []splitFeature{{idx1: 0, idx2: 1, thresh: 10}},
			leafValues: [][]float32{constLeaf(0.1), constLeaf(-0.1)},
		}}},
		anchorIdx: [][]int{{0, 1}},
		deltas:    [][][2]float32{{{0, 0}, {0, 0}}},
	}
}

func TestDecodeShapePredictor(t *testing.T) {
	sp := testPredictor()
	w := dlibWriter{}
	w.predictor(sp, 1)

	decoded, err := DecodeShapePredictor(&w)
	require.NoError(t, err)
	assert.Equal(t, sp, decoded)
	assert.Equal(t, NumPoints, decoded.NumParts())
}

func TestDecodeShapePredictorErrors(t *testing.T) {
	badAnchor := testPredictor()
	badAnchor.anchorIdx[0][1] = NumPoints
	badSplit := testPredictor()
	badSplit.forests[0][0].splits[0].idx2 = 5
	badLeaves := testPredictor()
	badLeaves.forests[0][0].leafValues = badLeaves.forests[0][0].leafValues[:1]

	tests := []struct {
		name    string
		sp      *ShapePredictor
		version int64
	}{
		{"version", testPredictor(), 2},
		{"anchor out of range", badAnchor, 1},
		{"split out of range", badSplit, 1},
		{"leaf count", badLeaves, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := dlibWriter{}
			w.predictor(tt.sp, tt.version)
			_, err := DecodeShapePredictor(&w)
			assert.Error(t, err)
		})
	}

	t.Run("truncated", func(t *testing.T) {
		w := dlibWriter{}
		w.predictor(testPredictor(), 1)
		_, err := DecodeShapePredictor(bytes.NewReader(w.Bytes()[:w.Len()/2]))
		assert.Error(t, err)
	})
}

func TestDlibReaderFloat(t *testing.T) {
	tests := []struct {
		name     string
		mantissa int64
		exponent int64
		check    func(float32) bool
	}{
		{"one", 1, 0, func(f float32) bool { return f == 1 }},
		{"negative half", -1, -1, func(f float32) bool { return f == -0.5 }},
		{"inf", 0, expInf, func(f float32) bool { return math.IsInf(float64(f), 1) }},
		{"negative inf", 0, expNegInf, func(f float32) bool { return math.IsInf(float64(f), -1) }},
		{"nan", 0, expNaN, func(f float32) bool { return math.IsNaN(float64(f)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := dlibWriter{}
			w.int(tt.mantissa)
			w.int(tt.exponent)
			d := newDlibReader(&w)
			f := d.float32()
			require.NoError(t, d.Err())
			assert.True(t, tt.check(f), "got %v", f)
		})
	}

	t.Run("text format", func(t *testing.T) {
		d := newDlibReader(bytes.NewReader([]byte("1.5 ")))
		d.float32()
		assert.ErrorIs(t, d.Err(), errTextFloat)
	})
}

func TestPredict(t *testing.T) {
	rect := image.Rect(0, 0, 101, 101)
	sp := testPredictor()
	shape := gridShape()

	t.Run("dark anchor", func(t *testing.T) {
		img := image.NewGray(rect)
		points := sp.Predict(img, rect)
		require.Len(t, points, NumPoints)
		for i, p := range points {
			assert.Equal(t, round((shape[2*i]-0.1)*100), p.X)
			assert.Equal(t, round((shape[2*i+1]-0.1)*100), p.Y)
		}
	})

	t.Run("bright anchor", func(t *testing.T) {
		img := image.NewGray(rect)
		img.SetGray(20, 20, color.Gray{Y: 255})
		points := sp.Predict(img, rect)
		require.Len(t, points, NumPoints)
		assert.Equal(t, image.Pt(30, 30), points[0])
		for i, p := range points {
			assert.Equal(t, round((shape[2*i]+0.1)*100), p.X)
		}
	})
}

func TestPredictMeanShape(t *testing.T) {
	sp := testPredictor()
	sp.forests[0][0] = regressionTree{leafValues: [][]float32{constLeaf(0)}}
	shape := gridShape()

	img := image.NewGray(image.Rect(0, 0, 200, 200))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	face := image.Rect(10, 20, 110, 120)
	points := sp.Predict(img, face)
	for i, p := range points {
		assert.Equal(t, round(10+shape[2*i]*99), p.X)
		assert.Equal(t, round(20+shape[2*i+1]*99), p.Y)
	}
}

func TestSimilarity(t *testing.T) {
	from := []float32{0, 0, 1, 0, 0, 1}
	// rotated by 90 degrees and scaled by 2, then shifted
	to := []float32{5, 5, 5, 7, 3, 5}
	a, b := similarity(from, to)
	assert.InDelta(t, 0, a, 1e-6)
	assert.InDelta(t, 2, b, 1e-6)

	a, b = similarity(from, from)
	assert.InDelta(t, 1, a, 1e-6)
	assert.InDelta(t, 0, b, 1e-6)

	a, b = similarity([]float32{1, 1, 1, 1}, to[:4])
	assert.Equal(t, float32(1), a)
	assert.Equal(t, float32(0), b)
}

func TestLoadShapePredictor(t *testing.T) {
	dir := t.TempDir()
	w := dlibWriter{}
	w.predictor(testPredictor(), 1)
	fileName := filepath.Join(dir, ShapePredictorFile)
	require.NoError(t, os.WriteFile(fileName, w.Bytes(), 0644))

	sp, err := LoadShapePredictor(fileName)
	require.NoError(t, err)
	assert.Equal(t, NumPoints, sp.NumParts())

	_, err = LoadShapePredictor(filepath.Join(dir, "missing.dat"))
	assert.Error(t, err)
}
