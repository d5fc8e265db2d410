package faces

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDetector struct {
	rects  []image.Rectangle
	err    error
	panic  bool
	closed bool
}

func (f *fakeDetector) Detect(image.Image) ([]image.Rectangle, error) {
	if f.panic {
		panic("boom")
	}
	return f.rects, f.err
}

func (f *fakeDetector) Name() string { return "fake" }
func (f *fakeDetector) Close()       { f.closed = true }

func TestSelectFace(t *testing.T) {
	small := image.Rect(0, 0, 10, 10)
	big := image.Rect(50, 50, 100, 100)
	bigHigher := image.Rect(200, 10, 250, 60)
	bigLeft := image.Rect(150, 10, 200, 60)

	tests := []struct {
		name   string
		rects  []image.Rectangle
		policy string
		want   image.Rectangle
		ok     bool
	}{
		{"none", nil, SelectLargest, image.Rectangle{}, false},
		{"largest", []image.Rectangle{small, big}, SelectLargest, big, true},
		{"largest reversed", []image.Rectangle{big, small}, SelectLargest, big, true},
		{"tie top-most", []image.Rectangle{big, bigHigher}, SelectLargest, bigHigher, true},
		{"tie left-most", []image.Rectangle{bigHigher, bigLeft}, SelectLargest, bigLeft, true},
		{"first", []image.Rectangle{small, big}, SelectFirst, small, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectFace(tt.rects, tt.policy)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 120, 120))
	detector := &fakeDetector{rects: []image.Rectangle{image.Rect(10, 10, 111, 111)}}
	e := NewExtractor(detector, testPredictor(), SelectLargest)
	assert.True(t, e.Available())
	assert.Equal(t, "fake", e.Status())

	points, ok := e.Extract(img)
	require.True(t, ok)
	shape := gridShape()
	for i, p := range points {
		assert.Equal(t, 10+round((shape[2*i]-0.1)*100), p.X)
		assert.True(t, p.In(img.Bounds()))
	}

	Close(e)
	assert.True(t, detector.closed)
	Close(Unavailable{})
}

func TestExtractClampsToImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 50, 50))
	detector := &fakeDetector{rects: []image.Rectangle{image.Rect(20, 20, 121, 121)}}
	points, ok := NewExtractor(detector, testPredictor(), SelectLargest).Extract(img)
	require.True(t, ok)
	for _, p := range points {
		assert.True(t, p.In(img.Bounds()), "%v outside", p)
	}
}

func TestExtractAbsent(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	tests := []struct {
		name     string
		detector *fakeDetector
	}{
		{"no face", &fakeDetector{}},
		{"detector error", &fakeDetector{err: errors.New("broken")}},
		{"detector panic", &fakeDetector{panic: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := NewExtractor(tt.detector, testPredictor(), SelectLargest).Extract(img)
			assert.False(t, ok)
		})
	}
}

func TestLoadUnavailable(t *testing.T) {
	e := Load(Options{ModelsDir: t.TempDir(), Detector: "dlib"})
	assert.False(t, e.Available())
	assert.Contains(t, e.Status(), "unavailable")
	assert.IsType(t, Unavailable{}, e)

	_, ok := e.Extract(image.NewNRGBA(image.Rect(0, 0, 10, 10)))
	assert.False(t, ok)
}

func TestKeypoints(t *testing.T) {
	var k Keypoints
	for i := range k {
		k[i] = image.Pt(i, 2*i)
	}
	assert.Equal(t, image.Rect(0, 0, 68, 135), k.Bounds())
	assert.Len(t, k.Region("jaw"), 17)
	assert.Equal(t, image.Pt(36, 72), k.Region("right_eye")[0])
	assert.Len(t, k.Region("inner_lip"), 8)
	assert.Nil(t, k.Region("ears"))
	assert.Equal(t, [2]int{3, 6}, k.Pairs()[3])

	k.clamp(image.Rect(0, 0, 10, 10))
	assert.Equal(t, image.Pt(9, 9), k[67])
	assert.Equal(t, image.Pt(2, 4), k[2])
}

func TestRegionsCoverLayout(t *testing.T) {
	next := 0
	for _, r := range Regions {
		assert.Equal(t, next, r.Start, r.Name)
		next = r.End
	}
	assert.Equal(t, NumPoints, next)
}

func TestToGray(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.NRGBA{R: 30, G: 60, B: 90, A: 255})
	img.Set(1, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	gray := toGray(img)
	assert.Equal(t, uint8(60), gray.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), gray.GrayAt(1, 0).Y)
}
