package swap

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noiseImage(w, h int, seed int64) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	r := rand.New(rand.NewSource(seed))
	for i := range img.Pix {
		img.Pix[i] = uint8(r.Intn(256))
	}
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestReflect101(t *testing.T) {
	tests := []struct {
		i, n, want int
	}{
		{-2, 5, 2},
		{-1, 5, 1},
		{0, 5, 0},
		{4, 5, 4},
		{5, 5, 3},
		{6, 5, 2},
		{8, 5, 0},
		{9, 5, 1},
		{-7, 1, 0},
		{3, 1, 0},
		{2, 2, 0},
		{-1, 2, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, reflect101(tt.i, tt.n), "reflect101(%d, %d)", tt.i, tt.n)
	}
}

func TestSolveAffine(t *testing.T) {
	from := [3]image.Point{{0, 0}, {10, 0}, {0, 10}}
	to := [3]image.Point{{5, 5}, {25, 5}, {5, 25}}
	coeffs, ok := solveAffine(from, to)
	require.True(t, ok)
	want := [6]float64{2, 0, 5, 0, 2, 5}
	for i := range want {
		assert.InDelta(t, want[i], coeffs[i], 1e-9)
	}

	rotated := [3]image.Point{{0, 0}, {0, 10}, {-10, 0}}
	coeffs, ok = solveAffine(from, rotated)
	require.True(t, ok)
	want = [6]float64{0, -1, 0, 1, 0, 0}
	for i := range want {
		assert.InDelta(t, want[i], coeffs[i], 1e-9)
	}
}

func TestWarpTriangleIdentity(t *testing.T) {
	src := noiseImage(40, 40, 7)
	dst := image.NewNRGBA(src.Rect)
	tri := [3]image.Point{{5, 5}, {30, 8}, {12, 33}}

	require.True(t, WarpTriangle(src, dst, tri, tri))

	mask := newTriangleMask(tri)
	covered := 0
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			i := dst.PixOffset(x, y)
			if mask.covers(x, y) {
				covered++
				assert.Equal(t, src.Pix[i:i+3], dst.Pix[i:i+3], "pixel %d,%d", x, y)
			} else {
				assert.Equal(t, []uint8{0, 0, 0, 0}, dst.Pix[i:i+4], "pixel %d,%d", x, y)
			}
		}
	}
	assert.Greater(t, covered, 100)
}

func TestWarpTriangleGuards(t *testing.T) {
	src := noiseImage(20, 20, 1)
	good := [3]image.Point{{1, 1}, {15, 2}, {4, 16}}

	tests := []struct {
		name   string
		srcTri [3]image.Point
		dstTri [3]image.Point
	}{
		{"degenerate source", [3]image.Point{{1, 1}, {5, 5}, {9, 9}}, good},
		{"degenerate destination", good, [3]image.Point{{2, 2}, {2, 2}, {8, 3}}},
		{"destination outside", good, [3]image.Point{{30, 30}, {40, 31}, {33, 45}}},
		{"source outside", [3]image.Point{{-30, -30}, {-20, -31}, {-25, -40}}, good},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := image.NewNRGBA(src.Rect)
			assert.False(t, WarpTriangle(src, dst, tt.srcTri, tt.dstTri))
			assert.Equal(t, make([]uint8, len(dst.Pix)), dst.Pix)
		})
	}
}

func TestWarpTriangleScales(t *testing.T) {
	src := solidImage(10, 10, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	dst := image.NewNRGBA(image.Rect(0, 0, 60, 60))
	require.True(t, WarpTriangle(src, dst,
		[3]image.Point{{0, 0}, {9, 0}, {0, 9}},
		[3]image.Point{{0, 0}, {50, 0}, {0, 50}}))
	assert.Equal(t, color.NRGBA{R: 200, G: 100, B: 50, A: 255}, dst.NRGBAAt(10, 10))
	assert.Equal(t, color.NRGBA{}, dst.NRGBAAt(40, 40))
}

func TestMaskSharedEdge(t *testing.T) {
	a := newTriangleMask([3]image.Point{{0, 0}, {20, 0}, {20, 20}})
	b := newTriangleMask([3]image.Point{{0, 0}, {20, 20}, {0, 20}})
	for y := -1; y <= 21; y++ {
		for x := -1; x <= 21; x++ {
			count := 0
			if a.covers(x, y) {
				count++
			}
			if b.covers(x, y) {
				count++
			}
			assert.LessOrEqual(t, count, 1, "pixel %d,%d", x, y)
			if x > 0 && x < 20 && y > 0 && y < 20 {
				assert.Equal(t, 1, count, "pixel %d,%d", x, y)
			}
		}
	}
}

func TestMaskOrientation(t *testing.T) {
	cw := newTriangleMask([3]image.Point{{0, 0}, {10, 0}, {0, 10}})
	ccw := newTriangleMask([3]image.Point{{0, 0}, {0, 10}, {10, 0}})
	for y := 0; y < 11; y++ {
		for x := 0; x < 11; x++ {
			assert.Equal(t, cw.covers(x, y), ccw.covers(x, y))
		}
	}
	assert.True(t, cw.covers(2, 2))
	assert.False(t, cw.covers(9, 9))
}

func TestWarpOrderIndependent(t *testing.T) {
	red := solidImage(30, 30, color.NRGBA{R: 255, A: 255})
	blue := solidImage(30, 30, color.NRGBA{B: 255, A: 255})
	triA := [3]image.Point{{2, 2}, {25, 2}, {25, 25}}
	triB := [3]image.Point{{2, 2}, {25, 25}, {2, 25}}

	first := image.NewNRGBA(red.Rect)
	WarpTriangle(red, first, triA, triA)
	WarpTriangle(blue, first, triB, triB)

	second := image.NewNRGBA(red.Rect)
	WarpTriangle(blue, second, triB, triB)
	WarpTriangle(red, second, triA, triA)

	assert.Equal(t, first.Pix, second.Pix)
	assert.Equal(t, uint8(255), first.NRGBAAt(10, 10).R)
	assert.Equal(t, uint8(255), first.NRGBAAt(5, 20).B)
}
