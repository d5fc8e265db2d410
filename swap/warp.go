package swap

import (
	"image"
	"image/draw"
	"math"

	"gonum.org/v1/gonum/mat"
)

// WarpTriangle maps the srcTri area of src onto dstTri in dst and reports
// whether anything was painted. Only pixels inside the destination
// triangle's bounding rectangle are touched.
func WarpTriangle(src image.Image, dst *image.NRGBA, srcTri, dstTri [3]image.Point) bool {
	if area2(srcTri) == 0 || area2(dstTri) == 0 {
		return false
	}
	srcRect := triangleBounds(srcTri).Intersect(src.Bounds())
	dstRect := triangleBounds(dstTri).Intersect(dst.Bounds())
	if srcRect.Empty() || dstRect.Empty() {
		return false
	}

	crop := cropNRGBA(src, srcRect)
	srcLocal := translate(srcTri, srcRect.Min)
	dstLocal := translate(dstTri, dstRect.Min)

	// the patch is sampled backwards: destination pixel -> source position
	inverse, ok := solveAffine(dstLocal, srcLocal)
	if !ok {
		return false
	}

	mask := newTriangleMask(dstLocal)
	w, h := dstRect.Dx(), dstRect.Dy()
	for y := 0; y < h; y++ {
		row := dst.PixOffset(dstRect.Min.X, dstRect.Min.Y+y)
		for x := 0; x < w; x++ {
			if !mask.covers(x, y) {
				continue
			}
			sx := inverse[0]*float64(x) + inverse[1]*float64(y) + inverse[2]
			sy := inverse[3]*float64(x) + inverse[4]*float64(y) + inverse[5]
			r, g, b := bilinear(crop, sx, sy)
			i := row + 4*x
			dst.Pix[i+0] = r
			dst.Pix[i+1] = g
			dst.Pix[i+2] = b
			dst.Pix[i+3] = 0xff
		}
	}
	return true
}

// triangleBounds is the pixel rectangle covering all three vertices.
func triangleBounds(t [3]image.Point) image.Rectangle {
	r := image.Rectangle{Min: t[0], Max: t[0]}
	for _, p := range t[1:] {
		r.Min.X = min(r.Min.X, p.X)
		r.Min.Y = min(r.Min.Y, p.Y)
		r.Max.X = max(r.Max.X, p.X)
		r.Max.Y = max(r.Max.Y, p.Y)
	}
	r.Max = r.Max.Add(image.Pt(1, 1))
	return r
}

func translate(t [3]image.Point, origin image.Point) [3]image.Point {
	return [3]image.Point{t[0].Sub(origin), t[1].Sub(origin), t[2].Sub(origin)}
}

// area2 is twice the signed area of the triangle.
func area2(t [3]image.Point) int {
	return edge(t[0], t[1], t[2])
}

func edge(a, b, p image.Point) int {
	return (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
}

// cropNRGBA copies r out of img into an NRGBA image with origin 0,0.
func cropNRGBA(img image.Image, r image.Rectangle) *image.NRGBA {
	crop := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(crop, crop.Bounds(), img, r.Min, draw.Src)
	return crop
}

// solveAffine returns the six coefficients of the affine map sending the
// from triangle onto the to triangle: x' = c0*x + c1*y + c2, y' = c3*x + c4*y + c5.
func solveAffine(from, to [3]image.Point) ([6]float64, bool) {
	var coeffs [6]float64
	a := mat.NewDense(3, 3, nil)
	b := mat.NewDense(3, 2, nil)
	for i := range from {
		a.SetRow(i, []float64{float64(from[i].X), float64(from[i].Y), 1})
		b.SetRow(i, []float64{float64(to[i].X), float64(to[i].Y)})
	}
	var m mat.Dense
	if err := m.Solve(a, b); err != nil {
		if _, ok := err.(mat.Condition); !ok {
			return coeffs, false
		}
	}
	if r, c := m.Dims(); r != 3 || c != 2 {
		return coeffs, false
	}
	for i := 0; i < 3; i++ {
		coeffs[i] = m.At(i, 0)
		coeffs[3+i] = m.At(i, 1)
	}
	for _, c := range coeffs {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return coeffs, false
		}
	}
	return coeffs, true
}

// triangleMask decides pixel coverage with integer edge functions. Pixels
// exactly on an edge belong to the triangle only for top or left edges, so two
// triangles sharing an edge never both cover a pixel.
type triangleMask struct {
	v [3]image.Point
}

func newTriangleMask(t [3]image.Point) triangleMask {
	if area2(t) < 0 {
		t[1], t[2] = t[2], t[1]
	}
	return triangleMask{v: t}
}

func (m triangleMask) covers(x, y int) bool {
	p := image.Pt(x, y)
	for i := 0; i < 3; i++ {
		a, b := m.v[i], m.v[(i+1)%3]
		e := edge(a, b, p)
		if e < 0 || (e == 0 && !topLeft(a, b)) {
			return false
		}
	}
	return true
}

// topLeft holds for exactly one of the two directions of a non-empty edge.
func topLeft(a, b image.Point) bool {
	d := b.Sub(a)
	return d.Y < 0 || (d.Y == 0 && d.X > 0)
}

// reflect101 folds i into [0, n) mirroring around the edge pixels without
// repeating them: ... 2 1 | 0 1 2 ... n-1 | n-2 n-3 ...
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i
	}
	return i
}

func bilinear(img *image.NRGBA, x, y float64) (r, g, b uint8) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	x0, y0 := math.Floor(x), math.Floor(y)
	fx, fy := x-x0, y-y0
	ix, iy := int(x0), int(y0)

	xs := [2]int{reflect101(ix, w), reflect101(ix+1, w)}
	ys := [2]int{reflect101(iy, h), reflect101(iy+1, h)}
	weights := [4]float64{(1 - fx) * (1 - fy), fx * (1 - fy), (1 - fx) * fy, fx * fy}

	var acc [3]float64
	for k, weight := range weights {
		if weight == 0 {
			continue
		}
		i := img.PixOffset(xs[k%2], ys[k/2])
		acc[0] += weight * float64(img.Pix[i])
		acc[1] += weight * float64(img.Pix[i+1])
		acc[2] += weight * float64(img.Pix[i+2])
	}
	return clamp8(acc[0]), clamp8(acc[1]), clamp8(acc[2])
}

func clamp8(v float64) uint8 {
	v = math.Floor(v + 0.5)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
