package swap

import (
	"errors"
	"image"

	"facemorph/event"
	"facemorph/faces"

	"github.com/disintegration/imaging"
)

var log = event.Log

var ErrFaceNotDetected = errors.New("could not detect face in one of the images")

// Result of one face swap.
type Result struct {
	Image     *image.NRGBA
	Triangles int
	Skipped   int // degenerate or empty triangles left untouched
}

// Compositor pastes the face texture of one image onto the face geometry of another.
type Compositor struct {
	Extractor faces.Extractor
}

func NewCompositor(extractor faces.Extractor) *Compositor {
	return &Compositor{Extractor: extractor}
}

// Compose warps every triangle of the source face onto the matching
// triangle of the destination face. Neither input is modified; the result
// has the size of dst.
func (c *Compositor) Compose(src, dst image.Image) (*Result, error) {
	source := opaque(imaging.Clone(src))
	working := opaque(imaging.Clone(dst))

	srcPoints, ok := c.Extractor.Extract(source)
	if !ok {
		return nil, ErrFaceNotDetected
	}
	dstPoints, ok := c.Extractor.Extract(working)
	if !ok {
		return nil, ErrFaceNotDetected
	}

	result := &Result{Image: working}
	triangles, err := Triangulate(dstPoints)
	if err != nil {
		log.Warnf("swap: triangulation failed, returning the destination unchanged: %s", err)
		return result, nil
	}
	result.Triangles = len(triangles)

	for _, t := range triangles {
		srcTri := [3]image.Point{srcPoints[t[0]], srcPoints[t[1]], srcPoints[t[2]]}
		dstTri := [3]image.Point{dstPoints[t[0]], dstPoints[t[1]], dstPoints[t[2]]}
		if !WarpTriangle(source, working, srcTri, dstTri) {
			result.Skipped++
		}
	}
	log.Debugf("swap: %d triangles, %d skipped", result.Triangles, result.Skipped)
	return result, nil
}

func opaque(img *image.NRGBA) *image.NRGBA {
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}
