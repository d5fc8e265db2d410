// Package segment splits an image into colour regions with spectral
// clustering over a k-nearest-neighbour graph of its pixels.
package segment

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand"

	"facemorph/event"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

var log = event.Log

var (
	ErrInvalidOptions = errors.New("invalid segmentation options")
	ErrEmptyImage     = errors.New("empty image")
)

// LabelStep is the grey level distance between labels in the label map.
const LabelStep = 40

type Options struct {
	Clusters  int   // number of colour regions
	Downscale int   // target length of the longer side
	Neighbors int   // size of the nearest neighbour graph, self included
	Seed      int64 // k-means++ seed
}

func DefaultOptions() Options {
	return Options{Clusters: 5, Downscale: 150, Neighbors: 50}
}

func (o Options) validate() error {
	if o.Clusters < 1 {
		return fmt.Errorf("%w: %d clusters", ErrInvalidOptions, o.Clusters)
	}
	if o.Downscale < 1 {
		return fmt.Errorf("%w: downscale to %d", ErrInvalidOptions, o.Downscale)
	}
	if o.Neighbors < 1 {
		return fmt.Errorf("%w: %d neighbors", ErrInvalidOptions, o.Neighbors)
	}
	return nil
}

// Result of a segmentation at the downscaled size.
type Result struct {
	Width  int
	Height int
	Labels []int         // row major, one per pixel
	Image  *image.NRGBA  // every pixel painted with the mean colour of its cluster
	Colors []color.NRGBA // mean colour per label
}

// Segment downscales img, clusters its pixels and recolours them.
func Segment(img image.Image, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, ErrEmptyImage
	}

	w, h := downscaledSize(bounds.Dx(), bounds.Dy(), opts.Downscale)
	var small *image.NRGBA
	if w == bounds.Dx() && h == bounds.Dy() {
		small = imaging.Clone(img)
	} else {
		small = imaging.Clone(resize.Resize(uint(w), uint(h), img, resize.Bilinear))
	}
	w, h = small.Rect.Dx(), small.Rect.Dy()

	points := make([]pixel, 0, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := small.NRGBAAt(x, y)
			points = append(points, pixel{rgb: [3]float64{float64(c.R), float64(c.G), float64(c.B)}, index: len(points)})
		}
	}

	clusters := min(opts.Clusters, len(points))
	r := rand.New(rand.NewSource(opts.Seed))

	affinity, sqrtDeg := normalize(knnAffinity(points, opts.Neighbors))
	vectors, err := leadingEigenvectors(affinity, clusters, r)
	if err != nil {
		return nil, fmt.Errorf("spectral embedding: %w", err)
	}

	embedding := make([][]float64, len(points))
	for i := range embedding {
		row := make([]float64, len(vectors))
		for j, v := range vectors {
			row[j] = v[i] / sqrtDeg[i]
		}
		embedding[i] = row
	}
	labels := kmeans(embedding, clusters, r)

	result := &Result{Width: w, Height: h, Labels: labels}
	result.Colors = meanColors(points, labels)
	result.Image = image.NewNRGBA(image.Rect(0, 0, w, h))
	for i, l := range labels {
		result.Image.SetNRGBA(i%w, i/w, result.Colors[l])
	}
	log.Debugf("segment: %dx%d pixels, %d regions", w, h, len(result.Colors))
	return result, nil
}

func downscaledSize(w, h, side int) (int, int) {
	if w >= h {
		return side, max(1, int(math.Round(float64(h)*float64(side)/float64(w))))
	}
	return max(1, int(math.Round(float64(w)*float64(side)/float64(h)))), side
}

func meanColors(points []pixel, labels []int) []color.NRGBA {
	count := 0
	for _, l := range labels {
		count = max(count, l+1)
	}
	sums := make([][3]float64, count)
	sizes := make([]int, count)
	for i, l := range labels {
		for c := 0; c < 3; c++ {
			sums[l][c] += points[i].rgb[c]
		}
		sizes[l]++
	}
	result := make([]color.NRGBA, count)
	for l := range result {
		n := float64(sizes[l])
		result[l] = color.NRGBA{
			R: uint8(math.Round(sums[l][0] / n)),
			G: uint8(math.Round(sums[l][1] / n)),
			B: uint8(math.Round(sums[l][2] / n)),
			A: 0xff,
		}
	}
	return result
}

// LabelMap renders the labels as grey levels (label * LabelStep).
func (r *Result) LabelMap() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, r.Width, r.Height))
	for i, l := range r.Labels {
		img.Pix[i] = uint8(min(255, l*LabelStep))
	}
	return img
}

// Upscale resizes img to width x height with nearest neighbour sampling, so
// region borders stay sharp.
func Upscale(img image.Image, width, height int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.NearestNeighbor.Scale(dst, dst.Rect, img, img.Bounds(), draw.Src, nil)
	return dst
}
