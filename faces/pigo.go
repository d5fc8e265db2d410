package faces

import (
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
)

const pigoIoUThreshold = 0.2

type pigoDetector struct {
	classifier *pigo.Pigo
	minQuality float32
}

// NewPigoDetector unpacks a pigo face cascade (e.g. "facefinder").
func NewPigoDetector(cascadeFile string, minQuality float64) (Detector, error) {
	data, err := os.ReadFile(cascadeFile)
	if err != nil {
		return nil, err
	}
	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", cascadeFile, err)
	}
	return &pigoDetector{classifier: classifier, minQuality: float32(minQuality)}, nil
}

func (p *pigoDetector) Name() string {
	return "pigo"
}

func (p *pigoDetector) Close() {}

func (p *pigoDetector) Detect(img image.Image) ([]image.Rectangle, error) {
	bounds := img.Bounds()
	gray := toGray(img)
	cols, rows := bounds.Dx(), bounds.Dy()
	if cols == 0 || rows == 0 {
		return nil, nil
	}
	minSide := cols
	if rows < minSide {
		minSide = rows
	}

	params := pigo.CascadeParams{
		MinSize:     max(20, minSide/10),
		MaxSize:     minSide,
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: pigo.ImageParams{
			Pixels: gray.Pix,
			Rows:   rows,
			Cols:   cols,
			Dim:    gray.Stride,
		},
	}
	dets := p.classifier.RunCascade(params, 0.0)
	dets = p.classifier.ClusterDetections(dets, pigoIoUThreshold)
	return detectionRects(dets, p.minQuality, bounds), nil
}

// detectionRects turns clustered detections, centre and side in pixels
// relative to bounds.Min, into rectangles clipped to bounds. Detections
// below minQuality are dropped.
func detectionRects(dets []pigo.Detection, minQuality float32, bounds image.Rectangle) []image.Rectangle {
	var rects []image.Rectangle
	for _, det := range dets {
		if det.Q < minQuality {
			continue
		}
		half := det.Scale / 2
		r := image.Rect(det.Col-half, det.Row-half, det.Col+half, det.Row+half)
		r = r.Add(bounds.Min).Intersect(bounds)
		if !r.Empty() {
			rects = append(rects, r)
		}
	}
	return rects
}
