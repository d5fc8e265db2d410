package faces

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"

	"facemorph/event"
)

var log = event.Log

// ShapePredictorFile is looked up in the models directory, with or without ".bz2".
const ShapePredictorFile = "shape_predictor_68_face_landmarks.dat"

const (
	SelectLargest = "largest"
	SelectFirst   = "first"
)

// Extractor produces the 68 landmarks of one face. ok is false when no face
// could be found, for whatever reason.
type Extractor interface {
	Extract(img image.Image) (points Keypoints, ok bool)
	Available() bool
	Status() string
}

type Options struct {
	ModelsDir      string
	Detector       string // "dlib" or "pigo"
	CNN            bool
	Select         string // SelectLargest or SelectFirst
	PigoCascade    string
	PigoMinQuality float64
}

// Load builds the extractor once at startup. It never fails: when the models
// cannot be loaded the Unavailable variant is returned and the reason logged.
func Load(opts Options) Extractor {
	predictor, err := loadPredictor(opts.ModelsDir)
	if err != nil {
		log.Errorf("faces: landmarks disabled: %s", err)
		return Unavailable{Reason: err.Error()}
	}

	var detector Detector
	switch opts.Detector {
	case "pigo":
		detector, err = NewPigoDetector(opts.PigoCascade, opts.PigoMinQuality)
	case "dlib", "":
		detector, err = NewDlibDetector(opts.ModelsDir, opts.CNN)
	default:
		err = fmt.Errorf("unknown detector %q", opts.Detector)
	}
	if err != nil {
		log.Errorf("faces: landmarks disabled: %s", err)
		return Unavailable{Reason: err.Error()}
	}

	log.Infof("faces: %s detector, %d point predictor, select %s", detector.Name(), predictor.NumParts(), opts.Select)
	return NewExtractor(detector, predictor, opts.Select)
}

func loadPredictor(modelsDir string) (*ShapePredictor, error) {
	fileName := filepath.Join(modelsDir, ShapePredictorFile)
	if _, err := os.Stat(fileName); errors.Is(err, os.ErrNotExist) {
		fileName += ".bz2"
	}
	sp, err := LoadShapePredictor(fileName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrModelUnavailable, err)
	}
	if sp.NumParts() != NumPoints {
		return nil, fmt.Errorf("%w: %s predicts %d points", ErrModelUnavailable, fileName, sp.NumParts())
	}
	return sp, nil
}

// Unavailable is the extractor used when the landmark model could not be loaded.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Extract(image.Image) (Keypoints, bool) {
	return Keypoints{}, false
}

func (u Unavailable) Available() bool {
	return false
}

func (u Unavailable) Status() string {
	return "unavailable: " + u.Reason
}

type extractor struct {
	detector  Detector
	predictor *ShapePredictor
	selection string
}

// NewExtractor combines a detector with a 68 point predictor.
func NewExtractor(detector Detector, predictor *ShapePredictor, selection string) Extractor {
	return &extractor{detector: detector, predictor: predictor, selection: selection}
}

func (e *extractor) Available() bool {
	return true
}

func (e *extractor) Status() string {
	return e.detector.Name()
}

// Close releases the detector
func (e *extractor) Close() {
	e.detector.Close()
}

// Close releases what an extractor holds, if anything
func Close(e Extractor) {
	if c, ok := e.(interface{ Close() }); ok {
		c.Close()
	}
}

func (e *extractor) Extract(img image.Image) (Keypoints, bool) {
	points, err := e.extract(img)
	if err != nil {
		if !errors.Is(err, ErrNoFace) {
			log.Warnf("faces: %s", err)
		} else {
			log.Debugf("faces: %s", err)
		}
		return Keypoints{}, false
	}
	return points, true
}

func (e *extractor) extract(img image.Image) (points Keypoints, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("landmarks panic: %v", r)
		}
	}()

	rects, err := e.detector.Detect(img)
	if err != nil {
		return points, fmt.Errorf("%s detector: %w", e.detector.Name(), err)
	}
	rect, ok := SelectFace(rects, e.selection)
	if !ok {
		return points, ErrNoFace
	}
	found := e.predictor.Predict(toGray(img), rect)
	if len(found) != NumPoints {
		return points, fmt.Errorf("predictor returned %d points", len(found))
	}
	copy(points[:], found)
	points.clamp(img.Bounds())
	return points, nil
}

// SelectFace picks one rectangle according to the policy. "largest" prefers
// the largest area, then the top-most, then the left-most rectangle.
func SelectFace(rects []image.Rectangle, policy string) (image.Rectangle, bool) {
	if len(rects) == 0 {
		return image.Rectangle{}, false
	}
	if policy == SelectFirst {
		return rects[0], true
	}
	sorted := make([]image.Rectangle, len(rects))
	copy(sorted, rects)
	sort.SliceStable(sorted, func(i, j int) bool {
		ai, aj := area(sorted[i]), area(sorted[j])
		if ai != aj {
			return ai > aj
		}
		if sorted[i].Min.Y != sorted[j].Min.Y {
			return sorted[i].Min.Y < sorted[j].Min.Y
		}
		return sorted[i].Min.X < sorted[j].Min.X
	})
	return sorted[0], true
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}

// toGray converts to the (r+g+b)/3 intensity dlib uses for rgb_pixel images.
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			gray.Pix[gray.PixOffset(x, y)] = uint8(((r >> 8) + (g >> 8) + (b >> 8)) / 3)
		}
	}
	return gray
}
