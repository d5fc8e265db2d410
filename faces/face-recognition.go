package faces

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"github.com/Kagami/go-face"
)

// Detector finds face rectangles in an image.
type Detector interface {
	Detect(img image.Image) ([]image.Rectangle, error)
	Name() string
	Close()
}

// dlibDetector wraps the go-face recognizer. dlib is not reentrant so every
// call goes through the mutex.
type dlibDetector struct {
	mutex      sync.Mutex
	recognizer *face.Recognizer
	cnn        bool
}

// NewDlibDetector loads the go-face models (shape_predictor_5_face_landmarks.dat,
// dlib_face_recognition_resnet_model_v1.dat and mmod_human_face_detector.dat) from modelsDir.
func NewDlibDetector(modelsDir string, cnn bool) (Detector, error) {
	recognizer, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("go-face recognizer: %w", err)
	}
	return &dlibDetector{recognizer: recognizer, cnn: cnn}, nil
}

func (d *dlibDetector) Name() string {
	if d.cnn {
		return "dlib-cnn"
	}
	return "dlib"
}

func (d *dlibDetector) Detect(img image.Image) (rects []image.Rectangle, err error) {
	buf := bytes.Buffer{}
	if err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		return nil, err
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dlib panic: %v", r)
		}
	}()

	var found []face.Face
	if d.cnn {
		found, err = d.recognizer.RecognizeCNN(buf.Bytes())
	} else {
		found, err = d.recognizer.Recognize(buf.Bytes())
	}
	if err != nil {
		return nil, err
	}
	offset := img.Bounds().Min
	for _, f := range found {
		// dlib rectangles are inclusive, the encoded copy starts at 0,0
		r := image.Rect(f.Rectangle.Min.X, f.Rectangle.Min.Y, f.Rectangle.Max.X+1, f.Rectangle.Max.Y+1)
		rects = append(rects, r.Add(offset))
	}
	return rects, nil
}

func (d *dlibDetector) Close() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.recognizer.Close()
}
