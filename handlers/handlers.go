package handlers

import (
	"bytes"
	"errors"
	"math"
	"net/http"
	"strconv"

	"facemorph/config"
	"facemorph/event"
	"facemorph/faces"
	"facemorph/segment"
	"facemorph/storage"
	"facemorph/swap"
	"facemorph/utils"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
)

var log = event.Log

const (
	UploadsPath = "/static/uploads/"
	MaxClusters = 12
	pinnedKey   = "pinned"
)

// Env carries what the request handlers share. It is built once at startup.
type Env struct {
	Extractor   faces.Extractor
	Compositor  *swap.Compositor
	Storage     storage.StorageAPI
	Pins        *storage.Pins
	Segment     segment.Options
	JPEGQuality int
}

func NewEnv(extractor faces.Extractor, store storage.StorageAPI, pins *storage.Pins) *Env {
	return &Env{
		Extractor:  extractor,
		Compositor: swap.NewCompositor(extractor),
		Storage:    store,
		Pins:       pins,
		Segment: segment.Options{
			Clusters:  config.SEGMENT_CLUSTERS,
			Downscale: config.SEGMENT_DOWNSCALE,
			Neighbors: config.SEGMENT_NEIGHBORS,
		},
		JPEGQuality: config.JPEG_QUALITY,
	}
}

// ReleasePins unpins the files a request used once its response is written
func (e *Env) ReleasePins(c *gin.Context) {
	c.Next()
	if names := c.GetStringSlice(pinnedKey); len(names) > 0 {
		e.Pins.Unpin(names...)
	}
}

func (e *Env) pin(c *gin.Context, names ...string) {
	e.Pins.Pin(names...)
	c.Set(pinnedKey, append(c.GetStringSlice(pinnedKey), names...))
}

func URL(name string) string {
	return UploadsPath + name
}

type pendingFile struct {
	name string
	ext  string
	data []byte
}

// saveAll stores the files in order. When one fails, the ones already
// written are removed again.
func (e *Env) saveAll(files ...pendingFile) error {
	for i, f := range files {
		if _, err := e.Storage.Save(f.name, bytes.NewReader(f.data), utils.MimeType(f.ext)); err != nil {
			for _, saved := range files[:i] {
				if delErr := e.Storage.Delete(saved.name); delErr != nil {
					log.Errorf("handlers: remove %s after failed save: %s", saved.name, delErr)
				}
			}
			return err
		}
	}
	return nil
}

// FaceSwap validates the "source" and "target" uploads, pastes the source
// face onto the target and stores all three images.
func (e *Env) FaceSwap(c *gin.Context) (*SwapResponse, error) {
	src, err := ReadUpload(c, "source")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, ErrMissingBoth
	}
	if err != nil {
		return nil, err
	}
	tgt, err := ReadUpload(c, "target")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, ErrMissingBoth
	}
	if err != nil {
		return nil, err
	}

	result, err := e.Compositor.Compose(src.Image, tgt.Image)
	if err != nil {
		return nil, err
	}

	resp := &SwapResponse{Triangles: result.Triangles, Skipped: result.Skipped}
	sourceName := storage.NewName(storage.KindSource, src.Name, src.Ext)
	targetName := storage.NewName(storage.KindTarget, tgt.Name, tgt.Ext)
	resultName := storage.NewName(storage.KindSwap, tgt.Name, tgt.Ext)
	e.pin(c, sourceName, targetName, resultName)

	encoded := bytes.Buffer{}
	if err = utils.EncodeImage(&encoded, result.Image, tgt.Ext, e.JPEGQuality); err != nil {
		return nil, err
	}
	err = e.saveAll(
		pendingFile{sourceName, src.Ext, src.Data},
		pendingFile{targetName, tgt.Ext, tgt.Data},
		pendingFile{resultName, tgt.Ext, encoded.Bytes()},
	)
	if err != nil {
		return nil, err
	}
	resp.Source, resp.Target, resp.Result = URL(sourceName), URL(targetName), URL(resultName)
	log.Infof("swap: %s onto %s, %d triangles, %d skipped", src.Name, tgt.Name, resp.Triangles, resp.Skipped)
	return resp, nil
}

// Clusters reads the optional "clusters" form field
func (e *Env) Clusters(c *gin.Context) (int, error) {
	value := c.PostForm("clusters")
	if value == "" {
		return e.Segment.Clusters, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 || n > MaxClusters {
		return 0, &InputError{Message: "clusters must be a number between 1 and " + strconv.Itoa(MaxClusters)}
	}
	return n, nil
}

// FaceMorph segments the "image" upload into colour regions and stores the
// original, the recoloured image and the label map.
func (e *Env) FaceMorph(c *gin.Context) (*MorphResponse, error) {
	upload, err := ReadUpload(c, "image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, ErrMissingImage
	}
	if err != nil {
		return nil, err
	}
	opts := e.Segment
	if opts.Clusters, err = e.Clusters(c); err != nil {
		return nil, err
	}

	seg, err := segment.Segment(upload.Image, opts)
	if err != nil {
		return nil, err
	}
	size := upload.Image.Bounds().Size()
	morph := segment.Upscale(seg.Image, size.X, size.Y)
	labels := segment.Upscale(seg.LabelMap(), size.X, size.Y)

	imageName := storage.NewName(storage.KindImage, upload.Name, upload.Ext)
	morphName := storage.NewName(storage.KindMorph, upload.Name, upload.Ext)
	labelsName := storage.NewName(storage.KindLabels, upload.Name, "png")
	e.pin(c, imageName, morphName, labelsName)

	var morphData, labelsData bytes.Buffer
	if err = utils.EncodeImage(&morphData, morph, upload.Ext, e.JPEGQuality); err != nil {
		return nil, err
	}
	if err = utils.EncodeImage(&labelsData, labels, "png", e.JPEGQuality); err != nil {
		return nil, err
	}
	err = e.saveAll(
		pendingFile{imageName, upload.Ext, upload.Data},
		pendingFile{morphName, upload.Ext, morphData.Bytes()},
		pendingFile{labelsName, "png", labelsData.Bytes()},
	)
	if err != nil {
		return nil, err
	}
	log.Infof("segment: %s into %d regions", upload.Name, len(seg.Colors))
	return &MorphResponse{
		Image:    URL(imageName),
		Result:   URL(morphName),
		Labels:   URL(labelsName),
		Clusters: len(seg.Colors),
	}, nil
}

// Landmarks returns the 68 points of the face in the "image" upload
func (e *Env) Landmarks(c *gin.Context) (*LandmarksResponse, error) {
	upload, err := ReadUpload(c, "image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, ErrMissingImage
	}
	if err != nil {
		return nil, err
	}
	points, ok := e.Extractor.Extract(upload.Image)
	if !ok {
		return nil, swap.ErrFaceNotDetected
	}
	resp := &LandmarksResponse{Points: points.Pairs(), Regions: map[string][]int{}}
	for _, r := range faces.Regions {
		resp.Regions[r.Name] = []int{r.Start, r.End}
	}
	return resp, nil
}

type HealthResponse struct {
	Landmarks bool   `json:"landmarks"`
	Detector  string `json:"detector"`
	Storage   string `json:"storage"`
	FreeSpace string `json:"free_space"`
}

func (e *Env) Health() HealthResponse {
	free := e.Storage.GetFreeSpace()
	freeSpace := "unlimited"
	if free != math.MaxUint64 {
		freeSpace = humanize.IBytes(free)
	}
	return HealthResponse{
		Landmarks: e.Extractor.Available(),
		Detector:  e.Extractor.Status(),
		Storage:   e.Storage.GetBucket().StorageType.String(),
		FreeSpace: freeSpace,
	}
}
