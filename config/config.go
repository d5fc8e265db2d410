package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// DefaultSessionSecret is the placeholder SESSION_SECRET, serve warns about it
const DefaultSessionSecret = "change me"

var (
	TLS_DOMAINS        = ""                   // e.g. "example.com,example2.com"
	BIND_ADDRESS       = "0.0.0.0:8080"       //
	DEBUG_MODE         = false                //
	SESSION_SECRET     = DefaultSessionSecret // Used to sign the flash message cookie
	MODELS_DIR         = "models"             // dlib models: shape_predictor_68_face_landmarks.dat (+ go-face models for the dlib detector)
	FACE_DETECTOR      = "dlib"               // "dlib" (go-face) or "pigo"
	FACE_DETECT_CNN    = false                // Use Convolutional Neural Network for face detection (as opposed to HOG). Much slower, supposedly more accurate at different angles
	FACE_SELECT        = "largest"            // "largest" or "first" (detector order)
	PIGO_CASCADE       = "models/facefinder"
	PIGO_MIN_QUALITY   = 5.0
	STORAGE            = "disk"           // "disk" or "s3"
	UPLOAD_DIR         = "static/uploads" // Used by the disk storage
	S3_BUCKET          = ""
	S3_PREFIX          = "uploads/"
	S3_REGION          = "us-east-1"
	S3_ENDPOINT        = "" // For S3 compatible services
	S3_KEY             = ""
	S3_SECRET          = ""
	ALLOWED_EXTENSIONS = "jpg,jpeg,png,bmp"
	MAX_UPLOAD_SIZE    = int64(16 << 20)  // Whole request body
	MIN_FREE_SPACE     = uint64(64 << 20) // Refuse to save results below this
	MAX_IMAGE_SIDE     = 2048             // Larger inputs are shrunk before processing
	RESULT_TTL         = time.Hour
	CLEANUP_INTERVAL   = 10 * time.Minute
	SEGMENT_CLUSTERS   = 6
	SEGMENT_DOWNSCALE  = 150
	SEGMENT_NEIGHBORS  = 50
	JPEG_QUALITY       = 90
)

func init() {
	readEnvString("TLS_DOMAINS", &TLS_DOMAINS)
	readEnvString("BIND_ADDRESS", &BIND_ADDRESS)
	readEnvBool("DEBUG_MODE", &DEBUG_MODE)
	readEnvString("SESSION_SECRET", &SESSION_SECRET)
	readEnvString("MODELS_DIR", &MODELS_DIR)
	readEnvString("FACE_DETECTOR", &FACE_DETECTOR)
	readEnvBool("FACE_DETECT_CNN", &FACE_DETECT_CNN)
	readEnvString("FACE_SELECT", &FACE_SELECT)
	readEnvString("PIGO_CASCADE", &PIGO_CASCADE)
	readEnvFloat("PIGO_MIN_QUALITY", &PIGO_MIN_QUALITY)
	readEnvString("STORAGE", &STORAGE)
	readEnvString("UPLOAD_DIR", &UPLOAD_DIR)
	readEnvString("S3_BUCKET", &S3_BUCKET)
	readEnvString("S3_PREFIX", &S3_PREFIX)
	readEnvString("S3_REGION", &S3_REGION)
	readEnvString("S3_ENDPOINT", &S3_ENDPOINT)
	readEnvString("S3_KEY", &S3_KEY)
	readEnvString("S3_SECRET", &S3_SECRET)
	readEnvString("ALLOWED_EXTENSIONS", &ALLOWED_EXTENSIONS)
	readEnvSize("MAX_UPLOAD_SIZE", &MAX_UPLOAD_SIZE)
	readEnvUSize("MIN_FREE_SPACE", &MIN_FREE_SPACE)
	readEnvInt("MAX_IMAGE_SIDE", &MAX_IMAGE_SIDE)
	readEnvDuration("RESULT_TTL", &RESULT_TTL)
	readEnvDuration("CLEANUP_INTERVAL", &CLEANUP_INTERVAL)
	readEnvInt("SEGMENT_CLUSTERS", &SEGMENT_CLUSTERS)
	readEnvInt("SEGMENT_DOWNSCALE", &SEGMENT_DOWNSCALE)
	readEnvInt("SEGMENT_NEIGHBORS", &SEGMENT_NEIGHBORS)
	readEnvInt("JPEG_QUALITY", &JPEG_QUALITY)
}

// AllowedExtensions returns the lower-cased extensions without dots
func AllowedExtensions() map[string]bool {
	result := map[string]bool{}
	for _, ext := range strings.Split(ALLOWED_EXTENSIONS, ",") {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			result[ext] = true
		}
	}
	return result
}

func readEnvString(name string, value *string) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	*value = v
}

func readEnvBool(name string, value *bool) {
	v := strings.ToLower(os.Getenv(name))
	if v == "true" || v == "1" || v == "yes" || v == "on" {
		*value = true
	} else if v == "false" || v == "0" || v == "no" || v == "off" {
		*value = false
	}
}

func readEnvFloat(name string, value *float64) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return
	}
	*value = f
}

func readEnvInt(name string, value *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	f, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*value = f
}

func readEnvDuration(name string, value *time.Duration) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return
	}
	*value = d
}

// readEnvSize accepts plain byte counts as well as "16MB", "1 GiB", etc.
func readEnvSize(name string, value *int64) {
	var u uint64
	if !parseSize(os.Getenv(name), &u) {
		return
	}
	*value = int64(u)
}

func readEnvUSize(name string, value *uint64) {
	parseSize(os.Getenv(name), value)
}

func parseSize(v string, value *uint64) bool {
	if v == "" {
		return false
	}
	u, err := humanize.ParseBytes(v)
	if err != nil {
		return false
	}
	*value = u
	return true
}
