package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"path/filepath"

	"facemorph/config"
	"facemorph/utils"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
)

// Upload is one validated and decoded image from a multipart form
type Upload struct {
	Name  string // client side file name
	Ext   string // lower case, no dot
	Data  []byte
	Image image.Image
}

// TooLargeError builds the message for bodies over MAX_UPLOAD_SIZE
func TooLargeError(max int64) error {
	return &InputError{Message: fmt.Sprintf("file too large (max %s)", humanize.IBytes(uint64(max)))}
}

// ReadUpload validates the file in a form field before any processing:
// extension, sniffed content type and decodability. Missing files yield
// http.ErrMissingFile.
func ReadUpload(c *gin.Context, field string) (*Upload, error) {
	if config.MAX_UPLOAD_SIZE > 0 && c.Request.ContentLength > config.MAX_UPLOAD_SIZE {
		return nil, TooLargeError(config.MAX_UPLOAD_SIZE)
	}
	header, err := c.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return nil, TooLargeError(tooLarge.Limit)
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			return nil, http.ErrMissingFile
		}
		log.Debugf("handlers: read %s: %s", field, err)
		return nil, &InputError{Message: MessageBadUpload}
	}
	if header.Filename == "" {
		return nil, http.ErrMissingFile
	}

	ext := utils.NormalizeExt(filepath.Ext(header.Filename))
	if !config.AllowedExtensions()[ext] {
		return nil, &InputError{Message: header.Filename + ": file type not allowed"}
	}

	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	if !utils.IsImage(data) {
		return nil, &InputError{Message: header.Filename + ": not a valid image"}
	}
	img, err := utils.DecodeImage(bytes.NewReader(data), config.MAX_IMAGE_SIDE)
	if err != nil {
		log.Debugf("handlers: decode %s: %s", header.Filename, err)
		return nil, &InputError{Message: header.Filename + ": not a valid image"}
	}
	return &Upload{Name: header.Filename, Ext: ext, Data: data, Image: img}, nil
}
