package utils

import (
	"image"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	"github.com/nfnt/resize"
)

// DecodeImage decodes an image applying its EXIF orientation. Images with a
// side longer than maxSide are shrunk to fit, 0 disables the limit.
func DecodeImage(reader io.Reader, maxSide int) (image.Image, error) {
	img, err := imaging.Decode(reader, imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	size := img.Bounds().Size()
	if maxSide > 0 && (size.X > maxSide || size.Y > maxSide) {
		img = resize.Thumbnail(uint(maxSide), uint(maxSide), img, resize.Lanczos3)
	}
	return img, nil
}

// EncodeImage writes img in the format matching ext, unknown extensions become JPEG
func EncodeImage(writer io.Writer, img image.Image, ext string, quality int) error {
	format, err := imaging.FormatFromExtension(NormalizeExt(ext))
	if err != nil {
		format = imaging.JPEG
	}
	return imaging.Encode(writer, img, format, imaging.JPEGQuality(quality))
}

// NormalizeExt lower-cases and strips the dot: ".JPG" -> "jpg"
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MimeType returns the MIME type for an extension, "" when unknown
func MimeType(ext string) string {
	t := filetype.GetType(NormalizeExt(ext))
	if t == filetype.Unknown {
		return ""
	}
	return t.MIME.Value
}

// IsImage sniffs the first bytes of a file
func IsImage(head []byte) bool {
	return filetype.IsImage(head)
}
