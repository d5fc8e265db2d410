package storage

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// Kinds of stored files
const (
	KindSource = "source"
	KindTarget = "target"
	KindSwap   = "swap"
	KindImage  = "image"
	KindMorph  = "morph"
	KindLabels = "labels"
)

const maxSlugLength = 40

var nameRegexp = regexp.MustCompile(`^[a-z]+_[a-z0-9-]*_[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.[a-z0-9]+$`)

// NewName returns a unique "<kind>_<slug>_<uuid>.<ext>" name, the slug
// comes from the uploaded file name.
func NewName(kind, original, ext string) string {
	base := strings.TrimSuffix(filepath.Base(original), filepath.Ext(original))
	s := strings.ReplaceAll(slug.Make(base), "_", "-")
	if len(s) > maxSlugLength {
		s = strings.Trim(s[:maxSlugLength], "-")
	}
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	return kind + "_" + s + "_" + uuid.NewString() + "." + ext
}

// ValidName reports whether name could have been generated by NewName
func ValidName(name string) bool {
	return nameRegexp.MatchString(name)
}
