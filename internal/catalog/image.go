package catalog

import (
	"strconv"
	"strings"
)

// DefaultImages are the stock pictures shipped under web/static/images.
var DefaultImages = stockImages(25)

func stockImages(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "images/tuition" + strconv.Itoa(i+1) + ".svg"
	}
	return out
}

// ImageSet maps a tuition ID to a fixed picture.
type ImageSet struct {
	paths []string
}

// NewImageSet joins every image onto base (e.g. "/static/").
// An empty list falls back to DefaultImages.
func NewImageSet(base string, images []string) *ImageSet {
	if len(images) == 0 {
		images = DefaultImages
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	paths := make([]string, len(images))
	for i, img := range images {
		paths[i] = base + strings.TrimPrefix(img, "/")
	}
	return &ImageSet{paths: paths}
}

// For returns images[(id-1) mod len(images)].
// It is pure: the same id always yields the same path, whatever the catalog
// size. Non-positive ids wrap around instead of panicking.
func (s *ImageSet) For(id int) string {
	n := len(s.paths)
	i := (id - 1) % n
	if i < 0 {
		i += n
	}
	return s.paths[i]
}

// Len returns the number of distinct images.
func (s *ImageSet) Len() int {
	return len(s.paths)
}
