package content

import (
	"fmt"
	"log/slog"
	"strings"
)

// MissingImagePolicy decides what happens to an image reference that no
// cache key matches.
type MissingImagePolicy int

const (
	// MissingImageKeep leaves the original reference in place and logs the
	// miss at warn level.
	MissingImageKeep MissingImagePolicy = iota
	// MissingImagePlaceholder substitutes PlaceholderImage.
	MissingImagePlaceholder
)

func (p MissingImagePolicy) String() string {
	switch p {
	case MissingImageKeep:
		return "keep"
	case MissingImagePlaceholder:
		return "placeholder"
	default:
		return fmt.Sprintf("MissingImagePolicy(%d)", int(p))
	}
}

// ParseMissingImagePolicy parses "keep" or "placeholder".
func ParseMissingImagePolicy(s string) (MissingImagePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "keep", "":
		return MissingImageKeep, nil
	case "placeholder":
		return MissingImagePlaceholder, nil
	default:
		return MissingImageKeep, fmt.Errorf("unknown missing image policy %q (want keep or placeholder)", s)
	}
}

// PlaceholderImage is a 1x1 transparent PNG.
const PlaceholderImage = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

const (
	minJPEGQuality     = 60
	defaultJPEGQuality = 85
)

// Options configures document building and chapter resolution.
type Options struct {
	Logger *slog.Logger

	MissingImage MissingImagePolicy

	// MaxImageWidth downscales wider raster images before they are inlined.
	// Zero keeps images at their original size.
	MaxImageWidth int

	// JPEGQuality is used when a downscaled image is re-encoded as JPEG.
	JPEGQuality int

	// LazyImages adds loading="lazy" to rewritten <img> elements.
	LazyImages bool

	// Strict rejects archives with a missing or compressed mimetype entry.
	Strict bool
}

// DefaultOptions returns the options the reader uses when nothing is
// configured.
func DefaultOptions() Options {
	return Options{
		MissingImage: MissingImageKeep,
		JPEGQuality:  defaultJPEGQuality,
		LazyImages:   true,
	}
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

func (o Options) jpegQuality() int {
	q := o.JPEGQuality
	if q <= 0 {
		q = defaultJPEGQuality
	}
	if q < minJPEGQuality {
		q = minJPEGQuality
	}
	if q > 100 {
		q = 100
	}
	return q
}
