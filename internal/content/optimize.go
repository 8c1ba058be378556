package content

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
)

// maxDecodePixels bounds the images that are decoded for resizing; larger
// ones are inlined as they are.
const maxDecodePixels = 100 * 1000 * 1000

// imageOptimizer downscales raster images wider than maxWidth.
type imageOptimizer struct {
	maxWidth    int
	jpegQuality int
}

func newImageOptimizer(opts Options) *imageOptimizer {
	return &imageOptimizer{
		maxWidth:    opts.MaxImageWidth,
		jpegQuality: opts.jpegQuality(),
	}
}

// optimizedImage is the result of optimize. Warning is set when the input was
// passed through because it could not be processed.
type optimizedImage struct {
	Data      []byte
	MediaType string
	Width     int
	Height    int
	Resized   bool
	Warning   string
}

// optimize returns input unchanged unless it is a decodable raster image
// wider than the configured maximum, in which case it is resized and
// re-encoded. Transparent images stay PNG; everything else becomes JPEG.
func (o *imageOptimizer) optimize(mediaType string, input []byte) (optimizedImage, error) {
	out := optimizedImage{Data: input, MediaType: mediaType}
	if o.maxWidth <= 0 || !isRaster(mediaType) {
		return out, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(input))
	if err != nil {
		out.Warning = fmt.Sprintf("image decode failed: %v", err)
		return out, nil
	}
	out.Width, out.Height = cfg.Width, cfg.Height
	if cfg.Width <= o.maxWidth {
		return out, nil
	}
	if pixels := uint64(cfg.Width) * uint64(cfg.Height); pixels > maxDecodePixels {
		out.Warning = fmt.Sprintf("image too large to decode: %dx%d (%d pixels)", cfg.Width, cfg.Height, pixels)
		return out, nil
	}
	if strings.EqualFold(mediaType, "image/gif") {
		if animated, err := isAnimatedGIF(input); err == nil && animated {
			return out, nil
		}
	}

	src, err := imaging.Decode(bytes.NewReader(input), imaging.AutoOrientation(true))
	if err != nil {
		out.Warning = fmt.Sprintf("image decode failed: %v", err)
		return out, nil
	}
	resized := imaging.Resize(src, o.maxWidth, 0, imaging.Lanczos)

	format, outType := imaging.JPEG, "image/jpeg"
	if hasAlpha(resized) {
		format, outType = imaging.PNG, "image/png"
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format,
		imaging.JPEGQuality(o.jpegQuality),
		imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
		return out, fmt.Errorf("image encode failed: %w", err)
	}

	out.Data = buf.Bytes()
	out.MediaType = outType
	out.Width = resized.Bounds().Dx()
	out.Height = resized.Bounds().Dy()
	out.Resized = true
	return out, nil
}

// Thumbnail decodes an image and fits it inside maxWidth x maxHeight, keeping
// the aspect ratio. The result is JPEG encoded.
func Thumbnail(data []byte, maxWidth, maxHeight, quality int) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	thumb := imaging.Fit(src, maxWidth, maxHeight, imaging.Lanczos)
	if quality <= 0 {
		quality = defaultJPEGQuality
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func isRaster(mediaType string) bool {
	switch strings.ToLower(mediaType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/bmp", "image/tiff":
		return true
	}
	return false
}

func isAnimatedGIF(data []byte) (bool, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return false, err
	}
	return len(g.Image) > 1, nil
}

func hasAlpha(img image.Image) bool {
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			if a < 0xFFFF {
				return true
			}
		}
	}
	return false
}
