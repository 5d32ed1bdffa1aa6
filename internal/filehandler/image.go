package filehandler

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultPosterMaxDimension bounds the longest edge of a poster frame.
const DefaultPosterMaxDimension = 512

// ValidateImage checks that data is a decodable PNG, JPEG or WebP image with
// a non-empty frame.
func ValidateImage(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("image data is empty")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("image has no pixels (%s %dx%d)", format, cfg.Width, cfg.Height)
	}
	return nil
}

// Poster renders a JPEG preview of an image, scaled down so that its longest
// edge is at most maxDimension.
func Poster(data []byte, maxDimension int) ([]byte, error) {
	if maxDimension <= 0 {
		maxDimension = DefaultPosterMaxDimension
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	newWidth, newHeight := posterDimensions(bounds.Dx(), bounds.Dy(), maxDimension)

	dst := image.Image(img)
	if newWidth != bounds.Dx() || newHeight != bounds.Dy() {
		resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
		draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		dst = resized
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("failed to encode poster: %w", err)
	}

	log.Debug().
		Str("format", format).
		Int("orig_width", bounds.Dx()).
		Int("orig_height", bounds.Dy()).
		Int("new_width", newWidth).
		Int("new_height", newHeight).
		Int("output_size", buf.Len()).
		Msg("Poster generated")
	return buf.Bytes(), nil
}

// posterDimensions scales width and height to fit maxDimension, keeping the
// aspect ratio. Smaller images are returned unchanged.
func posterDimensions(width, height, maxDimension int) (int, int) {
	if width <= maxDimension && height <= maxDimension {
		return width, height
	}
	if width > height {
		return maxDimension, max(1, int(float64(height)*float64(maxDimension)/float64(width)))
	}
	return max(1, int(float64(width)*float64(maxDimension)/float64(height))), maxDimension
}
