package media

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/nfnt/resize"
)

// MaxImageBytes is the largest image the vision APIs accept
const MaxImageBytes = 5 * 1024 * 1024

const maxShrinkAttempts = 5

// Shrink downscales PNG data until it is at most limit bytes. Data already
// within the limit is returned unchanged.
func Shrink(pngData []byte, limit int) ([]byte, error) {
	if len(pngData) <= limit {
		return pngData, nil
	}

	img, _, err := image.Decode(bytes.NewReader(pngData))
	if err != nil {
		return nil, fmt.Errorf("decoding image for resize: %w", err)
	}

	out := pngData
	for attempt := 0; attempt < maxShrinkAttempts && len(out) > limit; attempt++ {
		// Encoded size tracks pixel area, so scale each side by the square root
		scale := math.Sqrt(float64(limit)/float64(len(out))) * 0.9
		img = resizeImg(img, scale)
		slog.Debug("Resizing image", "bytes", len(out), "width", img.Bounds().Dx(), "height", img.Bounds().Dy())

		out, err = encodePNG(img)
		if err != nil {
			return nil, err
		}
	}

	if len(out) > limit {
		return nil, fmt.Errorf("image still %d bytes after resizing (limit %d)", len(out), limit)
	}
	return out, nil
}

func resizeImg(img image.Image, scale float64) image.Image {
	width := uint(math.Max(1, float64(img.Bounds().Dx())*scale))
	height := uint(math.Max(1, float64(img.Bounds().Dy())*scale))

	return resize.Resize(width, height, img, resize.Lanczos3)
}
