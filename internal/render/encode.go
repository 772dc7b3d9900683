package render

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// DefaultQuality is used when a caller passes a quality outside 1..100.
const DefaultQuality = 80

// EncodeJPEG returns img as a baseline JPEG.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
