// Package imaging downscales raw image bytes using a Lanczos filter and
// re-encodes the result as PNG.
package imaging

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// Resizer implements rag.ImageResizer.
type Resizer struct{}

// New constructs a Resizer.
func New() *Resizer { return &Resizer{} }

// Downscale fits the image within maxWidth x maxHeight (preserving aspect
// ratio, never upscaling) using a Lanczos filter, and re-encodes as PNG.
func (r *Resizer) Downscale(imageBytes []byte, maxWidth, maxHeight int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(imageBytes), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode: %w", err)
	}

	fitted := imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)

	var out bytes.Buffer
	if err := imaging.Encode(&out, fitted, imaging.PNG); err != nil {
		return nil, fmt.Errorf("imaging: encode png: %w", err)
	}
	return out.Bytes(), nil
}
