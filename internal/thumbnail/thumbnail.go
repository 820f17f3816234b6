// Package thumbnail turns a raw capture raster into a compact JPEG suitable
// for storage and transfer. It is a pure transformation: bytes in, bytes
// out, no I/O.
package thumbnail

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

const (
	// TargetWidth is the thumbnail width; height follows the source aspect
	// ratio.
	TargetWidth = 350
	// JPEGQuality bounds storage size; 80 is visually fine for a preview.
	JPEGQuality = 80

	// Ext is the file extension matching the output encoding, used when
	// building blob keys.
	Ext = "jpg"
	// ContentType of the produced bytes.
	ContentType = "image/jpeg"
)

// FromCapture decodes raw raster bytes (any format the image registry
// knows; Chrome produces PNG), scales them down to TargetWidth preserving
// aspect ratio, and re-encodes as JPEG.
//
// Sources already narrower than TargetWidth are never upscaled; they are
// only re-encoded.
func FromCapture(raw []byte) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("thumbnail: decoding capture: %w", err)
	}

	src = scale(src)

	var out bytes.Buffer
	if err := imaging.Encode(&out, src, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, fmt.Errorf("thumbnail: encoding jpeg: %w", err)
	}

	return out.Bytes(), nil
}

func scale(src image.Image) image.Image {
	if src.Bounds().Dx() <= TargetWidth {
		return src
	}
	// Height 0 = keep aspect ratio. Lanczos is the slowest filter imaging
	// offers but this runs once per capture attempt, not per request.
	return imaging.Resize(src, TargetWidth, 0, imaging.Lanczos)
}
