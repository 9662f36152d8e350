package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrUndecodable is returned for uploads that are not a supported image.
var ErrUndecodable = errors.New("image could not be decoded")

const jpegQuality = 85

// Downscale decodes src, shrinks it so the longer side is at most
// maxSize (smaller images are left as is) and returns it as a JPEG data
// URI.
func Downscale(src []byte, maxSize int) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	b := img.Bounds()
	w, h := fit(b.Dx(), b.Dy(), maxSize)

	// JPEG has no alpha; draw onto an opaque canvas so transparent
	// regions come out white instead of black.
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return DataURI("image/jpeg", buf.Bytes()), nil
}

// fit returns the size of a w x h box scaled down to fit in
// maxSize x maxSize, preserving aspect ratio.
func fit(w, h, maxSize int) (int, int) {
	if maxSize <= 0 || (w <= maxSize && h <= maxSize) {
		return w, h
	}
	if w >= h {
		nh := h * maxSize / w
		if nh < 1 {
			nh = 1
		}
		return maxSize, nh
	}
	nw := w * maxSize / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxSize
}

// DataURI encodes data as a base64 data URI.
func DataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
