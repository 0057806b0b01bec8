package video

import (
	"bytes"
	"fmt"
	"image/jpeg"
)

const frameJPEGQuality = 85

// EncodeJPEG serializes a captured frame for transport to a vision model.
func EncodeJPEG(f Frame) ([]byte, error) {
	if f.Image == nil {
		return nil, fmt.Errorf("frame has no image")
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, f.Image, &jpeg.Options{Quality: frameJPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
