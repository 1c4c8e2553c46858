package camera

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/roadscope/scene-processing-service/internal/domain/entity"
)

var (
	jpegSOI      = []byte{0xFF, 0xD8}
	pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}
)

// Recover locates the embedded image by its start marker and returns everything from the
// earliest marker on. The envelope around it is never parsed, so a marker that occurs by
// chance before the real image yields bytes that fail Decode.
func Recover(payload []byte) ([]byte, bool) {
	i, _ := findMarker(payload)
	if i < 0 {
		return nil, false
	}
	return payload[i:], true
}

// SniffFormat names the image format whose marker occurs first in payload.
func SniffFormat(payload []byte) string {
	_, format := findMarker(payload)
	return format
}

func findMarker(payload []byte) (int, string) {
	j := bytes.Index(payload, jpegSOI)
	p := bytes.Index(payload, pngSignature)
	switch {
	case j < 0 && p < 0:
		return -1, "unknown"
	case p < 0 || (j >= 0 && j < p):
		return j, "jpeg"
	default:
		return p, "png"
	}
}

// Decode is the final gate for a recovered frame.
func Decode(img []byte) (image.Image, string, error) {
	m, format, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", entity.ErrFrameRecoveryMiss, err)
	}
	return m, format, nil
}
