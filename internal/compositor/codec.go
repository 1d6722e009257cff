package compositor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/kolesa-team/go-webp/decoder"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"

	"github.com/HMiranda00/kine-ai-anim-helper/internal/domain"
)

// DefaultWebPQuality is the lossy quality used when none is given.
const DefaultWebPQuality float32 = 90

// Decode reads a png, jpeg, gif or webp image. Any failure is a
// *domain.DecodeError.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", &domain.DecodeError{Err: errors.New("empty image data")}
	}
	if isWebP(data) {
		img, err := webp.Decode(bytes.NewReader(data), &decoder.Options{})
		if err != nil {
			return nil, "", &domain.DecodeError{Err: fmt.Errorf("webp: %w", err)}
		}
		return img, "webp", nil
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", &domain.DecodeError{Err: err}
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, "", &domain.DecodeError{Err: errors.New("image has no pixels")}
	}
	return img, format, nil
}

// EncodePNG serialises img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("compositor: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeWebP serialises img as lossy WebP. A non-positive quality uses
// DefaultWebPQuality.
func EncodeWebP(img image.Image, quality float32) ([]byte, error) {
	if quality <= 0 {
		quality = DefaultWebPQuality
	}
	opts, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, quality)
	if err != nil {
		return nil, fmt.Errorf("compositor: webp options: %w", err)
	}
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, opts); err != nil {
		return nil, fmt.Errorf("compositor: encode webp: %w", err)
	}
	return buf.Bytes(), nil
}

func isWebP(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}
