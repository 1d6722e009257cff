package compositor

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Size is a pixel extent.
type Size struct {
	W int `json:"width"`
	H int `json:"height"`
}

// Empty reports whether either side is non-positive.
func (s Size) Empty() bool { return s.W <= 0 || s.H <= 0 }

func sizeOf(img image.Image) Size {
	b := img.Bounds()
	return Size{W: b.Dx(), H: b.Dy()}
}

// Mode selects how a source image is fitted to a canvas.
type Mode int

const (
	// Letterbox fits the whole image inside the canvas.
	Letterbox Mode = iota
	// Fill scales until the canvas is covered and centre-crops the overflow.
	Fill
	// Native crops to the canvas aspect ratio without any scaling.
	Native
)

func (m Mode) String() string {
	switch m {
	case Letterbox:
		return "letterbox"
	case Fill:
		return "fill"
	case Native:
		return "native"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode accepts letterbox|fit, fill|cover and native.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "letterbox", "fit", "":
		return Letterbox, nil
	case "fill", "cover":
		return Fill, nil
	case "native":
		return Native, nil
	}
	return 0, fmt.Errorf("compositor: unknown mode %q", s)
}

// Placement returns where a src-sized image lands on a dst canvas: a uniform
// scale, rounded size and floored centre offset. In Fill mode the rectangle
// may extend past the canvas on one axis.
func Placement(src, dst Size, mode Mode) image.Rectangle {
	if src.Empty() || dst.Empty() {
		return image.Rectangle{}
	}
	sx := float64(dst.W) / float64(src.W)
	sy := float64(dst.H) / float64(src.H)
	ratio := math.Min(sx, sy)
	if mode == Fill {
		ratio = math.Max(sx, sy)
	}
	w := int(math.Round(float64(src.W) * ratio))
	h := int(math.Round(float64(src.H) * ratio))
	x := int(math.Floor(float64(dst.W-w) / 2))
	y := int(math.Floor(float64(dst.H-h) / 2))
	return image.Rect(x, y, x+w, y+h)
}

// Compose decodes data and draws it onto a fresh canvas. Letterbox leaves the
// uncovered area transparent; Fill covers the canvas; Native ignores the
// canvas size beyond its aspect ratio and returns the cropped source at its
// own resolution.
func Compose(data []byte, canvas Size, mode Mode) (*image.RGBA, error) {
	src, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return ComposeImage(src, canvas, mode), nil
}

// ComposeImage is Compose for an already decoded image.
func ComposeImage(src image.Image, canvas Size, mode Mode) *image.RGBA {
	canvas = clampSize(canvas)
	if mode == Native {
		return toRGBA(NativeCrop(src, Ratio{W: canvas.W, H: canvas.H}))
	}
	dst := image.NewRGBA(image.Rect(0, 0, canvas.W, canvas.H))
	rect := Placement(sizeOf(src), canvas, mode)
	draw.CatmullRom.Scale(dst, rect, src, src.Bounds(), draw.Over, nil)
	return dst
}

func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

func clampSize(s Size) Size {
	if s.W < MinCanvasSide {
		s.W = MinCanvasSide
	}
	if s.H < MinCanvasSide {
		s.H = MinCanvasSide
	}
	return s
}
