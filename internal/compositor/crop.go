package compositor

import (
	"image"
	"math"
)

// NativeCropRect returns the largest centred rectangle of src with the
// target aspect ratio. Only the excess dimension is trimmed, so the result
// never exceeds the source on either axis.
func NativeCropRect(src Size, ratio Ratio) image.Rectangle {
	if src.Empty() {
		return image.Rectangle{}
	}
	if !ratio.Valid() {
		return image.Rect(0, 0, src.W, src.H)
	}
	// Compare src.W/src.H against ratio.W/ratio.H without floats.
	lhs := int64(src.W) * int64(ratio.H)
	rhs := int64(src.H) * int64(ratio.W)
	switch {
	case lhs > rhs:
		w := int(math.Round(float64(src.H) * ratio.Float()))
		w = max(1, min(w, src.W))
		x := (src.W - w) / 2
		return image.Rect(x, 0, x+w, src.H)
	case lhs < rhs:
		h := int(math.Round(float64(src.W) / ratio.Float()))
		h = max(1, min(h, src.H))
		y := (src.H - h) / 2
		return image.Rect(0, y, src.W, y+h)
	}
	return image.Rect(0, 0, src.W, src.H)
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// NativeCrop crops img to ratio at native pixel density.
func NativeCrop(img image.Image, ratio Ratio) image.Image {
	b := img.Bounds()
	rect := NativeCropRect(Size{W: b.Dx(), H: b.Dy()}, ratio).Add(b.Min)
	if si, ok := img.(subImager); ok {
		return si.SubImage(rect)
	}
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := 0; y < rect.Dy(); y++ {
		for x := 0; x < rect.Dx(); x++ {
			out.Set(x, y, img.At(rect.Min.X+x, rect.Min.Y+y))
		}
	}
	return out
}
