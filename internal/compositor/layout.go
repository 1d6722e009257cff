package compositor

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	PreviewMaxHeight = 720
	PreviewMaxWidth  = 1280
	// CanvasFraction sizes each frame canvas relative to the preview height.
	CanvasFraction = 0.5
	// NoPreviewFactor enlarges the canvases when the preview panel is hidden.
	NoPreviewFactor = 1.6
	Gap             = 24
	VerticalPadding = 48
	MinCanvasSide   = 64
	// MinViewportWidth is the narrowest viewport the layout is guaranteed to
	// fit. Below it the MinCanvasSide floor wins and the panels overflow.
	MinViewportWidth = 4*MinCanvasSide + 4*Gap
)

// Ratio is a W:H aspect ratio.
type Ratio struct {
	W int `json:"w"`
	H int `json:"h"`
}

// ParseAspectRatio parses "16:9" style ratios.
func ParseAspectRatio(s string) (Ratio, error) {
	left, right, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Ratio{}, fmt.Errorf("compositor: aspect ratio %q: want W:H", s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(left))
	if err != nil {
		return Ratio{}, fmt.Errorf("compositor: aspect ratio %q: %w", s, err)
	}
	h, err := strconv.Atoi(strings.TrimSpace(right))
	if err != nil {
		return Ratio{}, fmt.Errorf("compositor: aspect ratio %q: %w", s, err)
	}
	r := Ratio{W: w, H: h}
	if !r.Valid() {
		return Ratio{}, fmt.Errorf("compositor: aspect ratio %q: sides must be positive", s)
	}
	return r, nil
}

func (r Ratio) Valid() bool { return r.W > 0 && r.H > 0 }

func (r Ratio) Float() float64 { return float64(r.W) / float64(r.H) }

func (r Ratio) String() string { return fmt.Sprintf("%d:%d", r.W, r.H) }

// Square reports whether the ratio is 1:1 in any form.
func (r Ratio) Square() bool { return r.W == r.H }

// Oriented flips a non-square ratio when vertical is set.
func (r Ratio) Oriented(vertical bool) Ratio {
	if !vertical || r.Square() {
		return r
	}
	return Ratio{W: r.H, H: r.W}
}

// LayoutInput is everything the responsive layout depends on.
type LayoutInput struct {
	Ratio          Ratio
	Vertical       bool
	ViewportW      int
	ViewportH      int
	FooterH        int
	PreviewVisible bool
}

// Layout is the derived size of the two frame canvases and the preview.
// Preview is zero when the preview panel is hidden.
type Layout struct {
	Canvas  Size    `json:"canvas"`
	Preview Size    `json:"preview"`
	Scale   float64 `json:"scale"`
}

// TotalWidth is the horizontal space the layout occupies including gaps.
func (l Layout) TotalWidth(previewVisible bool) int {
	return 2*l.Canvas.W + l.Preview.W + gapsFor(previewVisible)
}

func gapsFor(previewVisible bool) int {
	panels := 2
	if previewVisible {
		panels = 3
	}
	return Gap * (panels + 1)
}

// ComputeLayout derives canvas and preview sizes from the viewport. When the
// panels do not fit horizontally every dimension is scaled down by the same
// factor. Canvas sides never drop below MinCanvasSide, so the result only
// fits viewports at least MinViewportWidth wide.
func ComputeLayout(in LayoutInput) Layout {
	ratio := in.Ratio
	if !ratio.Valid() {
		ratio = Ratio{W: 16, H: 9}
	}
	ratio = ratio.Oriented(in.Vertical)
	ar := ratio.Float()

	availH := float64(in.ViewportH - in.FooterH - VerticalPadding)
	previewH := math.Max(0, math.Min(availH, PreviewMaxHeight))
	previewW := previewH * ar
	if previewW > PreviewMaxWidth {
		previewW = PreviewMaxWidth
		previewH = previewW / ar
	}

	canvasH := previewH * CanvasFraction
	if !in.PreviewVisible {
		canvasH *= NoPreviewFactor
		previewW, previewH = 0, 0
	}
	canvasW := canvasH * ar

	scale := 1.0
	gaps := float64(gapsFor(in.PreviewVisible))
	content := 2*canvasW + previewW
	if content > 0 && content+gaps > float64(in.ViewportW) {
		scale = math.Max(0, float64(in.ViewportW)-gaps) / content
	}

	out := Layout{
		Canvas:  Size{W: int(math.Floor(canvasW * scale)), H: int(math.Floor(canvasH * scale))},
		Preview: Size{W: int(math.Floor(previewW * scale)), H: int(math.Floor(previewH * scale))},
		Scale:   scale,
	}
	out.Canvas = clampSize(out.Canvas)
	return out
}
