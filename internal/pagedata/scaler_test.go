package pagedata

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sized(t ElementType, w, h float64) *Element {
	el := NewElement(string(t)+"-1", t)
	el.Size[Desktop] = Size{Width: w, Height: h}
	el.Position[Desktop] = Position{}
	return el
}

func TestScaleFactor(t *testing.T) {
	assert.Equal(t, 0.64, ScaleFactor(Desktop, Tablet))
	assert.Equal(t, 0.3125, ScaleFactor(Desktop, Mobile))
	assert.Equal(t, 1.0, ScaleFactor(Mobile, Mobile))
}

func TestScaleSize(t *testing.T) {
	tests := []struct {
		name string
		el   *Element
		to   Breakpoint
		want Size
	}{
		{"section takes canvas width", sized(TypeSection, 1200, 400), Mobile, Size{375, 400}},
		{"section on tablet", sized(TypeSection, 1200, 400), Tablet, Size{768, 400}},
		{"popup on mobile", sized(TypePopup, 500, 300), Mobile, Size{340, 300}},
		{"popup on tablet", sized(TypePopup, 500, 300), Tablet, Size{600, 300}},
		{"button floors to minimum", sized(TypeButton, 160, 48), Mobile, Size{80, 32}},
		{"image rounds half up", sized(TypeImage, 600, 400), Mobile, Size{188, 125}},
		{"heading height floor", sized(TypeHeading, 1000, 60), Mobile, Size{313, 24}},
		{"mobile width cap", sized(TypeParagraph, 1200, 100), Mobile, Size{340, 40}},
		{"unknown type uses default floor", sized(TypeLine, 200, 2), Mobile, Size{100, 40}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScaleSize(tt.el, Desktop, tt.to))
		})
	}
}

func TestScaleSizePopupBackToDesktop(t *testing.T) {
	el := sized(TypeModal, 500, 300)
	el.Size[Mobile] = Size{Width: 340, Height: 280}
	assert.Equal(t, Size{500, 280}, ScaleSize(el, Mobile, Desktop))
}

func TestScaleSizeRoundTrip(t *testing.T) {
	for w := 400.0; w <= 1000; w += 37 {
		for h := 200.0; h <= 600; h += 53 {
			t.Run(fmt.Sprintf("%vx%v", w, h), func(t *testing.T) {
				el := sized(TypeImage, w, h)
				el.Size[Tablet] = ScaleSize(el, Desktop, Tablet)
				back := ScaleSize(el, Tablet, Desktop)
				assert.LessOrEqual(t, math.Abs(back.Width-w), 1.0)
				assert.LessOrEqual(t, math.Abs(back.Height-h), 1.0)
			})
		}
	}

	el := sized(TypeImage, 960, 640)
	el.Size[Mobile] = ScaleSize(el, Desktop, Mobile)
	assert.Equal(t, Size{300, 200}, el.Size[Mobile])
	assert.Equal(t, Size{960, 640}, ScaleSize(el, Mobile, Desktop))
}

// Going through mobile multiplies the rounding error by 3.2, so integer
// sizes above the image minimum come back within 2px rather than 1px.
func TestScaleSizeRoundTripMobile(t *testing.T) {
	for w := 320.0; w <= 1000; w++ {
		h := 320 + math.Mod(w*7, 400)
		el := sized(TypeImage, w, h)
		el.Size[Mobile] = ScaleSize(el, Desktop, Mobile)
		back := ScaleSize(el, Mobile, Desktop)
		assert.LessOrEqual(t, math.Abs(back.Width-w), 2.0, "width %v came back as %v", w, back.Width)
		assert.LessOrEqual(t, math.Abs(back.Height-h), 2.0, "height %v came back as %v", h, back.Height)
	}

	el := sized(TypeImage, 328, 400)
	el.Size[Mobile] = ScaleSize(el, Desktop, Mobile)
	assert.Equal(t, 330.0, ScaleSize(el, Mobile, Desktop).Width)
}

func TestScalePosition(t *testing.T) {
	img := sized(TypeImage, 600, 400)
	img.Position[Desktop] = Position{X: 1000, Y: 320}
	size := ScaleSize(img, Desktop, Mobile)
	assert.Equal(t, Position{X: 177, Y: 100, Z: 1}, ScalePosition(img, Desktop, Mobile, size))

	small := sized(TypeIcon, 48, 48)
	small.Position[Desktop] = Position{X: 100, Y: 50, Z: 4}
	assert.Equal(t, Position{X: 64, Y: 32, Z: 4}, ScalePosition(small, Desktop, Tablet, Size{31, 31}))

	sec := sized(TypeSection, 1200, 400)
	sec.Position[Desktop] = Position{X: 30, Y: 800}
	assert.Equal(t, Position{X: 0, Y: 800, Z: 1}, ScalePosition(sec, Desktop, Mobile, Size{375, 400}))

	pop := sized(TypePopup, 600, 400)
	pop.Position[Desktop] = Position{X: 300, Y: 120}
	assert.Equal(t, Position{X: 300, Y: 120, Z: 1001}, ScalePosition(pop, Desktop, Tablet, Size{600, 400}))
}

func TestScaleStyles(t *testing.T) {
	in := Styles{
		"fontSize":     "48px",
		"lineHeight":   "1.5",
		"padding":      "20px 40px",
		"margin":       "auto",
		"marginTop":    "0px",
		"borderRadius": "2rem",
		"gap":          "calc(100% - 10px)",
		"color":        "#ffffff",
		"borderWidth":  3,
	}
	out := ScaleStyles(in, Desktop, Mobile)

	assert.Equal(t, "15px", out["fontSize"])
	assert.Equal(t, "1.5", out["lineHeight"])
	assert.Equal(t, "6.3px 12.5px", out["padding"])
	assert.Equal(t, "auto", out["margin"])
	assert.Equal(t, "0px", out["marginTop"])
	assert.Equal(t, "0.6rem", out["borderRadius"])
	assert.Equal(t, "calc(100% - 10px)", out["gap"])
	assert.Equal(t, "#ffffff", out["color"])
	assert.Equal(t, 3, out["borderWidth"])

	assert.Equal(t, "48px", in["fontSize"], "input must not change")
}

func TestScaleStylesFloors(t *testing.T) {
	out := ScaleStyles(Styles{"fontSize": "24px", "paddingLeft": "8px", "width": "50%"}, Desktop, Mobile)
	assert.Equal(t, "10px", out["fontSize"])
	assert.Equal(t, "4px", out["paddingLeft"])
	assert.Equal(t, "50%", out["width"], "only listed properties scale")

	out = ScaleStyles(Styles{"gap": "50%"}, Desktop, Tablet)
	assert.Equal(t, "32%", out["gap"])
}

func TestScaleComponentData(t *testing.T) {
	in := ComponentData{
		"images":  []any{"a.png", "b.png", "c.png"},
		"columns": float64(4),
		"gap":     float64(20),
	}

	mobile := ScaleComponentData(in, Mobile)
	assert.Equal(t, float64(1), mobile["columns"])
	assert.Equal(t, float64(10), mobile["gap"])
	assert.Equal(t, "repeat(2, 1fr)", mobile["gridTemplateColumns"])

	tablet := ScaleComponentData(in, Tablet)
	assert.Equal(t, float64(2), tablet["columns"])
	assert.Equal(t, float64(20), tablet["gap"])
	assert.Equal(t, "repeat(3, 1fr)", tablet["gridTemplateColumns"])

	assert.Equal(t, in, ScaleComponentData(in, Desktop))
	assert.Equal(t, float64(4), in["columns"], "input must not change")

	small := ScaleComponentData(ComponentData{"gap": float64(10), "columns": float64(2)}, Mobile)
	assert.Equal(t, float64(8), small["gap"])
	assert.Equal(t, float64(2), small["columns"])
	assert.NotContains(t, small, "gridTemplateColumns")

	assert.Equal(t, ComponentData{}, ScaleComponentData(nil, Mobile))
}
