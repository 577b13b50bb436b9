package pagedata

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ScaleFactor is the width ratio between two breakpoints.
func ScaleFactor(from, to Breakpoint) float64 {
	return float64(to.CanvasWidth()) / float64(from.CanvasWidth())
}

const (
	mobileMaxWidth = 340
	overflowGap    = 10
	defaultZ       = 1
	overlayZ       = 1001
)

var overlayWidths = map[Breakpoint]float64{
	Mobile: 340,
	Tablet: 600,
}

var minSizes = map[ElementType]Size{
	TypeButton:    {Width: 80, Height: 32},
	TypeIcon:      {Width: 24, Height: 24},
	TypeImage:     {Width: 100, Height: 100},
	TypeHeading:   {Width: 150, Height: 24},
	TypeParagraph: {Width: 200, Height: 40},
	TypeGallery:   {Width: 300, Height: 200},
}

func minSize(t ElementType) Size {
	if s, ok := minSizes[t]; ok {
		return s
	}
	return Size{Width: 100, Height: 40}
}

// ScaleSize derives the size el should have at to from its size at from.
func ScaleSize(el *Element, from, to Breakpoint) Size {
	base := el.SizeAt(from)
	switch {
	case el.Type == TypeSection:
		return Size{Width: float64(to.CanvasWidth()), Height: base.Height}
	case el.Type.IsOverlay():
		w, ok := overlayWidths[to]
		if !ok {
			w = el.SizeAt(Desktop).Width
		}
		return Size{Width: w, Height: base.Height}
	}

	f := ScaleFactor(from, to)
	floor := minSize(el.Type)
	s := Size{
		Width:  math.Max(math.Round(base.Width*f), floor.Width),
		Height: math.Max(math.Round(base.Height*f), floor.Height),
	}
	if to == Mobile && s.Width > mobileMaxWidth {
		s.Width = mobileMaxWidth
	}
	return s
}

// ScalePosition derives the position of el at to. newSize is the size el
// will have at to and is used to keep the element inside the canvas.
func ScalePosition(el *Element, from, to Breakpoint, newSize Size) Position {
	base := el.PositionAt(from)
	switch {
	case el.Type == TypeSection:
		return Position{X: 0, Y: base.Y, Z: zOr(base.Z, defaultZ)}
	case el.Type.IsOverlay():
		return Position{X: base.X, Y: base.Y, Z: zOr(base.Z, overlayZ)}
	}

	f := ScaleFactor(from, to)
	p := Position{
		X: math.Round(base.X * f),
		Y: math.Round(base.Y * f),
		Z: zOr(base.Z, defaultZ),
	}
	width := float64(to.CanvasWidth())
	if p.X+newSize.Width > width {
		p.X = math.Max(0, width-newSize.Width-overflowGap)
	}
	p.X = math.Max(0, p.X)
	p.Y = math.Max(0, p.Y)
	return p
}

func zOr(z, def int) int {
	if z == 0 {
		return def
	}
	return z
}

// Scalable style properties and their pixel floors.
var styleFloors = map[string]float64{
	"fontSize":      10,
	"lineHeight":    10,
	"letterSpacing": 10,
	"padding":       4,
	"paddingTop":    4,
	"paddingRight":  4,
	"paddingBottom": 4,
	"paddingLeft":   4,
	"margin":        4,
	"marginTop":     4,
	"marginRight":   4,
	"marginBottom":  4,
	"marginLeft":    4,
	"borderRadius":  4,
	"gap":           4,
	"borderWidth":   4,
	"strokeWidth":   4,
}

var unitToken = regexp.MustCompile(`^(-?\d*\.?\d+)(px|rem|em|%)$`)

// ScaleStyles returns a copy of styles with the dimensional properties
// scaled from one breakpoint to another. Values it cannot parse are copied
// as they are.
func ScaleStyles(styles Styles, from, to Breakpoint) Styles {
	out := make(Styles, len(styles))
	f := ScaleFactor(from, to)
	for k, v := range styles {
		floor, scalable := styleFloors[k]
		s, isString := v.(string)
		if !scalable || !isString || f == 1 {
			out[k] = cloneValue(v)
			continue
		}
		out[k] = scaleValue(s, f, floor)
	}
	return out
}

func scaleValue(value string, f, floor float64) string {
	tokens := strings.Fields(value)
	if len(tokens) == 0 {
		return value
	}
	changed := false
	for i, tok := range tokens {
		m := unitToken.FindStringSubmatch(tok)
		if m == nil {
			continue
		}
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil || n <= 0 {
			continue
		}
		scaled := math.Round(n*f*10) / 10
		if m[2] == "px" && scaled < floor {
			scaled = floor
		}
		tokens[i] = strconv.FormatFloat(scaled, 'f', -1, 64) + m[2]
		changed = true
	}
	if !changed {
		return value
	}
	return strings.Join(tokens, " ")
}

// ScaleComponentData adapts layout-related component data to the target
// breakpoint. Desktop returns an unchanged copy.
func ScaleComponentData(cd ComponentData, to Breakpoint) ComponentData {
	out := cd.Clone()
	if out == nil {
		out = ComponentData{}
	}
	hasImages := len(out.List("images")) > 0

	switch to {
	case Mobile:
		if cols, ok := out.Number("columns"); ok && cols > 2 {
			out["columns"] = float64(1)
		}
		if hasImages {
			out["gridTemplateColumns"] = "repeat(2, 1fr)"
		}
		if gap, ok := out.Number("gap"); ok {
			out["gap"] = math.Max(gap*0.5, 8)
		}
	case Tablet:
		if cols, ok := out.Number("columns"); ok && cols > 3 {
			out["columns"] = float64(2)
		}
		if hasImages {
			out["gridTemplateColumns"] = "repeat(3, 1fr)"
		}
	}
	return out
}
