package pagedata

// Breakpoint is one of the three responsive views of a page.
type Breakpoint string

const (
	Desktop Breakpoint = "desktop"
	Tablet  Breakpoint = "tablet"
	Mobile  Breakpoint = "mobile"
)

// Breakpoints lists every breakpoint, widest first.
var Breakpoints = []Breakpoint{Desktop, Tablet, Mobile}

var canvasWidths = map[Breakpoint]int{
	Desktop: 1200,
	Tablet:  768,
	Mobile:  375,
}

// CanvasWidth is the fixed canvas width of the breakpoint. Unknown values
// are treated as desktop.
func (b Breakpoint) CanvasWidth() int {
	if w, ok := canvasWidths[b]; ok {
		return w
	}
	return canvasWidths[Desktop]
}

func (b Breakpoint) Valid() bool {
	_, ok := canvasWidths[b]
	return ok
}

// BreakpointForWidth maps a canvas width back to its breakpoint.
func BreakpointForWidth(width int) Breakpoint {
	for _, bp := range Breakpoints {
		if canvasWidths[bp] == width {
			return bp
		}
	}
	return Desktop
}

// cascade returns the override chain for a view: desktop is the base,
// tablet overrides it, mobile overrides both.
func cascade(view Breakpoint) []Breakpoint {
	switch view {
	case Tablet:
		return []Breakpoint{Desktop, Tablet}
	case Mobile:
		return []Breakpoint{Desktop, Tablet, Mobile}
	default:
		return []Breakpoint{Desktop}
	}
}
