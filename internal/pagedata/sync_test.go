package pagedata

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeElement(t *testing.T, raw string) *Element {
	t.Helper()
	var el Element
	require.NoError(t, json.Unmarshal([]byte(raw), &el))
	return &el
}

const legacyHeading = `{
	"id": "heading-1",
	"type": "heading",
	"size": {"width": 400, "height": 60},
	"position": {"x": 10, "y": 20},
	"styles": {"fontSize": "32px", "color": "#111"},
	"componentData": {"content": "Hello", "href": "/pricing"}
}`

func TestInitializeResponsiveDataLegacy(t *testing.T) {
	el := InitializeResponsiveData(decodeElement(t, legacyHeading))

	assert.True(t, el.Visible)
	assert.Equal(t, Size{400, 60}, el.Size[Desktop])
	assert.NotContains(t, el.Size, Tablet)
	assert.NotContains(t, el.Size, Mobile)
	for _, bp := range Breakpoints {
		assert.Equal(t, Position{X: 10, Y: 20, Z: 1}, el.Position[bp], bp)
	}
	assert.Nil(t, el.Styles)
	assert.Equal(t, Styles{"fontSize": "32px", "color": "#111"}, el.ResponsiveStyles[Desktop])
	assert.Equal(t, ComponentData{"href": "/pricing"}, el.ComponentData)
	assert.Equal(t, ComponentData{"content": "Hello"}, el.ResponsiveData[Desktop])
	assert.NotContains(t, el.ResponsiveData, Tablet)
}

func TestInitializeResponsiveDataIdempotent(t *testing.T) {
	raws := []string{
		legacyHeading,
		`{"id":"s","type":"section","position":{"x":40,"y":0},"children":[{"id":"c","type":"button"}]}`,
		`{"id":"p","type":"popup","size":{"width":600,"height":400}}`,
		`{"id":"g","type":"gallery","componentData":{"images":["a"],"columns":3,"title":"Work"}}`,
		`{"id":"x","type":"image","size":{"desktop":{"width":300,"height":200}},"tabletSize":{"width":200,"height":150}}`,
	}
	for _, raw := range raws {
		once := InitializeResponsiveData(decodeElement(t, raw))
		twice := InitializeResponsiveData(once)
		assert.Same(t, once, twice)
		assert.Equal(t, once, twice)
	}
}

func TestInitializeResponsiveDataDefaults(t *testing.T) {
	sec := InitializeResponsiveData(decodeElement(t, `{"id":"s","type":"section","position":{"x":40,"y":100}}`))
	assert.Equal(t, DefaultSize(TypeSection), sec.Size[Desktop])
	for _, bp := range Breakpoints {
		assert.Zero(t, sec.Position[bp].X)
		assert.Equal(t, 100.0, sec.Position[bp].Y)
	}

	pop := InitializeResponsiveData(decodeElement(t, `{"id":"p","type":"popup"}`))
	assert.Equal(t, 1001, pop.Position[Mobile].Z)

	hidden := InitializeResponsiveData(decodeElement(t, `{"id":"h","type":"icon","visible":false}`))
	assert.False(t, hidden.Visible)
}

func TestInitializeResponsiveDataReachesRawChildren(t *testing.T) {
	parent := InitializeResponsiveData(decodeElement(t, `{"id":"s","type":"section"}`))
	raw := decodeElement(t, `{"id":"c","type":"heading","styles":{"color":"red"}}`)
	parent.Children = append(parent.Children, raw)

	out := InitializeResponsiveData(parent)
	require.NotSame(t, parent, out)
	assert.Equal(t, parent.Size, out.Size)
	assert.Equal(t, Styles{"color": "red"}, out.Children[0].ResponsiveStyles[Desktop])
	assert.Nil(t, parent.Children[0].ResponsiveStyles, "input must not change")
}

func normalizedHeading() *Element {
	el := NewElement("heading-1", TypeHeading)
	el.Size[Desktop] = Size{Width: 400, Height: 60}
	for _, bp := range Breakpoints {
		el.Position[bp] = Position{X: 100, Y: 50, Z: 1}
	}
	el.ResponsiveStyles = map[Breakpoint]Styles{Desktop: {"fontSize": "32px"}}
	el.ComponentData = ComponentData{"href": "/"}
	el.ResponsiveData = map[Breakpoint]ComponentData{Desktop: {"content": "Hi"}}
	return el
}

func TestSyncElementBetweenModes(t *testing.T) {
	in := normalizedHeading()
	out := SyncElementBetweenModes(in, Desktop)

	assert.Equal(t, Size{256, 38}, out.Size[Tablet])
	assert.Equal(t, Position{X: 64, Y: 32, Z: 1}, out.Position[Tablet])
	assert.Equal(t, Size{150, 24}, out.Size[Mobile])
	assert.Equal(t, Position{X: 31, Y: 16, Z: 1}, out.Position[Mobile])

	assert.Equal(t, "20.5px", out.ResponsiveStyles[Tablet]["fontSize"])
	assert.Equal(t, "10px", out.ResponsiveStyles[Mobile]["fontSize"])
	assert.Equal(t, "32px", out.ResponsiveStyles[Desktop]["fontSize"])

	assert.Equal(t, ComponentData{"content": "Hi"}, out.ResponsiveData[Mobile])
	assert.NotContains(t, out.ResponsiveData[Mobile], "href")

	assert.NotContains(t, in.Size, Tablet, "input must not change")
}

func TestSyncElementBetweenModesFromMobile(t *testing.T) {
	el := normalizedHeading()
	el.Size[Mobile] = Size{Width: 300, Height: 40}
	el.Position[Mobile] = Position{X: 20, Y: 10, Z: 1}

	out := SyncElementBetweenModes(el, Mobile)
	assert.Equal(t, Size{300, 40}, out.Size[Mobile])
	assert.Equal(t, Size{960, 128}, out.Size[Desktop])
	assert.Equal(t, Position{X: 64, Y: 32, Z: 1}, out.Position[Desktop])
}

func TestSyncElementBetweenModesRecurses(t *testing.T) {
	sec := InitializeResponsiveData(decodeElement(t, `{
		"id":"s","type":"section","size":{"width":1200,"height":500},
		"children":[{"id":"g","type":"group","children":[{"id":"img","type":"image","size":{"width":600,"height":400},"position":{"x":600,"y":40}}]}]
	}`))
	out := SyncElementBetweenModes(sec, Desktop)

	assert.Equal(t, Size{375, 500}, out.Size[Mobile])
	img := out.Find("img")
	require.NotNil(t, img)
	assert.Equal(t, Size{188, 125}, img.Size[Mobile])
	assert.Equal(t, Size{384, 256}, img.Size[Tablet])
	assert.Equal(t, Position{X: 177, Y: 13, Z: 1}, img.Position[Mobile])
}

func TestSyncKeepsScaledGlobalsPerBreakpoint(t *testing.T) {
	g := InitializeResponsiveData(decodeElement(t, `{
		"id":"g","type":"gallery","componentData":{"images":["a","b"],"columns":4,"gap":20}
	}`))
	out := SyncElementBetweenModes(g, Desktop)

	assert.Equal(t, float64(1), out.ResponsiveData[Mobile]["columns"])
	assert.Equal(t, float64(10), out.ResponsiveData[Mobile]["gap"])
	assert.Equal(t, "repeat(2, 1fr)", out.ResponsiveData[Mobile]["gridTemplateColumns"])
	assert.NotContains(t, out.ResponsiveData[Tablet], "gap")
	assert.Equal(t, float64(4), out.ComponentData["columns"])

	mobile := GetResponsiveValues(out, Mobile)
	assert.Equal(t, float64(1), mobile.ComponentData["columns"])
	assert.Equal(t, []any{"a", "b"}, mobile.ComponentData["images"])
}

func TestGetResponsiveValuesCascade(t *testing.T) {
	el := normalizedHeading()
	el.ResponsiveStyles[Desktop] = Styles{"color": "red", "fontSize": "32px"}
	el.ResponsiveStyles[Tablet] = Styles{"fontSize": "20px"}
	el.ResponsiveStyles[Mobile] = Styles{"color": "blue"}
	el.ResponsiveData[Tablet] = ComponentData{"content": "Short"}

	mobile := GetResponsiveValues(el, Mobile)
	assert.Equal(t, Styles{"color": "blue", "fontSize": "20px"}, mobile.Styles)
	assert.Equal(t, "Short", mobile.ComponentData["content"])
	assert.Equal(t, "/", mobile.ComponentData["href"])

	tablet := GetResponsiveValues(el, Tablet)
	assert.Equal(t, Styles{"color": "red", "fontSize": "20px"}, tablet.Styles)

	desktop := GetResponsiveValues(el, Desktop)
	assert.Equal(t, "Hi", desktop.ComponentData["content"])
	assert.Equal(t, Size{400, 60}, desktop.Size)
	assert.Equal(t, Size{400, 60}, tablet.Size, "missing sizes fall back to desktop")

	mobile.Styles["color"] = "green"
	mobile.ComponentData["content"] = "changed"
	assert.Equal(t, "blue", el.ResponsiveStyles[Mobile]["color"])
	assert.Equal(t, "Short", el.ResponsiveData[Tablet]["content"])
}
