package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"pagebuilder/internal/pagedata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	sections, elements := c.Names()
	assert.Equal(t, []string{"cta", "features", "footer", "gallery", "hero", "testimonials"}, sections)
	assert.Contains(t, elements, "heading")
	assert.Contains(t, elements, "popup")

	hero, ok := c.Section("hero")
	require.True(t, ok)
	assert.Equal(t, pagedata.TypeSection, hero.Type)
	assert.Equal(t, pagedata.Size{Width: 1200, Height: 560}, hero.Size[pagedata.Desktop])
	require.Len(t, hero.Children, 3)

	title := hero.Children[0]
	assert.Equal(t, "56px", title.ResponsiveStyles[pagedata.Desktop]["fontSize"])
	assert.Equal(t, "Build something people want", title.ResponsiveData[pagedata.Desktop]["content"])
	assert.Equal(t, "h1", title.ComponentData["tag"])
	assert.Same(t, hero, pagedata.InitializeResponsiveData(hero))
}

func TestLookupsReturnCopies(t *testing.T) {
	c := Default()
	a, _ := c.Element("heading")
	a.ComponentData["tag"] = "h6"
	b, _ := c.Element("heading")
	assert.Equal(t, "h2", b.ComponentData["tag"])

	_, ok := c.Section("nope")
	assert.False(t, ok)
	_, ok = c.Element("nope")
	assert.False(t, ok)
}

func TestNumbersDecodeAsFloat(t *testing.T) {
	g, ok := Default().Section("gallery")
	require.True(t, ok)
	gallery := g.Children[0]
	assert.Equal(t, float64(4), gallery.ComponentData["columns"])
	assert.Len(t, gallery.ComponentData.List("images"), 4)
}

func TestParseRejectsBadTemplates(t *testing.T) {
	_, err := Parse([]byte("sections: [{name: x, type: heading}]"))
	assert.ErrorContains(t, err, "sections must have type section")

	_, err = Parse([]byte("elements: [{name: x, type: blink}]"))
	assert.ErrorContains(t, err, "unknown element type")

	_, err = Parse([]byte("elements: [{type: heading}]"))
	assert.Error(t, err)

	_, err = Parse([]byte("elements: [{name: v, type: video, componentData: {autoplay: sometimes}}]"))
	assert.ErrorContains(t, err, "autoplay")

	_, err = Parse([]byte("sections: {"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sections:\n  - name: blank\n    height: 300\n"), 0o644))

	c, err := LoadFile(path)
	require.NoError(t, err)
	blank, ok := c.Section("blank")
	require.True(t, ok)
	assert.Equal(t, 300.0, blank.Size[pagedata.Desktop].Height)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
