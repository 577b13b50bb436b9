// Package catalog holds the section and element presets offered by the
// editor.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"pagebuilder/internal/pagedata"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultTemplates []byte

type entry struct {
	Name          string         `yaml:"name"`
	Type          string         `yaml:"type"`
	X             float64        `yaml:"x"`
	Y             float64        `yaml:"y"`
	Width         float64        `yaml:"width"`
	Height        float64        `yaml:"height"`
	Styles        map[string]any `yaml:"styles"`
	ComponentData map[string]any `yaml:"componentData"`
	Children      []entry        `yaml:"children"`
}

type file struct {
	Sections []entry `yaml:"sections"`
	Elements []entry `yaml:"elements"`
}

// Catalog maps preset names to normalized elements. Lookups return copies,
// so callers may edit what they get.
type Catalog struct {
	sections map[string]*pagedata.Element
	elements map[string]*pagedata.Element
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	c, err := Parse(defaultTemplates)
	if err != nil {
		panic(fmt.Sprintf("embedded templates.yaml: %v", err))
	}
	return c
}

// LoadFile reads an operator supplied catalog.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse template catalog: %w", err)
	}
	c := &Catalog{
		sections: map[string]*pagedata.Element{},
		elements: map[string]*pagedata.Element{},
	}
	for _, e := range f.Sections {
		if e.Type == "" {
			e.Type = string(pagedata.TypeSection)
		}
		el, err := e.element(e.Name)
		if err != nil {
			return nil, err
		}
		if el.Type != pagedata.TypeSection {
			return nil, fmt.Errorf("template %q: sections must have type section, got %s", e.Name, el.Type)
		}
		c.sections[e.Name] = el
	}
	for _, e := range f.Elements {
		el, err := e.element(e.Name)
		if err != nil {
			return nil, err
		}
		c.elements[e.Name] = el
	}
	return c, nil
}

func (e entry) element(name string) (*pagedata.Element, error) {
	if name == "" {
		return nil, fmt.Errorf("template without a name")
	}
	t := pagedata.ElementType(e.Type)
	if !t.Valid() {
		return nil, fmt.Errorf("template %q: unknown element type %q", name, e.Type)
	}
	el := pagedata.NewElement("", t)
	size := pagedata.DefaultSize(t)
	if e.Width > 0 {
		size.Width = e.Width
	}
	if e.Height > 0 {
		size.Height = e.Height
	}
	if t == pagedata.TypeSection {
		size.Width = float64(pagedata.Desktop.CanvasWidth())
	}
	el.Size[pagedata.Desktop] = size
	el.Position[pagedata.Desktop] = pagedata.Position{X: e.X, Y: e.Y}
	if len(e.Styles) > 0 {
		el.Styles = pagedata.Styles(jsonNumbers(e.Styles).(map[string]any))
	}
	if len(e.ComponentData) > 0 {
		el.ComponentData = pagedata.ComponentData(jsonNumbers(e.ComponentData).(map[string]any))
	}
	if errs := pagedata.ValidateComponentData(t, el.ComponentData); len(errs) > 0 {
		return nil, fmt.Errorf("template %q: %v", name, errs[0])
	}
	for i, child := range e.Children {
		c, err := child.element(fmt.Sprintf("%s.children[%d]", name, i))
		if err != nil {
			return nil, err
		}
		el.Children = append(el.Children, c)
	}
	return pagedata.InitializeResponsiveData(el), nil
}

// jsonNumbers converts YAML integers to float64 so presets carry the same
// value kinds as documents decoded from JSON.
func jsonNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = jsonNumbers(x)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = jsonNumbers(x)
		}
		return out
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	}
	return v
}

// Section returns a copy of the named section preset.
func (c *Catalog) Section(name string) (*pagedata.Element, bool) {
	el, ok := c.sections[name]
	if !ok {
		return nil, false
	}
	return el.Clone(), true
}

// Element returns a copy of the named element preset.
func (c *Catalog) Element(name string) (*pagedata.Element, bool) {
	el, ok := c.elements[name]
	if !ok {
		return nil, false
	}
	return el.Clone(), true
}

// Names lists section and element preset names, sorted.
func (c *Catalog) Names() (sections, elements []string) {
	for n := range c.sections {
		sections = append(sections, n)
	}
	for n := range c.elements {
		elements = append(elements, n)
	}
	sort.Strings(sections)
	sort.Strings(elements)
	return sections, elements
}
