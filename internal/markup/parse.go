package markup

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"pagebuilder/internal/pagedata"

	"golang.org/x/net/html"
)

// Layout used when converting plain markup.
const (
	importPadding  = 40
	importGap      = 20
	minImportedSec = 400
)

// Parse reads a page back from HTML. Pages produced by Render carry their
// page data and are restored exactly; other markup is converted best
// effort, one section per <section>.
func Parse(r io.Reader) (*pagedata.Document, error) {
	return ParseAt(r, time.Now())
}

// ParseAt is Parse with an explicit creation time for new documents.
func ParseAt(r io.Reader, now time.Time) (*pagedata.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	if script := findNode(root, func(n *html.Node) bool {
		return n.Data == "script" && getAttrValue("id", n.Attr) == pageDataID
	}); script != nil {
		doc, err := pagedata.Decode([]byte(textOf(script, false)), now)
		if err != nil {
			return nil, fmt.Errorf("parse markup: page data: %w", err)
		}
		return doc, nil
	}
	return convert(root, now), nil
}

type importer struct {
	seen map[string]int
}

func (im *importer) id(t pagedata.ElementType) string {
	im.seen[string(t)]++
	return fmt.Sprintf("%s-import-%d", t, im.seen[string(t)])
}

func convert(root *html.Node, now time.Time) *pagedata.Document {
	doc := pagedata.NewDocument(now)
	im := &importer{seen: map[string]int{}}
	body := getBody(root)
	if body == nil {
		return doc
	}

	var sections []*html.Node
	iterNodes(body, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "section" {
			sections = append(sections, n)
			return true
		}
		return false
	})
	if len(sections) == 0 {
		sections = []*html.Node{body}
	}

	y := 0.0
	for _, node := range sections {
		sec := im.section(node)
		if sec == nil {
			continue
		}
		h := sec.Size[pagedata.Desktop].Height
		sec.Position[pagedata.Desktop] = pagedata.Position{Y: y, Z: 1}
		doc.Elements = append(doc.Elements, pagedata.SyncElementBetweenModes(pagedata.InitializeResponsiveData(sec), pagedata.Desktop))
		y += h
	}
	doc.Canvas.Height = pagedata.Height(y)
	return doc
}

// section converts one node and its content into a section element. Nodes
// without recognizable content give nil.
func (im *importer) section(node *html.Node) *pagedata.Element {
	var children []*pagedata.Element
	iterNodes(node, func(n *html.Node) bool {
		if n == node || n.Type != html.ElementNode {
			return false
		}
		if el := im.child(n); el != nil {
			children = append(children, el)
			return true
		}
		return n.Data == "script" || n.Data == "style"
	})
	if len(children) == 0 {
		return nil
	}

	width := float64(pagedata.Desktop.CanvasWidth())
	y := float64(importPadding)
	for _, c := range children {
		s := c.Size[pagedata.Desktop]
		s.Width = math.Min(s.Width, width-2*importPadding)
		c.Size[pagedata.Desktop] = s
		c.Position[pagedata.Desktop] = pagedata.Position{X: importPadding, Y: y, Z: 2}
		y += s.Height + importGap
	}

	sec := pagedata.NewElement(im.id(pagedata.TypeSection), pagedata.TypeSection)
	sec.Size[pagedata.Desktop] = pagedata.Size{Width: width, Height: math.Max(minImportedSec, y-importGap+importPadding)}
	sec.Children = children
	if bg := styleProp(getAttrValue("style", node.Attr), "background-color"); bg != "" {
		sec.Styles = pagedata.Styles{"backgroundColor": bg}
	}
	return sec
}

// child maps a content node to an element.
func (im *importer) child(n *html.Node) *pagedata.Element {
	var el *pagedata.Element
	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		el = im.text(pagedata.TypeHeading, n)
		if el != nil {
			el.ComponentData["tag"] = n.Data
		}
	case "p":
		el = im.text(pagedata.TypeParagraph, n)
	case "a", "button":
		el = im.text(pagedata.TypeButton, n)
		if el != nil {
			if href := getAttrValue("href", n.Attr); href != "" {
				el.ComponentData["href"] = href
			}
		}
	case "img":
		src := getAttrValue("src", n.Attr)
		if src == "" {
			return nil
		}
		el = pagedata.NewElement(im.id(pagedata.TypeImage), pagedata.TypeImage)
		el.ComponentData = pagedata.ComponentData{"src": src, "alt": getAttrValue("alt", n.Attr)}
	case "hr":
		el = pagedata.NewElement(im.id(pagedata.TypeLine), pagedata.TypeLine)
	default:
		return nil
	}
	if el == nil {
		return nil
	}
	el.Size[pagedata.Desktop] = pagedata.DefaultSize(el.Type)
	return el
}

func (im *importer) text(t pagedata.ElementType, n *html.Node) *pagedata.Element {
	content := textOf(n, true)
	if content == "" {
		return nil
	}
	el := pagedata.NewElement(im.id(t), t)
	el.ComponentData = pagedata.ComponentData{"content": content}
	return el
}

func getBody(root *html.Node) *html.Node {
	return findNode(root, func(n *html.Node) bool { return n.Data == "body" })
}

// findNode returns the first element below root that matches.
func findNode(root *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	iterNodes(root, func(n *html.Node) bool {
		if found != nil {
			return true
		}
		if n.Type == html.ElementNode && match(n) {
			found = n
			return true
		}
		return false
	})
	return found
}

// iterNodes walks node depth first. Returning true from f skips the
// children of the node it was called with.
func iterNodes(node *html.Node, f func(child *html.Node) bool) {
	if f(node) {
		return
	}
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		iterNodes(c, f)
	}
}

// textOf concatenates the text below n, collapsing whitespace when asked.
func textOf(n *html.Node, collapse bool) string {
	var b strings.Builder
	iterNodes(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return false
	})
	if !collapse {
		return b.String()
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func getAttrValue(key string, attrs []html.Attribute) string {
	for _, a := range attrs {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// styleProp reads one property from an inline style attribute.
func styleProp(style, name string) string {
	for _, decl := range strings.Split(style, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if ok && strings.TrimSpace(strings.ToLower(k)) == name {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
