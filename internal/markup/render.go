// Package markup turns page documents into standalone HTML and reads them
// back.
package markup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"pagebuilder/internal/pagedata"
	"pagebuilder/pkg/metrics"

	"github.com/microcosm-cc/bluemonday"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	mhtml "github.com/tdewolff/minify/v2/html"
)

// Media query bounds for the tablet and mobile rules.
const (
	tabletMaxWidth = 1024
	mobileMaxWidth = 767
)

const (
	pageDataID   = "page-data"
	defaultTitle = "Landing page"
)

var (
	ugcPolicy = bluemonday.UGCPolicy()
	minifier  = newMinifier()
)

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.Add("text/html", &mhtml.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
	})
	return m
}

// Options controls Render.
type Options struct {
	Title  string
	Lang   string
	Pretty bool
}

// Render serializes doc to a standalone HTML page. Elements are absolutely
// positioned per breakpoint, hidden elements are left out and popups stay
// hidden unless listed in doc.VisiblePopups. The page data is embedded so
// Parse can restore the document.
func Render(doc *pagedata.Document, opts Options) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("render: nil document")
	}
	defer prometheus.NewTimer(metrics.RenderSeconds).ObserveDuration()

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("render: encode page data: %w", err)
	}

	r := newRenderer(doc)
	var body strings.Builder
	for _, el := range doc.Elements {
		r.element(&body, el, true)
	}

	title := opts.Title
	if title == "" {
		title = defaultTitle
	}
	lang := opts.Lang
	if lang == "" {
		lang = "en"
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "<!DOCTYPE html>\n<html lang=\"%s\">\n<head>\n", attr(lang))
	out.WriteString("<meta charset=\"utf-8\">\n")
	out.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	fmt.Fprintf(&out, "<title>%s</title>\n", html.EscapeString(title))
	fmt.Fprintf(&out, "<style>\n%s</style>\n</head>\n<body>\n", r.stylesheet())
	out.WriteString("<main id=\"pb-page\" class=\"pb-page\">\n")
	out.WriteString(body.String())
	out.WriteString("</main>\n")
	fmt.Fprintf(&out, "<script type=\"application/json\" id=\"%s\">%s</script>\n", pageDataID, data)
	out.WriteString("</body>\n</html>\n")

	if opts.Pretty {
		return out.Bytes(), nil
	}
	minified, err := minifier.Bytes("text/html", out.Bytes())
	if err != nil {
		return nil, fmt.Errorf("render: minify: %w", err)
	}
	return minified, nil
}

type rule struct {
	selector string
	decls    []string
}

type renderer struct {
	doc   *pagedata.Document
	popup map[string]bool
	rules map[pagedata.Breakpoint][]rule
}

func newRenderer(doc *pagedata.Document) *renderer {
	r := &renderer{
		doc:   doc,
		popup: map[string]bool{},
		rules: map[pagedata.Breakpoint][]rule{},
	}
	for _, id := range doc.VisiblePopups {
		r.popup[id] = true
	}
	return r
}

func (r *renderer) add(bp pagedata.Breakpoint, selector string, decls []string) {
	if len(decls) == 0 {
		return
	}
	r.rules[bp] = append(r.rules[bp], rule{selector: selector, decls: decls})
}

func (r *renderer) stylesheet() string {
	var b strings.Builder
	b.WriteString("*{box-sizing:border-box}\n")
	b.WriteString("body{margin:0}\n")
	b.WriteString(".pb-page{position:relative;margin:0 auto;width:100%;overflow-x:hidden}\n")
	b.WriteString(".pb-el{position:absolute;margin:0}\n")
	b.WriteString(".pb-popup{position:fixed}\n")
	b.WriteString(".pb-popup[hidden]{display:none}\n")
	b.WriteString(".pb-overlay{position:absolute;inset:0;pointer-events:none}\n")
	b.WriteString(".pb-gallery img,.pb-image img{width:100%;height:100%;object-fit:cover;display:block}\n")
	b.WriteString(".pb-v-tablet,.pb-v-mobile{display:none}\n")

	page := []string{
		"max-width:" + px(float64(pagedata.Desktop.CanvasWidth())),
		"height:" + px(r.pageHeight(pagedata.Desktop)),
	}
	if bg := r.doc.Canvas.Background; bg != "" {
		if v, ok := cssValue(bg); ok {
			page = append(page, "background:"+v)
		}
	}
	writeRules(&b, append([]rule{{selector: ".pb-page", decls: page}}, r.rules[pagedata.Desktop]...))

	fmt.Fprintf(&b, "@media (max-width:%dpx){\n", tabletMaxWidth)
	b.WriteString(".pb-v-desktop,.pb-v-mobile{display:none}.pb-v-tablet{display:inline}\n")
	writeRules(&b, append([]rule{{selector: ".pb-page", decls: []string{"height:" + px(r.pageHeight(pagedata.Tablet))}}}, r.rules[pagedata.Tablet]...))
	b.WriteString("}\n")

	fmt.Fprintf(&b, "@media (max-width:%dpx){\n", mobileMaxWidth)
	b.WriteString(".pb-v-desktop,.pb-v-tablet{display:none}.pb-v-mobile{display:inline}\n")
	writeRules(&b, append([]rule{{selector: ".pb-page", decls: []string{"height:" + px(r.pageHeight(pagedata.Mobile))}}}, r.rules[pagedata.Mobile]...))
	b.WriteString("}\n")
	return b.String()
}

func writeRules(b *strings.Builder, rules []rule) {
	for _, rl := range rules {
		fmt.Fprintf(b, "%s{%s}\n", rl.selector, strings.Join(rl.decls, ";"))
	}
}

// pageHeight is the lowest edge of the in-flow top-level elements at bp.
// The stored canvas height is honored on desktop.
func (r *renderer) pageHeight(bp pagedata.Breakpoint) float64 {
	h := 0.0
	if bp == pagedata.Desktop {
		h = r.doc.Canvas.Height.Px()
	}
	for _, el := range r.doc.Elements {
		if !el.Visible || el.Type.IsOverlay() {
			continue
		}
		v := pagedata.GetResponsiveValues(el, bp)
		h = math.Max(h, v.Position.Y+v.Size.Height)
	}
	return h
}

func (r *renderer) element(b *strings.Builder, el *pagedata.Element, topLevel bool) {
	if !el.Visible {
		return
	}
	r.layout(el, topLevel)

	id := attr(el.ID)
	desktop := pagedata.GetResponsiveValues(el, pagedata.Desktop)
	cd := desktop.ComponentData
	class := "pb-el pb-" + string(el.Type)

	switch el.Type {
	case pagedata.TypeSection:
		fmt.Fprintf(b, "<section id=\"%s\" class=\"%s\">\n", id, class)
		r.overlay(b, el)
		r.children(b, el)
		b.WriteString("</section>\n")

	case pagedata.TypePopup, pagedata.TypeModal:
		hidden := ""
		if !r.popup[el.ID] {
			hidden = " hidden"
		}
		fmt.Fprintf(b, "<div id=\"%s\" class=\"pb-el pb-popup pb-%s\" role=\"dialog\"%s%s>\n", id, el.Type, dataAttr("trigger", cd.String("trigger")), hidden)
		r.overlay(b, el)
		if t := r.text(el, "title"); t != "" {
			fmt.Fprintf(b, "<h3 class=\"pb-popup-title\">%s</h3>\n", t)
		}
		r.children(b, el)
		b.WriteString("</div>\n")

	case pagedata.TypeGroup:
		fmt.Fprintf(b, "<div id=\"%s\" class=\"%s\">\n", id, class)
		r.children(b, el)
		b.WriteString("</div>\n")

	case pagedata.TypeHeading:
		tag := headingTag(cd.String("tag"))
		fmt.Fprintf(b, "<%s id=\"%s\" class=\"%s\">%s</%s>\n", tag, id, class, r.text(el, "content"), tag)

	case pagedata.TypeParagraph:
		fmt.Fprintf(b, "<p id=\"%s\" class=\"%s\">%s</p>\n", id, class, r.text(el, "content"))

	case pagedata.TypeButton:
		fmt.Fprintf(b, "<a id=\"%s\" class=\"%s\" href=\"%s\"%s>%s</a>\n", id, class, attr(safeURL(cd.String("href"))), targetAttr(cd.String("target")), r.text(el, "content"))

	case pagedata.TypeImage:
		img := fmt.Sprintf("<img src=\"%s\" alt=\"%s\" loading=\"lazy\">", attr(safeURL(cd.String("src"))), attr(cd.String("alt")))
		if link := cd.String("link"); link != "" {
			img = fmt.Sprintf("<a href=\"%s\">%s</a>", attr(safeURL(link)), img)
		}
		fmt.Fprintf(b, "<div id=\"%s\" class=\"%s\">%s", id, class, img)
		r.overlay(b, el)
		b.WriteString("</div>\n")

	case pagedata.TypeGallery:
		fmt.Fprintf(b, "<div id=\"%s\" class=\"%s\">\n", id, class)
		for i, src := range cd.List("images") {
			s, _ := src.(string)
			fmt.Fprintf(b, "<img src=\"%s\" alt=\"Gallery image %d\" loading=\"lazy\">\n", attr(safeURL(s)), i+1)
		}
		b.WriteString("</div>\n")

	case pagedata.TypeIcon:
		fmt.Fprintf(b, "<span id=\"%s\" class=\"%s\" aria-hidden=\"true\"%s></span>\n", id, class, dataAttr("icon", cd.String("icon")))

	case pagedata.TypeLine:
		fmt.Fprintf(b, "<hr id=\"%s\" class=\"%s\">\n", id, class)

	case pagedata.TypeVideo:
		flags := ""
		for _, f := range []string{"controls", "autoplay", "muted", "loop"} {
			if cd.Bool(f) {
				flags += " " + f
			}
		}
		fmt.Fprintf(b, "<video id=\"%s\" class=\"%s\" src=\"%s\"%s></video>\n", id, class, attr(safeURL(cd.String("src"))), flags)

	case pagedata.TypeForm:
		r.form(b, el, cd)

	default:
		fmt.Fprintf(b, "<div id=\"%s\" class=\"%s\"></div>\n", id, class)
	}
}

func (r *renderer) children(b *strings.Builder, el *pagedata.Element) {
	for _, c := range el.Children {
		r.element(b, c, false)
	}
}

func (r *renderer) form(b *strings.Builder, el *pagedata.Element, cd pagedata.ComponentData) {
	fmt.Fprintf(b, "<form id=\"%s\" class=\"pb-el pb-form\" method=\"post\" action=\"%s\">\n", attr(el.ID), attr(safeURL(cd.String("action"))))
	if t := r.text(el, "title"); t != "" {
		fmt.Fprintf(b, "<h3>%s</h3>\n", t)
	}
	for i, f := range cd.List("fields") {
		name, label, kind := fmt.Sprintf("field%d", i+1), "", "text"
		switch v := f.(type) {
		case string:
			name, label = v, v
		case map[string]any:
			field := pagedata.ComponentData(v)
			if s := field.String("name"); s != "" {
				name = s
			}
			label = field.String("label")
			if s := field.String("type"); s != "" {
				kind = s
			}
		}
		if label != "" {
			fmt.Fprintf(b, "<label>%s ", html.EscapeString(label))
		} else {
			b.WriteString("<label>")
		}
		fmt.Fprintf(b, "<input type=\"%s\" name=\"%s\"></label>\n", attr(kind), attr(name))
	}
	submit := cd.String("submitText")
	if submit == "" {
		submit = "Submit"
	}
	fmt.Fprintf(b, "<button type=\"submit\">%s</button>\n</form>\n", html.EscapeString(submit))
}

// text renders a responsive text field. When breakpoints disagree every
// variant is emitted and the stylesheet shows the matching one.
func (r *renderer) text(el *pagedata.Element, key string) string {
	var variants [3]string
	same := true
	for i, bp := range pagedata.Breakpoints {
		variants[i] = ugcPolicy.Sanitize(pagedata.GetResponsiveValues(el, bp).ComponentData.String(key))
		if variants[i] != variants[0] {
			same = false
		}
	}
	if same {
		return variants[0]
	}
	var b strings.Builder
	for i, bp := range pagedata.Breakpoints {
		fmt.Fprintf(&b, "<span class=\"pb-v pb-v-%s\">%s</span>", bp, variants[i])
	}
	return b.String()
}

func (r *renderer) overlay(b *strings.Builder, el *pagedata.Element) {
	cd := pagedata.GetResponsiveValues(el, pagedata.Desktop).ComponentData
	if cd.String("overlayColor") == "" {
		return
	}
	b.WriteString("<div class=\"pb-overlay\"></div>\n")
	for _, bp := range pagedata.Breakpoints {
		v := pagedata.GetResponsiveValues(el, bp).ComponentData
		var decls []string
		if c, ok := cssValue(v.String("overlayColor")); ok && c != "" {
			decls = append(decls, "background:"+c)
		}
		if o, ok := v.Number("overlayOpacity"); ok {
			decls = append(decls, "opacity:"+num(o))
		}
		r.addDiff(bp, "#"+cssIdent(el.ID)+">.pb-overlay", decls)
	}
}

// layout records the box and style rules of el for every breakpoint.
func (r *renderer) layout(el *pagedata.Element, topLevel bool) {
	for _, bp := range pagedata.Breakpoints {
		v := pagedata.GetResponsiveValues(el, bp)
		var decls []string
		switch {
		case el.Type == pagedata.TypeSection && topLevel:
			decls = append(decls, "left:0", "width:100%")
		default:
			decls = append(decls, "left:"+px(v.Position.X), "width:"+px(v.Size.Width))
		}
		decls = append(decls, "top:"+px(v.Position.Y), "height:"+px(v.Size.Height))
		if v.Position.Z != 0 {
			decls = append(decls, "z-index:"+strconv.Itoa(v.Position.Z))
		}
		decls = append(decls, styleDecls(v.Styles)...)
		decls = append(decls, dataDecls(el.Type, v.ComponentData)...)
		r.addDiff(bp, "#"+cssIdent(el.ID), decls)
	}
}

// addDiff records decls for bp, dropping tablet and mobile declarations
// that repeat the rule in force above them.
func (r *renderer) addDiff(bp pagedata.Breakpoint, selector string, decls []string) {
	if bp == pagedata.Desktop {
		r.add(bp, selector, decls)
		return
	}
	inherited := map[string]bool{}
	for _, up := range []pagedata.Breakpoint{pagedata.Desktop, pagedata.Tablet} {
		if up == bp {
			break
		}
		for _, rl := range r.rules[up] {
			if rl.selector != selector {
				continue
			}
			for _, d := range rl.decls {
				inherited[d] = true
			}
		}
	}
	var diff []string
	for _, d := range decls {
		if !inherited[d] {
			diff = append(diff, d)
		}
	}
	r.add(bp, selector, diff)
}

// dataDecls maps layout-related component data to CSS.
func dataDecls(t pagedata.ElementType, cd pagedata.ComponentData) []string {
	var decls []string
	switch t {
	case pagedata.TypeGallery:
		cols := cd.String("gridTemplateColumns")
		if n, ok := cd.Int("columns"); ok && n > 0 && cols == "" {
			cols = fmt.Sprintf("repeat(%d, 1fr)", n)
		}
		if v, ok := cssValue(cols); ok && v != "" {
			decls = append(decls, "display:grid", "grid-template-columns:"+v)
		}
		if gap, ok := cd.Number("gap"); ok {
			decls = append(decls, "gap:"+px(gap))
		}
	case pagedata.TypeIcon:
		if v, ok := cssValue(cd.String("color")); ok && v != "" {
			decls = append(decls, "color:"+v)
		}
	case pagedata.TypeSection:
		if src := cd.String("backgroundImage"); src != "" && cd.String("backgroundType") == "image" {
			decls = append(decls, fmt.Sprintf("background-image:url(%q)", cssURL(src)), "background-size:cover", "background-position:center")
		}
	}
	var transforms []string
	if deg, ok := cd.Number("rotate"); ok && deg != 0 {
		transforms = append(transforms, "rotate("+num(deg)+"deg)")
	}
	if s, ok := cd.Number("scale"); ok && s != 1 && s > 0 {
		transforms = append(transforms, "scale("+num(s)+")")
	}
	if len(transforms) > 0 {
		decls = append(decls, "transform:"+strings.Join(transforms, " "))
	}
	return decls
}

// unitless properties take bare numbers.
var unitless = map[string]bool{
	"zIndex": true, "opacity": true, "fontWeight": true, "lineHeight": true,
	"flex": true, "flexGrow": true, "flexShrink": true, "order": true,
}

func styleDecls(s pagedata.Styles) []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	decls := make([]string, 0, len(keys))
	for _, k := range keys {
		var value string
		switch v := s[k].(type) {
		case string:
			cv, ok := cssValue(v)
			if !ok || cv == "" {
				continue
			}
			value = cv
		case float64:
			if unitless[k] {
				value = num(v)
			} else {
				value = px(v)
			}
		case int:
			if unitless[k] {
				value = strconv.Itoa(v)
			} else {
				value = px(float64(v))
			}
		default:
			continue
		}
		decls = append(decls, kebab(k)+":"+value)
	}
	return decls
}

// kebab turns fontSize into font-size.
func kebab(name string) string {
	var b strings.Builder
	for i, c := range name {
		if c >= 'A' && c <= 'Z' {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(c + ('a' - 'A'))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// cssValue rejects values that could end the declaration or the style
// element.
func cssValue(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if strings.ContainsAny(v, ";{}<>\\") || strings.Contains(strings.ToLower(v), "expression(") {
		return "", false
	}
	return v, true
}

func cssIdent(id string) string {
	var b strings.Builder
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			b.WriteRune(c)
		default:
			fmt.Fprintf(&b, "\\%x ", c)
		}
	}
	if s := b.String(); s != "" && s[0] >= '0' && s[0] <= '9' {
		return fmt.Sprintf("\\%x ", s[0]) + s[1:]
	}
	return b.String()
}

func cssURL(raw string) string {
	u := safeURL(raw)
	if strings.ContainsAny(u, "\"'()\n") {
		return "#"
	}
	return u
}

var allowedSchemes = map[string]bool{"": true, "http": true, "https": true, "mailto": true, "tel": true}

// safeURL keeps relative and web URLs and replaces anything else with "#".
func safeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "#"
	}
	u, err := url.Parse(raw)
	if err != nil || !allowedSchemes[strings.ToLower(u.Scheme)] {
		return "#"
	}
	return raw
}

func headingTag(tag string) string {
	switch tag {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return tag
	}
	return "h2"
}

func targetAttr(target string) string {
	if target == "_blank" {
		return ` target="_blank" rel="noopener noreferrer"`
	}
	return ""
}

func dataAttr(name, value string) string {
	if value == "" {
		return ""
	}
	return fmt.Sprintf(" data-%s=\"%s\"", name, attr(value))
}

func attr(s string) string { return html.EscapeString(s) }

func num(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func px(f float64) string {
	if f == 0 {
		return "0"
	}
	return num(math.Round(f*100)/100) + "px"
}
