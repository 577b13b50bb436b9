package pagedata

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// ComponentData carries the type-specific payload of an element.
type ComponentData map[string]any

// responsiveKeys may differ per breakpoint. Every other key is global.
var responsiveKeys = map[string]bool{
	"content":        true,
	"animation":      true,
	"title":          true,
	"overlayColor":   true,
	"overlayOpacity": true,
	"backgroundType": true,
	"rotate":         true,
	"scale":          true,
	"hoverZoom":      true,
	"hoverRotate":    true,
	"hoverGrayscale": true,
}

// IsResponsiveKey reports whether a componentData key is stored per
// breakpoint.
func IsResponsiveKey(key string) bool { return responsiveKeys[key] }

func (cd ComponentData) Clone() ComponentData {
	if cd == nil {
		return nil
	}
	out := make(ComponentData, len(cd))
	for k, v := range cd {
		out[k] = cloneValue(v)
	}
	return out
}

// Split partitions cd into its global and responsive halves.
func (cd ComponentData) Split() (global, responsive ComponentData) {
	global, responsive = ComponentData{}, ComponentData{}
	for k, v := range cd {
		if responsiveKeys[k] {
			responsive[k] = cloneValue(v)
		} else {
			global[k] = cloneValue(v)
		}
	}
	return global, responsive
}

func (cd ComponentData) String(key string) string {
	switch v := cd[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

// Number reads a numeric value, accepting numeric strings.
func (cd ComponentData) Number(key string) (float64, bool) {
	return toFloat(cd[key])
}

func (cd ComponentData) Int(key string) (int, bool) {
	f, ok := cd.Number(key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func (cd ComponentData) Bool(key string) bool {
	switch v := cd[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

func (cd ComponentData) List(key string) []any {
	switch v := cd[key].(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	}
	return nil
}

type kind int

const (
	kindString kind = iota
	kindNumber
	kindBool
	kindList
	kindObject
	kindAny
)

func (k kind) String() string {
	switch k {
	case kindString:
		return "string"
	case kindNumber:
		return "number"
	case kindBool:
		return "boolean"
	case kindList:
		return "list"
	case kindObject:
		return "object"
	}
	return "any"
}

var (
	textFields = map[string]kind{
		"content": kindString, "tag": kindString, "href": kindString,
		"target": kindString, "animation": kindAny, "title": kindString,
		"rotate": kindNumber, "scale": kindNumber, "onClick": kindAny,
	}
	overlayFields = map[string]kind{
		"overlayColor": kindString, "overlayOpacity": kindNumber,
		"backgroundType": kindString, "backgroundImage": kindString,
	}
	hoverFields = map[string]kind{
		"hoverZoom": kindBool, "hoverRotate": kindBool, "hoverGrayscale": kindBool,
	}
)

func merge(sets ...map[string]kind) map[string]kind {
	out := map[string]kind{}
	for _, s := range sets {
		for k, v := range s {
			out[k] = v
		}
	}
	return out
}

var schemas = map[ElementType]map[string]kind{
	TypeHeading:   textFields,
	TypeParagraph: textFields,
	TypeButton:    textFields,
	TypeImage: merge(overlayFields, hoverFields, map[string]kind{
		"src": kindString, "alt": kindString, "link": kindString,
		"rotate": kindNumber, "scale": kindNumber, "animation": kindAny, "title": kindString,
	}),
	TypeGallery: {
		"images": kindList, "columns": kindNumber, "gap": kindNumber,
		"gridTemplateColumns": kindString, "animation": kindAny,
	},
	TypeIcon: {
		"icon": kindString, "color": kindString, "animation": kindAny,
		"rotate": kindNumber, "scale": kindNumber,
	},
	TypeSection: merge(overlayFields, map[string]kind{
		"animation": kindAny, "title": kindString,
	}),
	TypePopup: merge(overlayFields, map[string]kind{
		"trigger": kindString, "delay": kindNumber, "title": kindString, "animation": kindAny,
	}),
	TypeModal: merge(overlayFields, map[string]kind{
		"trigger": kindString, "delay": kindNumber, "title": kindString, "animation": kindAny,
	}),
	TypeVideo: {
		"src": kindString, "autoplay": kindBool, "loop": kindBool,
		"muted": kindBool, "controls": kindBool, "title": kindString,
	},
	TypeForm: {
		"fields": kindList, "action": kindString, "submitText": kindString, "title": kindString,
	},
}

// FieldError describes one rejected field.
type FieldError struct {
	Field string `json:"field"`
	Msg   string `json:"message"`
}

func (e FieldError) Error() string { return e.Field + ": " + e.Msg }

// ValidateComponentData checks the known keys of cd against the field set of
// the element type. Unknown keys are accepted.
func ValidateComponentData(t ElementType, cd ComponentData) []FieldError {
	schema, ok := schemas[t]
	if !ok || len(cd) == 0 {
		return nil
	}
	keys := make([]string, 0, len(cd))
	for k := range cd {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []FieldError
	for _, k := range keys {
		want, known := schema[k]
		if !known || want == kindAny || cd[k] == nil {
			continue
		}
		if !hasKind(cd[k], want) {
			errs = append(errs, FieldError{
				Field: "componentData." + k,
				Msg:   fmt.Sprintf("must be a %s for %s elements", want, t),
			})
		}
	}
	return errs
}

func hasKind(v any, k kind) bool {
	switch k {
	case kindString:
		_, ok := v.(string)
		return ok
	case kindNumber:
		f, ok := toFloat(v)
		return ok && !math.IsNaN(f) && !math.IsInf(f, 0)
	case kindBool:
		_, ok := v.(bool)
		return ok
	case kindList:
		switch v.(type) {
		case []any, []string, []map[string]any:
			return true
		}
		return false
	case kindObject:
		_, ok := v.(map[string]any)
		return ok
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

// cloneValue deep-copies the JSON-shaped values stored in styles and
// component data.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = cloneValue(x)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = cloneValue(x)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, x := range t {
			out[i] = cloneValue(x).(map[string]any)
		}
		return out
	}
	return v
}
