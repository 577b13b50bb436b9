package editor

import (
	"bytes"
	"encoding/json"
	"fmt"

	"pagebuilder/internal/pagedata"
)

type IntentType string

// Document intents.
const (
	AddSection          IntentType = "add_section"
	AddElement          IntentType = "add_element"
	AddChild            IntentType = "add_child"
	DeleteElement       IntentType = "delete_element"
	DeleteChild         IntentType = "delete_child"
	MoveUp              IntentType = "move_up"
	MoveDown            IntentType = "move_down"
	Duplicate           IntentType = "duplicate"
	Group               IntentType = "group"
	Ungroup             IntentType = "ungroup"
	MoveChild           IntentType = "move_child"
	ReorderChildren     IntentType = "reorder_children"
	UpdatePosition      IntentType = "update_position"
	UpdateSize          IntentType = "update_size"
	UpdateStyles        IntentType = "update_styles"
	UpdateComponentData IntentType = "update_component_data"
	ToggleVisibility    IntentType = "toggle_visibility"
	ToggleLock          IntentType = "toggle_lock"
	TogglePopup         IntentType = "toggle_popup"
	UpdateCanvas        IntentType = "update_canvas"
	SyncElement         IntentType = "sync_element"
	SetViewMode         IntentType = "set_view_mode"
	Undo                IntentType = "undo"
	Redo                IntentType = "redo"
)

// UI-only intents. They never reach history.
const (
	SelectElement  IntentType = "select_element"
	SelectChild    IntentType = "select_child"
	ClearSelection IntentType = "clear_selection"
	SetZoom        IntentType = "set_zoom"
	ToggleGrid     IntentType = "toggle_grid"
)

// IsUI reports whether the intent only touches editor UI state.
func (t IntentType) IsUI() bool {
	switch t {
	case SelectElement, SelectChild, ClearSelection, SetZoom, ToggleGrid:
		return true
	}
	return false
}

// Intent is one user action. Payload holds the struct registered for Type
// in payloadTypes, by value or by pointer.
type Intent struct {
	Type    IntentType `json:"type"`
	Payload any        `json:"payload,omitempty"`
}

type NoPayload struct{}

// TemplatePayload adds either an inline element or a catalog preset.
type TemplatePayload struct {
	Template string            `json:"template,omitempty"`
	Element  *pagedata.Element `json:"element,omitempty"`
}

type AddChildPayload struct {
	ParentID string `json:"parentId" validate:"required"`
	TemplatePayload
}

type IDPayload struct {
	ID string `json:"id" validate:"required"`
}

type DeleteChildPayload struct {
	ParentID string `json:"parentId" validate:"required"`
	ChildID  string `json:"childId" validate:"required"`
}

type GroupPayload struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

type MoveChildPayload struct {
	SourceParentID string             `json:"sourceParentId,omitempty"`
	ChildID        string             `json:"childId" validate:"required"`
	TargetParentID string             `json:"targetParentId,omitempty"`
	Position       *pagedata.Position `json:"position,omitempty"`
}

type ReorderPayload struct {
	ParentID  string `json:"parentId" validate:"required"`
	DragIndex int    `json:"dragIndex" validate:"gte=0"`
	DropIndex int    `json:"dropIndex" validate:"gte=0"`
}

// RefPayload addresses one element. Mode defaults to the session's view.
type RefPayload struct {
	pagedata.ElementRef
	Mode pagedata.Breakpoint `json:"mode,omitempty" validate:"omitempty,oneof=desktop tablet mobile"`
}

type PositionPayload struct {
	RefPayload
	X *float64 `json:"x,omitempty" validate:"omitempty,finite"`
	Y *float64 `json:"y,omitempty" validate:"omitempty,finite"`
	Z *int     `json:"z,omitempty" validate:"omitempty,gte=0"`
}

type SizePayload struct {
	RefPayload
	Width  *float64 `json:"width,omitempty" validate:"omitempty,finite,gte=0"`
	Height *float64 `json:"height,omitempty" validate:"omitempty,finite,gte=0"`
}

type StylesPayload struct {
	RefPayload
	Styles pagedata.Styles `json:"styles" validate:"required"`
}

type ComponentDataPayload struct {
	RefPayload
	Data pagedata.ComponentData `json:"componentData" validate:"required"`
}

type CanvasPayload struct {
	Background *string `json:"background,omitempty" validate:"omitempty,max=64"`
}

type ViewModePayload struct {
	Mode pagedata.Breakpoint `json:"mode" validate:"required,oneof=desktop tablet mobile"`
}

type SelectPayload struct {
	IDs []string `json:"ids" validate:"dive,required"`
}

type ZoomPayload struct {
	Zoom float64 `json:"zoom" validate:"finite,gte=0.1,lte=4"`
}

var payloadTypes = map[IntentType]func() any{
	AddSection:          func() any { return &TemplatePayload{} },
	AddElement:          func() any { return &TemplatePayload{} },
	AddChild:            func() any { return &AddChildPayload{} },
	DeleteElement:       func() any { return &IDPayload{} },
	DeleteChild:         func() any { return &DeleteChildPayload{} },
	MoveUp:              func() any { return &IDPayload{} },
	MoveDown:            func() any { return &IDPayload{} },
	Duplicate:           func() any { return &IDPayload{} },
	Group:               func() any { return &GroupPayload{} },
	Ungroup:             func() any { return &IDPayload{} },
	MoveChild:           func() any { return &MoveChildPayload{} },
	ReorderChildren:     func() any { return &ReorderPayload{} },
	UpdatePosition:      func() any { return &PositionPayload{} },
	UpdateSize:          func() any { return &SizePayload{} },
	UpdateStyles:        func() any { return &StylesPayload{} },
	UpdateComponentData: func() any { return &ComponentDataPayload{} },
	ToggleVisibility:    func() any { return &RefPayload{} },
	ToggleLock:          func() any { return &RefPayload{} },
	TogglePopup:         func() any { return &IDPayload{} },
	UpdateCanvas:        func() any { return &CanvasPayload{} },
	SyncElement:         func() any { return &RefPayload{} },
	SetViewMode:         func() any { return &ViewModePayload{} },
	Undo:                func() any { return &NoPayload{} },
	Redo:                func() any { return &NoPayload{} },
	SelectElement:       func() any { return &SelectPayload{} },
	SelectChild:         func() any { return &DeleteChildPayload{} },
	ClearSelection:      func() any { return &NoPayload{} },
	SetZoom:             func() any { return &ZoomPayload{} },
	ToggleGrid:          func() any { return &NoPayload{} },
}

// DecodeIntent reads the {"type": ..., "payload": {...}} envelope sent by
// the editor.
func DecodeIntent(raw []byte) (Intent, error) {
	var env struct {
		Type    IntentType      `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return Intent{}, fmt.Errorf("decode intent: %w", err)
	}
	newPayload, ok := payloadTypes[env.Type]
	if !ok {
		return Intent{}, invalid(env.Type, pagedata.FieldError{Field: "type", Msg: fmt.Sprintf("unknown intent %q", env.Type)})
	}
	p := newPayload()
	if body := bytes.TrimSpace(env.Payload); len(body) > 0 && string(body) != "null" {
		if err := json.Unmarshal(body, p); err != nil {
			return Intent{}, invalid(env.Type, pagedata.FieldError{Field: "payload", Msg: err.Error()})
		}
	}
	return Intent{Type: env.Type, Payload: p}, nil
}

// payloadAs returns the payload of in as a T, accepting T and *T.
func payloadAs[T any](in Intent) (T, error) {
	switch p := in.Payload.(type) {
	case T:
		return p, nil
	case *T:
		if p != nil {
			return *p, nil
		}
	case nil:
		var zero T
		if _, empty := any(zero).(NoPayload); empty {
			return zero, nil
		}
	}
	var zero T
	return zero, invalid(in.Type, pagedata.FieldError{
		Field: "payload",
		Msg:   fmt.Sprintf("expected %T, got %T", zero, in.Payload),
	})
}
