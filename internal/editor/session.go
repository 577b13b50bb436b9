// Package editor turns editor intents into page edits and keeps the undo
// history of one editing session.
package editor

import (
	"errors"
	"fmt"

	"pagebuilder/internal/catalog"
	"pagebuilder/internal/history"
	"pagebuilder/internal/pagedata"
	"pagebuilder/pkg/logger"
)

const (
	defaultZoom = 1.0
)

// ChildSelection points at a child inside a container.
type ChildSelection struct {
	ParentID string `json:"parentId"`
	ChildID  string `json:"childId"`
}

// UIState is editor state that is not part of the page and never enters
// history.
type UIState struct {
	SelectedIDs   []string            `json:"selectedIds"`
	SelectedChild *ChildSelection     `json:"selectedChild,omitempty"`
	ViewMode      pagedata.Breakpoint `json:"viewMode"`
	Zoom          float64             `json:"zoom"`
	ShowGrid      bool                `json:"showGrid"`
}

// DefaultUI is the UI state of a fresh session on doc.
func DefaultUI(doc *pagedata.Document) UIState {
	return UIState{SelectedIDs: []string{}, ViewMode: doc.ViewMode(), Zoom: defaultZoom}
}

// Result describes the session after an intent. Changed is set when the
// current document was replaced.
type Result struct {
	Document *pagedata.Document `json:"document"`
	UI       UIState            `json:"ui"`
	Changed  bool               `json:"changed"`
	CanUndo  bool               `json:"canUndo"`
	CanRedo  bool               `json:"canRedo"`
}

type Option func(*Session)

func WithOps(ops *pagedata.Ops) Option {
	return func(s *Session) { s.ops = ops }
}

func WithCatalog(c *catalog.Catalog) Option {
	return func(s *Session) { s.catalog = c }
}

// WithAutoSync controls whether desktop edits are copied down to tablet
// and mobile. It is on by default.
func WithAutoSync(on bool) Option {
	return func(s *Session) { s.autoSync = on }
}

// Session owns the current document and its history. It is not safe for
// concurrent use; the socket hub serializes access.
type Session struct {
	ops      *pagedata.Ops
	catalog  *catalog.Catalog
	autoSync bool

	doc      *pagedata.Document
	history  *history.History[*pagedata.Document]
	ui       UIState
	problems []pagedata.FieldError
}

// NewSession normalizes doc and starts a history with it.
func NewSession(doc *pagedata.Document, opts ...Option) *Session {
	s := &Session{autoSync: true}
	for _, opt := range opts {
		opt(s)
	}
	if s.ops == nil {
		s.ops = pagedata.NewOps()
	}
	if s.catalog == nil {
		s.catalog = catalog.Default()
	}
	if doc == nil {
		doc = pagedata.NewDocument(s.ops.Now())
	}
	s.doc, s.problems = s.ops.Normalize(doc)
	if len(s.problems) > 0 {
		logger.Sugar.Warnw("loaded page has invalid component data", "problems", s.problems)
	}
	s.history = history.NewWith(s.doc)
	s.ui = DefaultUI(s.doc)
	return s
}

// Document is the current snapshot. Callers must treat it as read-only.
func (s *Session) Document() *pagedata.Document { return s.doc }

func (s *Session) UI() UIState { return s.ui }

// SetUI replaces the UI state, e.g. to switch between the states of
// several clients sharing the session.
func (s *Session) SetUI(ui UIState) {
	if !ui.ViewMode.Valid() {
		ui.ViewMode = s.doc.ViewMode()
	}
	if ui.Zoom == 0 {
		ui.Zoom = defaultZoom
	}
	s.ui = ui
	s.pruneSelection()
}

// Problems lists component data issues found when the page was loaded.
func (s *Session) Problems() []pagedata.FieldError { return s.problems }

func (s *Session) CanUndo() bool { return s.history.CanUndo() }

func (s *Session) CanRedo() bool { return s.history.CanRedo() }

// Replace swaps in a document saved elsewhere and restarts history.
func (s *Session) Replace(doc *pagedata.Document) {
	s.doc, s.problems = s.ops.Normalize(doc)
	s.history.Reset(s.doc)
	s.ui.ViewMode = s.doc.ViewMode()
	s.pruneSelection()
}

func (s *Session) result(changed bool) Result {
	return Result{
		Document: s.doc,
		UI:       s.ui,
		Changed:  changed,
		CanUndo:  s.history.CanUndo(),
		CanRedo:  s.history.CanRedo(),
	}
}

// Apply runs one intent. Invalid intents return a *ValidationError and
// leave the session untouched.
func (s *Session) Apply(in Intent) (Result, error) {
	if _, known := payloadTypes[in.Type]; !known {
		return s.result(false), invalid(in.Type, pagedata.FieldError{Field: "type", Msg: fmt.Sprintf("unknown intent %q", in.Type)})
	}
	if in.Type.IsUI() {
		if err := s.applyUI(in); err != nil {
			return s.result(false), err
		}
		return s.result(false), nil
	}

	switch in.Type {
	case Undo:
		return s.step(s.history.Undo), nil
	case Redo:
		return s.step(s.history.Redo), nil
	}

	next, err := s.resolve(in)
	if err != nil {
		return s.result(false), err
	}
	if next == s.doc {
		return s.result(false), nil
	}
	s.history.Commit(next)
	s.doc = next
	s.pruneSelection()
	return s.result(true), nil
}

func (s *Session) step(move func() (*pagedata.Document, bool)) Result {
	snap, ok := move()
	if !ok {
		return s.result(false)
	}
	changed := snap != s.doc
	s.doc = snap
	s.ui.ViewMode = snap.ViewMode()
	s.pruneSelection()
	return s.result(changed)
}

func (s *Session) mode(m pagedata.Breakpoint) pagedata.Breakpoint {
	if m != "" {
		return m
	}
	return s.ui.ViewMode
}

// resolve maps a document intent to its edit.
func (s *Session) resolve(in Intent) (*pagedata.Document, error) {
	doc, ops := s.doc, s.ops
	switch in.Type {
	case AddSection, AddElement:
		p, err := checked[TemplatePayload](in)
		if err != nil {
			return nil, err
		}
		el, err := s.template(in.Type, p, in.Type == AddSection)
		if err != nil {
			return nil, err
		}
		if in.Type == AddSection {
			return ops.AddSection(doc, el, s.ui.ViewMode), nil
		}
		return ops.AddElement(doc, el, s.ui.ViewMode), nil

	case AddChild:
		p, err := checked[AddChildPayload](in)
		if err != nil {
			return nil, err
		}
		el, err := s.template(in.Type, p.TemplatePayload, false)
		if err != nil {
			return nil, err
		}
		return ops.AddChild(doc, p.ParentID, el), nil

	case DeleteElement, MoveUp, MoveDown, Duplicate, Ungroup, TogglePopup:
		p, err := checked[IDPayload](in)
		if err != nil {
			return nil, err
		}
		switch in.Type {
		case DeleteElement:
			return ops.DeleteElement(doc, p.ID), nil
		case MoveUp:
			return ops.MoveElementUp(doc, p.ID), nil
		case MoveDown:
			return ops.MoveElementDown(doc, p.ID), nil
		case Duplicate:
			return ops.DuplicateElement(doc, p.ID), nil
		case Ungroup:
			return ops.UngroupElements(doc, p.ID), nil
		default:
			return ops.TogglePopup(doc, p.ID), nil
		}

	case DeleteChild:
		p, err := checked[DeleteChildPayload](in)
		if err != nil {
			return nil, err
		}
		return ops.DeleteChild(doc, p.ParentID, p.ChildID), nil

	case Group:
		p, err := checked[GroupPayload](in)
		if err != nil {
			return nil, err
		}
		next, groupID := ops.GroupElements(doc, p.IDs)
		if groupID != "" {
			s.ui.SelectedIDs = []string{groupID}
			s.ui.SelectedChild = nil
		}
		return next, nil

	case MoveChild:
		p, err := checked[MoveChildPayload](in)
		if err != nil {
			return nil, err
		}
		if p.Position != nil && (badNumber(p.Position.X) || badNumber(p.Position.Y)) {
			return nil, invalid(in.Type, pagedata.FieldError{Field: "position", Msg: "must be a finite number"})
		}
		return ops.MoveChild(doc, p.SourceParentID, p.ChildID, p.TargetParentID, s.ui.ViewMode, p.Position), nil

	case ReorderChildren:
		p, err := checked[ReorderPayload](in)
		if err != nil {
			return nil, err
		}
		return ops.ReorderChildren(doc, p.ParentID, p.DragIndex, p.DropIndex), nil

	case UpdatePosition:
		p, err := checked[PositionPayload](in)
		if err != nil {
			return nil, err
		}
		mode := s.mode(p.Mode)
		next := ops.UpdatePosition(doc, p.ElementRef, mode, pagedata.PositionPatch{X: p.X, Y: p.Y, Z: p.Z})
		return s.autoSyncFrom(next, p.ElementRef, mode), nil

	case UpdateSize:
		p, err := checked[SizePayload](in)
		if err != nil {
			return nil, err
		}
		mode := s.mode(p.Mode)
		next := ops.UpdateSize(doc, p.ElementRef, mode, pagedata.SizePatch{Width: p.Width, Height: p.Height})
		return s.autoSyncFrom(next, p.ElementRef, mode), nil

	case UpdateStyles:
		p, err := checked[StylesPayload](in)
		if err != nil {
			return nil, err
		}
		mode := s.mode(p.Mode)
		next := ops.UpdateStyles(doc, p.ElementRef, mode, p.Styles)
		return s.autoSyncFrom(next, p.ElementRef, mode), nil

	case UpdateComponentData:
		p, err := checked[ComponentDataPayload](in)
		if err != nil {
			return nil, err
		}
		if el := doc.Lookup(p.ElementRef); el != nil {
			if errs := pagedata.ValidateComponentData(el.Type, p.Data); len(errs) > 0 {
				return nil, invalid(in.Type, errs...)
			}
		}
		mode := s.mode(p.Mode)
		next := ops.UpdateComponentData(doc, p.ElementRef, mode, p.Data)
		return s.autoSyncFrom(next, p.ElementRef, mode), nil

	case ToggleVisibility, ToggleLock, SyncElement:
		p, err := checked[RefPayload](in)
		if err != nil {
			return nil, err
		}
		switch in.Type {
		case ToggleVisibility:
			return ops.ToggleVisibility(doc, p.ElementRef), nil
		case ToggleLock:
			return ops.ToggleLock(doc, p.ElementRef), nil
		default:
			return ops.SyncElement(doc, p.ElementRef, s.mode(p.Mode)), nil
		}

	case UpdateCanvas:
		p, err := checked[CanvasPayload](in)
		if err != nil {
			return nil, err
		}
		return ops.UpdateCanvas(doc, pagedata.CanvasPatch{Background: p.Background}), nil

	case SetViewMode:
		p, err := checked[ViewModePayload](in)
		if err != nil {
			return nil, err
		}
		s.ui.ViewMode = p.Mode
		if doc.ViewMode() == p.Mode && doc.Canvas.Width == p.Mode.CanvasWidth() {
			return doc, nil
		}
		return ops.ChangeViewMode(doc, p.Mode), nil
	}
	return nil, invalid(in.Type, pagedata.FieldError{Field: "type", Msg: "not a document intent"})
}

// autoSyncFrom copies a desktop edit down to the other breakpoints.
// Tablet and mobile edits are overrides and stay where they are.
func (s *Session) autoSyncFrom(next *pagedata.Document, ref pagedata.ElementRef, mode pagedata.Breakpoint) *pagedata.Document {
	if !s.autoSync || mode != pagedata.Desktop || next == s.doc {
		return next
	}
	return s.ops.SyncElement(next, ref, pagedata.Desktop)
}

// template resolves the element an add intent refers to.
func (s *Session) template(t IntentType, p TemplatePayload, section bool) (*pagedata.Element, error) {
	switch {
	case p.Element != nil && p.Template != "":
		return nil, invalid(t, pagedata.FieldError{Field: "template", Msg: "give either template or element, not both"})
	case p.Element != nil:
		if err := checkElement(t, p.Element); err != nil {
			return nil, err
		}
		return p.Element, nil
	case p.Template != "":
		lookup := s.catalog.Element
		if section {
			lookup = s.catalog.Section
		}
		el, ok := lookup(p.Template)
		if !ok {
			return nil, invalid(t, pagedata.FieldError{Field: "template", Msg: fmt.Sprintf("unknown template %q", p.Template)})
		}
		return el, nil
	}
	return nil, invalid(t, pagedata.FieldError{Field: "template", Msg: "is required"})
}

func (s *Session) applyUI(in Intent) error {
	switch in.Type {
	case SelectElement:
		p, err := checked[SelectPayload](in)
		if err != nil {
			return err
		}
		s.ui.SelectedIDs = append([]string{}, p.IDs...)
		s.ui.SelectedChild = nil
	case SelectChild:
		p, err := checked[DeleteChildPayload](in)
		if err != nil {
			return err
		}
		if s.doc.Lookup(pagedata.ElementRef{ID: p.ParentID, ChildID: p.ChildID}) == nil {
			logger.Sugar.Debugw("select child skipped: target not found", "parent", p.ParentID, "child", p.ChildID)
			return nil
		}
		s.ui.SelectedIDs = []string{p.ParentID}
		s.ui.SelectedChild = &ChildSelection{ParentID: p.ParentID, ChildID: p.ChildID}
	case ClearSelection:
		s.ui.SelectedIDs = []string{}
		s.ui.SelectedChild = nil
	case SetZoom:
		p, err := checked[ZoomPayload](in)
		if err != nil {
			return err
		}
		s.ui.Zoom = p.Zoom
	case ToggleGrid:
		s.ui.ShowGrid = !s.ui.ShowGrid
	}
	s.pruneSelection()
	return nil
}

// pruneSelection drops selected ids that no longer exist.
func (s *Session) pruneSelection() {
	kept := make([]string, 0, len(s.ui.SelectedIDs))
	for _, id := range s.ui.SelectedIDs {
		if s.doc.Contains(id) {
			kept = append(kept, id)
		}
	}
	s.ui.SelectedIDs = kept
	if c := s.ui.SelectedChild; c != nil && s.doc.Lookup(pagedata.ElementRef{ID: c.ParentID, ChildID: c.ChildID}) == nil {
		s.ui.SelectedChild = nil
	}
}

// checked extracts the payload of in and runs its validation tags.
func checked[T any](in Intent) (T, error) {
	p, err := payloadAs[T](in)
	if err != nil {
		return p, err
	}
	if err := checkPayload(in.Type, &p); err != nil {
		return p, err
	}
	return p, nil
}

// IsValidation reports whether err rejected an intent's input.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
