package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"pagebuilder/internal/catalog"
	"pagebuilder/internal/editor"
	"pagebuilder/internal/markup"
	"pagebuilder/internal/pagedata"
	"pagebuilder/pkg/logger"
	"pagebuilder/pkg/metrics"
	"pagebuilder/store"
)

const (
	IntentType         = "INTENT"          // Editor intent, payload is {"type", "payload"}
	UndoType           = "UNDO"            // Step back in the page history
	RedoType           = "REDO"            // Step forward in the page history
	StateType          = "STATE"           // Authoritative page document and history flags
	UIStateType        = "UI_STATE"        // Selection, view mode and zoom of one client
	ErrorType          = "ERROR"           // Rejected message, sender only
	CursorType         = "CURSOR"          // User moved their pointer on the canvas
	PresenceUpdateType = "PRESENCE_UPDATE" // A user joined, left or changed selection
	MetadataType       = "METADATA"        // Page title

	RoleWriter = "writer"
	RoleReader = "reader"
)

type WSMessage struct {
	Type    string          `json:"type"`
	PageID  string          `json:"page_id"`
	UserID  string          `json:"user_id"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type UserStatus struct {
	UserID      string              `json:"user_id"`
	Role        string              `json:"role"`
	Cursor      *Cursor             `json:"cursor,omitempty"`
	SelectedIDs []string            `json:"selected_ids"`
	ViewMode    pagedata.Breakpoint `json:"view_mode"`
	LastSeen    time.Time           `json:"last_seen"`
}

type StatePayload struct {
	Document *pagedata.Document `json:"document"`
	Version  uint64             `json:"version"`
	CanUndo  bool               `json:"can_undo"`
	CanRedo  bool               `json:"can_redo"`
}

type ErrorPayload struct {
	Message string                `json:"message"`
	Intent  string                `json:"intent,omitempty"`
	Fields  []pagedata.FieldError `json:"fields,omitempty"`
}

// PageStore is the persistence the hub needs. The page repository
// implements it.
type PageStore interface {
	Get(pageID string) (*store.Page, error)
	GetOwnerAndTitle(pageID string) (ownerID, title string, err error)
	GetCollaboratorRole(pageID, userID string) (string, error)
	UpdateContent(pageID string, data []byte, html string) error
}

// Inbound is a message read from a client, with server-side identity.
type Inbound struct {
	Client *Client
	Msg    WSMessage
}

// room is one open page. The session is the only owner of the document
// and its history; all access goes through the hub lock.
type room struct {
	pageID   string
	title    string
	clients  map[*Client]bool
	session  *editor.Session
	ui       map[*Client]editor.UIState
	presence map[string]UserStatus // userID -> status
	version  uint64
	saved    uint64
}

func (r *room) dirty() bool { return r.version != r.saved }

func (r *room) state() StatePayload {
	return StatePayload{
		Document: r.session.Document(),
		Version:  r.version,
		CanUndo:  r.session.CanUndo(),
		CanRedo:  r.session.CanRedo(),
	}
}

func (r *room) members() []*Client {
	out := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		out = append(out, c)
	}
	return out
}

type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	Incoming   chan Inbound

	store   PageStore
	catalog *catalog.Catalog
	ops     *pagedata.Ops

	mu    sync.Mutex
	rooms map[string]*room
}

func NewHub(ps PageStore, cat *catalog.Catalog) *Hub {
	if cat == nil {
		cat = catalog.Default()
	}
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Incoming:   make(chan Inbound, 64),
		store:      ps,
		catalog:    cat,
		ops:        pagedata.NewOps(),
		rooms:      make(map[string]*room),
	}
}

// Run serializes joins, leaves and edits until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case in := <-h.Incoming:
			h.handle(in)
		}
	}
}

func (h *Hub) openRoom(pageID string) (*room, error) {
	p, err := h.store.Get(pageID)
	if err != nil {
		return nil, fmt.Errorf("load page %s: %w", pageID, err)
	}
	doc, err := pagedata.Decode(p.Data, h.ops.Now())
	if err != nil {
		return nil, fmt.Errorf("decode page %s: %w", pageID, err)
	}
	return &room{
		pageID:   pageID,
		title:    p.Title,
		clients:  make(map[*Client]bool),
		session:  editor.NewSession(doc, editor.WithOps(h.ops), editor.WithCatalog(h.catalog)),
		ui:       make(map[*Client]editor.UIState),
		presence: make(map[string]UserStatus),
	}, nil
}

func (h *Hub) register(client *Client) {
	// Rooms are only created here, on the Run goroutine, so the page can be
	// loaded without holding the lock.
	h.mu.Lock()
	r := h.rooms[client.PageID]
	h.mu.Unlock()

	if r == nil {
		var err error
		r, err = h.openRoom(client.PageID)
		if err != nil {
			logger.Sugar.Errorf("Failed to open room for page %s: %v", client.PageID, err)
			if msg, err := encode(ErrorType, client.PageID, "", ErrorPayload{Message: "page could not be loaded"}); err == nil {
				client.Send <- msg
			}
			close(client.Send)
			return
		}
		h.mu.Lock()
		h.rooms[client.PageID] = r
		h.mu.Unlock()
		metrics.ActiveRooms.Inc()
		logger.Sugar.Infof("Opened room for page %s", client.PageID)
	}

	h.mu.Lock()
	r.clients[client] = true
	ui := editor.DefaultUI(r.session.Document())
	r.ui[client] = ui
	r.presence[client.UserID] = UserStatus{
		UserID:      client.UserID,
		Role:        client.Role,
		SelectedIDs: ui.SelectedIDs,
		ViewMode:    ui.ViewMode,
		LastSeen:    time.Now(),
	}
	state := r.state()
	title := r.title
	h.mu.Unlock()
	metrics.ConnectedClients.Inc()

	// The new client gets the full page before anything else.
	for _, m := range []struct {
		kind    string
		payload any
	}{
		{StateType, state},
		{UIStateType, ui},
		{MetadataType, map[string]string{"title": title, "role": client.Role}},
	} {
		msg, err := encode(m.kind, client.PageID, client.UserID, m.payload)
		if err != nil {
			logger.Sugar.Errorf("Error marshalling %s for %s: %v", m.kind, client.UserID, err)
			continue
		}
		h.send([]*Client{client}, msg)
	}

	h.broadcastPresenceUpdate(client.PageID)
}

// removeClient drops client from its room. The last client leaving flushes
// unsaved edits and closes the room.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	r := h.rooms[client.PageID]
	if r == nil || !r.clients[client] {
		h.mu.Unlock()
		return
	}
	delete(r.clients, client)
	delete(r.ui, client)
	if !r.hasUser(client.UserID) {
		delete(r.presence, client.UserID)
	}
	close(client.Send)
	metrics.ConnectedClients.Dec()

	empty := len(r.clients) == 0
	var flush *pending
	if empty {
		delete(h.rooms, client.PageID)
		metrics.ActiveRooms.Dec()
		if r.dirty() {
			flush = &pending{room: r, pageID: r.pageID, title: r.title, doc: r.session.Document(), version: r.version}
		}
	}
	h.mu.Unlock()

	if empty {
		if flush != nil {
			_ = h.persist(*flush, "close")
		}
		logger.Sugar.Infof("Closed and cleaned up empty room: %s", client.PageID)
		return
	}
	h.broadcastPresenceUpdate(client.PageID)
}

func (r *room) hasUser(userID string) bool {
	for c := range r.clients {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

func (h *Hub) handle(in Inbound) {
	switch in.Msg.Type {
	case IntentType, UndoType, RedoType:
		h.applyIntent(in.Client, in.Msg)
	case CursorType:
		h.moveCursor(in.Client, in.Msg)
	default:
		h.sendError(in.Client, ErrorPayload{Message: fmt.Sprintf("unknown message type %q", in.Msg.Type)})
	}
}

func (h *Hub) applyIntent(client *Client, msg WSMessage) {
	var intent editor.Intent
	var err error
	switch msg.Type {
	case UndoType:
		intent = editor.Intent{Type: editor.Undo}
	case RedoType:
		intent = editor.Intent{Type: editor.Redo}
	default:
		intent, err = editor.DecodeIntent(msg.Payload)
	}
	if err != nil {
		h.reject(client, intent.Type, err)
		return
	}

	if client.Role != RoleWriter && !intent.Type.IsUI() {
		logger.Sugar.Warnf("Permission denied: user %s (role %s) sent %s on page %s", client.UserID, client.Role, intent.Type, client.PageID)
		metrics.IntentsRejected.WithLabelValues(string(intent.Type), "forbidden").Inc()
		h.sendError(client, ErrorPayload{Message: "read-only access", Intent: string(intent.Type)})
		return
	}

	h.mu.Lock()
	r := h.rooms[client.PageID]
	if r == nil || !r.clients[client] {
		h.mu.Unlock()
		return
	}
	before := r.ui[client].SelectedIDs
	r.session.SetUI(r.ui[client])
	res, err := r.session.Apply(intent)
	r.ui[client] = r.session.UI()
	if err != nil {
		h.mu.Unlock()
		h.reject(client, intent.Type, err)
		return
	}

	var recipients []*Client
	if res.Changed {
		r.version++
		recipients = r.members()
	} else if !intent.Type.IsUI() {
		// Nothing changed; the sender still learns the authoritative state.
		recipients = []*Client{client}
	}
	state := r.state()

	selectionMoved := !slices.Equal(before, res.UI.SelectedIDs)
	if st, ok := r.presence[client.UserID]; ok {
		st.SelectedIDs = res.UI.SelectedIDs
		st.ViewMode = res.UI.ViewMode
		st.LastSeen = time.Now()
		r.presence[client.UserID] = st
	}
	h.mu.Unlock()

	metrics.IntentsApplied.WithLabelValues(string(intent.Type)).Inc()
	if res.Changed && (intent.Type == editor.Undo || intent.Type == editor.Redo) {
		metrics.HistorySteps.WithLabelValues(string(intent.Type)).Inc()
	}

	// Snapshots are never mutated after commit, so marshalling outside the
	// lock is safe.
	if len(recipients) > 0 {
		if payload, err := encode(StateType, client.PageID, client.UserID, state); err == nil {
			h.send(recipients, payload)
		} else {
			logger.Sugar.Errorf("Error marshalling state of page %s: %v", client.PageID, err)
		}
	}
	if payload, err := encode(UIStateType, client.PageID, client.UserID, res.UI); err == nil {
		h.send([]*Client{client}, payload)
	}
	if selectionMoved {
		h.broadcastPresenceUpdate(client.PageID)
	}
}

func (h *Hub) reject(client *Client, t editor.IntentType, err error) {
	reason := "invalid"
	p := ErrorPayload{Message: err.Error(), Intent: string(t)}
	if t == "" {
		t = "unknown"
	}
	var verr *editor.ValidationError
	if errors.As(err, &verr) {
		p.Fields = verr.Fields
	} else {
		reason = "malformed"
	}
	metrics.IntentsRejected.WithLabelValues(string(t), reason).Inc()
	logger.Sugar.Debugw("intent rejected", "page", client.PageID, "user", client.UserID, "error", err)
	h.sendError(client, p)
}

func (h *Hub) moveCursor(client *Client, msg WSMessage) {
	var cur Cursor
	if err := json.Unmarshal(msg.Payload, &cur); err != nil {
		h.sendError(client, ErrorPayload{Message: "invalid cursor payload"})
		return
	}

	h.mu.Lock()
	r := h.rooms[client.PageID]
	if r == nil || !r.clients[client] {
		h.mu.Unlock()
		return
	}
	if st, ok := r.presence[client.UserID]; ok {
		st.Cursor = &cur
		st.LastSeen = time.Now()
		r.presence[client.UserID] = st
	}
	others := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		if c != client {
			others = append(others, c)
		}
	}
	h.mu.Unlock()

	payload, err := encode(CursorType, client.PageID, client.UserID, cur)
	if err != nil {
		return
	}
	h.send(others, payload)
}

func (h *Hub) sendError(client *Client, p ErrorPayload) {
	payload, err := encode(ErrorType, client.PageID, client.UserID, p)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling error message: %v", err)
		return
	}
	h.send([]*Client{client}, payload)
}

// send delivers payload without blocking. A client whose buffer is full is
// lagging and gets dropped.
func (h *Hub) send(clients []*Client, payload []byte) {
	for _, client := range clients {
		lagging := false
		h.mu.Lock()
		// Membership is checked under the lock so a closed Send is never written.
		if r := h.rooms[client.PageID]; r != nil && r.clients[client] {
			select {
			case client.Send <- payload:
			default:
				lagging = true
			}
		}
		h.mu.Unlock()
		if lagging {
			logger.Sugar.Warnf("Client %s's send buffer is full. Unregistering.", client.UserID)
			h.removeClient(client)
		}
	}
}

func (h *Hub) broadcastPresenceUpdate(pageID string) {
	var statuses []UserStatus
	var clientsToSend []*Client

	h.mu.Lock()
	if r, ok := h.rooms[pageID]; ok {
		statuses = make([]UserStatus, 0, len(r.presence))
		for _, st := range r.presence {
			statuses = append(statuses, st)
		}
		clientsToSend = r.members()
	}
	h.mu.Unlock()

	if len(clientsToSend) == 0 {
		return
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].UserID < statuses[j].UserID })

	payload, err := encode(PresenceUpdateType, pageID, "", statuses)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling presence broadcast: %v", err)
		return
	}
	h.send(clientsToSend, payload)
}

// pending is a snapshot of a dirty room taken under the lock.
type pending struct {
	room    *room
	pageID  string
	title   string
	doc     *pagedata.Document
	version uint64
}

func (h *Hub) persist(p pending, trigger string) error {
	err := func() error {
		data, err := json.Marshal(p.doc)
		if err != nil {
			return fmt.Errorf("encode page %s: %w", p.pageID, err)
		}
		html, err := markup.Render(p.doc, markup.Options{Title: p.title})
		if err != nil {
			return fmt.Errorf("render page %s: %w", p.pageID, err)
		}
		return h.store.UpdateContent(p.pageID, data, string(html))
	}()
	if err != nil {
		metrics.Saves.WithLabelValues(trigger, "error").Inc()
		logger.Sugar.Errorf("Failed to save page %s (%s): %v", p.pageID, trigger, err)
		return err
	}
	metrics.Saves.WithLabelValues(trigger, "ok").Inc()
	return nil
}

// SaveWorker flushes dirty rooms every interval, and once more when ctx is
// done.
func (h *Hub) SaveWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.saveDirty()
			return
		case <-ticker.C:
			h.saveDirty()
		}
	}
}

func (h *Hub) saveDirty() {
	var toSave []pending
	h.mu.Lock()
	for id, r := range h.rooms {
		if r.dirty() {
			toSave = append(toSave, pending{room: r, pageID: id, title: r.title, doc: r.session.Document(), version: r.version})
		}
	}
	h.mu.Unlock()

	// I/O happens without the hub lock.
	for _, p := range toSave {
		if err := h.persist(p, "autosave"); err != nil {
			continue // stays dirty, retried on the next tick
		}
		h.mu.Lock()
		// Only mark clean if nothing changed since the snapshot was taken.
		if h.rooms[p.pageID] == p.room && p.room.version == p.version {
			p.room.saved = p.version
		}
		h.mu.Unlock()
		logger.Sugar.Infof("Auto-saved page: %s", p.pageID)
	}
}

// Snapshot returns the live document of an open page.
func (h *Hub) Snapshot(pageID string) (*pagedata.Document, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[pageID]
	if !ok {
		return nil, false
	}
	return r.session.Document(), true
}

// ReplaceDocument pushes a document saved through the API into an open
// room. History restarts and every member receives the new state.
func (h *Hub) ReplaceDocument(pageID string, doc *pagedata.Document) {
	h.mu.Lock()
	r, ok := h.rooms[pageID]
	if !ok {
		h.mu.Unlock()
		return
	}
	r.session.Replace(doc)
	for c, ui := range r.ui {
		r.session.SetUI(ui)
		r.ui[c] = r.session.UI()
	}
	r.version++
	r.saved = r.version
	state := r.state()
	clients := r.members()
	h.mu.Unlock()

	payload, err := encode(StateType, pageID, "", state)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling state of page %s: %v", pageID, err)
		return
	}
	h.send(clients, payload)
}

// Rename updates the title of an open room and tells its members.
func (h *Hub) Rename(pageID, title string) {
	h.mu.Lock()
	r, ok := h.rooms[pageID]
	if ok {
		r.title = title
	}
	var clients []*Client
	if ok {
		clients = r.members()
	}
	h.mu.Unlock()

	if len(clients) == 0 {
		return
	}
	payload, err := encode(MetadataType, pageID, "", map[string]string{"title": title})
	if err != nil {
		return
	}
	h.send(clients, payload)
}

// RemovePage drops a deleted page from memory without saving it and
// disconnects its clients.
func (h *Hub) RemovePage(pageID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[pageID]
	if !ok {
		return
	}
	delete(h.rooms, pageID)
	metrics.ActiveRooms.Dec()
	for client := range r.clients {
		close(client.Send) // writePump sends a close frame and shuts the connection
		metrics.ConnectedClients.Dec()
	}
}

func encode(kind, pageID, userID string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WSMessage{Type: kind, PageID: pageID, UserID: userID, Payload: raw})
}
