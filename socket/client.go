package socket

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"pagebuilder/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 1 << 20 // inline elements can carry sizable component data
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS middleware in front of the API.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	PageID string
	UserID string
	Send   chan []byte
	Role   string
}

// ServeWs joins the caller to the room of the page named by the pageId
// query parameter. Access is resolved before the upgrade: owners write,
// collaborators get their stored role, anyone else is refused.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, userID string) {
	pageID := r.URL.Query().Get("pageId")
	if pageID == "" {
		http.Error(w, "Missing pageId", http.StatusBadRequest)
		return
	}

	ownerID, _, err := hub.store.GetOwnerAndTitle(pageID)
	if errors.Is(err, sql.ErrNoRows) {
		logger.Sugar.Warnf("Connection rejected: page %s not found", pageID)
		http.Error(w, "Page not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	role := RoleWriter
	if ownerID != userID {
		dbRole, err := hub.store.GetCollaboratorRole(pageID, userID)
		if errors.Is(err, sql.ErrNoRows) {
			logger.Sugar.Warnf("Connection rejected: user %s has no access to page %s", userID, pageID)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		} else if err != nil {
			http.Error(w, "Database error", http.StatusInternalServerError)
			return
		}
		role = RoleReader
		if dbRole == RoleWriter {
			role = RoleWriter
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	client := &Client{
		Hub:    hub,
		Conn:   conn,
		PageID: pageID,
		UserID: userID,
		Role:   role,
		Send:   make(chan []byte, 256),
	}
	client.Hub.Register <- client

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, rawMessage, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("error: %v", err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(rawMessage, &msg); err != nil {
			logger.Sugar.Errorf("Error unmarshalling message: %v", err)
			continue
		}

		// Server-authoritative identity, never what the client claims.
		msg.PageID = c.PageID
		msg.UserID = c.UserID

		c.Hub.Incoming <- Inbound{Client: c, Msg: msg}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
