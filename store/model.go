package store

import (
	"database/sql"
	"time"
)

// Page is one row of the pages table.
type Page struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Slug        sql.NullString `json:"-"`
	Data        []byte         `json:"-"` // page document as JSON
	HTML        string         `json:"-"` // last rendered markup
	OwnerID     string         `json:"owner_id"`
	Published   bool           `json:"published"`
	PublishedAt sql.NullTime   `json:"-"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Collaborator is one row of the collaborators table.
type Collaborator struct {
	PageID string `json:"page_id"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}
