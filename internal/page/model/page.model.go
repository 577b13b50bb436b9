package model

import (
	"encoding/json"
	"time"
)

type CreatePageResponse struct {
	PageID string `json:"page_id"`
}

type CollaboratorInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Avatar string `json:"avatar,omitempty"`
}

type PageMetadata struct {
	ID        string             `json:"id"`
	Title     string             `json:"title"`
	UpdatedAt time.Time          `json:"updated_at"`
	Snippet   string             `json:"snippet"`
	Sections  int                `json:"sections"`
	Published bool               `json:"published"`
	Slug      string             `json:"slug,omitempty"`
	IsOwner   bool               `json:"is_owner"`
	Collab    []CollaboratorInfo `json:"collab"`
}

type PageResponse struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Role      string          `json:"role"`
	Published bool            `json:"published"`
	Slug      string          `json:"slug,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
	Live      bool            `json:"live"` // data comes from an open editing room
	Data      json.RawMessage `json:"data"`
}

// CreatePageRequest may seed the page with catalog sections, in order.
type CreatePageRequest struct {
	Title    string   `json:"title" validate:"max=200"`
	Sections []string `json:"sections" validate:"max=20"`
}

type UpdatePageRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

type InviteRequest struct {
	PageID string `json:"page_id" validate:"required"`
	Email  string `json:"email" validate:"required,email"`
	Role   string `json:"role" validate:"required,oneof=writer reader"`
}

type SavePageRequest struct {
	PageID string          `json:"page_id" validate:"required"`
	Data   json.RawMessage `json:"data" validate:"required"`
}

type PublishRequest struct {
	PageID string `json:"page_id" validate:"required"`
	Slug   string `json:"slug" validate:"max=80"`
}

type PublishResponse struct {
	Slug string `json:"slug"`
	URL  string `json:"url"`
}
