package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"pagebuilder/pkg/logger"
)

// PublishedPages looks up the frozen markup of a published page.
type PublishedPages interface {
	GetPublishedHTML(slug string) (string, error)
}

// PublicHandler serves published pages at /p/{slug} without authentication.
type PublicHandler struct {
	Pages PublishedPages
}

func NewPublicHandler(pages PublishedPages) *PublicHandler {
	return &PublicHandler{Pages: pages}
}

func (h *PublicHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	slug := strings.Trim(strings.TrimPrefix(r.URL.Path, "/p/"), "/")
	if slug == "" || strings.Contains(slug, "/") {
		http.NotFound(w, r)
		return
	}

	page, err := h.Pages.GetPublishedHTML(slug)
	if errors.Is(err, sql.ErrNoRows) {
		http.NotFound(w, r)
		return
	} else if err != nil {
		logger.Sugar.Errorf("Handler: Failed to serve published page %s: %v", slug, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.Write([]byte(page))
}
