package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"pagebuilder/internal/page/model"
	"pagebuilder/internal/page/service"
	"pagebuilder/middleware"
	"pagebuilder/pkg/logger"

	"github.com/go-playground/validator"
)

type PageHandler struct {
	Service *service.PageService
}

func NewPageHandler(service *service.PageService) *PageHandler {
	return &PageHandler{Service: service}
}

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return v
}()

// decode reads a JSON body into req and runs its validation tags.
func decode(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			http.Error(w, "Invalid field: "+verrs[0].Field()+" ("+verrs[0].Tag()+")", http.StatusBadRequest)
			return false
		}
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// fail maps service errors to status codes.
func fail(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrUserNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, service.ErrSlugTaken):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrInvalidPage):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		logger.Sugar.Errorf("Handler: Failed to %s: %v", action, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(middleware.UserIDKey).(string)
	return id
}

func pageID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.URL.Query().Get("pageId")
	if id == "" {
		http.Error(w, "Missing pageId parameter", http.StatusBadRequest)
		return "", false
	}
	return id, true
}

func (h *PageHandler) CreatePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.CreatePageRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}

	id, err := h.Service.CreatePage(userID(r), req)
	if err != nil {
		fail(w, "create page", err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, model.CreatePageResponse{PageID: id})
}

func (h *PageHandler) GetPages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	pages, err := h.Service.ListPages(userID(r))
	if err != nil {
		fail(w, "list pages", err)
		return
	}
	writeJSON(w, pages)
}

func (h *PageHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := pageID(w, r)
	if !ok {
		return
	}

	page, err := h.Service.GetPage(id, userID(r))
	if err != nil {
		fail(w, "get page "+id, err)
		return
	}
	writeJSON(w, page)
}

func (h *PageHandler) SavePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.SavePageRequest
	if !decode(w, r, &req) {
		return
	}
	if string(req.Data) == "null" {
		http.Error(w, "Data cannot be empty", http.StatusBadRequest)
		return
	}

	if err := h.Service.SavePage(userID(r), req); err != nil {
		fail(w, "save page "+req.PageID, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Page saved successfully"))
}

func (h *PageHandler) DeletePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := pageID(w, r)
	if !ok {
		return
	}

	if err := h.Service.DeletePage(id, userID(r)); err != nil {
		fail(w, "delete page "+id, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Page deleted successfully"))
}

func (h *PageHandler) UpdatePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := pageID(w, r)
	if !ok {
		return
	}

	var req model.UpdatePageRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.Service.UpdateTitle(id, userID(r), req.Title); err != nil {
		fail(w, "update title of page "+id, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Page updated successfully"))
}

func (h *PageHandler) AddCollaborator(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.InviteRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.Service.InviteCollaborator(userID(r), req); err != nil {
		fail(w, "invite collaborator", err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Collaborator added successfully"))
}

func (h *PageHandler) GetPageMembers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := pageID(w, r)
	if !ok {
		return
	}

	members, err := h.Service.Members(id, userID(r))
	if err != nil {
		fail(w, "list members of page "+id, err)
		return
	}
	writeJSON(w, members)
}

func (h *PageHandler) Publish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.PublishRequest
	if !decode(w, r, &req) {
		return
	}

	resp, err := h.Service.Publish(userID(r), req)
	if err != nil {
		fail(w, "publish page "+req.PageID, err)
		return
	}
	writeJSON(w, resp)
}

func (h *PageHandler) Unpublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := pageID(w, r)
	if !ok {
		return
	}

	if err := h.Service.Unpublish(id, userID(r)); err != nil {
		fail(w, "unpublish page "+id, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Page unpublished"))
}

// Preview renders the page as the public would see it, without minifying.
func (h *PageHandler) Preview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := pageID(w, r)
	if !ok {
		return
	}

	out, err := h.Service.RenderPreview(id, userID(r))
	if err != nil {
		fail(w, "preview page "+id, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(out)
}

func (h *PageHandler) GetTemplates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sections, elements := h.Service.Catalog.Names()
	writeJSON(w, map[string][]string{"sections": sections, "elements": elements})
}
