package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pagebuilder/internal/catalog"
	"pagebuilder/internal/page/model"
	"pagebuilder/internal/page/repository"
	"pagebuilder/internal/page/service"
	"pagebuilder/internal/pagedata"
	"pagebuilder/middleware"
	"pagebuilder/socket"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (*PageHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := repository.NewPageRepository(db)
	cat := catalog.Default()
	return NewPageHandler(service.NewPageService(repo, socket.NewHub(repo, cat), cat, "")), mock
}

func request(method, target, body, userID string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))
}

func TestCreatePageHandler(t *testing.T) {
	h, mock := newTestHandler(t)

	rr := httptest.NewRecorder()
	h.CreatePage(rr, request(http.MethodGet, "/api/pages/create", "", "user1"))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	mock.ExpectExec("INSERT INTO pages").
		WithArgs(sqlmock.AnyArg(), "Untitled Page", sqlmock.AnyArg(), sqlmock.AnyArg(), "user1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	rr = httptest.NewRecorder()
	h.CreatePage(rr, request(http.MethodPost, "/api/pages/create", "", "user1"))
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp model.CreatePageResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.NotEmpty(t, resp.PageID)

	rr = httptest.NewRecorder()
	h.CreatePage(rr, request(http.MethodPost, "/api/pages/create", `{"sections":["nope"]}`, "user1"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInviteValidation(t *testing.T) {
	h, mock := newTestHandler(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad json", `{`, "Invalid request body"},
		{"bad email", `{"page_id":"p1","email":"nope","role":"reader"}`, "email"},
		{"old role", `{"page_id":"p1","email":"a@example.com","role":"reviewer"}`, "role"},
		{"missing page", `{"email":"a@example.com","role":"writer"}`, "page_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.AddCollaborator(rr, request(http.MethodPost, "/api/pages/invite", tt.body, "user1"))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.want)
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorStatusCodes(t *testing.T) {
	t.Run("missing pageId", func(t *testing.T) {
		h, _ := newTestHandler(t)
		rr := httptest.NewRecorder()
		h.GetPage(rr, request(http.MethodGet, "/api/pages/get", "", "user1"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("not found", func(t *testing.T) {
		h, mock := newTestHandler(t)
		mock.ExpectQuery("SELECT owner_id, title FROM pages").WithArgs("p9").
			WillReturnRows(sqlmock.NewRows([]string{"owner_id", "title"}))
		rr := httptest.NewRecorder()
		h.GetPage(rr, request(http.MethodGet, "/api/pages/get?pageId=p9", "", "user1"))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("forbidden", func(t *testing.T) {
		h, mock := newTestHandler(t)
		mock.ExpectQuery("SELECT owner_id, title FROM pages").WithArgs("p1").
			WillReturnRows(sqlmock.NewRows([]string{"owner_id", "title"}).AddRow("user1", "Launch"))
		mock.ExpectQuery("SELECT role FROM collaborators").WithArgs("p1", "user2").
			WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("writer"))
		rr := httptest.NewRecorder()
		h.DeletePage(rr, request(http.MethodDelete, "/api/pages/delete?pageId=p1", "", "user2"))
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("slug taken", func(t *testing.T) {
		h, mock := newTestHandler(t)
		mock.ExpectQuery("SELECT owner_id, title FROM pages").WithArgs("p1").
			WillReturnRows(sqlmock.NewRows([]string{"owner_id", "title"}).AddRow("user1", "Launch"))
		mock.ExpectQuery("SELECT EXISTS").WithArgs("launch", "p1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		rr := httptest.NewRecorder()
		h.Publish(rr, request(http.MethodPost, "/api/pages/publish", `{"page_id":"p1"}`, "user1"))
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("database down", func(t *testing.T) {
		h, mock := newTestHandler(t)
		mock.ExpectQuery("SELECT (.+) FROM pages WHERE owner_id").WillReturnError(assert.AnError)
		rr := httptest.NewRecorder()
		h.GetPages(rr, request(http.MethodGet, "/api/pages", "", "user1"))
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), assert.AnError.Error())
	})
}

func TestPreviewServesHTML(t *testing.T) {
	h, mock := newTestHandler(t)

	hero, _ := catalog.Default().Section("hero")
	doc := pagedata.NewOps().AddSection(pagedata.NewDocument(time.Now()), hero, pagedata.Desktop)
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT owner_id, title FROM pages").WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"owner_id", "title"}).AddRow("user1", "Launch"))
	mock.ExpectQuery("SELECT id, title, slug").WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "slug", "data", "html", "owner_id", "published", "published_at", "updated_at"}).
			AddRow("p1", "Launch", nil, data, "", "user1", false, nil, time.Now()))

	rr := httptest.NewRecorder()
	h.Preview(rr, request(http.MethodGet, "/api/pages/preview?pageId=p1", "", "user1"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "<title>Launch</title>")
	assert.Contains(t, rr.Body.String(), "Build something people want")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTemplates(t *testing.T) {
	h, _ := newTestHandler(t)
	rr := httptest.NewRecorder()
	h.GetTemplates(rr, request(http.MethodGet, "/api/templates", "", "user1"))
	require.Equal(t, http.StatusOK, rr.Code)

	var names map[string][]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&names))
	assert.Contains(t, names["sections"], "hero")
	assert.Contains(t, names["elements"], "popup")
}
