package service

import (
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"pagebuilder/internal/catalog"
	"pagebuilder/internal/page/model"
	"pagebuilder/internal/page/repository"
	"pagebuilder/internal/pagedata"
	"pagebuilder/socket"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ownerQuery = "SELECT owner_id, title FROM pages WHERE id = \\$1"

var pageRowColumns = []string{"id", "title", "slug", "data", "html", "owner_id", "published", "published_at", "updated_at"}

func newTestService(t *testing.T) (*PageService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := repository.NewPageRepository(db)
	cat := catalog.Default()
	return NewPageService(repo, socket.NewHub(repo, cat), cat, "https://pages.example.com/"), mock
}

func heroPage(t *testing.T) []byte {
	t.Helper()
	hero, ok := catalog.Default().Section("hero")
	require.True(t, ok)
	doc := pagedata.NewOps().AddSection(pagedata.NewDocument(time.Now()), hero, pagedata.Desktop)
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return data
}

func expectAccess(mock sqlmock.Sqlmock, pageID, ownerID, userID, role string) {
	mock.ExpectQuery(ownerQuery).WithArgs(pageID).
		WillReturnRows(sqlmock.NewRows([]string{"owner_id", "title"}).AddRow(ownerID, "My Launch Page!"))
	if ownerID == userID {
		return
	}
	rows := sqlmock.NewRows([]string{"role"})
	if role != "" {
		rows.AddRow(role)
	}
	mock.ExpectQuery("SELECT role FROM collaborators").WithArgs(pageID, userID).WillReturnRows(rows)
}

func TestCreatePage(t *testing.T) {
	s, mock := newTestService(t)

	mock.ExpectExec("INSERT INTO pages").
		WithArgs(sqlmock.AnyArg(), "Launch", sqlmock.AnyArg(), sqlmock.AnyArg(), "user1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := s.CreatePage("user1", model.CreatePageRequest{Title: " Launch ", Sections: []string{"hero", "cta"}})
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePageUnknownSection(t *testing.T) {
	s, mock := newTestService(t)

	_, err := s.CreatePage("user1", model.CreatePageRequest{Sections: []string{"nope"}})
	assert.ErrorIs(t, err, ErrInvalidPage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePage(t *testing.T) {
	data := heroPage(t)

	t.Run("writer", func(t *testing.T) {
		s, mock := newTestService(t)
		expectAccess(mock, "p1", "user1", "user2", "writer")
		mock.ExpectExec("UPDATE pages SET data = \\$1, html = \\$2").
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "p1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.SavePage("user2", model.SavePageRequest{PageID: "p1", Data: data}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reader", func(t *testing.T) {
		s, mock := newTestService(t)
		expectAccess(mock, "p1", "user1", "user3", "reader")

		err := s.SavePage("user3", model.SavePageRequest{PageID: "p1", Data: data})
		assert.ErrorIs(t, err, ErrForbidden)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stranger", func(t *testing.T) {
		s, mock := newTestService(t)
		expectAccess(mock, "p1", "user1", "user4", "")

		err := s.SavePage("user4", model.SavePageRequest{PageID: "p1", Data: data})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("broken data", func(t *testing.T) {
		s, mock := newTestService(t)
		expectAccess(mock, "p1", "user1", "user1", "")

		err := s.SavePage("user1", model.SavePageRequest{PageID: "p1", Data: json.RawMessage(`{"elements":7}`)})
		assert.ErrorIs(t, err, ErrInvalidPage)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("bad component data", func(t *testing.T) {
		s, mock := newTestService(t)
		expectAccess(mock, "p1", "user1", "user1", "")

		bad := `{"canvas":{"width":1200,"height":400},"elements":[{"id":"s1","type":"section",
			"componentData":{"overlayOpacity":"dark"}}]}`
		err := s.SavePage("user1", model.SavePageRequest{PageID: "p1", Data: json.RawMessage(bad)})
		assert.ErrorIs(t, err, ErrInvalidPage)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDeletePage(t *testing.T) {
	t.Run("owner", func(t *testing.T) {
		s, mock := newTestService(t)
		expectAccess(mock, "p1", "user1", "user1", "")
		mock.ExpectExec("DELETE FROM pages WHERE id = \\$1").WithArgs("p1").WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.DeletePage("p1", "user1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("writer", func(t *testing.T) {
		s, mock := newTestService(t)
		expectAccess(mock, "p1", "user1", "user2", "writer")
		assert.ErrorIs(t, s.DeletePage("p1", "user2"), ErrForbidden)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		s, mock := newTestService(t)
		mock.ExpectQuery(ownerQuery).WithArgs("p9").WillReturnError(sql.ErrNoRows)
		assert.ErrorIs(t, s.DeletePage("p9", "user1"), ErrNotFound)
	})
}

func TestUpdateTitleNotOwner(t *testing.T) {
	s, mock := newTestService(t)
	mock.ExpectExec("UPDATE pages SET title").
		WithArgs("New", "p1", "user2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, s.UpdateTitle("p1", "user2", "New"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInviteCollaborator(t *testing.T) {
	s, mock := newTestService(t)
	req := model.InviteRequest{PageID: "p1", Email: "friend@example.com", Role: "reader"}

	mock.ExpectQuery("SELECT owner_id FROM pages").WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow("user1"))
	assert.ErrorIs(t, s.InviteCollaborator("user2", req), ErrForbidden)

	mock.ExpectQuery("SELECT owner_id FROM pages").WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow("user1"))
	mock.ExpectQuery("SELECT id FROM auth.users WHERE email = \\$1").WithArgs("friend@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("user5"))
	mock.ExpectExec("INSERT INTO collaborators").WithArgs("p1", "user5", "reader").
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, s.InviteCollaborator("user1", req))

	mock.ExpectQuery("SELECT owner_id FROM pages").WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow("user1"))
	mock.ExpectQuery("SELECT id FROM auth.users").WithArgs("friend@example.com").
		WillReturnError(sql.ErrNoRows)
	assert.ErrorIs(t, s.InviteCollaborator("user1", req), ErrUserNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublish(t *testing.T) {
	s, mock := newTestService(t)
	expectAccess(mock, "p1", "user1", "user1", "")
	mock.ExpectQuery("SELECT EXISTS\\(SELECT 1 FROM pages WHERE slug = \\$1").
		WithArgs("my-launch-page", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT id, title, slug").WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(pageRowColumns).
			AddRow("p1", "My Launch Page!", nil, heroPage(t), "", "user1", false, nil, time.Now()))
	mock.ExpectExec("UPDATE pages SET slug = \\$1, published_html = \\$2").
		WithArgs("my-launch-page", sqlmock.AnyArg(), "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	resp, err := s.Publish("user1", model.PublishRequest{PageID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, "my-launch-page", resp.Slug)
	assert.Equal(t, "https://pages.example.com/p/my-launch-page", resp.URL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublishSlugTaken(t *testing.T) {
	s, mock := newTestService(t)
	expectAccess(mock, "p1", "user1", "user2", "writer")
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("spring-sale", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := s.Publish("user2", model.PublishRequest{PageID: "p1", Slug: "Spring Sale"})
	assert.ErrorIs(t, err, ErrSlugTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPages(t *testing.T) {
	s, mock := newTestService(t)
	mock.ExpectQuery("SELECT (.+) FROM pages WHERE owner_id = \\$1").WithArgs("user1").
		WillReturnRows(sqlmock.NewRows(pageRowColumns).
			AddRow("p1", "Launch", "launch", heroPage(t), "", "user1", true, time.Now(), time.Now()).
			AddRow("p2", "Shared", nil, []byte(``), "", "user9", false, nil, time.Now()))
	mock.ExpectQuery("SELECT u.id, u.email, 'owner' as role").WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "role"}).AddRow("user1", "me@example.com", "owner"))
	mock.ExpectQuery("SELECT u.id, u.email, 'owner' as role").WithArgs("p2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "role"}))

	pages, err := s.ListPages("user1")
	require.NoError(t, err)
	require.Len(t, pages, 2)

	assert.True(t, pages[0].IsOwner)
	assert.True(t, pages[0].Published)
	assert.Equal(t, "launch", pages[0].Slug)
	assert.Equal(t, 1, pages[0].Sections)
	assert.Equal(t, "Build something people want", pages[0].Snippet)
	assert.Len(t, pages[0].Collab, 1)

	assert.False(t, pages[1].IsOwner)
	assert.Equal(t, 0, pages[1].Sections)
	assert.NotNil(t, pages[1].Collab)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnippet(t *testing.T) {
	doc := pagedata.NewDocument(time.Now())
	p := pagedata.NewElement("p", pagedata.TypeParagraph)
	p.ComponentData = pagedata.ComponentData{"content": "Fallback text"}
	doc.Elements = []*pagedata.Element{pagedata.InitializeResponsiveData(p)}
	assert.Equal(t, "Fallback text", snippet(doc))

	h := pagedata.NewElement("h", pagedata.TypeHeading)
	h.ComponentData = pagedata.ComponentData{"content": "<b>Fast</b>  &amp;\n cheap <script>x()</script>"}
	doc.Elements = append(doc.Elements, pagedata.InitializeResponsiveData(h))
	assert.Equal(t, "Fast & cheap", snippet(doc))

	long := pagedata.NewElement("h2", pagedata.TypeHeading)
	long.ComponentData = pagedata.ComponentData{"content": strings.Repeat("é", 120)}
	doc.Elements = []*pagedata.Element{pagedata.InitializeResponsiveData(long)}
	got := snippet(doc)
	assert.Equal(t, strings.Repeat("é", 100)+"...", got)
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"My Launch Page!":  "my-launch-page",
		"  --Spring  Sale": "spring-sale",
		"日本":               "",
		"a_b.c":            "a-b-c",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}
