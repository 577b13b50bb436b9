package repository

import (
	"database/sql"
	"errors"

	"pagebuilder/internal/page/model"
	"pagebuilder/pkg/logger"
	"pagebuilder/store"
)

type PageRepository struct {
	DB *sql.DB
}

func NewPageRepository(db *sql.DB) *PageRepository {
	return &PageRepository{DB: db}
}

const pageColumns = `id, title, slug, data, html, owner_id, published, published_at, updated_at`

func scanPage(row interface{ Scan(...any) error }) (*store.Page, error) {
	var p store.Page
	err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.Data, &p.HTML, &p.OwnerID, &p.Published, &p.PublishedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PageRepository) Create(p *store.Page) error {
	_, err := r.DB.Exec(`INSERT INTO pages (id, title, data, html, owner_id, updated_at) VALUES ($1, $2, $3, $4, $5, NOW())`,
		p.ID, p.Title, p.Data, p.HTML, p.OwnerID)
	if err != nil {
		logger.Sugar.Errorf("Failed to create page: %v", err)
	}
	return err
}

func (r *PageRepository) Get(pageID string) (*store.Page, error) {
	p, err := scanPage(r.DB.QueryRow(`SELECT `+pageColumns+` FROM pages WHERE id = $1`, pageID))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		logger.Sugar.Errorf("Failed to load page %s: %v", pageID, err)
	}
	return p, err
}

// GetOwnerAndTitle is the cheap lookup used when a client joins a room.
func (r *PageRepository) GetOwnerAndTitle(pageID string) (ownerID, title string, err error) {
	err = r.DB.QueryRow("SELECT owner_id, title FROM pages WHERE id = $1", pageID).Scan(&ownerID, &title)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		logger.Sugar.Errorf("Failed to get owner for page %s: %v", pageID, err)
	}
	return ownerID, title, err
}

func (r *PageRepository) GetOwnerID(pageID string) (string, error) {
	var ownerID string
	err := r.DB.QueryRow("SELECT owner_id FROM pages WHERE id = $1", pageID).Scan(&ownerID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		logger.Sugar.Errorf("Failed to get owner ID for page %s: %v", pageID, err)
	}
	return ownerID, err
}

func (r *PageRepository) GetCollaboratorRole(pageID, userID string) (string, error) {
	var role string
	err := r.DB.QueryRow("SELECT role FROM collaborators WHERE page_id = $1 AND user_id = $2", pageID, userID).Scan(&role)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		logger.Sugar.Errorf("Failed to get collaborator role: %v", err)
	}
	return role, err
}

// UpdateContent stores the page document together with its rendered markup.
func (r *PageRepository) UpdateContent(pageID string, data []byte, html string) error {
	_, err := r.DB.Exec(`UPDATE pages SET data = $1, html = $2, updated_at = NOW() WHERE id = $3`, data, html, pageID)
	if err != nil {
		logger.Sugar.Errorf("Failed to update content for page %s: %v", pageID, err)
	}
	return err
}

func (r *PageRepository) Delete(pageID string) error {
	_, err := r.DB.Exec("DELETE FROM pages WHERE id = $1", pageID)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete page %s: %v", pageID, err)
	}
	return err
}

func (r *PageRepository) UpdateTitle(pageID, title, ownerID string) (int64, error) {
	result, err := r.DB.Exec("UPDATE pages SET title = $1, updated_at = NOW() WHERE id = $2 AND owner_id = $3", title, pageID, ownerID)
	if err != nil {
		logger.Sugar.Errorf("Failed to update title for page %s: %v", pageID, err)
		return 0, err
	}
	return result.RowsAffected()
}

func (r *PageRepository) GetUserByEmail(email string) (string, error) {
	var userID string
	err := r.DB.QueryRow("SELECT id FROM auth.users WHERE email = $1", email).Scan(&userID)
	if err != nil {
		logger.Sugar.Errorf("Failed to get user by email %s: %v", email, err)
	}
	return userID, err
}

// AddCollaborator inserts c or changes the role of an existing collaborator.
func (r *PageRepository) AddCollaborator(c store.Collaborator) error {
	_, err := r.DB.Exec(`INSERT INTO collaborators (page_id, user_id, role) VALUES ($1, $2, $3)
		ON CONFLICT (page_id, user_id) DO UPDATE SET role = $3`, c.PageID, c.UserID, c.Role)
	if err != nil {
		logger.Sugar.Errorf("Failed to add collaborator %s to page %s: %v", c.UserID, c.PageID, err)
	}
	return err
}

// GetPagesByUser lists pages owned by or shared with userID, newest first.
func (r *PageRepository) GetPagesByUser(userID string) ([]store.Page, error) {
	query := `
		SELECT ` + pageColumns + ` FROM pages WHERE owner_id = $1
		UNION
		SELECT p.id, p.title, p.slug, p.data, p.html, p.owner_id, p.published, p.published_at, p.updated_at
		FROM pages p JOIN collaborators c ON p.id = c.page_id WHERE c.user_id = $1
		ORDER BY updated_at DESC`
	rows, err := r.DB.Query(query, userID)
	if err != nil {
		logger.Sugar.Errorf("Failed to get pages for user %s: %v", userID, err)
		return nil, err
	}
	defer rows.Close()

	var pages []store.Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			logger.Sugar.Warnf("Skipping unreadable page row for user %s: %v", userID, err)
			continue
		}
		pages = append(pages, *p)
	}
	return pages, rows.Err()
}

func (r *PageRepository) GetPageMembers(pageID string) ([]model.CollaboratorInfo, error) {
	query := `
		SELECT u.id, u.email, 'owner' as role FROM pages p JOIN auth.users u ON p.owner_id = u.id WHERE p.id = $1
		UNION ALL
		SELECT u.id, u.email, c.role FROM collaborators c JOIN auth.users u ON c.user_id = u.id WHERE c.page_id = $1
	`
	rows, err := r.DB.Query(query, pageID)
	if err != nil {
		logger.Sugar.Errorf("Failed to get page members for page %s: %v", pageID, err)
		return nil, err
	}
	defer rows.Close()

	var members []model.CollaboratorInfo
	for rows.Next() {
		var c model.CollaboratorInfo
		if err := rows.Scan(&c.ID, &c.Name, &c.Role); err == nil {
			members = append(members, c)
		}
	}
	return members, nil
}

func (r *PageRepository) CheckAccess(pageID, userID string) (bool, error) {
	var hasAccess bool
	err := r.DB.QueryRow(`
		SELECT EXISTS(
			SELECT 1 FROM pages WHERE id = $1 AND owner_id = $2
			UNION
			SELECT 1 FROM collaborators WHERE page_id = $1 AND user_id = $2
		)`, pageID, userID).Scan(&hasAccess)
	if err != nil {
		logger.Sugar.Errorf("Failed to check access for user %s on page %s: %v", userID, pageID, err)
	}
	return hasAccess, err
}

// SlugTaken reports whether another page already uses slug.
func (r *PageRepository) SlugTaken(slug, pageID string) (bool, error) {
	var taken bool
	err := r.DB.QueryRow(`SELECT EXISTS(SELECT 1 FROM pages WHERE slug = $1 AND id <> $2)`, slug, pageID).Scan(&taken)
	if err != nil {
		logger.Sugar.Errorf("Failed to check slug %s: %v", slug, err)
	}
	return taken, err
}

// Publish freezes html as the public markup of the page. Later saves do
// not touch it until the page is published again.
func (r *PageRepository) Publish(pageID, slug, html string) error {
	_, err := r.DB.Exec(`UPDATE pages SET slug = $1, published_html = $2, published = TRUE, published_at = NOW(), updated_at = NOW() WHERE id = $3`,
		slug, html, pageID)
	if err != nil {
		logger.Sugar.Errorf("Failed to publish page %s: %v", pageID, err)
	}
	return err
}

func (r *PageRepository) Unpublish(pageID string) error {
	_, err := r.DB.Exec(`UPDATE pages SET published = FALSE, updated_at = NOW() WHERE id = $1`, pageID)
	if err != nil {
		logger.Sugar.Errorf("Failed to unpublish page %s: %v", pageID, err)
	}
	return err
}

// GetPublishedHTML returns the markup served for slug.
func (r *PageRepository) GetPublishedHTML(slug string) (string, error) {
	var html string
	err := r.DB.QueryRow(`SELECT published_html FROM pages WHERE slug = $1 AND published = TRUE`, slug).Scan(&html)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		logger.Sugar.Errorf("Failed to load published page %s: %v", slug, err)
	}
	return html, err
}
