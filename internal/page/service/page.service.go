package service

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"pagebuilder/internal/catalog"
	"pagebuilder/internal/markup"
	"pagebuilder/internal/page/model"
	"pagebuilder/internal/page/repository"
	"pagebuilder/internal/pagedata"
	"pagebuilder/pkg/logger"
	"pagebuilder/pkg/metrics"
	"pagebuilder/socket"
	"pagebuilder/store"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

var (
	ErrNotFound     = errors.New("page not found")
	ErrForbidden    = errors.New("forbidden")
	ErrUserNotFound = errors.New("user not found with that email")
	ErrSlugTaken    = errors.New("slug already in use")
	ErrInvalidPage  = errors.New("invalid page data")
)

const (
	roleOwner     = "owner"
	defaultTitle  = "Untitled Page"
	snippetLength = 100
)

type PageService struct {
	Repo    *repository.PageRepository
	Hub     *socket.Hub
	Catalog *catalog.Catalog
	Ops     *pagedata.Ops
	// PublicURL prefixes the links of published pages, e.g. https://pages.example.com.
	PublicURL string
}

func NewPageService(repo *repository.PageRepository, hub *socket.Hub, cat *catalog.Catalog, publicURL string) *PageService {
	if cat == nil {
		cat = catalog.Default()
	}
	return &PageService{
		Repo:      repo,
		Hub:       hub,
		Catalog:   cat,
		Ops:       pagedata.NewOps(),
		PublicURL: strings.TrimRight(publicURL, "/"),
	}
}

// access resolves the role of userID on a page: owner, writer or reader.
func (s *PageService) access(pageID, userID string) (role, title string, err error) {
	ownerID, title, err := s.Repo.GetOwnerAndTitle(pageID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrNotFound
	} else if err != nil {
		return "", "", err
	}
	if ownerID == userID {
		return roleOwner, title, nil
	}
	role, err = s.Repo.GetCollaboratorRole(pageID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrForbidden
	} else if err != nil {
		return "", "", err
	}
	return role, title, nil
}

func canWrite(role string) bool { return role == roleOwner || role == socket.RoleWriter }

func (s *PageService) CreatePage(userID string, req model.CreatePageRequest) (string, error) {
	doc := pagedata.NewDocument(s.Ops.Now())
	for _, name := range req.Sections {
		sec, ok := s.Catalog.Section(name)
		if !ok {
			return "", fmt.Errorf("%w: unknown section %q", ErrInvalidPage, name)
		}
		doc = s.Ops.AddSection(doc, sec, pagedata.Desktop)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultTitle
	}
	data, out, err := encodePage(doc, title)
	if err != nil {
		return "", err
	}

	page := &store.Page{ID: uuid.NewString(), Title: title, Data: data, HTML: out, OwnerID: userID}
	if err := s.Repo.Create(page); err != nil {
		return "", err
	}
	return page.ID, nil
}

// current returns the page document, from the open editing room when
// there is one.
func (s *PageService) current(p *store.Page) (*pagedata.Document, bool, error) {
	if doc, ok := s.Hub.Snapshot(p.ID); ok {
		return doc, true, nil
	}
	doc, err := pagedata.Decode(p.Data, s.Ops.Now())
	if err != nil {
		return nil, false, fmt.Errorf("decode page %s: %w", p.ID, err)
	}
	return doc, false, nil
}

func (s *PageService) load(pageID string) (*store.Page, error) {
	p, err := s.Repo.Get(pageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (s *PageService) GetPage(pageID, userID string) (*model.PageResponse, error) {
	role, _, err := s.access(pageID, userID)
	if err != nil {
		return nil, err
	}
	p, err := s.load(pageID)
	if err != nil {
		return nil, err
	}
	doc, live, err := s.current(p)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return &model.PageResponse{
		ID:        p.ID,
		Title:     p.Title,
		Role:      role,
		Published: p.Published,
		Slug:      p.Slug.String,
		UpdatedAt: p.UpdatedAt,
		Live:      live,
		Data:      data,
	}, nil
}

// SavePage replaces the page with a full document. Open editors receive
// it and their history restarts.
func (s *PageService) SavePage(userID string, req model.SavePageRequest) error {
	role, title, err := s.access(req.PageID, userID)
	if err != nil {
		return err
	}
	if !canWrite(role) {
		return ErrForbidden
	}

	doc, err := pagedata.Decode(req.Data, s.Ops.Now())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPage, err)
	}
	doc, problems := s.Ops.Normalize(doc)
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPage, problems[0].Error())
	}

	data, out, err := encodePage(doc, title)
	if err != nil {
		return err
	}
	if err := s.Repo.UpdateContent(req.PageID, data, out); err != nil {
		metrics.Saves.WithLabelValues("api", "error").Inc()
		return err
	}
	metrics.Saves.WithLabelValues("api", "ok").Inc()

	s.Hub.ReplaceDocument(req.PageID, doc)
	return nil
}

func (s *PageService) DeletePage(pageID, userID string) error {
	role, _, err := s.access(pageID, userID)
	if err != nil {
		return err
	}
	if role != roleOwner {
		return ErrForbidden
	}
	if err := s.Repo.Delete(pageID); err != nil {
		return err
	}
	s.Hub.RemovePage(pageID)
	return nil
}

func (s *PageService) UpdateTitle(pageID, userID, title string) error {
	rowsAffected, err := s.Repo.UpdateTitle(pageID, title, userID)
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound // or not the owner
	}
	s.Hub.Rename(pageID, title)
	return nil
}

func (s *PageService) InviteCollaborator(userID string, req model.InviteRequest) error {
	ownerID, err := s.Repo.GetOwnerID(req.PageID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	if ownerID != userID {
		return ErrForbidden
	}

	targetUserID, err := s.Repo.GetUserByEmail(req.Email)
	if err != nil {
		return ErrUserNotFound
	}
	if targetUserID == ownerID {
		return fmt.Errorf("%w: the owner cannot be invited", ErrInvalidPage)
	}
	return s.Repo.AddCollaborator(store.Collaborator{PageID: req.PageID, UserID: targetUserID, Role: req.Role})
}

func (s *PageService) ListPages(userID string) ([]model.PageMetadata, error) {
	pages, err := s.Repo.GetPagesByUser(userID)
	if err != nil {
		return nil, err
	}

	out := make([]model.PageMetadata, 0, len(pages))
	for i := range pages {
		p := &pages[i]
		meta := model.PageMetadata{
			ID:        p.ID,
			Title:     p.Title,
			UpdatedAt: p.UpdatedAt,
			Published: p.Published,
			Slug:      p.Slug.String,
			IsOwner:   p.OwnerID == userID,
		}
		if doc, _, err := s.current(p); err == nil {
			meta.Snippet = snippet(doc)
			meta.Sections = doc.SectionCount()
		} else {
			logger.Sugar.Warnf("Listing page %s without preview: %v", p.ID, err)
		}

		members, _ := s.Repo.GetPageMembers(p.ID)
		meta.Collab = members
		if meta.Collab == nil {
			meta.Collab = []model.CollaboratorInfo{}
		}
		out = append(out, meta)
	}
	return out, nil
}

func (s *PageService) Members(pageID, userID string) ([]model.CollaboratorInfo, error) {
	ok, err := s.Repo.CheckAccess(pageID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}
	members, err := s.Repo.GetPageMembers(pageID)
	if members == nil {
		members = []model.CollaboratorInfo{}
	}
	return members, err
}

// Publish freezes the current page as public markup under a slug. The slug
// is derived from the title when none is given.
func (s *PageService) Publish(userID string, req model.PublishRequest) (*model.PublishResponse, error) {
	role, title, err := s.access(req.PageID, userID)
	if err != nil {
		return nil, err
	}
	if !canWrite(role) {
		return nil, ErrForbidden
	}

	slug := Slugify(req.Slug)
	if slug == "" {
		slug = Slugify(title)
	}
	if slug == "" {
		slug = strings.SplitN(req.PageID, "-", 2)[0]
	}
	taken, err := s.Repo.SlugTaken(slug, req.PageID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrSlugTaken
	}

	p, err := s.load(req.PageID)
	if err != nil {
		return nil, err
	}
	doc, _, err := s.current(p)
	if err != nil {
		return nil, err
	}
	out, err := markup.Render(doc, markup.Options{Title: title})
	if err != nil {
		return nil, err
	}
	if err := s.Repo.Publish(req.PageID, slug, string(out)); err != nil {
		return nil, err
	}
	logger.Sugar.Infof("Published page %s as %s", req.PageID, slug)
	return &model.PublishResponse{Slug: slug, URL: s.PublicURL + "/p/" + slug}, nil
}

func (s *PageService) Unpublish(pageID, userID string) error {
	role, _, err := s.access(pageID, userID)
	if err != nil {
		return err
	}
	if !canWrite(role) {
		return ErrForbidden
	}
	return s.Repo.Unpublish(pageID)
}

// RenderPreview renders the current page, unminified, for any member.
func (s *PageService) RenderPreview(pageID, userID string) ([]byte, error) {
	_, title, err := s.access(pageID, userID)
	if err != nil {
		return nil, err
	}
	p, err := s.load(pageID)
	if err != nil {
		return nil, err
	}
	doc, _, err := s.current(p)
	if err != nil {
		return nil, err
	}
	return markup.Render(doc, markup.Options{Title: title, Pretty: true})
}

func encodePage(doc *pagedata.Document, title string) ([]byte, string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, "", fmt.Errorf("encode page: %w", err)
	}
	out, err := markup.Render(doc, markup.Options{Title: title})
	if err != nil {
		return nil, "", err
	}
	return data, string(out), nil
}

var (
	strict     = bluemonday.StrictPolicy()
	spaces     = regexp.MustCompile(`\s+`)
	slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)
)

// snippet is the text of the first heading, or of the first paragraph when
// the page has no heading.
func snippet(doc *pagedata.Document) string {
	var heading, paragraph string
	for _, root := range doc.Elements {
		root.Walk(func(el *pagedata.Element) {
			if heading != "" {
				return
			}
			text := pagedata.GetResponsiveValues(el, pagedata.Desktop).ComponentData.String("content")
			switch {
			case el.Type == pagedata.TypeHeading:
				heading = text
			case el.Type == pagedata.TypeParagraph && paragraph == "":
				paragraph = text
			}
		})
	}
	text := heading
	if text == "" {
		text = paragraph
	}

	text = html.UnescapeString(strict.Sanitize(text))
	text = strings.TrimSpace(spaces.ReplaceAllString(text, " "))
	if utf8.RuneCountInString(text) > snippetLength {
		return string([]rune(text)[:snippetLength]) + "..."
	}
	return text
}

// Slugify lowercases s and joins its alphanumeric runs with dashes.
func Slugify(s string) string {
	slug := slugUnsafe.ReplaceAllString(strings.ToLower(s), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 80 {
		slug = strings.TrimRight(slug[:80], "-")
	}
	return slug
}
