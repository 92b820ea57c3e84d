package radpress

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = sql.ErrNoRows
	// ErrConflict is returned when a write violates a uniqueness rule:
	// a duplicate slug, a second menu entry for a page, or a repeated
	// (order, page) pair.
	ErrConflict = errors.New("radpress: conflicting record")
)

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02 15:04:05.000000000"

const entryColumns = `id, title, slug, content, content_body, is_published, created_at, updated_at`

// Store wraps a SQLite database and persists radpress entities. Articles
// and pages pass through the renderer on every save.
type Store struct {
	db       *sql.DB
	renderer Renderer
	now      func() time.Time
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the schema. A nil renderer means
// DefaultRenderer.
func NewStore(path string, renderer Renderer) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	// Foreign keys and the busy timeout are per-connection settings, so they
	// go in the DSN where every pooled connection picks them up.
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	if renderer == nil {
		renderer = DefaultRenderer
	}
	s := &Store{db: db, renderer: renderer, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS tags (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    slug TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS entry_images (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL DEFAULT '',
    image TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS articles (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    slug TEXT NOT NULL UNIQUE,
    content TEXT NOT NULL,
    content_body TEXT NOT NULL,
    is_published INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    cover_image_id INTEGER REFERENCES entry_images(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS article_tags (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    article_id INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
    UNIQUE (tag_id, article_id)
);

CREATE TABLE IF NOT EXISTS pages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    slug TEXT NOT NULL UNIQUE,
    content TEXT NOT NULL,
    content_body TEXT NOT NULL,
    is_published INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS menus (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    "order" INTEGER NOT NULL DEFAULT 3,
    page_id INTEGER NOT NULL UNIQUE REFERENCES pages(id) ON DELETE CASCADE,
    UNIQUE ("order", page_id)
);

CREATE INDEX IF NOT EXISTS idx_articles_created ON articles(created_at DESC, updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_article_tags_article ON article_tags(article_id);
`)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner, e *Entry, extra ...any) error {
	var published int
	var created, updated string
	dest := append([]any{&e.ID, &e.Title, &e.Slug, &e.Content, &e.ContentBody, &published, &created, &updated}, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	e.Published = published == 1
	var err error
	if e.CreatedAt, err = parseTime(created); err != nil {
		return err
	}
	if e.UpdatedAt, err = parseTime(updated); err != nil {
		return err
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("radpress: parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func writeErr(op string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("radpress: %s: %w: %v", op, ErrConflict, err)
	}
	return fmt.Errorf("radpress: %s: %w", op, err)
}

// stampEntry sets the timestamps for a save happening at now. CreatedAt is
// read back from the table for existing rows so it is never overwritten.
func stampEntry(tx *sql.Tx, table string, e *Entry, now time.Time) error {
	e.UpdatedAt = now
	if e.ID == 0 {
		e.CreatedAt = now
		return nil
	}
	var created string
	if err := tx.QueryRow(`SELECT created_at FROM `+table+` WHERE id = ?`, e.ID).Scan(&created); err != nil {
		return err
	}
	t, err := parseTime(created)
	if err != nil {
		return err
	}
	e.CreatedAt = t
	return nil
}

// ---- articles ----

const articleSelect = `SELECT a.id, a.title, a.slug, a.content, a.content_body, a.is_published, a.created_at, a.updated_at,
    i.id, i.name, i.image
FROM articles a LEFT JOIN entry_images i ON i.id = a.cover_image_id`

const articleOrder = ` ORDER BY a.created_at DESC, a.updated_at DESC`

func scanArticle(row rowScanner) (Article, error) {
	var a Article
	var imgID sql.NullInt64
	var imgName, imgPath sql.NullString
	if err := scanEntry(row, &a.Entry, &imgID, &imgName, &imgPath); err != nil {
		return Article{}, err
	}
	if imgID.Valid {
		a.CoverImage = &EntryImage{ID: imgID.Int64, Name: imgName.String, Image: imgPath.String}
	}
	return a, nil
}

// SaveArticle renders the article body and writes the article together with
// its tag set. Tags without an ID are looked up by slug and created when
// missing. If rendering fails nothing is written and a is left unchanged.
func (s *Store) SaveArticle(a *Article) error {
	e := a.Entry
	if err := renderEntry(s.renderer, &e); err != nil {
		return err
	}
	tags := make([]Tag, len(a.Tags))
	copy(tags, a.Tags)

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := stampEntry(tx, "articles", &e, s.now().UTC()); err != nil {
		return writeErr("save article", err)
	}
	var cover sql.NullInt64
	if a.CoverImage != nil && a.CoverImage.ID != 0 {
		cover = sql.NullInt64{Int64: a.CoverImage.ID, Valid: true}
	}
	if e.ID == 0 {
		res, err := tx.Exec(`INSERT INTO articles (title, slug, content, content_body, is_published, created_at, updated_at, cover_image_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.Title, e.Slug, e.Content, e.ContentBody, boolInt(e.Published), formatTime(e.CreatedAt), formatTime(e.UpdatedAt), cover)
		if err != nil {
			return writeErr("save article", err)
		}
		if e.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	} else {
		_, err := tx.Exec(`UPDATE articles SET title = ?, slug = ?, content = ?, content_body = ?, is_published = ?, updated_at = ?, cover_image_id = ? WHERE id = ?`,
			e.Title, e.Slug, e.Content, e.ContentBody, boolInt(e.Published), formatTime(e.UpdatedAt), cover, e.ID)
		if err != nil {
			return writeErr("save article", err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM article_tags WHERE article_id = ?`, e.ID); err != nil {
		return writeErr("save article tags", err)
	}
	for i := range tags {
		if err := ensureTag(tx, &tags[i]); err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT OR IGNORE INTO article_tags (tag_id, article_id) VALUES (?, ?)`, tags[i].ID, e.ID); err != nil {
			return writeErr("save article tags", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	a.Entry = e
	a.Tags = tags
	return nil
}

func ensureTag(tx *sql.Tx, t *Tag) error {
	if t.ID != 0 {
		return nil
	}
	if t.Slug == "" {
		t.Slug = Slugify(t.Name)
	}
	if t.Slug == "" {
		return fmt.Errorf("radpress: tag %q has no usable slug", t.Name)
	}
	if t.Name == "" {
		t.Name = t.Slug
	}
	if _, err := tx.Exec(`INSERT INTO tags (name, slug) VALUES (?, ?) ON CONFLICT(slug) DO NOTHING`, t.Name, t.Slug); err != nil {
		return writeErr("save tag", err)
	}
	return tx.QueryRow(`SELECT id, name FROM tags WHERE slug = ?`, t.Slug).Scan(&t.ID, &t.Name)
}

// GetArticle returns a single published article by slug.
func (s *Store) GetArticle(slug string) (Article, error) {
	return s.getArticle(slug, true)
}

// GetArticleAny returns an article by slug regardless of published status.
func (s *Store) GetArticleAny(slug string) (Article, error) {
	return s.getArticle(slug, false)
}

func (s *Store) getArticle(slug string, publishedOnly bool) (Article, error) {
	query := articleSelect + ` WHERE a.slug = ?`
	if publishedOnly {
		query += ` AND a.is_published = 1`
	}
	a, err := scanArticle(s.db.QueryRow(query, slug))
	if err != nil {
		return Article{}, err
	}
	articles := []Article{a}
	if err := s.loadTags(articles); err != nil {
		return Article{}, err
	}
	return articles[0], nil
}

// ListArticles returns published articles, newest first. A non-empty
// tagSlug restricts the result to articles carrying that tag; limit <= 0
// means no limit.
func (s *Store) ListArticles(tagSlug string, limit int) ([]Article, error) {
	query := articleSelect + ` WHERE a.is_published = 1`
	var args []any
	if tagSlug != "" {
		query += ` AND EXISTS (SELECT 1 FROM article_tags atg JOIN tags t ON t.id = atg.tag_id WHERE atg.article_id = a.id AND t.slug = ?)`
		args = append(args, tagSlug)
	}
	query += articleOrder
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryArticles(query, args...)
}

// ListAllArticles returns every article (published and drafts), newest first.
func (s *Store) ListAllArticles() ([]Article, error) {
	return s.queryArticles(articleSelect + articleOrder)
}

func (s *Store) queryArticles(query string, args ...any) ([]Article, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadTags(articles); err != nil {
		return nil, err
	}
	return articles, nil
}

// loadTags fills the Tags of each article in one query.
func (s *Store) loadTags(articles []Article) error {
	if len(articles) == 0 {
		return nil
	}
	index := make(map[int64]int, len(articles))
	placeholders := make([]string, len(articles))
	args := make([]any, len(articles))
	for i, a := range articles {
		index[a.ID] = i
		placeholders[i] = "?"
		args[i] = a.ID
	}
	rows, err := s.db.Query(`SELECT atg.article_id, t.id, t.name, t.slug FROM article_tags atg JOIN tags t ON t.id = atg.tag_id WHERE atg.article_id IN (`+strings.Join(placeholders, ",")+`) ORDER BY t.name`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var articleID int64
		var t Tag
		if err := rows.Scan(&articleID, &t.ID, &t.Name, &t.Slug); err != nil {
			return err
		}
		if i, ok := index[articleID]; ok {
			articles[i].Tags = append(articles[i].Tags, t)
		}
	}
	return rows.Err()
}

// DeleteArticle removes an article and its tag links by slug.
func (s *Store) DeleteArticle(slug string) error {
	_, err := s.db.Exec(`DELETE FROM articles WHERE slug = ?`, slug)
	return err
}

// ---- pages ----

// SavePage renders the page body and writes the page. If rendering fails
// nothing is written and p is left unchanged.
func (s *Store) SavePage(p *Page) error {
	e := p.Entry
	if err := renderEntry(s.renderer, &e); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := stampEntry(tx, "pages", &e, s.now().UTC()); err != nil {
		return writeErr("save page", err)
	}
	if e.ID == 0 {
		res, err := tx.Exec(`INSERT INTO pages (title, slug, content, content_body, is_published, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.Title, e.Slug, e.Content, e.ContentBody, boolInt(e.Published), formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
		if err != nil {
			return writeErr("save page", err)
		}
		if e.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	} else {
		if _, err := tx.Exec(`UPDATE pages SET title = ?, slug = ?, content = ?, content_body = ?, is_published = ?, updated_at = ? WHERE id = ?`,
			e.Title, e.Slug, e.Content, e.ContentBody, boolInt(e.Published), formatTime(e.UpdatedAt), e.ID); err != nil {
			return writeErr("save page", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	p.Entry = e
	return nil
}

// GetPage returns a single published page by slug.
func (s *Store) GetPage(slug string) (Page, error) {
	var p Page
	err := scanEntry(s.db.QueryRow(`SELECT `+entryColumns+` FROM pages WHERE slug = ? AND is_published = 1`, slug), &p.Entry)
	return p, err
}

// GetPageAny returns a page by slug regardless of published status.
func (s *Store) GetPageAny(slug string) (Page, error) {
	var p Page
	err := scanEntry(s.db.QueryRow(`SELECT `+entryColumns+` FROM pages WHERE slug = ?`, slug), &p.Entry)
	return p, err
}

// ListPages returns published pages, newest first.
func (s *Store) ListPages() ([]Page, error) {
	return s.queryPages(`SELECT ` + entryColumns + ` FROM pages WHERE is_published = 1 ORDER BY created_at DESC, updated_at DESC`)
}

// ListAllPages returns every page, newest first.
func (s *Store) ListAllPages() ([]Page, error) {
	return s.queryPages(`SELECT ` + entryColumns + ` FROM pages ORDER BY created_at DESC, updated_at DESC`)
}

func (s *Store) queryPages(query string, args ...any) ([]Page, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		var p Page
		if err := scanEntry(rows, &p.Entry); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// DeletePage removes a page and its menu entry by slug.
func (s *Store) DeletePage(slug string) error {
	_, err := s.db.Exec(`DELETE FROM pages WHERE slug = ?`, slug)
	return err
}

// ---- menus ----

// SaveMenu inserts or updates a menu entry. A zero Order becomes
// DefaultMenuOrder. A second entry for the same page, or a repeated
// (order, page) pair, fails with ErrConflict.
func (s *Store) SaveMenu(m *Menu) error {
	if m.Order == 0 {
		m.Order = DefaultMenuOrder
	}
	if m.Order < 0 {
		return fmt.Errorf("radpress: menu order must be positive, got %d", m.Order)
	}
	if m.ID == 0 {
		res, err := s.db.Exec(`INSERT INTO menus ("order", page_id) VALUES (?, ?)`, m.Order, m.PageID)
		if err != nil {
			return writeErr("save menu", err)
		}
		m.ID, err = res.LastInsertId()
		return err
	}
	res, err := s.db.Exec(`UPDATE menus SET "order" = ?, page_id = ? WHERE id = ?`, m.Order, m.PageID, m.ID)
	if err != nil {
		return writeErr("save menu", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetMenuForPage returns the menu entry of a page.
func (s *Store) GetMenuForPage(pageID int64) (Menu, error) {
	var m Menu
	err := s.db.QueryRow(`SELECT id, "order", page_id FROM menus WHERE page_id = ?`, pageID).Scan(&m.ID, &m.Order, &m.PageID)
	return m, err
}

// ListMenus returns the navigation entries whose pages are published,
// ordered by Order and then page title.
func (s *Store) ListMenus() ([]Menu, error) {
	rows, err := s.db.Query(`SELECT m.id, m."order", p.id, p.title, p.slug, p.content, p.content_body, p.is_published, p.created_at, p.updated_at
FROM menus m JOIN pages p ON p.id = m.page_id
WHERE p.is_published = 1
ORDER BY m."order", p.title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var menus []Menu
	for rows.Next() {
		var m Menu
		var published int
		var created, updated string
		if err := rows.Scan(&m.ID, &m.Order, &m.Page.ID, &m.Page.Title, &m.Page.Slug, &m.Page.Content, &m.Page.ContentBody, &published, &created, &updated); err != nil {
			return nil, err
		}
		m.PageID = m.Page.ID
		m.Page.Published = published == 1
		if m.Page.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if m.Page.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, err
		}
		menus = append(menus, m)
	}
	return menus, rows.Err()
}

// DeleteMenu removes a menu entry.
func (s *Store) DeleteMenu(id int64) error {
	_, err := s.db.Exec(`DELETE FROM menus WHERE id = ?`, id)
	return err
}

// ---- tags ----

// SaveTag inserts or updates a tag. An empty slug is derived from the name.
func (s *Store) SaveTag(t *Tag) error {
	if t.Slug == "" {
		t.Slug = Slugify(t.Name)
	}
	if t.ID == 0 {
		res, err := s.db.Exec(`INSERT INTO tags (name, slug) VALUES (?, ?)`, t.Name, t.Slug)
		if err != nil {
			return writeErr("save tag", err)
		}
		t.ID, err = res.LastInsertId()
		return err
	}
	if _, err := s.db.Exec(`UPDATE tags SET name = ?, slug = ? WHERE id = ?`, t.Name, t.Slug, t.ID); err != nil {
		return writeErr("save tag", err)
	}
	return nil
}

// GetTag returns a tag by slug.
func (s *Store) GetTag(slug string) (Tag, error) {
	var t Tag
	err := s.db.QueryRow(`SELECT id, name, slug FROM tags WHERE slug = ?`, slug).Scan(&t.ID, &t.Name, &t.Slug)
	return t, err
}

// ListTagCounts returns the tags used by published articles with their
// usage counts, ordered by name.
func (s *Store) ListTagCounts() ([]TagCount, error) {
	rows, err := s.db.Query(`SELECT t.id, t.name, t.slug, COUNT(a.id)
FROM tags t
JOIN article_tags atg ON atg.tag_id = t.id
JOIN articles a ON a.id = atg.article_id AND a.is_published = 1
GROUP BY t.id, t.name, t.slug
ORDER BY t.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.ID, &tc.Name, &tc.Slug, &tc.Count); err != nil {
			return nil, err
		}
		tags = append(tags, tc)
	}
	return tags, rows.Err()
}

// DeleteTag removes a tag and its article links.
func (s *Store) DeleteTag(slug string) error {
	_, err := s.db.Exec(`DELETE FROM tags WHERE slug = ?`, slug)
	return err
}

// ---- images ----

// SaveImage inserts or updates image metadata.
func (s *Store) SaveImage(img *EntryImage) error {
	if img.ID == 0 {
		res, err := s.db.Exec(`INSERT INTO entry_images (name, image) VALUES (?, ?)`, img.Name, img.Image)
		if err != nil {
			return writeErr("save image", err)
		}
		img.ID, err = res.LastInsertId()
		return err
	}
	_, err := s.db.Exec(`UPDATE entry_images SET name = ?, image = ? WHERE id = ?`, img.Name, img.Image, img.ID)
	return err
}

// GetImage returns image metadata by ID.
func (s *Store) GetImage(id int64) (EntryImage, error) {
	var img EntryImage
	err := s.db.QueryRow(`SELECT id, name, image FROM entry_images WHERE id = ?`, id).Scan(&img.ID, &img.Name, &img.Image)
	return img, err
}

// ListImages returns all images, newest first.
func (s *Store) ListImages() ([]EntryImage, error) {
	rows, err := s.db.Query(`SELECT id, name, image FROM entry_images ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []EntryImage
	for rows.Next() {
		var img EntryImage
		if err := rows.Scan(&img.ID, &img.Name, &img.Image); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// ImageExists reports whether an image with the given relative path is recorded.
func (s *Store) ImageExists(image string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM entry_images WHERE image = ?`, image).Scan(&n)
	return n > 0, err
}

// DeleteImage removes image metadata. Articles using it as a cover lose
// their cover image.
func (s *Store) DeleteImage(id int64) error {
	_, err := s.db.Exec(`DELETE FROM entry_images WHERE id = ?`, id)
	return err
}
