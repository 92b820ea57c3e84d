package radpress

import (
	"path"
	"time"
)

// Tag labels articles. Slug is unique.
type Tag struct {
	ID   int64
	Name string
	Slug string
}

// TagCount is a tag together with the number of published articles using it.
type TagCount struct {
	Tag
	Count int
}

// EntryImage is an uploaded image that articles may use as their cover.
// Image is the file path relative to the media root.
type EntryImage struct {
	ID    int64
	Name  string
	Image string
}

// URL returns the public URL of the original image under mediaURL.
func (img EntryImage) URL(mediaURL string) string {
	return mediaURL + path.Clean(img.Image)
}

// Entry is the content core shared by articles and pages. ContentBody is
// always the rendered form of Content as of the last save; it is written
// only by the store.
type Entry struct {
	ID          int64
	Title       string
	Slug        string
	Content     string
	ContentBody string
	Published   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Article is a blog post.
type Article struct {
	Entry
	CoverImage *EntryImage
	Tags       []Tag
}

// ContentByMore returns the teaser part of the rendered body. See SplitMore.
func (a Article) ContentByMore(marker string) string {
	return SplitMore(a.ContentBody, marker)
}

// Link returns the detail path of the article.
func (a Article) Link() string {
	return "/detail/" + a.Slug + "/"
}

// Page is a static page.
type Page struct {
	Entry
}

// Link returns the detail path of the page.
func (p Page) Link() string {
	return "/p/" + p.Slug + "/"
}

// DefaultMenuOrder is the order given to menu entries that don't set one.
const DefaultMenuOrder = 3

// Menu places a page in the navigation list. A page has at most one entry.
type Menu struct {
	ID     int64
	Order  int
	PageID int64
	Page   Page
}

// Sidebar is the context shared by every public view.
type Sidebar struct {
	Site  SiteConfig
	Menus []Menu
	Tags  []TagCount
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
}
