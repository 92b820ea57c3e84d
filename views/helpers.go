package views

import (
	"html/template"
	"net/url"
	"time"

	"github.com/radpress/radpress"
)

var funcs = template.FuncMap{
	"safe":       Safe,
	"jsonld":     func(s string) template.JS { return template.JS(s) },
	"date":       FormatDate,
	"pathEscape": url.PathEscape,
	"coverID":    CoverID,
	"tagClass":   TagClass,
}

// Meta builds the <head> metadata of a public page. An empty title means
// the site's front page.
func Meta(site radpress.SiteConfig, title, path, ogType string) radpress.PageMeta {
	m := radpress.PageMeta{
		Title:       site.Name,
		Description: site.Description,
		URL:         radpress.AbsoluteURL(site.URL, "/"),
		OGType:      ogType,
	}
	if title != "" {
		m.Title = title + " | " + site.Name
	}
	if path != "" {
		m.URL = radpress.AbsoluteURL(site.URL, path)
	}
	return m
}

// Safe marks rendered entry HTML as trusted. Only ContentBody and teaser
// bodies go through it; they come out of the escaping renderer.
func Safe(s string) template.HTML {
	return template.HTML(s)
}

// FormatDate formats t for display, or returns "" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("January 2, 2006")
}

// CoverID returns the cover image ID of a, or 0 without a cover.
func CoverID(a radpress.Article) int64 {
	if a.CoverImage == nil {
		return 0
	}
	return a.CoverImage.ID
}

// TagClass sizes a tag in the sidebar cloud by how many articles use it.
func TagClass(count int) string {
	switch {
	case count >= 10:
		return "tag tag-l"
	case count >= 3:
		return "tag tag-m"
	}
	return "tag"
}
