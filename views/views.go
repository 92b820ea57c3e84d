// Package views is the default look of a radpress site. Every view is an
// html/template page wrapped in the shared layout and exposed to radpress as
// a templ component.
package views

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"

	"github.com/a-h/templ"

	"github.com/radpress/radpress"
)

//go:embed templates/*.html
var templateFS embed.FS

// pages maps a page template to the file defining its "content" block.
var pages = []string{
	"index", "archive", "detail", "page", "preview",
	"login", "dashboard", "article_form", "page_form", "images",
	"404", "500",
}

// page is what every template executes against. View holds the
// handler-specific data.
type page struct {
	Site   radpress.SiteConfig
	Meta   radpress.PageMeta
	Menus  []radpress.Menu
	Tags   []radpress.TagCount
	JsonLD string
	Admin  bool
	View   any
}

type set map[string]*template.Template

func (s set) component(name string, data page) templ.Component {
	return templ.FromGoHTML(s[name], data)
}

// parse builds the template set from fsys, which must hold layout.html and
// one file per page.
func parse(fsys fs.FS) (set, error) {
	base, err := template.New("layout.html").Funcs(funcs).ParseFS(fsys, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("views: parse layout: %w", err)
	}
	s := make(set, len(pages))
	for _, name := range pages {
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if s[name], err = t.ParseFS(fsys, name+".html"); err != nil {
			return nil, fmt.Errorf("views: parse %s: %w", name, err)
		}
	}
	return s, nil
}

// Default returns the built-in views for site.
func Default(site radpress.SiteConfig) radpress.ViewFuncs {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic(err)
	}
	vf, err := FromFS(sub, site)
	if err != nil {
		panic(err)
	}
	return vf
}

// FromFS returns views rendered from the templates in fsys. It lets a site
// replace the default markup while keeping the handler data.
func FromFS(fsys fs.FS, site radpress.SiteConfig) (radpress.ViewFuncs, error) {
	s, err := parse(fsys)
	if err != nil {
		return radpress.ViewFuncs{}, err
	}
	public := func(sb radpress.Sidebar, meta radpress.PageMeta, view any) page {
		return page{Site: sb.Site, Meta: meta, Menus: sb.Menus, Tags: sb.Tags, View: view}
	}
	admin := func(title string, view any) page {
		return page{Site: site, Meta: radpress.PageMeta{Title: title}, Admin: true, View: view}
	}

	return radpress.ViewFuncs{
		Index: func(v radpress.IndexView) templ.Component {
			p := public(v.Sidebar, Meta(v.Sidebar.Site, "", "", "website"), v)
			p.JsonLD = radpress.WebsiteJsonLD(v.Sidebar.Site)
			return s.component("index", p)
		},
		Archive: func(v radpress.ArchiveView) templ.Component {
			title := "Archives"
			if v.Tag != nil {
				title = "Tagged " + v.Tag.Name
			}
			return s.component("archive", public(v.Sidebar, Meta(v.Sidebar.Site, title, "/archives/", "website"), v))
		},
		Detail: func(v radpress.DetailView) templ.Component {
			p := public(v.Sidebar, Meta(v.Sidebar.Site, v.Article.Title, v.Article.Link(), "article"), v)
			p.JsonLD = v.JsonLD
			return s.component("detail", p)
		},
		PageDetail: func(v radpress.PageView) templ.Component {
			return s.component("page", public(v.Sidebar, Meta(v.Sidebar.Site, v.Page.Title, v.Page.Link(), "website"), v))
		},
		Preview: func(v radpress.PreviewView) templ.Component {
			return s.component("preview", page{Site: v.Site, Meta: radpress.PageMeta{Title: "Preview"}, Admin: true, View: v})
		},
		AdminLogin: func(showError bool, csrfToken string) templ.Component {
			return s.component("login", admin("Log in", struct {
				ShowError bool
				CSRFToken string
			}{showError, csrfToken}))
		},
		AdminDashboard: func(v radpress.AdminDashboardView) templ.Component {
			return s.component("dashboard", admin("Dashboard", v))
		},
		AdminArticleForm: func(v radpress.AdminArticleView) templ.Component {
			return s.component("article_form", admin("Edit article", v))
		},
		AdminPageForm: func(v radpress.AdminPageView) templ.Component {
			return s.component("page_form", admin("Edit page", v))
		},
		AdminImages: func(images []radpress.AdminImage, csrfToken string) templ.Component {
			return s.component("images", admin("Images", struct {
				Images    []radpress.AdminImage
				CSRFToken string
			}{images, csrfToken}))
		},
		NotFound: func() templ.Component {
			return s.component("404", page{Site: site, Meta: radpress.PageMeta{Title: "Not found"}})
		},
		ServerError: func() templ.Component {
			return s.component("500", page{Site: site, Meta: radpress.PageMeta{Title: "Server error"}})
		},
	}, nil
}
