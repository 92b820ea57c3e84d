// Package radpress is a small blogging engine built with Go, Echo, and templ.
// It stores articles, pages, tags, images and a navigation menu in SQLite,
// renders reStructuredText bodies to HTML on save, and serves list and
// detail views plus an admin area.
//
// Users may provide their own templ templates via the ViewFuncs struct;
// radpress handles the handler logic, middleware, and database operations.
package radpress

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// Route names, usable with App.Reverse.
const (
	RouteIndex      = "radpress-index"
	RouteArchive    = "radpress-archive"
	RouteDetail     = "radpress-detail"
	RoutePageDetail = "radpress-page-detail"
	RoutePreview    = "radpress-preview"
	RouteFeed       = "radpress-rss"
)

// ViewFuncs holds the templ components the framework calls when rendering
// pages. The views package provides a default set.
type ViewFuncs struct {
	Index            func(v IndexView) templ.Component
	Archive          func(v ArchiveView) templ.Component
	Detail           func(v DetailView) templ.Component
	PageDetail       func(v PageView) templ.Component
	Preview          func(v PreviewView) templ.Component
	AdminLogin       func(showError bool, csrfToken string) templ.Component
	AdminDashboard   func(v AdminDashboardView) templ.Component
	AdminArticleForm func(v AdminArticleView) templ.Component
	AdminPageForm    func(v AdminPageView) templ.Component
	AdminImages      func(images []AdminImage, csrfToken string) templ.Component
	NotFound         func() templ.Component
	ServerError      func() templ.Component
}

// Teaser is an article prepared for a list page.
type Teaser struct {
	Article
	Body      string // ContentBody cut at the more marker
	Truncated bool   // Body is shorter than ContentBody
	CoverURL  string // cover thumbnail, empty without a cover
}

// IndexView is the data of the index page.
type IndexView struct {
	Sidebar  Sidebar
	Articles []Teaser
}

// ArchiveView is the data of the archive page. Tag is set when the list is
// filtered.
type ArchiveView struct {
	Sidebar  Sidebar
	Articles []Article
	Tag      *Tag
}

// DetailView is the data of an article page.
type DetailView struct {
	Sidebar  Sidebar
	Article  Article
	CoverURL string
	JsonLD   string
}

// PageView is the data of a static page.
type PageView struct {
	Sidebar Sidebar
	Page    Page
}

// PreviewView is the data of the preview editor.
type PreviewView struct {
	Site      SiteConfig
	CSRFToken string
}

// AdminDashboardView lists everything an admin can edit.
type AdminDashboardView struct {
	Articles  []Article
	Pages     []Page
	Message   string
	CSRFToken string
}

// AdminArticleView is the data of the article form.
type AdminArticleView struct {
	Article   Article
	TagList   string
	Images    []EntryImage
	CSRFToken string
}

// AdminPageView is the data of the page form. MenuOrder is zero when the
// page is not in the menu.
type AdminPageView struct {
	Page      Page
	MenuOrder int
	CSRFToken string
}

// AdminImage is an image row in the admin image list.
type AdminImage struct {
	EntryImage
	URL          string
	ThumbnailTag string
}

// App is the central radpress application. It wires together the store,
// cache, thumbnailer, handlers, middleware, and templates.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Store  *Store
	Cache  *ArticleCache
	Thumbs *Thumbnailer
	Views  ViewFuncs

	renderer     Renderer
	loginLimiter *LoginLimiter
	customRoutes []func(*App)
	staticDir    string
}

// New creates a new radpress App with the given configuration and view functions.
func New(cfg SiteConfig, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		Views:     views,
		renderer:  DefaultRenderer,
		staticDir: "public",
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Setup opens the store and registers middleware and routes. Start calls it;
// tests call it directly and drive a.Echo with httptest.
func (a *App) Setup() error {
	if err := a.Config.validate(); err != nil {
		return err
	}

	store, err := NewStore(a.Config.DatabasePath, a.renderer)
	if err != nil {
		return fmt.Errorf("radpress: init store: %w", err)
	}
	a.Store = store
	a.Cache = NewArticleCache(a.Store, a.Config.CacheTTL)
	a.Thumbs = NewThumbnailer(a.Config.MediaRoot, a.Config.MediaURL, a.Config.ThumbnailQuality)
	a.loginLimiter = NewLoginLimiter(5, time.Minute)

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

// Start sets the application up and serves until the server stops.
func (a *App) Start() error {
	if err := a.Setup(); err != nil {
		return err
	}
	a.Echo.Logger.Infof("radpress: serving %s on %s", a.Config.Name, a.Config.Addr)
	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.Static("/public", a.staticDir)
	if strings.HasPrefix(a.Config.MediaURL, "/") {
		e.Static(strings.TrimSuffix(a.Config.MediaURL, "/"), a.Config.MediaRoot)
	}

	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/rss/", a.handleFeed).Name = RouteFeed

	// Public routes
	e.GET("/", a.handleIndex).Name = RouteIndex
	e.GET("/archives/", a.handleArchive).Name = RouteArchive
	e.GET("/detail/:slug/", a.handleDetail).Name = RouteDetail
	e.GET("/p/:slug/", a.handlePageDetail).Name = RoutePageDetail
	e.GET("/preview/", a.handlePreview).Name = RoutePreview
	e.POST("/preview/", a.handlePreviewRender)

	// Admin routes
	e.GET("/admin/", a.handleAdmin)
	e.POST("/admin/login/", a.handleAdminLogin)
	e.POST("/admin/logout/", handleAdminLogout)

	admin := e.Group("/admin", requireAdmin)
	admin.GET("/article/new/", a.handleAdminArticleNew)
	admin.GET("/article/:slug/", a.handleAdminArticle)
	admin.POST("/article/save/", a.handleAdminArticleSave)
	admin.POST("/article/:slug/delete/", a.handleAdminArticleDelete)
	admin.GET("/page/new/", a.handleAdminPageNew)
	admin.GET("/page/:slug/", a.handleAdminPage)
	admin.POST("/page/save/", a.handleAdminPageSave)
	admin.POST("/page/:slug/delete/", a.handleAdminPageDelete)
	admin.GET("/images/", a.handleImageList)
	admin.POST("/images/upload/", a.handleImageUpload)
	admin.POST("/images/:id/delete/", a.handleImageDelete)
}

// Reverse returns the path of a named route, e.g.
// a.Reverse(RouteDetail, "my-article") == "/detail/my-article/".
func (a *App) Reverse(name string, params ...interface{}) string {
	return a.Echo.Reverse(name, params...)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
