package radpress

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Cover thumbnails on list and detail pages.
const (
	coverWidth  = 760
	coverHeight = 300
)

func (a *App) sidebar() (Sidebar, error) {
	menus, err := a.Cache.Menus()
	if err != nil {
		return Sidebar{}, err
	}
	tags, err := a.Cache.Tags()
	if err != nil {
		return Sidebar{}, err
	}
	return Sidebar{Site: a.Config, Menus: menus, Tags: tags}, nil
}

// coverURL returns the cover thumbnail of an article. Thumbnail failures are
// logged and leave the article without a cover.
func (a *App) coverURL(c echo.Context, article Article) string {
	if article.CoverImage == nil {
		return ""
	}
	u, err := a.Thumbs.ThumbnailURL(*article.CoverImage, coverWidth, coverHeight)
	if err != nil {
		c.Logger().Warnf("thumbnail for %s: %v", article.CoverImage.Image, err)
		return ""
	}
	return u
}

func (a *App) teaser(c echo.Context, article Article) Teaser {
	body := article.ContentByMore(a.Config.MoreTag)
	return Teaser{
		Article:   article,
		Body:      body,
		Truncated: body != article.ContentBody,
		CoverURL:  a.coverURL(c, article),
	}
}

func (a *App) handleIndex(c echo.Context) error {
	articles, err := a.Cache.ListArticles("", a.Config.Limit)
	if err != nil {
		return err
	}
	sb, err := a.sidebar()
	if err != nil {
		return err
	}
	teasers := make([]Teaser, len(articles))
	for i, article := range articles {
		teasers[i] = a.teaser(c, article)
	}
	return Render(c, a.Views.Index(IndexView{Sidebar: sb, Articles: teasers}))
}

func (a *App) handleArchive(c echo.Context) error {
	var tag *Tag
	if slug := c.QueryParam("tag"); slug != "" {
		t, err := a.Store.GetTag(slug)
		if errors.Is(err, ErrNotFound) {
			return a.notFound(c)
		}
		if err != nil {
			return err
		}
		tag = &t
	}
	tagSlug := ""
	if tag != nil {
		tagSlug = tag.Slug
	}
	articles, err := a.Cache.ListArticles(tagSlug, 0)
	if err != nil {
		return err
	}
	sb, err := a.sidebar()
	if err != nil {
		return err
	}
	return Render(c, a.Views.Archive(ArchiveView{Sidebar: sb, Articles: articles, Tag: tag}))
}

func (a *App) handleDetail(c echo.Context) error {
	slug := c.Param("slug")
	var article Article
	var err error
	if IsAdmin(c) {
		article, err = a.Store.GetArticleAny(slug)
	} else {
		article, err = a.Cache.GetArticle(slug)
	}
	if errors.Is(err, ErrNotFound) {
		return a.notFound(c)
	}
	if err != nil {
		return err
	}
	sb, err := a.sidebar()
	if err != nil {
		return err
	}
	return Render(c, a.Views.Detail(DetailView{
		Sidebar:  sb,
		Article:  article,
		CoverURL: a.coverURL(c, article),
		JsonLD:   ArticleJsonLD(article, a.Config),
	}))
}

func (a *App) handlePageDetail(c echo.Context) error {
	slug := c.Param("slug")
	var page Page
	var err error
	if IsAdmin(c) {
		page, err = a.Store.GetPageAny(slug)
	} else {
		page, err = a.Store.GetPage(slug)
	}
	if errors.Is(err, ErrNotFound) {
		return a.notFound(c)
	}
	if err != nil {
		return err
	}
	sb, err := a.sidebar()
	if err != nil {
		return err
	}
	return Render(c, a.Views.PageDetail(PageView{Sidebar: sb, Page: page}))
}

func (a *App) handlePreview(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	return Render(c, a.Views.Preview(PreviewView{Site: a.Config, CSRFToken: CsrfToken(c)}))
}

// handlePreviewRender renders the posted "data" field and returns the HTML
// fragment, without saving anything.
func (a *App) handlePreviewRender(c echo.Context) error {
	if !IsAdmin(c) {
		return c.String(http.StatusForbidden, "Forbidden")
	}
	body, err := a.renderer.Render(c.FormValue("data"))
	if err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}
	return c.HTML(http.StatusOK, body)
}

func (a *App) handleSitemap(c echo.Context) error {
	articles, err := a.Cache.ListArticles("", 0)
	if err != nil {
		return err
	}
	pages, err := a.Store.ListPages()
	if err != nil {
		return err
	}
	return a.renderSitemap(c, articles, pages)
}

func (a *App) handleFeed(c echo.Context) error {
	articles, err := a.Cache.ListArticles("", feedSize)
	if err != nil {
		return err
	}
	return a.renderRSS(c, articles)
}

func (a *App) notFound(c echo.Context) error {
	return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	if errors.Is(err, ErrNotFound) {
		_ = a.notFound(c)
		return
	}
	he, ok := err.(*echo.HTTPError)
	if ok && he.Code == http.StatusNotFound {
		_ = a.notFound(c)
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		c.Logger().Errorf("server error: %v", err)
		_ = RenderStatus(c, code, a.Views.ServerError())
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
