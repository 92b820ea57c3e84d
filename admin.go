package radpress

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// requireAdmin redirects anonymous requests to the login form.
func requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !IsAdmin(c) {
			return c.Redirect(http.StatusSeeOther, "/admin/")
		}
		return next(c)
	}
}

func redirectMsg(c echo.Context, msg string) error {
	return c.Redirect(http.StatusSeeOther, "/admin/?msg="+url.QueryEscape(msg))
}

// saveMessage turns a Save* error into a message for the dashboard.
// Errors that are not the user's fault are returned as is.
func saveMessage(kind string, err error) (string, error) {
	switch {
	case errors.Is(err, ErrConflict):
		return "Another " + kind + " already uses this slug.", nil
	case errors.Is(err, ErrRender):
		return "The content could not be rendered: " + err.Error(), nil
	}
	return "", err
}

func formID(c echo.Context, name string) int64 {
	id, _ := strconv.ParseInt(strings.TrimSpace(c.FormValue(name)), 10, 64)
	return id
}

func formEntry(c echo.Context) Entry {
	title := strings.TrimSpace(c.FormValue("title"))
	slug := Slugify(c.FormValue("slug"))
	if slug == "" {
		slug = Slugify(title)
	}
	return Entry{
		ID:        formID(c, "id"),
		Title:     title,
		Slug:      slug,
		Content:   c.FormValue("content"),
		Published: c.FormValue("published") != "",
	}
}

func (a *App) handleAdmin(c echo.Context) error {
	if !IsAdmin(c) {
		return Render(c, a.Views.AdminLogin(false, CsrfToken(c)))
	}
	articles, err := a.Store.ListAllArticles()
	if err != nil {
		return err
	}
	pages, err := a.Store.ListAllPages()
	if err != nil {
		return err
	}
	return Render(c, a.Views.AdminDashboard(AdminDashboardView{
		Articles:  articles,
		Pages:     pages,
		Message:   c.QueryParam("msg"),
		CSRFToken: CsrfToken(c),
	}))
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	pass := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.AdminPassword)) != 1 {
		a.loginLimiter.Record(ip)
		c.Logger().Warnf("failed admin login from %s", ip)
		return RenderStatus(c, http.StatusUnauthorized, a.Views.AdminLogin(true, CsrfToken(c)))
	}
	a.loginLimiter.Reset(ip)
	if err := setAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

// ---- articles ----

func (a *App) renderArticleForm(c echo.Context, article Article) error {
	images, err := a.Store.ListImages()
	if err != nil {
		return err
	}
	return Render(c, a.Views.AdminArticleForm(AdminArticleView{
		Article:   article,
		TagList:   JoinTags(article.Tags),
		Images:    images,
		CSRFToken: CsrfToken(c),
	}))
}

func (a *App) handleAdminArticleNew(c echo.Context) error {
	return a.renderArticleForm(c, Article{})
}

func (a *App) handleAdminArticle(c echo.Context) error {
	article, err := a.Store.GetArticleAny(c.Param("slug"))
	if err != nil {
		return err
	}
	return a.renderArticleForm(c, article)
}

func (a *App) handleAdminArticleSave(c echo.Context) error {
	article := Article{
		Entry: formEntry(c),
		Tags:  ParseTagList(c.FormValue("tags")),
	}
	if article.Slug == "" {
		return redirectMsg(c, "Slug is required. Add a title or slug.")
	}
	if id := formID(c, "cover_image"); id != 0 {
		img, err := a.Store.GetImage(id)
		if errors.Is(err, ErrNotFound) {
			return redirectMsg(c, "The selected cover image no longer exists.")
		}
		if err != nil {
			return err
		}
		article.CoverImage = &img
	}
	if err := a.Store.SaveArticle(&article); err != nil {
		msg, err := saveMessage("article", err)
		if err != nil {
			return err
		}
		return redirectMsg(c, msg)
	}
	a.Cache.Invalidate()
	return redirectMsg(c, "Article "+article.Title+" saved.")
}

func (a *App) handleAdminArticleDelete(c echo.Context) error {
	if err := a.Store.DeleteArticle(c.Param("slug")); err != nil {
		return err
	}
	a.Cache.Invalidate()
	return redirectMsg(c, "Article deleted.")
}

// ---- pages ----

func (a *App) handleAdminPageNew(c echo.Context) error {
	return Render(c, a.Views.AdminPageForm(AdminPageView{CSRFToken: CsrfToken(c)}))
}

func (a *App) handleAdminPage(c echo.Context) error {
	page, err := a.Store.GetPageAny(c.Param("slug"))
	if err != nil {
		return err
	}
	v := AdminPageView{Page: page, CSRFToken: CsrfToken(c)}
	menu, err := a.Store.GetMenuForPage(page.ID)
	switch {
	case err == nil:
		v.MenuOrder = menu.Order
	case !errors.Is(err, ErrNotFound):
		return err
	}
	return Render(c, a.Views.AdminPageForm(v))
}

func (a *App) handleAdminPageSave(c echo.Context) error {
	page := Page{Entry: formEntry(c)}
	if page.Slug == "" {
		return redirectMsg(c, "Slug is required. Add a title or slug.")
	}
	order := 0
	if raw := strings.TrimSpace(c.FormValue("menu_order")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return redirectMsg(c, "Menu order must be a positive number.")
		}
		order = n
	}
	if err := a.Store.SavePage(&page); err != nil {
		msg, err := saveMessage("page", err)
		if err != nil {
			return err
		}
		return redirectMsg(c, msg)
	}
	if err := a.syncMenu(page.ID, order); err != nil {
		return err
	}
	a.Cache.Invalidate()
	return redirectMsg(c, "Page "+page.Title+" saved.")
}

// syncMenu puts a page in the menu at order, or removes it when order is 0.
func (a *App) syncMenu(pageID int64, order int) error {
	menu, err := a.Store.GetMenuForPage(pageID)
	switch {
	case errors.Is(err, ErrNotFound):
		if order == 0 {
			return nil
		}
		return a.Store.SaveMenu(&Menu{Order: order, PageID: pageID})
	case err != nil:
		return err
	case order == 0:
		return a.Store.DeleteMenu(menu.ID)
	}
	menu.Order = order
	return a.Store.SaveMenu(&menu)
}

func (a *App) handleAdminPageDelete(c echo.Context) error {
	if err := a.Store.DeletePage(c.Param("slug")); err != nil {
		return err
	}
	a.Cache.Invalidate()
	return redirectMsg(c, "Page deleted.")
}
