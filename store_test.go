package radpress

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	return setupTestStoreWith(t, nil)
}

func setupTestStoreWith(t *testing.T, r Renderer) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "data", "radpress.db"), r)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// clock returns a fake now func that moves forward one minute per call.
func clock(s *Store) {
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
}

func newArticle(title string, published bool, tags ...string) *Article {
	a := &Article{Entry: Entry{
		Title:     title,
		Slug:      Slugify(title),
		Content:   "Body of " + title + "\n",
		Published: published,
	}}
	for _, name := range tags {
		a.Tags = append(a.Tags, Tag{Name: name, Slug: Slugify(name)})
	}
	return a
}

func mustSaveArticle(t *testing.T, s *Store, a *Article) {
	t.Helper()
	if err := s.SaveArticle(a); err != nil {
		t.Fatalf("SaveArticle(%q): %v", a.Slug, err)
	}
}

func TestNewStoreCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "radpress.db")
	s, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Close()
	if s.renderer == nil {
		t.Fatal("expected default renderer")
	}
}

func TestSaveArticleRendersContent(t *testing.T) {
	s := setupTestStore(t)
	a := newArticle("Hello", true)
	a.Content = "Intro *text*\n\n.. more\n\nRest of article\n"
	mustSaveArticle(t, s, a)

	if a.ID == 0 {
		t.Fatal("expected ID to be assigned")
	}
	want := `<div class="document">`
	if !strings.HasPrefix(a.ContentBody, want) {
		t.Fatalf("ContentBody = %q, want prefix %q", a.ContentBody, want)
	}
	if !strings.Contains(a.ContentBody, "<em>text</em>") || !strings.Contains(a.ContentBody, DefaultMoreTag) {
		t.Fatalf("ContentBody = %q", a.ContentBody)
	}

	got, err := s.GetArticle("hello")
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	if got.ContentBody != a.ContentBody {
		t.Errorf("stored body = %q, want %q", got.ContentBody, a.ContentBody)
	}
	teaser := got.ContentByMore(DefaultMoreTag)
	if strings.Contains(teaser, "Rest of article") || !strings.HasSuffix(teaser, "</div>") {
		t.Errorf("teaser = %q", teaser)
	}
}

func TestSaveArticleOverwritesContentBody(t *testing.T) {
	s := setupTestStore(t)
	a := newArticle("Hello", true)
	a.ContentBody = "<p>stale</p>"
	mustSaveArticle(t, s, a)
	if strings.Contains(a.ContentBody, "stale") {
		t.Fatalf("ContentBody was not regenerated: %q", a.ContentBody)
	}
}

func TestSaveArticleTimestamps(t *testing.T) {
	s := setupTestStore(t)
	clock(s)
	a := newArticle("Stamped", true)
	mustSaveArticle(t, s, a)
	created, updated := a.CreatedAt, a.UpdatedAt
	if !created.Equal(updated) {
		t.Fatalf("first save: created %v != updated %v", created, updated)
	}

	a.Title = "Stamped again"
	a.CreatedAt = time.Time{}
	mustSaveArticle(t, s, a)
	if !a.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt changed: %v -> %v", created, a.CreatedAt)
	}
	if !a.UpdatedAt.After(updated) {
		t.Errorf("UpdatedAt not advanced: %v -> %v", updated, a.UpdatedAt)
	}

	got, err := s.GetArticle(a.Slug)
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	if !got.CreatedAt.Equal(created) || !got.UpdatedAt.Equal(a.UpdatedAt) {
		t.Errorf("stored timestamps = %v/%v, want %v/%v", got.CreatedAt, got.UpdatedAt, created, a.UpdatedAt)
	}
	if got.Title != "Stamped again" {
		t.Errorf("Title = %q", got.Title)
	}
}

func TestSaveArticleRenderFailureWritesNothing(t *testing.T) {
	boom := errors.New("boom")
	fail := false
	s := setupTestStoreWith(t, RendererFunc(func(src string) (string, error) {
		if fail {
			return "", boom
		}
		return "<p>" + src + "</p>", nil
	}))

	a := newArticle("Kept", true, "go")
	mustSaveArticle(t, s, a)
	before := *a

	fail = true
	a.Content = "changed"
	a.Tags = nil
	err := s.SaveArticle(a)
	if !errors.Is(err, boom) || !errors.Is(err, ErrRender) {
		t.Fatalf("SaveArticle error = %v, want ErrRender wrapping boom", err)
	}
	if a.ContentBody != before.ContentBody || !a.UpdatedAt.Equal(before.UpdatedAt) {
		t.Errorf("article mutated on failure: %+v", a.Entry)
	}

	got, err := s.GetArticle("kept")
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	if got.Content != before.Content || len(got.Tags) != 1 {
		t.Errorf("stored article changed: content %q, tags %v", got.Content, got.Tags)
	}

	fail = true
	if err := s.SaveArticle(newArticle("Never", true)); err == nil {
		t.Fatal("expected error for new article")
	}
	if _, err := s.GetArticleAny("never"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetArticleAny(never) error = %v, want ErrNotFound", err)
	}
}

func TestSaveArticleReplacesTags(t *testing.T) {
	s := setupTestStore(t)
	a := newArticle("Tagged", true, "Go", "Web")
	mustSaveArticle(t, s, a)
	for _, tag := range a.Tags {
		if tag.ID == 0 {
			t.Fatalf("tag %q has no ID after save", tag.Slug)
		}
	}

	a.Tags = []Tag{{Name: "Web", Slug: "web"}, {Name: "SQLite", Slug: "sqlite"}}
	mustSaveArticle(t, s, a)

	got, err := s.GetArticle("tagged")
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	var slugs []string
	for _, tag := range got.Tags {
		slugs = append(slugs, tag.Slug)
	}
	if strings.Join(slugs, ",") != "sqlite,web" {
		t.Errorf("tags = %v, want [sqlite web]", slugs)
	}

	// The unused tag survives; only the link is gone.
	if _, err := s.GetTag("go"); err != nil {
		t.Errorf("GetTag(go): %v", err)
	}
	tagged, err := s.ListArticles("go", 0)
	if err != nil {
		t.Fatalf("ListArticles: %v", err)
	}
	if len(tagged) != 0 {
		t.Errorf("expected no articles tagged go, got %d", len(tagged))
	}
}

func TestSaveArticleReusesTagsBySlug(t *testing.T) {
	s := setupTestStore(t)
	a := newArticle("First", true, "Go")
	b := newArticle("Second", true, "go")
	mustSaveArticle(t, s, a)
	mustSaveArticle(t, s, b)
	if a.Tags[0].ID != b.Tags[0].ID {
		t.Errorf("tag IDs differ: %d vs %d", a.Tags[0].ID, b.Tags[0].ID)
	}
	if b.Tags[0].Name != "Go" {
		t.Errorf("expected existing tag name, got %q", b.Tags[0].Name)
	}
}

func TestSaveArticleSlugConflict(t *testing.T) {
	s := setupTestStore(t)
	mustSaveArticle(t, s, newArticle("Same", true))
	err := s.SaveArticle(newArticle("Same", false))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict", err)
	}
}

func TestGetArticleUnpublished(t *testing.T) {
	s := setupTestStore(t)
	mustSaveArticle(t, s, newArticle("Draft", false))

	if _, err := s.GetArticle("draft"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetArticle(draft) error = %v, want ErrNotFound", err)
	}
	got, err := s.GetArticleAny("draft")
	if err != nil {
		t.Fatalf("GetArticleAny: %v", err)
	}
	if got.Published {
		t.Error("expected draft")
	}
}

func TestListArticles(t *testing.T) {
	s := setupTestStore(t)
	clock(s)
	mustSaveArticle(t, s, newArticle("One", true, "go"))
	mustSaveArticle(t, s, newArticle("Two", false, "go"))
	mustSaveArticle(t, s, newArticle("Three", true, "web"))
	mustSaveArticle(t, s, newArticle("Four", true, "go", "web"))

	tests := []struct {
		name  string
		tag   string
		limit int
		want  string
	}{
		{"all published newest first", "", 0, "four,three,one"},
		{"limit", "", 2, "four,three"},
		{"by tag", "go", 0, "four,one"},
		{"unknown tag", "rust", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			articles, err := s.ListArticles(tt.tag, tt.limit)
			if err != nil {
				t.Fatalf("ListArticles: %v", err)
			}
			var slugs []string
			for _, a := range articles {
				slugs = append(slugs, a.Slug)
			}
			if got := strings.Join(slugs, ","); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	all, err := s.ListAllArticles()
	if err != nil {
		t.Fatalf("ListAllArticles: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("ListAllArticles returned %d, want 4", len(all))
	}
}

func TestDeleteArticleRemovesTagLinks(t *testing.T) {
	s := setupTestStore(t)
	mustSaveArticle(t, s, newArticle("Gone", true, "go"))
	if err := s.DeleteArticle("gone"); err != nil {
		t.Fatalf("DeleteArticle: %v", err)
	}
	if _, err := s.GetArticleAny("gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM article_tags`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("article_tags rows = %d, want 0", n)
	}
}

func TestDeleteNonexistentArticle(t *testing.T) {
	s := setupTestStore(t)
	if err := s.DeleteArticle("nope"); err != nil {
		t.Fatalf("DeleteArticle: %v", err)
	}
}

func TestCoverImageSetNullOnDelete(t *testing.T) {
	s := setupTestStore(t)
	img := EntryImage{Name: "Cover", Image: "radpress/entry_images/cover.jpg"}
	if err := s.SaveImage(&img); err != nil {
		t.Fatalf("SaveImage: %v", err)
	}
	a := newArticle("Covered", true)
	a.CoverImage = &img
	mustSaveArticle(t, s, a)

	got, err := s.GetArticle("covered")
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	if got.CoverImage == nil || got.CoverImage.Image != img.Image {
		t.Fatalf("CoverImage = %+v", got.CoverImage)
	}

	if err := s.DeleteImage(img.ID); err != nil {
		t.Fatalf("DeleteImage: %v", err)
	}
	got, err = s.GetArticle("covered")
	if err != nil {
		t.Fatalf("article should survive image deletion: %v", err)
	}
	if got.CoverImage != nil {
		t.Errorf("CoverImage = %+v, want nil", got.CoverImage)
	}
}

func TestTagCounts(t *testing.T) {
	s := setupTestStore(t)
	mustSaveArticle(t, s, newArticle("A", true, "go", "web"))
	mustSaveArticle(t, s, newArticle("B", true, "go"))
	mustSaveArticle(t, s, newArticle("C", false, "web", "draft-only"))

	counts, err := s.ListTagCounts()
	if err != nil {
		t.Fatalf("ListTagCounts: %v", err)
	}
	got := map[string]int{}
	for _, tc := range counts {
		got[tc.Slug] = tc.Count
	}
	if len(got) != 2 || got["go"] != 2 || got["web"] != 1 {
		t.Errorf("tag counts = %v", got)
	}
}

func TestSaveTag(t *testing.T) {
	s := setupTestStore(t)
	tag := Tag{Name: "Çalışma Notları"}
	if err := s.SaveTag(&tag); err != nil {
		t.Fatalf("SaveTag: %v", err)
	}
	if tag.Slug != "calisma-notlari" {
		t.Errorf("Slug = %q", tag.Slug)
	}
	if err := s.SaveTag(&Tag{Name: "Other", Slug: "calisma-notlari"}); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate slug error = %v, want ErrConflict", err)
	}
	if err := s.DeleteTag(tag.Slug); err != nil {
		t.Fatalf("DeleteTag: %v", err)
	}
	if _, err := s.GetTag(tag.Slug); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetTag after delete error = %v", err)
	}
}

func newPage(title string, published bool) *Page {
	return &Page{Entry: Entry{Title: title, Slug: Slugify(title), Content: title + "\n", Published: published}}
}

func TestPages(t *testing.T) {
	s := setupTestStore(t)
	clock(s)
	about := newPage("About", true)
	if err := s.SavePage(about); err != nil {
		t.Fatalf("SavePage: %v", err)
	}
	if !strings.Contains(about.ContentBody, "<p>About</p>") {
		t.Errorf("ContentBody = %q", about.ContentBody)
	}
	if err := s.SavePage(newPage("Hidden", false)); err != nil {
		t.Fatalf("SavePage: %v", err)
	}
	if err := s.SavePage(newPage("About", true)); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate page error = %v, want ErrConflict", err)
	}

	if _, err := s.GetPage("hidden"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPage(hidden) error = %v", err)
	}
	if _, err := s.GetPageAny("hidden"); err != nil {
		t.Errorf("GetPageAny(hidden): %v", err)
	}
	pages, err := s.ListPages()
	if err != nil || len(pages) != 1 {
		t.Fatalf("ListPages = %v, %v", pages, err)
	}
	all, err := s.ListAllPages()
	if err != nil || len(all) != 2 {
		t.Fatalf("ListAllPages = %v, %v", all, err)
	}

	created := about.CreatedAt
	about.Content = "Changed\n"
	if err := s.SavePage(about); err != nil {
		t.Fatalf("SavePage update: %v", err)
	}
	if !about.CreatedAt.Equal(created) || !about.UpdatedAt.After(created) {
		t.Errorf("timestamps after update: %v/%v", about.CreatedAt, about.UpdatedAt)
	}
}

func TestMenus(t *testing.T) {
	s := setupTestStore(t)
	pages := map[string]*Page{}
	for _, p := range []*Page{newPage("Zeta", true), newPage("Alpha", true), newPage("Draft", false), newPage("First", true)} {
		if err := s.SavePage(p); err != nil {
			t.Fatalf("SavePage: %v", err)
		}
		pages[p.Slug] = p
	}

	zeta := Menu{PageID: pages["zeta"].ID}
	if err := s.SaveMenu(&zeta); err != nil {
		t.Fatalf("SaveMenu: %v", err)
	}
	if zeta.Order != DefaultMenuOrder {
		t.Errorf("Order = %d, want %d", zeta.Order, DefaultMenuOrder)
	}
	for _, m := range []Menu{
		{PageID: pages["alpha"].ID},
		{PageID: pages["draft"].ID, Order: 1},
		{PageID: pages["first"].ID, Order: 1},
	} {
		if err := s.SaveMenu(&m); err != nil {
			t.Fatalf("SaveMenu: %v", err)
		}
	}

	if err := s.SaveMenu(&Menu{PageID: pages["zeta"].ID, Order: 9}); !errors.Is(err, ErrConflict) {
		t.Errorf("second entry for page error = %v, want ErrConflict", err)
	}
	if err := s.SaveMenu(&Menu{PageID: pages["alpha"].ID, Order: -1}); err == nil {
		t.Error("expected error for negative order")
	}

	menus, err := s.ListMenus()
	if err != nil {
		t.Fatalf("ListMenus: %v", err)
	}
	var got []string
	for _, m := range menus {
		got = append(got, m.Page.Slug)
	}
	if strings.Join(got, ",") != "first,alpha,zeta" {
		t.Errorf("menu order = %v, want [first alpha zeta]", got)
	}

	m, err := s.GetMenuForPage(pages["zeta"].ID)
	if err != nil {
		t.Fatalf("GetMenuForPage: %v", err)
	}
	m.Order = 7
	if err := s.SaveMenu(&m); err != nil {
		t.Fatalf("SaveMenu update: %v", err)
	}
	if err := s.SaveMenu(&Menu{ID: 999, PageID: pages["zeta"].ID, Order: 2}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing menu error = %v, want ErrNotFound", err)
	}

	if err := s.DeletePage("alpha"); err != nil {
		t.Fatalf("DeletePage: %v", err)
	}
	if _, err := s.GetMenuForPage(pages["alpha"].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("menu entry survived page deletion: %v", err)
	}
	if err := s.DeleteMenu(m.ID); err != nil {
		t.Fatalf("DeleteMenu: %v", err)
	}
	menus, err = s.ListMenus()
	if err != nil || len(menus) != 1 || menus[0].Page.Slug != "first" {
		t.Errorf("ListMenus after deletes = %v, %v", menus, err)
	}
}

func TestImages(t *testing.T) {
	s := setupTestStore(t)
	img := EntryImage{Name: "Logo", Image: "radpress/entry_images/logo.jpg"}
	if err := s.SaveImage(&img); err != nil {
		t.Fatalf("SaveImage: %v", err)
	}
	ok, err := s.ImageExists(img.Image)
	if err != nil || !ok {
		t.Fatalf("ImageExists = %v, %v", ok, err)
	}
	img.Name = "Logo 2"
	if err := s.SaveImage(&img); err != nil {
		t.Fatalf("SaveImage update: %v", err)
	}
	got, err := s.GetImage(img.ID)
	if err != nil || got.Name != "Logo 2" {
		t.Fatalf("GetImage = %+v, %v", got, err)
	}
	list, err := s.ListImages()
	if err != nil || len(list) != 1 {
		t.Fatalf("ListImages = %v, %v", list, err)
	}
	if err := s.DeleteImage(img.ID); err != nil {
		t.Fatalf("DeleteImage: %v", err)
	}
	if ok, _ := s.ImageExists(img.Image); ok {
		t.Error("image still recorded after delete")
	}
}
