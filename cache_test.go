package radpress

import (
	"errors"
	"testing"
	"time"
)

func TestArticleCache(t *testing.T) {
	s := setupTestStore(t)
	mustSaveArticle(t, s, newArticle("Cached", true, "go"))
	about := newPage("About", true)
	if err := s.SavePage(about); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveMenu(&Menu{PageID: about.ID}); err != nil {
		t.Fatal(err)
	}

	c := NewArticleCache(s, time.Hour)
	articles, err := c.ListArticles("", 0)
	if err != nil || len(articles) != 1 {
		t.Fatalf("ListArticles = %v, %v", articles, err)
	}
	tags, err := c.Tags()
	if err != nil || len(tags) != 1 || tags[0].Count != 1 {
		t.Fatalf("Tags = %v, %v", tags, err)
	}
	menus, err := c.Menus()
	if err != nil || len(menus) != 1 || menus[0].Page.Slug != "about" {
		t.Fatalf("Menus = %v, %v", menus, err)
	}

	// Writes are invisible until Invalidate.
	mustSaveArticle(t, s, newArticle("Fresh", true, "web"))
	if articles, _ := c.ListArticles("", 0); len(articles) != 1 {
		t.Errorf("expected stale cache, got %d articles", len(articles))
	}
	c.Invalidate()
	if articles, _ := c.ListArticles("", 0); len(articles) != 2 {
		t.Errorf("expected 2 articles after Invalidate, got %d", len(articles))
	}

	if got, _ := c.ListArticles("web", 0); len(got) != 1 || got[0].Slug != "fresh" {
		t.Errorf("ListArticles(web) = %v", got)
	}
	if got, _ := c.ListArticles("", 1); len(got) != 1 {
		t.Errorf("ListArticles limit = %d", len(got))
	}
	if _, err := c.GetArticle("fresh"); err != nil {
		t.Errorf("GetArticle(fresh): %v", err)
	}
	if _, err := c.GetArticle("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetArticle(nope) error = %v", err)
	}
}

func TestArticleCacheExpires(t *testing.T) {
	s := setupTestStore(t)
	c := NewArticleCache(s, time.Nanosecond)
	if articles, err := c.ListArticles("", 0); err != nil || len(articles) != 0 {
		t.Fatalf("ListArticles = %v, %v", articles, err)
	}
	mustSaveArticle(t, s, newArticle("Later", true))
	time.Sleep(time.Millisecond)
	if articles, _ := c.ListArticles("", 0); len(articles) != 1 {
		t.Errorf("expected expired cache to reload, got %d", len(articles))
	}
}
