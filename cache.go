package radpress

import (
	"sync"
	"time"
)

// ArticleCache is an in-memory cache of published articles, tag counts and
// menu entries with a TTL. Admin writes call Invalidate.
type ArticleCache struct {
	mu       sync.RWMutex
	articles []Article
	tags     []TagCount
	menus    []Menu
	loaded   bool
	fetched  time.Time
	ttl      time.Duration
	store    *Store
}

// NewArticleCache creates an ArticleCache backed by the given Store.
func NewArticleCache(s *Store, ttl time.Duration) *ArticleCache {
	return &ArticleCache{store: s, ttl: ttl}
}

func (c *ArticleCache) valid() bool {
	return c.loaded && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *ArticleCache) Invalidate() {
	c.mu.Lock()
	c.articles = nil
	c.tags = nil
	c.menus = nil
	c.loaded = false
	c.mu.Unlock()
}

func (c *ArticleCache) load() error {
	if c.valid() {
		return nil
	}
	articles, err := c.store.ListArticles("", 0)
	if err != nil {
		return err
	}
	tags, err := c.store.ListTagCounts()
	if err != nil {
		return err
	}
	menus, err := c.store.ListMenus()
	if err != nil {
		return err
	}
	c.articles = articles
	c.tags = tags
	c.menus = menus
	c.loaded = true
	c.fetched = time.Now()
	return nil
}

// ensureLoaded returns cached data after ensuring the cache is fresh.
// It tries a read lock first; only takes a write lock if a reload is needed.
func (c *ArticleCache) ensureLoaded() ([]Article, []TagCount, []Menu, error) {
	c.mu.RLock()
	if c.valid() {
		articles, tags, menus := c.articles, c.tags, c.menus
		c.mu.RUnlock()
		return articles, tags, menus, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(); err != nil {
		return nil, nil, nil, err
	}
	return c.articles, c.tags, c.menus, nil
}

// ListArticles returns published articles, newest first, optionally
// filtered by tag slug. limit <= 0 returns all of them.
func (c *ArticleCache) ListArticles(tagSlug string, limit int) ([]Article, error) {
	articles, _, _, err := c.ensureLoaded()
	if err != nil {
		return nil, err
	}
	if tagSlug != "" {
		var filtered []Article
		for _, a := range articles {
			for _, t := range a.Tags {
				if t.Slug == tagSlug {
					filtered = append(filtered, a)
					break
				}
			}
		}
		articles = filtered
	}
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}
	return articles, nil
}

// GetArticle returns a single published article by slug from the cache.
func (c *ArticleCache) GetArticle(slug string) (Article, error) {
	articles, _, _, err := c.ensureLoaded()
	if err != nil {
		return Article{}, err
	}
	for _, a := range articles {
		if a.Slug == slug {
			return a, nil
		}
	}
	return Article{}, ErrNotFound
}

// Tags returns the tags of published articles with their counts.
func (c *ArticleCache) Tags() ([]TagCount, error) {
	_, tags, _, err := c.ensureLoaded()
	return tags, err
}

// Menus returns the navigation entries of published pages.
func (c *ArticleCache) Menus() ([]Menu, error) {
	_, _, menus, err := c.ensureLoaded()
	return menus, err
}
