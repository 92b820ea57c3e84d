package radpress

import (
	"encoding/json"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello World", "hello-world"},
		{"  Go & SQLite!  ", "go-sqlite"},
		{"Çalışma Notları", "calisma-notlari"},
		{"Crème brûlée", "creme-brulee"},
		{"already-slugged", "already-slugged"},
		{"---", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		base string
		segs []string
		want string
	}{
		{"https://example.com", nil, "https://example.com"},
		{"https://example.com", []string{"detail", "post"}, "https://example.com/detail/post/"},
		{"https://example.com/blog/", []string{"p", "about"}, "https://example.com/blog/p/about/"},
	}
	for _, tt := range tests {
		if got := BuildURL(tt.base, tt.segs...); got != tt.want {
			t.Errorf("BuildURL(%q, %v) = %q, want %q", tt.base, tt.segs, got, tt.want)
		}
	}
}

func TestAbsoluteURL(t *testing.T) {
	if got := AbsoluteURL("https://example.com/blog/", "/media/a.jpg"); got != "https://example.com/media/a.jpg" {
		t.Errorf("got %q", got)
	}
	if got := AbsoluteURL("https://example.com", "https://cdn.example.com/a.jpg"); got != "https://cdn.example.com/a.jpg" {
		t.Errorf("got %q", got)
	}
}

func TestParseTagList(t *testing.T) {
	tags := ParseTagList(" Go, web ,go,, ###, Web Dev")
	want := []Tag{{Name: "Go", Slug: "go"}, {Name: "web", Slug: "web"}, {Name: "Web Dev", Slug: "web-dev"}}
	if len(tags) != len(want) {
		t.Fatalf("got %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Errorf("tag %d = %+v, want %+v", i, tags[i], want[i])
		}
	}
	if got := JoinTags(tags); got != "Go, web, Web Dev" {
		t.Errorf("JoinTags = %q", got)
	}
}

func TestArticleJsonLD(t *testing.T) {
	cfg := SiteConfig{Name: "Blog", URL: "https://example.com", Author: "Jo", MediaURL: "/media/"}
	a := Article{
		Entry:      Entry{Title: "Post", Slug: "post"},
		CoverImage: &EntryImage{Image: "radpress/entry_images/c.jpg"},
		Tags:       []Tag{{Name: "Go", Slug: "go"}},
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(ArticleJsonLD(a, cfg)), &data); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if data["url"] != "https://example.com/detail/post/" {
		t.Errorf("url = %v", data["url"])
	}
	if data["image"] != "https://example.com/media/radpress/entry_images/c.jpg" {
		t.Errorf("image = %v", data["image"])
	}
	if data["keywords"] != "Go" {
		t.Errorf("keywords = %v", data["keywords"])
	}
}
