package radpress

import "testing"

func TestSplitMore(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		marker string
		want   string
	}{
		{"marker present", "Intro text<!--more-->Rest of article", "<!--more-->", "Intro text</div>"},
		{"marker absent", "<div>No marker</div>", "<!--more-->", "<div>No marker</div>"},
		{"first occurrence only", "A<!--more-->B<!--more-->C", "<!--more-->", "A</div>"},
		{"trims prefix", "  <div><p>Intro</p>\n<!-- more -->\n<p>Rest</p></div>", DefaultMoreTag, "<div><p>Intro</p></div>"},
		{"marker at start", "<!--more-->Rest", "<!--more-->", "</div>"},
		{"empty marker", "Body", "", "Body"},
		{"empty body", "", "<!--more-->", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SplitMore(tt.body, tt.marker); got != tt.want {
				t.Errorf("SplitMore(%q, %q) = %q, want %q", tt.body, tt.marker, got, tt.want)
			}
		})
	}
}

func TestContentByMoreUsesRenderedBody(t *testing.T) {
	a := Article{Entry: Entry{
		Content:     "Intro\n\n.. more\n\nRest",
		ContentBody: "<div class=\"document\"><p>Intro</p>\n<!-- more -->\n<p>Rest</p>\n</div>",
	}}
	want := `<div class="document"><p>Intro</p></div>`
	if got := a.ContentByMore(DefaultMoreTag); got != want {
		t.Errorf("ContentByMore = %q, want %q", got, want)
	}
}

func TestRenderEntryDefaultMoreTag(t *testing.T) {
	e := Entry{Slug: "x", Content: "Intro\n\n.. more\n\nRest\n"}
	if err := renderEntry(DefaultRenderer, &e); err != nil {
		t.Fatalf("renderEntry: %v", err)
	}
	a := Article{Entry: e}
	if got := a.ContentByMore(DefaultMoreTag); got == e.ContentBody {
		t.Errorf("expected rendered .. more comment to split the body, got %q", got)
	}
}

func TestRenderEntryInvalidInput(t *testing.T) {
	e := Entry{Slug: "bad", Content: "\xff\xfe"}
	if err := renderEntry(DefaultRenderer, &e); err == nil {
		t.Fatal("expected error for invalid UTF-8")
	}
	if e.ContentBody != "" {
		t.Errorf("ContentBody set on failure: %q", e.ContentBody)
	}
}
