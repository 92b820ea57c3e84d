package radpress

import (
	"errors"
	"fmt"
	"strings"

	"github.com/radpress/radpress/rst"
)

// DefaultMoreTag is the teaser marker. It is what the reST comment
// ".. more" renders to.
const DefaultMoreTag = "<!-- more -->"

// Renderer converts entry source markup to HTML.
type Renderer interface {
	Render(src string) (string, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(src string) (string, error)

// Render calls f(src).
func (f RendererFunc) Render(src string) (string, error) {
	return f(src)
}

// ErrRender marks a save that failed because the content did not render.
var ErrRender = errors.New("radpress: render failed")

// DefaultRenderer renders reStructuredText.
var DefaultRenderer Renderer = rst.Renderer{}

// SplitMore cuts body at the first occurrence of marker. When the marker is
// present the trimmed prefix is returned with one closing "</div>" appended,
// matching the container the renderer opens. Otherwise body is returned
// unchanged.
func SplitMore(body, marker string) string {
	if marker == "" {
		return body
	}
	before, _, found := strings.Cut(body, marker)
	if !found {
		return body
	}
	return strings.TrimSpace(before) + "</div>"
}

// renderEntry fills e.ContentBody from e.Content. On failure e is untouched.
func renderEntry(r Renderer, e *Entry) error {
	body, err := r.Render(e.Content)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrRender, e.Slug, err)
	}
	e.ContentBody = body
	return nil
}
