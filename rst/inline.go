package rst

import (
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	reLiteral      = regexp.MustCompile("(?s)``(.+?)``")
	reEmbeddedLink = regexp.MustCompile("(?s)`([^`]*?)\\s*&lt;([^`]+?)&gt;`__?")
	reNamedRef     = regexp.MustCompile("(?s)`([^`]+?)`__?")
	reInterpreted  = regexp.MustCompile("(?s)`([^`]+?)`")
	reStrong       = regexp.MustCompile(`(?s)\*\*(\S.*?)\*\*`)
	reEmphasis     = regexp.MustCompile(`(?s)\*([^*\s][^*]*?)\*`)
)

// inline applies inline markup to a paragraph's text. The text is escaped
// first; markup is only recognised in the escaped form.
func (d *document) inline(s string) string {
	escaped := html.EscapeString(s)

	// Inline literals are swapped for placeholders so nothing else formats
	// their contents.
	var literals []string
	escaped = reLiteral.ReplaceAllStringFunc(escaped, func(m string) string {
		match := reLiteral.FindStringSubmatch(m)
		placeholder := "\x00L" + strconv.Itoa(len(literals)) + "\x00"
		literals = append(literals, `<code class="docutils literal">`+match[1]+"</code>")
		return placeholder
	})

	escaped = reEmbeddedLink.ReplaceAllStringFunc(escaped, func(m string) string {
		match := reEmbeddedLink.FindStringSubmatch(m)
		href := SafeURL(match[2])
		text := strings.TrimSpace(match[1])
		if text == "" {
			text = match[2]
		}
		if href == "" {
			return text
		}
		return `<a class="reference external" href="` + href + `">` + text + `</a>`
	})
	escaped = reNamedRef.ReplaceAllStringFunc(escaped, func(m string) string {
		match := reNamedRef.FindStringSubmatch(m)
		target, ok := d.targets[strings.ToLower(html.UnescapeString(match[1]))]
		if !ok {
			return match[1]
		}
		href := SafeURL(html.EscapeString(target))
		if href == "" {
			return match[1]
		}
		return `<a class="reference external" href="` + href + `">` + match[1] + `</a>`
	})
	escaped = ApplyOutsideTags(escaped, func(seg string) string {
		seg = reInterpreted.ReplaceAllString(seg, "<cite>$1</cite>")
		seg = reStrong.ReplaceAllString(seg, "<strong>$1</strong>")
		seg = reEmphasis.ReplaceAllString(seg, "<em>$1</em>")
		return seg
	})

	for i, lit := range literals {
		escaped = strings.Replace(escaped, "\x00L"+strconv.Itoa(i)+"\x00", lit, 1)
	}
	return escaped
}

// ApplyOutsideTags applies fn only to text segments outside HTML tags,
// so that formatting regexes never touch URLs inside href attributes.
func ApplyOutsideTags(s string, fn func(string) string) string {
	var buf strings.Builder
	for len(s) > 0 {
		lt := strings.Index(s, "<")
		if lt < 0 {
			buf.WriteString(fn(s))
			break
		}
		if lt > 0 {
			buf.WriteString(fn(s[:lt]))
		}
		gt := strings.Index(s[lt:], ">")
		if gt < 0 {
			buf.WriteString(s[lt:])
			break
		}
		buf.WriteString(s[lt : lt+gt+1])
		s = s[lt+gt+1:]
	}
	return buf.String()
}

// SafeURL validates an (HTML-escaped) URL for use in an attribute. Relative
// paths, fragments and http(s)/mailto/tel URLs pass; anything else yields "".
func SafeURL(raw string) string {
	val := strings.TrimSpace(html.UnescapeString(raw))
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") || strings.HasPrefix(val, "#") {
		return html.EscapeString(val)
	}
	parsed, err := url.Parse(val)
	if err != nil || parsed.Scheme == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "mailto", "tel":
		return html.EscapeString(val)
	default:
		return ""
	}
}
