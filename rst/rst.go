// Package rst renders a practical subset of reStructuredText to HTML.
//
// The output is wrapped in a single <div class="document"> container, so a
// caller that cuts the rendered body short can close the markup again with
// one "</div>".
package rst

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxSize is the largest source accepted by a zero Renderer.
const DefaultMaxSize = 1 << 20

var (
	// ErrInvalidUTF8 is returned for source text that is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("rst: input is not valid UTF-8")
	// ErrTooLarge is returned for source text above the renderer's size limit.
	ErrTooLarge = errors.New("rst: input exceeds size limit")
)

const adornmentChars = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

var (
	reDirective = regexp.MustCompile(`^([A-Za-z0-9][\w-]*)::(?:\s+(.*))?$`)
	reTarget    = regexp.MustCompile("^_(`[^`]+`|[^:]+):\\s*(.*)$")
	reOption    = regexp.MustCompile(`^:([\w-]+):\s*(.*)$`)
	reBullet    = regexp.MustCompile(`^([-*+])( +)\S`)
	reEnum      = regexp.MustCompile(`^(\d+|#)([.)])( +)\S`)
)

var admonitions = map[string]string{
	"attention": "Attention",
	"caution":   "Caution",
	"danger":    "Danger",
	"error":     "Error",
	"hint":      "Hint",
	"important": "Important",
	"note":      "Note",
	"tip":       "Tip",
	"warning":   "Warning",
}

// Renderer converts reStructuredText source to HTML.
type Renderer struct {
	// MaxSize bounds the accepted source length in bytes. Zero means
	// DefaultMaxSize.
	MaxSize int
}

// Render converts src to HTML. It fails on oversized or non-UTF-8 input.
func (r Renderer) Render(src string) (string, error) {
	limit := r.MaxSize
	if limit <= 0 {
		limit = DefaultMaxSize
	}
	if len(src) > limit {
		return "", fmt.Errorf("%w (%d > %d bytes)", ErrTooLarge, len(src), limit)
	}
	if !utf8.ValidString(src) {
		return "", ErrInvalidUTF8
	}
	var buf bytes.Buffer
	RenderRST(&buf, src)
	return buf.String(), nil
}

// Render converts src to HTML with the default Renderer.
func Render(src string) (string, error) {
	return Renderer{}.Render(src)
}

// RenderRST writes the HTML representation of src to buf.
func RenderRST(buf *bytes.Buffer, src string) {
	lines := splitLines(src)
	d := &document{buf: buf, targets: collectTargets(lines)}
	buf.WriteString("<div class=\"document\">\n")
	d.blocks(lines)
	buf.WriteString("</div>\n")
}

type document struct {
	buf     *bytes.Buffer
	styles  []string
	targets map[string]string
}

func (d *document) blocks(lines []string) {
	i := 0
	for i < len(lines) {
		line := lines[i]
		if isBlank(line) {
			i++
			continue
		}
		if indentOf(line) > 0 {
			end := indentedEnd(lines, i, 1)
			d.buf.WriteString("<blockquote>\n")
			d.blocks(dedent(lines[i:end]))
			d.buf.WriteString("</blockquote>\n")
			i = end
			continue
		}
		if isExplicit(line) {
			i = d.explicit(lines, i)
			continue
		}
		if n, ok := d.title(lines, i); ok {
			i += n
			continue
		}
		if isAdornment(line) && width(line) >= 4 && (i+1 == len(lines) || isBlank(lines[i+1])) {
			d.buf.WriteString("<hr class=\"docutils\" />\n")
			i++
			continue
		}
		if reBullet.MatchString(line) {
			i = d.list(lines, i, false)
			continue
		}
		if reEnum.MatchString(line) {
			i = d.list(lines, i, true)
			continue
		}
		i = d.paragraph(lines, i)
	}
}

// title recognises underlined and over-and-underlined section titles and
// returns the number of lines consumed.
func (d *document) title(lines []string, i int) (int, bool) {
	line := strings.TrimRight(lines[i], " ")
	if isAdornment(line) && i+2 < len(lines) && !isBlank(lines[i+1]) &&
		strings.TrimRight(lines[i+2], " ") == line {
		text := strings.TrimSpace(lines[i+1])
		if width(line) >= width(text) {
			d.heading("over"+line[:1], text)
			return 3, true
		}
	}
	if i+1 < len(lines) && !isAdornment(line) && isAdornment(lines[i+1]) {
		under := strings.TrimRight(lines[i+1], " ")
		text := strings.TrimSpace(line)
		if width(under) >= width(text) {
			d.heading("under"+under[:1], text)
			return 2, true
		}
	}
	return 0, false
}

// heading assigns levels to adornment styles in the order they are first seen.
func (d *document) heading(style, text string) {
	level := slices.Index(d.styles, style)
	if level < 0 {
		d.styles = append(d.styles, style)
		level = len(d.styles) - 1
	}
	h := min(level+1, 6)
	fmt.Fprintf(d.buf, "<h%d id=\"%s\">%s</h%d>\n", h, anchor(text), d.inline(text), h)
}

func (d *document) paragraph(lines []string, i int) int {
	j := i
	var parts []string
	for j < len(lines) && !isBlank(lines[j]) && (j == i || indentOf(lines[j]) == 0) {
		parts = append(parts, strings.TrimSpace(lines[j]))
		j++
	}
	text := strings.Join(parts, "\n")
	literal := false
	if strings.HasSuffix(text, "::") {
		literal = true
		switch {
		case text == "::":
			text = ""
		case strings.HasSuffix(text, " ::") || strings.HasSuffix(text, "\n::"):
			text = strings.TrimRight(text[:len(text)-2], " \n")
		default:
			text = text[:len(text)-1]
		}
	}
	if text != "" {
		d.buf.WriteString("<p>")
		d.buf.WriteString(d.inline(text))
		d.buf.WriteString("</p>\n")
	}
	if !literal {
		return j
	}
	k := j
	for k < len(lines) && isBlank(lines[k]) {
		k++
	}
	if k < len(lines) && indentOf(lines[k]) > 0 {
		end := indentedEnd(lines, k, 1)
		d.literal(dedent(lines[k:end]))
		return end
	}
	return j
}

func (d *document) list(lines []string, i int, ordered bool) int {
	first := lines[i][0]
	start := ""
	if ordered {
		if m := reEnum.FindStringSubmatch(lines[i]); m != nil && m[1] != "#" && m[1] != "1" {
			if n, err := strconv.Atoi(m[1]); err == nil {
				start = fmt.Sprintf(" start=\"%d\"", n)
			}
		}
		fmt.Fprintf(d.buf, "<ol class=\"arabic simple\"%s>\n", start)
	} else {
		d.buf.WriteString("<ul class=\"simple\">\n")
	}
	for i < len(lines) {
		w := markerWidth(lines[i], ordered)
		if w == 0 || (!ordered && lines[i][0] != first) {
			break
		}
		end := max(indentedEnd(lines, i+1, w), i+1)
		item := []string{lines[i][w:]}
		for _, l := range lines[i+1 : end] {
			if isBlank(l) {
				item = append(item, "")
				continue
			}
			item = append(item, l[w:])
		}
		d.listItem(item)
		i = end
		k := i
		for k < len(lines) && isBlank(lines[k]) {
			k++
		}
		if k < len(lines) && markerWidth(lines[k], ordered) > 0 {
			i = k
			continue
		}
		break
	}
	if ordered {
		d.buf.WriteString("</ol>\n")
	} else {
		d.buf.WriteString("</ul>\n")
	}
	return i
}

func (d *document) listItem(item []string) {
	simple := true
	for _, l := range item[1:] {
		if isBlank(l) || indentOf(l) > 0 || reBullet.MatchString(l) || reEnum.MatchString(l) || isExplicit(l) {
			simple = false
			break
		}
	}
	d.buf.WriteString("<li>")
	if simple {
		parts := make([]string, len(item))
		for k, l := range item {
			parts[k] = strings.TrimSpace(l)
		}
		d.buf.WriteString(d.inline(strings.Join(parts, "\n")))
	} else {
		d.blocks(item)
	}
	d.buf.WriteString("</li>\n")
}

// explicit handles ".." markup: directives, hyperlink targets and comments.
func (d *document) explicit(lines []string, i int) int {
	end := max(indentedEnd(lines, i+1, 1), i+1)
	head := strings.TrimSpace(lines[i][2:])
	body := dedent(lines[i+1 : end])
	switch {
	case reTarget.MatchString(head):
		// collected up front by collectTargets
	case reDirective.MatchString(head):
		m := reDirective.FindStringSubmatch(head)
		d.directive(strings.ToLower(m[1]), strings.TrimSpace(m[2]), body)
	default:
		d.comment(head, body)
	}
	return end
}

func (d *document) directive(name, arg string, body []string) {
	opts, content := splitOptions(body)
	switch name {
	case "code", "code-block", "sourcecode":
		d.code(arg, content)
	case "image":
		d.image(arg, opts)
	default:
		title, ok := admonitions[name]
		if !ok {
			d.comment(name+":: "+arg, nil)
			return
		}
		fmt.Fprintf(d.buf, "<div class=\"admonition %s\">\n<p class=\"admonition-title\">%s</p>\n", name, title)
		if arg != "" {
			content = append([]string{arg, ""}, content...)
		}
		d.blocks(content)
		d.buf.WriteString("</div>\n")
	}
}

func (d *document) image(arg string, opts map[string]string) {
	src := SafeURL(arg)
	if src == "" {
		return
	}
	alt := opts["alt"]
	if alt == "" {
		alt = arg
	}
	var img strings.Builder
	img.WriteString(`<img alt="` + html.EscapeString(alt) + `" src="` + src + `"`)
	for _, attr := range []string{"width", "height"} {
		if v := opts[attr]; v != "" {
			img.WriteString(` ` + attr + `="` + html.EscapeString(v) + `"`)
		}
	}
	img.WriteString(" />")
	if target := SafeURL(opts["target"]); target != "" {
		d.buf.WriteString(`<a class="reference external image-reference" href="` + target + `">` + img.String() + "</a>\n")
		return
	}
	d.buf.WriteString(img.String() + "\n")
}

func (d *document) code(lang string, content []string) {
	if lang != "" {
		escapedLang := html.EscapeString(lang)
		d.buf.WriteString("<pre class=\"code-block\"><code class=\"language-" + escapedLang + "\">")
	} else {
		d.buf.WriteString("<pre class=\"code-block\"><code>")
	}
	d.buf.WriteString(html.EscapeString(strings.Join(trimBlankTail(content), "\n")))
	d.buf.WriteString("</code></pre>\n")
}

func (d *document) literal(content []string) {
	d.buf.WriteString("<pre class=\"literal-block\">\n")
	d.buf.WriteString(html.EscapeString(strings.Join(content, "\n")))
	d.buf.WriteString("\n</pre>\n")
}

func (d *document) comment(head string, body []string) {
	text := strings.TrimSpace(strings.Join(append([]string{head}, body...), "\n"))
	if text == "" {
		return
	}
	text = strings.ReplaceAll(html.EscapeString(text), "--", "- -")
	d.buf.WriteString("<!-- " + text + " -->\n")
}

func splitOptions(body []string) (map[string]string, []string) {
	opts := make(map[string]string)
	i := 0
	for ; i < len(body); i++ {
		m := reOption.FindStringSubmatch(body[i])
		if m == nil {
			break
		}
		opts[strings.ToLower(m[1])] = strings.TrimSpace(m[2])
	}
	for i < len(body) && isBlank(body[i]) {
		i++
	}
	return opts, body[i:]
}

// collectTargets gathers ".. _name: url" hyperlink targets so references
// may appear before their target.
func collectTargets(lines []string) map[string]string {
	targets := make(map[string]string)
	for _, line := range lines {
		if !strings.HasPrefix(line, ".. _") {
			continue
		}
		m := reTarget.FindStringSubmatch(strings.TrimSpace(line[3:]))
		if m == nil {
			continue
		}
		name := strings.ToLower(strings.Trim(m[1], "`"))
		targets[name] = strings.TrimSpace(m[2])
	}
	return targets
}

func splitLines(src string) []string {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	src = strings.ReplaceAll(src, "\r", "\n")
	lines := strings.Split(src, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(expandTabs(l), " ")
	}
	return lines
}

func expandTabs(s string) string {
	if !strings.Contains(s, "\t") {
		return s
	}
	var b strings.Builder
	col := 0
	for _, r := range s {
		if r == '\t' {
			n := 8 - col%8
			b.WriteString(strings.Repeat(" ", n))
			col += n
			continue
		}
		b.WriteRune(r)
		col++
	}
	return b.String()
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func isExplicit(line string) bool {
	return line == ".." || strings.HasPrefix(line, ".. ")
}

func indentOf(s string) int {
	return len(s) - len(strings.TrimLeft(s, " "))
}

func width(s string) int {
	return utf8.RuneCountInString(strings.TrimRight(s, " "))
}

func isAdornment(s string) bool {
	s = strings.TrimRight(s, " ")
	if s == "" || !strings.ContainsRune(adornmentChars, rune(s[0])) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}

func markerWidth(line string, ordered bool) int {
	if ordered {
		if m := reEnum.FindStringSubmatch(line); m != nil {
			return len(m[1]) + len(m[2]) + len(m[3])
		}
		return 0
	}
	if m := reBullet.FindStringSubmatch(line); m != nil {
		return len(m[1]) + len(m[2])
	}
	return 0
}

// indentedEnd returns the index just past the last non-blank line, starting
// at start, indented by at least minIndent.
func indentedEnd(lines []string, start, minIndent int) int {
	end := start
	for j := start; j < len(lines); j++ {
		if isBlank(lines[j]) {
			continue
		}
		if indentOf(lines[j]) < minIndent {
			break
		}
		end = j + 1
	}
	return end
}

func dedent(lines []string) []string {
	common := -1
	for _, l := range lines {
		if isBlank(l) {
			continue
		}
		if n := indentOf(l); common < 0 || n < common {
			common = n
		}
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		if isBlank(l) {
			continue
		}
		out[i] = l[common:]
	}
	return out
}

func trimBlankTail(lines []string) []string {
	for len(lines) > 0 && isBlank(lines[len(lines)-1]) {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func anchor(text string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
