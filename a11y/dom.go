package a11y

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// document is a parsed DOM snapshot with an element index.
type document struct {
	root     *html.Node
	elements []*html.Node
	byID     map[string][]*html.Node
}

func parseDocument(src string) (*document, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("a11y: parse dom: %w", err)
	}
	d := &document{root: root, byID: make(map[string][]*html.Node)}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			d.elements = append(d.elements, n)
			if id, ok := attr(n, "id"); ok && id != "" {
				d.byID[id] = append(d.byID[id], n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return d, nil
}

// all returns elements whose tag is one of tags, in document order.
func (d *document) all(tags ...atom.Atom) []*html.Node {
	var out []*html.Node
	for _, n := range d.elements {
		for _, t := range tags {
			if n.DataAtom == t {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

// first returns the first element with tag, or nil.
func (d *document) first(tag atom.Atom) *html.Node {
	for _, n := range d.elements {
		if n.DataAtom == tag {
			return n
		}
	}
	return nil
}

// withAttr returns elements carrying key.
func (d *document) withAttr(key string) []*html.Node {
	var out []*html.Node
	for _, n := range d.elements {
		if _, ok := attr(n, key); ok {
			out = append(out, n)
		}
	}
	return out
}

// styles concatenates the text of every <style> element.
func (d *document) styles() string {
	var b strings.Builder
	for _, n := range d.all(atom.Style) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
				b.WriteByte('\n')
			}
		}
	}
	return b.String()
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func attrValue(n *html.Node, key string) string {
	v, _ := attr(n, key)
	return strings.TrimSpace(v)
}

func hasAncestor(n *html.Node, tag atom.Atom) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.DataAtom == tag {
			return true
		}
	}
	return false
}

// hidden reports elements removed from the accessibility tree.
func hidden(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if _, ok := attr(p, "hidden"); ok {
			return true
		}
		if strings.EqualFold(attrValue(p, "aria-hidden"), "true") {
			return true
		}
	}
	return false
}

var spaceRun = regexp.MustCompile(`\s+`)

// textOf returns the collapsed text content of n, including image alt text.
func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		switch c.Type {
		case html.TextNode:
			b.WriteString(c.Data)
			b.WriteByte(' ')
		case html.ElementNode:
			switch c.DataAtom {
			case atom.Script, atom.Style, atom.Template:
				return
			case atom.Img:
				b.WriteString(attrValue(c, "alt"))
				b.WriteByte(' ')
			}
			if strings.EqualFold(attrValue(c, "aria-hidden"), "true") {
				return
			}
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(n)
	return strings.TrimSpace(spaceRun.ReplaceAllString(b.String(), " "))
}

// accessibleName approximates the computed name of n: aria-labelledby,
// aria-label, content, then title.
func (d *document) accessibleName(n *html.Node) string {
	if ids := attrValue(n, "aria-labelledby"); ids != "" {
		var parts []string
		for _, id := range strings.Fields(ids) {
			if refs := d.byID[id]; len(refs) > 0 {
				parts = append(parts, textOf(refs[0]))
			}
		}
		if name := strings.TrimSpace(strings.Join(parts, " ")); name != "" {
			return name
		}
	}
	if label := attrValue(n, "aria-label"); label != "" {
		return label
	}
	if n.DataAtom == atom.Input {
		if v := attrValue(n, "value"); v != "" {
			return v
		}
		if a := attrValue(n, "alt"); a != "" {
			return a
		}
	}
	if text := textOf(n); text != "" {
		return text
	}
	return attrValue(n, "title")
}

var simpleID = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// cssPath returns a selector locating n: #id when the id is plain and
// unique, otherwise a chain of nth-of-type steps from <html>.
func (d *document) cssPath(n *html.Node) string {
	if id := attrValue(n, "id"); simpleID.MatchString(id) && len(d.byID[id]) == 1 {
		return "#" + id
	}
	var steps []string
	for c := n; c != nil && c.Type == html.ElementNode && c.DataAtom != atom.Html; c = c.Parent {
		i := 1
		for s := c.PrevSibling; s != nil; s = s.PrevSibling {
			if s.Type == html.ElementNode && s.Data == c.Data {
				i++
			}
		}
		steps = append(steps, fmt.Sprintf("%s:nth-of-type(%d)", c.Data, i))
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	if len(steps) == 0 {
		return "html"
	}
	return "html > " + strings.Join(steps, " > ")
}

func (d *document) paths(nodes []*html.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = d.cssPath(n)
	}
	return out
}

var strict = bluemonday.StrictPolicy()

const snippetLen = 80

// snippet strips markup from page-supplied text and shortens it for use in
// a finding message.
func snippet(s string) string {
	s = html.UnescapeString(strict.Sanitize(s))
	s = strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
	if utf8.RuneCountInString(s) <= snippetLen {
		return s
	}
	r := []rune(s)
	return string(r[:snippetLen-1]) + "…"
}
