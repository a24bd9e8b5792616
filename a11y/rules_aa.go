package a11y

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var levelAARules = []rule{
	{
		criterion: "1.3.5", typ: "input-purpose", warnPenalty: 5,
		pass:  "Personal data fields declare their purpose with autocomplete",
		check: checkInputPurpose,
	},
	{
		criterion: "1.4.4", typ: "resize-text", penalty: 10,
		pass:  "The viewport allows text to be resized",
		check: checkResizeText,
	},
	{
		criterion: "2.4.6", typ: "headings", penalty: 10, warnPenalty: 5,
		pass:  "Headings are present and descriptive",
		check: checkHeadings,
	},
	{
		criterion: "2.4.7", typ: "focus-visible", penalty: 10,
		pass:  "No style removes the focus indicator",
		check: checkFocusVisible,
	},
	{
		criterion: "3.1.2", typ: "language-of-parts", penalty: 10,
		pass:  "Language changes within the page are valid",
		check: checkLanguageOfParts,
	},
}

// personalFields matches name or id hints of personal data inputs.
var personalFields = regexp.MustCompile(`(?i)(e-?mail|phone|tel|first.?name|last.?name|full.?name|given|family|surname|address|street|city|postal|zip|country|birthday|bday|username)`)

func checkInputPurpose(d *document) []issue {
	var missing []*html.Node
	for _, n := range d.labelable() {
		if n.DataAtom != atom.Input {
			continue
		}
		if attrValue(n, "autocomplete") != "" {
			continue
		}
		typ := strings.ToLower(attrValue(n, "type"))
		hint := attrValue(n, "name") + " " + attrValue(n, "id")
		if typ == "email" || typ == "tel" || personalFields.MatchString(hint) {
			missing = append(missing, n)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return []issue{warning(
		fmt.Sprintf("%d personal data field(s) without autocomplete", len(missing)), d.capped(missing))}
}

// viewportBlocksZoom reports a viewport that disables or caps zoom.
func viewportBlocksZoom(content string) bool {
	for _, part := range strings.FieldsFunc(content, func(r rune) bool { return r == ',' || r == ';' }) {
		k, v, _ := strings.Cut(part, "=")
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.ToLower(strings.TrimSpace(v))
		switch k {
		case "user-scalable":
			if v == "no" || v == "0" {
				return true
			}
		case "maximum-scale":
			if f, err := strconv.ParseFloat(v, 64); err == nil && f < 2 {
				return true
			}
		}
	}
	return false
}

func checkResizeText(d *document) []issue {
	for _, m := range d.all(atom.Meta) {
		if !strings.EqualFold(attrValue(m, "name"), "viewport") {
			continue
		}
		if viewportBlocksZoom(attrValue(m, "content")) {
			return []issue{violation(
				fmt.Sprintf("Viewport %q prevents users from zooming text", snippet(attrValue(m, "content"))),
				[]string{d.cssPath(m)})}
		}
	}
	return nil
}

var headingTags = []atom.Atom{atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6}

func headingLevel(n *html.Node) int {
	return int(n.Data[1] - '0')
}

func checkHeadings(d *document) []issue {
	headings := d.all(headingTags...)
	var out []issue
	if len(headings) == 0 {
		return []issue{warning("The page has no headings", nil)}
	}

	var empty, skipped []*html.Node
	hasH1 := false
	prev := 0
	for _, h := range headings {
		if hidden(h) {
			continue
		}
		lvl := headingLevel(h)
		if lvl == 1 {
			hasH1 = true
		}
		if textOf(h) == "" {
			empty = append(empty, h)
		}
		if prev > 0 && lvl > prev+1 {
			skipped = append(skipped, h)
		}
		prev = lvl
	}
	if len(empty) > 0 {
		out = append(out, violation(
			fmt.Sprintf("%d empty heading(s)", len(empty)), d.capped(empty)))
	}
	if !hasH1 {
		out = append(out, warning("The page has no <h1>", nil))
	}
	if len(skipped) > 0 {
		out = append(out, warning(
			fmt.Sprintf("%d heading(s) skip a level", len(skipped)), d.capped(skipped)))
	}
	return out
}

var (
	focusOutlineNone  = regexp.MustCompile(`(?is):focus[^{]*\{[^}]*outline\s*:\s*(none|0)\b`)
	inlineOutlineNone = regexp.MustCompile(`(?i)outline\s*:\s*(none|0)\b`)
)

func checkFocusVisible(d *document) []issue {
	var out []issue
	if focusOutlineNone.MatchString(d.styles()) {
		out = append(out, violation("A stylesheet removes the outline of focused elements", nil))
	}
	var inline []*html.Node
	for _, n := range d.withAttr("style") {
		if !focusable(n) {
			continue
		}
		if inlineOutlineNone.MatchString(attrValue(n, "style")) {
			inline = append(inline, n)
		}
	}
	if len(inline) > 0 {
		out = append(out, violation(
			fmt.Sprintf("%d focusable element(s) have outline removed inline", len(inline)), d.capped(inline)))
	}
	return out
}

func focusable(n *html.Node) bool {
	switch n.DataAtom {
	case atom.A:
		_, ok := attr(n, "href")
		return ok
	case atom.Button, atom.Input, atom.Select, atom.Textarea:
		return true
	}
	ti, ok := attr(n, "tabindex")
	if !ok {
		return false
	}
	i, err := strconv.Atoi(strings.TrimSpace(ti))
	return err == nil && i >= 0
}

func checkLanguageOfParts(d *document) []issue {
	var bad []*html.Node
	for _, n := range d.withAttr("lang") {
		if n.DataAtom == atom.Html {
			continue
		}
		if !langTag.MatchString(attrValue(n, "lang")) {
			bad = append(bad, n)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	return []issue{violation(
		fmt.Sprintf("%d element(s) with an empty or invalid lang attribute", len(bad)), d.capped(bad))}
}
