package a11y

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var levelAAARules = []rule{
	{
		criterion: "2.2.4", typ: "meta-refresh", penalty: 15,
		pass:  "The page does not refresh or redirect on a timer",
		check: checkMetaRefresh,
	},
	{
		criterion: "2.4.9", typ: "link-purpose", penalty: 10,
		pass:  "Link text describes each link's purpose",
		check: checkLinkPurpose,
	},
	{
		criterion: "2.4.10", typ: "section-headings", warnPenalty: 5,
		pass:  "Sections are organised under headings",
		check: checkSectionHeadings,
	},
	{
		criterion: "1.4.8", typ: "visual-presentation", warnPenalty: 5,
		pass:  "Text is not justified and line spacing is not tightened",
		check: checkVisualPresentation,
	},
}

func checkMetaRefresh(d *document) []issue {
	for _, m := range d.all(atom.Meta) {
		if !strings.EqualFold(attrValue(m, "http-equiv"), "refresh") {
			continue
		}
		content := attrValue(m, "content")
		delay, _, _ := strings.Cut(content, ";")
		delay, _, _ = strings.Cut(delay, ",")
		secs, err := strconv.ParseFloat(strings.TrimSpace(delay), 64)
		if err != nil || secs > 0 {
			return []issue{violation(
				fmt.Sprintf("Meta refresh %q interrupts the user", snippet(content)),
				[]string{d.cssPath(m)})}
		}
	}
	return nil
}

var genericLinkText = map[string]bool{
	"click here": true,
	"here":       true,
	"read more":  true,
	"more":       true,
	"learn more": true,
	"link":       true,
	"this link":  true,
	"continue":   true,
	"details":    true,

	"en savoir plus": true,
	"cliquez ici":    true,
	"ici":            true,
}

func checkLinkPurpose(d *document) []issue {
	var vague []*html.Node
	for _, a := range d.all(atom.A) {
		if _, ok := attr(a, "href"); !ok || hidden(a) {
			continue
		}
		if attrValue(a, "aria-label") != "" || attrValue(a, "aria-labelledby") != "" {
			continue
		}
		text := strings.ToLower(strings.Trim(textOf(a), " .…>»"))
		if genericLinkText[text] {
			vague = append(vague, a)
		}
	}
	if len(vague) == 0 {
		return nil
	}
	return []issue{violation(
		fmt.Sprintf("%d link(s) with text that does not describe the target", len(vague)), d.capped(vague))}
}

func hasHeading(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			return true
		}
		if strings.EqualFold(attrValue(c, "role"), "heading") || hasHeading(c) {
			return true
		}
	}
	return false
}

func checkSectionHeadings(d *document) []issue {
	var bare []*html.Node
	for _, s := range d.all(atom.Section, atom.Article) {
		if hidden(s) || attrValue(s, "aria-label") != "" || attrValue(s, "aria-labelledby") != "" {
			continue
		}
		if !hasHeading(s) {
			bare = append(bare, s)
		}
	}
	if len(bare) == 0 {
		return nil
	}
	return []issue{warning(
		fmt.Sprintf("%d section(s) without a heading", len(bare)), d.capped(bare))}
}

var (
	justifyRule     = regexp.MustCompile(`(?i)text-align\s*:\s*justify`)
	lineHeightValue = regexp.MustCompile(`(?i)line-height\s*:\s*([0-9.]+)\s*(?:[;}!]|$)`)
)

// tightLineHeight reports a unitless line-height below 1.5.
func tightLineHeight(css string) bool {
	for _, m := range lineHeightValue.FindAllStringSubmatch(css, -1) {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil && f > 0 && f < 1.5 {
			return true
		}
	}
	return false
}

func checkVisualPresentation(d *document) []issue {
	var out []issue
	css := d.styles()
	if justifyRule.MatchString(css) {
		out = append(out, warning("A stylesheet justifies text", nil))
	}
	var justified, tight []*html.Node
	for _, n := range d.withAttr("style") {
		style := attrValue(n, "style")
		if justifyRule.MatchString(style) {
			justified = append(justified, n)
		}
		if tightLineHeight(style) {
			tight = append(tight, n)
		}
	}
	if len(justified) > 0 {
		out = append(out, warning(
			fmt.Sprintf("%d element(s) with justified text", len(justified)), d.capped(justified)))
	}
	if tightLineHeight(css) || len(tight) > 0 {
		out = append(out, warning("Line spacing is below 1.5", d.capped(tight)))
	}
	return out
}
