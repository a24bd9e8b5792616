package a11y

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// maxElements bounds the selectors attached to one finding.
const maxElements = 20

func (d *document) capped(nodes []*html.Node) []string {
	if len(nodes) > maxElements {
		nodes = nodes[:maxElements]
	}
	return d.paths(nodes)
}

var levelARules = []rule{
	{
		criterion: "1.1.1", typ: "image-alt", penalty: 15, warnPenalty: 5,
		pass:  "Every image has a text alternative",
		check: checkImageAlt,
	},
	{
		criterion: "1.3.1", typ: "form-label", penalty: 15,
		pass:  "Every form control has a label",
		check: checkFormLabels,
	},
	{
		criterion: "2.4.1", typ: "bypass-blocks", penalty: 10,
		pass:  "A skip link or main landmark lets users bypass repeated content",
		check: checkBypassBlocks,
	},
	{
		criterion: "2.4.2", typ: "page-title", penalty: 15,
		pass:  "The page has a title",
		check: checkPageTitle,
	},
	{
		criterion: "3.1.1", typ: "html-lang", penalty: 15, warnPenalty: 5,
		pass:  "The page declares its language",
		check: checkHTMLLang,
	},
	{
		criterion: "4.1.2", typ: "control-name", penalty: 15,
		pass:  "Every button and link has an accessible name",
		check: checkControlNames,
	},
	{
		criterion: "4.1.1", typ: "duplicate-id", penalty: 10,
		pass:  "Element ids are unique",
		check: checkDuplicateIDs,
	},
}

var fileNameAlt = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|svg|webp|avif|bmp)$`)

func checkImageAlt(d *document) []issue {
	var missing, suspicious []*html.Node
	for _, n := range d.all(atom.Img, atom.Area) {
		if hidden(n) || strings.EqualFold(attrValue(n, "role"), "presentation") {
			continue
		}
		alt, ok := attr(n, "alt")
		if !ok && attrValue(n, "aria-label") == "" && attrValue(n, "aria-labelledby") == "" {
			missing = append(missing, n)
			continue
		}
		if fileNameAlt.MatchString(strings.TrimSpace(alt)) {
			suspicious = append(suspicious, n)
		}
	}
	for _, n := range d.all(atom.Input) {
		if strings.EqualFold(attrValue(n, "type"), "image") && attrValue(n, "alt") == "" && attrValue(n, "aria-label") == "" {
			missing = append(missing, n)
		}
	}

	var out []issue
	if len(missing) > 0 {
		out = append(out, violation(
			fmt.Sprintf("%d image(s) without a text alternative", len(missing)), d.capped(missing)))
	}
	if len(suspicious) > 0 {
		out = append(out, warning(
			fmt.Sprintf("%d image(s) use a file name as alt text", len(suspicious)), d.capped(suspicious)))
	}
	return out
}

// labelable returns form controls that need a label.
func (d *document) labelable() []*html.Node {
	var out []*html.Node
	for _, n := range d.all(atom.Input, atom.Select, atom.Textarea) {
		if hidden(n) {
			continue
		}
		if n.DataAtom == atom.Input {
			switch strings.ToLower(attrValue(n, "type")) {
			case "hidden", "submit", "reset", "button", "image":
				continue
			}
		}
		out = append(out, n)
	}
	return out
}

func checkFormLabels(d *document) []issue {
	labelled := make(map[string]bool)
	for _, l := range d.all(atom.Label) {
		if f := attrValue(l, "for"); f != "" && textOf(l) != "" {
			labelled[f] = true
		}
	}

	var missing []*html.Node
	for _, n := range d.labelable() {
		switch {
		case labelled[attrValue(n, "id")] && attrValue(n, "id") != "":
		case hasAncestor(n, atom.Label):
		case attrValue(n, "aria-label") != "", attrValue(n, "aria-labelledby") != "":
		case attrValue(n, "title") != "":
		default:
			missing = append(missing, n)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return []issue{violation(
		fmt.Sprintf("%d form control(s) without an associated label", len(missing)), d.capped(missing))}
}

func checkBypassBlocks(d *document) []issue {
	if d.first(atom.Main) != nil {
		return nil
	}
	for _, n := range d.elements {
		if strings.EqualFold(attrValue(n, "role"), "main") {
			return nil
		}
	}
	links := d.all(atom.A)
	if len(links) > 5 {
		links = links[:5]
	}
	for _, a := range links {
		href := attrValue(a, "href")
		if len(href) > 1 && href[0] == '#' && len(d.byID[href[1:]]) > 0 {
			return nil
		}
	}
	return []issue{violation("No skip link and no main landmark", nil)}
}

func checkPageTitle(d *document) []issue {
	t := d.first(atom.Title)
	if t == nil {
		return []issue{violation("The page has no <title>", nil)}
	}
	if textOf(t) == "" {
		return []issue{violation("The page <title> is empty", []string{d.cssPath(t)})}
	}
	return nil
}

var langTag = regexp.MustCompile(`^[A-Za-z]{2,3}(-[A-Za-z0-9]{1,8})*$`)

func checkHTMLLang(d *document) []issue {
	root := d.first(atom.Html)
	if root == nil {
		return []issue{violation("No <html> element", nil)}
	}
	lang := attrValue(root, "lang")
	if lang == "" {
		lang = attrValue(root, "xml:lang")
	}
	switch {
	case lang == "":
		return []issue{violation("The <html> element has no lang attribute", []string{"html"})}
	case !langTag.MatchString(lang):
		return []issue{warning(fmt.Sprintf("lang=%q is not a valid language tag", snippet(lang)), []string{"html"})}
	}
	return nil
}

func checkControlNames(d *document) []issue {
	var unnamed []*html.Node
	for _, n := range d.elements {
		if hidden(n) {
			continue
		}
		control := false
		switch n.DataAtom {
		case atom.Button:
			control = true
		case atom.A:
			_, control = attr(n, "href")
		case atom.Input:
			// Browsers supply a default label for submit and reset.
			control = strings.EqualFold(attrValue(n, "type"), "button")
		default:
			control = strings.EqualFold(attrValue(n, "role"), "button") || strings.EqualFold(attrValue(n, "role"), "link")
		}
		if control && d.accessibleName(n) == "" {
			unnamed = append(unnamed, n)
		}
	}
	if len(unnamed) == 0 {
		return nil
	}
	return []issue{violation(
		fmt.Sprintf("%d button(s) or link(s) without an accessible name", len(unnamed)), d.capped(unnamed))}
}

func checkDuplicateIDs(d *document) []issue {
	var dups []string
	for id, nodes := range d.byID {
		if len(nodes) > 1 {
			dups = append(dups, id)
		}
	}
	if len(dups) == 0 {
		return nil
	}
	sort.Strings(dups)
	elements := make([]string, 0, len(dups))
	for _, id := range dups {
		if len(elements) == maxElements {
			break
		}
		elements = append(elements, d.cssPath(d.byID[id][0]))
	}
	names := dups
	if len(names) > 5 {
		names = names[:5]
	}
	return []issue{violation(
		fmt.Sprintf("%d duplicated id(s): %s", len(dups), snippet(strings.Join(names, ", "))), elements)}
}
