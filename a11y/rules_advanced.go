package a11y

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// advancedRules cover criteria added in WCAG 2.2. Their conformance level
// is resolved through CriteriaLevels when merged.
var advancedRules = []rule{
	{
		criterion: "2.4.11", typ: "focus-obscured", warnPenalty: 5,
		pass:  "No fixed or sticky overlay can hide focused content",
		check: checkFocusObscured,
	},
	{
		criterion: "2.5.7", typ: "dragging-movements", penalty: 10, warnPenalty: 5,
		pass:  "Drag interactions have a single-pointer alternative",
		check: checkDragging,
	},
	{
		criterion: "2.5.8", typ: "target-size", penalty: 10,
		pass:  "Interactive targets are at least 24 by 24 CSS pixels",
		check: checkTargetSize,
	},
	{
		criterion: "3.2.6", typ: "consistent-help", warnPenalty: 5,
		pass:  "A help mechanism is available",
		check: checkConsistentHelp,
	},
	{
		criterion: "3.3.8", typ: "accessible-authentication", penalty: 15,
		pass:  "Login fields allow password managers and pasting",
		check: checkAccessibleAuthentication,
	},
}

var stickyPosition = regexp.MustCompile(`(?i)position\s*:\s*(fixed|sticky)`)

func checkFocusObscured(d *document) []issue {
	var overlays []*html.Node
	for _, n := range d.withAttr("style") {
		if hidden(n) {
			continue
		}
		if stickyPosition.MatchString(attrValue(n, "style")) {
			overlays = append(overlays, n)
		}
	}
	var out []issue
	if len(overlays) > 0 {
		out = append(out, warning(
			fmt.Sprintf("%d fixed or sticky element(s) may cover focused content", len(overlays)), d.capped(overlays)))
	}
	if stickyPosition.MatchString(d.styles()) && len(overlays) == 0 {
		out = append(out, warning("A stylesheet declares fixed or sticky positioning that may cover focused content", nil))
	}
	return out
}

func checkDragging(d *document) []issue {
	var draggable []*html.Node
	for _, n := range d.elements {
		if strings.EqualFold(attrValue(n, "draggable"), "true") {
			draggable = append(draggable, n)
			continue
		}
		for _, a := range n.Attr {
			if strings.HasPrefix(a.Key, "ondrag") || a.Key == "ondrop" {
				draggable = append(draggable, n)
				break
			}
		}
	}
	if len(draggable) == 0 {
		return nil
	}
	// A draggable element that is also a button or carries keyboard
	// handlers offers an alternative.
	var bare []*html.Node
	for _, n := range draggable {
		if focusable(n) || attrValue(n, "onclick") != "" || attrValue(n, "onkeydown") != "" {
			continue
		}
		bare = append(bare, n)
	}
	if len(bare) == 0 {
		return []issue{warning(
			fmt.Sprintf("%d draggable element(s); verify the single-pointer alternative", len(draggable)), d.capped(draggable))}
	}
	return []issue{violation(
		fmt.Sprintf("%d draggable element(s) without a single-pointer alternative", len(bare)), d.capped(bare))}
}

var pixelDimension = regexp.MustCompile(`(?i)(?:^|;|\s)(width|height)\s*:\s*([0-9.]+)px`)

// declaredSize returns the smallest pixel dimension set inline or via the
// width/height attributes, or 0 when none is declared.
func declaredSize(n *html.Node) float64 {
	smallest := 0.0
	consider := func(v float64) {
		if v > 0 && (smallest == 0 || v < smallest) {
			smallest = v
		}
	}
	for _, m := range pixelDimension.FindAllStringSubmatch(attrValue(n, "style"), -1) {
		if f, err := strconv.ParseFloat(m[2], 64); err == nil {
			consider(f)
		}
	}
	for _, key := range []string{"width", "height"} {
		if f, err := strconv.ParseFloat(attrValue(n, key), 64); err == nil {
			consider(f)
		}
	}
	return smallest
}

func checkTargetSize(d *document) []issue {
	var small []*html.Node
	for _, n := range d.elements {
		if !focusable(n) || hidden(n) {
			continue
		}
		if n.DataAtom == atom.Input && strings.EqualFold(attrValue(n, "type"), "hidden") {
			continue
		}
		// Inline links inside a sentence are exempt.
		if n.DataAtom == atom.A && hasAncestor(n, atom.P) {
			continue
		}
		if s := declaredSize(n); s > 0 && s < 24 {
			small = append(small, n)
		}
	}
	if len(small) == 0 {
		return nil
	}
	return []issue{violation(
		fmt.Sprintf("%d target(s) declared smaller than 24px", len(small)), d.capped(small))}
}

var helpHint = regexp.MustCompile(`(?i)\b(help|support|contact|faq|aide|assistance)\b`)

func checkConsistentHelp(d *document) []issue {
	if len(d.all(atom.Form)) == 0 {
		return nil
	}
	for _, a := range d.all(atom.A) {
		href := strings.ToLower(attrValue(a, "href"))
		if strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") {
			return nil
		}
		if helpHint.MatchString(textOf(a)) || helpHint.MatchString(href) {
			return nil
		}
	}
	return []issue{warning("The page has a form but no visible help or contact mechanism", nil)}
}

var blockedPaste = regexp.MustCompile(`(?i)return\s+false|preventDefault`)

func checkAccessibleAuthentication(d *document) []issue {
	var blocked, noAutocomplete []*html.Node
	for _, n := range d.all(atom.Input) {
		if !strings.EqualFold(attrValue(n, "type"), "password") {
			continue
		}
		if blockedPaste.MatchString(attrValue(n, "onpaste")) || blockedPaste.MatchString(attrValue(n, "oncopy")) {
			blocked = append(blocked, n)
		}
		switch strings.ToLower(attrValue(n, "autocomplete")) {
		case "off", "false", "nope":
			noAutocomplete = append(noAutocomplete, n)
		}
	}
	var out []issue
	if len(blocked) > 0 {
		out = append(out, violation(
			fmt.Sprintf("%d password field(s) block pasting", len(blocked)), d.capped(blocked)))
	}
	if len(noAutocomplete) > 0 {
		out = append(out, violation(
			fmt.Sprintf("%d password field(s) disable password managers", len(noAutocomplete)), d.capped(noAutocomplete)))
	}
	return out
}
