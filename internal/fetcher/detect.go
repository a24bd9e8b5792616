package fetcher

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// shellMarkers are empty mount points left by client-side frameworks.
var shellMarkers = []string{
	`<div id="root"></div>`,
	`<div id="app"></div>`,
	`<div id="__next"></div>`,
	"<noscript>you need to enable javascript",
	"<noscript>enable javascript",
}

// NeedsBrowser reports whether body looks like a script-rendered shell:
// tiny, mostly markup, or carrying a framework mount point.
func NeedsBrowser(body []byte) bool {
	if len(body) < 256 {
		return true
	}
	lower := bytes.ToLower(body)
	for _, m := range shellMarkers {
		if bytes.Contains(lower, []byte(m)) {
			return true
		}
	}
	text := visibleText(body)
	return text < 200 || float64(text)/float64(len(body)) < 0.10
}

// visibleText counts non-space bytes outside script and style.
func visibleText(body []byte) int {
	z := html.NewTokenizer(bytes.NewReader(body))
	skip := 0
	n := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return n
		case html.StartTagToken:
			name, _ := z.TagName()
			if a := atom.Lookup(name); a == atom.Script || a == atom.Style {
				skip++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if a := atom.Lookup(name); (a == atom.Script || a == atom.Style) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				n += len(strings.Join(strings.Fields(string(z.Text())), " "))
			}
		}
	}
}
