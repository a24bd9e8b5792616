package page

import (
	"context"
	"fmt"
)

// OuterHTMLScript serialises the current DOM.
const OuterHTMLScript = `() => JSON.stringify(document.documentElement ? document.documentElement.outerHTML : "")`

// HighlightScript outlines the first element matching the selector passed
// as argument and scrolls it into view. Returns true when found.
const HighlightScript = `(sel) => {
	const el = document.querySelector(sel);
	if (!el) return JSON.stringify(false);
	el.setAttribute('data-pageaudit-outline', el.style.outline || '');
	el.style.outline = '3px solid #e00';
	el.scrollIntoView({block: 'center'});
	return JSON.stringify(true);
}`

// ClearHighlightScript restores every element outlined by HighlightScript.
const ClearHighlightScript = `() => {
	for (const el of document.querySelectorAll('[data-pageaudit-outline]')) {
		el.style.outline = el.getAttribute('data-pageaudit-outline');
		el.removeAttribute('data-pageaudit-outline');
	}
	return JSON.stringify(true);
}`

// HTML returns the serialised DOM of the current page.
func HTML(ctx context.Context, ev Evaluator) (string, error) {
	var s string
	if err := Decode(ctx, ev, &s, OuterHTMLScript); err != nil {
		return "", fmt.Errorf("page: outer html: %w", err)
	}
	return s, nil
}
