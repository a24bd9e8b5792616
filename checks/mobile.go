package checks

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hazyhaar/pageaudit/audit"
	"github.com/hazyhaar/pageaudit/page"
)

// MobileName is the name of the mobile-friendliness audit.
const MobileName = "mobile"

// MobileScript reads the viewport meta tag and measures layout: document
// overflow, tap targets under 48px and text rendered under 12px.
const MobileScript = `() => {
	const path = (el) => {
		if (el.id) return '#' + CSS.escape(el.id);
		const parts = [];
		for (let n = el; n && n.nodeType === 1 && n !== document.documentElement; n = n.parentElement) {
			let i = 1;
			for (let s = n.previousElementSibling; s; s = s.previousElementSibling) {
				if (s.tagName === n.tagName) i++;
			}
			parts.unshift(n.tagName.toLowerCase() + ':nth-of-type(' + i + ')');
		}
		return 'html > ' + parts.join(' > ');
	};
	const meta = document.querySelector('meta[name="viewport"]');
	const root = document.documentElement;
	const vw = window.innerWidth || (root ? root.clientWidth : 0) || 0;
	const sw = Math.max(root ? root.scrollWidth : 0, document.body ? document.body.scrollWidth : 0);
	const taps = [];
	for (const el of document.querySelectorAll('a[href], button, select, textarea, input:not([type=hidden]), [role=button]')) {
		const r = el.getBoundingClientRect();
		if (r.width === 0 && r.height === 0) continue;
		if (r.width < 48 || r.height < 48) taps.push(path(el));
	}
	const fonts = [];
	if (document.body) {
		for (const el of document.body.querySelectorAll('*')) {
			let text = false;
			for (const c of el.childNodes) {
				if (c.nodeType === 3 && c.textContent.trim()) { text = true; break; }
			}
			if (!text) continue;
			const size = parseFloat(getComputedStyle(el).fontSize);
			if (size && size < 12) fonts.push(path(el));
		}
	}
	return JSON.stringify({
		viewport: meta ? (meta.getAttribute('content') || '') : null,
		viewportWidth: vw,
		scrollWidth: sw,
		smallTapTargets: taps.slice(0, 50),
		smallTapTargetCount: taps.length,
		smallFonts: fonts.slice(0, 50),
		smallFontCount: fonts.length
	});
}`

var mobilePayload = mustPayload("mobile", `{
	"type": "object",
	"required": ["viewportWidth", "scrollWidth"],
	"properties": {
		"viewport": {"type": ["string", "null"]},
		"viewportWidth": {"type": "number", "minimum": 0},
		"scrollWidth": {"type": "number", "minimum": 0},
		"smallTapTargets": {"type": "array", "items": {"type": "string"}},
		"smallTapTargetCount": {"type": "integer", "minimum": 0},
		"smallFonts": {"type": "array", "items": {"type": "string"}},
		"smallFontCount": {"type": "integer", "minimum": 0}
	}
}`)

// MobileMetrics is the raw shape returned by MobileScript.
type MobileMetrics struct {
	Viewport            *string  `json:"viewport"`
	ViewportWidth       int      `json:"viewportWidth"`
	ScrollWidth         int      `json:"scrollWidth"`
	SmallTapTargets     []string `json:"smallTapTargets"`
	SmallTapTargetCount int      `json:"smallTapTargetCount"`
	SmallFonts          []string `json:"smallFonts"`
	SmallFontCount      int      `json:"smallFontCount"`
}

var (
	tapTargetLimits = audit.Thresholds{Good: 0, NeedsImprovement: 5, NIPenalty: 10, PoorPenalty: 20}
	smallFontLimits = audit.Thresholds{Good: 0, NeedsImprovement: 10, NIPenalty: 5, PoorPenalty: 15}
)

// Mobile checks viewport configuration and touch-friendly layout.
type Mobile struct {
	ev page.Evaluator
}

// NewMobile creates the mobile audit.
func NewMobile(ev page.Evaluator) *Mobile {
	return &Mobile{ev: ev}
}

func (m *Mobile) Name() string { return MobileName }

func (m *Mobile) Run(ctx context.Context, v *audit.Visit) error {
	raw, err := m.ev.Evaluate(ctx, MobileScript)
	if err != nil {
		return fmt.Errorf("mobile: evaluate: %w", err)
	}
	var mm MobileMetrics
	if err := mobilePayload.decode(raw, &mm); err != nil {
		return err
	}
	v.Mobile = ScoreMobile(mm)
	return nil
}

// ScoreMobile applies the mobile rules to mm.
func ScoreMobile(mm MobileMetrics) *audit.MobileResult {
	var card audit.Scorecard
	res := &audit.MobileResult{
		ViewportWidth:     mm.ViewportWidth,
		ScrollWidth:       mm.ScrollWidth,
		SmallTapTargets:   max(mm.SmallTapTargetCount, len(mm.SmallTapTargets)),
		SmallFontElements: max(mm.SmallFontCount, len(mm.SmallFonts)),
		Findings:          []audit.Finding{},
	}
	add := func(typ string, penalty int, sev audit.Severity, msg string) {
		card.Deduct(typ, penalty)
		res.Findings = append(res.Findings, audit.Finding{Type: typ, Severity: sev, Message: msg})
	}

	if mm.Viewport == nil {
		add("viewport-missing", 30, audit.SeverityError, "No <meta name=\"viewport\"> tag")
	} else {
		res.Viewport = *mm.Viewport
		vp := ParseViewport(*mm.Viewport)
		if vp["width"] != "device-width" {
			add("viewport-not-responsive", 15, audit.SeverityWarning,
				fmt.Sprintf("Viewport width is %q, not device-width", vp["width"]))
		}
		if zoomDisabled(vp) {
			add("zoom-disabled", 10, audit.SeverityWarning,
				"Viewport prevents zooming (user-scalable=no or maximum-scale below 2)")
		}
	}

	if mm.ViewportWidth > 0 && mm.ScrollWidth > mm.ViewportWidth+1 {
		card.Deduct("horizontal-scroll", 20)
		res.Findings = append(res.Findings, audit.Finding{
			Type:      "horizontal-scroll",
			Severity:  audit.SeverityError,
			Message:   fmt.Sprintf("Content is %dpx wide in a %dpx viewport", mm.ScrollWidth, mm.ViewportWidth),
			Value:     audit.Float(float64(mm.ScrollWidth)),
			Threshold: audit.Float(float64(mm.ViewportWidth)),
		})
	}

	banded := func(typ, label string, limits audit.Thresholds, count int, elements []string) {
		band := limits.Band(float64(count))
		if band == audit.BandGood {
			return
		}
		card.Deduct(typ, limits.Penalty(band))
		res.Findings = append(res.Findings, audit.Finding{
			Type:      typ,
			Severity:  band.Severity(),
			Message:   fmt.Sprintf("%d %s", count, label),
			Value:     audit.Float(float64(count)),
			Threshold: audit.Float(limits.Limit(band)),
			Elements:  elements,
		})
	}
	banded("tap-targets-small", "tap targets smaller than 48x48px", tapTargetLimits, res.SmallTapTargets, mm.SmallTapTargets)
	banded("font-too-small", "text elements rendered below 12px", smallFontLimits, res.SmallFontElements, mm.SmallFonts)

	res.Score = card.Score()
	res.Grade = card.Grade()
	return res
}

// ParseViewport splits a viewport content attribute into lower-cased
// key/value pairs. Both "," and ";" separate entries.
func ParseViewport(content string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.FieldsFunc(content, func(r rune) bool { return r == ',' || r == ';' }) {
		k, val, _ := strings.Cut(part, "=")
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		out[k] = strings.ToLower(strings.TrimSpace(val))
	}
	return out
}

func zoomDisabled(vp map[string]string) bool {
	switch vp["user-scalable"] {
	case "no", "0":
		return true
	}
	if ms, ok := vp["maximum-scale"]; ok {
		if f, err := strconv.ParseFloat(ms, 64); err == nil && f < 2 {
			return true
		}
	}
	return false
}
