package checks

import (
	"context"
	"fmt"

	"github.com/hazyhaar/pageaudit/audit"
	"github.com/hazyhaar/pageaudit/page"
)

// PerformanceName is the name of the timing audit.
const PerformanceName = "performance"

// PerformanceScript collects navigation and paint timings. Observers are
// registered with buffered:true so entries recorded before the call are
// delivered; the promise resolves after a short settle delay.
const PerformanceScript = `() => new Promise((resolve) => {
	const out = {ttfb: null, fcp: null, lcp: null, cls: null, inp: null, domContentLoaded: null, loadComplete: null};
	const nav = performance.getEntriesByType('navigation')[0];
	if (nav) {
		out.ttfb = nav.responseStart > 0 ? nav.responseStart : null;
		out.domContentLoaded = nav.domContentLoadedEventEnd > 0 ? nav.domContentLoadedEventEnd : null;
		out.loadComplete = nav.loadEventEnd > 0 ? nav.loadEventEnd : null;
	}
	const fcp = performance.getEntriesByName('first-contentful-paint')[0];
	if (fcp) out.fcp = fcp.startTime;
	const supported = (PerformanceObserver.supportedEntryTypes || []);
	try {
		if (supported.includes('largest-contentful-paint')) {
			new PerformanceObserver((list) => {
				const e = list.getEntries();
				if (e.length) out.lcp = e[e.length - 1].startTime;
			}).observe({type: 'largest-contentful-paint', buffered: true});
		}
		if (supported.includes('layout-shift')) {
			out.cls = 0;
			new PerformanceObserver((list) => {
				for (const e of list.getEntries()) {
					if (!e.hadRecentInput) out.cls += e.value;
				}
			}).observe({type: 'layout-shift', buffered: true});
		}
		if (supported.includes('event')) {
			new PerformanceObserver((list) => {
				for (const e of list.getEntries()) {
					if (e.interactionId) out.inp = Math.max(out.inp || 0, e.duration);
				}
			}).observe({type: 'event', buffered: true, durationThreshold: 16});
		}
	} catch (e) {}
	setTimeout(() => resolve(JSON.stringify(out)), 250);
})`

var performancePayload = mustPayload("performance", `{
	"type": "object",
	"properties": {
		"ttfb": `+nullableNumber+`,
		"fcp": `+nullableNumber+`,
		"lcp": `+nullableNumber+`,
		"cls": `+nullableNumber+`,
		"inp": `+nullableNumber+`,
		"domContentLoaded": `+nullableNumber+`,
		"loadComplete": `+nullableNumber+`
	}
}`)

type performanceMetrics struct {
	TTFB             *float64 `json:"ttfb"`
	FCP              *float64 `json:"fcp"`
	LCP              *float64 `json:"lcp"`
	CLS              *float64 `json:"cls"`
	INP              *float64 `json:"inp"`
	DOMContentLoaded *float64 `json:"domContentLoaded"`
	LoadComplete     *float64 `json:"loadComplete"`
}

// metricRule ties one timing metric to its threshold table.
type metricRule struct {
	typ    string
	label  string
	unit   string
	limits audit.Thresholds
	get    func(audit.Timing) *float64
}

var performanceRules = []metricRule{
	{
		typ: "lcp-slow", label: "Largest Contentful Paint", unit: "ms",
		limits: audit.Thresholds{Good: 2500, NeedsImprovement: 4000, NIPenalty: 20, PoorPenalty: 40},
		get:    func(t audit.Timing) *float64 { return t.LCP },
	},
	{
		typ: "fcp-slow", label: "First Contentful Paint", unit: "ms",
		limits: audit.Thresholds{Good: 1800, NeedsImprovement: 3000, NIPenalty: 10, PoorPenalty: 20},
		get:    func(t audit.Timing) *float64 { return t.FCP },
	},
	{
		typ: "cls-high", label: "Cumulative Layout Shift", unit: "",
		limits: audit.Thresholds{Good: 0.1, NeedsImprovement: 0.25, NIPenalty: 10, PoorPenalty: 25},
		get:    func(t audit.Timing) *float64 { return t.CLS },
	},
	{
		typ: "inp-slow", label: "Interaction to Next Paint", unit: "ms",
		limits: audit.Thresholds{Good: 200, NeedsImprovement: 500, NIPenalty: 10, PoorPenalty: 20},
		get:    func(t audit.Timing) *float64 { return t.INP },
	},
	{
		typ: "ttfb-slow", label: "Time to First Byte", unit: "ms",
		limits: audit.Thresholds{Good: 800, NeedsImprovement: 1800, NIPenalty: 5, PoorPenalty: 15},
		get:    func(t audit.Timing) *float64 { return t.TTFB },
	},
}

// Performance reads page timings and scores them.
type Performance struct {
	ev page.Evaluator
}

// NewPerformance creates the timing audit.
func NewPerformance(ev page.Evaluator) *Performance {
	return &Performance{ev: ev}
}

func (p *Performance) Name() string { return PerformanceName }

func (p *Performance) Run(ctx context.Context, v *audit.Visit) error {
	raw, err := p.ev.Evaluate(ctx, PerformanceScript)
	if err != nil {
		return fmt.Errorf("performance: evaluate: %w", err)
	}
	var m performanceMetrics
	if err := performancePayload.decode(raw, &m); err != nil {
		return err
	}

	v.Timing = audit.Timing{
		TTFB:             m.TTFB,
		FCP:              m.FCP,
		LCP:              m.LCP,
		CLS:              m.CLS,
		INP:              m.INP,
		DOMContentLoaded: m.DOMContentLoaded,
		LoadComplete:     m.LoadComplete,
	}
	v.Performance = ScorePerformance(v.Timing)
	return nil
}

// ScorePerformance scores timings against the static web-vitals tables.
// Missing metrics are not penalised.
func ScorePerformance(t audit.Timing) *audit.PerformanceResult {
	var card audit.Scorecard
	res := &audit.PerformanceResult{Findings: []audit.Finding{}}

	for _, r := range performanceRules {
		val := r.get(t)
		if val == nil {
			continue
		}
		band := r.limits.Band(*val)
		if band == audit.BandGood {
			continue
		}
		card.Deduct(r.typ, r.limits.Penalty(band))
		res.Findings = append(res.Findings, audit.Finding{
			Type:      r.typ,
			Severity:  band.Severity(),
			Message:   fmt.Sprintf("%s is %s (%s)", r.label, formatMetric(*val, r.unit), band),
			Value:     audit.Float(*val),
			Threshold: audit.Float(r.limits.Limit(band)),
		})
	}

	res.Score = card.Score()
	res.Grade = card.Grade()
	return res
}

func formatMetric(v float64, unit string) string {
	if unit == "" {
		return fmt.Sprintf("%.3f", v)
	}
	return fmt.Sprintf("%.0f %s", v, unit)
}
