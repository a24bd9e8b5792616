package checks

import (
	"context"
	"fmt"
	"sort"

	"github.com/hazyhaar/pageaudit/audit"
	"github.com/hazyhaar/pageaudit/page"
)

// ContentWeightName is the name of the resource weight audit.
const ContentWeightName = "content-weight"

// ContentWeightScript sums resource-timing transfer sizes per type.
const ContentWeightScript = `() => {
	const byType = {};
	let total = 0, count = 0;
	const add = (type, bytes) => {
		byType[type] = byType[type] || {count: 0, bytes: 0};
		byType[type].count++;
		byType[type].bytes += bytes;
		total += bytes;
		count++;
	};
	const nav = performance.getEntriesByType('navigation')[0];
	const htmlBytes = nav ? (nav.transferSize || nav.encodedBodySize || 0) : 0;
	if (nav) add('document', htmlBytes);
	for (const r of performance.getEntriesByType('resource')) {
		let t = 'other';
		if (r.initiatorType === 'img' || r.initiatorType === 'image') t = 'image';
		else if (r.initiatorType === 'script') t = 'script';
		else if (r.initiatorType === 'css' || /\.css(\?|$)/.test(r.name)) t = 'stylesheet';
		else if (/\.(woff2?|ttf|otf|eot)(\?|$)/.test(r.name)) t = 'font';
		else if (r.initiatorType === 'fetch' || r.initiatorType === 'xmlhttprequest') t = 'xhr';
		add(t, r.transferSize || r.encodedBodySize || 0);
	}
	return JSON.stringify({
		totalBytes: total,
		htmlBytes: htmlBytes,
		requestCount: count,
		domNodes: document.getElementsByTagName('*').length,
		byType: byType
	});
}`

var contentWeightPayload = mustPayload("content-weight", `{
	"type": "object",
	"required": ["totalBytes", "requestCount", "domNodes"],
	"properties": {
		"totalBytes": {"type": "number", "minimum": 0},
		"htmlBytes": {"type": "number", "minimum": 0},
		"requestCount": {"type": "integer", "minimum": 0},
		"domNodes": {"type": "integer", "minimum": 0},
		"byType": {
			"type": "object",
			"additionalProperties": {
				"type": "object",
				"properties": {
					"count": {"type": "integer", "minimum": 0},
					"bytes": {"type": "number", "minimum": 0}
				}
			}
		}
	}
}`)

// ContentMetrics is the raw shape returned by ContentWeightScript.
type ContentMetrics struct {
	TotalBytes   int64                         `json:"totalBytes"`
	HTMLBytes    int64                         `json:"htmlBytes"`
	RequestCount int                           `json:"requestCount"`
	DOMNodes     int                           `json:"domNodes"`
	ByType       map[string]audit.ResourceStat `json:"byType"`
}

type weightRule struct {
	typ    string
	label  string
	bytes  bool
	limits audit.Thresholds
	get    func(ContentMetrics) float64
}

var contentWeightRules = []weightRule{
	{
		typ: "page-weight", label: "Total transfer size", bytes: true,
		limits: audit.Thresholds{Good: 1_600_000, NeedsImprovement: 3_000_000, NIPenalty: 15, PoorPenalty: 30},
		get:    func(m ContentMetrics) float64 { return float64(m.TotalBytes) },
	},
	{
		typ: "request-count", label: "Request count",
		limits: audit.Thresholds{Good: 50, NeedsImprovement: 100, NIPenalty: 5, PoorPenalty: 15},
		get:    func(m ContentMetrics) float64 { return float64(m.RequestCount) },
	},
	{
		typ: "dom-size", label: "DOM element count",
		limits: audit.Thresholds{Good: 800, NeedsImprovement: 1500, NIPenalty: 5, PoorPenalty: 15},
		get:    func(m ContentMetrics) float64 { return float64(m.DOMNodes) },
	},
	{
		typ: "js-weight", label: "JavaScript transfer size", bytes: true,
		limits: audit.Thresholds{Good: 500_000, NeedsImprovement: 1_000_000, NIPenalty: 10, PoorPenalty: 20},
		get:    func(m ContentMetrics) float64 { return float64(m.ByType["script"].Bytes) },
	},
	{
		typ: "image-weight", label: "Image transfer size", bytes: true,
		limits: audit.Thresholds{Good: 1_000_000, NeedsImprovement: 2_000_000, NIPenalty: 5, PoorPenalty: 15},
		get:    func(m ContentMetrics) float64 { return float64(m.ByType["image"].Bytes) },
	},
}

// ContentWeight measures how much the page downloads.
type ContentWeight struct {
	ev page.Evaluator
}

// NewContentWeight creates the weight audit.
func NewContentWeight(ev page.Evaluator) *ContentWeight {
	return &ContentWeight{ev: ev}
}

func (c *ContentWeight) Name() string { return ContentWeightName }

func (c *ContentWeight) Run(ctx context.Context, v *audit.Visit) error {
	raw, err := c.ev.Evaluate(ctx, ContentWeightScript)
	if err != nil {
		return fmt.Errorf("content-weight: evaluate: %w", err)
	}
	var m ContentMetrics
	if err := contentWeightPayload.decode(raw, &m); err != nil {
		return err
	}
	v.ContentWeight = ScoreContentWeight(m)
	return nil
}

// ScoreContentWeight applies the weight thresholds to m.
func ScoreContentWeight(m ContentMetrics) *audit.ContentWeightResult {
	var card audit.Scorecard
	res := &audit.ContentWeightResult{
		TotalBytes:   m.TotalBytes,
		HTMLBytes:    m.HTMLBytes,
		RequestCount: m.RequestCount,
		DOMNodes:     m.DOMNodes,
		ByType:       m.ByType,
		Findings:     []audit.Finding{},
	}

	for _, r := range contentWeightRules {
		val := r.get(m)
		band := r.limits.Band(val)
		if band == audit.BandGood {
			continue
		}
		card.Deduct(r.typ, r.limits.Penalty(band))
		shown := fmt.Sprintf("%.0f", val)
		if r.bytes {
			shown = formatBytes(int64(val))
		}
		res.Findings = append(res.Findings, audit.Finding{
			Type:      r.typ,
			Severity:  band.Severity(),
			Message:   fmt.Sprintf("%s is %s (%s)", r.label, shown, band),
			Value:     audit.Float(val),
			Threshold: audit.Float(r.limits.Limit(band)),
			Elements:  heaviestTypes(m, r.typ),
		})
	}

	res.Score = card.Score()
	res.Grade = card.Grade()
	return res
}

// heaviestTypes lists resource types by bytes for the page-weight finding.
func heaviestTypes(m ContentMetrics, typ string) []string {
	if typ != "page-weight" || len(m.ByType) == 0 {
		return nil
	}
	types := make([]string, 0, len(m.ByType))
	for t := range m.ByType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		bi, bj := m.ByType[types[i]].Bytes, m.ByType[types[j]].Bytes
		if bi != bj {
			return bi > bj
		}
		return types[i] < types[j]
	})
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, fmt.Sprintf("%s: %s", t, formatBytes(m.ByType[t].Bytes)))
	}
	return out
}

func formatBytes(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1f MB", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1f KB", float64(n)/1_000)
	}
	return fmt.Sprintf("%d B", n)
}
