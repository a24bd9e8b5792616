package audit

// PerformanceResult is written by the performance audit.
type PerformanceResult struct {
	Findings []Finding `json:"findings"`
	Score    int       `json:"score"`
	Grade    Grade     `json:"grade"`
}

// ResourceStat aggregates resources of one type.
type ResourceStat struct {
	Count int   `json:"count"`
	Bytes int64 `json:"bytes"`
}

// ContentWeightResult is written by the content-weight audit.
type ContentWeightResult struct {
	TotalBytes   int64                   `json:"total_bytes"`
	HTMLBytes    int64                   `json:"html_bytes"`
	RequestCount int                     `json:"request_count"`
	DOMNodes     int                     `json:"dom_nodes"`
	ByType       map[string]ResourceStat `json:"by_type,omitempty"`
	Findings     []Finding               `json:"findings"`
	Score        int                     `json:"score"`
	Grade        Grade                   `json:"grade"`
}

// MobileResult is written by the mobile audit.
type MobileResult struct {
	Viewport          string    `json:"viewport,omitempty"`
	ViewportWidth     int       `json:"viewport_width"`
	ScrollWidth       int       `json:"scroll_width"`
	SmallTapTargets   int       `json:"small_tap_targets"`
	SmallFontElements int       `json:"small_font_elements"`
	Findings          []Finding `json:"findings"`
	Score             int       `json:"score"`
	Grade             Grade     `json:"grade"`
}

// SecurityHeadersResult is written by the security-headers audit.
type SecurityHeadersResult struct {
	Present  []string  `json:"present"`
	Missing  []string  `json:"missing"`
	Findings []Finding `json:"findings"`
	Score    int       `json:"score"`
	Grade    Grade     `json:"grade"`
}

// LevelResult is the outcome of one accessibility conformance level.
type LevelResult struct {
	Level      Level     `json:"level"`
	Violations []Finding `json:"violations"`
	Warnings   []Finding `json:"warnings"`
	Passes     []Finding `json:"passes"`
	Score      int       `json:"score"`
	Grade      Grade     `json:"grade"`
}

// AccessibilityReport is the merged result of every enabled level.
type AccessibilityReport struct {
	ByLevel         map[Level]*LevelResult `json:"by_level"`
	Violations      []Finding              `json:"violations"`
	Warnings        []Finding              `json:"warnings"`
	Passes          []Finding              `json:"passes"`
	Compliance      map[string]bool        `json:"compliance"`
	ComplianceScore int                    `json:"compliance_score"`
	Summary         Summary                `json:"summary"`
	Screenshots     []Screenshot           `json:"screenshots,omitempty"`
}

// Summary condenses an AccessibilityReport for readers.
type Summary struct {
	TotalViolations int              `json:"total_violations"`
	TotalWarnings   int              `json:"total_warnings"`
	TotalPasses     int              `json:"total_passes"`
	ScoredLevels    []Level          `json:"scored_levels"`
	UnscoredLevels  []Level          `json:"unscored_levels,omitempty"`
	ByCriterion     []CriterionCount `json:"by_criterion"`
	PriorityIssues  []Finding        `json:"priority_issues"`
	Recommendations []string         `json:"recommendations"`
}

// CriterionCount is the number of violations sharing a criterion.
type CriterionCount struct {
	Criterion string `json:"criterion"`
	Level     Level  `json:"level"`
	Count     int    `json:"count"`
}

// Screenshot is an annotated capture of one violation's first element.
type Screenshot struct {
	Criterion string `json:"criterion"`
	Selector  string `json:"selector"`
	PNG       []byte `json:"png,omitempty"`
	Error     string `json:"error,omitempty"`
}
