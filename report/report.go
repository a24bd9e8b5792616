// Package report wraps a finished Visit into a self-describing envelope and
// renders it as JSON, HTML or Markdown.
package report

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/hazyhaar/pageaudit/audit"
)

// Report is the envelope delivered to sinks and stored.
type Report struct {
	ID         string       `json:"id"`
	URL        string       `json:"url"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Visit      *audit.Visit `json:"visit"`
	// Digest is sha256 over the RFC 8785 form of the Visit with volatile
	// measurements removed. Two runs seeing the same page agree on it.
	Digest string `json:"digest"`
}

// New builds a report for v and computes its digest.
func New(id string, started, finished time.Time, v *audit.Visit) (*Report, error) {
	if v == nil {
		return nil, fmt.Errorf("report: nil visit")
	}
	d, err := Digest(v)
	if err != nil {
		return nil, err
	}
	return &Report{
		ID:         id,
		URL:        v.URL,
		StartedAt:  started.UTC(),
		FinishedAt: finished.UTC(),
		Visit:      v,
		Digest:     d,
	}, nil
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failed returns the names of audits that recorded an error.
func (r *Report) Failed() []string {
	return failedNames(r.Visit)
}

// Verify recomputes the digest and compares.
func (r *Report) Verify() (bool, error) {
	d, err := Digest(r.Visit)
	if err != nil {
		return false, err
	}
	return d == r.Digest, nil
}

// volatileKeys are top-level Visit fields that vary between identical runs.
var volatileKeys = []string{"response_time_ms", "timing", "performance"}

// Digest canonicalises v without volatile fields and hashes it.
func Digest(v *audit.Visit) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("report: marshal visit: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("report: reparse visit: %w", err)
	}
	for _, k := range volatileKeys {
		delete(doc, k)
	}
	if chain, ok := doc["redirect_chain"].([]any); ok {
		for _, hop := range chain {
			if m, ok := hop.(map[string]any); ok {
				delete(m, "timestamp")
			}
		}
	}
	if acc, ok := doc["accessibility"].(map[string]any); ok {
		delete(acc, "screenshots")
	}

	stripped, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("report: marshal digest input: %w", err)
	}
	canonical, err := jcs.Transform(stripped)
	if err != nil {
		return "", fmt.Errorf("report: canonicalize: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
