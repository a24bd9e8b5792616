// Package store persists audit reports in SQLite: the full report as JSON
// plus one row per failed audit and per finding for querying.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hazyhaar/pageaudit/a11y"
	"github.com/hazyhaar/pageaudit/audit"
	"github.com/hazyhaar/pageaudit/checks"
	"github.com/hazyhaar/pageaudit/internal/dbopen"
	"github.com/hazyhaar/pageaudit/report"
)

// Store is the report database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the store at path and applies the schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	all := append([]dbopen.Option{dbopen.WithMkdirAll(), dbopen.WithSchema(Schema)}, opts...)
	db, err := dbopen.Open(path, all...)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Summary is one row of ListRuns.
type Summary struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	FinalURL   string    `json:"final_url,omitempty"`
	StatusCode *int      `json:"status_code,omitempty"`
	Digest     string    `json:"digest"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Failed     []string  `json:"failed"`
	Findings   int       `json:"findings"`
}

// Filter narrows ListRuns.
type Filter struct {
	URL   string
	Limit int
}

// FindingRow is one stored finding.
type FindingRow struct {
	Family    string         `json:"family"`
	Type      string         `json:"type"`
	Criterion string         `json:"criterion,omitempty"`
	Level     audit.Level    `json:"level,omitempty"`
	Severity  audit.Severity `json:"severity"`
	Message   string         `json:"message"`
	Elements  int            `json:"elements"`
}

// SaveRun stores r, replacing any run with the same id.
func (s *Store) SaveRun(ctx context.Context, r *report.Report) error {
	if r == nil || r.Visit == nil {
		return fmt.Errorf("store: nil report")
	}
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("store: marshal report: %w", err)
	}
	v := r.Visit

	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, r.ID); err != nil {
			return fmt.Errorf("store: replace run: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, url, final_url, status_code, digest, started_at, finished_at, report)
			VALUES (?,?,?,?,?,?,?,?)`,
			r.ID, r.URL, v.FinalURL, v.StatusCode, r.Digest,
			r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(), string(body),
		)
		if err != nil {
			return fmt.Errorf("store: insert run: %w", err)
		}
		for name, msg := range v.Errors {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO run_errors (run_id, audit, message) VALUES (?,?,?)`,
				r.ID, name, msg); err != nil {
				return fmt.Errorf("store: insert error: %w", err)
			}
		}
		for _, f := range Findings(v) {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO findings (run_id, family, type, criterion, level, severity, message, elements)
				VALUES (?,?,?,?,?,?,?,?)`,
				r.ID, f.Family, f.Type, f.Criterion, string(f.Level), string(f.Severity), f.Message, f.Elements,
			); err != nil {
				return fmt.Errorf("store: insert finding: %w", err)
			}
		}
		return nil
	})
}

// GetRun returns the stored report, or nil when id is unknown.
func (s *Store) GetRun(ctx context.Context, id string) (*report.Report, error) {
	var body string
	err := s.DB.QueryRowContext(ctx, `SELECT report FROM runs WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get run: %w", err)
	}
	var r report.Report
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, fmt.Errorf("store: decode run %s: %w", id, err)
	}
	return &r, nil
}

// ListRuns returns the newest runs first. Limit defaults to 50.
func (s *Store) ListRuns(ctx context.Context, f Filter) ([]Summary, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	q := `
		SELECT r.id, r.url, r.final_url, r.status_code, r.digest, r.started_at, r.finished_at,
		       COALESCE((SELECT GROUP_CONCAT(audit, ',') FROM run_errors e WHERE e.run_id = r.id), ''),
		       (SELECT COUNT(*) FROM findings x WHERE x.run_id = r.id)
		FROM runs r`
	var args []any
	if f.URL != "" {
		q += ` WHERE r.url = ?`
		args = append(args, f.URL)
	}
	q += ` ORDER BY r.started_at DESC, r.id DESC LIMIT ?`
	args = append(args, f.Limit)

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var (
			sm                Summary
			status            sql.NullInt64
			started, finished int64
			failed            string
		)
		if err := rows.Scan(&sm.ID, &sm.URL, &sm.FinalURL, &status, &sm.Digest,
			&started, &finished, &failed, &sm.Findings); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		if status.Valid {
			code := int(status.Int64)
			sm.StatusCode = &code
		}
		sm.StartedAt = time.UnixMilli(started).UTC()
		sm.FinishedAt = time.UnixMilli(finished).UTC()
		sm.Failed = []string{}
		if failed != "" {
			sm.Failed = strings.Split(failed, ",")
			sort.Strings(sm.Failed)
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

// FindingsFor returns the stored findings of a run, optionally limited to
// one family.
func (s *Store) FindingsFor(ctx context.Context, runID, family string) ([]FindingRow, error) {
	q := `SELECT family, type, criterion, level, severity, message, elements
		FROM findings WHERE run_id = ?`
	args := []any{runID}
	if family != "" {
		q += ` AND family = ?`
		args = append(args, family)
	}
	q += ` ORDER BY rowid`

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: findings: %w", err)
	}
	defer rows.Close()

	var out []FindingRow
	for rows.Next() {
		var f FindingRow
		var level, sev string
		if err := rows.Scan(&f.Family, &f.Type, &f.Criterion, &level, &sev, &f.Message, &f.Elements); err != nil {
			return nil, fmt.Errorf("store: scan finding: %w", err)
		}
		f.Level = audit.Level(level)
		f.Severity = audit.Severity(sev)
		out = append(out, f)
	}
	return out, rows.Err()
}

// Findings flattens every finding of v, tagged with the audit family
// that produced it.
func Findings(v *audit.Visit) []FindingRow {
	var out []FindingRow
	add := func(family string, fs []audit.Finding) {
		for _, f := range fs {
			out = append(out, FindingRow{
				Family:    family,
				Type:      f.Type,
				Criterion: f.Criterion,
				Level:     f.Level,
				Severity:  f.Severity,
				Message:   f.Message,
				Elements:  len(f.Elements),
			})
		}
	}
	if r := v.SecurityHeaders; r != nil {
		add(checks.SecurityHeadersName, r.Findings)
	}
	if r := v.Performance; r != nil {
		add(checks.PerformanceName, r.Findings)
	}
	if r := v.ContentWeight; r != nil {
		add(checks.ContentWeightName, r.Findings)
	}
	if r := v.Mobile; r != nil {
		add(checks.MobileName, r.Findings)
	}
	if r := v.Accessibility; r != nil {
		add(a11y.SuiteName, r.Violations)
		add(a11y.SuiteName, r.Warnings)
	}
	return out
}
