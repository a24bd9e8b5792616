// Package observability records audit metrics in a SQLite timeseries
// table: per-check duration and failure, and per-family scores. Writes are
// buffered and flushed in batches; a full buffer flushes inline.
package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/pageaudit/a11y"
	"github.com/hazyhaar/pageaudit/audit"
	"github.com/hazyhaar/pageaudit/checks"
)

// Metric names.
const (
	MetricAuditDurationMs = "audit_duration_ms"
	MetricAuditFailed     = "audit_failed"
	MetricAuditScore      = "audit_score"
)

// Schema creates the timeseries table.
const Schema = `
CREATE TABLE IF NOT EXISTS metrics_timeseries (
	metric_name TEXT NOT NULL,
	timestamp   INTEGER NOT NULL,
	value       REAL NOT NULL,
	labels      TEXT,
	unit        TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_metrics_name_time
	ON metrics_timeseries(metric_name, timestamp DESC);
`

// Metric is a single datapoint.
type Metric struct {
	Name      string
	Timestamp time.Time
	Value     float64
	Labels    map[string]string
	Unit      string
}

// MetricsManager buffers metrics and flushes them to SQLite.
type MetricsManager struct {
	db            *sql.DB
	bufferSize    int
	flushInterval time.Duration
	logger        *slog.Logger

	mu     sync.Mutex
	buffer []*Metric
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewMetricsManager starts a manager over db, which must carry Schema.
// Zero bufferSize or flushInterval select 100 and 5s.
func NewMetricsManager(db *sql.DB, bufferSize int, flushInterval time.Duration, logger *slog.Logger) *MetricsManager {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	mm := &MetricsManager{
		db:            db,
		bufferSize:    bufferSize,
		flushInterval: flushInterval,
		logger:        logger,
		buffer:        make([]*Metric, 0, bufferSize),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go mm.flushLoop()
	return mm
}

// Record queues m.
func (mm *MetricsManager) Record(m *Metric) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.buffer = append(mm.buffer, m)
	if len(mm.buffer) >= mm.bufferSize {
		mm.flushLocked()
	}
}

// Observer returns a pipeline hook recording each check's duration and
// outcome.
func (mm *MetricsManager) Observer() audit.Observer {
	return func(name string, elapsed time.Duration, err error) {
		labels := map[string]string{"audit": name}
		mm.Record(&Metric{
			Name:   MetricAuditDurationMs,
			Value:  float64(elapsed.Microseconds()) / 1000,
			Labels: labels,
			Unit:   "milliseconds",
		})
		failed := 0.0
		if err != nil {
			failed = 1
		}
		mm.Record(&Metric{Name: MetricAuditFailed, Value: failed, Labels: labels, Unit: "count"})
	}
}

// RecordVisit records the score of every scored family of v.
func (mm *MetricsManager) RecordVisit(v *audit.Visit) {
	now := time.Now()
	score := func(family string, s int) {
		mm.Record(&Metric{
			Name:      MetricAuditScore,
			Timestamp: now,
			Value:     float64(s),
			Labels:    map[string]string{"audit": family, "url": v.URL},
			Unit:      "score",
		})
	}
	if r := v.SecurityHeaders; r != nil {
		score(checks.SecurityHeadersName, r.Score)
	}
	if r := v.Performance; r != nil {
		score(checks.PerformanceName, r.Score)
	}
	if r := v.ContentWeight; r != nil {
		score(checks.ContentWeightName, r.Score)
	}
	if r := v.Mobile; r != nil {
		score(checks.MobileName, r.Score)
	}
	if r := v.Accessibility; r != nil {
		score(a11y.SuiteName, r.ComplianceScore)
	}
}

// Query returns datapoints named name (all when empty) since since, newest
// first.
func (mm *MetricsManager) Query(ctx context.Context, name string, since time.Time, limit int) ([]*Metric, error) {
	q := `SELECT metric_name, timestamp, value, labels, unit FROM metrics_timeseries WHERE timestamp >= ?`
	args := []any{since.UnixMilli()}
	if name != "" {
		q += ` AND metric_name = ?`
		args = append(args, name)
	}
	q += ` ORDER BY timestamp DESC, rowid DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := mm.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("observability: query metrics: %w", err)
	}
	defer rows.Close()

	var out []*Metric
	for rows.Next() {
		var (
			m      Metric
			ts     int64
			labels sql.NullString
		)
		if err := rows.Scan(&m.Name, &ts, &m.Value, &labels, &m.Unit); err != nil {
			return nil, fmt.Errorf("observability: scan metric: %w", err)
		}
		m.Timestamp = time.UnixMilli(ts)
		if labels.Valid {
			_ = json.Unmarshal([]byte(labels.String), &m.Labels)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// Cleanup deletes datapoints older than retention.
func (mm *MetricsManager) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	res, err := mm.db.ExecContext(ctx, `DELETE FROM metrics_timeseries WHERE timestamp < ?`,
		time.Now().Add(-retention).UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("observability: cleanup metrics: %w", err)
	}
	return res.RowsAffected()
}

// Flush writes the buffer now.
func (mm *MetricsManager) Flush() {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.flushLocked()
}

// Close flushes remaining metrics and stops the flush loop.
func (mm *MetricsManager) Close() error {
	mm.once.Do(func() { close(mm.stop) })
	<-mm.done
	return nil
}

func (mm *MetricsManager) flushLoop() {
	defer close(mm.done)
	ticker := time.NewTicker(mm.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-mm.stop:
			mm.Flush()
			return
		case <-ticker.C:
			mm.Flush()
		}
	}
}

func (mm *MetricsManager) flushLocked() {
	if len(mm.buffer) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := mm.db.BeginTx(ctx, nil)
	if err != nil {
		mm.logger.Error("observability: begin tx", "error", err)
		return
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO metrics_timeseries (metric_name, timestamp, value, labels, unit) VALUES (?,?,?,?,?)`)
	if err != nil {
		tx.Rollback()
		mm.logger.Error("observability: prepare", "error", err)
		return
	}
	defer stmt.Close()

	for _, m := range mm.buffer {
		var labels sql.NullString
		if len(m.Labels) > 0 {
			if b, err := json.Marshal(m.Labels); err == nil {
				labels = sql.NullString{String: string(b), Valid: true}
			}
		}
		if _, err := stmt.ExecContext(ctx, m.Name, m.Timestamp.UnixMilli(), m.Value, labels, m.Unit); err != nil {
			mm.logger.Error("observability: insert", "error", err, "metric", m.Name)
		}
	}
	if err := tx.Commit(); err != nil {
		mm.logger.Error("observability: commit", "error", err)
	}
	mm.buffer = mm.buffer[:0]
}
