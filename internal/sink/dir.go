package sink

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hazyhaar/pageaudit/report"
)

// Dir writes one file per report, named after the report id.
type Dir struct {
	dir    string
	format report.Format
}

// NewDir creates the directory if needed.
func NewDir(dir string, format report.Format) (*Dir, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("dir sink: %w", err)
	}
	return &Dir{dir: dir, format: format}, nil
}

// Path returns the file a report with id is written to.
func (d *Dir) Path(id string) string {
	return filepath.Join(d.dir, id+extension(d.format))
}

func (d *Dir) Send(_ context.Context, r *report.Report) error {
	var buf bytes.Buffer
	if err := report.Render(&buf, r, d.format); err != nil {
		return fmt.Errorf("dir sink: %w", err)
	}
	// Write then rename so readers never see a partial report.
	path := d.Path(r.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("dir sink: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("dir sink: rename: %w", err)
	}
	return nil
}

func (d *Dir) Close() error { return nil }

func extension(f report.Format) string {
	switch f {
	case report.FormatHTML:
		return ".html"
	case report.FormatMarkdown:
		return ".md"
	}
	return ".json"
}
