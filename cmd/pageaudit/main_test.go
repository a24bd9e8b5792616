package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/pageaudit/audit"
	"github.com/hazyhaar/pageaudit/internal/config"
	"github.com/hazyhaar/pageaudit/report"
)

func TestWithoutStdout(t *testing.T) {
	in := []config.SinkConfig{{Type: "stdout"}, {Type: "dir", Dir: "out"}, {Type: "stdout"}}
	out := withoutStdout(in)
	if len(out) != 1 || out[0].Type != "dir" {
		t.Fatalf("got %+v", out)
	}
	if in[0].Type != "stdout" {
		t.Fatal("input modified")
	}
}

func TestPrinter(t *testing.T) {
	r, err := report.New("run_x", time.Now(), time.Now(), audit.NewVisit("https://example.com"))
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	for _, f := range []report.Format{report.FormatJSON, report.FormatMarkdown} {
		var buf bytes.Buffer
		if err := printer(&buf, f).Send(context.Background(), r); err != nil {
			t.Fatalf("%s: %v", f, err)
		}
		if !strings.Contains(buf.String(), "https://example.com") {
			t.Errorf("%s: url missing from %q", f, buf.String())
		}
	}
}

func TestNewLogger(t *testing.T) {
	if !newLogger("debug").Enabled(context.Background(), -4) {
		t.Fatal("debug not enabled")
	}
	if newLogger("bogus").Enabled(context.Background(), -4) {
		t.Fatal("unknown level should default to info")
	}
}
