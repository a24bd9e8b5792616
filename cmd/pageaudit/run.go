package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/pageaudit/internal/sink"
	"github.com/hazyhaar/pageaudit/report"
)

var (
	runFormat string
	runOut    string
)

var runCmd = &cobra.Command{
	Use:   "run [urls...]",
	Short: "Audit URLs (or the configured targets) and print the reports",
	RunE:  runAudits,
}

func init() {
	runCmd.Flags().StringVar(&runFormat, "format", "json", "stdout format: json, html, markdown")
	runCmd.Flags().StringVar(&runOut, "out", "", "also write one report file per URL into this directory")
}

func runAudits(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := newLogger(logLevel)
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	urls := args
	if len(urls) == 0 {
		urls = cfg.Targets
	}
	if len(urls) == 0 {
		return errors.New("no urls given and no targets configured")
	}

	// The printer owns stdout.
	cfg.Sinks = withoutStdout(cfg.Sinks)

	format, err := report.ParseFormat(runFormat)
	if err != nil {
		return err
	}
	extra := []sink.Sink{printer(os.Stdout, format)}
	if runOut != "" {
		d, err := sink.NewDir(runOut, format)
		if err != nil {
			return err
		}
		extra = append(extra, d)
	}

	st, err := build(ctx, cfg, logger, extra...)
	if err != nil {
		return err
	}
	defer st.Close()

	reps, err := st.auditor.RunMany(ctx, urls)
	failed := 0
	for _, r := range reps {
		if r != nil && len(r.Failed()) > 0 {
			failed++
		}
	}
	logger.Info("pageaudit: run finished", "urls", len(urls), "with_failed_checks", failed)
	return err
}

// printer renders each report to w as it completes. JSON goes out as one
// line per report.
func printer(w io.Writer, f report.Format) sink.Sink {
	if f == report.FormatJSON {
		return sink.NewStdout(w)
	}
	var mu sync.Mutex
	return sink.NewCallback(func(_ context.Context, r *report.Report) error {
		mu.Lock()
		defer mu.Unlock()
		if err := report.Render(w, r, f); err != nil {
			return err
		}
		_, err := fmt.Fprintln(w)
		return err
	})
}
