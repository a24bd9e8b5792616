package sink

import (
	"fmt"
	"log/slog"

	"github.com/hazyhaar/pageaudit/internal/config"
	"github.com/hazyhaar/pageaudit/report"
)

// FromConfig builds a Router over the configured sinks.
func FromConfig(cfgs []config.SinkConfig, logger *slog.Logger) (*Router, error) {
	sinks := make([]Sink, 0, len(cfgs))
	for i, c := range cfgs {
		f, err := report.ParseFormat(c.Format)
		if err != nil {
			return nil, fmt.Errorf("sink %d: %w", i, err)
		}
		switch c.Type {
		case "stdout":
			sinks = append(sinks, NewStdout(nil))
		case "webhook":
			sinks = append(sinks, NewWebhook(c.URL,
				WithWebhookFormat(f),
				WithWebhookRetries(c.MaxRetries),
				WithWebhookBackoff(c.Backoff),
				WithWebhookLogger(logger),
			))
		case "dir":
			d, err := NewDir(c.Dir, f)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, d)
		default:
			return nil, fmt.Errorf("sink %d: unsupported type %q", i, c.Type)
		}
	}
	return NewRouter(logger, sinks...), nil
}
