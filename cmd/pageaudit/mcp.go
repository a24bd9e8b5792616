package main

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/pageaudit/auditor"
	"github.com/hazyhaar/pageaudit/internal/config"
	"github.com/hazyhaar/pageaudit/internal/safeurl"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose the audit tools over MCP on stdio",
	RunE:  serveMCP,
}

func serveMCP(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := newLogger(logLevel)
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// stdout carries the protocol.
	for _, s := range cfg.Sinks {
		if s.Type == "stdout" {
			logger.Warn("pageaudit: stdout sink ignored in mcp mode")
		}
	}
	cfg.Sinks = withoutStdout(cfg.Sinks)

	st, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	svc := auditor.NewService(st.auditor, st.store, safeurl.New(cfg.AllowPrivate), logger)
	srv := mcp.NewServer(&mcp.Implementation{Name: "pageaudit", Version: version}, nil)
	svc.RegisterMCP(srv)

	logger.Info("pageaudit: mcp on stdio")
	return srv.Run(ctx, &mcp.StdioTransport{})
}

func withoutStdout(in []config.SinkConfig) []config.SinkConfig {
	out := in[:0:0]
	for _, s := range in {
		if s.Type != "stdout" {
			out = append(out, s)
		}
	}
	return out
}
