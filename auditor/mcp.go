package auditor

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/pageaudit/internal/kit"
)

// RegisterMCP registers pageaudit_run, pageaudit_get and pageaudit_list.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "pageaudit_run",
		Description: "Audit web pages for accessibility (WCAG levels), security headers, performance, content weight and mobile friendliness. Returns one report per URL, in order.",
		InputSchema: kit.InputSchema(map[string]any{
			"url":  map[string]any{"type": "string", "description": "Page to audit"},
			"urls": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Several pages to audit"},
		}, nil),
	}, s.run, kit.DecodeArgs[RunRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "pageaudit_get",
		Description: "Fetch a stored audit report by run id.",
		InputSchema: kit.InputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Run id (run_<uuid>)"},
		}, []string{"id"}),
	}, s.get, kit.DecodeArgs[GetRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "pageaudit_list",
		Description: "List stored audit runs, newest first.",
		InputSchema: kit.InputSchema(map[string]any{
			"url":   map[string]any{"type": "string", "description": "Only runs of this URL"},
			"limit": map[string]any{"type": "integer", "description": "Maximum rows (default 50)"},
		}, nil),
	}, s.list, kit.DecodeArgs[ListRequest]())
}
