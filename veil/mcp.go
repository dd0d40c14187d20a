package veil

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hushreel/spoilveil/kit"
)

// RegisterMCP registers the spoilveil tools on an MCP server.
func (e *Engine) RegisterMCP(srv *mcp.Server) {
	e.registerScanTool(srv)
	e.registerScrubTool(srv)
	e.registerStatsTool(srv)
	e.registerKeywordsTool(srv)
	e.registerEventsTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// --- scan ---

type scanRequest struct{}

func (e *Engine) registerScanTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "spoilveil_scan",
		Description: "Run one full masking scan of the live page immediately. Returns the scan report.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return e.ScanAll(ctx)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: &scanRequest{}}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- scrub ---

type scrubRequest struct {
	HTML string `json:"html"`
}

type scrubResponse struct {
	HTML   string `json:"html"`
	Masked int    `json:"masked"`
	Items  int    `json:"items"`
}

func (e *Engine) registerScrubTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "spoilveil_scrub",
		Description: "Mask spoilers in an HTML document offline and return the rewritten document.",
		InputSchema: inputSchema(map[string]any{
			"html": map[string]any{"type": "string", "description": "HTML document to scrub"},
		}, []string{"html"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*scrubRequest)
		out, scan, err := e.ScrubHTML(ctx, r.HTML)
		if err != nil {
			return nil, err
		}
		return scrubResponse{HTML: out, Masked: scan.Masked, Items: scan.Items}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r scrubRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		if r.HTML == "" {
			return nil, fmt.Errorf("veil: scrub: html is required")
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- stats ---

type statsRequest struct{}

func (e *Engine) registerStatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "spoilveil_stats",
		Description: "Return scan and masking counters for the running engine.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return e.Stats(), nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: &statsRequest{}}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- keywords ---

type keywordsRequest struct{}

type keywordsResponse struct {
	Keywords []string `json:"keywords"`
	Sentinel string   `json:"sentinel"`
}

func (e *Engine) registerKeywordsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "spoilveil_keywords",
		Description: "List the configured spoiler keywords and the sentinel title masked items receive.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return keywordsResponse{Keywords: e.Keywords(), Sentinel: e.Sentinel()}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: &keywordsRequest{}}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- events ---

type eventsRequest struct {
	Kind  string `json:"kind,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

func (e *Engine) registerEventsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "spoilveil_events",
		Description: "Return recent scan or mask events from the audit store.",
		InputSchema: inputSchema(map[string]any{
			"kind":  map[string]any{"type": "string", "enum": []any{"scans", "masks"}, "description": "Event kind (default: masks)"},
			"limit": map[string]any{"type": "integer", "description": "Max rows (default 50)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*eventsRequest)
		store := e.Store()
		if store == nil {
			return nil, fmt.Errorf("veil: audit store is not configured")
		}
		switch r.Kind {
		case "scans":
			return store.RecentScans(ctx, r.Limit)
		case "", "masks":
			return store.RecentMasks(ctx, r.Limit)
		default:
			return nil, fmt.Errorf("veil: events: unknown kind %q", r.Kind)
		}
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r eventsRequest
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
