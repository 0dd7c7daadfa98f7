package releve

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP registers the operator tools on an MCP server. They mirror
// the HTTP surface: progress, summary, recent events, item lookup,
// errored items and save-now.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerProgressTool(srv)
	s.registerSummaryTool(srv)
	s.registerEventsTool(srv)
	s.registerItemTool(srv)
	s.registerErrorsTool(srv)
	s.registerSnapshotTool(srv)
}

// ServeMCP serves the registered tools over stdio until ctx is
// cancelled. The transport owns stdin/stdout, so logs must go to stderr.
func (s *Service) ServeMCP(ctx context.Context, version string) error {
	srv := mcp.NewServer(&mcp.Implementation{Name: "releve", Version: version}, nil)
	s.RegisterMCP(srv)
	return srv.Run(ctx, &mcp.IOTransport{Reader: os.Stdin, Writer: os.Stdout})
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

// textResult marshals v as indented JSON into a single text content.
// Tool errors go through res.SetError, never the handler error: a
// non-nil handler error is a protocol failure, not a tool outcome.
func textResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		var res mcp.CallToolResult
		res.SetError(err)
		return &res, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil
}

// --- progress ---

func (s *Service) registerProgressTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "releve_progress",
		Description: "Report run progress: item counts by status, last checkpoint outcome, dropped events.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		st, err := s.Status(ctx)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(err)
			return &res, nil
		}
		return textResult(st)
	})
}

// --- summary ---

func (s *Service) registerSummaryTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "releve_summary",
		Description: "Report result counts by confidence (found, partially_found, not_found) for the configured source.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sum, err := s.Summary(ctx)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(err)
			return &res, nil
		}
		return textResult(sum)
	})
}

// --- events ---

type eventsRequest struct {
	Label string `json:"label,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

func (s *Service) registerEventsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "releve_events",
		Description: "List recent diagnostic events (item outcomes, item errors, checkpoints), newest first.",
		InputSchema: inputSchema(map[string]any{
			"label": map[string]any{"type": "string", "description": "Only events for this item label"},
			"limit": map[string]any{"type": "integer", "description": "Max events (default 50)"},
		}, nil),
	}

	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r eventsRequest
		if req.Params.Arguments != nil {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				var res mcp.CallToolResult
				res.SetError(err)
				return &res, nil
			}
		}
		if r.Limit <= 0 {
			r.Limit = 50
		}
		events, err := s.Events(ctx, r.Label, r.Limit)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(err)
			return &res, nil
		}
		return textResult(events)
	})
}

// --- item ---

type itemRequest struct {
	Label string `json:"label"`
}

func (s *Service) registerItemTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "releve_item",
		Description: "Look up one roster item by label or display name: status, attempts, last error, extracted result.",
		InputSchema: inputSchema(map[string]any{
			"label": map[string]any{"type": "string", "description": "Item label as written in the roster"},
		}, []string{"label"}),
	}

	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r itemRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			var res mcp.CallToolResult
			res.SetError(err)
			return &res, nil
		}
		det, err := s.ItemDetail(ctx, r.Label)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(err)
			return &res, nil
		}
		if det == nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("unknown item %q", r.Label))
			return &res, nil
		}
		return textResult(det)
	})
}

// --- errors ---

type errorsRequest struct {
	Limit int `json:"limit,omitempty"`
}

func (s *Service) registerErrorsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "releve_errors",
		Description: "List items whose last attempt failed, in roster order, for building a retry list.",
		InputSchema: inputSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Max items (default 100)"},
		}, nil),
	}

	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r errorsRequest
		if req.Params.Arguments != nil {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				var res mcp.CallToolResult
				res.SetError(err)
				return &res, nil
			}
		}
		if r.Limit <= 0 {
			r.Limit = 100
		}
		items, err := s.ErroredItems(ctx, r.Limit)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(err)
			return &res, nil
		}
		return textResult(items)
	})
}

// --- snapshot ---

func (s *Service) registerSnapshotTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "releve_snapshot",
		Description: "Trigger an immediate checkpoint of the live run. Reports busy when a save is already in flight.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return textResult(s.SnapshotNow())
	})
}
