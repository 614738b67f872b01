// Package agentgw exposes the action registry to MCP agent hosts.
//
// The gateway is a thin adapter: it declares one MCP tool per registry
// action and forwards every call through [registry.Registry.Call], so the
// registry stays the single source of truth for what automation may do.
// Serving happens over stdio, the transport agent hosts spawn subprocess
// servers with.
package agentgw

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lumapix/lumapix/internal/filterstate"
	"github.com/lumapix/lumapix/internal/registry"
)

// Gateway serves the registry's actions as MCP tools.
type Gateway struct {
	reg    *registry.Registry
	server *mcpsdk.Server
}

// New builds a [Gateway] over reg.
func New(reg *registry.Registry, version string) *Gateway {
	if version == "" {
		version = "0.0.0-dev"
	}
	g := &Gateway{
		reg: reg,
		server: mcpsdk.NewServer(
			&mcpsdk.Implementation{Name: "lumapix", Version: version},
			nil,
		),
	}

	mcpsdk.AddTool(g.server, &mcpsdk.Tool{
		Name:        registry.ActionSearch,
		Description: "Search the photo library with a natural-language query, structured filters, or both. Returns ranked matches with relevance scores and the parsed query interpretation.",
	}, g.search)
	mcpsdk.AddTool(g.server, &mcpsdk.Tool{
		Name:        registry.ActionParseCommand,
		Description: "Parse a natural-language bulk command (e.g. \"tag selected photos as vacation\") into an operation descriptor. With execute=true, an executable parse runs immediately over the current selection.",
	}, g.parseCommand)
	mcpsdk.AddTool(g.server, &mcpsdk.Tool{
		Name:        registry.ActionBulkSelect,
		Description: "Select photos by ID (or all photos) for a subsequent bulk operation. Returns the selection and the available operation types.",
	}, g.bulkSelect)
	mcpsdk.AddTool(g.server, &mcpsdk.Tool{
		Name:        registry.ActionExecuteBulk,
		Description: "Execute a bulk operation (download, tag, album_create, export_metadata, analyze, delete, rate, share) over the current selection. Destructive or oversized runs must be retried with confirmed=true.",
	}, g.executeBulk)
	mcpsdk.AddTool(g.server, &mcpsdk.Tool{
		Name:        registry.ActionRollback,
		Description: "Undo a completed bulk operation using its rollback token.",
	}, g.rollback)

	return g
}

// Server returns the underlying MCP server, e.g. for custom transports.
func (g *Gateway) Server() *mcpsdk.Server { return g.server }

// Run serves the gateway over stdio until ctx is cancelled or the client
// disconnects.
func (g *Gateway) Run(ctx context.Context) error {
	slog.Info("agent gateway serving", "transport", "stdio", "tools", g.reg.Names())
	if err := g.server.Run(ctx, &mcpsdk.StdioTransport{}); err != nil {
		return fmt.Errorf("agentgw: serving: %w", err)
	}
	return nil
}

type searchArgs struct {
	Query      string                   `json:"query" jsonschema:"the natural-language photo query"`
	Filters    *filterstate.FilterState `json:"filters,omitempty" jsonschema:"structured filter criteria combined with the parsed query"`
	Mode       string                   `json:"mode,omitempty" jsonschema:"filter combination mode, AND or OR"`
	MaxResults int                      `json:"max_results,omitempty" jsonschema:"maximum number of ranked results"`
}

func (g *Gateway) search(ctx context.Context, _ *mcpsdk.CallToolRequest, args searchArgs) (*mcpsdk.CallToolResult, any, error) {
	params := map[string]any{
		"query":       args.Query,
		"mode":        args.Mode,
		"max_results": args.MaxResults,
	}
	if args.Filters != nil {
		params["filters"] = args.Filters
	}
	out, err := g.reg.Call(ctx, registry.ActionSearch, params)
	if err != nil {
		return nil, nil, err
	}
	return textResult(out)
}

type parseCommandArgs struct {
	Text      string   `json:"text" jsonschema:"the natural-language bulk command"`
	Execute   bool     `json:"execute,omitempty" jsonschema:"run the parsed operation immediately when it is executable"`
	Confirmed bool     `json:"confirmed,omitempty" jsonschema:"acknowledge a confirmation demand when executing"`
	PhotoIDs  []string `json:"photo_ids,omitempty" jsonschema:"photos to operate on; defaults to the stored selection"`
}

func (g *Gateway) parseCommand(ctx context.Context, _ *mcpsdk.CallToolRequest, args parseCommandArgs) (*mcpsdk.CallToolResult, any, error) {
	out, err := g.reg.Call(ctx, registry.ActionParseCommand, map[string]any{
		"text":      args.Text,
		"execute":   args.Execute,
		"confirmed": args.Confirmed,
		"photo_ids": args.PhotoIDs,
	})
	if err != nil {
		return nil, nil, err
	}
	return textResult(out)
}

type bulkSelectArgs struct {
	PhotoIDs  []string `json:"photo_ids,omitempty" jsonschema:"photo IDs to select"`
	SelectAll bool     `json:"select_all,omitempty" jsonschema:"select every photo in the library"`
}

func (g *Gateway) bulkSelect(ctx context.Context, _ *mcpsdk.CallToolRequest, args bulkSelectArgs) (*mcpsdk.CallToolResult, any, error) {
	out, err := g.reg.Call(ctx, registry.ActionBulkSelect, map[string]any{
		"photo_ids":  args.PhotoIDs,
		"select_all": args.SelectAll,
	})
	if err != nil {
		return nil, nil, err
	}
	return textResult(out)
}

type executeBulkArgs struct {
	Operation  string         `json:"operation" jsonschema:"the bulk operation type"`
	Parameters map[string]any `json:"parameters,omitempty" jsonschema:"operation parameters such as tags, album, rating, format"`
	PhotoIDs   []string       `json:"photo_ids,omitempty" jsonschema:"photos to operate on; defaults to the stored selection"`
	Confirmed  bool           `json:"confirmed,omitempty" jsonschema:"acknowledge a previously returned confirmation demand"`
}

func (g *Gateway) executeBulk(ctx context.Context, _ *mcpsdk.CallToolRequest, args executeBulkArgs) (*mcpsdk.CallToolResult, any, error) {
	out, err := g.reg.Call(ctx, registry.ActionExecuteBulk, map[string]any{
		"operation":  args.Operation,
		"parameters": args.Parameters,
		"photo_ids":  args.PhotoIDs,
		"confirmed":  args.Confirmed,
	})
	if err != nil {
		return nil, nil, err
	}
	return textResult(out)
}

type rollbackArgs struct {
	Token string `json:"token" jsonschema:"the rollback token returned by execute_bulk_operation"`
}

func (g *Gateway) rollback(ctx context.Context, _ *mcpsdk.CallToolRequest, args rollbackArgs) (*mcpsdk.CallToolResult, any, error) {
	out, err := g.reg.Call(ctx, registry.ActionRollback, map[string]any{"token": args.Token})
	if err != nil {
		return nil, nil, err
	}
	return textResult(out)
}

// textResult encodes v as a JSON text content block.
func textResult(v any) (*mcpsdk.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("agentgw: encoding result: %w", err)
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, nil, nil
}
