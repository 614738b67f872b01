package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lumapix/lumapix/internal/filterstate"
	"github.com/lumapix/lumapix/internal/photo"
	"github.com/lumapix/lumapix/internal/search"
)

// Action names installed by [Pipeline.Install].
const (
	// ActionSearch runs a natural-language photo search.
	ActionSearch = "search"

	// ActionParseCommand parses a natural-language bulk command and can
	// execute it in the same call.
	ActionParseCommand = "parse_command"

	// ActionBulkSelect stores and validates a bulk selection.
	ActionBulkSelect = "bulk_select"

	// ActionExecuteBulk runs a bulk operation over the selection.
	ActionExecuteBulk = "execute_bulk_operation"

	// ActionRollback undoes a completed bulk operation.
	ActionRollback = "rollback_operation"
)

// Install registers the pipeline's calls as actions. The handlers decode
// loosely typed parameter maps, so they can be driven by any transport that
// deals in JSON-shaped values.
func (p *Pipeline) Install(r *Registry) error {
	return errors.Join(
		r.Register(Action{
			Name:        ActionSearch,
			Description: "Search photos with a natural-language query.",
			Handler:     p.handleSearch,
		}),
		r.Register(Action{
			Name:        ActionParseCommand,
			Description: "Parse a natural-language bulk command, optionally executing it.",
			Handler:     p.handleParseCommand,
		}),
		r.Register(Action{
			Name:        ActionBulkSelect,
			Description: "Select photos for a subsequent bulk operation.",
			Handler:     p.handleBulkSelect,
		}),
		r.Register(Action{
			Name:        ActionExecuteBulk,
			Description: "Execute a bulk operation over the current selection.",
			Handler:     p.handleExecuteBulk,
		}),
		r.Register(Action{
			Name:        ActionRollback,
			Description: "Undo a completed bulk operation by rollback token.",
			Handler:     p.handleRollback,
		}),
	)
}

func (p *Pipeline) handleSearch(ctx context.Context, params map[string]any) (any, error) {
	req := SearchRequest{}
	if q, ok := params["query"].(string); ok {
		req.Query = q
	}
	if f, ok := params["filters"]; ok && f != nil {
		filters, err := filtersParam(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
		req.Filters = filters
	}
	if m, ok := params["mode"].(string); ok {
		req.Mode = search.CombineMode(m)
		if m != "" && !req.Mode.IsValid() {
			return nil, fmt.Errorf("%w: unknown combination mode %q", ErrInvalidQuery, m)
		}
	}
	if n, ok := intParam(params, "max_results"); ok {
		req.MaxResults = n
	}
	return p.Search(ctx, req)
}

func (p *Pipeline) handleParseCommand(ctx context.Context, params map[string]any) (any, error) {
	req := ParseCommandRequest{}
	if s, ok := params["text"].(string); ok {
		req.Text = s
	}
	if b, ok := params["execute"].(bool); ok {
		req.Execute = b
	}
	if b, ok := params["confirmed"].(bool); ok {
		req.Confirmed = b
	}
	req.PhotoIDs = idsParam(params, "photo_ids")
	return p.ParseCommand(ctx, req)
}

func (p *Pipeline) handleBulkSelect(_ context.Context, params map[string]any) (any, error) {
	req := BulkSelectRequest{}
	if all, ok := params["select_all"].(bool); ok {
		req.SelectAll = all
	}
	req.PhotoIDs = idsParam(params, "photo_ids")
	return p.BulkSelect(req)
}

func (p *Pipeline) handleExecuteBulk(ctx context.Context, params map[string]any) (any, error) {
	req := ExecuteRequest{}
	if op, ok := params["operation"].(string); ok {
		req.Operation = op
	}
	if args, ok := params["parameters"].(map[string]any); ok {
		req.Parameters = normalizeParameters(args)
	}
	if confirmed, ok := params["confirmed"].(bool); ok {
		req.Confirmed = confirmed
	}
	req.PhotoIDs = idsParam(params, "photo_ids")
	return p.ExecuteBulkOperation(ctx, req)
}

func (p *Pipeline) handleRollback(ctx context.Context, params map[string]any) (any, error) {
	token, ok := params["token"].(string)
	if !ok || token == "" {
		return nil, fmt.Errorf("registry: rollback requires a token parameter")
	}
	return p.RollbackOperation(ctx, token)
}

// filtersParam reads a structured filter state that may arrive typed or as
// a JSON-decoded map.
func filtersParam(v any) (*filterstate.FilterState, error) {
	switch f := v.(type) {
	case *filterstate.FilterState:
		return f, nil
	case filterstate.FilterState:
		return &f, nil
	case map[string]any:
		raw, err := json.Marshal(f)
		if err != nil {
			return nil, fmt.Errorf("encoding filters: %w", err)
		}
		var fs filterstate.FilterState
		if err := json.Unmarshal(raw, &fs); err != nil {
			return nil, fmt.Errorf("decoding filters: %w", err)
		}
		return &fs, nil
	}
	return nil, fmt.Errorf("filters must be an object, got %T", v)
}

// intParam reads a numeric parameter that may arrive as int or, after JSON
// decoding, float64.
func intParam(params map[string]any, key string) (int, bool) {
	switch v := params[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

// idsParam reads a photo-ID list that may arrive as []photo.ID, []string,
// or a JSON-decoded []any.
func idsParam(params map[string]any, key string) []photo.ID {
	switch v := params[key].(type) {
	case []photo.ID:
		return v
	case []string:
		ids := make([]photo.ID, len(v))
		for i, s := range v {
			ids[i] = photo.ID(s)
		}
		return ids
	case []any:
		var ids []photo.ID
		for _, e := range v {
			if s, ok := e.(string); ok {
				ids = append(ids, photo.ID(s))
			}
		}
		return ids
	}
	return nil
}

// normalizeParameters converts JSON-decoded parameter values into the
// shapes the executor expects: string lists become []string and float64
// integers become int.
func normalizeParameters(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch t := v.(type) {
		case []any:
			strs := make([]string, 0, len(t))
			for _, e := range t {
				if s, ok := e.(string); ok {
					strs = append(strs, s)
				}
			}
			if len(strs) == len(t) {
				out[k] = strs
				continue
			}
			out[k] = v
		case float64:
			if t == float64(int(t)) {
				out[k] = int(t)
				continue
			}
			out[k] = v
		default:
			out[k] = v
		}
	}
	return out
}
