package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lumapix/lumapix/internal/bulk"
	"github.com/lumapix/lumapix/internal/command"
	"github.com/lumapix/lumapix/internal/filterstate"
	"github.com/lumapix/lumapix/internal/observe"
	"github.com/lumapix/lumapix/internal/photo"
	"github.com/lumapix/lumapix/internal/photostore"
	"github.com/lumapix/lumapix/internal/query"
	"github.com/lumapix/lumapix/internal/search"
)

// defaultSelectionLimit caps how many photos one bulk selection may hold.
const defaultSelectionLimit = 1000

// defaultConfirmLimit is the selection size above which non-destructive
// bulk calls must be pre-confirmed by the caller.
const defaultConfirmLimit = 100

// PipelineOption is a functional option for configuring a [Pipeline].
type PipelineOption func(*Pipeline)

// WithEngineOptions forwards options to the search engine.
func WithEngineOptions(opts ...search.Option) PipelineOption {
	return func(p *Pipeline) { p.engineOpts = append(p.engineOpts, opts...) }
}

// WithQueryParser replaces the query parser.
func WithQueryParser(qp *query.Parser) PipelineOption {
	return func(p *Pipeline) { p.queries = qp }
}

// WithCommandOptions forwards options to the bulk-command parser.
func WithCommandOptions(opts ...command.Option) PipelineOption {
	return func(p *Pipeline) { p.cmdOpts = append(p.cmdOpts, opts...) }
}

// WithSelectionLimit sets the maximum bulk selection size. Default: 1000.
func WithSelectionLimit(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.selectionLimit = n
		}
	}
}

// WithConfirmLimit sets the selection size above which non-destructive
// operations need caller confirmation. Default: 100.
func WithConfirmLimit(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.confirmLimit = n
		}
	}
}

// WithConfirmLimits sets per-operation confirmation limits that override
// the global limit for the named operation types.
func WithConfirmLimits(limits map[command.Type]int) PipelineOption {
	return func(p *Pipeline) {
		p.confirmLimits = make(map[command.Type]int, len(limits))
		for op, n := range limits {
			if n > 0 {
				p.confirmLimits[op] = n
			}
		}
	}
}

// WithPermittedOperations restricts which operation types this pipeline
// will execute. Default: all valid types.
func WithPermittedOperations(ops ...command.Type) PipelineOption {
	return func(p *Pipeline) {
		p.permitted = map[command.Type]bool{}
		for _, op := range ops {
			p.permitted[op] = true
		}
	}
}

// WithExecutorOptions forwards options to the internal bulk executor.
func WithExecutorOptions(opts ...bulk.Option) PipelineOption {
	return func(p *Pipeline) { p.execOpts = append(p.execOpts, opts...) }
}

// WithProgressFunc sets a progress callback for bulk runs started through
// the pipeline.
func WithProgressFunc(fn bulk.ProgressFunc) PipelineOption {
	return func(p *Pipeline) { p.progress = fn }
}

// WithMetrics enables metric recording for pipeline calls.
func WithMetrics(m *observe.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// Pipeline wires the query parser, index, search engine, command parser,
// and bulk executor into the calls exposed to external automation. Safe for
// concurrent use; the bulk selection and the last-search command context
// are the only mutable state it holds.
type Pipeline struct {
	library        *photo.Library
	index          *search.Index
	engine         *search.Engine
	engineOpts     []search.Option
	queries        *query.Parser
	commands       *command.Parser
	cmdOpts        []command.Option
	executor       *bulk.Executor
	selectionLimit int
	confirmLimit   int
	confirmLimits  map[command.Type]int
	permitted      map[command.Type]bool
	execOpts       []bulk.Option
	progress       bulk.ProgressFunc
	metrics        *observe.Metrics

	tokens atomic.Uint64
	opSeq  atomic.Uint64

	mu         sync.Mutex
	selection  []photo.ID
	lastCmdCtx command.Context
}

// allOperations is the closed set of executable bulk operation types.
var allOperations = []command.Type{
	command.TypeDownload,
	command.TypeTag,
	command.TypeAlbumCreate,
	command.TypeExportMetadata,
	command.TypeAnalyze,
	command.TypeDelete,
	command.TypeRate,
	command.TypeShare,
}

// NewPipeline creates a [Pipeline] over library and store. The index is
// built from the library's current contents; call [Pipeline.RefreshIndex]
// after library mutations.
func NewPipeline(library *photo.Library, store photostore.Store, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		library:        library,
		index:          search.NewIndex(),
		selectionLimit: defaultSelectionLimit,
		confirmLimit:   defaultConfirmLimit,
	}
	for _, o := range opts {
		o(p)
	}
	p.engine = search.New(p.engineOpts...)
	if p.queries == nil {
		p.queries = query.New()
	}
	p.commands = command.New(append([]command.Option{command.WithEntityParser(p.queries)}, p.cmdOpts...)...)
	if p.permitted == nil {
		p.permitted = map[command.Type]bool{}
		for _, op := range allOperations {
			p.permitted[op] = true
		}
	}
	// The pipeline gates confirmation at the call boundary, so the
	// executor itself runs pre-confirmed operations unconditionally.
	execOpts := append([]bulk.Option{
		bulk.WithConfirmFunc(func(bulk.ConfirmRequest) bool { return true }),
	}, p.execOpts...)
	p.executor = bulk.New(store, library, execOpts...)
	p.index.Rebuild(library.List())
	return p
}

// RefreshIndex rebuilds the search index from the library.
func (p *Pipeline) RefreshIndex() {
	p.index.Rebuild(p.library.List())
}

// Commands returns the command parser sharing this pipeline's entity
// extraction.
func (p *Pipeline) Commands() *command.Parser { return p.commands }

// QueryParsed summarizes how the query text was understood.
type QueryParsed struct {
	// Intent is the classified purpose of the query.
	Intent query.IntentType `json:"intent"`

	// Entities are the typed values extracted from the text.
	Entities []query.Entity `json:"entities"`

	// Confidence is the intent classification confidence.
	Confidence float64 `json:"confidence"`
}

// SearchRequest is the input to [Pipeline.Search]. Query text, explicit
// filters, or both may be supplied.
type SearchRequest struct {
	// Query is natural-language query text. May be empty when Filters is
	// set.
	Query string `json:"query"`

	// Filters are explicit filter values combined with the parsed query.
	Filters *filterstate.FilterState `json:"filters,omitempty"`

	// Mode overrides the combination mode. Empty keeps the default: OR
	// for parsed query text, AND for explicit filters.
	Mode search.CombineMode `json:"mode,omitempty"`

	// MaxResults overrides the engine's result cap when positive.
	MaxResults int `json:"max_results,omitempty"`
}

// SearchResponse is the output of [Pipeline.Search].
type SearchResponse struct {
	// RequestToken increases monotonically per search call. Callers that
	// issue overlapping searches keep only the response with the highest
	// token.
	RequestToken uint64 `json:"request_token"`

	// Results are the ranked matches.
	Results []search.RankedPhoto `json:"results"`

	// TotalCount is the number of matches before the result cap.
	TotalCount int `json:"total_count"`

	// QueryParsed reports how the query text was understood. Zero when
	// the request had no query text.
	QueryParsed QueryParsed `json:"query_parsed"`

	// ExecutionTime is the wall-clock search duration.
	ExecutionTime time.Duration `json:"execution_time"`
}

// Search parses the query text, merges in any explicit filters, and runs
// the search engine against the current index snapshot.
//
// A request with neither query text nor filters fails with
// [ErrInvalidQuery]. An exceeded time budget surfaces as
// [ErrSearchTimeout], a match-free search as [ErrNoResults].
func (p *Pipeline) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.search")
	defer span.End()
	token := p.tokens.Add(1)

	text := strings.TrimSpace(req.Query)
	hasFilters := req.Filters != nil && !req.Filters.IsEmpty()
	if text == "" && !hasFilters {
		return nil, fmt.Errorf("%w: no query text and no filters", ErrInvalidQuery)
	}

	var parsed QueryParsed
	var crit search.Criteria
	if text != "" {
		q := p.queries.Parse(text)
		parsed = QueryParsed{Intent: q.Intent, Entities: q.Entities, Confidence: q.Confidence}
		crit = search.CriteriaFromQuery(q)
		if p.metrics != nil {
			p.metrics.RecordQueryParse(ctx, string(q.Intent), q.NeedsClarification)
		}
	}
	if hasFilters {
		mode := req.Mode
		if mode == "" {
			mode = search.ModeAND
		}
		crit = mergeCriteria(crit, req.Filters.Criteria(mode))
	}
	if req.Mode != "" {
		crit.Mode = req.Mode
	}
	if crit.Mode == "" {
		crit.Mode = search.ModeOR
	}
	crit.Query = text

	engine := p.engine
	if req.MaxResults > 0 {
		engine = search.New(append(append([]search.Option(nil), p.engineOpts...), search.WithMaxResults(req.MaxResults))...)
	}

	res, err := engine.Search(ctx, crit, p.index.Snapshot())
	if err != nil {
		var te *search.TimeoutError
		if errors.As(err, &te) {
			return nil, fmt.Errorf("%w: %w", ErrSearchTimeout, err)
		}
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.RecordSearch(ctx, string(crit.Mode), res.SearchTime, res.TotalCount)
	}
	if res.TotalCount == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoResults, text)
	}

	// Remember what was searched so a follow-up command parse can suggest
	// parameters from it.
	cmdCtx := command.Context{}
	if len(crit.Spatial) > 0 {
		cmdCtx.LastLocation = crit.Spatial[0]
	}
	if len(crit.Semantic) > 0 {
		cmdCtx.LastKeywords = append([]string(nil), crit.Semantic...)
	}
	p.mu.Lock()
	p.lastCmdCtx = cmdCtx
	p.mu.Unlock()

	observe.Logger(ctx).Debug("search served",
		"token", token,
		"query", text,
		"results", len(res.Photos),
		"total", res.TotalCount)
	return &SearchResponse{
		RequestToken:  token,
		Results:       res.Photos,
		TotalCount:    res.TotalCount,
		QueryParsed:   parsed,
		ExecutionTime: res.SearchTime,
	}, nil
}

// mergeCriteria combines parsed-query criteria with explicit filter
// criteria. Filter values extend the query's term lists; an explicit date
// range overrides a parsed one.
func mergeCriteria(a, b search.Criteria) search.Criteria {
	a.Semantic = append(a.Semantic, b.Semantic...)
	a.Spatial = append(a.Spatial, b.Spatial...)
	a.People = append(a.People, b.People...)
	a.Technical = append(a.Technical, b.Technical...)
	if b.Temporal != nil {
		a.Temporal = b.Temporal
	}
	a.Mode = b.Mode
	return a
}

// ParseCommandRequest is the input to [Pipeline.ParseCommand].
type ParseCommandRequest struct {
	// Text is the natural-language bulk-command sentence.
	Text string `json:"text"`

	// Execute runs the parsed operation immediately when the parse is
	// executable. Left false, the call only parses.
	Execute bool `json:"execute,omitempty"`

	// Confirmed is forwarded to the execution when Execute is set.
	Confirmed bool `json:"confirmed,omitempty"`

	// PhotoIDs overrides the stored selection for the execution.
	PhotoIDs []photo.ID `json:"photo_ids,omitempty"`
}

// ParseCommandResponse is the output of [Pipeline.ParseCommand].
type ParseCommandResponse struct {
	// Operation is the classified operation type, or "unknown".
	Operation command.Type `json:"operation"`

	// Parameters are the extracted operation parameters. Empty for a
	// low-confidence parse.
	Parameters map[string]any `json:"parameters,omitempty"`

	// Confidence is the parse confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Executable reports whether the descriptor may run without further
	// disambiguation.
	Executable bool `json:"executable"`

	// Suggestions lists the nearest known command phrasings for a parse
	// below the executable threshold.
	Suggestions []string `json:"suggestions,omitempty"`

	// SuggestedParameters carries parameter candidates derived from the
	// most recent search. Suggestions only, never auto-applied.
	SuggestedParameters map[string]any `json:"suggested_parameters,omitempty"`

	// Execution is the bulk run outcome when the request asked for
	// execution and the parse was executable.
	Execution *ExecuteResponse `json:"execution,omitempty"`
}

// ParseCommand maps a bulk-command sentence onto an operation descriptor
// and, when the request asks for it, feeds the descriptor straight into
// the bulk executor. A parse below the executable threshold is returned
// with suggestions and is never executed, regardless of the Execute flag.
func (p *Pipeline) ParseCommand(ctx context.Context, req ParseCommandRequest) (*ParseCommandResponse, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.parse_command")
	defer span.End()

	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: empty command text", ErrInvalidQuery)
	}

	p.mu.Lock()
	cmdCtx := p.lastCmdCtx
	p.mu.Unlock()

	op := p.commands.ParseCommand(req.Text, &cmdCtx)
	executable := op.Executable(p.commands.Threshold())
	if p.metrics != nil {
		p.metrics.RecordCommandParse(ctx, string(op.Type), executable)
	}

	resp := &ParseCommandResponse{
		Operation:           op.Type,
		Parameters:          op.Parameters,
		Confidence:          op.Confidence,
		Executable:          executable,
		Suggestions:         op.Suggestions,
		SuggestedParameters: op.SuggestedParameters,
	}
	if !req.Execute || !executable {
		return resp, nil
	}

	exec, err := p.ExecuteBulkOperation(ctx, ExecuteRequest{
		Operation:  string(op.Type),
		Parameters: op.Parameters,
		PhotoIDs:   req.PhotoIDs,
		Confirmed:  req.Confirmed,
	})
	resp.Execution = exec
	return resp, err
}

// BulkSelectRequest is the input to [Pipeline.BulkSelect].
type BulkSelectRequest struct {
	// PhotoIDs is the explicit selection. Ignored when SelectAll is set.
	PhotoIDs []photo.ID `json:"photo_ids,omitempty"`

	// SelectAll selects every photo in the library.
	SelectAll bool `json:"select_all,omitempty"`
}

// BulkSelectResponse is the output of [Pipeline.BulkSelect].
type BulkSelectResponse struct {
	// SelectedCount is the size of the stored selection.
	SelectedCount int `json:"selected_count"`

	// SelectedPhotos holds the selected photos in selection order.
	SelectedPhotos []photo.Photo `json:"selected_photos"`

	// AvailableOperations lists the operation types this pipeline will
	// execute.
	AvailableOperations []command.Type `json:"available_operations"`
}

// BulkSelect validates and stores the bulk selection used by subsequent
// [Pipeline.ExecuteBulkOperation] calls. Unknown photo IDs fail with
// [ErrInvalidPhotoID]; oversized selections with
// [ErrSelectionLimitExceeded].
func (p *Pipeline) BulkSelect(req BulkSelectRequest) (*BulkSelectResponse, error) {
	var ids []photo.ID
	var photos []photo.Photo
	if req.SelectAll {
		for _, ph := range p.library.List() {
			ids = append(ids, ph.ID)
			photos = append(photos, ph)
		}
	} else {
		seen := make(map[photo.ID]struct{}, len(req.PhotoIDs))
		for _, id := range req.PhotoIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ph, err := p.library.Get(id)
			if err != nil {
				return nil, fmt.Errorf("%w: %s", ErrInvalidPhotoID, id)
			}
			ids = append(ids, id)
			photos = append(photos, ph)
		}
	}
	if len(ids) > p.selectionLimit {
		return nil, fmt.Errorf("%w: %d photos, limit %d", ErrSelectionLimitExceeded, len(ids), p.selectionLimit)
	}

	p.mu.Lock()
	prev := len(p.selection)
	p.selection = ids
	p.mu.Unlock()
	if p.metrics != nil {
		p.metrics.RecordSelectionSize(context.Background(), prev, len(ids))
	}

	ops := make([]command.Type, 0, len(p.permitted))
	for _, op := range allOperations {
		if p.permitted[op] {
			ops = append(ops, op)
		}
	}
	return &BulkSelectResponse{
		SelectedCount:       len(ids),
		SelectedPhotos:      photos,
		AvailableOperations: ops,
	}, nil
}

// Selection returns the currently stored bulk selection.
func (p *Pipeline) Selection() []photo.ID {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]photo.ID, len(p.selection))
	copy(out, p.selection)
	return out
}

// ExecuteRequest is the input to [Pipeline.ExecuteBulkOperation].
type ExecuteRequest struct {
	// Operation is the operation type name, e.g. "tag" or "delete".
	Operation string `json:"operation"`

	// Parameters are the operation parameters, e.g. {"tags": [...]}.
	Parameters map[string]any `json:"parameters,omitempty"`

	// PhotoIDs overrides the stored selection when non-empty.
	PhotoIDs []photo.ID `json:"photo_ids,omitempty"`

	// Confirmed acknowledges a previously returned confirmation demand.
	// Destructive operations and oversized selections are rejected with
	// RequiresConfirmation until the caller retries with Confirmed set.
	Confirmed bool `json:"confirmed,omitempty"`
}

// ExecuteResponse is the output of [Pipeline.ExecuteBulkOperation].
type ExecuteResponse struct {
	// OperationID identifies this run.
	OperationID string `json:"operation_id"`

	// Success is true when every photo succeeded.
	Success bool `json:"success"`

	// Status is the run's terminal state, or "confirming" when the call
	// needs to be retried with Confirmed set.
	Status bulk.Status `json:"status"`

	// ProcessedCount is the number of photos that succeeded.
	ProcessedCount int `json:"processed_count"`

	// FailedCount is the number of photos that failed.
	FailedCount int `json:"failed_count"`

	// Errors holds one message per failed photo.
	Errors []string `json:"errors,omitempty"`

	// RequiresConfirmation is set when the run was gated and not yet
	// confirmed. No side effects have happened.
	RequiresConfirmation bool `json:"requires_confirmation,omitempty"`

	// RollbackToken, when set, can undo the run via
	// [Pipeline.RollbackOperation].
	RollbackToken string `json:"rollback_token,omitempty"`
}

// ExecuteBulkOperation runs a bulk operation over the request's photos, or
// over the stored selection when the request names none.
//
// Unsupported operation names fail with [ErrOperationNotSupported] and
// operations outside the permitted set with [ErrInsufficientPermissions],
// both before any execution. Gated runs that are not yet confirmed return a
// response with RequiresConfirmation set and no side effects. A run with
// zero successes fails with [ErrBulkOperationFailed].
func (p *Pipeline) ExecuteBulkOperation(ctx context.Context, req ExecuteRequest) (*ExecuteResponse, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.execute_bulk_operation")
	defer span.End()

	opType := command.Type(req.Operation)
	if opType == command.TypeUnknown || !opType.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrOperationNotSupported, req.Operation)
	}
	if !p.permitted[opType] {
		return nil, fmt.Errorf("%w: %s", ErrInsufficientPermissions, opType)
	}

	ids := req.PhotoIDs
	if len(ids) == 0 {
		ids = p.Selection()
	}
	if len(ids) > p.selectionLimit {
		return nil, fmt.Errorf("%w: %d photos, limit %d", ErrSelectionLimitExceeded, len(ids), p.selectionLimit)
	}

	opID := fmt.Sprintf("op-%d", p.opSeq.Add(1))

	limit := p.confirmLimit
	if n, ok := p.confirmLimits[opType]; ok {
		limit = n
	}
	if !req.Confirmed && (opType.Destructive() || len(ids) > limit) {
		observe.Logger(ctx).Info("bulk call needs confirmation",
			"operation_id", opID,
			"operation", opType,
			"photos", len(ids))
		return &ExecuteResponse{
			OperationID:          opID,
			Status:               bulk.StatusConfirming,
			RequiresConfirmation: true,
		}, nil
	}

	op := command.Operation{Type: opType, Parameters: req.Parameters, Confidence: 1}
	if op.Parameters == nil {
		op.Parameters = map[string]any{}
	}
	res, err := p.executor.Execute(ctx, op, ids, p.progress)
	if err != nil {
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.RecordBulkRun(ctx, string(opType), string(res.Status), res.Completed, res.Failed)
	}

	resp := &ExecuteResponse{
		OperationID:    opID,
		Success:        res.Status == bulk.StatusCompleted,
		Status:         res.Status,
		ProcessedCount: res.Completed,
		FailedCount:    res.Failed,
		RollbackToken:  res.RollbackToken,
	}
	for _, pe := range res.Errors {
		resp.Errors = append(resp.Errors, pe.Error())
	}
	if res.Status == bulk.StatusFailed {
		return resp, fmt.Errorf("%w: %d of %d photos failed", ErrBulkOperationFailed, res.Failed, res.Total)
	}
	return resp, nil
}

// RollbackOperation undoes a completed run via its rollback token.
func (p *Pipeline) RollbackOperation(ctx context.Context, token string) (*ExecuteResponse, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.rollback_operation")
	defer span.End()

	res, err := p.executor.Rollback(ctx, token)
	if err != nil {
		return nil, err
	}
	resp := &ExecuteResponse{
		OperationID:    fmt.Sprintf("op-%d", p.opSeq.Add(1)),
		Success:        res.Status == bulk.StatusRolledBack,
		Status:         res.Status,
		ProcessedCount: res.Completed,
		FailedCount:    res.Failed,
	}
	for _, pe := range res.Errors {
		resp.Errors = append(resp.Errors, pe.Error())
	}
	return resp, nil
}
