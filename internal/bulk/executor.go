package bulk

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lumapix/lumapix/internal/command"
	"github.com/lumapix/lumapix/internal/photo"
	"github.com/lumapix/lumapix/internal/photostore"
)

// defaultBatchSize is the number of photos applied per batch.
const defaultBatchSize = 50

// defaultConfirmLimit is the selection size above which even non-destructive
// operations require confirmation.
const defaultConfirmLimit = 100

// Option is a functional option for configuring an [Executor].
type Option func(*Executor)

// WithBatchSize sets the batch size. Default: 50.
func WithBatchSize(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithMaxRetries sets how many times a transiently failing photo is retried
// within its batch. Default: 0 (no retries).
func WithMaxRetries(n int) Option {
	return func(e *Executor) {
		if n >= 0 {
			e.maxRetries = n
		}
	}
}

// WithConfirmFunc sets the confirmation callback for gated runs. Without
// one, every gated run is cancelled.
func WithConfirmFunc(fn ConfirmFunc) Option {
	return func(e *Executor) { e.confirm = fn }
}

// WithConfirmLimit sets the selection size above which non-destructive
// operations are gated behind confirmation. Default: 100.
func WithConfirmLimit(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.confirmLimit = n
		}
	}
}

// WithConfirmLimits sets per-operation confirmation limits. An operation
// type present in limits with a positive value uses that limit instead of
// the global one.
func WithConfirmLimits(limits map[command.Type]int) Option {
	return func(e *Executor) {
		e.confirmLimits = make(map[command.Type]int, len(limits))
		for op, n := range limits {
			if n > 0 {
				e.confirmLimits[op] = n
			}
		}
	}
}

// Executor runs bulk operations against a [photostore.Store], validating
// selections against a [photo.Library]. Safe for concurrent use.
type Executor struct {
	store         photostore.Store
	library       *photo.Library
	batchSize     int
	maxRetries    int
	confirmLimit  int
	confirmLimits map[command.Type]int
	confirm       ConfirmFunc

	mu     sync.Mutex
	tokens map[string]*rollbackRecord
}

// New creates an [Executor] backed by store and library.
func New(store photostore.Store, library *photo.Library, opts ...Option) *Executor {
	e := &Executor{
		store:        store,
		library:      library,
		batchSize:    defaultBatchSize,
		confirmLimit: defaultConfirmLimit,
		tokens:       map[string]*rollbackRecord{},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// confirmLimitFor returns the confirmation limit applying to op: its
// per-operation limit when configured, the global limit otherwise.
func (e *Executor) confirmLimitFor(op command.Type) int {
	if n, ok := e.confirmLimits[op]; ok {
		return n
	}
	return e.confirmLimit
}

// plan holds the parameters an operation needs, extracted and validated
// before any photo is touched.
type plan struct {
	format      string
	album       string
	destination string
	tags        []string
	rating      int
}

// planFor validates op's parameters for execution.
func planFor(op command.Operation) (plan, error) {
	var p plan
	switch op.Type {
	case command.TypeDownload:
		p.format = "zip"
		if f, ok := op.Parameters["format"].(string); ok && f != "" {
			p.format = f
		}
	case command.TypeExportMetadata:
		p.format = "json"
		if f, ok := op.Parameters["format"].(string); ok && f != "" {
			p.format = f
		}
	case command.TypeTag:
		tags, ok := op.Parameters["tags"].([]string)
		if !ok || len(tags) == 0 {
			return p, fmt.Errorf("bulk: %s operation requires a tags parameter", op.Type)
		}
		p.tags = tags
	case command.TypeAlbumCreate:
		album, ok := op.Parameters["album"].(string)
		if !ok || album == "" {
			return p, fmt.Errorf("bulk: %s operation requires an album parameter", op.Type)
		}
		p.album = album
	case command.TypeRate:
		rating, ok := op.Parameters["rating"].(int)
		if !ok {
			return p, fmt.Errorf("bulk: %s operation requires a rating parameter", op.Type)
		}
		p.rating = rating
	case command.TypeShare:
		dest, ok := op.Parameters["destination"].(string)
		if !ok || dest == "" {
			return p, fmt.Errorf("bulk: %s operation requires a destination parameter", op.Type)
		}
		p.destination = dest
	case command.TypeDelete, command.TypeAnalyze:
		// No parameters.
	default:
		return p, fmt.Errorf("bulk: cannot execute %q operation", op.Type)
	}
	return p, nil
}

// Execute runs op over selection. The selection is deduplicated first;
// photos missing from the library are recorded as failures without aborting
// the run. Destructive operations and selections larger than the confirm
// limit are gated behind the confirmation callback; a declined run ends in
// [StatusCancelled] with no side effects.
//
// progress, if non-nil, is called once per completed batch. Cancellation of
// ctx is honored between batches, never inside one: the batch in flight
// finishes, the run ends in [StatusCancelled], and the result reports what
// was done.
func (e *Executor) Execute(ctx context.Context, op command.Operation, selection []photo.ID, progress ProgressFunc) (*Result, error) {
	start := time.Now()

	p, err := planFor(op)
	if err != nil {
		return nil, err
	}
	ids := dedupe(selection)
	if len(ids) == 0 {
		return nil, ErrEmptySelection
	}

	res := &Result{Status: StatusPending, Operation: op.Type, Total: len(ids)}

	// Stale IDs fail the individual photo, not the run.
	valid := make([]photo.ID, 0, len(ids))
	for _, id := range ids {
		if !e.library.Exists(id) {
			res.Failed++
			res.Errors = append(res.Errors, PhotoError{Photo: id, Err: photo.ErrNotFound})
			continue
		}
		valid = append(valid, id)
	}

	if op.Type.Destructive() || len(ids) > e.confirmLimitFor(op.Type) {
		res.Status = StatusConfirming
		req := ConfirmRequest{
			Operation:   op.Type,
			PhotoCount:  len(ids),
			Destructive: op.Type.Destructive(),
		}
		if e.confirm == nil || !e.confirm(req) {
			res.Status = StatusCancelled
			res.Duration = time.Since(start)
			slog.Info("bulk run declined at confirmation",
				"operation", op.Type,
				"photos", len(ids))
			return res, nil
		}
	}

	if op.Type == command.TypeAlbumCreate {
		if err := e.store.CreateAlbum(ctx, p.album); err != nil {
			res.Status = StatusFailed
			res.Duration = time.Since(start)
			return res, fmt.Errorf("bulk: create album %q: %w", p.album, err)
		}
	}

	res.Status = StatusExecuting
	rec := &rollbackRecord{op: op.Type, album: p.album}
	batches := 0
	if len(valid) > 0 {
		batches = (len(valid) + e.batchSize - 1) / e.batchSize
	}

	for b := 0; b < batches; b++ {
		if ctx.Err() != nil {
			res.Status = StatusCancelled
			res.Duration = time.Since(start)
			slog.Warn("bulk run cancelled",
				"operation", op.Type,
				"completed", res.Completed,
				"failed", res.Failed)
			return res, nil
		}

		batch := valid[b*e.batchSize : min((b+1)*e.batchSize, len(valid))]
		e.runBatch(ctx, op.Type, p, batch, res, rec)

		if progress != nil {
			progress(Progress{
				Batch:     b + 1,
				Batches:   batches,
				Completed: res.Completed,
				Failed:    res.Failed,
				Total:     res.Total,
			})
		}
	}

	switch {
	case res.Failed == 0:
		res.Status = StatusCompleted
	case res.Completed == 0:
		res.Status = StatusFailed
	default:
		res.Status = StatusPartialFailure
	}
	if res.Completed > 0 {
		res.RollbackToken = e.storeToken(rec)
	}
	res.Duration = time.Since(start)

	slog.Info("bulk run finished",
		"operation", op.Type,
		"status", res.Status,
		"completed", res.Completed,
		"failed", res.Failed,
		"duration", res.Duration)
	return res, nil
}

// runBatch applies one batch, updating res and rec in place.
func (e *Executor) runBatch(ctx context.Context, t command.Type, p plan, batch []photo.ID, res *Result, rec *rollbackRecord) {
	if t == command.TypeDownload {
		// Download packages the whole batch in one backend call.
		err := e.withRetry(func() error { return e.store.Download(ctx, batch, p.format) })
		if err != nil {
			res.Failed += len(batch)
			for _, id := range batch {
				res.Errors = append(res.Errors, PhotoError{Photo: id, Err: err})
			}
			return
		}
		res.Completed += len(batch)
		return
	}

	for _, id := range batch {
		entry, err := e.applyPhoto(ctx, t, p, id)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, PhotoError{Photo: id, Err: err})
			continue
		}
		res.Completed++
		rec.entries = append(rec.entries, entry)
	}
}

// applyPhoto applies the operation to a single photo, retrying transient
// failures, and returns the inversion data for reversible operations.
func (e *Executor) applyPhoto(ctx context.Context, t command.Type, p plan, id photo.ID) (rollbackEntry, error) {
	entry := rollbackEntry{photo: id}
	err := e.withRetry(func() error {
		switch t {
		case command.TypeDelete:
			return e.store.Delete(ctx, id)
		case command.TypeTag:
			prev, err := e.store.AddTags(ctx, id, p.tags)
			if err == nil {
				entry.prevTags = prev
			}
			return err
		case command.TypeAlbumCreate:
			return e.store.AddToAlbum(ctx, p.album, id)
		case command.TypeExportMetadata:
			return e.store.ExportMetadata(ctx, id, p.format)
		case command.TypeAnalyze:
			return e.store.Analyze(ctx, id)
		case command.TypeRate:
			prev, err := e.store.SetRating(ctx, id, p.rating)
			if err == nil {
				entry.prevRating = prev
			}
			return err
		case command.TypeShare:
			return e.store.Share(ctx, id, p.destination)
		default:
			return fmt.Errorf("bulk: unsupported operation %q", t)
		}
	})
	return entry, err
}

// withRetry runs fn, retrying up to maxRetries times while the failure is
// transient.
func (e *Executor) withRetry(fn func() error) error {
	err := fn()
	for attempt := 0; attempt < e.maxRetries && photostore.IsTransient(err); attempt++ {
		err = fn()
	}
	return err
}

// Rollback undoes a previous run identified by its token. Only reversible
// operations (tag, rate, album_create) can be rolled back; others return
// [ErrNotReversible] without consuming the token. A successful rollback
// consumes the token.
func (e *Executor) Rollback(ctx context.Context, token string) (*Result, error) {
	e.mu.Lock()
	rec, ok := e.tokens[token]
	if ok && !rec.op.Reversible() {
		e.mu.Unlock()
		return nil, ErrNotReversible
	}
	delete(e.tokens, token)
	e.mu.Unlock()
	if !ok {
		return nil, ErrUnknownToken
	}

	start := time.Now()
	res := &Result{Status: StatusExecuting, Operation: rec.op, Total: len(rec.entries)}
	for _, entry := range rec.entries {
		var err error
		switch rec.op {
		case command.TypeTag:
			err = e.store.SetTags(ctx, entry.photo, entry.prevTags)
		case command.TypeRate:
			_, err = e.store.SetRating(ctx, entry.photo, entry.prevRating)
		case command.TypeAlbumCreate:
			err = e.store.RemoveFromAlbum(ctx, rec.album, entry.photo)
		}
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, PhotoError{Photo: entry.photo, Err: err})
			continue
		}
		res.Completed++
	}

	if res.Failed == 0 {
		res.Status = StatusRolledBack
	} else if res.Completed == 0 {
		res.Status = StatusFailed
	} else {
		res.Status = StatusPartialFailure
	}
	res.Duration = time.Since(start)

	slog.Info("bulk rollback finished",
		"operation", rec.op,
		"status", res.Status,
		"completed", res.Completed,
		"failed", res.Failed)
	return res, nil
}

// storeToken registers undo data and returns its opaque token.
func (e *Executor) storeToken(rec *rollbackRecord) string {
	token := newToken()
	e.mu.Lock()
	e.tokens[token] = rec
	e.mu.Unlock()
	return token
}

// dedupe removes duplicate IDs while preserving first-seen order.
func dedupe(ids []photo.ID) []photo.ID {
	seen := make(map[photo.ID]struct{}, len(ids))
	out := make([]photo.ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// newToken returns a random 128-bit hex token.
func newToken() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(fmt.Sprintf("bulk: reading random bytes: %v", err))
	}
	return hex.EncodeToString(buf[:])
}
