// Package bulk executes photo operations over a selection in batches.
//
// [Executor.Execute] takes an operation descriptor from the command parser
// and a photo selection, gates destructive or oversized runs behind a
// confirmation callback, applies the operation batch by batch with progress
// reporting, and collects per-photo failures instead of aborting the run.
// Reversible operations yield a [RollbackToken] that [Executor.Rollback]
// can use to restore the previous state.
package bulk

import (
	"errors"
	"fmt"
	"time"

	"github.com/lumapix/lumapix/internal/command"
	"github.com/lumapix/lumapix/internal/photo"
)

// ErrEmptySelection is returned when Execute is called with no photos.
var ErrEmptySelection = errors.New("bulk: empty selection")

// ErrNotReversible is returned by Rollback for operations that cannot be
// undone, such as delete and share.
var ErrNotReversible = errors.New("bulk: operation is not reversible")

// ErrUnknownToken is returned by Rollback for a token the executor did not
// issue or has already consumed.
var ErrUnknownToken = errors.New("bulk: unknown rollback token")

// Status is the lifecycle state of a bulk run.
type Status string

const (
	// StatusPending is the initial state before validation.
	StatusPending Status = "pending"

	// StatusConfirming means the run is waiting on the confirmation
	// callback.
	StatusConfirming Status = "confirming"

	// StatusExecuting means batches are being applied.
	StatusExecuting Status = "executing"

	// StatusCompleted means every photo succeeded.
	StatusCompleted Status = "completed"

	// StatusPartialFailure means some photos succeeded and some failed.
	StatusPartialFailure Status = "partial_failure"

	// StatusFailed means no photo succeeded.
	StatusFailed Status = "failed"

	// StatusCancelled means the run was declined at confirmation or the
	// context was cancelled between batches.
	StatusCancelled Status = "cancelled"

	// StatusRolledBack means a completed run was undone via its token.
	StatusRolledBack Status = "rolled_back"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusPartialFailure, StatusFailed, StatusCancelled, StatusRolledBack:
		return true
	}
	return false
}

// PhotoError records a single photo's failure within a run.
type PhotoError struct {
	// Photo is the photo that failed.
	Photo photo.ID

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e PhotoError) Error() string {
	return fmt.Sprintf("bulk: photo %s: %v", e.Photo, e.Err)
}

// Unwrap returns the underlying cause.
func (e PhotoError) Unwrap() error { return e.Err }

// Progress is reported once per completed batch.
type Progress struct {
	// Batch is the 1-based index of the batch that just finished.
	Batch int

	// Batches is the total number of batches in the run.
	Batches int

	// Completed is the number of photos processed successfully so far.
	Completed int

	// Failed is the number of photos that have failed so far.
	Failed int

	// Total is the size of the deduplicated selection.
	Total int
}

// ProgressFunc receives batch progress during Execute. It is called from
// the executing goroutine, so it must not block for long.
type ProgressFunc func(Progress)

// ConfirmRequest describes a run that needs explicit confirmation before
// any photo is touched.
type ConfirmRequest struct {
	// Operation is the operation about to run.
	Operation command.Type

	// PhotoCount is the size of the deduplicated selection.
	PhotoCount int

	// Destructive reports whether the operation cannot be undone.
	Destructive bool
}

// ConfirmFunc decides whether a gated run proceeds. Returning false cancels
// the run before any side effect.
type ConfirmFunc func(req ConfirmRequest) bool

// Result summarizes a finished run.
type Result struct {
	// Status is the terminal state of the run.
	Status Status

	// Operation is the operation that ran.
	Operation command.Type

	// Total is the size of the deduplicated selection.
	Total int

	// Completed is the number of photos processed successfully.
	Completed int

	// Failed is the number of photos that failed.
	Failed int

	// Errors holds one entry per failed photo, in selection order.
	Errors []PhotoError

	// Duration is the wall-clock time of the run.
	Duration time.Duration

	// RollbackToken identifies the run for [Executor.Rollback]. It is set
	// whenever at least one photo succeeded; rolling back an irreversible
	// operation fails with [ErrNotReversible].
	RollbackToken string
}

// rollbackEntry holds the per-photo inversion data captured during a
// reversible run.
type rollbackEntry struct {
	photo      photo.ID
	prevTags   []string
	prevRating int
}

// rollbackRecord is the stored undo data behind a token.
type rollbackRecord struct {
	op      command.Type
	album   string
	entries []rollbackEntry
}
