package bulk_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lumapix/lumapix/internal/bulk"
	"github.com/lumapix/lumapix/internal/command"
	"github.com/lumapix/lumapix/internal/photo"
	"github.com/lumapix/lumapix/internal/photostore"
)

// seedLibrary adds n photos with predictable IDs p0..p(n-1).
func seedLibrary(t *testing.T, n int) (*photo.Library, []photo.ID) {
	t.Helper()
	lib := photo.NewLibrary()
	ids := make([]photo.ID, 0, n)
	for i := 0; i < n; i++ {
		id := photo.ID(fmt.Sprintf("p%d", i))
		if _, err := lib.Add(photo.Photo{ID: id, Filename: fmt.Sprintf("img_%d.jpg", i)}); err != nil {
			t.Fatalf("seeding photo %d: %v", i, err)
		}
		ids = append(ids, id)
	}
	return lib, ids
}

func confirmAlways(bulk.ConfirmRequest) bool { return true }

func TestExecute_BatchesAndProgress(t *testing.T) {
	t.Parallel()

	lib, ids := seedLibrary(t, 500)
	store := photostore.NewMockStore()
	exec := bulk.New(store, lib, bulk.WithConfirmFunc(confirmAlways))

	var reports []bulk.Progress
	op := command.Operation{Type: command.TypeAnalyze, Confidence: 0.9}
	res, err := exec.Execute(context.Background(), op, ids, func(p bulk.Progress) {
		reports = append(reports, p)
	})
	if err != nil {
		t.Fatalf("Execute err=%v", err)
	}

	if res.Status != bulk.StatusCompleted {
		t.Errorf("status=%s, want completed", res.Status)
	}
	if res.Completed != 500 || res.Failed != 0 {
		t.Errorf("completed=%d failed=%d, want 500/0", res.Completed, res.Failed)
	}
	if len(reports) != 10 {
		t.Fatalf("progress callbacks=%d, want 10 for 500 photos at batch size 50", len(reports))
	}
	for i, p := range reports {
		if p.Batch != i+1 || p.Batches != 10 || p.Total != 500 {
			t.Errorf("report %d: %+v, want batch=%d batches=10 total=500", i, p, i+1)
		}
		if p.Completed != (i+1)*50 {
			t.Errorf("report %d: completed=%d, want %d", i, p.Completed, (i+1)*50)
		}
	}
	if got := store.CallCount("analyze"); got != 500 {
		t.Errorf("backend analyze calls=%d, want 500", got)
	}
}

func TestExecute_PartialFailure(t *testing.T) {
	t.Parallel()

	lib, ids := seedLibrary(t, 5)
	store := photostore.NewMockStore()
	store.FailPhoto("p2", errors.New("storage corrupt"))
	exec := bulk.New(store, lib)

	op := command.Operation{Type: command.TypeAnalyze}
	res, err := exec.Execute(context.Background(), op, ids, nil)
	if err != nil {
		t.Fatalf("Execute err=%v", err)
	}

	if res.Status != bulk.StatusPartialFailure {
		t.Errorf("status=%s, want partial_failure", res.Status)
	}
	if res.Completed != 4 || res.Failed != 1 {
		t.Errorf("completed=%d failed=%d, want 4/1", res.Completed, res.Failed)
	}
	if len(res.Errors) != 1 || res.Errors[0].Photo != "p2" {
		t.Fatalf("errors=%v, want one entry for p2", res.Errors)
	}
}

func TestExecute_AllFailures(t *testing.T) {
	t.Parallel()

	lib, ids := seedLibrary(t, 3)
	store := photostore.NewMockStore()
	store.FailOp("analyze", errors.New("backend down"))
	exec := bulk.New(store, lib)

	res, err := exec.Execute(context.Background(), command.Operation{Type: command.TypeAnalyze}, ids, nil)
	if err != nil {
		t.Fatalf("Execute err=%v", err)
	}
	if res.Status != bulk.StatusFailed {
		t.Errorf("status=%s, want failed", res.Status)
	}
	if res.Completed != 0 || res.Failed != 3 {
		t.Errorf("completed=%d failed=%d, want 0/3", res.Completed, res.Failed)
	}
}

func TestExecute_DestructiveRequiresConfirmation(t *testing.T) {
	t.Parallel()

	lib, ids := seedLibrary(t, 3)
	store := photostore.NewMockStore()

	var req bulk.ConfirmRequest
	declined := bulk.New(store, lib, bulk.WithConfirmFunc(func(r bulk.ConfirmRequest) bool {
		req = r
		return false
	}))

	op := command.Operation{Type: command.TypeDelete}
	res, err := declined.Execute(context.Background(), op, ids, nil)
	if err != nil {
		t.Fatalf("Execute err=%v", err)
	}
	if res.Status != bulk.StatusCancelled {
		t.Errorf("status=%s, want cancelled", res.Status)
	}
	if !req.Destructive || req.PhotoCount != 3 || req.Operation != command.TypeDelete {
		t.Errorf("confirm request=%+v, want destructive delete of 3", req)
	}
	if got := store.CallCount("delete"); got != 0 {
		t.Errorf("backend delete calls=%d, want 0 after declined run", got)
	}

	// Without a confirmation callback at all, gated runs are cancelled too.
	unconfirmed := bulk.New(store, lib)
	res, err = unconfirmed.Execute(context.Background(), op, ids, nil)
	if err != nil {
		t.Fatalf("Execute err=%v", err)
	}
	if res.Status != bulk.StatusCancelled {
		t.Errorf("status=%s, want cancelled without confirm callback", res.Status)
	}
}

func TestExecute_LargeSelectionGated(t *testing.T) {
	t.Parallel()

	lib, ids := seedLibrary(t, 12)
	store := photostore.NewMockStore()
	confirmed := false
	exec := bulk.New(store, lib,
		bulk.WithConfirmLimit(10),
		bulk.WithConfirmFunc(func(r bulk.ConfirmRequest) bool {
			confirmed = true
			if r.Destructive {
				t.Error("analyze reported destructive")
			}
			return true
		}))

	res, err := exec.Execute(context.Background(), command.Operation{Type: command.TypeAnalyze}, ids, nil)
	if err != nil {
		t.Fatalf("Execute err=%v", err)
	}
	if !confirmed {
		t.Error("selection above the limit did not trigger confirmation")
	}
	if res.Status != bulk.StatusCompleted {
		t.Errorf("status=%s, want completed", res.Status)
	}
}

func TestExecute_PerOperationConfirmLimit(t *testing.T) {
	t.Parallel()

	lib, ids := seedLibrary(t, 8)
	store := photostore.NewMockStore()
	confirmations := 0
	exec := bulk.New(store, lib,
		bulk.WithConfirmLimit(100),
		bulk.WithConfirmLimits(map[command.Type]int{command.TypeShare: 5}),
		bulk.WithConfirmFunc(func(bulk.ConfirmRequest) bool {
			confirmations++
			return true
		}))

	// share has its own lower limit, so 8 photos trip the gate.
	share := command.Operation{Type: command.TypeShare, Parameters: map[string]any{"destination": "family"}}
	if _, err := exec.Execute(context.Background(), share, ids, nil); err != nil {
		t.Fatalf("Execute err=%v", err)
	}
	if confirmations != 1 {
		t.Errorf("confirmations=%d, want 1 for share over its own limit", confirmations)
	}

	// analyze still uses the global limit and passes ungated.
	if _, err := exec.Execute(context.Background(), command.Operation{Type: command.TypeAnalyze}, ids, nil); err != nil {
		t.Fatalf("Execute err=%v", err)
	}
	if confirmations != 1 {
		t.Errorf("confirmations=%d, want 1 (analyze stays under the global limit)", confirmations)
	}
}

func TestExecute_DeduplicatesAndRecordsStaleIDs(t *testing.T) {
	t.Parallel()

	lib, ids := seedLibrary(t, 3)
	store := photostore.NewMockStore()
	exec := bulk.New(store, lib)

	selection := []photo.ID{ids[0], ids[1], ids[0], "ghost", ids[2], ids[1]}
	res, err := exec.Execute(context.Background(), command.Operation{Type: command.TypeAnalyze}, selection, nil)
	if err != nil {
		t.Fatalf("Execute err=%v", err)
	}

	if res.Total != 4 {
		t.Errorf("total=%d, want 4 after dedupe", res.Total)
	}
	if res.Completed != 3 || res.Failed != 1 {
		t.Errorf("completed=%d failed=%d, want 3/1", res.Completed, res.Failed)
	}
	if res.Status != bulk.StatusPartialFailure {
		t.Errorf("status=%s, want partial_failure", res.Status)
	}
	if len(res.Errors) != 1 || !errors.Is(res.Errors[0].Err, photo.ErrNotFound) {
		t.Fatalf("errors=%v, want one not-found entry", res.Errors)
	}
	if got := store.CallCount("analyze"); got != 3 {
		t.Errorf("backend analyze calls=%d, want 3", got)
	}
}

func TestExecute_EmptySelection(t *testing.T) {
	t.Parallel()

	lib, _ := seedLibrary(t, 1)
	exec := bulk.New(photostore.NewMockStore(), lib)

	if _, err := exec.Execute(context.Background(), command.Operation{Type: command.TypeAnalyze}, nil, nil); !errors.Is(err, bulk.ErrEmptySelection) {
		t.Errorf("err=%v, want ErrEmptySelection", err)
	}
}

func TestExecute_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	lib, ids := seedLibrary(t, 2)
	store := photostore.NewMockStore()
	store.FailPhotoTimes("p1", &photostore.TransientError{Op: "analyze", Err: errors.New("busy")}, 1)

	// Without retries the transient failure sticks.
	noRetry := bulk.New(store, lib)
	res, err := noRetry.Execute(context.Background(), command.Operation{Type: command.TypeAnalyze}, ids, nil)
	if err != nil {
		t.Fatalf("Execute err=%v", err)
	}
	if res.Status != bulk.StatusPartialFailure {
		t.Errorf("status=%s, want partial_failure without retries", res.Status)
	}

	store.FailPhotoTimes("p1", &photostore.TransientError{Op: "analyze", Err: errors.New("busy")}, 1)
	retrying := bulk.New(store, lib, bulk.WithMaxRetries(2))
	res, err = retrying.Execute(context.Background(), command.Operation{Type: command.TypeAnalyze}, ids, nil)
	if err != nil {
		t.Fatalf("Execute err=%v", err)
	}
	if res.Status != bulk.StatusCompleted {
		t.Errorf("status=%s, want completed with retries", res.Status)
	}
}

func TestExecute_CancelledBetweenBatches(t *testing.T) {
	t.Parallel()

	lib, ids := seedLibrary(t, 10)
	store := photostore.NewMockStore()
	exec := bulk.New(store, lib, bulk.WithBatchSize(5))

	ctx, cancel := context.WithCancel(context.Background())
	res, err := exec.Execute(ctx, command.Operation{Type: command.TypeAnalyze}, ids, func(bulk.Progress) {
		cancel() // fires after the first batch completes
	})
	if err != nil {
		t.Fatalf("Execute err=%v", err)
	}
	if res.Status != bulk.StatusCancelled {
		t.Errorf("status=%s, want cancelled", res.Status)
	}
	if res.Completed != 5 {
		t.Errorf("completed=%d, want the first batch only", res.Completed)
	}
	if got := store.CallCount("analyze"); got != 5 {
		t.Errorf("backend analyze calls=%d, want 5", got)
	}
}

func TestExecute_MissingParameters(t *testing.T) {
	t.Parallel()

	lib, ids := seedLibrary(t, 1)
	exec := bulk.New(photostore.NewMockStore(), lib)
	ctx := context.Background()

	cases := []command.Operation{
		{Type: command.TypeTag, Parameters: map[string]any{}},
		{Type: command.TypeAlbumCreate, Parameters: map[string]any{}},
		{Type: command.TypeRate, Parameters: map[string]any{}},
		{Type: command.TypeShare, Parameters: map[string]any{}},
		{Type: command.TypeUnknown},
	}
	for _, op := range cases {
		if _, err := exec.Execute(ctx, op, ids, nil); err == nil {
			t.Errorf("Execute(%s with no parameters): err=nil, want parameter error", op.Type)
		}
	}
}

func TestExecute_TagRollback(t *testing.T) {
	t.Parallel()

	lib, ids := seedLibrary(t, 3)
	store := photostore.NewMockStore()
	store.SeedTags("p0", []string{"raw"})
	exec := bulk.New(store, lib)
	ctx := context.Background()

	op := command.Operation{
		Type:       command.TypeTag,
		Parameters: map[string]any{"tags": []string{"beach", "summer"}},
	}
	res, err := exec.Execute(ctx, op, ids, nil)
	if err != nil {
		t.Fatalf("Execute err=%v", err)
	}
	if res.Status != bulk.StatusCompleted {
		t.Fatalf("status=%s, want completed", res.Status)
	}
	if res.RollbackToken == "" {
		t.Fatal("rollback token empty for a reversible operation")
	}
	if got := store.Tags("p0"); len(got) != 3 {
		t.Fatalf("tags after run=%v, want raw+beach+summer", got)
	}

	rb, err := exec.Rollback(ctx, res.RollbackToken)
	if err != nil {
		t.Fatalf("Rollback err=%v", err)
	}
	if rb.Status != bulk.StatusRolledBack {
		t.Errorf("rollback status=%s, want rolled_back", rb.Status)
	}
	if got := store.Tags("p0"); len(got) != 1 || got[0] != "raw" {
		t.Errorf("tags after rollback=%v, want [raw]", got)
	}
	if got := store.Tags("p1"); len(got) != 0 {
		t.Errorf("tags after rollback=%v, want empty", got)
	}

	// The token is consumed.
	if _, err := exec.Rollback(ctx, res.RollbackToken); !errors.Is(err, bulk.ErrUnknownToken) {
		t.Errorf("second rollback err=%v, want ErrUnknownToken", err)
	}
}

func TestExecute_RateRollbackRestoresPrevious(t *testing.T) {
	t.Parallel()

	lib, ids := seedLibrary(t, 2)
	store := photostore.NewMockStore()
	store.SeedRating("p0", 2)
	exec := bulk.New(store, lib)
	ctx := context.Background()

	op := command.Operation{Type: command.TypeRate, Parameters: map[string]any{"rating": 5}}
	res, err := exec.Execute(ctx, op, ids, nil)
	if err != nil {
		t.Fatalf("Execute err=%v", err)
	}
	if store.Rating("p0") != 5 || store.Rating("p1") != 5 {
		t.Fatal("ratings not applied")
	}

	if _, err := exec.Rollback(ctx, res.RollbackToken); err != nil {
		t.Fatalf("Rollback err=%v", err)
	}
	if got := store.Rating("p0"); got != 2 {
		t.Errorf("p0 rating=%d, want restored 2", got)
	}
	if got := store.Rating("p1"); got != 0 {
		t.Errorf("p1 rating=%d, want cleared", got)
	}
}

func TestExecute_AlbumCreateAndRollback(t *testing.T) {
	t.Parallel()

	lib, ids := seedLibrary(t, 3)
	store := photostore.NewMockStore()
	exec := bulk.New(store, lib)
	ctx := context.Background()

	op := command.Operation{Type: command.TypeAlbumCreate, Parameters: map[string]any{"album": "summer trip"}}
	res, err := exec.Execute(ctx, op, ids, nil)
	if err != nil {
		t.Fatalf("Execute err=%v", err)
	}
	members, ok := store.AlbumPhotos("summer trip")
	if !ok || len(members) != 3 {
		t.Fatalf("album=%v (exists=%t), want 3 members", members, ok)
	}

	if _, err := exec.Rollback(ctx, res.RollbackToken); err != nil {
		t.Fatalf("Rollback err=%v", err)
	}
	members, ok = store.AlbumPhotos("summer trip")
	if !ok || len(members) != 0 {
		t.Errorf("album=%v after rollback, want empty but existing", members)
	}
}

func TestRollback_DeleteNotReversible(t *testing.T) {
	t.Parallel()

	lib, ids := seedLibrary(t, 2)
	store := photostore.NewMockStore()
	exec := bulk.New(store, lib, bulk.WithConfirmFunc(confirmAlways))
	ctx := context.Background()

	res, err := exec.Execute(ctx, command.Operation{Type: command.TypeDelete}, ids, nil)
	if err != nil {
		t.Fatalf("Execute err=%v", err)
	}
	if res.Status != bulk.StatusCompleted {
		t.Fatalf("status=%s, want completed", res.Status)
	}
	if _, err := exec.Rollback(ctx, res.RollbackToken); !errors.Is(err, bulk.ErrNotReversible) {
		t.Errorf("err=%v, want ErrNotReversible", err)
	}
}

func TestRollback_UnknownToken(t *testing.T) {
	t.Parallel()

	lib, _ := seedLibrary(t, 1)
	exec := bulk.New(photostore.NewMockStore(), lib)

	if _, err := exec.Rollback(context.Background(), "deadbeef"); !errors.Is(err, bulk.ErrUnknownToken) {
		t.Errorf("err=%v, want ErrUnknownToken", err)
	}
}

func TestExecute_DownloadBatchesSelection(t *testing.T) {
	t.Parallel()

	lib, ids := seedLibrary(t, 120)
	store := photostore.NewMockStore()
	exec := bulk.New(store, lib, bulk.WithConfirmFunc(confirmAlways))

	op := command.Operation{
		Type:       command.TypeDownload,
		Parameters: map[string]any{"format": "zip", "target": "selected"},
	}
	res, err := exec.Execute(context.Background(), op, ids, nil)
	if err != nil {
		t.Fatalf("Execute err=%v", err)
	}
	if res.Status != bulk.StatusCompleted {
		t.Errorf("status=%s, want completed", res.Status)
	}
	if res.Completed != 120 {
		t.Errorf("completed=%d, want 120", res.Completed)
	}
	// One backend call per batch of 50.
	if got := store.CallCount("download"); got != 3 {
		t.Errorf("backend download calls=%d, want 3", got)
	}
}
