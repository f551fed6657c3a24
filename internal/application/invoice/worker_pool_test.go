package invoice

import (
	"context"
	"fmt"
	"testing"
	"time"

	"praxisdesk/ms_invoicing/internal/core/invoice"
	"praxisdesk/ms_invoicing/internal/testutil"
)

func TestBuildWorkerPool_ProcessBatch(t *testing.T) {
	builder := &stubBuilder{delay: 5 * time.Millisecond}
	pool := NewBuildWorkerPool(context.Background(), 4, builder, testutil.NewTestLogger())

	reqs := make([]invoice.Request, 20)
	for i := range reqs {
		reqs[i] = validRequest(fmt.Sprintf("INV-%03d", i))
	}

	results := pool.ProcessBatch(context.Background(), reqs, invoice.GenerateOptions{})

	if len(results) != 20 {
		t.Fatalf("expected 20 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Index != i {
			t.Errorf("result at position %d carries index %d", i, r.Index)
		}
		if r.Result == nil || !r.Result.Success {
			t.Errorf("result %d: expected success, got %+v", i, r)
		}
	}
}

func TestBuildWorkerPool_CancelledContext(t *testing.T) {
	builder := &stubBuilder{delay: 200 * time.Millisecond}
	pool := NewBuildWorkerPool(context.Background(), 2, builder, testutil.NewTestLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	reqs := []invoice.Request{validRequest("INV-1"), validRequest("INV-2"), validRequest("INV-3")}
	results := pool.ProcessBatch(ctx, reqs, invoice.GenerateOptions{})

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Result != nil && r.Result.Success {
			t.Errorf("result %d: expected no completed build under a cancelled context", i)
		}
		if r.Error == "" {
			t.Errorf("result %d: expected an error message", i)
		}
	}
}
