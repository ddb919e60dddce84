package ctxutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestWithBatchID_And_BatchIDFromCtx(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	ctx := WithBatchID(context.Background(), id)

	got, ok := BatchIDFromCtx(ctx)
	if !ok {
		t.Fatal("expected ok=true for valid UUID")
	}
	if got != id {
		t.Fatalf("expected %s, got %s", id, got)
	}
}

func TestBatchIDFromCtx_EmptyContext(t *testing.T) {
	t.Parallel()

	got, ok := BatchIDFromCtx(context.Background())
	if ok {
		t.Fatal("expected ok=false for empty context")
	}
	if got != uuid.Nil {
		t.Fatalf("expected uuid.Nil, got %s", got)
	}
}

func TestBatchIDFromCtx_NilUUID(t *testing.T) {
	t.Parallel()

	ctx := WithBatchID(context.Background(), uuid.Nil)

	if _, ok := BatchIDFromCtx(ctx); ok {
		t.Fatal("expected ok=false for uuid.Nil")
	}
}

func TestBatchIDFromCtx_WrongType(t *testing.T) {
	t.Parallel()

	ctx := context.WithValue(context.Background(), ctxKey("batch_id"), "not-a-uuid")

	if _, ok := BatchIDFromCtx(ctx); ok {
		t.Fatal("expected ok=false for wrong type")
	}
}

func TestWithRow_And_RowFromCtx(t *testing.T) {
	t.Parallel()

	ctx := WithRow(context.Background(), 42)

	if got := RowFromCtx(ctx); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	if got := RowFromCtx(context.Background()); got != 0 {
		t.Fatalf("expected 0 for empty context, got %d", got)
	}
}

func TestWithOptionalTimeout_Zero(t *testing.T) {
	t.Parallel()

	parent := context.Background()
	ctx, cancel := WithOptionalTimeout(parent, 0)
	defer cancel()

	if _, ok := ctx.Deadline(); ok {
		t.Fatal("zero timeout should not set a deadline")
	}
	if ctx != parent {
		t.Fatal("zero timeout should return the parent context")
	}
}

func TestWithOptionalTimeout_Positive(t *testing.T) {
	t.Parallel()

	ctx, cancel := WithOptionalTimeout(context.Background(), time.Minute)
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("positive timeout should set a deadline")
	}
	if time.Until(deadline) > time.Minute {
		t.Fatalf("deadline too far: %v", deadline)
	}
}

func TestWithOptionalTimeout_Expires(t *testing.T) {
	t.Parallel()

	ctx, cancel := WithOptionalTimeout(context.Background(), time.Millisecond)
	defer cancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context should expire")
	}
}
