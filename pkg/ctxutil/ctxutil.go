package ctxutil

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ctxKey string

const (
	batchIDKey ctxKey = "batch_id"
	rowKey     ctxKey = "row"
)

// WithBatchID stores the batch ID in the context.
func WithBatchID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, batchIDKey, id)
}

// BatchIDFromCtx extracts the batch ID from the context.
// Returns uuid.Nil and false if the value is missing, nil UUID, or wrong type.
func BatchIDFromCtx(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(batchIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// WithRow stores the 1-based source row number in the context.
func WithRow(ctx context.Context, row int) context.Context {
	return context.WithValue(ctx, rowKey, row)
}

// RowFromCtx extracts the source row number from the context.
// Returns 0 if absent.
func RowFromCtx(ctx context.Context) int {
	row, _ := ctx.Value(rowKey).(int)
	return row
}

// WithOptionalTimeout bounds ctx by d. A zero or negative d leaves ctx
// unbounded; the returned cancel func is always safe to call.
func WithOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
