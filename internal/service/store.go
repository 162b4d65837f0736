package service

import (
	"context"
	"time"

	"github.com/Additional-Code/buildmart/pkg/errorbank"
)

// DefaultStoreTimeout bounds a store call when no timeout is configured.
const DefaultStoreTimeout = 3 * time.Second

// WithStoreTimeout derives the deadline applied to a single store operation.
func WithStoreTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultStoreTimeout
	}
	return context.WithTimeout(ctx, d)
}

// Unavailable reports a failed store call. The operation must be treated as not applied.
func Unavailable(op string, err error) *errorbank.AppError {
	return errorbank.StorageUnavailable(op+" failed", errorbank.WithCause(err))
}
