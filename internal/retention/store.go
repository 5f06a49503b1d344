package retention

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates absent record key.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates revision mismatch for CAS update.
	ErrConflict = errors.New("revision conflict")
)

// Store provides retention record persistence operations.
// Params: CRUD operations keyed by notifier key plus key listing.
// Returns: backend persistence behavior.
type Store interface {
	Get(ctx context.Context, key string) (Record, uint64, error)
	Put(ctx context.Context, key string, record Record) (uint64, error)
	Update(ctx context.Context, key string, expectedRevision uint64, record Record) (uint64, error)
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}
