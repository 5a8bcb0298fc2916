package ports

import "context"

// MemoStore is a get/set key-value table for memoized results. Set must be
// idempotent for a given key: two racing writers store equal values.
type MemoStore[V any] interface {
	Get(ctx context.Context, key string) (V, bool, error)
	Set(ctx context.Context, key string, value V) error
	Len() int
}
