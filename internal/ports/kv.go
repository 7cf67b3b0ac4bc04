package ports

import "context"

// KVStore is a small key-value capability used for advisory run locks and
// operational state. Adapters may be backed by SQLite or any shared store.
type KVStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string) error

	// SetIfAbsent atomically creates the key when it does not exist yet and
	// reports whether this call won the insert.
	SetIfAbsent(ctx context.Context, key string, value string) (bool, error)

	Delete(ctx context.Context, key string) error
}
