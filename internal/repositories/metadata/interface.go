// Package metadata is a small key/value table holding the local notification
// platform's persisted state: the serialized job list and permission flags.
package metadata

import (
	"context"
)

// Repository stores opaque values by key.
type Repository interface {
	// Get returns nil without error when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys lists every stored key in lexical order.
	Keys(ctx context.Context) ([]string, error)
}
