package storage

import (
	"context"
	"time"
)

// ObjectInfo is one entry from a bucket listing.
type ObjectInfo struct {
	Key  string
	Size int64
}

// Gateway is the object-storage boundary: presigned URL issuance and
// object deletion against one bucket. Implementations must be safe for
// concurrent use.
type Gateway interface {
	PresignedPut(ctx context.Context, key string, ttl time.Duration) (string, error)
	PresignedGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	EnsureBucket(ctx context.Context) error
}
