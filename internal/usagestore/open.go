package usagestore

import (
	"context"
	"fmt"
	"time"

	"github.com/aiwriterpros/aiwriter/internal/repository"
)

// Open builds the store named by backend and bounds every call by timeout.
// The returned close function releases backend connections; it is never nil.
func Open(ctx context.Context, backend, redisURL string, queries *repository.Queries, timeout time.Duration) (Store, func() error, error) {
	noop := func() error { return nil }

	switch backend {
	case BackendPostgres:
		if queries == nil {
			return nil, noop, fmt.Errorf("postgres usage store requires a database")
		}
		return WithTimeout(NewPostgresStore(queries), timeout), noop, nil
	case BackendRedis:
		rs, err := NewRedisStore(ctx, redisURL)
		if err != nil {
			return nil, noop, err
		}
		return WithTimeout(rs, timeout), rs.Close, nil
	case BackendMemory:
		return WithTimeout(NewMemoryStore(), timeout), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown usage store %q", backend)
	}
}
