package redisstore

import "context"

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return wrap("ping", err)
	}
	return nil
}

// Close is a no-op — the caller owns the Redis client lifecycle, matching
// store/redis/store.go's convention.
func (s *Store) Close() error { return nil }
