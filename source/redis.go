package source

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// RedisList is a Paginated source backed by a Redis list: LLEN for the
// count, LRANGE for windows. The reference paginated implementation for
// staging bulk imports without holding the data set in the importer.
type RedisList struct {
	client *goredis.Client
	key    string
}

// NewRedisList creates a Redis-list source from a connection URL.
// Format: redis://[:password@]host:port[/db]
func NewRedisList(url, key string) (*RedisList, error) {
	if key == "" {
		return nil, errors.New("redis source requires a list key")
	}
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis source: invalid URL: %w", err)
	}
	return &RedisList{client: goredis.NewClient(opts), key: key}, nil
}

// NewRedisListWithClient wraps an existing client, e.g. one shared with
// a completion adapter.
func NewRedisListWithClient(client *goredis.Client, key string) (*RedisList, error) {
	if key == "" {
		return nil, errors.New("redis source requires a list key")
	}
	return &RedisList{client: client, key: key}, nil
}

// Count returns LLEN of the backing list.
func (r *RedisList) Count(ctx context.Context) (int, error) {
	n, err := r.client.LLen(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis source: llen %q: %w", r.key, err)
	}
	return int(n), nil
}

// Window returns LRANGE [offset, offset+limit) of the backing list.
// Elements surface as strings; parsing is the batch function's concern.
func (r *RedisList) Window(ctx context.Context, offset, limit int) ([]any, error) {
	stop := int64(offset + limit - 1)
	values, err := r.client.LRange(ctx, r.key, int64(offset), stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis source: lrange %q [%d,%d]: %w", r.key, offset, stop, err)
	}
	items := make([]any, len(values))
	for i, v := range values {
		items[i] = v
	}
	return items, nil
}

// Close releases the underlying client.
func (r *RedisList) Close() error {
	return r.client.Close()
}

// Verify RedisList implements the paginated contract.
var _ Paginated = (*RedisList)(nil)
