package cache

import (
	"context"
	"time"
)

// InsightCache stores generated business insight texts keyed by the
// revenue snapshot they were computed from.
type InsightCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

type NoopInsightCache struct{}

func (NoopInsightCache) Get(_ context.Context, _ string) (string, bool, error) {
	return "", false, nil
}

func (NoopInsightCache) Set(_ context.Context, _ string, _ string, _ time.Duration) error {
	return nil
}
