package ports

import (
	"context"
	"time"

	"github.com/meshsight/meshsight/internal/core/domain"
)

// EventPublisher publishes computation events to a message broker.
type EventPublisher interface {
	PublishProgress(ctx context.Context, ev *domain.ComputeProgress) error
	PublishCompleted(ctx context.Context, summary *domain.CoverageSummary) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// RasterStore holds raster payloads in object storage and hands out
// time-limited download links.
type RasterStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
