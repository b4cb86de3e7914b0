package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SynapGarden/NVIDIA-blog-mcp/config"
)

// ProcessedSet tracks which feed items were already ingested, one redis
// set per feed.
type ProcessedSet struct {
	rdb *redis.Client
}

func NewProcessedSet(ctx context.Context, cfg config.RedisConfig) (*ProcessedSet, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &ProcessedSet{rdb: client}, nil
}

func key(feed string) string { return "ingest:processed:" + feed }

// Seen reports whether the item was already processed for this feed.
func (p *ProcessedSet) Seen(ctx context.Context, feed, id string) (bool, error) {
	return p.rdb.SIsMember(ctx, key(feed), id).Result()
}

// Mark records the item as processed.
func (p *ProcessedSet) Mark(ctx context.Context, feed, id string) error {
	return p.rdb.SAdd(ctx, key(feed), id).Err()
}

// Count returns how many items the feed has processed.
func (p *ProcessedSet) Count(ctx context.Context, feed string) (int64, error) {
	return p.rdb.SCard(ctx, key(feed)).Result()
}

func (p *ProcessedSet) Close() error { return p.rdb.Close() }
