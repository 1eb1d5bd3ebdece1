// Package redis provides the cache-aside layer for catalog product reads.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	appcatalog "github.com/zynvolt/storefront/internal/application/catalog"
	domain "github.com/zynvolt/storefront/internal/domain/catalog"
)

type CatalogCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewCatalogCache(client *redis.Client) *CatalogCache {
	return &CatalogCache{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

func (c *CatalogCache) Get(ctx context.Context, productID string) (*domain.Product, error) {
	data, err := c.client.Get(ctx, cacheKey(productID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, appcatalog.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var p domain.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product failed: %w", err)
	}
	return &p, nil
}

func (c *CatalogCache) Set(ctx context.Context, p *domain.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal product failed: %w", err)
	}

	// Jitter spreads expiry so a popular category does not refill all at once.
	jitter := time.Duration(rand.Intn(5)) * time.Minute
	ttl := c.baseTTL + jitter
	if err := c.client.Set(ctx, cacheKey(p.ProductID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *CatalogCache) Delete(ctx context.Context, productID string) error {
	if err := c.client.Del(ctx, cacheKey(productID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(productID string) string {
	return fmt.Sprintf("product:%s", productID)
}
