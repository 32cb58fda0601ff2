package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dayvhiid/Simple-E-commerce-API/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	ProductCachePrefix     = "product:detail:"
	ProductListCachePrefix = "products:v:"
	CacheVersionKey        = "products:version"

	DefaultCacheTTL = 5 * time.Minute
)

// PageKey identifies a cached product listing.
type PageKey struct {
	Owner   string // empty for the public catalog
	Page    int
	PerPage int
}

// ProductCache handles product caching in Redis. Listings are keyed by a version
// number that every invalidation bumps, so stale pages are simply never read again.
type ProductCache struct {
	redis *redis.Client
	ttl   time.Duration
	log   *zap.Logger
}

func NewProductCache(client *redis.Client, ttl time.Duration, log *zap.Logger) *ProductCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ProductCache{redis: client, ttl: ttl, log: log}
}

func (c *ProductCache) GetProduct(ctx context.Context, productID string) (*models.Product, bool) {
	data, err := c.redis.Get(ctx, ProductCachePrefix+productID).Bytes()
	if err != nil {
		return nil, false
	}

	var product models.Product
	if err := json.Unmarshal(data, &product); err != nil {
		c.log.Warn("Failed to unmarshal cached product", zap.Error(err), zap.String("product_id", productID))
		return nil, false
	}
	return &product, true
}

// SetProductAsync caches a single product without holding up the request.
func (c *ProductCache) SetProductAsync(product models.Product) {
	productID := product.ID.Hex()
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		data, err := json.Marshal(product)
		if err != nil {
			c.log.Warn("Failed to marshal product for cache", zap.Error(err), zap.String("product_id", productID))
			return
		}
		if err := c.redis.Set(bgCtx, ProductCachePrefix+productID, data, c.ttl).Err(); err != nil {
			c.log.Warn("Failed to cache product", zap.Error(err), zap.String("product_id", productID))
		}
	}()
}

func (c *ProductCache) GetPage(ctx context.Context, key PageKey) (*models.ProductPage, bool) {
	version, err := c.version(ctx)
	if err != nil {
		return nil, false
	}

	data, err := c.redis.Get(ctx, listKey(version, key)).Bytes()
	if err != nil {
		return nil, false
	}

	var page models.ProductPage
	if err := json.Unmarshal(data, &page); err != nil {
		c.log.Warn("Failed to unmarshal cached product list", zap.Error(err))
		return nil, false
	}
	return &page, true
}

func (c *ProductCache) SetPageAsync(key PageKey, page models.ProductPage) {
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		version, err := c.version(bgCtx)
		if err != nil {
			return
		}
		data, err := json.Marshal(page)
		if err != nil {
			c.log.Warn("Failed to marshal product list for cache", zap.Error(err))
			return
		}
		if err := c.redis.Set(bgCtx, listKey(version, key), data, c.ttl).Err(); err != nil {
			c.log.Warn("Failed to cache product list", zap.Error(err))
		}
	}()
}

// InvalidateProduct drops the product's cached detail and every cached listing.
func (c *ProductCache) InvalidateProduct(ctx context.Context, productID string) {
	if err := c.redis.Incr(ctx, CacheVersionKey).Err(); err != nil {
		c.log.Error("Failed to invalidate product list cache", zap.Error(err), zap.String("product_id", productID))
	}
	if err := c.redis.Del(ctx, ProductCachePrefix+productID).Err(); err != nil {
		c.log.Warn("Failed to delete product cache", zap.Error(err), zap.String("product_id", productID))
	}
}

// version returns the current list version, initialising the key on first use.
func (c *ProductCache) version(ctx context.Context) (int64, error) {
	ver, err := c.redis.Get(ctx, CacheVersionKey).Int64()
	if err == nil && ver > 0 {
		return ver, nil
	}
	if errors.Is(err, redis.Nil) {
		if err := c.redis.SetNX(ctx, CacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.redis.Get(ctx, CacheVersionKey).Int64()
	}
	if err == nil {
		err = fmt.Errorf("invalid cache version %d", ver)
	}
	return 0, err
}

func listKey(version int64, key PageKey) string {
	return fmt.Sprintf("%s%d:o:%s:p:%d:l:%d", ProductListCachePrefix, version, key.Owner, key.Page, key.PerPage)
}
