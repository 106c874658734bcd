package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jkeevk/VKinder/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	cityTTL   = 24 * time.Hour
	photosTTL = time.Hour
)

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.Client.Del(ctx, key).Err()
}

// KeyForCity generates the key for a resolved city name.
func (c *RedisCache) KeyForCity(name string) string {
	return fmt.Sprintf("city:name:%s", strings.ToLower(strings.TrimSpace(name)))
}

// KeyForPhotos generates the key for a candidate's ranked photo refs.
func (c *RedisCache) KeyForPhotos(ownerID int64) string {
	return fmt.Sprintf("photos:rank:%d", ownerID)
}

type cachedCity struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// GetCity returns a previously resolved city, if any.
func (c *RedisCache) GetCity(ctx context.Context, name string) (int64, string, bool) {
	val, err := c.Client.Get(ctx, c.KeyForCity(name)).Result()
	if err != nil {
		return 0, "", false
	}
	var cc cachedCity
	if err := json.Unmarshal([]byte(val), &cc); err != nil {
		return 0, "", false
	}
	return cc.ID, cc.Title, true
}

// PutCity remembers a resolved city name.
func (c *RedisCache) PutCity(ctx context.Context, name string, id int64, title string) {
	b, err := json.Marshal(cachedCity{ID: id, Title: title})
	if err != nil {
		return
	}
	_ = c.Client.Set(ctx, c.KeyForCity(name), b, cityTTL).Err()
}

// GetPhotoRefs returns the cached ranked attachment refs for a candidate.
func (c *RedisCache) GetPhotoRefs(ctx context.Context, ownerID int64) ([]string, bool) {
	val, err := c.Client.Get(ctx, c.KeyForPhotos(ownerID)).Result()
	if err != nil {
		return nil, false
	}
	var refs []string
	if err := json.Unmarshal([]byte(val), &refs); err != nil {
		return nil, false
	}
	return refs, true
}

// PutPhotoRefs caches ranked attachment refs for a candidate.
// An empty slice is cached too: "no photos" is a valid answer.
func (c *RedisCache) PutPhotoRefs(ctx context.Context, ownerID int64, refs []string) {
	if refs == nil {
		refs = []string{}
	}
	b, err := json.Marshal(refs)
	if err != nil {
		return
	}
	_ = c.Client.Set(ctx, c.KeyForPhotos(ownerID), b, photosTTL).Err()
}
