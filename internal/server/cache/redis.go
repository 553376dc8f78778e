package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophblog/internal/server/models"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "blog:post:"

// stampTTL keeps a post's stamp alive long after its entry expires, so a
// slow fill cannot see the stamp vanish and reappear with the same value.
const stampTTL = 24 * time.Hour

// setIfStamp stores ARGV[2] under KEYS[1] only while KEYS[2] still holds
// ARGV[1] (an absent stamp reads as "").
var setIfStamp = redis.NewScript(`
local cur = redis.call('GET', KEYS[2]) or ''
if cur ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// RedisPostCache stores posts as JSON strings under blog:post:{<id>} and a
// per-post stamp under blog:post:{<id>}:stamp. The hash tag keeps both keys
// in one cluster slot so the fill script may touch them together.
type RedisPostCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisClient initializes a redis client.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewRedisPostCache(rdb *redis.Client, ttl time.Duration) *RedisPostCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisPostCache{rdb: rdb, ttl: ttl}
}

func key(id int64) string {
	return keyPrefix + "{" + strconv.FormatInt(id, 10) + "}"
}

func stampKey(id int64) string {
	return key(id) + ":stamp"
}

func (c *RedisPostCache) Get(ctx context.Context, id int64) (*models.Post, string, error) {
	vals, err := c.rdb.MGet(ctx, key(id), stampKey(id)).Result()
	if err != nil {
		return nil, "", err
	}

	stamp, _ := vals[1].(string)
	raw, ok := vals[0].(string)
	if !ok {
		return nil, stamp, nil
	}

	var p models.Post
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, stamp, fmt.Errorf("decode cached post %d: %w", id, err)
	}
	return &p, stamp, nil
}

func (c *RedisPostCache) Set(ctx context.Context, post *models.Post, stamp string) error {
	b, err := json.Marshal(post)
	if err != nil {
		return err
	}
	keys := []string{key(post.ID), stampKey(post.ID)}
	return setIfStamp.Run(ctx, c.rdb, keys, stamp, b, c.ttl.Milliseconds()).Err()
}

// Delete drops the entries and advances their stamps in one transaction.
func (c *RedisPostCache) Delete(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Incr(ctx, stampKey(id))
			pipe.Expire(ctx, stampKey(id), stampTTL)
			pipe.Del(ctx, key(id))
		}
		return nil
	})
	return err
}
