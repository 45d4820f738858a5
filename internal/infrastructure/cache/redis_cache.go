// Package cache implementa allocation.AvailabilityCache sobre Redis.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/lp-engine/internal/application/allocation"
	"github.com/jhoicas/lp-engine/internal/domain/entity"
	"github.com/jhoicas/lp-engine/pkg/config"
)

var _ allocation.AvailabilityCache = (*RedisAvailabilityCache)(nil)

const keyPrefix = "lpengine:"

// NewRedisClient crea el cliente y verifica la conexión con PING.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// RedisAvailabilityCache guarda cantidades como string decimal con TTL. Cada entrada tiene una
// clave hermana <key>:gen que Invalidate incrementa; un Set sólo escribe si la generación sigue
// siendo la que se observó en el miss.
type RedisAvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

// genTTL vida de los contadores de generación.
const genTTL = time.Hour

// setIfGeneration KEYS[1]=valor KEYS[2]=generación ARGV[1]=token ARGV[2]=cantidad ARGV[3]=ttl ms.
var setIfGeneration = redis.NewScript(`
local gen = redis.call('GET', KEYS[2])
if (gen or '') ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// NewRedisAvailabilityCache ttl <= 0 usa 30s.
func NewRedisAvailabilityCache(client *redis.Client, ttl time.Duration) *RedisAvailabilityCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisAvailabilityCache{client: client, ttl: ttl}
}

func availableKey(lpID string) string { return keyPrefix + "lp:" + lpID + ":available" }

func consumerKey(c entity.ConsumerRef) string {
	return keyPrefix + "consumer:" + string(c.Kind()) + ":" + c.ID() + ":reserved"
}

func genKey(key string) string { return key + ":gen" }

func (c *RedisAvailabilityCache) get(ctx context.Context, key string) (decimal.Decimal, bool, allocation.FillToken, error) {
	vals, err := c.client.MGet(ctx, key, genKey(key)).Result()
	if err != nil {
		return decimal.Zero, false, "", fmt.Errorf("redis mget %s: %w", key, err)
	}
	var token allocation.FillToken
	if gen, ok := vals[1].(string); ok {
		token = allocation.FillToken(gen)
	}
	raw, ok := vals[0].(string)
	if !ok {
		return decimal.Zero, false, token, nil
	}
	qty, err := decimal.NewFromString(raw)
	if err != nil {
		// Entrada corrupta: se trata como miss y se descarta.
		_ = c.client.Del(ctx, key).Err()
		return decimal.Zero, false, token, nil
	}
	return qty, true, token, nil
}

func (c *RedisAvailabilityCache) set(ctx context.Context, key string, qty decimal.Decimal, token allocation.FillToken) error {
	err := setIfGeneration.Run(ctx, c.client, []string{key, genKey(key)},
		string(token), qty.String(), c.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (c *RedisAvailabilityCache) GetAvailable(ctx context.Context, lpID string) (decimal.Decimal, bool, allocation.FillToken, error) {
	return c.get(ctx, availableKey(lpID))
}

func (c *RedisAvailabilityCache) SetAvailable(ctx context.Context, lpID string, qty decimal.Decimal, token allocation.FillToken) error {
	return c.set(ctx, availableKey(lpID), qty, token)
}

func (c *RedisAvailabilityCache) GetConsumerReserved(ctx context.Context, consumer entity.ConsumerRef) (decimal.Decimal, bool, allocation.FillToken, error) {
	return c.get(ctx, consumerKey(consumer))
}

func (c *RedisAvailabilityCache) SetConsumerReserved(ctx context.Context, consumer entity.ConsumerRef, qty decimal.Decimal, token allocation.FillToken) error {
	return c.set(ctx, consumerKey(consumer), qty, token)
}

// Invalidate borra las entradas de las LPs y consumidores indicados y avanza su generación,
// todo en una transacción MULTI.
func (c *RedisAvailabilityCache) Invalidate(ctx context.Context, lpIDs []string, consumers []entity.ConsumerRef) error {
	keys := make([]string, 0, len(lpIDs)+len(consumers))
	for _, id := range lpIDs {
		keys = append(keys, availableKey(id))
	}
	for _, cr := range consumers {
		keys = append(keys, consumerKey(cr))
	}
	if len(keys) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		for _, k := range keys {
			pipe.Incr(ctx, genKey(k))
			pipe.Expire(ctx, genKey(k), genTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate: %w", err)
	}
	return nil
}
