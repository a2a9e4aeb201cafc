package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	guardPrefix    = "submit_guard:"
	releaseTimeout = 2 * time.Second
)

// releaseScript удаляет ключ, только если он всё ещё принадлежит владельцу.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard защищает от повторной отправки сразу все экземпляры API.
type RedisGuard struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewRedisGuard создаёт guard поверх Redis.
func NewRedisGuard(client *redis.Client, log zerolog.Logger) *RedisGuard {
	return &RedisGuard{client: client, log: log}
}

// Acquire выполняет SET NX PX. Ключ освобождается release или по истечении ttl.
func (g *RedisGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, guardPrefix+key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return func() { g.release(key, token, ttl) }, true, nil
}

// release снимает блокировку. Если Redis недоступен, ключ освободится сам через ttl.
func (g *RedisGuard) release(key, token string, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := releaseScript.Run(ctx, g.client, []string{guardPrefix + key}, token).Err(); err != nil {
		g.log.Warn().Err(err).Str("key", key).Dur("ttl", ttl).Msg("guard: блокировка не снята, истечёт по ttl")
	}
}
