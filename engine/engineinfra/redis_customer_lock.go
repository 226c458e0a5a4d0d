package engineinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/Abraxas-365/chatflow/engine"
	"github.com/Abraxas-365/chatflow/pkg/kernel"
)

const lockPrefix = "chatflow:lock:customer:"

// releaseScript libera el lock sólo si el token coincide, para no
// soltar un lock que otro worker ya re-adquirió tras expirar el TTL.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisCustomerLocker serializa el procesamiento por (channel, customer).
// El TTL evita locks huérfanos si un worker muere a mitad de un walk.
type RedisCustomerLocker struct {
	redis *redis.Client
	ttl   time.Duration
}

var _ engine.CustomerLocker = (*RedisCustomerLocker)(nil)

func NewRedisCustomerLocker(redisClient *redis.Client, ttl time.Duration) *RedisCustomerLocker {
	return &RedisCustomerLocker{redis: redisClient, ttl: ttl}
}

func (l *RedisCustomerLocker) Acquire(ctx context.Context, channelID kernel.ChannelID, customerID kernel.CustomerID) (string, error) {
	key := lockKey(channelID, customerID)
	token := uuid.New().String()

	ok, err := l.redis.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", engine.ErrCustomerLocked().
			WithDetail("customer_id", customerID.String()).
			WithDetail("channel_id", channelID.String())
	}

	return token, nil
}

func (l *RedisCustomerLocker) Release(ctx context.Context, channelID kernel.ChannelID, customerID kernel.CustomerID, token string) error {
	key := lockKey(channelID, customerID)
	return releaseScript.Run(ctx, l.redis, []string{key}, token).Err()
}

func lockKey(channelID kernel.ChannelID, customerID kernel.CustomerID) string {
	return fmt.Sprintf("%s%s:%s", lockPrefix, channelID.String(), customerID.String())
}
