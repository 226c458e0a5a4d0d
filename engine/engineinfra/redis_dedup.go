package engineinfra

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Abraxas-365/chatflow/pkg/kernel"
)

const (
	dedupPrefix = "chatflow:dedup:"
	dedupTTL    = 24 * time.Hour
)

// RedisDeduper es el camino rápido de la idempotencia: un SETNX con TTL
// corta los reintentos de Meta sin tocar Postgres. La base sigue siendo
// la autoridad; si redis no responde, se asume no visto.
type RedisDeduper struct {
	redis *redis.Client
}

func NewRedisDeduper(redisClient *redis.Client) *RedisDeduper {
	return &RedisDeduper{redis: redisClient}
}

// FirstSeen retorna true la primera vez que ve el mensaje
func (d *RedisDeduper) FirstSeen(ctx context.Context, channelID kernel.ChannelID, messageID kernel.MessageID) bool {
	key := fmt.Sprintf("%s%s:%s", dedupPrefix, channelID.String(), messageID.String())

	ok, err := d.redis.SetNX(ctx, key, 1, dedupTTL).Result()
	if err != nil {
		// Redis caído no puede bloquear el procesamiento
		log.Printf("⚠️  Redis dedup check failed: %v", err)
		return true
	}

	return ok
}
