package cache

import (
	"context"
	"log"
	"os"

	"github.com/redis/go-redis/v9"
)

// Client backs the yield catalog cache. The catalog client treats a nil or
// unreachable Client as a cache miss, never a failure.
var Client *redis.Client

func InitRedis(ctx context.Context) {
	addr := os.Getenv("REDIS_URL")
	if addr == "" {
		addr = "localhost:6379"
	}
	Client = redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := Client.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	log.Println("Connected to Redis")
}
