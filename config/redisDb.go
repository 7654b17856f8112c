package config

import (
	"context"
	"log"
	"os"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

var (
	rdb    *redis.Client
	locker *redislock.Client
)

func GetRedisDB() *redis.Client {
	return rdb
}

func GetRedisLock() *redislock.Client {
	return locker
}

// ConnectRedis is optional infrastructure: the redis lock around receipt
// finalization is a cross-instance optimization, never a correctness
// dependency. When REDIS_ADDRESS is unset or redis is unreachable, both
// clients stay nil and callers must tolerate that.
func ConnectRedis() {
	redisAddr := os.Getenv("REDIS_ADDRESS")
	if redisAddr == "" {
		log.Printf("REDIS_ADDRESS not set; running without redis")
		return
	}

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: "",
		DB:       0, // use default DB
		PoolSize: 100,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Printf("redis unreachable (addr=%s): %v; running without redis", redisAddr, err)
		return
	}

	rdb = client
	locker = redislock.New(client)
	log.Printf("connected to redis (addr=%s)", redisAddr)
}
