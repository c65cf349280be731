package realtime

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"cargodesk-backend/internal/metrics"

	"github.com/redis/go-redis/v9"
)

const (
	RelayChannel   = "support:events"
	presencePrefix = "support:presence:"
	presenceTTL    = 2 * time.Hour
	outboxSize     = 1024
	redisTimeout   = 2 * time.Second
)

// RedisRelay carries hub events between instances over Redis pub/sub and
// keeps per-user connection counters so that any instance can tell whether
// a user is online somewhere.
type RedisRelay struct {
	rdb    *redis.Client
	hub    *Hub
	outbox chan envelope
}

func NewRedisRelay(rdb *redis.Client, hub *Hub) *RedisRelay {
	r := &RedisRelay{rdb: rdb, hub: hub, outbox: make(chan envelope, outboxSize)}
	hub.UseRelay(r)
	return r
}

// Run publishes queued envelopes and delivers relayed ones to the local hub
// until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) {
	pubsub := r.rdb.Subscribe(ctx, RelayChannel)
	defer pubsub.Close()
	ch := pubsub.Channel()

	log.Printf("[Relay] subscribed to Redis channel %s", RelayChannel)
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-r.outbox:
			data, err := json.Marshal(env)
			if err != nil {
				log.Printf("[Relay] marshal: %v", err)
				continue
			}
			if err := r.rdb.Publish(ctx, RelayChannel, data).Err(); err != nil {
				// Redis is down; keep this instance's viewers served.
				log.Printf("[Relay] publish failed, delivering locally: %v", err)
				r.hub.deliver(env)
			}
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("[Relay] invalid payload: %v", err)
				continue
			}
			r.hub.deliver(env)
		}
	}
}

func (r *RedisRelay) publish(env envelope) {
	select {
	case r.outbox <- env:
	default:
		metrics.RealtimeDropped.Inc()
	}
}

func (r *RedisRelay) connected(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	key := presencePrefix + userID
	pipe := r.rdb.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, presenceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[Relay] presence up %s: %v", userID, err)
	}
}

func (r *RedisRelay) disconnected(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	key := presencePrefix + userID
	n, err := r.rdb.Decr(ctx, key).Result()
	if err != nil {
		log.Printf("[Relay] presence down %s: %v", userID, err)
		return
	}
	if n <= 0 {
		r.rdb.Del(ctx, key)
	}
}

// Touch extends the presence counter of a live user.
func (r *RedisRelay) Touch(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	r.rdb.Expire(ctx, presencePrefix+userID, presenceTTL)
}

func (r *RedisRelay) online(userID string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	n, err := r.rdb.Get(ctx, presencePrefix+userID).Int64()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[Relay] presence lookup %s: %v", userID, err)
		}
		return false
	}
	return n > 0
}

func (r *RedisRelay) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}
