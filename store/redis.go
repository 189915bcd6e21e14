package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/subzero-cache/subzero/message"
)

// RedisOptions configures a RedisStore, mirroring the §6 configuration
// keys.
type RedisOptions struct {
	Host                 string
	Port                 int
	Socket               string
	Timeout              time.Duration
	KeepAliveIdleTimeout time.Duration
	PoolSize             int
	Database             int
}

// RedisStore is the Store implementation backed by a real Redis (or
// Redis-protocol-compatible) instance, per the external contract of §6.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore opens a pooled connection per opts. The pool's idle timeout
// and size are request-local resource policy (§5): each request borrows a
// connection from this pool for its lifetime and returns it on every exit
// path via the client's own pooling.
func NewRedisStore(opts RedisOptions) *RedisStore {
	addr := opts.Socket
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", opts.Host, opts.Port)
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Second
	}
	poolSize := opts.PoolSize
	if poolSize == 0 {
		poolSize = 100
	}
	client := redis.NewClient(&redis.Options{
		Network:         network(opts.Socket),
		Addr:            addr,
		DB:              opts.Database,
		DialTimeout:     timeout,
		ReadTimeout:     timeout,
		WriteTimeout:    timeout,
		PoolSize:        poolSize,
		ConnMaxIdleTime: opts.KeepAliveIdleTimeout,
	})
	return &RedisStore{client: client}
}

func network(socket string) string {
	if socket != "" {
		return "unix"
	}
	return "tcp"
}

// Read implements Store.
func (s *RedisStore) Read(ctx context.Context, key string) (*Entry, bool, error) {
	var ttlCmd *redis.DurationCmd
	var fieldsCmd *redis.MapStringStringCmd

	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		ttlCmd = pipe.TTL(ctx, key)
		fieldsCmd = pipe.HGetAll(ctx, key)
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: pipeline read: %v", ErrProtocolFault, err)
	}

	remaining := ttlCmd.Val()
	if remaining < 0 {
		return nil, false, nil
	}

	fields := fieldsCmd.Val()
	entry, err := entryFromFields(fields)
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

// Write implements Store.
func (s *RedisStore) Write(ctx context.Context, key, uriFull string, res *message.Response, ttlSeconds int, expiry time.Time) error {
	fields := fieldsFromResponse(uriFull, res)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, toInterfaceMap(fields))
		pipe.Expire(ctx, key, time.Duration(ttlSeconds)*time.Second)
		pipe.ZAdd(ctx, ExpiryIndexKey, redis.Z{
			Score:  float64(expiry.Unix()),
			Member: uriFull,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: pipeline write: %v", ErrProtocolFault, err)
	}
	return nil
}

// Publish implements Store.
func (s *RedisStore) Publish(ctx context.Context, channel, payload string) error {
	if err := s.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("%w: publish: %v", ErrProtocolFault, err)
	}
	return nil
}

// Subscribe implements Store.
func (s *RedisStore) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	pubsub := s.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("%w: subscribe: %v", ErrProtocolFault, err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			out <- msg.Payload
		}
	}()

	return &redisSubscription{pubsub: pubsub, messages: out}, nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

type redisSubscription struct {
	pubsub   *redis.PubSub
	messages chan string
}

func (r *redisSubscription) Messages() <-chan string { return r.messages }
func (r *redisSubscription) Close() error            { return r.pubsub.Close() }

func toInterfaceMap(fields map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
