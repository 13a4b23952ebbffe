package mq

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisQueue struct {
	client *redis.Client
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	if err := q.client.Ping(ctx).Err(); err != nil {
		return &ConnectionError{Backend: "redis", Err: err}
	}
	return nil
}

func (q *RedisQueue) Push(ctx context.Context, topic string, body []byte) error {
	if err := q.client.RPush(ctx, topic, body).Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ConnectionError{Backend: "redis", Err: err}
	}
	return nil
}

// BlockingPop maps onto BLPOP, which already honours key order as priority.
func (q *RedisQueue) BlockingPop(ctx context.Context, timeout time.Duration, topics ...string) (*Message, error) {
	if len(topics) == 0 {
		return nil, errors.New("no topics to pop from")
	}

	res, err := q.client.BLPop(ctx, timeout, topics...).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ConnectionError{Backend: "redis", Err: err}
	case len(res) != 2:
		return nil, nil
	}

	return &Message{Topic: res[0], Body: []byte(res[1])}, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
