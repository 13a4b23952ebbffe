// Package mq carries events and tasks between stages over named durable queues.
package mq

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrQueueConnection = errors.New("queue connection failure")

type Message struct {
	Topic string
	Body  []byte
}

// Queue is a FIFO per topic. BlockingPop checks topics in the order given and
// returns (nil, nil) when nothing arrived before the timeout.
type Queue interface {
	Push(ctx context.Context, topic string, body []byte) error
	BlockingPop(ctx context.Context, timeout time.Duration, topics ...string) (*Message, error)
	Close() error
}

// ConnectionError means the backend could not be reached. Callers back off and retry.
type ConnectionError struct {
	Backend string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Backend, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrQueueConnection }
