package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/shiroonigami23-ui/ecoroute/internal/mq"
)

type popResult struct {
	msg *mq.Message
	err error
}

// scriptedQueue replays queued pop results, then behaves like an empty queue.
type scriptedQueue struct {
	mu      sync.Mutex
	script  []popResult
	pushed  map[string][][]byte
	pops    int
	pushErr error
}

func newScriptedQueue(script ...popResult) *scriptedQueue {
	return &scriptedQueue{script: script, pushed: make(map[string][][]byte)}
}

func (q *scriptedQueue) Push(_ context.Context, topic string, body []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pushErr != nil {
		return q.pushErr
	}
	q.pushed[topic] = append(q.pushed[topic], body)
	return nil
}

func (q *scriptedQueue) BlockingPop(ctx context.Context, timeout time.Duration, _ ...string) (*mq.Message, error) {
	q.mu.Lock()
	q.pops++
	if len(q.script) > 0 {
		next := q.script[0]
		q.script = q.script[1:]
		q.mu.Unlock()
		return next.msg, next.err
	}
	q.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, nil
	}
}

func (q *scriptedQueue) Close() error { return nil }

func (q *scriptedQueue) popCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pops
}

func (q *scriptedQueue) published(topic string) [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([][]byte(nil), q.pushed[topic]...)
}
