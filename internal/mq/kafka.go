package mq

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Async:                  false,
	}
}

func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		MaxWait:        time.Second,
	})
}

// KafkaQueue maps each queue onto a topic read by one consumer group per
// service, so every message is handled once per group.
type KafkaQueue struct {
	brokers []string
	group   string
	writer  *kafka.Writer

	mu      sync.Mutex
	readers map[string]*kafka.Reader
}

func NewKafkaQueue(brokers []string, group string) *KafkaQueue {
	return &KafkaQueue{
		brokers: brokers,
		group:   group,
		writer:  NewWriter(brokers),
		readers: make(map[string]*kafka.Reader),
	}
}

// TopicName turns a queue key such as "agent:task:route_planner" into a legal Kafka topic.
func TopicName(queue string) string {
	return strings.NewReplacer(":", ".", "/", ".", " ", "_").Replace(queue)
}

func (q *KafkaQueue) Push(ctx context.Context, topic string, body []byte) error {
	err := q.writer.WriteMessages(ctx, kafka.Message{
		Topic: TopicName(topic),
		Value: body,
		Time:  time.Now().UTC(),
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ConnectionError{Backend: "kafka", Err: err}
	}
	return nil
}

// BlockingPop splits the timeout across topics in order. Higher-priority
// topics are always polled first on each call.
func (q *KafkaQueue) BlockingPop(ctx context.Context, timeout time.Duration, topics ...string) (*Message, error) {
	if len(topics) == 0 {
		return nil, errors.New("no topics to pop from")
	}
	slice := timeout / time.Duration(len(topics))
	if slice <= 0 {
		slice = timeout
	}

	for _, topic := range topics {
		reader := q.reader(topic)

		readCtx, cancel := context.WithTimeout(ctx, slice)
		msg, err := reader.ReadMessage(readCtx)
		cancel()

		if err == nil {
			return &Message{Topic: topic, Body: msg.Value}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			continue
		}
		return nil, &ConnectionError{Backend: "kafka", Err: err}
	}

	return nil, nil
}

func (q *KafkaQueue) reader(topic string) *kafka.Reader {
	q.mu.Lock()
	defer q.mu.Unlock()

	if r, ok := q.readers[topic]; ok {
		return r
	}
	r := NewReader(q.brokers, TopicName(topic), q.group)
	q.readers[topic] = r
	return r
}

func (q *KafkaQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	errs := []error{q.writer.Close()}
	for _, r := range q.readers {
		errs = append(errs, r.Close())
	}
	return errors.Join(errs...)
}
