package orchestrator

import (
	"context"

	"github.com/shiroonigami23-ui/ecoroute/internal/metrics"
	"github.com/shiroonigami23-ui/ecoroute/internal/mq"
)

type Publisher struct {
	Queue   mq.Queue
	Metrics *metrics.Metrics
}

func NewPublisher(q mq.Queue, m *metrics.Metrics) *Publisher {
	return &Publisher{Queue: q, Metrics: m}
}

func (p *Publisher) Publish(ctx context.Context, topic string, payload any) error {
	if err := mq.PublishJSON(ctx, p.Queue, topic, payload); err != nil {
		return err
	}
	p.Metrics.Published(topic)
	return nil
}
