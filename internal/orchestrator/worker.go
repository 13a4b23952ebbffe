// Package orchestrator runs queue-driven stages and routes detected events to
// the planning queue.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/shiroonigami23-ui/ecoroute/internal/metrics"
	"github.com/shiroonigami23-ui/ecoroute/internal/mq"
)

// ErrSkipped marks a message that was understood but deliberately not acted on.
var ErrSkipped = errors.New("task skipped")

type Handler func(ctx context.Context, msg *mq.Message) error

// Worker pops messages from Topics (in priority order) and hands each one to
// Handler. A failing or panicking handler never stops the loop; only ctx does.
type Worker struct {
	Name         string
	Queue        mq.Queue
	Topics       []string
	Handler      Handler
	PollTimeout  time.Duration
	RetryBackoff time.Duration
	ErrorPause   time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Tracer  trace.Tracer
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Queue == nil || w.Handler == nil || len(w.Topics) == 0 {
		return fmt.Errorf("worker %s: queue, handler and topics are required", w.Name)
	}
	if w.PollTimeout <= 0 {
		w.PollTimeout = 5 * time.Second
	}
	if w.Logger == nil {
		w.Logger = slog.Default()
	}
	if w.Tracer == nil {
		w.Tracer = noop.NewTracerProvider().Tracer(w.Name)
	}

	topics := strings.Join(w.Topics, ",")
	w.Logger.Info("worker started", "worker", w.Name, "topics", topics, "poll_timeout", w.PollTimeout)

	for ctx.Err() == nil {
		msg, err := w.Queue.BlockingPop(ctx, w.PollTimeout, w.Topics...)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			w.Metrics.PollError(topics)
			if errors.Is(err, mq.ErrQueueConnection) {
				w.Logger.Warn("queue unavailable, backing off", "worker", w.Name, "topic", topics, "backoff", w.RetryBackoff, "error", err)
				Sleep(ctx, w.RetryBackoff)
				continue
			}
			w.Logger.Error("queue poll failed", "worker", w.Name, "topic", topics, "error", err)
			Sleep(ctx, w.ErrorPause)
			continue
		}
		if msg == nil {
			continue
		}

		if err := w.process(ctx, msg); err != nil && !errors.Is(err, mq.ErrMalformed) {
			Sleep(ctx, w.ErrorPause)
		}
	}

	w.Logger.Info("worker stopped", "worker", w.Name)
	return nil
}

func (w *Worker) process(ctx context.Context, msg *mq.Message) (err error) {
	start := time.Now()
	env, _ := mq.PeekEnvelope(msg)
	logger := w.Logger.With("worker", w.Name, "topic", msg.Topic, "task_type", env.Kind(), "shipment_id", env.ShipmentID)

	ctx, span := w.Tracer.Start(ctx, w.Name+" "+env.Kind())
	span.SetAttributes(
		attribute.String("messaging.destination.name", msg.Topic),
		attribute.String("ecoroute.shipment_id", env.ShipmentID),
	)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}

		outcome := metrics.OutcomeOK
		switch {
		case err == nil:
		case errors.Is(err, ErrSkipped):
			outcome = metrics.OutcomeSkipped
			logger.Info("task skipped", "reason", err)
			err = nil
		case errors.Is(err, mq.ErrMalformed):
			outcome = metrics.OutcomeMalformed
			logger.Warn("dropping malformed message", "error", err)
		default:
			outcome = metrics.OutcomeFailed
			logger.Error("task failed", "error", err)
		}
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		w.Metrics.ObserveTask(w.Name, outcome, time.Since(start))
	}()

	return w.Handler(ctx, msg)
}

// Sleep waits for d or until ctx is done. It reports whether the full wait elapsed.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
