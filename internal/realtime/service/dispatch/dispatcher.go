// Package dispatch fans one rendered event out to many connections.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"collabhub/internal/realtime/metrics"
	"collabhub/internal/realtime/ports"
	id "collabhub/pkg/domain"
)

const defaultConcurrency = 16

// Dispatcher delivers to each recipient independently. A failing or
// panicking delivery is logged and never affects the other recipients.
// There is no retry.
type Dispatcher struct {
	transport   ports.Transport
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

type Option func(*Dispatcher)

// WithConcurrency caps in-flight deliveries per Dispatch call.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(d *Dispatcher) {
		if tracer != nil {
			d.tracer = tracer
		}
	}
}

func New(transport ports.Transport, opts ...Option) (*Dispatcher, error) {
	if transport == nil {
		return nil, errors.New("transport is required")
	}
	d := &Dispatcher{
		transport:   transport,
		concurrency: defaultConcurrency,
		logger:      slog.New(slog.DiscardHandler),
		tracer:      otel.Tracer("collabhub/realtime/dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dispatch delivers event to every connection and returns the number of
// attempts made, which is always len(conns).
func (d *Dispatcher) Dispatch(ctx context.Context, conns []id.ConnectionID, event string, payload any) int {
	if len(conns) == 0 {
		return 0
	}

	ctx, span := d.tracer.Start(ctx, "dispatch.fanout", trace.WithAttributes(
		attribute.String("realtime.event", event),
		attribute.Int("realtime.recipients", len(conns)),
	))
	defer span.End()

	var (
		g      errgroup.Group
		failed atomic.Int64
	)
	g.SetLimit(d.concurrency)
	for _, connID := range conns {
		g.Go(func() error {
			if err := d.deliver(ctx, connID, event, payload); err != nil {
				failed.Add(1)
				d.logger.WarnContext(ctx, "delivery failed",
					"conn_id", connID,
					"event", event,
					"error", err,
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	span.SetAttributes(attribute.Int64("realtime.failures", failed.Load()))
	if d.metrics != nil {
		d.metrics.ObserveDelivery(len(conns), int(failed.Load()))
	}
	return len(conns)
}

func (d *Dispatcher) deliver(ctx context.Context, connID id.ConnectionID, event string, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("delivery panicked: %v", r)
		}
	}()
	return d.transport.Deliver(ctx, connID, event, payload)
}
