package graph

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vanshika/graphrepo/internal/dataaccess"
)

const tracerName = "github.com/vanshika/graphrepo/internal/graph"

// InstrumentOptions configures Instrument. Zero values fall back to the global
// tracer provider, an unregistered set of collectors and a discarded logger.
type InstrumentOptions struct {
	Logger     *slog.Logger
	Registerer prometheus.Registerer
	Tracer     trace.Tracer
}

// InstrumentedClient decorates a Client with metrics, spans and debug logs.
type InstrumentedClient struct {
	next     Client
	logger   *slog.Logger
	tracer   trace.Tracer
	queries  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// Instrument wraps next. Registering collectors that already exist on the
// registerer reuses the existing ones.
func Instrument(next Client, opts InstrumentOptions) (*InstrumentedClient, error) {
	c := &InstrumentedClient{
		next:   next,
		logger: opts.Logger,
		tracer: opts.Tracer,
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphrepo",
			Subsystem: "graph",
			Name:      "queries_total",
			Help:      "Cypher statements executed, by access mode and outcome.",
		}, []string{"mode", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "graphrepo",
			Subsystem: "graph",
			Name:      "query_duration_seconds",
			Help:      "Latency of Cypher statements.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}

	if opts.Registerer != nil {
		var err error
		if c.queries, err = register(opts.Registerer, c.queries); err != nil {
			return nil, err
		}
		if c.duration, err = register(opts.Registerer, c.duration); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, collector C) (C, error) {
	if err := reg.Register(collector); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return collector, err
	}
	return collector, nil
}

func (c *InstrumentedClient) ExecuteWrite(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	return c.observe(ctx, "write", cypher, params, c.next.ExecuteWrite)
}

func (c *InstrumentedClient) ExecuteRead(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	return c.observe(ctx, "read", cypher, params, c.next.ExecuteRead)
}

func (c *InstrumentedClient) VerifyConnectivity(ctx context.Context) error {
	return c.next.VerifyConnectivity(ctx)
}

func (c *InstrumentedClient) Close(ctx context.Context) error {
	return c.next.Close(ctx)
}

type executeFunc func(ctx context.Context, cypher string, params map[string]any) (Result, error)

func (c *InstrumentedClient) observe(ctx context.Context, mode, cypher string, params map[string]any, fn executeFunc) (Result, error) {
	ctx, span := c.tracer.Start(ctx, "graph."+mode, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "neo4j"),
			attribute.String("db.operation", mode),
			attribute.String("db.statement", cypher),
			attribute.Int("db.params", len(params)),
		))
	defer span.End()

	start := time.Now()
	res, err := fn(ctx, cypher, params)
	elapsed := time.Since(start)

	c.duration.WithLabelValues(mode).Observe(elapsed.Seconds())

	if err != nil {
		kind := dataaccess.KindOf(err)
		c.queries.WithLabelValues(mode, kind.String()).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("db.error_kind", kind.String()))
		c.logger.DebugContext(ctx, "cypher failed", "mode", mode, "query", cypher, "error", err, "duration_ms", elapsed.Milliseconds())
		return res, err
	}

	c.queries.WithLabelValues(mode, "ok").Inc()
	span.SetAttributes(
		attribute.Int("db.records", len(res.Records)),
		attribute.Bool("db.contains_updates", res.Stats.ContainsUpdates),
	)
	c.logger.DebugContext(ctx, "cypher executed", "mode", mode, "query", cypher, "records", len(res.Records), "duration_ms", elapsed.Milliseconds())
	return res, nil
}
