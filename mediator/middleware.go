package mediator

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/goccy/go-reflect"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName    = "github.com/x-research-team/mediator-framework/mediator"
	instrumentationVersion = "0.1.0"
	metricKeyPrefix        = "messaging."
)

// Metadatable реализуется сообщениями, которые переносят метаданные,
// например контекст распределенной трассировки.
type Metadatable interface {
	Metadata() map[string]string
}

// Middleware определяет интерфейс для middleware движка диспетчеризации.
type Middleware interface {
	Wrap(next Provider) Provider
}

// MiddlewareFunc является адаптером, позволяющим использовать обычные
// функции как middleware.
type MiddlewareFunc func(next Provider) Provider

// Wrap реализует интерфейс Middleware.
func (f MiddlewareFunc) Wrap(next Provider) Provider {
	return f(next)
}

// applyMiddlewares применяет цепочку middleware к базовому провайдеру.
func applyMiddlewares(provider Provider, middlewares ...Middleware) Provider {
	p := provider
	for i := len(middlewares) - 1; i >= 0; i-- {
		p = middlewares[i].Wrap(p)
	}
	return p
}

// noopMiddleware представляет собой пустое middleware.
type noopMiddleware struct{}

// Wrap просто возвращает следующий провайдер без изменений.
func (m *noopMiddleware) Wrap(next Provider) Provider {
	return next
}

// observeFuture вызывает observe с результатом Future. Завершенный Future
// наблюдается на месте; незавершенный — из фоновой горутины, при этом
// вызывающая сторона получает Future, завершающийся после наблюдения.
func observeFuture(fut *Future, observe func(err error)) *Future {
	if fut.Completed() {
		_, err := fut.Await(context.Background())
		observe(err)
		return fut
	}

	out, complete := NewFuture()
	go func() {
		value, err := fut.Await(context.Background())
		observe(err)
		complete(value, err)
	}()
	return out
}

// loggingMiddleware реализует Middleware для логирования диспетчеризации.
type loggingMiddleware struct {
	logger *slog.Logger
}

// NewLoggingMiddleware создает новое middleware для логирования.
func NewLoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		return &noopMiddleware{}
	}
	return &loggingMiddleware{logger: logger}
}

// Wrap оборачивает провайдер для добавления логирования.
func (m *loggingMiddleware) Wrap(next Provider) Provider {
	return &loggingProvider{next: next, logger: m.logger}
}

// loggingProvider - это обертка над провайдером, которая добавляет логирование.
type loggingProvider struct {
	next   Provider
	logger *slog.Logger
}

// Invoke логирует и выполняет одиночную диспетчеризацию.
func (p *loggingProvider) Invoke(ctx context.Context, msg any, expected reflect.Type) (result any, err error) {
	msgType, msgID := getMessageTypeAndID(msg)
	p.logger.Debug("одиночная диспетчеризация сообщения", slog.String("message_type", msgType), slog.String("message_id", msgID))

	startTime := time.Now()
	defer func() {
		if err != nil {
			p.logger.Error("ошибка одиночной диспетчеризации",
				slog.String("message_type", msgType),
				slog.String("message_id", msgID),
				slog.Any("error", err),
				slog.Duration("duration", time.Since(startTime)),
			)
		}
	}()

	return p.next.Invoke(ctx, msg, expected)
}

// InvokeAsync логирует и выполняет одиночную диспетчеризацию по асинхронному
// соглашению.
func (p *loggingProvider) InvokeAsync(ctx context.Context, msg any, expected reflect.Type) *Future {
	msgType, msgID := getMessageTypeAndID(msg)
	p.logger.Debug("одиночная асинхронная диспетчеризация сообщения", slog.String("message_type", msgType), slog.String("message_id", msgID))

	startTime := time.Now()
	return observeFuture(p.next.InvokeAsync(ctx, msg, expected), func(err error) {
		if err != nil {
			p.logger.Error("ошибка одиночной асинхронной диспетчеризации",
				slog.String("message_type", msgType),
				slog.String("message_id", msgID),
				slog.Any("error", err),
				slog.Duration("duration", time.Since(startTime)),
			)
		}
	})
}

// Publish логирует и выполняет широковещательную диспетчеризацию.
func (p *loggingProvider) Publish(ctx context.Context, msg any) (err error) {
	msgType, msgID := getMessageTypeAndID(msg)
	p.logger.Debug("широковещательная диспетчеризация сообщения", slog.String("message_type", msgType), slog.String("message_id", msgID))

	startTime := time.Now()
	defer func() {
		if err != nil {
			p.logger.Error("ошибка широковещательной диспетчеризации",
				slog.String("message_type", msgType),
				slog.String("message_id", msgID),
				slog.Any("error", err),
				slog.Duration("duration", time.Since(startTime)),
			)
		}
	}()

	return p.next.Publish(ctx, msg)
}

// PublishAsync логирует и выполняет широковещательную диспетчеризацию по
// асинхронному соглашению.
func (p *loggingProvider) PublishAsync(ctx context.Context, msg any) *Future {
	msgType, msgID := getMessageTypeAndID(msg)
	p.logger.Debug("широковещательная асинхронная диспетчеризация сообщения", slog.String("message_type", msgType), slog.String("message_id", msgID))

	startTime := time.Now()
	return observeFuture(p.next.PublishAsync(ctx, msg), func(err error) {
		if err != nil {
			p.logger.Error("ошибка широковещательной асинхронной диспетчеризации",
				slog.String("message_type", msgType),
				slog.String("message_id", msgID),
				slog.Any("error", err),
				slog.Duration("duration", time.Since(startTime)),
			)
		}
	})
}

// Shutdown делегирует вызов следующему провайдеру в цепочке.
func (p *loggingProvider) Shutdown(ctx context.Context) error {
	return p.next.Shutdown(ctx)
}

// metricsMiddleware реализует Middleware для сбора метрик OpenTelemetry.
type metricsMiddleware struct {
	meter               metric.Meter
	dispatchCounter     metric.Int64Counter
	publishCounter      metric.Int64Counter
	processDurationHist metric.Float64Histogram
}

// NewMetricsMiddleware создает новое middleware для сбора метрик.
func NewMetricsMiddleware(provider metric.MeterProvider) Middleware {
	if provider == nil {
		return &noopMiddleware{}
	}

	meter := provider.Meter(instrumentationName)

	dispatchCounter, err := meter.Int64Counter(
		metricKeyPrefix+"dispatch.count",
		metric.WithDescription("Количество одиночных диспетчеризаций"),
		metric.WithUnit("{messages}"),
	)
	if err != nil {
		panic(fmt.Sprintf("не удалось создать счетчик dispatch.count: %v", err))
	}

	publishCounter, err := meter.Int64Counter(
		metricKeyPrefix+"publish.count",
		metric.WithDescription("Количество широковещательных диспетчеризаций"),
		metric.WithUnit("{messages}"),
	)
	if err != nil {
		panic(fmt.Sprintf("не удалось создать счетчик publish.count: %v", err))
	}

	processDurationHist, err := meter.Float64Histogram(
		metricKeyPrefix+"process.duration",
		metric.WithDescription("Длительность обработки сообщения"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		panic(fmt.Sprintf("не удалось создать гистограмму process.duration: %v", err))
	}

	return &metricsMiddleware{
		meter:               meter,
		dispatchCounter:     dispatchCounter,
		publishCounter:      publishCounter,
		processDurationHist: processDurationHist,
	}
}

// Wrap оборачивает провайдер для добавления сбора метрик.
func (m *metricsMiddleware) Wrap(next Provider) Provider {
	return &metricsProvider{
		next:                next,
		dispatchCounter:     m.dispatchCounter,
		publishCounter:      m.publishCounter,
		processDurationHist: m.processDurationHist,
	}
}

// metricsProvider - это обертка над провайдером, которая собирает метрики.
type metricsProvider struct {
	next                Provider
	dispatchCounter     metric.Int64Counter
	publishCounter      metric.Int64Counter
	processDurationHist metric.Float64Histogram
}

// record записывает результат одной диспетчеризации.
func (p *metricsProvider) record(ctx context.Context, counter metric.Int64Counter, msgType string, startTime time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("message.type", msgType),
		attribute.String("status", status),
	))
	p.processDurationHist.Record(ctx, float64(time.Since(startTime).Milliseconds()), metric.WithAttributes(
		attribute.String("message.type", msgType),
	))
}

// Invoke собирает метрики одиночной диспетчеризации.
func (p *metricsProvider) Invoke(ctx context.Context, msg any, expected reflect.Type) (any, error) {
	msgType, _ := getMessageTypeAndID(msg)
	startTime := time.Now()
	result, err := p.next.Invoke(ctx, msg, expected)
	p.record(ctx, p.dispatchCounter, msgType, startTime, err)
	return result, err
}

// InvokeAsync собирает метрики одиночной асинхронной диспетчеризации.
func (p *metricsProvider) InvokeAsync(ctx context.Context, msg any, expected reflect.Type) *Future {
	msgType, _ := getMessageTypeAndID(msg)
	startTime := time.Now()
	return observeFuture(p.next.InvokeAsync(ctx, msg, expected), func(err error) {
		p.record(ctx, p.dispatchCounter, msgType, startTime, err)
	})
}

// Publish собирает метрики широковещательной диспетчеризации.
func (p *metricsProvider) Publish(ctx context.Context, msg any) error {
	msgType, _ := getMessageTypeAndID(msg)
	startTime := time.Now()
	err := p.next.Publish(ctx, msg)
	p.record(ctx, p.publishCounter, msgType, startTime, err)
	return err
}

// PublishAsync собирает метрики широковещательной асинхронной диспетчеризации.
func (p *metricsProvider) PublishAsync(ctx context.Context, msg any) *Future {
	msgType, _ := getMessageTypeAndID(msg)
	startTime := time.Now()
	return observeFuture(p.next.PublishAsync(ctx, msg), func(err error) {
		p.record(ctx, p.publishCounter, msgType, startTime, err)
	})
}

// Shutdown делегирует вызов.
func (p *metricsProvider) Shutdown(ctx context.Context) error {
	return p.next.Shutdown(ctx)
}

// tracingMiddleware реализует Middleware для распределенной трассировки
// OpenTelemetry.
type tracingMiddleware struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// NewTracingMiddleware создает новое middleware для трассировки.
func NewTracingMiddleware(tp trace.TracerProvider, p propagation.TextMapPropagator) Middleware {
	if tp == nil {
		return &noopMiddleware{}
	}

	if p == nil {
		p = propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
	}

	return &tracingMiddleware{
		tracer: tp.Tracer(
			instrumentationName,
			trace.WithInstrumentationVersion(instrumentationVersion),
		),
		propagator: p,
	}
}

// Wrap оборачивает провайдер для добавления логики трассировки.
func (m *tracingMiddleware) Wrap(next Provider) Provider {
	return &tracingProvider{
		next:       next,
		tracer:     m.tracer,
		propagator: m.propagator,
	}
}

// tracingProvider - это обертка над провайдером, которая управляет спанами
// трассировки.
type tracingProvider struct {
	next       Provider
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// start создает спан обработки сообщения, предварительно извлекая контекст
// трассировки из метаданных сообщения, если оно их переносит.
func (p *tracingProvider) start(ctx context.Context, msg any, kind trace.SpanKind) (context.Context, trace.Span) {
	if md, ok := msg.(Metadatable); ok {
		ctx = p.propagator.Extract(ctx, propagation.MapCarrier(md.Metadata()))
	}

	msgType, _ := getMessageTypeAndID(msg)
	return p.tracer.Start(ctx, fmt.Sprintf("%s process", msgType), trace.WithSpanKind(kind))
}

// Invoke создает спан для одиночной диспетчеризации.
func (p *tracingProvider) Invoke(ctx context.Context, msg any, expected reflect.Type) (result any, err error) {
	ctx, span := p.start(ctx, msg, trace.SpanKindConsumer)
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	return p.next.Invoke(ctx, msg, expected)
}

// InvokeAsync создает спан для одиночной асинхронной диспетчеризации;
// спан завершается вместе с Future.
func (p *tracingProvider) InvokeAsync(ctx context.Context, msg any, expected reflect.Type) *Future {
	ctx, span := p.start(ctx, msg, trace.SpanKindConsumer)
	return observeFuture(p.next.InvokeAsync(ctx, msg, expected), func(err error) {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	})
}

// Publish создает спан для широковещательной диспетчеризации.
func (p *tracingProvider) Publish(ctx context.Context, msg any) (err error) {
	ctx, span := p.start(ctx, msg, trace.SpanKindProducer)
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	if md, ok := msg.(Metadatable); ok {
		p.propagator.Inject(ctx, propagation.MapCarrier(md.Metadata()))
	}

	return p.next.Publish(ctx, msg)
}

// PublishAsync создает спан для широковещательной асинхронной
// диспетчеризации; спан завершается вместе с Future.
func (p *tracingProvider) PublishAsync(ctx context.Context, msg any) *Future {
	ctx, span := p.start(ctx, msg, trace.SpanKindProducer)

	if md, ok := msg.(Metadatable); ok {
		p.propagator.Inject(ctx, propagation.MapCarrier(md.Metadata()))
	}

	return observeFuture(p.next.PublishAsync(ctx, msg), func(err error) {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	})
}

// Shutdown делегирует вызов.
func (p *tracingProvider) Shutdown(ctx context.Context) error {
	return p.next.Shutdown(ctx)
}

// getMessageTypeAndID извлекает тип и идентификатор сообщения с помощью
// рефлексии.
func getMessageTypeAndID(msg any) (string, string) {
	val := reflect.ValueOf(msg)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	msgType := "unknown"
	msgID := "unknown"

	if val.IsValid() {
		msgType = val.Type().String()
		if val.Kind() == reflect.Struct {
			if idField := val.FieldByName("ID"); idField.IsValid() && idField.CanInterface() {
				msgID = fmt.Sprintf("%v", idField.Interface())
			}
		}
	}

	return msgType, msgID
}
