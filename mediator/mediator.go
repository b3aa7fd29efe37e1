// Package mediator реализует внутрипроцессный движок диспетчеризации
// сообщений: значение сообщения маршрутизируется нулю, одному или многим
// зарегистрированным обработчикам, синхронное и асинхронное исполнение
// обработчиков унифицировано за единым соглашением о вызове, а результаты
// кортежной формы порождают каскадную публикацию побочных сообщений.
// Движок не содержит собственного планировщика: каждая диспетчеризация
// выполняется в контексте конкурентности вызывающей стороны.
package mediator

import (
	"context"
	"fmt"
	"sync"

	"log/slog"

	"github.com/goccy/go-reflect"
)

// IMediator определяет основной интерфейс движка диспетчеризации.
//
// Invoke и InvokeAsync выполняют одиночную диспетчеризацию: для типа
// сообщения должен существовать ровно один обработчик, его результат после
// каскадной обработки возвращается вызывающей стороне. Publish и
// PublishAsync выполняют широковещательную диспетчеризацию: все обработчики
// точного типа исполняются строго в порядке регистрации, их результаты
// отбрасываются.
type IMediator interface {
	// Invoke выполняет одиночную диспетчеризацию через синхронный
	// обработчик. Параметр expected задает ожидаемый тип ответа;
	// nil означает нетипизированный ответ.
	Invoke(ctx context.Context, msg any, expected reflect.Type) (any, error)

	// InvokeAsync выполняет одиночную диспетчеризацию, принимая как
	// синхронный, так и асинхронный обработчик. Результат синхронного
	// обработчика оборачивается в уже завершенный Future без приостановки.
	InvokeAsync(ctx context.Context, msg any, expected reflect.Type) *Future

	// Publish выполняет широковещательную диспетчеризацию через синхронные
	// обработчики. Отсутствие обработчиков не является ошибкой.
	Publish(ctx context.Context, msg any) error

	// PublishAsync выполняет широковещательную диспетчеризацию, ожидая
	// завершения каждого обработчика перед запуском следующего.
	PublishAsync(ctx context.Context, msg any) *Future

	// Shutdown корректно завершает работу движка.
	Shutdown(ctx context.Context) error
}

// mediatorImpl представляет собой реализацию IMediator поверх неизменяемого
// после заморозки реестра.
type mediatorImpl struct {
	registry   *Registry
	provider   Provider
	cfg        *config
	freezeOnce sync.Once
}

// New создает новый, готовый к использованию экземпляр движка поверх
// указанного реестра. Первая диспетчеризация замораживает реестр.
func New(registry *Registry, opts ...Option) (IMediator, error) {
	if registry == nil {
		return nil, fmt.Errorf("реестр обработчиков не задан")
	}

	cfg := &config{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	m := &mediatorImpl{
		registry: registry,
		cfg:      cfg,
	}

	allMiddlewares := []Middleware{
		NewLoggingMiddleware(cfg.logger),
		NewMetricsMiddleware(cfg.meterProvider),
		NewTracingMiddleware(cfg.tracerProvider, cfg.propagator),
	}
	allMiddlewares = append(allMiddlewares, cfg.middlewares...)
	m.provider = applyMiddlewares(newLocalProvider(registry, m, cfg), allMiddlewares...)

	return m, nil
}

// Invoke выполняет одиночную диспетчеризацию через синхронный обработчик.
func (m *mediatorImpl) Invoke(ctx context.Context, msg any, expected reflect.Type) (any, error) {
	m.freezeOnce.Do(m.registry.Freeze)
	return m.provider.Invoke(ctx, msg, expected)
}

// InvokeAsync выполняет одиночную диспетчеризацию по асинхронному соглашению.
func (m *mediatorImpl) InvokeAsync(ctx context.Context, msg any, expected reflect.Type) *Future {
	m.freezeOnce.Do(m.registry.Freeze)
	return m.provider.InvokeAsync(ctx, msg, expected)
}

// Publish выполняет широковещательную диспетчеризацию.
func (m *mediatorImpl) Publish(ctx context.Context, msg any) error {
	m.freezeOnce.Do(m.registry.Freeze)
	return m.provider.Publish(ctx, msg)
}

// PublishAsync выполняет широковещательную диспетчеризацию по асинхронному
// соглашению.
func (m *mediatorImpl) PublishAsync(ctx context.Context, msg any) *Future {
	m.freezeOnce.Do(m.registry.Freeze)
	return m.provider.PublishAsync(ctx, msg)
}

// Shutdown корректно завершает работу движка.
func (m *mediatorImpl) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

// Invoke выполняет одиночную диспетчеризацию и возвращает строго
// типизированный результат. Тип R определяет ожидаемый тип ответа; пустой
// интерфейс означает нетипизированный ответ.
func Invoke[R any](ctx context.Context, m IMediator, msg any) (R, error) {
	raw, err := m.Invoke(ctx, msg, expectedTypeOf[R]())
	var zero R
	if err != nil {
		return zero, err
	}
	if raw == nil {
		return zero, nil
	}
	typed, ok := raw.(R)
	if !ok {
		return zero, &ResponseTypeError{Expected: KeyFor[R]().Type(), Actual: KeyOf(raw).Type()}
	}
	return typed, nil
}

// InvokeAsync выполняет одиночную диспетчеризацию по асинхронному соглашению
// с ожидаемым типом ответа R. Результат извлекается через AwaitAs.
func InvokeAsync[R any](ctx context.Context, m IMediator, msg any) *Future {
	return m.InvokeAsync(ctx, msg, expectedTypeOf[R]())
}

// expectedTypeOf возвращает ожидаемый тип ответа для параметра типа R.
// Пустой интерфейс трактуется как нетипизированный ответ.
func expectedTypeOf[R any]() reflect.Type {
	t := reflect.TypeOf((*R)(nil)).Elem()
	if isUntyped(t) {
		return nil
	}
	return t
}
