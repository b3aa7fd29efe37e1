package mediator

import (
	"context"

	"github.com/goccy/go-reflect"
)

// Provider определяет контракт для сменных механизмов диспетчеризации.
// Цепочка middleware оборачивает провайдер, добавляя сквозную
// функциональность вокруг основной логики маршрутизации.
type Provider interface {
	// Invoke выполняет одиночную диспетчеризацию через синхронный обработчик.
	Invoke(ctx context.Context, msg any, expected reflect.Type) (any, error)

	// InvokeAsync выполняет одиночную диспетчеризацию по асинхронному
	// соглашению.
	InvokeAsync(ctx context.Context, msg any, expected reflect.Type) *Future

	// Publish выполняет широковещательную диспетчеризацию.
	Publish(ctx context.Context, msg any) error

	// PublishAsync выполняет широковещательную диспетчеризацию по
	// асинхронному соглашению.
	PublishAsync(ctx context.Context, msg any) *Future

	// Shutdown корректно завершает работу провайдера.
	Shutdown(ctx context.Context) error
}

// localProvider — локальная, внутрипроцессная реализация провайдера.
// Он консультируется с реестром и исполняет тунки обработчиков в контексте
// конкурентности вызывающей стороны.
type localProvider struct {
	registry *Registry
	// mediator — внешний экземпляр движка, передаваемый в тунки. Повторный
	// вход (каскадная публикация, диспетчеризация из обработчика) проходит
	// через полную цепочку middleware.
	mediator IMediator
	cfg      *config
}

// newLocalProvider создает новый экземпляр локального провайдера.
func newLocalProvider(registry *Registry, mediator IMediator, cfg *config) *localProvider {
	return &localProvider{
		registry: registry,
		mediator: mediator,
		cfg:      cfg,
	}
}

// single возвращает единственную регистрацию для ключа. Ноль регистраций —
// ошибка отсутствия обработчика; больше одной — ошибка конфигурации,
// неоднозначность не разрешается молчаливым выбором первого обработчика.
func (p *localProvider) single(key MessageKey) (*HandlerRegistration, error) {
	regs, err := p.registry.Lookup(key)
	if err != nil {
		return nil, err
	}
	switch len(regs) {
	case 0:
		return nil, &HandlerNotFoundError{Key: key}
	case 1:
		return regs[0], nil
	default:
		return nil, &AmbiguousHandlerError{Key: key, Count: len(regs)}
	}
}

// Invoke выполняет одиночную диспетчеризацию через синхронный обработчик.
func (p *localProvider) Invoke(ctx context.Context, msg any, expected reflect.Type) (any, error) {
	key := KeyOf(msg)
	reg, err := p.single(key)
	if err != nil {
		return nil, err
	}
	if reg.isAsync {
		return nil, &ConventionMismatchError{Key: key, HandlerName: reg.handlerName}
	}

	raw, err := reg.syncThunk(ctx, p.mediator, msg, expected)
	if err != nil {
		return nil, err
	}
	return p.cascade(ctx, raw, expected)
}

// InvokeAsync выполняет одиночную диспетчеризацию по асинхронному соглашению.
// Ошибки поиска и результат синхронного обработчика возвращаются в уже
// завершенном Future: если операция завершена в момент наблюдения, ни
// приостановки, ни аллокации канала не происходит.
func (p *localProvider) InvokeAsync(ctx context.Context, msg any, expected reflect.Type) *Future {
	reg, err := p.single(KeyOf(msg))
	if err != nil {
		return CompletedFuture(nil, err)
	}

	fut := reg.invokeAsync(ctx, p.mediator, msg, expected)
	if fut.Completed() {
		raw, err := fut.Await(ctx)
		if err != nil {
			return CompletedFuture(nil, err)
		}
		raw, err = p.cascade(ctx, raw, expected)
		return CompletedFuture(raw, err)
	}

	out, complete := NewFuture()
	go func() {
		raw, err := fut.Await(ctx)
		if err != nil {
			complete(nil, err)
			return
		}
		complete(p.cascade(ctx, raw, expected))
	}()
	return out
}

// Publish выполняет широковещательную диспетчеризацию через синхронные
// обработчики строго в порядке регистрации. Асинхронный обработчик среди
// совпадений — ошибка соглашения о вызове, при которой не исполняется ни
// один обработчик. Ошибка обработчика останавливает оставшуюся рассылку.
func (p *localProvider) Publish(ctx context.Context, msg any) error {
	key := KeyOf(msg)
	regs, err := p.registry.Lookup(key)
	if err != nil {
		return err
	}

	for _, reg := range regs {
		if reg.isAsync {
			return &ConventionMismatchError{Key: key, HandlerName: reg.handlerName}
		}
	}

	for _, reg := range regs {
		if _, err := reg.syncThunk(ctx, p.mediator, msg, nil); err != nil {
			return err
		}
	}
	return nil
}

// PublishAsync выполняет широковещательную диспетчеризацию, ожидая
// завершения каждого обработчика перед запуском следующего. Пока обработчики
// завершаются синхронно, рассылка идет на горутине вызывающей стороны;
// первый незавершенный Future переносит остаток рассылки в фоновую горутину.
func (p *localProvider) PublishAsync(ctx context.Context, msg any) *Future {
	regs, err := p.registry.Lookup(KeyOf(msg))
	if err != nil {
		return CompletedFuture(nil, err)
	}

	for i := 0; i < len(regs); i++ {
		fut := regs[i].invokeAsync(ctx, p.mediator, msg, nil)
		if !fut.Completed() {
			out, complete := NewFuture()
			go p.publishRest(ctx, msg, regs[i+1:], fut, complete)
			return out
		}
		if _, err := fut.Await(ctx); err != nil {
			return CompletedFuture(nil, err)
		}
	}
	return CompletedFuture(nil, nil)
}

// publishRest дожидается текущего обработчика и последовательно исполняет
// оставшиеся, сохраняя порядок регистрации и политику fail-fast.
func (p *localProvider) publishRest(ctx context.Context, msg any, rest []*HandlerRegistration, current *Future, complete func(any, error)) {
	if _, err := current.Await(ctx); err != nil {
		complete(nil, err)
		return
	}
	for _, reg := range rest {
		fut := reg.invokeAsync(ctx, p.mediator, msg, nil)
		if _, err := fut.Await(ctx); err != nil {
			complete(nil, err)
			return
		}
	}
	complete(nil, nil)
}

// Shutdown в данной реализации не выполняет никаких действий.
func (p *localProvider) Shutdown(ctx context.Context) error {
	return nil
}
