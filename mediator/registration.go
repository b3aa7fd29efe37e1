package mediator

import (
	"context"
	"fmt"

	"github.com/goccy/go-reflect"
	"github.com/google/uuid"
)

// SyncThunk — синхронное соглашение о вызове обработчика. Тунк создается
// внешним инструментом регистрации (кодогенерацией или ручной привязкой) и
// скрывает конкретные типы обработчика за единообразной сигнатурой: один
// косвенный вызов вместо рефлексии на каждую диспетчеризацию.
type SyncThunk func(ctx context.Context, m IMediator, msg any, expected reflect.Type) (any, error)

// AsyncThunk — асинхронное соглашение о вызове обработчика. Возвращаемый
// Future может быть уже завершенным: в этом случае ожидание не приводит к
// приостановке.
type AsyncThunk func(ctx context.Context, m IMediator, msg any, expected reflect.Type) *Future

// HandlerRegistration связывает идентичность одного типа сообщения с тунками
// вызова одного обработчика и его метаданными. Регистрация создается один раз
// на этапе конфигурирования и после этого неизменяема.
type HandlerRegistration struct {
	// id — уникальный идентификатор регистрации (UUID), используется в
	// диагностике и логах.
	id string
	// key — идентичность типа сообщения.
	key MessageKey
	// handlerName — отображаемое имя обработчика.
	handlerName string
	// syncThunk и asyncThunk — тунки вызова; хотя бы один из них не nil.
	syncThunk  SyncThunk
	asyncThunk AsyncThunk
	// isAsync указывает предпочтительное соглашение о вызове.
	isAsync bool
}

// NewRegistration создает регистрацию обработчика. Возвращает ошибку, если
// ключ нулевой либо тунк, соответствующий флагу isAsync, не задан.
func NewRegistration(key MessageKey, handlerName string, syncThunk SyncThunk, asyncThunk AsyncThunk, isAsync bool) (*HandlerRegistration, error) {
	if key.IsZero() {
		return nil, fmt.Errorf("ключ сообщения для обработчика '%s' не задан", handlerName)
	}
	if syncThunk == nil && asyncThunk == nil {
		return nil, fmt.Errorf("обработчик '%s' для сообщения '%s' не имеет ни одного тунка вызова", handlerName, key)
	}
	if isAsync && asyncThunk == nil {
		return nil, fmt.Errorf("обработчик '%s' объявлен асинхронным, но асинхронный тунк не задан", handlerName)
	}
	if !isAsync && syncThunk == nil {
		return nil, fmt.Errorf("обработчик '%s' объявлен синхронным, но синхронный тунк не задан", handlerName)
	}

	return &HandlerRegistration{
		id:          uuid.NewString(),
		key:         key,
		handlerName: handlerName,
		syncThunk:   syncThunk,
		asyncThunk:  asyncThunk,
		isAsync:     isAsync,
	}, nil
}

// Key возвращает идентичность типа сообщения.
func (r *HandlerRegistration) Key() MessageKey {
	return r.key
}

// HandlerName возвращает отображаемое имя обработчика.
func (r *HandlerRegistration) HandlerName() string {
	return r.handlerName
}

// IsAsync сообщает предпочтительное соглашение о вызове обработчика.
func (r *HandlerRegistration) IsAsync() bool {
	return r.isAsync
}

// invokeAsync вызывает обработчик по асинхронному соглашению. Синхронный
// обработчик выполняется на месте, а его результат оборачивается в уже
// завершенный Future без аллокации канала.
func (r *HandlerRegistration) invokeAsync(ctx context.Context, m IMediator, msg any, expected reflect.Type) *Future {
	if r.asyncThunk != nil {
		return r.asyncThunk(ctx, m, msg, expected)
	}
	value, err := r.syncThunk(ctx, m, msg, expected)
	return CompletedFuture(value, err)
}

// RegisterHandler регистрирует синхронный строго типизированный обработчик
// для сообщения типа M, оборачивая его в единообразный тунк.
func RegisterHandler[M any, R any](reg *Registry, handlerName string, handler func(ctx context.Context, m IMediator, msg M) (R, error)) error {
	key := KeyFor[M]()
	thunk := func(ctx context.Context, m IMediator, msg any, _ reflect.Type) (any, error) {
		typed, ok := msg.(M)
		if !ok {
			return nil, &ResponseTypeError{Expected: key.Type(), Actual: KeyOf(msg).Type()}
		}
		value, err := handler(ctx, m, typed)
		if err != nil {
			return nil, err
		}
		return any(value), nil
	}

	registration, err := NewRegistration(key, handlerName, thunk, nil, false)
	if err != nil {
		return err
	}
	return reg.Register(registration)
}

// RegisterAsyncHandler регистрирует асинхронный строго типизированный
// обработчик для сообщения типа M.
func RegisterAsyncHandler[M any](reg *Registry, handlerName string, handler func(ctx context.Context, m IMediator, msg M) *Future) error {
	key := KeyFor[M]()
	thunk := func(ctx context.Context, m IMediator, msg any, _ reflect.Type) *Future {
		typed, ok := msg.(M)
		if !ok {
			return CompletedFuture(nil, &ResponseTypeError{Expected: key.Type(), Actual: KeyOf(msg).Type()})
		}
		return handler(ctx, m, typed)
	}

	registration, err := NewRegistration(key, handlerName, nil, thunk, true)
	if err != nil {
		return err
	}
	return reg.Register(registration)
}
