package mediator

import (
	"context"
	"sync"
)

// Future представляет результат операции, которая может завершиться позже.
// Уже завершенный Future хранит значение и ошибку непосредственно в себе и
// не аллоцирует канал: ожидание такого Future не приводит к приостановке
// и не создает нагрузку на планировщик на горячих, обычно синхронных путях.
type Future struct {
	done  chan struct{}
	value any
	err   error
}

// CompletedFuture возвращает уже завершенный Future с указанным значением и
// ошибкой. Канал не создается.
func CompletedFuture(value any, err error) *Future {
	return &Future{value: value, err: err}
}

// NewFuture возвращает отложенный Future и функцию его завершения.
// Повторные вызовы функции завершения игнорируются.
func NewFuture() (*Future, func(value any, err error)) {
	f := &Future{done: make(chan struct{})}
	var once sync.Once
	complete := func(value any, err error) {
		once.Do(func() {
			f.value = value
			f.err = err
			close(f.done)
		})
	}
	return f, complete
}

// GoFuture выполняет fn в отдельной горутине и возвращает Future,
// который завершится результатом fn.
func GoFuture(fn func() (any, error)) *Future {
	f, complete := NewFuture()
	go func() {
		complete(fn())
	}()
	return f
}

// Completed сообщает, завершен ли Future, без блокировки.
func (f *Future) Completed() bool {
	if f.done == nil {
		return true
	}
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Await блокирует вызывающую горутину до завершения Future либо до отмены
// контекста. Уже завершенный Future возвращает результат немедленно.
func (f *Future) Await(ctx context.Context) (any, error) {
	if f.done == nil {
		return f.value, f.err
	}
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AwaitAs ожидает завершения Future и приводит результат к типу R.
// Значение nil приводится к нулевому значению R.
func AwaitAs[R any](ctx context.Context, f *Future) (R, error) {
	var zero R
	raw, err := f.Await(ctx)
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
