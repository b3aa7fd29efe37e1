package mediator

import (
	"fmt"

	"github.com/goccy/go-reflect"
)

// HandlerNotFoundError возникает, когда одиночная диспетчеризация не находит
// ни одного обработчика для типа сообщения.
type HandlerNotFoundError struct {
	Key MessageKey
}

// Error реализует интерфейс error.
func (e *HandlerNotFoundError) Error() string {
	return fmt.Sprintf("обработчик для сообщения '%s' не найден", e.Key)
}

// AmbiguousHandlerError возникает, когда для одиночной диспетчеризации
// зарегистрировано более одного обработчика одного и того же точного типа.
// Это ошибка конфигурации: движок не выбирает первый обработчик молча.
type AmbiguousHandlerError struct {
	Key   MessageKey
	Count int
}

// Error реализует интерфейс error.
func (e *AmbiguousHandlerError) Error() string {
	return fmt.Sprintf("для сообщения '%s' зарегистрировано %d обработчиков: одиночная диспетчеризация неоднозначна", e.Key, e.Count)
}

// ConventionMismatchError возникает, когда синхронная точка входа вызывается
// для асинхронного обработчика: синхронный вызов не может ожидать асинхронную
// операцию. Ни один обработчик при этом не выполняется.
type ConventionMismatchError struct {
	Key         MessageKey
	HandlerName string
}

// Error реализует интерфейс error.
func (e *ConventionMismatchError) Error() string {
	return fmt.Sprintf("обработчик '%s' для сообщения '%s' является асинхронным и требует асинхронной точки входа", e.HandlerName, e.Key)
}

// FrozenRegistryError возникает при попытке регистрации после того, как
// реестр был заморожен первой диспетчеризацией.
type FrozenRegistryError struct{}

// Error реализует интерфейс error.
func (e *FrozenRegistryError) Error() string {
	return "реестр заморожен: регистрация после начала диспетчеризации запрещена"
}

// DuplicateHandlerError возникает при повторной регистрации пары
// (тип сообщения, имя обработчика).
type DuplicateHandlerError struct {
	Key         MessageKey
	HandlerName string
}

// Error реализует интерфейс error.
func (e *DuplicateHandlerError) Error() string {
	return fmt.Sprintf("обработчик '%s' для сообщения '%s' уже зарегистрирован", e.HandlerName, e.Key)
}

// ResponseTypeError возникает, когда фактический тип ответа обработчика не
// может быть приведен к ожидаемому типу.
type ResponseTypeError struct {
	Expected reflect.Type
	Actual   reflect.Type
}

// Error реализует интерфейс error.
func (e *ResponseTypeError) Error() string {
	return fmt.Sprintf("тип ответа '%s' не соответствует ожидаемому типу '%s'", e.Actual, e.Expected)
}
