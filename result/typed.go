package result

// Typed представляет исход операции с типизированным значением T.
// Значение имеет смысл только для успешных статусов; для отказов оно
// остается нулевым значением типа T.
type Typed[T any] struct {
	Result
	value T
}

// Value возвращает типизированное значение. Для неуспешного результата
// возвращается нулевое значение типа T, а не ошибка.
func (r Typed[T]) Value() T {
	return r.value
}

// OkValue возвращает успешный типизированный результат со значением.
func OkValue[T any](value T) Typed[T] {
	return Typed[T]{Result: Ok(), value: value}
}

// FromValue возвращает успешный типизированный результат со значением.
// Синоним OkValue, именующий направление преобразования.
func FromValue[T any](value T) Typed[T] {
	return OkValue(value)
}

// CreatedValue возвращает типизированный результат создания ресурса.
func CreatedValue[T any](value T, location string) Typed[T] {
	return Typed[T]{Result: Created(location), value: value}
}

// ToResult преобразует типизированный результат в нетипизированный.
// Статус, ошибки, сообщения, идентификатор корреляции и расположение
// сохраняются; значение отбрасывается.
func ToResult[T any](r Typed[T]) Result {
	return r.Result
}

// FromResult преобразует нетипизированный результат в типизированный.
// Статус, ошибки, сообщения, идентификатор корреляции и расположение
// сохраняются; значение остается нулевым значением типа T.
func FromResult[T any](r Result) Typed[T] {
	return Typed[T]{Result: r}
}

// WithValue возвращает копию результата с указанным значением.
func (r Typed[T]) WithValue(value T) Typed[T] {
	r.value = value
	return r
}
