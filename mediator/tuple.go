package mediator

// Tuple представляет собой упорядоченную гетерогенную последовательность
// фиксированной длины. Обработчик, которому помимо основного ответа нужно
// опубликовать побочные сообщения, возвращает их в составе кортежа:
// движок отделяет основной ответ от остальных элементов и публикует
// каждый ненулевой из них как каскадное сообщение.
//
// Длина кортежа фиксируется в месте создания и не изменяется.
type Tuple struct {
	elems []any
}

// NewTuple создает кортеж из перечисленных элементов.
func NewTuple(elems ...any) Tuple {
	copied := make([]any, len(elems))
	copy(copied, elems)
	return Tuple{elems: copied}
}

// Pair создает кортеж из двух элементов.
func Pair(first, second any) Tuple {
	return NewTuple(first, second)
}

// Triple создает кортеж из трех элементов.
func Triple(first, second, third any) Tuple {
	return NewTuple(first, second, third)
}

// Len возвращает количество элементов кортежа.
func (t Tuple) Len() int {
	return len(t.elems)
}

// At возвращает элемент кортежа по индексу.
func (t Tuple) At(i int) any {
	return t.elems[i]
}
