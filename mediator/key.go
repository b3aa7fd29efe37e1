package mediator

import (
	"strings"

	"github.com/goccy/go-reflect"
)

// MessageKey представляет собой стабильный, инъективный идентификатор
// конкретного типа сообщения во время выполнения. Два ключа равны тогда и
// только тогда, когда они обозначают один и тот же конкретный тип, включая
// различные закрытые инстанциации одного и того же обобщенного определения.
// Ключ пригоден для использования в качестве ключа map.
type MessageKey struct {
	rtype reflect.Type
}

// KeyOf возвращает ключ для конкретного значения сообщения.
func KeyOf(msg any) MessageKey {
	return MessageKey{rtype: reflect.TypeOf(msg)}
}

// KeyFor возвращает ключ для типа M без создания значения этого типа.
func KeyFor[M any]() MessageKey {
	return MessageKey{rtype: reflect.TypeOf((*M)(nil)).Elem()}
}

// Type возвращает тип, который идентифицирует данный ключ.
func (k MessageKey) Type() reflect.Type {
	return k.rtype
}

// IsZero сообщает, является ли ключ нулевым (не привязанным к типу).
func (k MessageKey) IsZero() bool {
	return k.rtype == nil
}

// String возвращает полное имя типа сообщения.
func (k MessageKey) String() string {
	if k.rtype == nil {
		return "<nil>"
	}
	return k.rtype.String()
}

// genericShape извлекает из закрытого обобщенного типа имя его обобщенного
// определения и количество аргументов типа. Для необобщенных и безымянных
// типов возвращает ok == false.
func genericShape(t reflect.Type) (definition string, arity int, ok bool) {
	if t == nil || t.Name() == "" {
		return "", 0, false
	}

	s := t.String()
	open := strings.IndexByte(s, '[')
	if open < 0 || !strings.HasSuffix(s, "]") {
		return "", 0, false
	}

	// Аргументы типа считаются по запятым верхнего уровня: вложенные
	// инстанциации вида Envelope[Pair[A, B]], сигнатуры функций вида
	// func(int, string) и анонимные структуры не увеличивают арность.
	depth := 0
	arity = 1
	for _, r := range s[open+1 : len(s)-1] {
		switch r {
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
		case ',':
			if depth == 0 {
				arity++
			}
		}
	}

	return s[:open], arity, true
}

// isUntyped сообщает, обозначает ли ожидаемый тип ответа "любой" тип.
// Нетипизированным считается nil, а также пустой интерфейс.
func isUntyped(t reflect.Type) bool {
	if t == nil {
		return true
	}
	return t.Kind() == reflect.Interface && t.NumMethod() == 0
}

// isNilValue сообщает, является ли значение nil, учитывая типизированные
// nil-указатели, срезы, карты, функции и каналы внутри интерфейса.
func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
