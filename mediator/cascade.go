package mediator

import (
	"context"

	"github.com/goccy/go-reflect"
)

// cascade разбирает результат обработчика кортежной формы: отделяет основной
// ответ от остальных элементов и публикует каждый ненулевой из них как
// каскадное сообщение. Результат, не являющийся кортежем, возвращается без
// изменений. Каскадная публикация завершается до возврата вызова — это не
// fire-and-forget.
func (p *localProvider) cascade(ctx context.Context, raw any, expected reflect.Type) (any, error) {
	if raw == nil {
		return nil, nil
	}
	tup, ok := raw.(Tuple)
	if !ok {
		return raw, nil
	}

	// Побочные сообщения публикуются с независимым сигналом отмены: отмена
	// операции вызывающей стороны не должна прерывать публикацию побочных
	// эффектов уже выполнившегося обработчика.
	sideCtx := context.WithoutCancel(ctx)

	if isUntyped(expected) {
		if tup.Len() == 0 {
			return nil, nil
		}
		// Нетипизированный ответ: основным ответом является нулевой элемент,
		// даже если он nil; остальные ненулевые элементы публикуются.
		for i := 1; i < tup.Len(); i++ {
			if err := p.publishSide(sideCtx, tup.At(i)); err != nil {
				return nil, err
			}
		}
		return tup.At(0), nil
	}

	// Типизированный ответ: последний ненулевой элемент, приводимый к
	// ожидаемому типу, становится основным ответом; более ранние кандидаты
	// перезаписываются и публикуются вместе с остальными элементами.
	chosen := -1
	for i := 0; i < tup.Len(); i++ {
		el := tup.At(i)
		if isNilValue(el) {
			continue
		}
		if reflect.TypeOf(el).AssignableTo(expected) {
			chosen = i
		}
	}

	for i := 0; i < tup.Len(); i++ {
		if i == chosen {
			continue
		}
		if err := p.publishSide(sideCtx, tup.At(i)); err != nil {
			return nil, err
		}
	}

	if chosen < 0 {
		return nil, nil
	}
	return tup.At(chosen), nil
}

// publishSide публикует одно каскадное сообщение через полный цикл
// диспетчеризации и дожидается его завершения. Нулевые элементы кортежа
// пропускаются.
func (p *localProvider) publishSide(ctx context.Context, msg any) error {
	if isNilValue(msg) {
		return nil
	}
	_, err := p.mediator.PublishAsync(ctx, msg).Await(ctx)
	return err
}
