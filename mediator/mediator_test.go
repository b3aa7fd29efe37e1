package mediator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x-research-team/mediator-framework/mediator"
)

// Тестовые сообщения.
type ping struct {
	ID    string
	Value string
}

type orphan struct {
	Value string
}

type broadcast struct {
	Value string
}

// newMediator создает движок поверх свежего реестра для теста.
func newMediator(t *testing.T, configure func(reg *mediator.Registry)) mediator.IMediator {
	t.Helper()

	registry := mediator.NewRegistry()
	if configure != nil {
		configure(registry)
	}

	m, err := mediator.New(registry)
	require.NoError(t, err, "Создание движка не должно вызывать ошибку")
	return m
}

// Тест успешной одиночной диспетчеризации через синхронный обработчик.
func TestMediator_Invoke_Success(t *testing.T) {
	t.Parallel()

	m := newMediator(t, func(reg *mediator.Registry) {
		err := mediator.RegisterHandler(reg, "pingHandler", func(ctx context.Context, m mediator.IMediator, msg ping) (string, error) {
			return "pong: " + msg.Value, nil
		})
		require.NoError(t, err)
	})

	result, err := mediator.Invoke[string](context.Background(), m, ping{ID: "1", Value: "hello"})
	require.NoError(t, err, "Диспетчеризация не должна вызывать ошибку")
	assert.Equal(t, "pong: hello", result, "Результат обработчика должен вернуться вызывающей стороне")
}

// Тест ошибки при отсутствии обработчика для типа сообщения.
func TestMediator_Invoke_HandlerNotFound(t *testing.T) {
	t.Parallel()

	m := newMediator(t, nil)

	_, err := mediator.Invoke[string](context.Background(), m, orphan{Value: "x"})
	var notFound *mediator.HandlerNotFoundError
	require.ErrorAs(t, err, &notFound, "Диспетчеризация без обработчика должна давать HandlerNotFoundError")
	assert.Equal(t, mediator.KeyFor[orphan](), notFound.Key, "Ошибка должна называть тип сообщения")
}

// Тест отсутствия обработчика на асинхронном пути.
func TestMediator_InvokeAsync_HandlerNotFound(t *testing.T) {
	t.Parallel()

	m := newMediator(t, nil)

	fut := m.InvokeAsync(context.Background(), orphan{}, nil)
	require.True(t, fut.Completed(), "Ошибка поиска должна возвращаться в уже завершенном Future")

	_, err := fut.Await(context.Background())
	var notFound *mediator.HandlerNotFoundError
	require.ErrorAs(t, err, &notFound, "Асинхронная диспетчеризация без обработчика должна давать HandlerNotFoundError")
}

// Тест неоднозначности: два обработчика одного точного типа — ошибка
// конфигурации, а не молчаливый выбор первого.
func TestMediator_Invoke_Ambiguous(t *testing.T) {
	t.Parallel()

	m := newMediator(t, func(reg *mediator.Registry) {
		for _, name := range []string{"first", "second"} {
			err := mediator.RegisterHandler(reg, name, func(ctx context.Context, m mediator.IMediator, msg ping) (string, error) {
				return name, nil
			})
			require.NoError(t, err)
		}
	})

	_, err := mediator.Invoke[string](context.Background(), m, ping{})
	var ambiguous *mediator.AmbiguousHandlerError
	require.ErrorAs(t, err, &ambiguous, "Два обработчика одного типа должны давать AmbiguousHandlerError")
	assert.Equal(t, 2, ambiguous.Count, "Ошибка должна сообщать количество обработчиков")
}

// Тест несоответствия соглашения о вызове: синхронная точка входа не
// принимает асинхронный обработчик.
func TestMediator_Invoke_ConventionMismatch(t *testing.T) {
	t.Parallel()

	m := newMediator(t, func(reg *mediator.Registry) {
		err := mediator.RegisterAsyncHandler(reg, "asyncPing", func(ctx context.Context, m mediator.IMediator, msg ping) *mediator.Future {
			return mediator.CompletedFuture("pong", nil)
		})
		require.NoError(t, err)
	})

	_, err := mediator.Invoke[string](context.Background(), m, ping{})
	var mismatch *mediator.ConventionMismatchError
	require.ErrorAs(t, err, &mismatch, "Синхронный вызов асинхронного обработчика должен давать ConventionMismatchError")
	assert.Equal(t, "asyncPing", mismatch.HandlerName, "Ошибка должна называть обработчик")
}

// Тест асинхронной диспетчеризации синхронного обработчика: результат
// возвращается в уже завершенном Future без приостановки.
func TestMediator_InvokeAsync_SyncHandlerCompletesInline(t *testing.T) {
	t.Parallel()

	m := newMediator(t, func(reg *mediator.Registry) {
		err := mediator.RegisterHandler(reg, "pingHandler", func(ctx context.Context, m mediator.IMediator, msg ping) (string, error) {
			return "pong", nil
		})
		require.NoError(t, err)
	})

	fut := mediator.InvokeAsync[string](context.Background(), m, ping{})
	require.True(t, fut.Completed(), "Результат синхронного обработчика должен быть завершен в момент возврата")

	result, err := mediator.AwaitAs[string](context.Background(), fut)
	require.NoError(t, err)
	assert.Equal(t, "pong", result)
}

// Тест асинхронной диспетчеризации асинхронного обработчика.
func TestMediator_InvokeAsync_AsyncHandler(t *testing.T) {
	t.Parallel()

	m := newMediator(t, func(reg *mediator.Registry) {
		err := mediator.RegisterAsyncHandler(reg, "asyncPing", func(ctx context.Context, m mediator.IMediator, msg ping) *mediator.Future {
			return mediator.GoFuture(func() (any, error) {
				time.Sleep(10 * time.Millisecond)
				return "pong: " + msg.Value, nil
			})
		})
		require.NoError(t, err)
	})

	fut := mediator.InvokeAsync[string](context.Background(), m, ping{Value: "delayed"})
	result, err := mediator.AwaitAs[string](context.Background(), fut)
	require.NoError(t, err, "Ожидание асинхронного обработчика не должно вызывать ошибку")
	assert.Equal(t, "pong: delayed", result)
}

// Тест широковещательной диспетчеризации без обработчиков: успешная
// пустая операция, в отличие от одиночной диспетчеризации.
func TestMediator_Publish_NoHandlersIsNoop(t *testing.T) {
	t.Parallel()

	m := newMediator(t, nil)

	require.NoError(t, m.Publish(context.Background(), orphan{}), "Широковещательная рассылка без обработчиков должна быть успешной")

	_, err := m.PublishAsync(context.Background(), orphan{}).Await(context.Background())
	require.NoError(t, err, "Асинхронная рассылка без обработчиков должна быть успешной")
}

// Тест строгого порядка исполнения при широковещательной рассылке.
func TestMediator_Publish_OrderedFanOut(t *testing.T) {
	t.Parallel()

	var order []string
	m := newMediator(t, func(reg *mediator.Registry) {
		for _, name := range []string{"A", "B", "C"} {
			err := mediator.RegisterHandler(reg, name, func(ctx context.Context, m mediator.IMediator, msg broadcast) (any, error) {
				order = append(order, name)
				return nil, nil
			})
			require.NoError(t, err)
		}
	})

	require.NoError(t, m.Publish(context.Background(), broadcast{}))
	assert.Equal(t, []string{"A", "B", "C"}, order, "Обработчики должны исполняться строго в порядке регистрации")
}

// Тест политики fail-fast: ошибка второго обработчика останавливает рассылку,
// третий обработчик не исполняется, ошибка распространяется вызывающей стороне.
func TestMediator_Publish_FailFast(t *testing.T) {
	t.Parallel()

	boom := errors.New("отказ обработчика B")
	var order []string
	m := newMediator(t, func(reg *mediator.Registry) {
		for _, name := range []string{"A", "B", "C"} {
			err := mediator.RegisterHandler(reg, name, func(ctx context.Context, m mediator.IMediator, msg broadcast) (any, error) {
				order = append(order, name)
				if name == "B" {
					return nil, boom
				}
				return nil, nil
			})
			require.NoError(t, err)
		}
	})

	err := m.Publish(context.Background(), broadcast{})
	require.ErrorIs(t, err, boom, "Ошибка обработчика должна распространяться без обертки")
	assert.Equal(t, []string{"A", "B"}, order, "Обработчики после отказавшего не должны исполняться")
}

// Тест несоответствия соглашения при широковещательной рассылке: асинхронный
// обработчик среди совпадений — ошибка, при которой не исполняется ни один
// обработчик.
func TestMediator_Publish_AsyncHandlerRejectedBeforeExecution(t *testing.T) {
	t.Parallel()

	var executed bool
	m := newMediator(t, func(reg *mediator.Registry) {
		err := mediator.RegisterHandler(reg, "syncHandler", func(ctx context.Context, m mediator.IMediator, msg broadcast) (any, error) {
			executed = true
			return nil, nil
		})
		require.NoError(t, err)

		err = mediator.RegisterAsyncHandler(reg, "asyncHandler", func(ctx context.Context, m mediator.IMediator, msg broadcast) *mediator.Future {
			executed = true
			return mediator.CompletedFuture(nil, nil)
		})
		require.NoError(t, err)
	})

	err := m.Publish(context.Background(), broadcast{})
	var mismatch *mediator.ConventionMismatchError
	require.ErrorAs(t, err, &mismatch, "Асинхронный обработчик в синхронной рассылке должен давать ConventionMismatchError")
	assert.False(t, executed, "Ни один обработчик не должен исполняться")
}

// Тест последовательной асинхронной рассылки: каждый обработчик завершается
// до запуска следующего, порядок регистрации сохраняется.
func TestMediator_PublishAsync_Sequential(t *testing.T) {
	t.Parallel()

	var order []string
	m := newMediator(t, func(reg *mediator.Registry) {
		err := mediator.RegisterAsyncHandler(reg, "slow", func(ctx context.Context, m mediator.IMediator, msg broadcast) *mediator.Future {
			return mediator.GoFuture(func() (any, error) {
				time.Sleep(20 * time.Millisecond)
				order = append(order, "slow")
				return nil, nil
			})
		})
		require.NoError(t, err)

		err = mediator.RegisterHandler(reg, "fast", func(ctx context.Context, m mediator.IMediator, msg broadcast) (any, error) {
			order = append(order, "fast")
			return nil, nil
		})
		require.NoError(t, err)
	})

	_, err := m.PublishAsync(context.Background(), broadcast{}).Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"slow", "fast"}, order, "Медленный обработчик должен завершиться до запуска следующего")
}

// Тест fail-fast на асинхронном пути рассылки.
func TestMediator_PublishAsync_FailFast(t *testing.T) {
	t.Parallel()

	boom := errors.New("отказ асинхронного обработчика")
	var executed bool
	m := newMediator(t, func(reg *mediator.Registry) {
		err := mediator.RegisterAsyncHandler(reg, "failing", func(ctx context.Context, m mediator.IMediator, msg broadcast) *mediator.Future {
			return mediator.GoFuture(func() (any, error) {
				return nil, boom
			})
		})
		require.NoError(t, err)

		err = mediator.RegisterHandler(reg, "next", func(ctx context.Context, m mediator.IMediator, msg broadcast) (any, error) {
			executed = true
			return nil, nil
		})
		require.NoError(t, err)
	})

	_, err := m.PublishAsync(context.Background(), broadcast{}).Await(context.Background())
	require.ErrorIs(t, err, boom, "Ошибка обработчика должна распространяться без обертки")
	assert.False(t, executed, "Обработчики после отказавшего не должны исполняться")
}

// Тест заморозки реестра первой диспетчеризацией.
func TestMediator_FirstDispatchFreezesRegistry(t *testing.T) {
	t.Parallel()

	registry := mediator.NewRegistry()
	m, err := mediator.New(registry)
	require.NoError(t, err)

	require.NoError(t, m.Publish(context.Background(), broadcast{}), "Первая диспетчеризация должна пройти успешно")
	require.True(t, registry.Frozen(), "Первая диспетчеризация должна заморозить реестр")

	err = mediator.RegisterHandler(registry, "late", func(ctx context.Context, m mediator.IMediator, msg broadcast) (any, error) {
		return nil, nil
	})
	var frozen *mediator.FrozenRegistryError
	require.ErrorAs(t, err, &frozen, "Регистрация после первой диспетчеризации должна давать FrozenRegistryError")
}

// Тест распространения ошибки обработчика при одиночной диспетчеризации.
func TestMediator_Invoke_HandlerFaultPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("внутренний отказ")
	m := newMediator(t, func(reg *mediator.Registry) {
		err := mediator.RegisterHandler(reg, "failing", func(ctx context.Context, m mediator.IMediator, msg ping) (string, error) {
			return "", boom
		})
		require.NoError(t, err)
	})

	_, err := mediator.Invoke[string](context.Background(), m, ping{})
	require.ErrorIs(t, err, boom, "Ошибка обработчика должна распространяться без обертки")
}

// Тест сквозной передачи сигнала отмены в тунк обработчика.
func TestMediator_Invoke_CancellationPassedThrough(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := newMediator(t, func(reg *mediator.Registry) {
		err := mediator.RegisterHandler(reg, "observer", func(ctx context.Context, m mediator.IMediator, msg ping) (string, error) {
			return "", ctx.Err()
		})
		require.NoError(t, err)
	})

	_, err := mediator.Invoke[string](ctx, m, ping{})
	require.ErrorIs(t, err, context.Canceled, "Сигнал отмены должен передаваться в обработчик без изменений")
}
