package mediator

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// maxGenericArity ограничивает количество несвязанных параметров
// обобщенного определения, поддерживаемых дескриптором.
const maxGenericArity = 10

// ResolverFunc строит регистрацию обработчика-адаптера для конкретного
// закрытого типа сообщения. Поставляется внешним инструментом регистрации
// вместе с дескриптором открытой обобщенной формы.
type ResolverFunc func(key MessageKey) (*HandlerRegistration, error)

// OpenGenericDescriptor связывает открытую (несвязанную) обобщенную форму
// сообщения с формой обертки обработчика. Форма задается квалифицированным
// именем обобщенного определения, например "envelope.Envelope", и арностью.
// Разрешение в конкретную регистрацию выполняется лениво, при первой
// диспетчеризации подходящего закрытого типа, и кешируется.
type OpenGenericDescriptor struct {
	shape   string
	arity   int
	isAsync bool
	resolve ResolverFunc
}

// NewOpenGenericDescriptor создает дескриптор открытой обобщенной формы.
func NewOpenGenericDescriptor(shape string, arity int, isAsync bool, resolve ResolverFunc) (*OpenGenericDescriptor, error) {
	if shape == "" {
		return nil, fmt.Errorf("имя обобщенного определения не задано")
	}
	if arity < 1 || arity > maxGenericArity {
		return nil, fmt.Errorf("арность %d для формы '%s' вне допустимого диапазона 1..%d", arity, shape, maxGenericArity)
	}
	if resolve == nil {
		return nil, fmt.Errorf("функция разрешения для формы '%s' не задана", shape)
	}
	return &OpenGenericDescriptor{
		shape:   shape,
		arity:   arity,
		isAsync: isAsync,
		resolve: resolve,
	}, nil
}

// Shape возвращает квалифицированное имя обобщенного определения.
func (d *OpenGenericDescriptor) Shape() string {
	return d.shape
}

// Arity возвращает количество несвязанных параметров формы.
func (d *OpenGenericDescriptor) Arity() int {
	return d.arity
}

// IsAsync сообщает соглашение о вызове обработчиков данной формы.
func (d *OpenGenericDescriptor) IsAsync() bool {
	return d.isAsync
}

// matches сообщает, унифицируется ли форма дескриптора с закрытым типом,
// описанным парой (определение, арность).
func (d *OpenGenericDescriptor) matches(definition string, arity int) bool {
	return d.shape == definition && d.arity == arity
}

// resolution хранит результат однократного разрешения закрытого типа.
// sync.Once гарантирует, что при конкурентном первом разрешении побеждает
// ровно одна попытка, а проигравшие переиспользуют ее результат.
type resolution struct {
	once sync.Once
	reg  *HandlerRegistration
	err  error
}

// Registry — реестр обработчиков на весь процесс. Он наполняется на этапе
// конфигурирования, после чего замораживается первой диспетчеризацией и
// далее только читается. Единственное исключение — кеш разрешения открытых
// обобщенных форм, который пополняется лениво с дисциплиной
// "вставить, если отсутствует".
type Registry struct {
	mu       sync.RWMutex
	handlers map[MessageKey][]*HandlerRegistration
	open     []*OpenGenericDescriptor
	resolved sync.Map // MessageKey -> *resolution
	frozen   atomic.Bool
}

// NewRegistry создает новый пустой реестр обработчиков.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[MessageKey][]*HandlerRegistration),
	}
}

// Register добавляет регистрацию обработчика в реестр. Порядок регистраций
// сохраняется и определяет порядок исполнения при широковещательной
// диспетчеризации. Возвращает ошибку, если реестр уже заморожен или пара
// (тип сообщения, имя обработчика) уже зарегистрирована.
func (r *Registry) Register(reg *HandlerRegistration) error {
	if reg == nil {
		return fmt.Errorf("регистрация обработчика не задана")
	}
	if r.frozen.Load() {
		return &FrozenRegistryError{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Повторная проверка под блокировкой: заморозка могла произойти между
	// первой проверкой и взятием блокировки.
	if r.frozen.Load() {
		return &FrozenRegistryError{}
	}

	for _, existing := range r.handlers[reg.key] {
		if existing.handlerName == reg.handlerName {
			return &DuplicateHandlerError{Key: reg.key, HandlerName: reg.handlerName}
		}
	}

	r.handlers[reg.key] = append(r.handlers[reg.key], reg)
	return nil
}

// RegisterOpenGeneric добавляет дескриптор открытой обобщенной формы.
// Возвращает ошибку, если реестр уже заморожен.
func (r *Registry) RegisterOpenGeneric(d *OpenGenericDescriptor) error {
	if d == nil {
		return fmt.Errorf("дескриптор открытой формы не задан")
	}
	if r.frozen.Load() {
		return &FrozenRegistryError{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Повторная проверка под блокировкой: заморозка могла произойти между
	// первой проверкой и взятием блокировки.
	if r.frozen.Load() {
		return &FrozenRegistryError{}
	}

	r.open = append(r.open, d)
	return nil
}

// Freeze переводит реестр в режим "только чтение". Повторные вызовы
// безопасны. После заморозки регистрация невозможна; чтение выполняется
// без блокировок.
func (r *Registry) Freeze() {
	if r.frozen.Load() {
		return
	}
	// Флаг выставляется под блокировкой: регистрация, уже прошедшая свою
	// первую проверку флага, перепроверяет его под той же блокировкой и
	// после заморозки получает отказ, а не дописывает карту.
	r.mu.Lock()
	r.frozen.Store(true)
	r.mu.Unlock()
}

// Frozen сообщает, заморожен ли реестр.
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// Lookup возвращает регистрации для указанного ключа в порядке регистрации.
// Если точных совпадений нет, а одна из открытых форм унифицируется с
// закрытой обобщенной инстанциацией ключа, реестр разрешает ее ровно один
// раз, кеширует результат и возвращает его после точных совпадений.
func (r *Registry) Lookup(key MessageKey) ([]*HandlerRegistration, error) {
	exact, descriptors := r.snapshot(key)

	if entry, ok := r.resolved.Load(key); ok {
		return appendResolved(exact, entry.(*resolution))
	}

	if len(exact) > 0 || len(descriptors) == 0 {
		return exact, nil
	}

	definition, arity, ok := genericShape(key.Type())
	if !ok {
		return exact, nil
	}

	var matched *OpenGenericDescriptor
	for _, d := range descriptors {
		if d.matches(definition, arity) {
			matched = d
			break
		}
	}
	if matched == nil {
		return exact, nil
	}

	entry, _ := r.resolved.LoadOrStore(key, &resolution{})
	return appendResolved(exact, r.resolveOnce(key, matched, entry.(*resolution)))
}

// snapshot возвращает точные совпадения и список дескрипторов. После
// заморозки карта обработчиков не изменяется, поэтому чтение выполняется
// без блокировки.
func (r *Registry) snapshot(key MessageKey) ([]*HandlerRegistration, []*OpenGenericDescriptor) {
	if r.frozen.Load() {
		return r.handlers[key], r.open
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	exact := make([]*HandlerRegistration, len(r.handlers[key]))
	copy(exact, r.handlers[key])
	return exact, r.open
}

// resolveOnce выполняет однократное разрешение закрытого типа через
// дескриптор. Конкурентные вызовы для одного ключа дожидаются победителя.
func (r *Registry) resolveOnce(key MessageKey, d *OpenGenericDescriptor, entry *resolution) *resolution {
	entry.once.Do(func() {
		reg, err := d.resolve(key)
		if err != nil {
			entry.err = fmt.Errorf("не удалось разрешить форму '%s' для сообщения '%s': %w", d.shape, key, err)
			return
		}
		entry.reg = reg
	})
	return entry
}

// appendResolved добавляет разрешенную регистрацию после точных совпадений.
func appendResolved(exact []*HandlerRegistration, entry *resolution) ([]*HandlerRegistration, error) {
	if entry.err != nil {
		return nil, entry.err
	}
	if entry.reg == nil {
		return exact, nil
	}
	out := make([]*HandlerRegistration, 0, len(exact)+1)
	out = append(out, exact...)
	out = append(out, entry.reg)
	return out, nil
}

// RegistryEntry описывает одну регистрацию в диагностическом срезе реестра.
type RegistryEntry struct {
	Key         MessageKey
	HandlerName string
	IsAsync     bool
}

// Handlers возвращает диагностический срез всех точных регистраций.
// Порядок между разными ключами не определен.
func (r *Registry) Handlers() []RegistryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]RegistryEntry, 0, len(r.handlers))
	for key, regs := range r.handlers {
		for _, reg := range regs {
			entries = append(entries, RegistryEntry{
				Key:         key,
				HandlerName: reg.handlerName,
				IsAsync:     reg.isAsync,
			})
		}
	}
	return entries
}
