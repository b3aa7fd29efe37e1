// Package result предоставляет закрытый структурированный тип результата
// операции: статус, опциональное типизированное значение и детализацию
// ошибок. Обработчики возвращают его вместо паники или ошибки для ожидаемых
// бизнес-отказов; движок диспетчеризации трактует его как обычное значение.
package result

import (
	"github.com/google/uuid"
)

// Status определяет исход операции.
type Status int

const (
	// StatusOk — операция выполнена успешно.
	StatusOk Status = iota
	// StatusCreated — операция создала новый ресурс.
	StatusCreated
	// StatusNoContent — операция выполнена успешно, содержимого нет.
	StatusNoContent
	// StatusBadRequest — запрос сформирован некорректно.
	StatusBadRequest
	// StatusError — операция завершилась ошибкой.
	StatusError
	// StatusInvalid — входные данные не прошли валидацию.
	StatusInvalid
	// StatusNotFound — запрошенный ресурс не найден.
	StatusNotFound
	// StatusUnauthorized — вызывающая сторона не аутентифицирована.
	StatusUnauthorized
	// StatusForbidden — вызывающей стороне отказано в доступе.
	StatusForbidden
	// StatusConflict — операция конфликтует с текущим состоянием.
	StatusConflict
	// StatusCriticalError — критическая ошибка.
	StatusCriticalError
	// StatusUnavailable — зависимость или сервис недоступны.
	StatusUnavailable
)

// statusNames содержит отображаемые имена статусов.
var statusNames = map[Status]string{
	StatusOk:            "Ok",
	StatusCreated:       "Created",
	StatusNoContent:     "NoContent",
	StatusBadRequest:    "BadRequest",
	StatusError:         "Error",
	StatusInvalid:       "Invalid",
	StatusNotFound:      "NotFound",
	StatusUnauthorized:  "Unauthorized",
	StatusForbidden:     "Forbidden",
	StatusConflict:      "Conflict",
	StatusCriticalError: "CriticalError",
	StatusUnavailable:   "Unavailable",
}

// String возвращает отображаемое имя статуса.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Success сообщает, является ли статус успешным. Успешными считаются
// только Ok, NoContent и Created.
func (s Status) Success() bool {
	return s == StatusOk || s == StatusNoContent || s == StatusCreated
}

// ValidationError — ошибка валидации, привязанная к конкретному полю.
// Ошибки валидации хранятся отдельно от общих ошибок, чтобы потребитель мог
// отобразить их на уровне полей пользовательского интерфейса.
type ValidationError struct {
	Field   string
	Message string
}

// Result представляет исход операции без типизированного значения.
// После конструирования значение неизменяемо; методы With* возвращают копию.
type Result struct {
	status           Status
	errors           []string
	validationErrors []ValidationError
	successMessage   string
	correlationID    string
	location         string
}

// Status возвращает статус операции.
func (r Result) Status() Status {
	return r.status
}

// IsSuccess сообщает, завершилась ли операция успешно.
func (r Result) IsSuccess() bool {
	return r.status.Success()
}

// Errors возвращает общие сообщения об ошибках в порядке добавления.
func (r Result) Errors() []string {
	return r.errors
}

// ValidationErrors возвращает ошибки валидации в порядке добавления.
func (r Result) ValidationErrors() []ValidationError {
	return r.validationErrors
}

// SuccessMessage возвращает сообщение об успехе.
func (r Result) SuccessMessage() string {
	return r.successMessage
}

// CorrelationID возвращает идентификатор корреляции.
func (r Result) CorrelationID() string {
	return r.correlationID
}

// Location возвращает расположение созданного ресурса.
func (r Result) Location() string {
	return r.location
}

// WithCorrelationID возвращает копию результата с указанным идентификатором
// корреляции.
func (r Result) WithCorrelationID(id string) Result {
	r.correlationID = id
	return r
}

// WithLocation возвращает копию результата с указанным расположением.
func (r Result) WithLocation(location string) Result {
	r.location = location
	return r
}

// WithSuccessMessage возвращает копию результата с указанным сообщением об
// успехе.
func (r Result) WithSuccessMessage(message string) Result {
	r.successMessage = message
	return r
}

// NewCorrelationID возвращает новый идентификатор корреляции.
func NewCorrelationID() string {
	return uuid.NewString()
}

// Ok возвращает успешный результат.
func Ok() Result {
	return Result{status: StatusOk}
}

// OkWithMessage возвращает успешный результат с сообщением об успехе.
func OkWithMessage(message string) Result {
	return Result{status: StatusOk, successMessage: message}
}

// Created возвращает результат создания ресурса с его расположением.
func Created(location string) Result {
	return Result{status: StatusCreated, location: location}
}

// NoContent возвращает успешный результат без содержимого.
func NoContent() Result {
	return Result{status: StatusNoContent}
}

// BadRequest возвращает результат с некорректным запросом.
func BadRequest(errs ...string) Result {
	return Result{status: StatusBadRequest, errors: errs}
}

// Error возвращает результат с ошибкой.
func Error(errs ...string) Result {
	return Result{status: StatusError, errors: errs}
}

// Invalid возвращает результат с ошибками валидации.
func Invalid(validationErrors ...ValidationError) Result {
	return Result{status: StatusInvalid, validationErrors: validationErrors}
}

// NotFound возвращает результат с отсутствующим ресурсом.
func NotFound(errs ...string) Result {
	return Result{status: StatusNotFound, errors: errs}
}

// Unauthorized возвращает результат с отсутствием аутентификации.
func Unauthorized(errs ...string) Result {
	return Result{status: StatusUnauthorized, errors: errs}
}

// Forbidden возвращает результат с отказом в доступе.
func Forbidden(errs ...string) Result {
	return Result{status: StatusForbidden, errors: errs}
}

// Conflict возвращает результат с конфликтом состояния.
func Conflict(errs ...string) Result {
	return Result{status: StatusConflict, errors: errs}
}

// CriticalError возвращает результат с критической ошибкой.
func CriticalError(errs ...string) Result {
	return Result{status: StatusCriticalError, errors: errs}
}

// Unavailable возвращает результат с недоступной зависимостью.
func Unavailable(errs ...string) Result {
	return Result{status: StatusUnavailable, errors: errs}
}
