// Пакет oaipmh — протокольный движок OAI-PMH 2.0: валидация параметров,
// диспетчеризация глаголов, кодек resumption token и рендеринг XML-ответов.
// Движок не зависит от бэкенда: данные запрашиваются через DataSource.
package oaipmh

import (
	"errors"
	"fmt"
)

// ErrorCode — код ошибки OAI-PMH, передаётся в атрибуте code элемента <error>.
type ErrorCode string

// Коды ошибок, определённые протоколом OAI-PMH 2.0 (раздел 3.6).
const (
	CodeBadVerb                 ErrorCode = "badVerb"
	CodeBadArgument             ErrorCode = "badArgument"
	CodeCannotDisseminateFormat ErrorCode = "cannotDisseminateFormat"
	CodeIDDoesNotExist          ErrorCode = "idDoesNotExist"
	CodeNoRecordsMatch          ErrorCode = "noRecordsMatch"
	CodeNoSetHierarchy          ErrorCode = "noSetHierarchy"
	CodeBadResumptionToken      ErrorCode = "badResumptionToken"
)

// Стандартные сообщения для ошибок без контекста запроса.
const (
	msgCannotDisseminateFormat = "The metadata format identified by the value given for the metadataPrefix argument is not supported by the item or by the repository."
	msgIDDoesNotExist          = "The value of the identifier argument is unknown or illegal in this repository."
	msgNoRecordsMatch          = "The combination of the values of the from, until, set and metadataPrefix arguments results in an empty list."
	msgNoSetHierarchy          = "The repository does not support sets."
	msgBadResumptionToken      = "The value of the resumptionToken argument is invalid or expired."
)

// ProtocolError — ошибка уровня протокола.
// Всегда рендерится как <error code="...">message</error> с HTTP 200.
type ProtocolError struct {
	Code    ErrorCode
	Message string
}

// Error реализует интерфейс error.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// --- Конструкторы протокольных ошибок ---

// BadVerb — глагол отсутствует или не распознан.
func BadVerb(message string) *ProtocolError {
	return &ProtocolError{Code: CodeBadVerb, Message: message}
}

// BadArgument — недопустимый, отсутствующий или некорректный параметр.
func BadArgument(message string) *ProtocolError {
	return &ProtocolError{Code: CodeBadArgument, Message: message}
}

// CannotDisseminateFormat — metadataPrefix не поддерживается.
func CannotDisseminateFormat() *ProtocolError {
	return &ProtocolError{Code: CodeCannotDisseminateFormat, Message: msgCannotDisseminateFormat}
}

// IDDoesNotExist — запись с таким идентификатором отсутствует.
func IDDoesNotExist() *ProtocolError {
	return &ProtocolError{Code: CodeIDDoesNotExist, Message: msgIDDoesNotExist}
}

// NoRecordsMatch — выборка пуста.
func NoRecordsMatch() *ProtocolError {
	return &ProtocolError{Code: CodeNoRecordsMatch, Message: msgNoRecordsMatch}
}

// NoSetHierarchy — бэкенд не вернул список наборов.
func NoSetHierarchy() *ProtocolError {
	return &ProtocolError{Code: CodeNoSetHierarchy, Message: msgNoSetHierarchy}
}

// BadResumptionToken — токен некорректен или истёк.
func BadResumptionToken(message string) *ProtocolError {
	if message == "" {
		message = msgBadResumptionToken
	}
	return &ProtocolError{Code: CodeBadResumptionToken, Message: message}
}

// AsProtocolError извлекает *ProtocolError из цепочки ошибок.
func AsProtocolError(err error) (*ProtocolError, bool) {
	var perr *ProtocolError
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}

// --- Инфраструктурные ошибки ---

// ErrInfrastructure — бэкенд недоступен или вернул неразбираемый ответ.
// Не является ошибкой OAI-PMH: HTTP-слой отвечает 503.
var ErrInfrastructure = errors.New("бэкенд недоступен")

// Ошибки, которые возвращают адаптеры DataSource.
var (
	// ErrRecordNotFound — запись не найдена в бэкенде.
	ErrRecordNotFound = errors.New("запись не найдена")
	// ErrNoSetHierarchy — бэкенд не поддерживает наборы.
	ErrNoSetHierarchy = errors.New("наборы не поддерживаются")
)

// InfrastructureError — сбой бэкенда при выполнении операции Op.
// Распознаётся через errors.Is(err, ErrInfrastructure) и errors.As.
type InfrastructureError struct {
	Op  string
	Err error
}

// Error реализует интерфейс error.
func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrInfrastructure, e.Err)
}

// Unwrap открывает доступ и к ErrInfrastructure, и к исходной ошибке адаптера.
func (e *InfrastructureError) Unwrap() []error {
	return []error{ErrInfrastructure, e.Err}
}

// infrastructureError оборачивает ошибку адаптера в InfrastructureError.
func infrastructureError(op string, err error) error {
	return &InfrastructureError{Op: op, Err: err}
}
