package scheduler

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCategory категории ошибок планировщика
type ErrorCategory string

const (
	// Неверные входные данные, отклоняются синхронно
	ErrorCategoryValidation ErrorCategory = "VALIDATION"
	// Операция недопустима в текущем состоянии планировщика
	ErrorCategoryState ErrorCategory = "STATE"
	// Сервер отказал или недоступен
	ErrorCategoryAllocation ErrorCategory = "ALLOCATION"
	// Не доставлено приглашение одному получателю
	ErrorCategoryDelivery ErrorCategory = "DELIVERY"
	// Нет поддержки iCalendar или документ не собран
	ErrorCategorySerialization ErrorCategory = "SERIALIZATION"
)

func (c ErrorCategory) String() string {
	return string(c)
}

// ErrorSeverity уровни критичности
type ErrorSeverity string

const (
	ErrorSeverityError   ErrorSeverity = "ERROR"
	ErrorSeverityWarning ErrorSeverity = "WARNING"
)

// Базовые причины. Проверяются через errors.Is на *Error.
var (
	ErrMissingOrganizer      = errors.New("scheduler: organizer is not set and cannot be resolved from the account")
	ErrNoConferenceAddress   = errors.New("scheduler: neither conference URI nor conference factory is known")
	ErrSchedulerBusy         = errors.New("scheduler: operation in progress")
	ErrNotReady              = errors.New("scheduler: conference is not allocated")
	ErrConferenceTerminated  = errors.New("scheduler: conference was cancelled by this scheduler")
	ErrNoRecipients          = errors.New("scheduler: no invitation recipients")
	ErrStaleUpdate           = errors.New("scheduler: stale conference update")
	ErrUnsupportedContent    = errors.New("scheduler: unsupported content type")
	ErrInvitationUnavailable = errors.New("scheduler: invitation payload is unavailable")
)

// Error структурированная ошибка планировщика с контекстом
type Error struct {
	Code     string        `json:"code"`
	Message  string        `json:"message"`
	Category ErrorCategory `json:"category"`
	Severity ErrorSeverity `json:"severity"`

	State     State                  `json:"state,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Cause     error                  `json:"-"`
	Retryable bool                   `json:"retryable"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap позволяет использовать errors.Is и errors.As
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithField добавляет поле контекста
func (e *Error) WithField(key string, value interface{}) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// WithCause добавляет исходную ошибку
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// NewError создает структурированную ошибку
func NewError(code, message string, category ErrorCategory, severity ErrorSeverity) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Category:  category,
		Severity:  severity,
		Timestamp: time.Now(),
	}
}

func errInvalidInfo(cause error) *Error {
	return NewError(
		"INVALID_CONFERENCE_INFO",
		"conference info rejected",
		ErrorCategoryValidation,
		ErrorSeverityError,
	).WithCause(cause)
}

func errInvalidState(current State, operation string, cause error) *Error {
	err := NewError(
		"INVALID_SCHEDULER_STATE",
		fmt.Sprintf("cannot %s in state %s", operation, current),
		ErrorCategoryState,
		ErrorSeverityError,
	).WithCause(cause).WithField("operation", operation)
	err.State = current
	return err
}

func errAllocation(cause error) *Error {
	err := NewError(
		"ALLOCATION_FAILED",
		"conference server did not accept the request",
		ErrorCategoryAllocation,
		ErrorSeverityError,
	).WithCause(cause)
	var allocErr *AllocationError
	if errors.As(cause, &allocErr) {
		err.WithField("failure", string(allocErr.Kind))
		if allocErr.StatusCode != 0 {
			err.WithField("status_code", allocErr.StatusCode)
		}
		err.Retryable = allocErr.Retryable()
	}
	return err
}

func errDelivery(recipient string, cause error) *Error {
	err := NewError(
		"DELIVERY_FAILED",
		fmt.Sprintf("invitation to %s was not delivered", recipient),
		ErrorCategoryDelivery,
		ErrorSeverityWarning,
	).WithCause(cause).WithField("recipient", recipient)
	err.Retryable = true
	return err
}

func errSerialization(cause error) *Error {
	return NewError(
		"ICS_UNAVAILABLE",
		"invitation payload cannot be produced",
		ErrorCategorySerialization,
		ErrorSeverityWarning,
	).WithCause(cause)
}

// IsRetryable проверяет, можно ли повторить операцию
func IsRetryable(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// CategoryOf извлекает категорию ошибки
func CategoryOf(err error) ErrorCategory {
	var se *Error
	if errors.As(err, &se) {
		return se.Category
	}
	return ""
}
