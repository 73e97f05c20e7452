package scheduler

import (
	"context"
	"fmt"

	"github.com/arzzra/soft_conference/pkg/address"
	"github.com/arzzra/soft_conference/pkg/conference"
)

// Account локальная учетная запись, от имени которой работает планировщик
type Account struct {
	// Identity адрес пользователя. Используется как организатор, если в
	// описании он не задан, и исключается из рассылки.
	Identity *address.Address
	// ConferenceFactory адрес сервера, создающего конференции
	ConferenceFactory *address.Address
}

// Key ключ учетной записи для хранилища
func (a Account) Key() string {
	return a.Identity.URIOnly()
}

// AllocationRequest запрос на создание, изменение или удаление ресурса конференции
type AllocationRequest struct {
	Info    *conference.Info
	Account Account
	// Cancel запрос на освобождение ресурса
	Cancel bool
	// ICS описание в iCalendar. Пустая строка, если ICS недоступен.
	ICS string
}

// AllocationResult ответ сервера
type AllocationResult struct {
	// URI канонический адрес конференции на сервере
	URI *address.Address
}

// Allocator взаимодействует с сервером конференций (focus)
type Allocator interface {
	Allocate(ctx context.Context, req AllocationRequest) (AllocationResult, error)
}

// AllocationFailure вид отказа при выделении ресурса
type AllocationFailure string

const (
	FailureNetwork                  AllocationFailure = "network"
	FailureRejected                 AllocationFailure = "rejected"
	FailureSecurityLevelUnsupported AllocationFailure = "security-level-unsupported"
	FailureMalformedResponse        AllocationFailure = "malformed-response"
)

// AllocationError структурированный отказ сервера
type AllocationError struct {
	Kind       AllocationFailure
	StatusCode int
	Reason     string
	Err        error
}

func (e *AllocationError) Error() string {
	msg := "allocation failed: " + string(e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (%d %s)", e.StatusCode, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AllocationError) Unwrap() error {
	return e.Err
}

// Retryable повтор имеет смысл только при сетевой ошибке
func (e *AllocationError) Retryable() bool {
	return e.Kind == FailureNetwork
}

// Message одно исходящее сообщение с описанием конференции
type Message struct {
	Recipient   *address.Address
	ContentType string
	Body        string
	Cancel      bool
}

// Messenger доставляет сообщение одному получателю
type Messenger interface {
	Send(ctx context.Context, msg Message) error
}

// InfoStore хранилище описаний конференций по (учетная запись, URI).
// Find возвращает (nil, nil), если описания нет.
type InfoStore interface {
	Find(ctx context.Context, account string, uri *address.Address) (*conference.Info, error)
	Save(ctx context.Context, account string, info *conference.Info) error
}
