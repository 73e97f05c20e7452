package sipfocus

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTarget нет ни адреса конференции, ни фабрики конференций
	ErrNoTarget = errors.New("sipfocus: no request target")
	// ErrNoIdentity учетная запись без адреса, From не собрать
	ErrNoIdentity = errors.New("sipfocus: account identity is not set")
	// ErrClientClosed клиент закрыт
	ErrClientClosed = errors.New("sipfocus: client is closed")

	errNoContact = errors.New("sipfocus: 2xx without a usable Contact")
)

// StatusError финальный ответ не 2xx
type StatusError struct {
	Method     string
	StatusCode int
	Reason     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sipfocus: %s answered %d %s", e.Method, e.StatusCode, e.Reason)
}
