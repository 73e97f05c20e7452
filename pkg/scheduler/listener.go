package scheduler

import (
	"github.com/arzzra/soft_conference/pkg/address"
)

// InvitationResult итог отправки одному получателю
type InvitationResult struct {
	Recipient *address.Address
	// Cancel получатель получил отмену (удален из состава или конференция отменена)
	Cancel bool
	Err    error
}

// Delivered сообщение принято транспортом
func (r InvitationResult) Delivered() bool {
	return r.Err == nil
}

// Listener получает уведомления планировщика. Вызывается из горутины
// планировщика, обработчик не должен блокироваться надолго.
type Listener interface {
	OnStateChanged(state State)
	OnInvitationsSent(results []InvitationResult)
}

// ListenerFuncs адаптер функций к Listener. Пустые поля пропускаются.
type ListenerFuncs struct {
	StateChanged    func(state State)
	InvitationsSent func(results []InvitationResult)
}

func (l ListenerFuncs) OnStateChanged(state State) {
	if l.StateChanged != nil {
		l.StateChanged(state)
	}
}

func (l ListenerFuncs) OnInvitationsSent(results []InvitationResult) {
	if l.InvitationsSent != nil {
		l.InvitationsSent(results)
	}
}

// FailedRecipients адреса получателей, которым доставка не удалась.
// Удобно передать в InvitationParams.Recipients для повтора.
func FailedRecipients(results []InvitationResult) []*address.Address {
	var failed []*address.Address
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r.Recipient.Clone())
		}
	}
	return failed
}
