package sipfocus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/emiago/sipgo/sip"

	"github.com/arzzra/soft_conference/pkg/address"
	"github.com/arzzra/soft_conference/pkg/scheduler"
)

// Messenger доставляет приглашения и отмены запросом MESSAGE
type Messenger struct {
	tx     Transactor
	from   *address.Address
	logger *slog.Logger
}

var _ scheduler.Messenger = (*Messenger)(nil)

// NewMessenger from адрес отправителя, обычно Account.Identity
func NewMessenger(tx Transactor, from *address.Address, opts ...Option) *Messenger {
	o := applyOptions(opts)
	return &Messenger{
		tx:     tx,
		from:   from.Clone(),
		logger: o.logger.With(slog.String("component", "focus-messenger")),
	}
}

func (m *Messenger) Send(ctx context.Context, msg scheduler.Message) error {
	if !m.from.IsValid() {
		return ErrNoIdentity
	}
	if !msg.Recipient.IsValid() {
		return ErrNoTarget
	}

	req := newRequest(sip.MESSAGE, m.from, msg.Recipient, contactFor(m.tx, m.from), msg.ContentType, []byte(msg.Body))
	res, err := m.tx.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("sipfocus: MESSAGE to %s: %w", msg.Recipient.URIOnly(), err)
	}
	if !isSuccess(res) {
		return &StatusError{Method: string(sip.MESSAGE), StatusCode: res.StatusCode, Reason: res.Reason}
	}

	m.logger.Debug("Messenger.Send",
		slog.String("recipient", msg.Recipient.URIOnly()),
		slog.Bool("cancel", msg.Cancel),
		slog.Int("status", res.StatusCode))
	return nil
}
