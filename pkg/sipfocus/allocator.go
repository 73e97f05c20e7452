package sipfocus

import (
	"context"
	"log/slog"

	"github.com/emiago/sipgo/sip"

	"github.com/arzzra/soft_conference/pkg/address"
	"github.com/arzzra/soft_conference/pkg/conference"
	"github.com/arzzra/soft_conference/pkg/scheduler"
)

// Allocator выделяет ресурс конференции на сервере (focus) через INVITE с
// описанием в теле. Новая конференция создается запросом к фабрике,
// правка и отмена идут на адрес конференции. Адрес конференции сервер
// возвращает в Contact ответа 2xx.
//
// Медиа сессия не нужна: после ACK диалог сразу закрывается BYE.
type Allocator struct {
	tx     Transactor
	logger *slog.Logger
}

var _ scheduler.Allocator = (*Allocator)(nil)

func NewAllocator(tx Transactor, opts ...Option) *Allocator {
	o := applyOptions(opts)
	return &Allocator{
		tx:     tx,
		logger: o.logger.With(slog.String("component", "focus-allocator")),
	}
}

func (a *Allocator) Allocate(ctx context.Context, req scheduler.AllocationRequest) (scheduler.AllocationResult, error) {
	target := a.target(req)
	if !target.IsValid() {
		return scheduler.AllocationResult{}, &scheduler.AllocationError{Kind: scheduler.FailureRejected, Err: ErrNoTarget}
	}
	from := req.Account.Identity
	if !from.IsValid() {
		return scheduler.AllocationResult{}, &scheduler.AllocationError{Kind: scheduler.FailureRejected, Err: ErrNoIdentity}
	}

	invite := newRequest(sip.INVITE, from, target, contactFor(a.tx, from), conference.ContentType, []byte(req.ICS))
	a.logger.Debug("Allocator.Allocate",
		slog.String("target", target.URIOnly()),
		slog.Bool("cancel", req.Cancel),
		slog.String("uid", req.Info.IcsUID()),
		slog.Int("sequence", int(req.Info.IcsSequence())))

	res, err := a.tx.Do(ctx, invite)
	if err != nil {
		return scheduler.AllocationResult{}, &scheduler.AllocationError{Kind: scheduler.FailureNetwork, Err: err}
	}

	if !isSuccess(res) {
		kind := scheduler.FailureRejected
		if res.StatusCode == 488 || res.StatusCode == 606 {
			kind = scheduler.FailureSecurityLevelUnsupported
		}
		return scheduler.AllocationResult{}, &scheduler.AllocationError{
			Kind:       kind,
			StatusCode: res.StatusCode,
			Reason:     res.Reason,
		}
	}

	d := newDialog(invite, res)
	if err := a.tx.WriteRequest(d.ack()); err != nil {
		a.logger.Warn("sipfocus: ACK not sent",
			slog.String("target", target.URIOnly()),
			slog.String("error", err.Error()))
	}
	a.hangup(ctx, d)

	uri, err := conferenceURI(res)
	if err != nil {
		if req.Cancel && req.Info.IsValidURI() {
			// на отмену сервер может ответить без Contact
			return scheduler.AllocationResult{URI: req.Info.URI()}, nil
		}
		return scheduler.AllocationResult{}, &scheduler.AllocationError{
			Kind:       scheduler.FailureMalformedResponse,
			StatusCode: res.StatusCode,
			Reason:     res.Reason,
			Err:        err,
		}
	}

	a.logger.Info("sipfocus: conference allocated",
		slog.String("conference", uri.URIOnly()),
		slog.Bool("cancel", req.Cancel))
	return scheduler.AllocationResult{URI: uri}, nil
}

// hangup завершает диалог. Ресурс конференции на сервере остается,
// поэтому ошибка BYE только логируется.
func (a *Allocator) hangup(ctx context.Context, d *dialog) {
	bye := d.bye()
	res, err := a.tx.Do(ctx, bye)
	switch {
	case err != nil:
		a.logger.Warn("sipfocus: BYE failed",
			slog.String("target", bye.Recipient.String()),
			slog.String("error", err.Error()))
	case !isSuccess(res):
		a.logger.Warn("sipfocus: BYE rejected",
			slog.String("target", bye.Recipient.String()),
			slog.Int("status", res.StatusCode),
			slog.String("reason", res.Reason))
	}
}

// target адрес конференции, если он уже известен, иначе фабрика
func (a *Allocator) target(req scheduler.AllocationRequest) *address.Address {
	if req.Info != nil && req.Info.IsValidURI() {
		return req.Info.URI()
	}
	return req.Account.ConferenceFactory
}

func conferenceURI(res *sip.Response) (*address.Address, error) {
	contact := res.Contact()
	if contact == nil {
		return nil, errNoContact
	}
	uri := address.FromURI(contact.Address)
	if !uri.IsValid() || uri.URI.Host == "" {
		return nil, errNoContact
	}
	return uri, nil
}
