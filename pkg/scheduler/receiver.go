package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"

	"github.com/arzzra/soft_conference/pkg/conference"
)

// Receiver принимает описания конференций от других устройств и сервера.
//
// Порядок доставки не гарантирован, поэтому обновление принимается только
// если его номер версии больше сохраненного для того же UID. Остальные
// отбрасываются с ErrStaleUpdate.
type Receiver struct {
	account Account
	store   InfoStore
	logger  *slog.Logger
	metrics *Metrics
}

// NewReceiver создает приемник. WithStore в opts заменяет store.
func NewReceiver(account Account, store InfoStore, opts ...Option) *Receiver {
	o := defaultOptions()
	o.store = store
	for _, opt := range opts {
		opt(&o)
	}
	return &Receiver{
		account: account,
		store:   o.store,
		logger:  o.logger.With(slog.String("component", "conference-receiver")),
		metrics: o.metrics,
	}
}

// Receive разбирает входящий документ и сохраняет его, если он новее
// сохраненной копии. Возвращает принятую версию.
func (r *Receiver) Receive(ctx context.Context, contentType string, body []byte) (*conference.Info, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != conference.ContentType {
		return nil, NewError(
			"UNSUPPORTED_CONTENT",
			fmt.Sprintf("content type %q is not %s", contentType, conference.ContentType),
			ErrorCategoryValidation,
			ErrorSeverityWarning,
		).WithCause(ErrUnsupportedContent)
	}

	info, err := conference.FromICS(body)
	if err != nil {
		if errors.Is(err, conference.ErrICSUnavailable) {
			return nil, errSerialization(err)
		}
		return nil, errInvalidInfo(err)
	}
	if !info.IsValidURI() {
		return nil, errInvalidInfo(ErrNoConferenceAddress)
	}

	stored, err := r.store.Find(ctx, r.account.Key(), info.URI())
	if err != nil {
		return nil, fmt.Errorf("scheduler: find stored conference %s: %w", info.URI().URIOnly(), err)
	}

	if !info.IsNewerThan(stored) {
		r.metrics.recordStale()
		r.logger.Info("scheduler: stale conference update dropped",
			slog.String("uri", info.URI().URIOnly()),
			slog.String("uid", info.IcsUID()),
			slog.Int("incoming_sequence", int(info.IcsSequence())),
			slog.Int("stored_sequence", int(stored.IcsSequence())))
		return nil, NewError(
			"STALE_UPDATE",
			"conference update is not newer than the stored copy",
			ErrorCategoryValidation,
			ErrorSeverityWarning,
		).WithCause(ErrStaleUpdate).
			WithField("incoming_sequence", info.IcsSequence()).
			WithField("stored_sequence", stored.IcsSequence())
	}

	if stored != nil && stored.IcsUID() == info.IcsUID() {
		if stored.State() == conference.StateCancelled {
			return nil, errInvalidInfo(conference.ErrInfoCancelled)
		}
		// те же правила учета, что и у отправителя
		info.InheritSequences(stored)
		info.AdvanceSequences(stored)
	}
	info.MarkAllocated()

	if err := r.store.Save(ctx, r.account.Key(), info); err != nil {
		return nil, fmt.Errorf("scheduler: save conference %s: %w", info.URI().URIOnly(), err)
	}

	r.logger.Debug("Receiver.Receive",
		slog.String("uri", info.URI().URIOnly()),
		slog.String("uid", info.IcsUID()),
		slog.Int("sequence", int(info.IcsSequence())),
		slog.String("state", info.State().String()))
	return info.Clone(), nil
}
