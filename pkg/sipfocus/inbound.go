package sipfocus

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/emiago/sipgo/sip"

	"github.com/arzzra/soft_conference/pkg/conference"
	"github.com/arzzra/soft_conference/pkg/scheduler"
)

// Receiver принимает описание из тела входящего запроса
type Receiver interface {
	Receive(ctx context.Context, contentType string, body []byte) (*conference.Info, error)
}

// AcceptedFunc уведомление о принятом описании
type AcceptedFunc func(info *conference.Info)

type responder interface {
	Respond(res *sip.Response) error
}

// InboundHandler обработчик входящих MESSAGE с приглашениями.
//
// Коды ответа:
//   - 200 описание принято или устарело (повтор не нужен)
//   - 415 тело не text/calendar или ICS недоступен
//   - 400 описание не разобрано или отклонено
//   - 500 ошибка хранилища
type InboundHandler struct {
	receiver   Receiver
	logger     *slog.Logger
	timeout    time.Duration
	onAccepted AcceptedFunc
}

func NewInboundHandler(receiver Receiver, opts ...Option) *InboundHandler {
	o := applyOptions(opts)
	return &InboundHandler{
		receiver:   receiver,
		logger:     o.logger.With(slog.String("component", "focus-inbound")),
		timeout:    o.inboundTimeout,
		onAccepted: o.onAccepted,
	}
}

// HandleMessage сигнатура sipgo.RequestHandler
func (h *InboundHandler) HandleMessage(req *sip.Request, tx sip.ServerTransaction) {
	h.serve(req, tx)
}

func (h *InboundHandler) serve(req *sip.Request, tx responder) {
	ctx := context.Background()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	contentType := ""
	if ct := req.ContentType(); ct != nil {
		contentType = ct.Value()
	}

	info, err := h.receiver.Receive(ctx, contentType, req.Body())
	code, reason := statusFor(err)
	if err != nil {
		h.logger.Info("sipfocus: inbound conference info not accepted",
			slog.String("from", fromURI(req)),
			slog.Int("status", code),
			slog.String("error", err.Error()))
	} else {
		h.logger.Debug("InboundHandler.serve",
			slog.String("from", fromURI(req)),
			slog.String("uid", info.IcsUID()),
			slog.Int("sequence", int(info.IcsSequence())))
		if h.onAccepted != nil {
			h.onAccepted(info)
		}
	}

	if err := tx.Respond(sip.NewResponseFromRequest(req, code, reason, nil)); err != nil {
		h.logger.Error("sipfocus: failed to answer MESSAGE",
			slog.Int("status", code),
			slog.String("error", err.Error()))
	}
}

func statusFor(err error) (int, string) {
	switch {
	case err == nil, errors.Is(err, scheduler.ErrStaleUpdate):
		return sip.StatusOK, "OK"
	case errors.Is(err, scheduler.ErrUnsupportedContent),
		scheduler.CategoryOf(err) == scheduler.ErrorCategorySerialization:
		return 415, "Unsupported Media Type"
	case scheduler.CategoryOf(err) == scheduler.ErrorCategoryValidation:
		return sip.StatusBadRequest, "Bad Request"
	default:
		return 500, "Server Internal Error"
	}
}

func fromURI(req *sip.Request) string {
	if from := req.From(); from != nil {
		return from.Address.String()
	}
	return ""
}
