// Package scheduler ведет жизненный цикл запланированной конференции:
// выделение ресурса на сервере, вычисление следующей версии описания и
// рассылку приглашений и отмен участникам.
//
// Операции, которые выходят за пределы процесса (запрос к серверу,
// отправка сообщения), выполняются асинхронно. Вызывающий узнает о ходе
// работы только через Listener. Внутри одного планировщика переходы
// строго последовательны: второй запрос к серверу не стартует, пока не
// завершился первый.
//
// Один планировщик обслуживает одну конференцию.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"github.com/samber/lo"

	"github.com/arzzra/soft_conference/pkg/address"
	"github.com/arzzra/soft_conference/pkg/conference"
)

// InvitationParams параметры рассылки
type InvitationParams struct {
	// Recipients ограничивает рассылку указанными адресами, например для
	// повтора неудавшихся отправок. Пустой список означает всех.
	Recipients []*address.Address
}

// Scheduler планировщик конференции
type Scheduler struct {
	account   Account
	allocator Allocator
	messenger Messenger
	store     InfoStore
	logger    *slog.Logger
	metrics   *Metrics

	allocationTimeout time.Duration
	sendTimeout       time.Duration

	fsm *fsm.FSM

	mu sync.Mutex
	// current последняя подтвержденная сервером версия
	current *conference.Info
	// previous версия до current, по ней вычисляются удаленные участники
	previous     *conference.Info
	lastErr      error
	cancelledUID string
	listeners    []Listener

	wg sync.WaitGroup
}

// New создает планировщик в состоянии Idle
func New(account Account, allocator Allocator, messenger Messenger, opts ...Option) *Scheduler {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	s := &Scheduler{
		account:           account,
		allocator:         allocator,
		messenger:         messenger,
		store:             o.store,
		logger:            o.logger.With(slog.String("component", "conference-scheduler")),
		metrics:           o.metrics,
		allocationTimeout: o.allocationTimeout,
		sendTimeout:       o.sendTimeout,
	}
	s.initFSM()
	return s
}

// State текущее состояние планировщика
func (s *Scheduler) State() State {
	return State(s.fsm.Current())
}

// Info копия последней подтвержденной версии описания или nil
func (s *Scheduler) Info() *conference.Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// LastError причина перехода в Error
func (s *Scheduler) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// AddListener подписывает слушателя на уведомления
func (s *Scheduler) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Scheduler) snapshotListeners() []Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Listener(nil), s.listeners...)
}

// Wait ждет завершения запущенных запросов и рассылок
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// SetInfo публикует новую версию описания конференции.
//
// Проверки выполняются синхронно, ошибка возвращается сразу и состояние
// не меняется. Затем планировщик переходит в AllocationPending и
// асинхронно обращается к серверу; результат приходит через
// Listener.OnStateChanged (Ready или Error). Переданное описание не
// изменяется, планировщик работает со своей копией.
func (s *Scheduler) SetInfo(ctx context.Context, info *conference.Info) error {
	return s.schedule(ctx, info, false)
}

// CancelConference отменяет конференцию: описание получает состояние
// Cancelled и следующий номер версии, сервер освобождает ресурс.
// Разрешено только из Idle, Ready и Error. После успешной отмены этот
// планировщик больше не принимает описания с тем же UID.
func (s *Scheduler) CancelConference(ctx context.Context, info *conference.Info) error {
	return s.schedule(ctx, info, true)
}

func (s *Scheduler) schedule(ctx context.Context, info *conference.Info, cancel bool) error {
	operation := "set info"
	if cancel {
		operation = "cancel conference"
	}
	if info == nil {
		return errInvalidInfo(conference.ErrNilInfo)
	}
	if !s.fsm.Can(eventAllocate) {
		return errInvalidState(s.State(), operation, ErrSchedulerBusy)
	}

	next, old, err := s.prepare(ctx, info, cancel)
	if err != nil {
		s.logger.Info("scheduler: conference info rejected",
			slog.String("operation", operation),
			slog.String("error", err.Error()))
		return err
	}

	payload, err := next.MarshalICS(cancel, -1)
	switch {
	case errors.Is(err, conference.ErrICSUnavailable):
		// сборка без iCalendar: сервер получит INVITE без тела
		payload = ""
	case err != nil:
		s.logger.Warn("scheduler: conference info cannot be serialized",
			slog.String("operation", operation),
			slog.String("error", err.Error()))
		return errSerialization(err)
	}
	if next.IcsUID() == "" {
		// ICS не собран, UID выдаем сами
		if err := next.SetIcsUID(conference.NewUID()); err != nil {
			return errInvalidInfo(err)
		}
	}

	if err := s.fsm.Event(ctx, eventAllocate); err != nil {
		return errInvalidState(s.State(), operation, fmt.Errorf("%w: %w", ErrSchedulerBusy, err))
	}

	s.logger.Debug("Scheduler.schedule",
		slog.String("operation", operation),
		slog.String("uid", next.IcsUID()),
		slog.Int("sequence", int(next.IcsSequence())),
		slog.Int("participants", next.ParticipantCount()))

	s.wg.Add(1)
	go s.allocate(context.WithoutCancel(ctx), next, old, payload, cancel)
	return nil
}

// prepare проверяет описание и согласует его с предыдущей версией
func (s *Scheduler) prepare(ctx context.Context, info *conference.Info, cancel bool) (next, old *conference.Info, err error) {
	if !cancel && info.State() == conference.StateCancelled {
		return nil, nil, errInvalidInfo(conference.ErrInfoCancelled)
	}

	next = info.Clone()
	if next.Organizer() == nil {
		if !s.account.Identity.IsValid() {
			return nil, nil, errInvalidInfo(ErrMissingOrganizer)
		}
		if err := next.SetOrganizerAddress(s.account.Identity); err != nil {
			return nil, nil, errInvalidInfo(err)
		}
	}

	old, err = s.baseline(ctx, next)
	if err != nil {
		return nil, nil, err
	}
	if s.isTerminated(next, old) {
		return nil, nil, errInvalidState(s.State(), "reuse cancelled conference", ErrConferenceTerminated)
	}

	if cancel {
		if old == nil {
			old = info.Clone()
		}
		if !next.IsValidURI() && !old.IsValidURI() {
			return nil, nil, errInvalidInfo(ErrNoConferenceAddress)
		}
		if err := next.SetState(conference.StateCancelled); err != nil {
			return nil, nil, errInvalidInfo(err)
		}
		if err := next.UpdateFrom(old); err != nil {
			return nil, nil, errInvalidInfo(err)
		}
		return next, old, nil
	}

	if !next.IsValidURI() && !s.account.ConferenceFactory.IsValid() && (old == nil || !old.IsValidURI()) {
		return nil, nil, errInvalidInfo(ErrNoConferenceAddress)
	}
	if old != nil {
		if err := next.UpdateFrom(old); err != nil {
			return nil, nil, errInvalidInfo(err)
		}
	}
	return next, old, nil
}

// baseline предыдущая версия: своя подтвержденная копия или запись в хранилище
func (s *Scheduler) baseline(ctx context.Context, next *conference.Info) (*conference.Info, error) {
	s.mu.Lock()
	current := s.current.Clone()
	s.mu.Unlock()
	if current != nil {
		return current, nil
	}
	if s.store == nil || !next.IsValidURI() {
		return nil, nil
	}

	stored, err := s.store.Find(ctx, s.account.Key(), next.URI())
	if err != nil {
		return nil, fmt.Errorf("scheduler: find stored conference %s: %w", next.URI().URIOnly(), err)
	}
	return stored, nil
}

func (s *Scheduler) isTerminated(next, old *conference.Info) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelledUID == "" {
		return false
	}
	return next.IcsUID() == s.cancelledUID || (old != nil && old.IcsUID() == s.cancelledUID)
}

func (s *Scheduler) allocate(ctx context.Context, next, old *conference.Info, payload string, cancel bool) {
	defer s.wg.Done()

	kind := "create"
	switch {
	case cancel:
		kind = "cancel"
	case old != nil:
		kind = "update"
	}

	reqCtx := ctx
	if s.allocationTimeout > 0 {
		var cancelFn context.CancelFunc
		reqCtx, cancelFn = context.WithTimeout(ctx, s.allocationTimeout)
		defer cancelFn()
	}

	started := time.Now()
	res, err := s.allocator.Allocate(reqCtx, AllocationRequest{
		Info:    next.Clone(),
		Account: s.account,
		Cancel:  cancel,
		ICS:     payload,
	})
	s.metrics.recordAllocation(kind, err, time.Since(started))

	if err == nil {
		err = s.commit(reqCtx, next, old, res, cancel)
	}
	if err != nil {
		s.logger.Error("scheduler: conference allocation failed",
			slog.String("kind", kind),
			slog.String("uid", next.IcsUID()),
			slog.String("error", err.Error()))
		s.mu.Lock()
		s.lastErr = errAllocation(err)
		s.mu.Unlock()
		s.transition(ctx, eventFail)
		return
	}
	s.transition(ctx, eventAllocated)
}

// commit фиксирует подтвержденную сервером версию
func (s *Scheduler) commit(ctx context.Context, next, old *conference.Info, res AllocationResult, cancel bool) error {
	if res.URI.IsValid() && next.State() != conference.StateCancelled {
		if !next.IsValidURI() || !next.URI().WeakEqual(res.URI) {
			if err := next.SetURI(res.URI); err != nil {
				return &AllocationError{Kind: FailureMalformedResponse, Err: err}
			}
		}
	}
	if !next.IsValidURI() {
		return &AllocationError{
			Kind: FailureMalformedResponse,
			Err:  errors.New("server did not return a conference address"),
		}
	}

	next.MarkAllocated()
	next.AdvanceSequences(old)

	if s.store != nil {
		if err := s.store.Save(ctx, s.account.Key(), next); err != nil {
			// сервер уже принял изменения, локальная копия остается в памяти
			s.logger.Warn("scheduler: failed to persist conference",
				slog.String("uri", next.URI().URIOnly()),
				slog.String("error", err.Error()))
		}
	}

	s.mu.Lock()
	s.previous = old
	s.current = next
	s.lastErr = nil
	if cancel {
		s.cancelledUID = next.IcsUID()
	}
	s.mu.Unlock()
	return nil
}

// SendInvitations рассылает текущую версию описания. Разрешено только в Ready.
//
// Каждый участник и организатор (кроме собственной учетной записи)
// получает одно сообщение: REQUEST, или CANCEL если конференция отменена.
// Участники, удаленные последней правкой, получают CANCEL без списка
// участников. Отправки независимы; результат по каждому получателю
// приходит в Listener.OnInvitationsSent после того, как были выполнены все
// попытки.
func (s *Scheduler) SendInvitations(ctx context.Context, params InvitationParams) error {
	s.mu.Lock()
	current := s.current.Clone()
	previous := s.previous.Clone()
	s.mu.Unlock()

	if current == nil || !s.fsm.Can(eventSend) {
		return errInvalidState(s.State(), "send invitations", ErrNotReady)
	}

	messages, err := s.buildMessages(current, previous, params.Recipients)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return errInvalidInfo(ErrNoRecipients)
	}

	if err := s.fsm.Event(ctx, eventSend); err != nil {
		return errInvalidState(s.State(), "send invitations", fmt.Errorf("%w: %w", ErrSchedulerBusy, err))
	}

	s.wg.Add(1)
	go s.deliver(context.WithoutCancel(ctx), messages)
	return nil
}

func (s *Scheduler) buildMessages(current, previous *conference.Info, filter []*address.Address) ([]Message, error) {
	payload := current.ToICS(false, -1)
	if payload == "" {
		return nil, errSerialization(ErrInvitationUnavailable)
	}
	cancelled := current.State() == conference.StateCancelled

	var (
		messages []Message
		seen     []*address.Address
	)
	add := func(addr *address.Address, body string, cancel bool) {
		if !addr.IsValid() || addr.WeakEqual(s.account.Identity) || containsAddress(seen, addr) {
			return
		}
		if len(filter) > 0 && !containsAddress(filter, addr) {
			return
		}
		seen = append(seen, addr)
		messages = append(messages, Message{
			Recipient:   addr,
			ContentType: conference.ContentType,
			Body:        body,
			Cancel:      cancel,
		})
	}

	add(current.OrganizerAddress(), payload, cancelled)
	for _, addr := range current.ParticipantAddresses() {
		add(addr, payload, cancelled)
	}

	removed := current.RemovedSince(previous)
	if len(removed) > 0 {
		cancelPayload := current.WithoutParticipants().ToICS(true, -1)
		if cancelPayload == "" {
			return nil, errSerialization(ErrInvitationUnavailable)
		}
		for _, p := range removed {
			add(p.Address(), cancelPayload, true)
		}
	}
	return messages, nil
}

func containsAddress(list []*address.Address, addr *address.Address) bool {
	return lo.ContainsBy(list, func(a *address.Address) bool {
		return a.WeakEqual(addr)
	})
}

func (s *Scheduler) deliver(ctx context.Context, messages []Message) {
	defer s.wg.Done()

	results := make([]InvitationResult, len(messages))
	var wg sync.WaitGroup
	for i, msg := range messages {
		wg.Add(1)
		go func() {
			defer wg.Done()

			sendCtx := ctx
			if s.sendTimeout > 0 {
				var cancel context.CancelFunc
				sendCtx, cancel = context.WithTimeout(ctx, s.sendTimeout)
				defer cancel()
			}

			err := s.messenger.Send(sendCtx, msg)
			if err != nil {
				s.logger.Warn("scheduler: invitation not delivered",
					slog.String("recipient", msg.Recipient.URIOnly()),
					slog.Bool("cancel", msg.Cancel),
					slog.String("error", err.Error()))
				err = errDelivery(msg.Recipient.URIOnly(), err)
			}
			s.metrics.recordInvitation(msg.Cancel, err)
			results[i] = InvitationResult{Recipient: msg.Recipient, Cancel: msg.Cancel, Err: err}
		}()
	}
	wg.Wait()

	s.transition(ctx, eventSent)
	for _, l := range s.snapshotListeners() {
		l.OnInvitationsSent(results)
	}
}
