package scheduler

import (
	"context"
	"log/slog"

	"github.com/looplab/fsm"
)

// State состояние планировщика
type State string

const (
	// StateIdle ничего не запрошено
	StateIdle State = "Idle"
	// StateAllocationPending сервер создает, изменяет или удаляет ресурс
	StateAllocationPending State = "AllocationPending"
	// StateReady сервер подтвердил, локальная копия авторитетна
	StateReady State = "Ready"
	// StateInvitationsSending идет рассылка приглашений
	StateInvitationsSending State = "InvitationsSending"
	// StateError последняя попытка не удалась, автоматического повтора нет
	StateError State = "Error"
)

func (s State) String() string {
	return string(s)
}

const (
	eventAllocate  = "allocate"
	eventAllocated = "allocated"
	eventFail      = "fail"
	eventSend      = "send"
	eventSent      = "sent"
)

/*
Диаграмма переходов:

	[Idle|Ready|Error] --allocate--> [AllocationPending] --allocated--> [Ready]
	[Ready] --send--> [InvitationsSending] --sent--> [Ready]
	[любое кроме Error] --fail--> [Error]

Коллбеки:
  - enter_state: метрики и журнал перехода
  - after_event: уведомление слушателей
*/
func (s *Scheduler) initFSM() {
	s.fsm = fsm.NewFSM(
		string(StateIdle),
		fsm.Events{
			{Name: eventAllocate, Src: []string{string(StateIdle), string(StateReady), string(StateError)}, Dst: string(StateAllocationPending)},
			{Name: eventAllocated, Src: []string{string(StateAllocationPending)}, Dst: string(StateReady)},
			{Name: eventFail, Src: []string{string(StateIdle), string(StateAllocationPending), string(StateReady), string(StateInvitationsSending)}, Dst: string(StateError)},
			{Name: eventSend, Src: []string{string(StateReady)}, Dst: string(StateInvitationsSending)},
			{Name: eventSent, Src: []string{string(StateInvitationsSending)}, Dst: string(StateReady)},
		},
		fsm.Callbacks{
			"enter_state": s.enterState,
			"after_event": s.afterStateChange,
		},
	)
}

func (s *Scheduler) enterState(_ context.Context, e *fsm.Event) {
	s.metrics.recordTransition(State(e.Src), State(e.Dst))
	s.logger.Info("scheduler: state changed",
		slog.String("account", s.account.Key()),
		slog.String("event", e.Event),
		slog.String("from", e.Src),
		slog.String("to", e.Dst))
}

func (s *Scheduler) afterStateChange(_ context.Context, e *fsm.Event) {
	state := State(e.Dst)
	for _, l := range s.snapshotListeners() {
		l.OnStateChanged(state)
	}
}

// transition выполняет событие автомата. Ошибка означает нарушение
// порядка вызовов внутри планировщика, поэтому только журналируется.
func (s *Scheduler) transition(ctx context.Context, event string) {
	if err := s.fsm.Event(ctx, event); err != nil {
		s.logger.Error("scheduler: state transition rejected",
			slog.String("event", event),
			slog.String("state", s.fsm.Current()),
			slog.String("error", err.Error()))
	}
}
