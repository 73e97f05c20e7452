package conference

import (
	"fmt"
	"log/slog"

	"github.com/samber/lo"
)

// UpdateFrom согласует новое описание i с ранее известным old.
//
// Идентичность (UID, URI) берется из old, если в i она пуста, и должна
// совпадать, если задана. Номер версии документа становится old+1
// независимо от значения в i. Персональные счетчики участников,
// присутствующих в обоих составах, переносятся из old; новые участники
// сохраняют свое значение (обычно 0). Участники, удаленные из состава,
// здесь не учитываются, их возвращает RemovedSince.
//
// При ошибке i не изменяется.
func (i *Info) UpdateFrom(old *Info) error {
	if old == nil {
		return ErrNilInfo
	}
	if old.state == StateCancelled {
		return fmt.Errorf("%w: %s", ErrInfoCancelled, old.logRef())
	}
	if i.icsUID != "" && old.icsUID != "" && i.icsUID != old.icsUID {
		return fmt.Errorf("%w: uid %q != %q", ErrIdentityMismatch, i.icsUID, old.icsUID)
	}
	if i.uri.IsValid() && old.uri.IsValid() && !i.uri.WeakEqual(old.uri) {
		return fmt.Errorf("%w: uri %s != %s", ErrIdentityMismatch, i.uri.URIOnly(), old.uri.URIOnly())
	}
	if old.allocated && i.securityLevel != old.securityLevel {
		return fmt.Errorf("%w: %s -> %s", ErrSecurityLevelLocked, old.securityLevel, i.securityLevel)
	}

	if i.icsUID == "" {
		i.icsUID = old.icsUID
	}
	if !i.uri.IsValid() && old.uri.IsValid() {
		i.uri = old.uri.Clone()
	}
	if old.allocated {
		i.allocated = true
	}
	if !old.creationTime.IsZero() {
		i.creationTime = old.creationTime
	}
	i.icsSequence = old.icsSequence + 1
	if i.state != StateCancelled {
		i.state = StateUpdated
	}

	i.InheritSequences(old)

	slog.Debug("conference.UpdateFrom",
		slog.String("conference", i.logRef()),
		slog.String("uid", i.icsUID),
		slog.Int("sequence", int(i.icsSequence)))
	return nil
}

// RemovedSince участники old, которых нет в текущем составе. Им планировщик
// отправляет отмену.
func (i *Info) RemovedSince(old *Info) []*ParticipantInfo {
	if old == nil {
		return nil
	}
	removed := lo.Filter(old.participants, func(p *ParticipantInfo, _ int) bool {
		return !i.HasParticipant(p.address)
	})
	return lo.Map(removed, func(p *ParticipantInfo, _ int) *ParticipantInfo {
		return p.Clone()
	})
}

// IsNewerThan правило отбрасывания устаревших обновлений на стороне
// получателя. Описание считается новым, если сохраненной копии нет, если
// это другой документ (другой UID) или если номер версии строго больше.
func (i *Info) IsNewerThan(stored *Info) bool {
	if stored == nil {
		return true
	}
	if i.icsUID != "" && stored.icsUID != "" && i.icsUID != stored.icsUID {
		return true
	}
	return i.icsSequence > stored.icsSequence
}

// InheritSequences переносит персональные счетчики из old для участников
// и организатора, которые есть в обоих описаниях. Номер версии документа
// не меняется.
func (i *Info) InheritSequences(old *Info) {
	if old == nil {
		return
	}
	for _, p := range i.participants {
		if prev := old.participant(p.address); prev != nil {
			p.sequence = prev.sequence
		}
	}
	if i.organizer != nil && old.organizer != nil && i.organizer.matches(old.organizer.address) {
		i.organizer.sequence = old.organizer.sequence
	}
}

// AdvanceSequences увеличивает персональные счетчики участников, которые
// были в old и снова получают приглашение, и счетчик организатора.
// Новые участники остаются с 0. Вызывается, когда правка зафиксирована.
func (i *Info) AdvanceSequences(old *Info) {
	if old == nil {
		return
	}
	for _, p := range i.participants {
		if old.HasParticipant(p.address) {
			p.sequence++
		}
	}
	if i.organizer != nil {
		i.organizer.sequence++
	}
}

// WithoutParticipants копия описания с пустым составом. Используется для
// отмены, которую получает удаленный из конференции участник.
func (i *Info) WithoutParticipants() *Info {
	out := i.Clone()
	out.participants = nil
	return out
}
