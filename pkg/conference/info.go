// Package conference содержит модель данных запланированной конференции:
// описание (Info), участников (ParticipantInfo), алгоритм согласования
// версий (UpdateFrom) и кодек iCalendar.
//
// Версионирование построено на двух счетчиках:
//   - IcsSequence: номер версии документа, строго растет с каждой
//     отправленной правкой одного UID;
//   - ParticipantInfo.SequenceNumber: персональный счетчик участника,
//     который переносится через посторонние правки и не сбрасывается.
//
// Info рассчитан на одного писателя. Разные планировщики не должны
// делить один экземпляр, каждый цикл правки работает со своей копией (Clone).
package conference

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/arzzra/soft_conference/pkg/address"
)

// Info описание запланированной конференции
type Info struct {
	uri          *address.Address
	organizer    *ParticipantInfo
	participants []*ParticipantInfo

	dateTime    time.Time
	duration    uint // минуты, 0 - без ограничения
	subject     string
	description string

	icsSequence uint32
	icsUID      string
	state       State

	securityLevel SecurityLevel
	// allocated выставляется после того, как сервер создал ресурс
	allocated bool

	creationTime time.Time

	// содержимое документа, которое модель не интерпретирует
	extras         []ExtraProperty
	components     []ExtraComponent
	calendarExtras []ExtraProperty
	calendarComps  []ExtraComponent

	addrCache addressCache
}

// addressCache мемоизированный список адресов участников. Сбрасывается
// любой мутацией состава.
type addressCache struct {
	valid bool
	list  []*address.Address
}

// NewInfo создает пустое описание в состоянии New
func NewInfo() *Info {
	return &Info{
		state:        StateNew,
		creationTime: time.Now().UTC().Truncate(time.Second),
	}
}

// checkEditable запрещает правки отмененной конференции
func (i *Info) checkEditable() error {
	if i.state == StateCancelled {
		return ErrInfoCancelled
	}
	return nil
}

func (i *Info) logRef() string {
	if i.uri != nil {
		return i.uri.URIOnly()
	}
	return "<unknown address>"
}

// ---- идентичность ----

// URI адрес ресурса конференции на сервере
func (i *Info) URI() *address.Address {
	return i.uri.Clone()
}

// IsValidURI проверяет наличие корректного адреса конференции
func (i *Info) IsValidURI() bool {
	return i.uri.IsValid()
}

// SetURI сохраняет копию адреса без отображаемого имени и параметров заголовка
func (i *Info) SetURI(uri *address.Address) error {
	if err := i.checkEditable(); err != nil {
		return err
	}
	if !uri.IsValid() {
		return fmt.Errorf("%w: conference URI %q", ErrInvalidAddress, uri.String())
	}
	i.uri = address.FromURI(uri.URI)
	return nil
}

// IcsUID глобальный идентификатор документа (ICS UID)
func (i *Info) IcsUID() string {
	return i.icsUID
}

// SetIcsUID задает UID. После первой установки сменить его нельзя,
// повторная установка того же значения допустима.
func (i *Info) SetIcsUID(uid string) error {
	uid = normalizeText(uid)
	if i.icsUID != "" && uid != i.icsUID {
		return fmt.Errorf("%w: %q -> %q", ErrUIDImmutable, i.icsUID, uid)
	}
	i.icsUID = uid
	return nil
}

// IcsSequence номер версии документа
func (i *Info) IcsSequence() uint32 {
	return i.icsSequence
}

// SetIcsSequence задает номер версии. Уменьшение запрещено.
func (i *Info) SetIcsSequence(seq uint32) error {
	if seq < i.icsSequence {
		return fmt.Errorf("%w: %d -> %d", ErrSequenceRegression, i.icsSequence, seq)
	}
	i.icsSequence = seq
	return nil
}

// ---- организатор ----

// Organizer копия описания организатора или nil
func (i *Info) Organizer() *ParticipantInfo {
	return i.organizer.Clone()
}

// OrganizerAddress вычисляется заново при каждом вызове из описания организатора
func (i *Info) OrganizerAddress() *address.Address {
	if i.organizer == nil {
		return nil
	}
	return i.organizer.Address()
}

// SetOrganizer сохраняет собственную копию описания организатора
func (i *Info) SetOrganizer(organizer *ParticipantInfo) error {
	if err := i.checkEditable(); err != nil {
		return err
	}
	if organizer == nil {
		return ErrNilParticipant
	}
	if !organizer.address.IsValid() {
		return fmt.Errorf("%w: organizer %q", ErrInvalidAddress, organizer.address.String())
	}
	i.organizer = organizer.Clone()
	return nil
}

// SetOrganizerAddress создает организатора по адресу. Параметры заголовка
// адреса становятся параметрами ICS организатора.
func (i *Info) SetOrganizerAddress(addr *address.Address) error {
	if !addr.IsValid() {
		return fmt.Errorf("%w: organizer %q", ErrInvalidAddress, addr.String())
	}
	organizer := NewParticipantInfo(address.FromURI(addr.URI))
	for _, p := range addr.Params {
		if err := organizer.AddParameter(p.Name, p.Value); err != nil {
			return fmt.Errorf("organizer %q: %w", addr.String(), err)
		}
	}
	return i.SetOrganizer(organizer)
}

// ---- состав участников ----

// Participants копии участников в порядке добавления
func (i *Info) Participants() []*ParticipantInfo {
	return lo.Map(i.participants, func(p *ParticipantInfo, _ int) *ParticipantInfo {
		return p.Clone()
	})
}

// ParticipantCount размер состава
func (i *Info) ParticipantCount() int {
	return len(i.participants)
}

// ParticipantAddresses адреса участников. Список строится лениво и
// кешируется до следующей мутации состава; наружу отдаются копии.
func (i *Info) ParticipantAddresses() []*address.Address {
	if !i.addrCache.valid {
		i.addrCache.list = lo.Map(i.participants, func(p *ParticipantInfo, _ int) *address.Address {
			return p.address
		})
		i.addrCache.valid = true
	}
	return lo.Map(i.addrCache.list, func(a *address.Address, _ int) *address.Address {
		return a.Clone()
	})
}

func (i *Info) invalidateRoster() {
	i.addrCache = addressCache{}
}

// SetParticipants добавляет участников по очереди. Дубликаты пропускаются,
// первая ошибка другого рода прерывает добавление.
func (i *Info) SetParticipants(participants []*ParticipantInfo) error {
	for _, p := range participants {
		if err := i.AddParticipant(p); err != nil && !isDuplicate(err) {
			return err
		}
	}
	return nil
}

// AddParticipant добавляет копию участника в конец состава. Если участник с
// таким адресом (WeakEqual) уже есть, состав не меняется.
func (i *Info) AddParticipant(p *ParticipantInfo) error {
	if err := i.checkEditable(); err != nil {
		return err
	}
	if p == nil {
		return ErrNilParticipant
	}
	if !p.address.IsValid() {
		return fmt.Errorf("%w: participant %q", ErrInvalidAddress, p.address.String())
	}
	if i.HasParticipant(p.address) {
		slog.Info("conference: participant already in roster",
			slog.String("participant", p.address.URIOnly()),
			slog.String("conference", i.logRef()))
		return fmt.Errorf("%w: %s", ErrDuplicateParticipant, p.address.URIOnly())
	}
	i.participants = append(i.participants, p.Clone())
	i.invalidateRoster()
	return nil
}

// AddParticipantAddress оборачивает адрес в нового участника
func (i *Info) AddParticipantAddress(addr *address.Address) error {
	return i.AddParticipant(NewParticipantInfo(addr))
}

// RemoveParticipant удаляет первое совпадение по WeakEqual
func (i *Info) RemoveParticipant(addr *address.Address) error {
	if err := i.checkEditable(); err != nil {
		return err
	}
	idx := i.findIndex(addr)
	if idx < 0 {
		slog.Info("conference: unable to remove participant",
			slog.String("participant", addr.URIOnly()),
			slog.String("conference", i.logRef()))
		return fmt.Errorf("%w: %s", ErrParticipantNotFound, addr.URIOnly())
	}
	i.participants = append(i.participants[:idx:idx], i.participants[idx+1:]...)
	i.invalidateRoster()
	return nil
}

// UpdateParticipant удаляет участника с тем же адресом и добавляет копию p
// в конец. Персональный счетчик берется из p, старый не переносится.
func (i *Info) UpdateParticipant(p *ParticipantInfo) error {
	if p == nil {
		return ErrNilParticipant
	}
	if err := i.RemoveParticipant(p.address); err != nil {
		return err
	}
	return i.AddParticipant(p)
}

// FindParticipant копия участника или nil
func (i *Info) FindParticipant(addr *address.Address) *ParticipantInfo {
	if idx := i.findIndex(addr); idx >= 0 {
		return i.participants[idx].Clone()
	}
	slog.Debug("conference: participant not found",
		slog.String("participant", addr.URIOnly()),
		slog.String("conference", i.logRef()))
	return nil
}

// HasParticipant возвращает true, если участник с таким адресом есть в составе
func (i *Info) HasParticipant(addr *address.Address) bool {
	return i.findIndex(addr) >= 0
}

func (i *Info) findIndex(addr *address.Address) int {
	if addr == nil {
		return -1
	}
	_, idx, ok := lo.FindIndexOf(i.participants, func(p *ParticipantInfo) bool {
		return p.matches(addr)
	})
	if !ok {
		return -1
	}
	return idx
}

func (i *Info) participant(addr *address.Address) *ParticipantInfo {
	if idx := i.findIndex(addr); idx >= 0 {
		return i.participants[idx]
	}
	return nil
}

// ---- расписание и текст ----

func (i *Info) DateTime() time.Time {
	return i.dateTime
}

// SetDateTime время начала, хранится в UTC с точностью до секунды
func (i *Info) SetDateTime(t time.Time) error {
	if err := i.checkEditable(); err != nil {
		return err
	}
	i.dateTime = t.UTC().Truncate(time.Second)
	return nil
}

// Duration длительность в минутах
func (i *Info) Duration() uint {
	return i.duration
}

func (i *Info) SetDuration(minutes uint) error {
	if err := i.checkEditable(); err != nil {
		return err
	}
	i.duration = minutes
	return nil
}

func (i *Info) Subject() string {
	return i.subject
}

// UTF8Subject строки Go всегда в UTF-8, значение совпадает с Subject
func (i *Info) UTF8Subject() string {
	return i.subject
}

func (i *Info) SetSubject(subject string) error {
	if err := i.checkEditable(); err != nil {
		return err
	}
	i.subject = normalizeText(subject)
	return nil
}

func (i *Info) SetUTF8Subject(subject string) error {
	return i.SetSubject(subject)
}

func (i *Info) Description() string {
	return i.description
}

func (i *Info) UTF8Description() string {
	return i.description
}

func (i *Info) SetDescription(description string) error {
	if err := i.checkEditable(); err != nil {
		return err
	}
	i.description = normalizeText(description)
	return nil
}

func (i *Info) SetUTF8Description(description string) error {
	return i.SetDescription(description)
}

// ---- безопасность, состояние, служебное ----

func (i *Info) SecurityLevel() SecurityLevel {
	return i.securityLevel
}

// SetSecurityLevel после выделения ресурса на сервере уровень менять нельзя
func (i *Info) SetSecurityLevel(level SecurityLevel) error {
	if err := i.checkEditable(); err != nil {
		return err
	}
	if !level.IsKnown() {
		return fmt.Errorf("%w: %d", ErrUnknownSecurityLevel, int(level))
	}
	if i.allocated && level != i.securityLevel {
		return fmt.Errorf("%w: %s -> %s", ErrSecurityLevelLocked, i.securityLevel, level)
	}
	i.securityLevel = level
	return nil
}

// IsAllocated сервер уже создал ресурс конференции
func (i *Info) IsAllocated() bool {
	return i.allocated
}

// MarkAllocated фиксирует факт создания ресурса на сервере
func (i *Info) MarkAllocated() {
	i.allocated = true
}

func (i *Info) State() State {
	return i.state
}

// SetState переход по матрице состояний. Повтор текущего состояния ничего не делает.
func (i *Info) SetState(state State) error {
	if i.state == state {
		return nil
	}
	if err := validateTransition(i.state, state); err != nil {
		return err
	}
	slog.Info("conference: info state changed",
		slog.String("conference", i.logRef()),
		slog.String("from", i.state.String()),
		slog.String("to", state.String()))
	i.state = state
	return nil
}

// CreationTime время создания описания (ICS CREATED)
func (i *Info) CreationTime() time.Time {
	return i.creationTime
}

// ExtraProperties свойства VEVENT, которые модель не интерпретирует
func (i *Info) ExtraProperties() []ExtraProperty {
	return cloneExtras(i.extras)
}

// AddExtraProperty добавляет непрозрачное свойство VEVENT. Имя приводится
// к верхнему регистру. Свойства, которые выводит сам кодек (UID, SEQUENCE,
// ATTENDEE, ...), отклоняются с ErrInvalidExtraProperty.
func (i *Info) AddExtraProperty(prop ExtraProperty) error {
	if err := i.checkEditable(); err != nil {
		return err
	}
	prop, err := normalizeExtra(prop, reservedEventProps)
	if err != nil {
		return err
	}
	i.extras = append(i.extras, prop)
	return nil
}

// ExtraComponents вложенные в VEVENT компоненты (VALARM и т.п.)
func (i *Info) ExtraComponents() []ExtraComponent {
	return cloneComponents(i.components)
}

// CalendarProperties свойства VCALENDAR кроме VERSION, PRODID и METHOD
func (i *Info) CalendarProperties() []ExtraProperty {
	return cloneExtras(i.calendarExtras)
}

// AddCalendarProperty добавляет непрозрачное свойство VCALENDAR
// (X-WR-CALNAME, CALSCALE, ...).
func (i *Info) AddCalendarProperty(prop ExtraProperty) error {
	if err := i.checkEditable(); err != nil {
		return err
	}
	prop, err := normalizeExtra(prop, reservedCalendarProps)
	if err != nil {
		return err
	}
	i.calendarExtras = append(i.calendarExtras, prop)
	return nil
}

// CalendarComponents компоненты календаря кроме самого события (VTIMEZONE)
func (i *Info) CalendarComponents() []ExtraComponent {
	return cloneComponents(i.calendarComps)
}

// Clone глубокая копия описания
func (i *Info) Clone() *Info {
	if i == nil {
		return nil
	}
	return &Info{
		uri:          i.uri.Clone(),
		organizer:    i.organizer.Clone(),
		participants: i.Participants(),
		dateTime:     i.dateTime,
		duration:     i.duration,
		subject:      i.subject,
		description:  i.description,
		icsSequence:  i.icsSequence,
		icsUID:       i.icsUID,
		state:        i.state,

		securityLevel: i.securityLevel,
		allocated:     i.allocated,
		creationTime:  i.creationTime,

		extras:         cloneExtras(i.extras),
		components:     cloneComponents(i.components),
		calendarExtras: cloneExtras(i.calendarExtras),
		calendarComps:  cloneComponents(i.calendarComps),
	}
}

// String краткое описание для логов
func (i *Info) String() string {
	return fmt.Sprintf("ConferenceInfo{uri: %s, uid: %q, seq: %d, state: %s, participants: %d}",
		i.logRef(), i.icsUID, i.icsSequence, i.state, len(i.participants))
}
