package conference

import (
	"fmt"
	"time"

	"github.com/arzzra/soft_conference/pkg/address"
)

// Snapshot форма хранения описания конференции. Переживает сохранение и
// восстановление без потери UID, номера версии и персональных счетчиков.
type Snapshot struct {
	URI           string              `json:"uri,omitempty"`
	Organizer     *ParticipantRecord  `json:"organizer,omitempty"`
	Participants  []ParticipantRecord `json:"participants,omitempty"`
	DateTime      time.Time           `json:"date_time"`
	Duration      uint                `json:"duration"`
	Subject       string              `json:"subject,omitempty"`
	Description   string              `json:"description,omitempty"`
	IcsSequence   uint32              `json:"ics_sequence"`
	IcsUID        string              `json:"ics_uid,omitempty"`
	State         string              `json:"state"`
	SecurityLevel string              `json:"security_level"`
	Allocated     bool                `json:"allocated,omitempty"`
	CreationTime  time.Time           `json:"creation_time"`
	Extras        []ExtraProperty     `json:"extras,omitempty"`

	Components         []ExtraComponent `json:"components,omitempty"`
	CalendarExtras     []ExtraProperty  `json:"calendar_extras,omitempty"`
	CalendarComponents []ExtraComponent `json:"calendar_components,omitempty"`
}

// ParticipantRecord участник в форме хранения
type ParticipantRecord struct {
	Address  string      `json:"address"`
	Admin    bool        `json:"admin,omitempty"`
	Sequence uint32      `json:"sequence"`
	Params   []Parameter `json:"params,omitempty"`
}

func recordOf(p *ParticipantInfo) ParticipantRecord {
	return ParticipantRecord{
		Address:  p.address.String(),
		Admin:    p.admin,
		Sequence: p.sequence,
		Params:   p.params.clone(),
	}
}

func (r ParticipantRecord) participant() (*ParticipantInfo, error) {
	addr, err := address.Parse(r.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidAddress, r.Address, err)
	}
	return &ParticipantInfo{
		address:  addr,
		admin:    r.Admin,
		sequence: r.Sequence,
		params:   parameters(r.Params).clone(),
	}, nil
}

// Snapshot снимок текущего описания
func (i *Info) Snapshot() Snapshot {
	s := Snapshot{
		DateTime:      i.dateTime,
		Duration:      i.duration,
		Subject:       i.subject,
		Description:   i.description,
		IcsSequence:   i.icsSequence,
		IcsUID:        i.icsUID,
		State:         i.state.String(),
		SecurityLevel: i.securityLevel.String(),
		Allocated:     i.allocated,
		CreationTime:  i.creationTime,
		Extras:        cloneExtras(i.extras),

		Components:         cloneComponents(i.components),
		CalendarExtras:     cloneExtras(i.calendarExtras),
		CalendarComponents: cloneComponents(i.calendarComps),
	}
	if i.uri != nil {
		s.URI = i.uri.String()
	}
	if i.organizer != nil {
		rec := recordOf(i.organizer)
		s.Organizer = &rec
	}
	for _, p := range i.participants {
		s.Participants = append(s.Participants, recordOf(p))
	}
	return s
}

// FromSnapshot восстанавливает описание из снимка. Состояние и счетчики
// берутся как есть, без проверок переходов.
func FromSnapshot(s Snapshot) (*Info, error) {
	state, err := ParseState(s.State)
	if err != nil {
		return nil, err
	}
	level, err := ParseSecurityLevel(s.SecurityLevel)
	if err != nil {
		return nil, err
	}

	info := &Info{
		dateTime:      s.DateTime.UTC(),
		duration:      s.Duration,
		subject:       s.Subject,
		description:   s.Description,
		icsSequence:   s.IcsSequence,
		icsUID:        s.IcsUID,
		state:         state,
		securityLevel: level,
		allocated:     s.Allocated,
		creationTime:  s.CreationTime.UTC(),
		extras:        cloneExtras(s.Extras),

		components:     cloneComponents(s.Components),
		calendarExtras: cloneExtras(s.CalendarExtras),
		calendarComps:  cloneComponents(s.CalendarComponents),
	}
	if s.URI != "" {
		if info.uri, err = address.Parse(s.URI); err != nil {
			return nil, fmt.Errorf("%w: conference uri %q: %w", ErrInvalidAddress, s.URI, err)
		}
	}
	if s.Organizer != nil {
		if info.organizer, err = s.Organizer.participant(); err != nil {
			return nil, err
		}
	}
	for _, rec := range s.Participants {
		p, err := rec.participant()
		if err != nil {
			return nil, err
		}
		if info.HasParticipant(p.address) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateParticipant, p.address.URIOnly())
		}
		info.participants = append(info.participants, p)
	}
	return info, nil
}
