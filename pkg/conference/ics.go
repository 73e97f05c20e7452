//go:build !noics

package conference

import (
	"bytes"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/arzzra/soft_conference/pkg/address"
)

const icsEnabled = true

// MarshalICS как ToICS, но возвращает ошибку кодирования
func (i *Info) MarshalICS(cancel bool, sequence int) (string, error) {
	method := MethodRequest
	if cancel || i.state == StateCancelled {
		method = MethodCancel
	}

	uid := i.icsUID
	if uid == "" {
		uid = NewUID()
	}
	seq := i.icsSequence
	if sequence >= 0 {
		seq = uint32(sequence)
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Props.SetText(ical.PropMethod, method)
	addExtraProps(cal.Props, i.calendarExtras)

	event := ical.NewComponent(ical.CompEvent)
	if i.organizer != nil && i.organizer.address.IsValid() {
		event.Props.Add(participantProp(ical.PropOrganizer, i.organizer))
	}
	if i.uri.IsValid() {
		prop := ical.NewProp(propConfURI)
		prop.Value = i.uri.URIOnly()
		event.Props.Set(prop)
	}
	for _, p := range i.participants {
		if p.address.IsValid() {
			event.Props.Add(participantProp(ical.PropAttendee, p))
		}
	}
	if i.subject != "" {
		event.Props.SetText(ical.PropSummary, i.subject)
	}
	if i.description != "" {
		event.Props.SetText(ical.PropDescription, i.description)
	}

	event.Props.SetDateTime(ical.PropDateTimeStart, i.dateTime.UTC())
	duration := ical.NewProp(ical.PropDuration)
	duration.Value = fmt.Sprintf("PT%dH%dM", i.duration/60, i.duration%60)
	event.Props.Set(duration)

	seqProp := ical.NewProp(ical.PropSequence)
	seqProp.Value = strconv.FormatUint(uint64(seq), 10)
	event.Props.Set(seqProp)

	uidProp := ical.NewProp(ical.PropUID)
	uidProp.Value = uid
	event.Props.Set(uidProp)

	stamp := i.creationTime
	if stamp.IsZero() {
		stamp = time.Now().UTC().Truncate(time.Second)
	} else {
		event.Props.SetDateTime(ical.PropCreated, stamp.UTC())
	}
	event.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())

	addExtraProps(event.Props, i.extras)
	event.Children = componentsOf(i.components)

	cal.Children = append(cal.Children, event)
	cal.Children = append(cal.Children, componentsOf(i.calendarComps)...)

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", fmt.Errorf("conference: encode iCalendar: %w", err)
	}

	// UID и номер версии принимаются один раз, при первой сериализации
	if i.icsUID == "" {
		i.icsUID = uid
	}
	if i.icsSequence == 0 {
		i.icsSequence = seq
	}

	slog.Debug("conference.MarshalICS",
		slog.String("conference", i.logRef()),
		slog.String("method", method),
		slog.String("uid", uid),
		slog.Int("sequence", int(seq)))
	return buf.String(), nil
}

func participantProp(name string, p *ParticipantInfo) *ical.Prop {
	prop := ical.NewProp(name)
	prop.Value = p.address.URIOnly()
	for _, param := range p.params {
		prop.Params[strings.ToUpper(param.Name)] = slices.Clone(param.Values)
	}
	return prop
}

func addExtraProps(props ical.Props, extras []ExtraProperty) {
	for _, extra := range extras {
		prop := ical.NewProp(extra.Name)
		prop.Value = extra.Value
		for k, v := range extra.Params {
			prop.Params[k] = slices.Clone(v)
		}
		props.Add(prop)
	}
}

func componentsOf(extras []ExtraComponent) []*ical.Component {
	out := make([]*ical.Component, 0, len(extras))
	for _, extra := range extras {
		comp := ical.NewComponent(extra.Name)
		addExtraProps(comp.Props, extra.Properties)
		comp.Children = componentsOf(extra.Children)
		out = append(out, comp)
	}
	return out
}

func logICSError(i *Info, err error) {
	slog.Error("conference: failed to serialize conference",
		slog.String("conference", i.logRef()),
		slog.String("error", err.Error()))
}

// FromICS разбирает документ iCalendar с одним VEVENT.
//
// METHOD:CANCEL дает состояние Cancelled, иначе New при SEQUENCE 0 и
// Updated при большем номере. Неизвестные свойства события и календаря,
// участники не-SIP схем и вложенные компоненты (VALARM, VTIMEZONE)
// сохраняются и выводятся обратно при сериализации. DTEND без DURATION
// переводится в длительность.
func FromICS(data []byte) (*Info, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyICS
	}
	cal, err := ical.NewDecoder(bytes.NewReader(data)).Decode()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedICS, err)
	}

	eventIdx := slices.IndexFunc(cal.Children, func(c *ical.Component) bool {
		return c.Name == ical.CompEvent
	})
	if eventIdx < 0 {
		return nil, fmt.Errorf("%w: no VEVENT", ErrMalformedICS)
	}
	event := cal.Children[eventIdx]

	info := &Info{
		calendarExtras: extrasOf(cal.Props, reservedCalendarProps),
		components:     extraComponents(alarmsOf(event.Children)),
	}
	for idx, child := range cal.Children {
		if idx != eventIdx {
			info.calendarComps = append(info.calendarComps, extraComponentOf(child))
		}
	}

	if prop := event.Props.Get(ical.PropOrganizer); prop != nil {
		organizer, err := participantFromProp(*prop)
		if err != nil {
			return nil, fmt.Errorf("%w: organizer: %w", ErrMalformedICS, err)
		}
		info.organizer = organizer
	}
	for _, prop := range event.Props.Values(ical.PropAttendee) {
		p, err := participantFromProp(prop)
		if err != nil {
			slog.Debug("conference.FromICS: attendee kept as extra property",
				slog.String("value", prop.Value))
			info.extras = append(info.extras, extraFromProp(prop))
			continue
		}
		if info.HasParticipant(p.address) {
			continue
		}
		info.participants = append(info.participants, p)
	}

	if prop := event.Props.Get(propConfURI); prop != nil {
		uri, err := address.Parse(prop.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedICS, propConfURI, err)
		}
		info.uri = address.FromURI(uri.URI)
	}
	if info.subject, err = event.Props.Text(ical.PropSummary); err != nil {
		return nil, fmt.Errorf("%w: summary: %w", ErrMalformedICS, err)
	}
	info.subject = normalizeText(info.subject)
	if info.description, err = event.Props.Text(ical.PropDescription); err != nil {
		return nil, fmt.Errorf("%w: description: %w", ErrMalformedICS, err)
	}
	info.description = normalizeText(info.description)

	if prop := event.Props.Get(ical.PropDateTimeStart); prop != nil {
		t, err := prop.DateTime(time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%w: dtstart: %w", ErrMalformedICS, err)
		}
		info.dateTime = t.UTC()
	}
	if prop := event.Props.Get(ical.PropDuration); prop != nil {
		d, err := prop.Duration()
		if err != nil {
			return nil, fmt.Errorf("%w: duration: %w", ErrMalformedICS, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("%w: negative duration %s", ErrMalformedICS, prop.Value)
		}
		info.duration = uint(d / time.Minute)
	} else if prop := event.Props.Get(ical.PropDateTimeEnd); prop != nil && !info.dateTime.IsZero() {
		end, err := prop.DateTime(time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%w: dtend: %w", ErrMalformedICS, err)
		}
		if end.Before(info.dateTime) {
			return nil, fmt.Errorf("%w: dtend before dtstart", ErrMalformedICS)
		}
		info.duration = uint(end.Sub(info.dateTime) / time.Minute)
	}
	if prop := event.Props.Get(ical.PropSequence); prop != nil {
		seq, err := strconv.ParseUint(strings.TrimSpace(prop.Value), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: sequence: %w", ErrMalformedICS, err)
		}
		info.icsSequence = uint32(seq)
	}
	if prop := event.Props.Get(ical.PropUID); prop != nil {
		info.icsUID = strings.TrimSpace(prop.Value)
	}
	if prop := event.Props.Get(ical.PropCreated); prop != nil {
		if t, err := prop.DateTime(time.UTC); err == nil {
			info.creationTime = t.UTC()
		}
	}

	info.extras = append(info.extras, extrasOf(event.Props, reservedEventProps)...)

	switch method := methodOf(cal); {
	case method == MethodCancel:
		info.state = StateCancelled
	case info.icsSequence == 0:
		info.state = StateNew
	default:
		info.state = StateUpdated
	}
	return info, nil
}

func methodOf(cal *ical.Calendar) string {
	if prop := cal.Props.Get(ical.PropMethod); prop != nil {
		return strings.ToUpper(strings.TrimSpace(prop.Value))
	}
	return MethodRequest
}

func participantFromProp(prop ical.Prop) (*ParticipantInfo, error) {
	addr, err := address.Parse(prop.Value)
	if err != nil {
		return nil, err
	}
	p := NewParticipantInfo(addr)
	keys := make([]string, 0, len(prop.Params))
	for k := range prop.Params {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := p.AddParameter(k, prop.Params[k]...); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// extrasOf свойства, не входящие в reserved, в порядке имен
func extrasOf(props ical.Props, reserved map[string]bool) []ExtraProperty {
	names := make([]string, 0, len(props))
	for name := range props {
		if !reserved[name] {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	var out []ExtraProperty
	for _, name := range names {
		for _, prop := range props[name] {
			out = append(out, extraFromProp(prop))
		}
	}
	return out
}

func extraComponents(comps []*ical.Component) []ExtraComponent {
	var out []ExtraComponent
	for _, comp := range comps {
		out = append(out, extraComponentOf(comp))
	}
	return out
}

// alarmsOf внутри VEVENT допустим только VALARM, остальное кодек не выведет
func alarmsOf(comps []*ical.Component) []*ical.Component {
	return slices.DeleteFunc(slices.Clone(comps), func(c *ical.Component) bool {
		return c.Name != ical.CompAlarm
	})
}

func extraComponentOf(comp *ical.Component) ExtraComponent {
	return ExtraComponent{
		Name:       comp.Name,
		Properties: extrasOf(comp.Props, nil),
		Children:   extraComponents(comp.Children),
	}
}

func extraFromProp(prop ical.Prop) ExtraProperty {
	extra := ExtraProperty{Name: prop.Name, Value: prop.Value}
	if len(prop.Params) > 0 {
		extra.Params = make(map[string][]string, len(prop.Params))
		for k, v := range prop.Params {
			extra.Params[k] = slices.Clone(v)
		}
	}
	return extra
}
