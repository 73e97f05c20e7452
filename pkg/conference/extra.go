package conference

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ExtraProperty свойство iCalendar, которое модель не интерпретирует.
// Хранится как есть и выводится обратно при сериализации.
type ExtraProperty struct {
	Name   string              `json:"name"`
	Params map[string][]string `json:"params,omitempty"`
	Value  string              `json:"value"`
}

// ExtraComponent компонент iCalendar, который модель не интерпретирует:
// VALARM внутри события, VTIMEZONE и другие компоненты календаря.
type ExtraComponent struct {
	Name       string           `json:"name"`
	Properties []ExtraProperty  `json:"properties,omitempty"`
	Children   []ExtraComponent `json:"children,omitempty"`
}

// Свойства, которые кодек выводит сам. Как ExtraProperty их добавить нельзя.
var (
	reservedEventProps = map[string]bool{
		"ORGANIZER":   true,
		"ATTENDEE":    true,
		"SUMMARY":     true,
		"DESCRIPTION": true,
		"DTSTART":     true,
		"DTEND":       true,
		"DURATION":    true,
		"SEQUENCE":    true,
		"UID":         true,
		"CREATED":     true,
		"DTSTAMP":     true,
		propConfURI:   true,
	}
	reservedCalendarProps = map[string]bool{
		"VERSION": true,
		"PRODID":  true,
		"METHOD":  true,
	}
)

func (p ExtraProperty) clone() ExtraProperty {
	out := ExtraProperty{Name: p.Name, Value: p.Value}
	if len(p.Params) > 0 {
		out.Params = make(map[string][]string, len(p.Params))
		for k, v := range p.Params {
			out.Params[k] = slices.Clone(v)
		}
	}
	return out
}

func (c ExtraComponent) clone() ExtraComponent {
	return ExtraComponent{
		Name:       c.Name,
		Properties: cloneExtras(c.Properties),
		Children:   cloneComponents(c.Children),
	}
}

func cloneExtras(in []ExtraProperty) []ExtraProperty {
	if len(in) == 0 {
		return nil
	}
	out := make([]ExtraProperty, len(in))
	for i, p := range in {
		out[i] = p.clone()
	}
	return out
}

func cloneComponents(in []ExtraComponent) []ExtraComponent {
	if len(in) == 0 {
		return nil
	}
	out := make([]ExtraComponent, len(in))
	for i, c := range in {
		out[i] = c.clone()
	}
	return out
}

// normalizeExtra приводит имя к верхнему регистру и проверяет, что свойство
// не пересекается с выводимыми кодеком.
func normalizeExtra(prop ExtraProperty, reserved map[string]bool) (ExtraProperty, error) {
	prop.Name = strings.ToUpper(strings.TrimSpace(prop.Name))
	switch {
	case prop.Name == "":
		return prop, fmt.Errorf("%w: empty property name", ErrInvalidExtraProperty)
	case reserved[prop.Name]:
		return prop, fmt.Errorf("%w: %s is written by the codec", ErrInvalidExtraProperty, prop.Name)
	case strings.ContainsAny(prop.Value, "\r\n"):
		return prop, fmt.Errorf("%w: %s value contains a line break", ErrInvalidExtraProperty, prop.Name)
	}
	return prop.clone(), nil
}

func isDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateParticipant)
}
