package conference

import (
	"fmt"
	"slices"
	"strings"
)

// Parameter параметр ICS участника (ROLE, CN, RSVP, ...). MEMBER,
// DELEGATED-TO и DELEGATED-FROM допускают несколько значений.
type Parameter struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Value первое значение параметра
func (p Parameter) Value() string {
	if len(p.Values) == 0 {
		return ""
	}
	return p.Values[0]
}

// parameters упорядоченный набор, имена сравниваются без учета регистра
type parameters []Parameter

func (ps parameters) index(name string) int {
	for i, p := range ps {
		if strings.EqualFold(p.Name, name) {
			return i
		}
	}
	return -1
}

func (ps parameters) get(name string) (Parameter, bool) {
	if i := ps.index(name); i >= 0 {
		return ps[i], true
	}
	return Parameter{}, false
}

// set заменяет параметр на месте или добавляет в конец
func (ps parameters) set(p Parameter) parameters {
	if i := ps.index(p.Name); i >= 0 {
		ps[i] = p
		return ps
	}
	return append(ps, p)
}

func (ps parameters) del(name string) parameters {
	if i := ps.index(name); i >= 0 {
		return append(ps[:i:i], ps[i+1:]...)
	}
	return ps
}

func (ps parameters) clone() parameters {
	if ps == nil {
		return nil
	}
	out := make(parameters, len(ps))
	for i, p := range ps {
		out[i] = Parameter{Name: p.Name, Values: slices.Clone(p.Values)}
	}
	return out
}

// newParameter проверяет имя и значения по грамматике RFC 5545: имя из
// букв, цифр и '-', значение без DQUOTE и управляющих символов.
func newParameter(name string, values []string) (Parameter, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return Parameter{}, fmt.Errorf("%w: empty name", ErrInvalidParameter)
	}
	for _, r := range name {
		if !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-') {
			return Parameter{}, fmt.Errorf("%w: name %q", ErrInvalidParameter, name)
		}
	}
	if len(values) == 0 {
		return Parameter{}, fmt.Errorf("%w: %s has no value", ErrInvalidParameter, name)
	}
	for _, v := range values {
		if strings.ContainsFunc(v, func(r rune) bool {
			return r == '"' || r < 0x20 && r != '\t' || r == 0x7f
		}) {
			return Parameter{}, fmt.Errorf("%w: %s value %q", ErrInvalidParameter, name, v)
		}
	}
	return Parameter{Name: name, Values: slices.Clone(values)}, nil
}
