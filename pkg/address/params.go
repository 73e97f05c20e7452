package address

import (
	"fmt"
	"strings"
)

// Param одна пара имя=значение
type Param struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// Params упорядоченный набор параметров. Порядок вставки сохраняется,
// имена сравниваются без учета регистра.
type Params []Param

// Get возвращает значение параметра
func (p Params) Get(name string) (string, bool) {
	if i := p.index(name); i >= 0 {
		return p[i].Value, true
	}
	return "", false
}

// Has проверяет наличие параметра
func (p Params) Has(name string) bool {
	return p.index(name) >= 0
}

// Set заменяет значение существующего параметра на месте или добавляет новый в конец.
func (p Params) Set(name, value string) Params {
	if i := p.index(name); i >= 0 {
		p[i].Value = value
		return p
	}
	return append(p, Param{Name: name, Value: value})
}

// Del удаляет параметр
func (p Params) Del(name string) Params {
	if i := p.index(name); i >= 0 {
		return append(p[:i:i], p[i+1:]...)
	}
	return p
}

// Keys имена параметров в порядке добавления
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for _, kv := range p {
		keys = append(keys, kv.Name)
	}
	return keys
}

// Clone копия набора
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	copy(out, p)
	return out
}

// String форматирует параметры как ";a=b;c"
func (p Params) String() string {
	var sb strings.Builder
	for _, kv := range p {
		sb.WriteByte(';')
		sb.WriteString(kv.Name)
		if kv.Value != "" {
			sb.WriteByte('=')
			sb.WriteString(kv.Value)
		}
	}
	return sb.String()
}

func (p Params) index(name string) int {
	for i, kv := range p {
		if strings.EqualFold(kv.Name, name) {
			return i
		}
	}
	return -1
}

func parseParams(s string) (Params, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if s[0] != ';' {
		return nil, fmt.Errorf("unexpected %q after address", s)
	}

	var params Params
	for _, part := range strings.Split(s[1:], ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("empty parameter name in %q", s)
		}
		params = params.Set(name, strings.Trim(strings.TrimSpace(value), `"`))
	}
	return params, nil
}
