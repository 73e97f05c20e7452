package conference

import "fmt"

// SecurityLevel уровень защиты медиа конференции. Фиксируется при
// создании ресурса на сервере.
type SecurityLevel int

const (
	SecurityLevelNone SecurityLevel = iota
	SecurityLevelPointToPoint
	SecurityLevelEndToEnd
)

var securityLevelNames = map[SecurityLevel]string{
	SecurityLevelNone:         "none",
	SecurityLevelPointToPoint: "point-to-point",
	SecurityLevelEndToEnd:     "end-to-end",
}

func (l SecurityLevel) String() string {
	if name, ok := securityLevelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("SecurityLevel(%d)", int(l))
}

// IsKnown проверяет, что значение входит в перечисление
func (l SecurityLevel) IsKnown() bool {
	_, ok := securityLevelNames[l]
	return ok
}

// ParseSecurityLevel разбирает строковое имя уровня. Пустая строка означает none.
func ParseSecurityLevel(s string) (SecurityLevel, error) {
	if s == "" {
		return SecurityLevelNone, nil
	}
	for level, name := range securityLevelNames {
		if name == s {
			return level, nil
		}
	}
	return SecurityLevelNone, fmt.Errorf("%w: %q", ErrUnknownSecurityLevel, s)
}
