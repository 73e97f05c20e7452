// Package address описывает адрес участника конференции поверх sip.Uri.
//
// Адрес состоит из отображаемого имени, SIP URI и упорядоченного набора
// заголовочных параметров (то, что стоит после '>' в From/To/Contact).
// Сравнение адресов выполняется через WeakEqual, который игнорирует
// транспортные украшения: параметры URI и заголовка, отображаемое имя.
package address

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/emiago/sipgo/sip"
)

var (
	// ErrEmptyAddress возвращается при разборе пустой строки
	ErrEmptyAddress = errors.New("address: empty address")
	// ErrInvalidAddress возвращается при невалидном SIP URI
	ErrInvalidAddress = errors.New("address: invalid SIP address")
)

const (
	defaultSIPPort  = 5060
	defaultSIPSPort = 5061
)

// Address адрес участника, организатора или самой конференции.
type Address struct {
	DisplayName string
	URI         sip.Uri
	Params      Params
}

// Parse разбирает адрес в одной из форм:
//
//	sip:alice@example.com
//	<sip:alice@example.com;transport=tcp>;role=chair
//	"Alice" <sips:alice@example.com:5061>;x-tag=1
func Parse(s string) (*Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyAddress
	}

	addr := &Address{}
	uriStr := s

	if lt := strings.IndexByte(s, '<'); lt >= 0 {
		gt := strings.IndexByte(s[lt:], '>')
		if gt < 0 {
			return nil, fmt.Errorf("%w: unterminated '<' in %q", ErrInvalidAddress, s)
		}
		gt += lt
		addr.DisplayName = unquote(strings.TrimSpace(s[:lt]))
		uriStr = s[lt+1 : gt]

		params, err := parseParams(s[gt+1:])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		addr.Params = params
	}

	if err := sip.ParseUri(strings.TrimSpace(uriStr), &addr.URI); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, uriStr, err)
	}
	if !addr.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return addr, nil
}

// MustParse как Parse, но паникует при ошибке. Для констант и тестов.
func MustParse(s string) *Address {
	addr, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// FromURI создает адрес без имени и параметров
func FromURI(uri sip.Uri) *Address {
	return &Address{URI: *uri.Clone()}
}

// IsValid проверяет, что адрес пригоден для отправки: схема sip/sips и непустой хост.
func (a *Address) IsValid() bool {
	if a == nil {
		return false
	}
	switch strings.ToLower(a.URI.Scheme) {
	case "sip", "sips", "":
	default:
		return false
	}
	return a.URI.Host != ""
}

// WeakEqual сравнивает адреса по user, host и порту.
// Параметры URI (transport, gr, ...), параметры заголовка и имя не учитываются.
// Схема влияет только на порт по умолчанию: sips без порта это 5061.
func (a *Address) WeakEqual(other *Address) bool {
	if a == nil || other == nil {
		return a == nil && other == nil
	}
	return a.URI.User == other.URI.User &&
		strings.EqualFold(a.URI.Host, other.URI.Host) &&
		effectivePort(a.URI) == effectivePort(other.URI)
}

// Canonical ключ адреса, согласованный с WeakEqual: два адреса равны по
// WeakEqual тогда и только тогда, когда равны их ключи.
func (a *Address) Canonical() string {
	if a == nil {
		return ""
	}
	return fmt.Sprintf("%s@%s:%d", a.URI.User, strings.ToLower(a.URI.Host), effectivePort(a.URI))
}

// URIOnly возвращает только URI без отображаемого имени и параметров заголовка.
// Параметры URI сохраняются. Именно это значение попадает в
// ORGANIZER/ATTENDEE/X-CONFURI.
func (a *Address) URIOnly() string {
	if a == nil {
		return ""
	}
	uri := a.URI
	if uri.Scheme == "" {
		uri.Scheme = "sip"
	}
	return uri.String()
}

// String возвращает адрес в форме заголовка From/To
func (a *Address) String() string {
	if a == nil {
		return ""
	}
	if a.DisplayName == "" && len(a.Params) == 0 {
		return a.URIOnly()
	}
	var sb strings.Builder
	if a.DisplayName != "" {
		sb.WriteString(strconv.Quote(a.DisplayName))
		sb.WriteByte(' ')
	}
	sb.WriteByte('<')
	sb.WriteString(a.URIOnly())
	sb.WriteByte('>')
	sb.WriteString(a.Params.String())
	return sb.String()
}

// Clone глубокая копия адреса
func (a *Address) Clone() *Address {
	if a == nil {
		return nil
	}
	return &Address{
		DisplayName: a.DisplayName,
		URI:         *a.URI.Clone(),
		Params:      a.Params.Clone(),
	}
}

func effectivePort(uri sip.Uri) int {
	if uri.Port != 0 {
		return uri.Port
	}
	if strings.EqualFold(uri.Scheme, "sips") {
		return defaultSIPSPort
	}
	return defaultSIPPort
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
		return s[1 : len(s)-1]
	}
	return s
}
