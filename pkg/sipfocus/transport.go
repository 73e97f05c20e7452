package sipfocus

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// TransportType определяет тип транспортного протокола
type TransportType string

const (
	// TransportUDP - UDP транспорт
	TransportUDP TransportType = "UDP"
	// TransportTCP - TCP транспорт
	TransportTCP TransportType = "TCP"
	// TransportTLS - TLS транспорт
	TransportTLS TransportType = "TLS"
	// TransportWS - WebSocket транспорт
	TransportWS TransportType = "WS"
	// TransportWSS - WebSocket Secure транспорт
	TransportWSS TransportType = "WSS"
)

// ParseTransportType разбирает имя транспорта без учета регистра
func ParseTransportType(s string) (TransportType, error) {
	t := TransportType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case TransportUDP, TransportTCP, TransportTLS, TransportWS, TransportWSS:
		return t, nil
	}
	return "", fmt.Errorf("неизвестный тип транспорта: %s", s)
}

// TransportConfig конфигурация транспорта, на котором слушает клиент
type TransportConfig struct {
	Type TransportType `yaml:"type" validate:"required,oneof=UDP TCP TLS WS WSS"`
	Host string        `yaml:"host"`
	Port int           `yaml:"port" validate:"gte=0,lte=65535"`

	// WSPath - путь для WebSocket соединения (по умолчанию "/")
	WSPath string `yaml:"ws_path"`

	// Сертификат и ключ для TLS и WSS
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// DefaultTransportConfig UDP на всех интерфейсах, порт 5060
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		Type:   TransportUDP,
		Host:   "0.0.0.0",
		Port:   5060,
		WSPath: "/",
	}
}

// Validate проверяет корректность конфигурации транспорта
func (tc TransportConfig) Validate() error {
	if tc.Type == "" {
		return fmt.Errorf("тип транспорта не указан")
	}
	if _, err := ParseTransportType(string(tc.Type)); err != nil {
		return err
	}
	if tc.Port < 0 || tc.Port > 65535 {
		return fmt.Errorf("некорректный порт: %d", tc.Port)
	}
	if tc.IsSecure() && (tc.CertFile == "" || tc.KeyFile == "") {
		return fmt.Errorf("для %s нужны cert_file и key_file", tc.Type)
	}
	if tc.IsWebSocket() {
		if tc.WSPath == "" {
			return fmt.Errorf("WSPath не может быть пустым для WebSocket транспорта")
		}
		if !strings.HasPrefix(tc.WSPath, "/") {
			return fmt.Errorf("WSPath должен начинаться с /")
		}
	}
	return nil
}

// Scheme SIP схема для данного типа транспорта
func (tc TransportConfig) Scheme() string {
	if tc.IsSecure() {
		return "sips"
	}
	return "sip"
}

// TransportParam значение параметра transport в Contact и Via
func (tc TransportConfig) TransportParam() string {
	if tc.Type == "" {
		return "udp"
	}
	return strings.ToLower(string(tc.Type))
}

// IsSecure проверяет, является ли транспорт защищенным
func (tc TransportConfig) IsSecure() bool {
	return tc.Type == TransportTLS || tc.Type == TransportWSS
}

// IsWebSocket проверяет, является ли транспорт WebSocket-based
func (tc TransportConfig) IsWebSocket() bool {
	return tc.Type == TransportWS || tc.Type == TransportWSS
}

// ListenNetwork сетевой тип для sipgo.Server.ListenAndServe
func (tc TransportConfig) ListenNetwork() string {
	switch tc.Type {
	case TransportTCP:
		return "tcp"
	case TransportTLS:
		return "tls"
	case TransportWS:
		return "ws"
	case TransportWSS:
		return "wss"
	default:
		return "udp"
	}
}

// ListenAddr адрес host:port для прослушивания
func (tc TransportConfig) ListenAddr() string {
	return net.JoinHostPort(tc.Host, strconv.Itoa(tc.Port))
}
