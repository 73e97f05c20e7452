package sipfocus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  TransportConfig
		wantErr string
	}{
		{
			name:   "Валидный UDP транспорт",
			config: TransportConfig{Type: TransportUDP, Host: "192.168.1.100", Port: 5060},
		},
		{
			name:   "Валидный WS транспорт с путём",
			config: TransportConfig{Type: TransportWS, Host: "ws.example.com", Port: 80, WSPath: "/websocket"},
		},
		{
			name:   "TLS с сертификатом",
			config: TransportConfig{Type: TransportTLS, Port: 5061, CertFile: "cert.pem", KeyFile: "key.pem"},
		},
		{
			name:    "Пустой тип транспорта",
			config:  TransportConfig{Host: "example.com", Port: 5060},
			wantErr: "тип транспорта не указан",
		},
		{
			name:    "Неизвестный тип транспорта",
			config:  TransportConfig{Type: "SCTP", Port: 5060},
			wantErr: "неизвестный тип транспорта",
		},
		{
			name:    "Порт вне диапазона",
			config:  TransportConfig{Type: TransportTCP, Port: 70000},
			wantErr: "некорректный порт",
		},
		{
			name:    "TLS без сертификата",
			config:  TransportConfig{Type: TransportTLS, Port: 5061},
			wantErr: "cert_file",
		},
		{
			name:    "WS без слеша",
			config:  TransportConfig{Type: TransportWS, Port: 80, WSPath: "ws"},
			wantErr: "WSPath должен начинаться с /",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTransportConfigDerivedValues(t *testing.T) {
	tests := []struct {
		typ     TransportType
		scheme  string
		param   string
		network string
	}{
		{TransportUDP, "sip", "udp", "udp"},
		{TransportTCP, "sip", "tcp", "tcp"},
		{TransportTLS, "sips", "tls", "tls"},
		{TransportWS, "sip", "ws", "ws"},
		{TransportWSS, "sips", "wss", "wss"},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			tc := TransportConfig{Type: tt.typ, Host: "10.0.0.1", Port: 5070}
			assert.Equal(t, tt.scheme, tc.Scheme())
			assert.Equal(t, tt.param, tc.TransportParam())
			assert.Equal(t, tt.network, tc.ListenNetwork())
			assert.Equal(t, "10.0.0.1:5070", tc.ListenAddr())
		})
	}
}

func TestParseTransportType(t *testing.T) {
	got, err := ParseTransportType(" wss ")
	require.NoError(t, err)
	assert.Equal(t, TransportWSS, got)

	_, err = ParseTransportType("quic")
	assert.Error(t, err)
}

func TestClientContact(t *testing.T) {
	tests := []struct {
		name     string
		tc       TransportConfig
		hostname string
		want     string
		ok       bool
	}{
		{
			name:     "UDP без параметра transport",
			tc:       TransportConfig{Type: TransportUDP, Host: "0.0.0.0", Port: 5060},
			hostname: "pbx.example.com",
			want:     "sip:alice@pbx.example.com:5060",
			ok:       true,
		},
		{
			name: "TCP на конкретном адресе",
			tc:   TransportConfig{Type: TransportTCP, Host: "10.0.0.1", Port: 5070},
			want: "sip:alice@10.0.0.1:5070;transport=tcp",
			ok:   true,
		},
		{
			name:     "TLS дает sips",
			tc:       TransportConfig{Type: TransportTLS, Host: "0.0.0.0", Port: 5061},
			hostname: "conf.example.com",
			want:     "sips:alice@conf.example.com:5061;transport=tls",
			ok:       true,
		},
		{
			name: "все интерфейсы без имени хоста",
			tc:   TransportConfig{Type: TransportUDP, Host: "::", Port: 5060},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{transport: tt.tc, hostname: tt.hostname}
			got, ok := c.Contact("alice")
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.want, got.String())
		})
	}
}
