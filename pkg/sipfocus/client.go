// Package sipfocus связывает планировщик конференций с SIP: выделение
// ресурса на сервере конференций (focus), рассылку описаний через MESSAGE
// и прием входящих описаний.
//
// Транзакционный уровень предоставляет sipgo. Компоненты пакета зависят
// только от интерфейса Transactor, поэтому в тестах sipgo не нужен.
package sipfocus

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/emiago/sipgo"
	"github.com/emiago/sipgo/sip"
)

// Config параметры SIP клиента
type Config struct {
	// UserAgent - строка User-Agent для SIP запросов
	UserAgent string
	// Hostname - имя хоста для Via и From по умолчанию
	Hostname  string
	Transport TransportConfig
}

// Client SIP user agent для запросов к серверу конференций и приема MESSAGE
type Client struct {
	ua     *sipgo.UserAgent
	client *sipgo.Client
	server *sipgo.Server

	transport TransportConfig
	hostname  string
	logger    *slog.Logger

	mu     sync.RWMutex
	closed bool
}

var (
	_ Transactor      = (*Client)(nil)
	_ contactProvider = (*Client)(nil)
)

// NewClient создает user agent, клиент и сервер sipgo
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	o := applyOptions(opts)

	if cfg.Transport.Type == "" {
		cfg.Transport = DefaultTransportConfig()
	}
	if err := cfg.Transport.Validate(); err != nil {
		return nil, fmt.Errorf("некорректная конфигурация транспорта: %w", err)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "SoftConference/1.0"
	}
	hostname := cfg.Hostname
	if hostname == "" {
		hostname = cfg.Transport.Host
	}

	ua, err := sipgo.NewUA(
		sipgo.WithUserAgent(cfg.UserAgent),
		sipgo.WithUserAgentHostname(hostname),
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания User Agent: %w", err)
	}

	client, err := sipgo.NewClient(ua, sipgo.WithClientHostname(hostname))
	if err != nil {
		_ = ua.Close()
		return nil, fmt.Errorf("ошибка создания клиента: %w", err)
	}

	server, err := sipgo.NewServer(ua)
	if err != nil {
		_ = ua.Close()
		return nil, fmt.Errorf("ошибка создания сервера: %w", err)
	}

	return &Client{
		ua:        ua,
		client:    client,
		server:    server,
		transport: cfg.Transport,
		hostname:  hostname,
		logger:    o.logger.With(slog.String("component", "focus-client")),
	}, nil
}

// Do отправляет запрос и ждет финальный ответ
func (c *Client) Do(ctx context.Context, req *sip.Request) (*sip.Response, error) {
	if c.isClosed() {
		return nil, ErrClientClosed
	}
	c.logger.Debug("Client.Do",
		slog.String("method", req.Method.String()),
		slog.String("recipient", req.Recipient.String()))

	res, err := c.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Client.Do response",
		slog.String("method", req.Method.String()),
		slog.Int("status", res.StatusCode),
		slog.String("reason", res.Reason))
	return res, nil
}

// WriteRequest отправляет запрос без транзакции, Via добавляется
func (c *Client) WriteRequest(req *sip.Request) error {
	if c.isClosed() {
		return ErrClientClosed
	}
	return c.client.WriteRequest(req, sipgo.ClientRequestAddVia)
}

// Contact адрес клиента для заголовка Contact: схема и transport берутся
// из конфигурации транспорта, хост из Hostname. false, если клиент слушает
// на всех интерфейсах и имя хоста не задано.
func (c *Client) Contact(user string) (sip.Uri, bool) {
	return contactURI(c.transport, c.hostname, user)
}

// HandleMessages направляет входящие MESSAGE в обработчик
func (c *Client) HandleMessages(h *InboundHandler) {
	c.server.OnMessage(h.HandleMessage)
}

// Listen запускает прослушивание входящих соединений. Блокируется до
// отмены ctx.
func (c *Client) Listen(ctx context.Context) error {
	if c.isClosed() {
		return ErrClientClosed
	}

	network := c.transport.ListenNetwork()
	addr := c.transport.ListenAddr()
	c.logger.Info("sipfocus: listening",
		slog.String("transport", string(c.transport.Type)),
		slog.String("network", network),
		slog.String("address", addr))

	if c.transport.IsSecure() {
		cert, err := tls.LoadX509KeyPair(c.transport.CertFile, c.transport.KeyFile)
		if err != nil {
			return fmt.Errorf("sipfocus: load certificate: %w", err)
		}
		conf := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
		return c.server.ListenAndServeTLS(ctx, network, addr, conf)
	}
	return c.server.ListenAndServe(ctx, network, addr)
}

// Close останавливает клиент, сервер и user agent
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	var errs []error
	if err := c.client.Close(); err != nil {
		errs = append(errs, fmt.Errorf("client: %w", err))
	}
	if err := c.server.Close(); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	if err := c.ua.Close(); err != nil {
		errs = append(errs, fmt.Errorf("user agent: %w", err))
	}
	return errors.Join(errs...)
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
