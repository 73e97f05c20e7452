// Package config загружает настройки confsched: YAML файл, поверх него
// переменные окружения с префиксом CONFSCHED (и .env, если он есть),
// затем значения по умолчанию и проверка.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/arzzra/soft_conference/pkg/address"
	"github.com/arzzra/soft_conference/pkg/scheduler"
	"github.com/arzzra/soft_conference/pkg/sipfocus"
)

// EnvPrefix префикс переменных окружения. Имя переменной собирается из
// пути к полю: CONFSCHED_ACCOUNT_CONFERENCE_FACTORY, CONFSCHED_SIP_PORT.
const EnvPrefix = "CONFSCHED"

var validate = validator.New()

// AccountConfig локальная учетная запись
type AccountConfig struct {
	Identity          string `yaml:"identity" validate:"required"`
	ConferenceFactory string `yaml:"conference_factory" split_words:"true"`
}

// SIPConfig транспорт SIP
type SIPConfig struct {
	UserAgent string `yaml:"user_agent" split_words:"true"`
	Hostname  string `yaml:"hostname"`
	Transport string `yaml:"transport" validate:"oneof=UDP TCP TLS WS WSS"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port" validate:"gte=0,lte=65535"`
	WSPath    string `yaml:"ws_path" split_words:"true"`
	CertFile  string `yaml:"cert_file" split_words:"true"`
	KeyFile   string `yaml:"key_file" split_words:"true"`
}

// StoreConfig хранилище описаний. Пустой Dir означает базу в памяти.
type StoreConfig struct {
	Dir string `yaml:"dir"`
}

// SchedulerConfig таймауты планировщика
type SchedulerConfig struct {
	AllocationTimeout time.Duration `yaml:"allocation_timeout" split_words:"true" validate:"gte=0"`
	SendTimeout       time.Duration `yaml:"send_timeout" split_words:"true" validate:"gte=0"`
	// WaitTimeout сколько CLI ждет завершения операции
	WaitTimeout time.Duration `yaml:"wait_timeout" split_words:"true" validate:"gt=0"`
}

// LogConfig журнал
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Config верхний уровень настроек
type Config struct {
	Account   AccountConfig   `yaml:"account"`
	SIP       SIPConfig       `yaml:"sip"`
	Store     StoreConfig     `yaml:"store"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Log       LogConfig       `yaml:"log"`

	// MetricsListen адрес HTTP для /metrics. Пусто - метрики не публикуются.
	MetricsListen string `yaml:"metrics_listen" split_words:"true"`
}

// Default настройки по умолчанию
func Default() *Config {
	transport := sipfocus.DefaultTransportConfig()
	return &Config{
		SIP: SIPConfig{
			UserAgent: "SoftConference/1.0",
			Transport: string(transport.Type),
			Host:      transport.Host,
			Port:      transport.Port,
			WSPath:    transport.WSPath,
		},
		Scheduler: SchedulerConfig{
			AllocationTimeout: 32 * time.Second,
			SendTimeout:       32 * time.Second,
			WaitTimeout:       time.Minute,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Normalize заполняет пустые значения, приводит регистр
func (c *Config) Normalize() {
	def := Default()
	c.SIP.Transport = strings.ToUpper(strings.TrimSpace(c.SIP.Transport))
	if c.SIP.Transport == "" {
		c.SIP.Transport = def.SIP.Transport
	}
	if c.SIP.UserAgent == "" {
		c.SIP.UserAgent = def.SIP.UserAgent
	}
	if c.SIP.Host == "" {
		c.SIP.Host = def.SIP.Host
	}
	if c.SIP.WSPath == "" {
		c.SIP.WSPath = def.SIP.WSPath
	}
	if c.Scheduler.WaitTimeout <= 0 {
		c.Scheduler.WaitTimeout = def.Scheduler.WaitTimeout
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}

// Validate проверяет теги и разбирает адреса
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := c.SchedulerAccount(); err != nil {
		return err
	}
	if err := c.Transport().Validate(); err != nil {
		return fmt.Errorf("config: sip: %w", err)
	}
	return nil
}

// Load читает настройки.
//
// Порядок:
//   - .env из envFile (если файл есть) дополняет окружение
//   - Default()
//   - YAML из path, если path не пуст
//   - переменные CONFSCHED_*
//   - Normalize и Validate
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SchedulerAccount учетная запись для планировщика
func (c *Config) SchedulerAccount() (scheduler.Account, error) {
	identity, err := address.Parse(c.Account.Identity)
	if err != nil {
		return scheduler.Account{}, fmt.Errorf("config: account.identity: %w", err)
	}
	account := scheduler.Account{Identity: identity}
	if c.Account.ConferenceFactory != "" {
		factory, err := address.Parse(c.Account.ConferenceFactory)
		if err != nil {
			return scheduler.Account{}, fmt.Errorf("config: account.conference_factory: %w", err)
		}
		account.ConferenceFactory = factory
	}
	return account, nil
}

// Transport конфигурация транспорта sipfocus
func (c *Config) Transport() sipfocus.TransportConfig {
	return sipfocus.TransportConfig{
		Type:     sipfocus.TransportType(c.SIP.Transport),
		Host:     c.SIP.Host,
		Port:     c.SIP.Port,
		WSPath:   c.SIP.WSPath,
		CertFile: c.SIP.CertFile,
		KeyFile:  c.SIP.KeyFile,
	}
}

// ClientConfig параметры SIP клиента
func (c *Config) ClientConfig() sipfocus.Config {
	return sipfocus.Config{
		UserAgent: c.SIP.UserAgent,
		Hostname:  c.SIP.Hostname,
		Transport: c.Transport(),
	}
}

// NewLogger журнал по настройкам Log
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch c.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
