package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arzzra/soft_conference/pkg/address"
	"github.com/arzzra/soft_conference/pkg/conference"
)

// ConferenceFile описание конференции для команды schedule:
//
//	uri: sip:conf-7f3a@example.com   # пусто для новой конференции
//	subject: Standup
//	start: 2026-03-02T09:30:00Z
//	duration: 15                     # минуты
//	security_level: none
//	participants:
//	  - sip:bob@example.com
//	  - "<sip:carol@example.com>;role=chair"
type ConferenceFile struct {
	URI           string    `yaml:"uri"`
	UID           string    `yaml:"uid"`
	Organizer     string    `yaml:"organizer"`
	Subject       string    `yaml:"subject" validate:"max=1024"`
	Description   string    `yaml:"description"`
	Start         time.Time `yaml:"start" validate:"required"`
	Duration      uint      `yaml:"duration" validate:"lte=10080"`
	SecurityLevel string    `yaml:"security_level" validate:"omitempty,oneof=none point-to-point end-to-end"`
	Participants  []string  `yaml:"participants" validate:"dive,required"`
}

// LoadConference читает и проверяет файл описания
func LoadConference(path string) (*ConferenceFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var f ConferenceFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := validate.Struct(&f); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &f, nil
}

// Info строит описание конференции. Повторяющиеся участники пропускаются.
func (f *ConferenceFile) Info() (*conference.Info, error) {
	info := conference.NewInfo()

	if f.URI != "" {
		uri, err := address.Parse(f.URI)
		if err != nil {
			return nil, fmt.Errorf("config: uri: %w", err)
		}
		if err := info.SetURI(uri); err != nil {
			return nil, err
		}
	}
	if f.UID != "" {
		if err := info.SetIcsUID(f.UID); err != nil {
			return nil, err
		}
	}
	if f.Organizer != "" {
		organizer, err := address.Parse(f.Organizer)
		if err != nil {
			return nil, fmt.Errorf("config: organizer: %w", err)
		}
		if err := info.SetOrganizerAddress(organizer); err != nil {
			return nil, err
		}
	}

	level, err := conference.ParseSecurityLevel(f.SecurityLevel)
	if err != nil {
		return nil, err
	}

	for _, step := range []error{
		info.SetSubject(f.Subject),
		info.SetDescription(f.Description),
		info.SetDateTime(f.Start),
		info.SetDuration(f.Duration),
		info.SetSecurityLevel(level),
	} {
		if step != nil {
			return nil, step
		}
	}

	for i, raw := range f.Participants {
		addr, err := address.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("config: participants[%d]: %w", i, err)
		}
		if info.HasParticipant(addr) {
			continue
		}
		if err := info.AddParticipantAddress(addr); err != nil {
			return nil, fmt.Errorf("config: participants[%d]: %w", i, err)
		}
	}
	return info, nil
}
