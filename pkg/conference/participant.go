package conference

import (
	"slices"

	"github.com/arzzra/soft_conference/pkg/address"
)

// ParticipantInfo описание одного участника конференции.
//
// Экземпляр принадлежит ровно одному Info. Все копии между описаниями
// конференций делаются через Clone, разделяемых указателей нет.
type ParticipantInfo struct {
	address  *address.Address
	admin    bool
	sequence uint32
	params   parameters
}

// NewParticipantInfo создает участника по адресу. Адрес копируется,
// значение вызывающего не изменяется.
func NewParticipantInfo(addr *address.Address) *ParticipantInfo {
	return &ParticipantInfo{address: addr.Clone()}
}

// Address возвращает копию адреса участника
func (p *ParticipantInfo) Address() *address.Address {
	return p.address.Clone()
}

// IsAdmin признак администратора/организатора
func (p *ParticipantInfo) IsAdmin() bool {
	return p.admin
}

func (p *ParticipantInfo) SetAdmin(admin bool) {
	p.admin = admin
}

// SequenceNumber персональный счетчик версий приглашения участника
func (p *ParticipantInfo) SequenceNumber() uint32 {
	return p.sequence
}

func (p *ParticipantInfo) SetSequenceNumber(seq uint32) {
	p.sequence = seq
}

// Parameters копия расширенных параметров ICS в порядке добавления
func (p *ParticipantInfo) Parameters() []Parameter {
	return p.params.clone()
}

// Parameter первое значение параметра
func (p *ParticipantInfo) Parameter(name string) (string, bool) {
	param, ok := p.params.get(name)
	return param.Value(), ok
}

// ParameterValues все значения параметра
func (p *ParticipantInfo) ParameterValues(name string) []string {
	param, _ := p.params.get(name)
	return slices.Clone(param.Values)
}

// AddParameter добавляет или заменяет параметр. Имена параметров ICS
// нечувствительны к регистру и хранятся в верхнем регистре. Значение с
// кавычкой или управляющим символом в ICS не выразить, такой параметр
// отклоняется с ErrInvalidParameter.
func (p *ParticipantInfo) AddParameter(name string, values ...string) error {
	param, err := newParameter(name, values)
	if err != nil {
		return err
	}
	p.params = p.params.set(param)
	return nil
}

func (p *ParticipantInfo) RemoveParameter(name string) {
	p.params = p.params.del(name)
}

// Clone глубокая копия
func (p *ParticipantInfo) Clone() *ParticipantInfo {
	if p == nil {
		return nil
	}
	return &ParticipantInfo{
		address:  p.address.Clone(),
		admin:    p.admin,
		sequence: p.sequence,
		params:   p.params.clone(),
	}
}

func (p *ParticipantInfo) matches(addr *address.Address) bool {
	return p.address.WeakEqual(addr)
}
