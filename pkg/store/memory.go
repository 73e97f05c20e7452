package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/arzzra/soft_conference/pkg/address"
	"github.com/arzzra/soft_conference/pkg/conference"
)

// Memory хранилище в памяти процесса. Данные хранятся в сериализованном
// виде, как в Badger, чтобы поведение двух реализаций не расходилось.
type Memory struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string][]byte)}
}

// Find возвращает (nil, nil), если описания нет
func (m *Memory) Find(_ context.Context, account string, uri *address.Address) (*conference.Info, error) {
	k, err := key(account, uri)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	data, ok := m.items[k]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return decode(data)
}

func (m *Memory) Save(_ context.Context, account string, info *conference.Info) error {
	k, err := key(account, info.URI())
	if err != nil {
		return err
	}
	data, err := encode(info)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.items[k] = data
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, account string, uri *address.Address) error {
	k, err := key(account, uri)
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.items, k)
	m.mu.Unlock()
	return nil
}

// List описания учетной записи в порядке ключей
func (m *Memory) List(_ context.Context, account string) ([]*conference.Info, error) {
	prefix := accountPrefix(account)

	m.mu.RLock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	blobs := make([][]byte, len(keys))
	for i, k := range keys {
		blobs[i] = m.items[k]
	}
	m.mu.RUnlock()

	out := make([]*conference.Info, 0, len(blobs))
	for _, data := range blobs {
		info, err := decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}
