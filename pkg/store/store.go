// Package store хранит описания конференций по ключу (учетная запись, URI
// конференции). Описание сохраняется в форме conference.Snapshot, поэтому
// UID, номер версии и персональные счетчики участников переживают
// перезапуск без потерь.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/arzzra/soft_conference/pkg/address"
	"github.com/arzzra/soft_conference/pkg/conference"
)

var (
	// ErrNoURI описание без адреса конференции нельзя сохранить
	ErrNoURI = errors.New("store: conference has no URI")
	// ErrEmptyAccount ключ учетной записи не задан
	ErrEmptyAccount = errors.New("store: empty account")
)

const keyPrefix = "conf/"

func accountPrefix(account string) string {
	return keyPrefix + account + "/"
}

func key(account string, uri *address.Address) (string, error) {
	if strings.TrimSpace(account) == "" {
		return "", ErrEmptyAccount
	}
	if !uri.IsValid() {
		return "", ErrNoURI
	}
	return accountPrefix(account) + uri.Canonical(), nil
}

func encode(info *conference.Info) ([]byte, error) {
	data, err := json.Marshal(info.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("store: marshal snapshot: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*conference.Info, error) {
	var snap conference.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("store: unmarshal snapshot: %w", err)
	}
	return conference.FromSnapshot(snap)
}
