package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/arzzra/soft_conference/pkg/address"
	"github.com/arzzra/soft_conference/pkg/conference"
)

// Badger хранилище описаний поверх BadgerDB.
// Ключ conf/<учетная запись>/<user@host:port>, значение JSON снимок.
type Badger struct {
	db     *badger.DB
	logger *slog.Logger
	owned  bool
}

// OpenBadger открывает базу в каталоге dir. Пустой dir означает базу в памяти.
func OpenBadger(dir string, logger *slog.Logger) (*Badger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger at %q: %w", dir, err)
	}
	logger.Debug("store.OpenBadger", slog.String("dir", dir), slog.Bool("in_memory", dir == ""))
	return &Badger{db: db, logger: logger, owned: true}, nil
}

// NewBadger использует уже открытую базу. Close ее не закрывает.
func NewBadger(db *badger.DB, logger *slog.Logger) *Badger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Badger{db: db, logger: logger}
}

// Close закрывает базу, если она открыта через OpenBadger
func (b *Badger) Close() error {
	if !b.owned {
		return nil
	}
	return b.db.Close()
}

// Find возвращает (nil, nil), если описания нет
func (b *Badger) Find(_ context.Context, account string, uri *address.Address) (*conference.Info, error) {
	k, err := key(account, uri)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(k))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", k, err)
	}
	return decode(data)
}

func (b *Badger) Save(_ context.Context, account string, info *conference.Info) error {
	k, err := key(account, info.URI())
	if err != nil {
		return err
	}
	data, err := encode(info)
	if err != nil {
		return err
	}
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(k), data)
	}); err != nil {
		return fmt.Errorf("store: set %s: %w", k, err)
	}
	b.logger.Debug("store.Save",
		slog.String("key", k),
		slog.String("uid", info.IcsUID()),
		slog.Int("sequence", int(info.IcsSequence())))
	return nil
}

func (b *Badger) Delete(_ context.Context, account string, uri *address.Address) error {
	k, err := key(account, uri)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(k))
	})
}

// List описания учетной записи в порядке ключей
func (b *Badger) List(_ context.Context, account string) ([]*conference.Info, error) {
	prefix := []byte(accountPrefix(account))
	var out []*conference.Info

	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				info, err := decode(val)
				if err != nil {
					return err
				}
				out = append(out, info)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", prefix, err)
	}
	return out, nil
}
