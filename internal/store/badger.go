// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/reelhub/internal/config"
)

// Badger is a BadgerDB-backed Store.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a BadgerDB at path.
func OpenBadger(path string) (*Badger, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for settings: %w", err)
	}
	return &Badger{db: db}, nil
}

// NewBadger wraps an already open database. Close closes db.
func NewBadger(db *badger.DB) *Badger {
	return &Badger{db: db}
}

func (b *Badger) Get(_ context.Context, userID, sourceID string) (*UserSourceSettings, error) {
	defer observe(config.StoreBackendBadger, "get", time.Now())

	key, err := recordKey(userID, sourceID)
	if err != nil {
		return nil, err
	}

	var s UserSourceSettings
	err = b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get settings: %w", err)
		}
		return item.Value(func(val []byte) error {
			s, err = decode(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (b *Badger) List(_ context.Context, userID string) ([]UserSourceSettings, error) {
	defer observe(config.StoreBackendBadger, "list", time.Now())

	if !validID(userID) {
		return nil, ErrInvalidKey
	}

	out := make([]UserSourceSettings, 0)
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Keys sort by source id within the user prefix.
		prefix := []byte(userPrefix(userID))
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				s, err := decode(val)
				if err != nil {
					return err
				}
				out = append(out, s)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return out, nil
}

func (b *Badger) Put(_ context.Context, userID string, s UserSourceSettings) error {
	defer observe(config.StoreBackendBadger, "put", time.Now())

	key, err := recordKey(userID, s.SourceID)
	if err != nil {
		return err
	}
	data, err := encode(s)
	if err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key), data); err != nil {
			return fmt.Errorf("set settings: %w", err)
		}
		return nil
	})
}

func (b *Badger) Delete(_ context.Context, userID, sourceID string) error {
	defer observe(config.StoreBackendBadger, "delete", time.Now())

	key, err := recordKey(userID, sourceID)
	if err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(key)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("get settings: %w", err)
		}
		if err := txn.Delete([]byte(key)); err != nil {
			return fmt.Errorf("delete settings: %w", err)
		}
		return nil
	})
}

// RunValueLogGC reclaims value log space left behind by overwritten and
// deleted settings. It rewrites files until badger reports nothing is left
// to collect at discardRatio.
func (b *Badger) RunValueLogGC(discardRatio float64) error {
	defer observe(config.StoreBackendBadger, "gc", time.Now())

	for {
		err := b.db.RunValueLogGC(discardRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run value log gc: %w", err)
		}
	}
}

// Close closes the database.
func (b *Badger) Close() error {
	return b.db.Close()
}
