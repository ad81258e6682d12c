// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/reelhub/internal/config"
)

// Memory is an in-memory Store. Contents are lost on restart.
type Memory struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, userID, sourceID string) (*UserSourceSettings, error) {
	defer observe(config.StoreBackendMemory, "get", time.Now())

	key, err := recordKey(userID, sourceID)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	data, ok := m.records[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	s, err := decode(data)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *Memory) List(_ context.Context, userID string) ([]UserSourceSettings, error) {
	defer observe(config.StoreBackendMemory, "list", time.Now())

	if !validID(userID) {
		return nil, ErrInvalidKey
	}
	prefix := userPrefix(userID)

	m.mu.RLock()
	keys := make([]string, 0)
	for k := range m.records {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make([]UserSourceSettings, 0, len(keys))
	for _, k := range keys {
		s, err := decode(m.records[k])
		if err != nil {
			m.mu.RUnlock()
			return nil, err
		}
		out = append(out, s)
	}
	m.mu.RUnlock()
	return out, nil
}

func (m *Memory) Put(_ context.Context, userID string, s UserSourceSettings) error {
	defer observe(config.StoreBackendMemory, "put", time.Now())

	key, err := recordKey(userID, s.SourceID)
	if err != nil {
		return err
	}
	data, err := encode(s)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.records[key] = data
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, userID, sourceID string) error {
	defer observe(config.StoreBackendMemory, "delete", time.Now())

	key, err := recordKey(userID, sourceID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[key]; !ok {
		return ErrNotFound
	}
	delete(m.records, key)
	return nil
}

func (m *Memory) Close() error { return nil }
