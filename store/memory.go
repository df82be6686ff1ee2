// Package store persists admission records. The memory store keeps records
// for the life of the process; the SQL store writes them to SQLite or
// PostgreSQL.
package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gobeaver/filegate"
)

// Memory is an in-process RecordStore
type Memory struct {
	mu      sync.RWMutex
	records map[string]*filegate.Record
}

// NewMemory creates an empty memory store
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]*filegate.Record),
	}
}

// SaveRecord implements filegate.RecordStore. The record is deep copied.
func (m *Memory) SaveRecord(ctx context.Context, rec *filegate.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp, err := clone(rec)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.UploadID] = cp
	return nil
}

// FindByFingerprint implements filegate.RecordStore
func (m *Memory) FindByFingerprint(ctx context.Context, fingerprint string) (*filegate.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fingerprint == "" {
		return nil, filegate.ErrRecordNotFound
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var first *filegate.Record
	for _, rec := range m.records {
		if rec.Fingerprint() != fingerprint {
			continue
		}
		if first == nil || rec.CreatedAt.Before(first.CreatedAt) ||
			(rec.CreatedAt.Equal(first.CreatedAt) && rec.UploadID < first.UploadID) {
			first = rec
		}
	}
	if first == nil {
		return nil, filegate.ErrRecordNotFound
	}
	return clone(first)
}

// Get returns the record for an upload ID
func (m *Memory) Get(ctx context.Context, uploadID string) (*filegate.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[uploadID]
	if !ok {
		return nil, filegate.ErrRecordNotFound
	}
	return clone(rec)
}

// Len returns the number of records
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func clone(rec *filegate.Record) (*filegate.Record, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var out filegate.Record
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

var _ filegate.RecordStore = (*Memory)(nil)
