package tokenstore

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/authcore/token"
)

type memRecord struct {
	owner     uuid.UUID
	tags      Tags
	expiresAt time.Time
}

// Memory keeps records in process memory behind a reader/writer lock.
// Tag lookups scan every record; suited to tests and single-node development.
type Memory[T token.Kind] struct {
	mu      sync.RWMutex
	records map[string]*memRecord
	now     func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory[T token.Kind]() *Memory[T] {
	return &Memory[T]{
		records: make(map[string]*memRecord),
		now:     time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (m *Memory[T]) WithClock(now func() time.Time) *Memory[T] {
	m.now = now
	return m
}

func (m *Memory[T]) Put(ctx context.Context, tok T, owner uuid.UUID, tags Tags, ttl time.Duration) error {
	rec := &memRecord{
		owner:     owner,
		tags:      tags.Clone(),
		expiresAt: expiryFor(m.now(), ttl),
	}
	if rec.tags == nil {
		rec.tags = Tags{}
	}

	m.mu.Lock()
	m.records[tok.Value().Key()] = rec
	m.mu.Unlock()
	return nil
}

// lookup returns the live record for key. An expired record is removed under
// the write lock so concurrent readers observe one find-then-delete.
func (m *Memory[T]) lookup(key string) (*memRecord, error) {
	m.mu.RLock()
	rec, ok := m.records[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrTokenNotFound
	}

	if !expired(rec.expiresAt, m.now()) {
		return rec, nil
	}

	m.mu.Lock()
	if cur, ok := m.records[key]; ok && cur == rec {
		delete(m.records, key)
	}
	m.mu.Unlock()
	return nil, ErrTokenExpired
}

func (m *Memory[T]) Get(ctx context.Context, tok T) (uuid.UUID, error) {
	rec, err := m.lookup(tok.Value().Key())
	if err != nil {
		return uuid.Nil, err
	}
	return rec.owner, nil
}

func (m *Memory[T]) Take(ctx context.Context, tok T) (uuid.UUID, error) {
	key := tok.Value().Key()

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key]
	if !ok {
		return uuid.Nil, ErrTokenNotFound
	}
	delete(m.records, key)
	if expired(rec.expiresAt, m.now()) {
		return uuid.Nil, ErrTokenExpired
	}
	return rec.owner, nil
}

func (m *Memory[T]) Delete(ctx context.Context, tok T) error {
	m.mu.Lock()
	delete(m.records, tok.Value().Key())
	m.mu.Unlock()
	return nil
}

func (m *Memory[T]) PutTag(ctx context.Context, tok T, name string, value []byte) error {
	key := tok.Value().Key()

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key]
	if !ok || expired(rec.expiresAt, m.now()) {
		return ErrTokenNotFound
	}

	// Records are replaced rather than mutated so lookup results stay stable.
	next := &memRecord{owner: rec.owner, tags: rec.tags.Clone(), expiresAt: rec.expiresAt}
	if next.tags == nil {
		next.tags = Tags{}
	}
	next.tags[name] = append([]byte(nil), value...)
	m.records[key] = next
	return nil
}

func (m *Memory[T]) GetTag(ctx context.Context, tok T, name string) ([]byte, error) {
	rec, err := m.lookup(tok.Value().Key())
	if err != nil {
		return nil, err
	}
	v, ok := rec.tags[name]
	if !ok {
		return nil, ErrTokenNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory[T]) GetByTag(ctx context.Context, name string, value []byte) ([]T, error) {
	now := m.now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []T
	for key, rec := range m.records {
		if expired(rec.expiresAt, now) {
			continue
		}
		if v, ok := rec.tags[name]; ok && bytes.Equal(v, value) {
			out = append(out, token.Wrap[T](token.FromBytes([]byte(key))))
		}
	}
	return out, nil
}

func (m *Memory[T]) DeleteByTag(ctx context.Context, name string, value []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for key, rec := range m.records {
		if v, ok := rec.tags[name]; ok && bytes.Equal(v, value) {
			delete(m.records, key)
			if !expired(rec.expiresAt, now) {
				n++
			}
		}
	}
	return n, nil
}

// Len reports how many records are held, expired ones included.
func (m *Memory[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *Memory[T]) Kind() Backend { return BackendMemory }

func (m *Memory[T]) Close() error { return nil }
