package credential

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type memoryUsers struct {
	mu    sync.RWMutex
	users map[uuid.UUID]User
}

// Memory is an in-process Store. Username lookups scan all users.
type Memory struct {
	*memoryUsers
	verifier *Verifier
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty store using v for hashing.
func NewMemory(v *Verifier) *Memory {
	return &Memory{
		memoryUsers: &memoryUsers{users: make(map[uuid.UUID]User)},
		verifier:    v,
	}
}

// WithVerifier returns a store over the same users that hashes with v.
func (m *Memory) WithVerifier(v *Verifier) Store {
	return &Memory{memoryUsers: m.memoryUsers, verifier: v}
}

func (m *Memory) findByUsername(username string) (User, bool) {
	for _, u := range m.users {
		if u.Username == username {
			return u, true
		}
	}
	return User{}, false
}

func (m *Memory) CheckPassword(ctx context.Context, username, pw string) (*User, error) {
	m.mu.RLock()
	u, found := m.findByUsername(username)
	m.mu.RUnlock()

	var candidate *User
	if found {
		candidate = &u
	}
	ok, rehash, err := m.verifier.Check(candidate, pw)
	if err != nil || !ok {
		return nil, err
	}

	if rehash != "" {
		m.mu.Lock()
		if cur, exists := m.users[u.ID]; exists && cur.PasswordHash == u.PasswordHash {
			cur.PasswordHash = rehash
			m.users[u.ID] = cur
			u.PasswordHash = rehash
		}
		m.mu.Unlock()
	}
	return &u, nil
}

func (m *Memory) Create(ctx context.Context, username, pw string) (uuid.UUID, error) {
	if err := ValidateUsername(username); err != nil {
		return uuid.Nil, err
	}
	hash, err := m.verifier.Hash(pw)
	if err != nil {
		return uuid.Nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.findByUsername(username); taken {
		return uuid.Nil, ErrDuplicateUsername
	}
	u := User{ID: uuid.New(), Username: username, PasswordHash: hash, Enabled: true}
	m.users[u.ID] = u
	return u.ID, nil
}

func (m *Memory) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (m *Memory) GetByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.findByUsername(username)
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (m *Memory) Update(ctx context.Context, id uuid.UUID, upd UpdateUser) error {
	if upd.Username != nil {
		if err := ValidateUsername(*upd.Username); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	if upd.Username != nil && *upd.Username != u.Username {
		if _, taken := m.findByUsername(*upd.Username); taken {
			return ErrDuplicateUsername
		}
		u.Username = *upd.Username
	}
	if upd.Enabled != nil {
		u.Enabled = *upd.Enabled
	}
	m.users[id] = u
	return nil
}

func (m *Memory) UpdatePassword(ctx context.Context, id uuid.UUID, pw string) error {
	hash, err := m.verifier.Hash(pw)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = hash
	m.users[id] = u
	return nil
}

func (m *Memory) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *Memory) Close() error { return nil }
