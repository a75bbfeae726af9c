// Package credentialtest holds the behavior suite every credential.Store
// backend must pass.
package credentialtest

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/password"
)

// Factory returns a fresh, empty store built over v.
type Factory func(t *testing.T, v *credential.Verifier) credential.Store

// FastHasher returns an Argon2id hasher with minimum cost parameters.
func FastHasher(t testing.TB) *password.Argon2 {
	t.Helper()
	h, err := password.NewArgon2(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
	require.NoError(t, err)
	return h
}

// FastVerifier wraps FastHasher.
func FastVerifier(t testing.TB) *credential.Verifier {
	t.Helper()
	v, err := credential.NewVerifier(FastHasher(t))
	require.NoError(t, err)
	return v
}

// Run executes the suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndCheck", func(t *testing.T) { testCreateAndCheck(t, newStore) })
	t.Run("WrongPasswordIsNil", func(t *testing.T) { testWrongPassword(t, newStore) })
	t.Run("UnknownUserIsNil", func(t *testing.T) { testUnknownUser(t, newStore) })
	t.Run("DisabledUserIsNil", func(t *testing.T) { testDisabledUser(t, newStore) })
	t.Run("DuplicateUsername", func(t *testing.T) { testDuplicate(t, newStore) })
	t.Run("PasswordPolicy", func(t *testing.T) { testPolicy(t, newStore) })
	t.Run("GetAndGetByUsername", func(t *testing.T) { testGet(t, newStore) })
	t.Run("UpdateFields", func(t *testing.T) { testUpdate(t, newStore) })
	t.Run("UpdatePassword", func(t *testing.T) { testUpdatePassword(t, newStore) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore) })
	t.Run("RehashOnLogin", func(t *testing.T) { testRehash(t, newStore) })
	t.Run("ConcurrentCreateSameName", func(t *testing.T) { testConcurrentCreate(t, newStore) })
}

func testCreateAndCheck(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, FastVerifier(t))

	id, err := s.Create(ctx, "alice", "correct-horse")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	u, err := s.CheckPassword(ctx, "alice", "correct-horse")
	require.NoError(t, err)
	require.NotNil(t, u)
	require.Equal(t, id, u.ID)
	require.Equal(t, "alice", u.Username)
	require.True(t, u.Enabled)
	require.NotEqual(t, "correct-horse", u.PasswordHash)
}

func testWrongPassword(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, FastVerifier(t))

	_, err := s.Create(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	u, err := s.CheckPassword(ctx, "alice", "wrong-password")
	require.NoError(t, err)
	require.Nil(t, u)
}

func testUnknownUser(t *testing.T, newStore Factory) {
	s := newStore(t, FastVerifier(t))

	u, err := s.CheckPassword(context.Background(), "nobody", "correct-horse")
	require.NoError(t, err)
	require.Nil(t, u)
}

func testDisabledUser(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, FastVerifier(t))

	id, err := s.Create(ctx, "bob", "correct-horse")
	require.NoError(t, err)

	disabled := false
	require.NoError(t, s.Update(ctx, id, credential.UpdateUser{Enabled: &disabled}))

	u, err := s.CheckPassword(ctx, "bob", "correct-horse")
	require.NoError(t, err)
	require.Nil(t, u)
}

func testDuplicate(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, FastVerifier(t))

	_, err := s.Create(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	_, err = s.Create(ctx, "alice", "another-secret")
	require.ErrorIs(t, err, credential.ErrDuplicateUsername)

	id, err := s.Create(ctx, "carol", "correct-horse")
	require.NoError(t, err)
	taken := "alice"
	require.ErrorIs(t, s.Update(ctx, id, credential.UpdateUser{Username: &taken}), credential.ErrDuplicateUsername)
}

func testPolicy(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, FastVerifier(t))

	_, err := s.Create(ctx, "alice", "short")
	require.ErrorIs(t, err, credential.ErrPasswordPolicy)

	_, err = s.Create(ctx, "", "correct-horse")
	require.ErrorIs(t, err, credential.ErrInvalidUsername)

	_, err = s.GetByUsername(ctx, "alice")
	require.ErrorIs(t, err, credential.ErrUserNotFound)
}

func testGet(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, FastVerifier(t))

	id, err := s.Create(ctx, "dave", "correct-horse")
	require.NoError(t, err)

	u, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "dave", u.Username)

	u, err = s.GetByUsername(ctx, "dave")
	require.NoError(t, err)
	require.Equal(t, id, u.ID)

	_, err = s.Get(ctx, uuid.New())
	require.ErrorIs(t, err, credential.ErrUserNotFound)
}

func testUpdate(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, FastVerifier(t))

	id, err := s.Create(ctx, "erin", "correct-horse")
	require.NoError(t, err)

	name := "erin2"
	require.NoError(t, s.Update(ctx, id, credential.UpdateUser{Username: &name}))

	u, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "erin2", u.Username)
	require.True(t, u.Enabled)

	// Empty update is a no-op.
	require.NoError(t, s.Update(ctx, id, credential.UpdateUser{}))

	require.ErrorIs(t, s.Update(ctx, uuid.New(), credential.UpdateUser{Username: &name}), credential.ErrUserNotFound)

	got, err := s.CheckPassword(ctx, "erin2", "correct-horse")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func testUpdatePassword(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, FastVerifier(t))

	id, err := s.Create(ctx, "frank", "correct-horse")
	require.NoError(t, err)

	require.NoError(t, s.UpdatePassword(ctx, id, "battery-staple"))

	u, err := s.CheckPassword(ctx, "frank", "correct-horse")
	require.NoError(t, err)
	require.Nil(t, u)

	u, err = s.CheckPassword(ctx, "frank", "battery-staple")
	require.NoError(t, err)
	require.NotNil(t, u)

	require.ErrorIs(t, s.UpdatePassword(ctx, uuid.New(), "battery-staple"), credential.ErrUserNotFound)
	require.ErrorIs(t, s.UpdatePassword(ctx, id, "tiny"), credential.ErrPasswordPolicy)
}

func testDelete(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, FastVerifier(t))

	id, err := s.Create(ctx, "gina", "correct-horse")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, id))
	_, err = s.Get(ctx, id)
	require.ErrorIs(t, err, credential.ErrUserNotFound)
	require.ErrorIs(t, s.Delete(ctx, id), credential.ErrUserNotFound)

	// The username is free again.
	_, err = s.Create(ctx, "gina", "correct-horse")
	require.NoError(t, err)
}

func testRehash(t *testing.T, newStore Factory) {
	ctx := context.Background()

	weak := FastVerifier(t)
	s := newStore(t, weak)
	id, err := s.Create(ctx, "hank", "correct-horse")
	require.NoError(t, err)
	before, err := s.Get(ctx, id)
	require.NoError(t, err)

	// Same rows, but every stored hash now reports as outdated.
	strong, err := credential.NewVerifier(upgradingHasher{FastHasher(t)})
	require.NoError(t, err)
	s2 := reopen(t, s, strong)

	u, err := s2.CheckPassword(ctx, "hank", "correct-horse")
	require.NoError(t, err)
	require.NotNil(t, u)

	after, err := s2.Get(ctx, id)
	require.NoError(t, err)
	require.NotEqual(t, before.PasswordHash, after.PasswordHash)
}

func testConcurrentCreate(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, FastVerifier(t))

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Create(ctx, "race", "correct-horse"); err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, created)
}

// Reopener is implemented by stores that can be rebuilt over the same data
// with a different verifier.
type Reopener interface {
	WithVerifier(v *credential.Verifier) credential.Store
}

func reopen(t *testing.T, s credential.Store, v *credential.Verifier) credential.Store {
	r, ok := s.(Reopener)
	if !ok {
		t.Skip("store cannot be reopened with another verifier")
	}
	return r.WithVerifier(v)
}

type upgradingHasher struct{ password.Hasher }

func (upgradingHasher) NeedsUpgrade(string) (bool, error) { return true, nil }
