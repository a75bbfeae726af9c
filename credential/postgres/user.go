package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrEthical07/authcore/credential"
)

const selectUser = `
	SELECT id, username, password_hash, is_enabled
	FROM user_credentials
`

func scanUser(row pgx.Row) (*credential.User, error) {
	var u credential.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Enabled); err != nil {
		return nil, err
	}
	return &u, nil
}

// mapErr translates driver errors into credential sentinels.
func mapErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, credential.ErrUserNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return fmt.Errorf("%s: %w", op, credential.ErrDuplicateUsername)
	}
	return fmt.Errorf("%s: %w: %v", op, credential.ErrUnavailable, err)
}

// CheckPassword verifies password for username and upgrades outdated hashes.
func (s *Storage) CheckPassword(ctx context.Context, username, password string) (*credential.User, error) {
	const op = "storage.postgres.CheckPassword"

	u, err := scanUser(s.db.QueryRow(ctx, selectUser+`WHERE username = $1`, username))
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, mapErr(op, err)
	}

	ok, rehash, err := s.verifier.Check(u, password)
	if err != nil || !ok {
		return nil, err
	}

	if rehash != "" {
		_, err := s.db.Exec(ctx,
			`UPDATE user_credentials SET password_hash = $1 WHERE id = $2 AND password_hash = $3`,
			rehash, u.ID, u.PasswordHash,
		)
		if err != nil {
			s.logger.Warn("password rehash failed", "op", op, "user_id", u.ID, "error", err)
		} else {
			u.PasswordHash = rehash
		}
	}
	return u, nil
}

// Create inserts a new enabled user.
func (s *Storage) Create(ctx context.Context, username, password string) (uuid.UUID, error) {
	const op = "storage.postgres.Create"

	if err := credential.ValidateUsername(username); err != nil {
		return uuid.Nil, err
	}
	hash, err := s.verifier.Hash(password)
	if err != nil {
		return uuid.Nil, err
	}

	id := uuid.New()
	_, err = s.db.Exec(ctx,
		`INSERT INTO user_credentials(id, username, password_hash, is_enabled) VALUES ($1, $2, $3, TRUE)`,
		id, username, hash,
	)
	if err != nil {
		return uuid.Nil, mapErr(op, err)
	}
	return id, nil
}

// Get finds a user by id.
func (s *Storage) Get(ctx context.Context, id uuid.UUID) (*credential.User, error) {
	const op = "storage.postgres.Get"

	u, err := scanUser(s.db.QueryRow(ctx, selectUser+`WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return u, nil
}

// GetByUsername finds a user by username.
func (s *Storage) GetByUsername(ctx context.Context, username string) (*credential.User, error) {
	const op = "storage.postgres.GetByUsername"

	u, err := scanUser(s.db.QueryRow(ctx, selectUser+`WHERE username = $1`, username))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return u, nil
}

// Update applies the non-nil fields of upd.
func (s *Storage) Update(ctx context.Context, id uuid.UUID, upd credential.UpdateUser) error {
	const op = "storage.postgres.Update"

	if upd.Username != nil {
		if err := credential.ValidateUsername(*upd.Username); err != nil {
			return err
		}
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE user_credentials
		SET username   = COALESCE($2, username),
		    is_enabled = COALESCE($3, is_enabled)
		WHERE id = $1
	`, id, upd.Username, upd.Enabled)
	if err != nil {
		return mapErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, credential.ErrUserNotFound)
	}
	return nil
}

// UpdatePassword re-hashes and stores password.
func (s *Storage) UpdatePassword(ctx context.Context, id uuid.UUID, password string) error {
	const op = "storage.postgres.UpdatePassword"

	hash, err := s.verifier.Hash(password)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `UPDATE user_credentials SET password_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return mapErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, credential.ErrUserNotFound)
	}
	return nil
}

// Delete removes a user.
func (s *Storage) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "storage.postgres.Delete"

	tag, err := s.db.Exec(ctx, `DELETE FROM user_credentials WHERE id = $1`, id)
	if err != nil {
		return mapErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, credential.ErrUserNotFound)
	}
	return nil
}
