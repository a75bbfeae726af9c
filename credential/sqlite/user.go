package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrEthical07/authcore/credential"
)

const selectUser = `SELECT id, username, password_hash, is_enabled FROM user_credentials `

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*credential.User, error) {
	var (
		u       credential.User
		id      string
		enabled int64
	)
	if err := row.Scan(&id, &u.Username, &u.PasswordHash, &enabled); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse user id %q: %w", id, err)
	}
	u.ID = parsed
	u.Enabled = enabled != 0
	return &u, nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (s *Store) CheckPassword(ctx context.Context, username, password string) (*credential.User, error) {
	const op = "storage.sqlite.CheckPassword"

	u, err := scanUser(s.sqlDB.QueryRowContext(ctx, selectUser+`WHERE username = ?`, username))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, mapErr(op, err)
	}

	ok, rehash, err := s.verifier.Check(u, password)
	if err != nil || !ok {
		return nil, err
	}

	if rehash != "" {
		_, err := s.sqlDB.ExecContext(ctx,
			`UPDATE user_credentials SET password_hash = ? WHERE id = ? AND password_hash = ?`,
			rehash, u.ID.String(), u.PasswordHash,
		)
		if err != nil {
			s.logger.Warn("password rehash failed", "op", op, "user_id", u.ID, "error", err)
		} else {
			u.PasswordHash = rehash
		}
	}
	return u, nil
}

func (s *Store) Create(ctx context.Context, username, password string) (uuid.UUID, error) {
	const op = "storage.sqlite.Create"

	if err := credential.ValidateUsername(username); err != nil {
		return uuid.Nil, err
	}
	hash, err := s.verifier.Hash(password)
	if err != nil {
		return uuid.Nil, err
	}

	id := uuid.New()
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO user_credentials(id, username, password_hash, is_enabled) VALUES (?, ?, ?, 1)`,
		id.String(), username, hash,
	)
	if err != nil {
		return uuid.Nil, mapErr(op, err)
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*credential.User, error) {
	const op = "storage.sqlite.Get"

	u, err := scanUser(s.sqlDB.QueryRowContext(ctx, selectUser+`WHERE id = ?`, id.String()))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return u, nil
}

func (s *Store) GetByUsername(ctx context.Context, username string) (*credential.User, error) {
	const op = "storage.sqlite.GetByUsername"

	u, err := scanUser(s.sqlDB.QueryRowContext(ctx, selectUser+`WHERE username = ?`, username))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return u, nil
}

func (s *Store) Update(ctx context.Context, id uuid.UUID, upd credential.UpdateUser) error {
	const op = "storage.sqlite.Update"

	var (
		username sql.NullString
		enabled  sql.NullInt64
	)
	if upd.Username != nil {
		if err := credential.ValidateUsername(*upd.Username); err != nil {
			return err
		}
		username = sql.NullString{String: *upd.Username, Valid: true}
	}
	if upd.Enabled != nil {
		enabled = sql.NullInt64{Int64: boolInt(*upd.Enabled), Valid: true}
	}

	res, err := s.sqlDB.ExecContext(ctx, `
		UPDATE user_credentials
		SET username   = COALESCE(?, username),
		    is_enabled = COALESCE(?, is_enabled)
		WHERE id = ?
	`, username, enabled, id.String())
	if err != nil {
		return mapErr(op, err)
	}
	return requireRow(op, res)
}

func (s *Store) UpdatePassword(ctx context.Context, id uuid.UUID, password string) error {
	const op = "storage.sqlite.UpdatePassword"

	hash, err := s.verifier.Hash(password)
	if err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx, `UPDATE user_credentials SET password_hash = ? WHERE id = ?`, hash, id.String())
	if err != nil {
		return mapErr(op, err)
	}
	return requireRow(op, res)
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "storage.sqlite.Delete"

	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM user_credentials WHERE id = ?`, id.String())
	if err != nil {
		return mapErr(op, err)
	}
	return requireRow(op, res)
}

func requireRow(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, credential.ErrUnavailable, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, credential.ErrUserNotFound)
	}
	return nil
}
