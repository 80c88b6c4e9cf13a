// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const userColumns = "id, username, password_hash, created_at, updated_at"

// CreateUser inserts a user with an already-hashed password.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" || passwordHash == "" {
		return User{}, fmt.Errorf("%w: username and password are required", ErrInvalid)
	}

	now := s.clock.Now()
	user := User{
		ID:           newID(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    fromNanos(toNanos(now)),
		UpdatedAt:    fromNanos(toNanos(now)),
	}
	err := s.write(ctx, func(conn *sqlite.Conn) error {
		if _, err := selectUser(conn, username); err == nil {
			return fmt.Errorf("%w: user %q", ErrConflict, username)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		return sqlitex.Execute(conn,
			"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?)",
			&sqlitex.ExecOptions{Args: []any{
				user.ID, user.Username, user.PasswordHash, toNanos(now), toNanos(now),
			}})
	})
	if err != nil {
		return User{}, fmt.Errorf("store: creating user: %w", err)
	}
	s.logger.Info("user created", "user", username)
	return user, nil
}

// UserByName returns a user by username.
func (s *Store) UserByName(ctx context.Context, username string) (User, error) {
	var user User
	err := s.read(ctx, func(conn *sqlite.Conn) error {
		var err error
		user, err = selectUser(conn, username)
		return err
	})
	return user, err
}

// ListUsers returns all users ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	users := []User{}
	err := s.read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT "+userColumns+" FROM users ORDER BY username",
			&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
				users = append(users, scanUser(stmt))
				return nil
			}})
	})
	if err != nil {
		return nil, fmt.Errorf("store: listing users: %w", err)
	}
	return users, nil
}

// CountUsers returns the number of users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	count := 0
	err := s.read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT count(*) FROM users",
			&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
				count = stmt.ColumnInt(0)
				return nil
			}})
	})
	if err != nil {
		return 0, fmt.Errorf("store: counting users: %w", err)
	}
	return count, nil
}

// SetPassword replaces a user's password hash.
func (s *Store) SetPassword(ctx context.Context, username, passwordHash string) error {
	err := s.write(ctx, func(conn *sqlite.Conn) error {
		user, err := selectUser(conn, username)
		if err != nil {
			return err
		}
		return sqlitex.Execute(conn,
			"UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?",
			&sqlitex.ExecOptions{Args: []any{
				passwordHash, maxNanos(toNanos(s.clock.Now()), toNanos(user.UpdatedAt)), user.ID,
			}})
	})
	if err != nil {
		return fmt.Errorf("store: setting password of %q: %w", username, err)
	}
	return nil
}

// DeleteUser removes a user.
func (s *Store) DeleteUser(ctx context.Context, username string) error {
	err := s.write(ctx, func(conn *sqlite.Conn) error {
		if _, err := selectUser(conn, username); err != nil {
			return err
		}
		return sqlitex.Execute(conn, "DELETE FROM users WHERE username = ?",
			&sqlitex.ExecOptions{Args: []any{username}})
	})
	if err != nil {
		return fmt.Errorf("store: deleting user %q: %w", username, err)
	}
	s.logger.Info("user deleted", "user", username)
	return nil
}

func selectUser(conn *sqlite.Conn, username string) (User, error) {
	var user User
	found := false
	err := sqlitex.Execute(conn, "SELECT "+userColumns+" FROM users WHERE username = ?",
		&sqlitex.ExecOptions{
			Args: []any{username},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				user = scanUser(stmt)
				found = true
				return nil
			},
		})
	if err != nil {
		return User{}, err
	}
	if !found {
		return User{}, ErrNotFound
	}
	return user, nil
}

func scanUser(stmt *sqlite.Stmt) User {
	return User{
		ID:           stmt.ColumnText(0),
		Username:     stmt.ColumnText(1),
		PasswordHash: stmt.ColumnText(2),
		CreatedAt:    fromNanos(stmt.ColumnInt64(3)),
		UpdatedAt:    fromNanos(stmt.ColumnInt64(4)),
	}
}
