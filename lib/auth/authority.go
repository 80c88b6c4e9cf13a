// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/littleci/littleci/lib/clock"
	"github.com/littleci/littleci/lib/store"
)

// Mode selects whether the management API requires a login.
type Mode string

const (
	ModeNone   Mode = "none"
	ModeSimple Mode = "simple"
)

// ParseMode validates a mode name.
func ParseMode(name string) (Mode, error) {
	switch Mode(name) {
	case ModeNone, ModeSimple:
		return Mode(name), nil
	default:
		return "", fmt.Errorf("auth: unknown authentication mode %q (want none or simple)", name)
	}
}

// Principal is the acting user of an authenticated request.
type Principal string

// Anonymous acts for every request when authentication is off.
const Anonymous Principal = "anonymous"

var (
	// ErrInvalidCredentials covers both unknown users and wrong
	// passwords, so callers cannot probe for usernames.
	ErrInvalidCredentials = errors.New("auth: invalid username or password")

	// ErrUnauthenticated is returned when a token is required but
	// none was presented.
	ErrUnauthenticated = errors.New("auth: authentication required")
)

// DefaultTokenLifetime is how long a session token stays valid.
const DefaultTokenLifetime = 12 * time.Hour

// UserFinder looks up users by name. *store.Store implements it.
type UserFinder interface {
	UserByName(ctx context.Context, username string) (store.User, error)
}

// Config holds the parameters of an Authority.
type Config struct {
	Mode       Mode
	Users      UserFinder
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey

	// TokenLifetime defaults to DefaultTokenLifetime.
	TokenLifetime time.Duration

	// PasswordParams is the cost used for hashes made by this
	// Authority. Defaults to DefaultPasswordParams.
	PasswordParams PasswordParams

	Clock  clock.Clock
	Logger *slog.Logger
}

// Session is the result of a successful login.
type Session struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Authority logs users in and authenticates bearer tokens.
type Authority struct {
	config      Config
	revocations *Revocations

	// dummyHash is checked when a login names an unknown user so the
	// response takes as long as a wrong password would.
	dummyOnce sync.Once
	dummyHash string
}

// NewAuthority validates cfg and returns an Authority.
func NewAuthority(cfg Config) (*Authority, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModeSimple
	}
	if _, err := ParseMode(string(cfg.Mode)); err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("auth: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("auth: Logger is required")
	}
	if cfg.Mode == ModeSimple {
		if cfg.Users == nil {
			return nil, fmt.Errorf("auth: Users is required in simple mode")
		}
		if len(cfg.PrivateKey) != ed25519.PrivateKeySize || len(cfg.PublicKey) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("auth: signing keypair is required in simple mode")
		}
	}
	if cfg.TokenLifetime <= 0 {
		cfg.TokenLifetime = DefaultTokenLifetime
	}
	if cfg.PasswordParams == (PasswordParams{}) {
		cfg.PasswordParams = DefaultPasswordParams
	}
	return &Authority{config: cfg, revocations: NewRevocations()}, nil
}

// Mode returns the configured authentication mode.
func (a *Authority) Mode() Mode { return a.config.Mode }

// HashPassword hashes a new password with the Authority's cost
// parameters.
func (a *Authority) HashPassword(password string) (string, error) {
	return HashPassword(password, a.config.PasswordParams)
}

// Login checks a username and password and mints a session token.
func (a *Authority) Login(ctx context.Context, username, password string) (Session, error) {
	if a.config.Mode == ModeNone {
		return Session{Username: string(Anonymous)}, nil
	}

	user, err := a.config.Users.UserByName(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		a.burnPasswordCheck(password)
		a.config.Logger.Info("login failed", "user", username, "reason", "unknown user")
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("auth: looking up user: %w", err)
	}

	matches, err := CheckPassword(password, user.PasswordHash)
	if err != nil {
		return Session{}, fmt.Errorf("auth: checking password of %q: %w", username, err)
	}
	if !matches {
		a.config.Logger.Info("login failed", "user", username, "reason", "wrong password")
		return Session{}, ErrInvalidCredentials
	}

	tokenID, err := newTokenID()
	if err != nil {
		return Session{}, err
	}
	now := a.config.Clock.Now()
	expiresAt := now.Add(a.config.TokenLifetime)
	encoded, err := Mint(a.config.PrivateKey, &Token{
		Subject:   user.Username,
		IssuedAt:  now.Unix(),
		ExpiresAt: expiresAt.Unix(),
		ID:        tokenID,
	})
	if err != nil {
		return Session{}, err
	}

	a.config.Logger.Info("user logged in", "user", user.Username)
	return Session{Token: encoded, Username: user.Username, ExpiresAt: time.Unix(expiresAt.Unix(), 0).UTC()}, nil
}

// Authenticate resolves an Authorization header value ("Bearer
// <token>", or a bare token) to a principal.
func (a *Authority) Authenticate(header string) (Principal, error) {
	if a.config.Mode == ModeNone {
		return Anonymous, nil
	}
	token, err := a.verify(header)
	if err != nil {
		return "", err
	}
	return Principal(token.Subject), nil
}

// Logout revokes the presented token for the rest of its lifetime.
func (a *Authority) Logout(header string) error {
	if a.config.Mode == ModeNone {
		return nil
	}
	token, err := a.verify(header)
	if err != nil {
		return err
	}
	now := a.config.Clock.Now()
	a.revocations.Cleanup(now)
	a.revocations.Revoke(token.ID, time.Unix(token.ExpiresAt, 0))
	a.config.Logger.Info("user logged out", "user", token.Subject)
	return nil
}

func (a *Authority) verify(header string) (*Token, error) {
	encoded := strings.TrimSpace(header)
	if scheme, rest, found := strings.Cut(encoded, " "); found && strings.EqualFold(scheme, "bearer") {
		encoded = strings.TrimSpace(rest)
	}
	if encoded == "" {
		return nil, ErrUnauthenticated
	}

	token, err := VerifyAt(a.config.PublicKey, encoded, a.config.Clock.Now())
	if err != nil {
		return nil, err
	}
	if a.revocations.IsRevoked(token.ID) {
		return nil, ErrTokenRevoked
	}
	return token, nil
}

func (a *Authority) burnPasswordCheck(password string) {
	a.dummyOnce.Do(func() {
		hash, err := HashPassword("littleci-dummy-password", a.config.PasswordParams)
		if err == nil {
			a.dummyHash = hash
		}
	})
	if a.dummyHash != "" {
		CheckPassword(password, a.dummyHash)
	}
}
