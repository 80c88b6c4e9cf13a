// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/littleci/littleci/lib/clock"
	"github.com/littleci/littleci/lib/store"
)

// testPasswordParams keeps hashing fast in tests.
var testPasswordParams = PasswordParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

var authTestEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeUsers map[string]store.User

func (f fakeUsers) UserByName(_ context.Context, username string) (store.User, error) {
	user, ok := f[username]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return user, nil
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse", testPasswordParams)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Errorf("hash = %q, want argon2id PHC string", hash)
	}

	ok, err := CheckPassword("correct horse", hash)
	if err != nil || !ok {
		t.Errorf("CheckPassword(correct) = %v, %v", ok, err)
	}
	ok, err = CheckPassword("correct horsf", hash)
	if err != nil || ok {
		t.Errorf("CheckPassword(wrong) = %v, %v", ok, err)
	}

	other, _ := HashPassword("correct horse", testPasswordParams)
	if other == hash {
		t.Error("two hashes of the same password are identical; salt not random")
	}
}

func TestCheckPasswordMalformed(t *testing.T) {
	for _, encoded := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1024,t=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$aGFzaA",
	} {
		if _, err := CheckPassword("x", encoded); !errors.Is(err, ErrMalformedHash) {
			t.Errorf("CheckPassword(%q) error = %v, want ErrMalformedHash", encoded, err)
		}
	}
	if _, err := HashPassword("", testPasswordParams); err == nil {
		t.Error("HashPassword accepted an empty password")
	}
}

func TestTokenMintVerify(t *testing.T) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	token := &Token{Subject: "admin", IssuedAt: authTestEpoch.Unix(), ExpiresAt: authTestEpoch.Add(time.Hour).Unix(), ID: "abc"}
	encoded, err := Mint(private, token)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if strings.ContainsAny(encoded, "+/=") {
		t.Errorf("token %q is not unpadded base64url", encoded)
	}

	verified, err := VerifyAt(public, encoded, authTestEpoch.Add(59*time.Minute))
	if err != nil {
		t.Fatalf("VerifyAt: %v", err)
	}
	if *verified != *token {
		t.Errorf("verified = %+v, want %+v", verified, token)
	}

	if _, err := VerifyAt(public, encoded, authTestEpoch.Add(time.Hour)); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("VerifyAt at expiry error = %v, want ErrTokenExpired", err)
	}

	otherPublic, _, _ := ed25519.GenerateKey(rand.Reader)
	if _, err := VerifyAt(otherPublic, encoded, authTestEpoch); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("VerifyAt with other key error = %v, want ErrInvalidSignature", err)
	}

	tampered := []byte(encoded)
	tampered[2] ^= 0x01
	if _, err := VerifyAt(public, string(tampered), authTestEpoch); err == nil {
		t.Error("tampered token verified")
	}
	for _, bad := range []string{"", "!!!", "c2hvcnQ"} {
		if _, err := VerifyAt(public, bad, authTestEpoch); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("VerifyAt(%q) error = %v, want ErrInvalidToken", bad, err)
		}
	}
}

func TestLoadOrGenerateKeypair(t *testing.T) {
	dir := t.TempDir()
	public, private, generated, err := LoadOrGenerateKeypair(dir)
	if err != nil || !generated {
		t.Fatalf("first LoadOrGenerateKeypair: generated=%v err=%v", generated, err)
	}
	info, err := os.Stat(filepath.Join(dir, privateKeyFile))
	if err != nil {
		t.Fatalf("stat private key: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("private key mode = %v, want 0600", info.Mode().Perm())
	}

	loadedPublic, loadedPrivate, generated, err := LoadOrGenerateKeypair(dir)
	if err != nil || generated {
		t.Fatalf("second LoadOrGenerateKeypair: generated=%v err=%v", generated, err)
	}
	if !public.Equal(loadedPublic) || !private.Equal(loadedPrivate) {
		t.Error("reloaded keypair differs")
	}

	// A corrupt key is reported, not replaced.
	os.WriteFile(filepath.Join(dir, privateKeyFile), []byte("short"), 0o600)
	if _, _, _, err := LoadOrGenerateKeypair(dir); err == nil {
		t.Error("corrupt private key accepted")
	}
}

func TestRevocations(t *testing.T) {
	revocations := NewRevocations()
	revocations.Revoke("a", authTestEpoch.Add(time.Minute))
	revocations.Revoke("b", authTestEpoch.Add(time.Hour))
	if !revocations.IsRevoked("a") || revocations.IsRevoked("c") {
		t.Error("IsRevoked mismatch")
	}
	if removed := revocations.Cleanup(authTestEpoch.Add(time.Minute)); removed != 1 {
		t.Errorf("Cleanup removed %d, want 1", removed)
	}
	if revocations.Len() != 1 || !revocations.IsRevoked("b") {
		t.Errorf("after cleanup Len = %d", revocations.Len())
	}
}

func newTestAuthority(t *testing.T) (*Authority, *clock.FakeClock) {
	t.Helper()
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	hash, err := HashPassword("hunter2", testPasswordParams)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	fakeClock := clock.Fake(authTestEpoch)
	authority, err := NewAuthority(Config{
		Mode:           ModeSimple,
		Users:          fakeUsers{"admin": {ID: "u1", Username: "admin", PasswordHash: hash}},
		PublicKey:      public,
		PrivateKey:     private,
		TokenLifetime:  time.Hour,
		PasswordParams: testPasswordParams,
		Clock:          fakeClock,
		Logger:         slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("NewAuthority: %v", err)
	}
	return authority, fakeClock
}

func TestAuthorityLoginAuthenticateLogout(t *testing.T) {
	authority, fakeClock := newTestAuthority(t)
	ctx := context.Background()

	if _, err := authority.Login(ctx, "admin", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := authority.Login(ctx, "nobody", "hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user error = %v, want ErrInvalidCredentials", err)
	}

	session, err := authority.Login(ctx, "admin", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !session.ExpiresAt.Equal(authTestEpoch.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v", session.ExpiresAt)
	}

	principal, err := authority.Authenticate("Bearer " + session.Token)
	if err != nil || principal != "admin" {
		t.Fatalf("Authenticate = %q, %v; want admin", principal, err)
	}
	if principal, err := authority.Authenticate(session.Token); err != nil || principal != "admin" {
		t.Errorf("Authenticate(bare token) = %q, %v", principal, err)
	}
	if _, err := authority.Authenticate(""); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Authenticate(empty) error = %v, want ErrUnauthenticated", err)
	}

	if err := authority.Logout("Bearer " + session.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := authority.Authenticate("Bearer " + session.Token); !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("Authenticate after logout error = %v, want ErrTokenRevoked", err)
	}

	second, err := authority.Login(ctx, "admin", "hunter2")
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}
	fakeClock.Advance(time.Hour)
	if _, err := authority.Authenticate("Bearer " + second.Token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Authenticate after lifetime error = %v, want ErrTokenExpired", err)
	}
}

func TestAuthorityModeNone(t *testing.T) {
	authority, err := NewAuthority(Config{
		Mode:   ModeNone,
		Clock:  clock.Fake(authTestEpoch),
		Logger: slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("NewAuthority: %v", err)
	}
	principal, err := authority.Authenticate("")
	if err != nil || principal != Anonymous {
		t.Errorf("Authenticate = %q, %v; want anonymous", principal, err)
	}
	if err := authority.Logout("anything"); err != nil {
		t.Errorf("Logout: %v", err)
	}
}

func TestNewAuthorityValidation(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	if _, err := NewAuthority(Config{Mode: "ldap", Clock: clock.Fake(authTestEpoch), Logger: logger}); err == nil {
		t.Error("unknown mode accepted")
	}
	if _, err := NewAuthority(Config{Mode: ModeSimple, Users: fakeUsers{}, Clock: clock.Fake(authTestEpoch), Logger: logger}); err == nil {
		t.Error("simple mode without keypair accepted")
	}
	if _, err := NewAuthority(Config{Mode: ModeNone, Logger: logger}); err == nil {
		t.Error("missing clock accepted")
	}
}
