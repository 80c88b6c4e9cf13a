// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	privateKeyFile = "token-signing-key"
	publicKeyFile  = "token-signing-key.pub"
)

// LoadKeypair reads the signing keypair from dir.
func LoadKeypair(dir string) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	privateBytes, err := os.ReadFile(filepath.Join(dir, privateKeyFile))
	if err != nil {
		return nil, nil, fmt.Errorf("reading private key: %w", err)
	}
	if len(privateBytes) != ed25519.PrivateKeySize {
		return nil, nil, fmt.Errorf("private key has %d bytes, want %d", len(privateBytes), ed25519.PrivateKeySize)
	}

	publicBytes, err := os.ReadFile(filepath.Join(dir, publicKeyFile))
	if err != nil {
		return nil, nil, fmt.Errorf("reading public key: %w", err)
	}
	if len(publicBytes) != ed25519.PublicKeySize {
		return nil, nil, fmt.Errorf("public key has %d bytes, want %d", len(publicBytes), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(publicBytes), ed25519.PrivateKey(privateBytes), nil
}

// LoadOrGenerateKeypair loads the keypair from dir, generating and
// saving one when the private key file does not exist. A private key
// file that exists but cannot be loaded is an error, never silently
// replaced. Returns whether a new keypair was generated.
func LoadOrGenerateKeypair(dir string) (ed25519.PublicKey, ed25519.PrivateKey, bool, error) {
	public, private, err := LoadKeypair(dir)
	if err == nil {
		return public, private, false, nil
	}
	if _, statErr := os.Stat(filepath.Join(dir, privateKeyFile)); !errors.Is(statErr, fs.ErrNotExist) {
		return nil, nil, false, err
	}

	public, private, err = ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, false, fmt.Errorf("generating Ed25519 keypair: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, privateKeyFile), private, 0o600); err != nil {
		return nil, nil, false, fmt.Errorf("writing private key: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, publicKeyFile), public, 0o644); err != nil {
		return nil, nil, false, fmt.Errorf("writing public key: %w", err)
	}
	return public, private, true, nil
}
