// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/littleci/littleci/lib/codec"
)

const signatureSize = ed25519.SignatureSize

// Token is the signed payload of a session token.
type Token struct {
	// Subject is the username.
	Subject string `cbor:"1,keyasint"`

	// IssuedAt and ExpiresAt are Unix seconds.
	IssuedAt  int64 `cbor:"2,keyasint"`
	ExpiresAt int64 `cbor:"3,keyasint"`

	// ID is a random hex identifier used for revocation.
	ID string `cbor:"4,keyasint"`
}

var (
	ErrInvalidToken     = errors.New("auth: malformed token")
	ErrInvalidSignature = errors.New("auth: invalid token signature")
	ErrTokenExpired     = errors.New("auth: token has expired")
	ErrTokenRevoked     = errors.New("auth: token has been revoked")
)

// Mint signs token and returns its wire form: base64url(CBOR payload
// || Ed25519 signature).
func Mint(privateKey ed25519.PrivateKey, token *Token) (string, error) {
	payload, err := codec.Marshal(token)
	if err != nil {
		return "", fmt.Errorf("auth: encoding token payload: %w", err)
	}
	signature := ed25519.Sign(privateKey, payload)

	raw := make([]byte, len(payload)+signatureSize)
	copy(raw, payload)
	copy(raw[len(payload):], signature)
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// VerifyAt decodes a token, checks its signature and checks expiry
// against now. Revocation is the caller's concern.
func VerifyAt(publicKey ed25519.PublicKey, encoded string, now time.Time) (*Token, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if len(raw) <= signatureSize {
		return nil, ErrInvalidToken
	}

	splitPoint := len(raw) - signatureSize
	payload, signature := raw[:splitPoint], raw[splitPoint:]
	if !ed25519.Verify(publicKey, payload, signature) {
		return nil, ErrInvalidSignature
	}

	var token Token
	if err := codec.Unmarshal(payload, &token); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if now.Unix() >= token.ExpiresAt {
		return nil, ErrTokenExpired
	}
	return &token, nil
}

// newTokenID returns 16 random bytes, hex-encoded.
func newTokenID() (string, error) {
	buffer := make([]byte, 16)
	if _, err := rand.Read(buffer); err != nil {
		return "", fmt.Errorf("auth: generating token id: %w", err)
	}
	return hex.EncodeToString(buffer), nil
}
