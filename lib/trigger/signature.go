// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"
)

// Algorithm names an HMAC hash as it appears in signature headers.
type Algorithm string

const (
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
)

func (a Algorithm) newHash() (func() hash.Hash, error) {
	switch a {
	case SHA1:
		return sha1.New, nil
	case SHA256:
		return sha256.New, nil
	default:
		return nil, fmt.Errorf("unsupported HMAC algorithm %q", a)
	}
}

// Sign returns the hex HMAC of body keyed by secret, without prefix.
func Sign(algorithm Algorithm, secret, body []byte) (string, error) {
	newHash, err := algorithm.newHash()
	if err != nil {
		return "", err
	}
	mac := hmac.New(newHash, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifyHMAC checks a hex HMAC signature over body, with or without
// the "<algorithm>=" prefix GitHub uses. The returned error is safe to
// log: it never includes the expected signature.
func VerifyHMAC(algorithm Algorithm, secret, body []byte, signature string) error {
	if len(secret) == 0 {
		return errors.New("webhook HMAC: secret is empty")
	}
	if signature == "" {
		return errors.New("webhook HMAC: signature is empty")
	}
	newHash, err := algorithm.newHash()
	if err != nil {
		return fmt.Errorf("webhook HMAC: %w", err)
	}

	hexSignature := strings.TrimPrefix(signature, string(algorithm)+"=")
	signatureBytes, err := hex.DecodeString(hexSignature)
	if err != nil {
		return fmt.Errorf("webhook HMAC: invalid hex signature: %w", err)
	}

	mac := hmac.New(newHash, secret)
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), signatureBytes) {
		return errors.New("webhook HMAC: signature mismatch")
	}
	return nil
}

// secretMatches compares a presented secret with the stored one in
// constant time.
func secretMatches(presented, stored string) bool {
	if presented == "" || stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) == 1
}
