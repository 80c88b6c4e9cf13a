// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"context"
	"errors"
	"fmt"

	"github.com/littleci/littleci/lib/store"
)

// MaxBodySize bounds trigger bodies read by the HTTP layer.
const MaxBodySize = 25 << 20

// Service selects how a trigger is authenticated and parsed.
type Service int

const (
	ServiceGeneric Service = iota
	ServiceGitHub
	ServiceGitea
)

func (s Service) String() string {
	switch s {
	case ServiceGeneric:
		return "generic"
	case ServiceGitHub:
		return "github"
	case ServiceGitea:
		return "gitea"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Trigger is an inbound request as received by the transport, before
// any check. Body is the raw bytes the signature was computed over.
type Trigger struct {
	Service Service
	Slug    string

	// SecretKey is the X-Secret-Key header or the "key" query
	// parameter. Generic triggers only.
	SecretKey string

	// Signature is X-Hub-Signature (GitHub, "sha1=<hex>").
	Signature string

	// Signature256 is X-Hub-Signature-256 (GitHub, "sha256=<hex>") or
	// X-Gitea-Signature (Gitea, bare hex).
	Signature256 string

	// Event is X-GitHub-Event or X-Gitea-Event. Empty is treated as a
	// push.
	Event string

	Body []byte
}

// Request is an authorized trigger.
type Request struct {
	Repository store.Repository
	Payload    Payload

	// Data is the job data projected from the payload.
	Data map[string]string

	// Skipped is set when the trigger authenticated but no rule of
	// the repository matched. No job should be created.
	Skipped bool
}

// RepositoryFinder looks up live repositories by slug. *store.Store
// implements it.
type RepositoryFinder interface {
	RepositoryBySlug(ctx context.Context, slug string) (store.Repository, error)
}

// Authenticator checks triggers against stored repository secrets.
type Authenticator struct {
	repositories RepositoryFinder
}

// NewAuthenticator returns an Authenticator reading repositories from
// finder.
func NewAuthenticator(finder RepositoryFinder) *Authenticator {
	return &Authenticator{repositories: finder}
}

// Authorize authenticates t and parses its payload. Rejections are
// returned as *Error; storage failures are returned wrapped as-is.
func (a *Authenticator) Authorize(ctx context.Context, t Trigger) (Request, error) {
	repository, err := a.repositories.RepositoryBySlug(ctx, t.Slug)
	if errors.Is(err, store.ErrNotFound) {
		return Request{}, notFound(fmt.Sprintf("repository %q not found", t.Slug))
	}
	if err != nil {
		return Request{}, fmt.Errorf("trigger: looking up %q: %w", t.Slug, err)
	}
	return Authorize(repository, t)
}

// Authorize authenticates t against an already-resolved repository.
func Authorize(repository store.Repository, t Trigger) (Request, error) {
	if repository.Deleted {
		return Request{}, notFound(fmt.Sprintf("repository %q not found", repository.Slug))
	}

	var payload Payload
	var err error
	switch t.Service {
	case ServiceGeneric:
		payload, err = authorizeGeneric(repository, t)
	case ServiceGitHub:
		payload, err = authorizeGitHub(repository, t)
	case ServiceGitea:
		payload, err = authorizeGitea(repository, t)
	default:
		return Request{}, invalid(fmt.Sprintf("unknown service %s", t.Service), nil)
	}
	if err != nil {
		return Request{}, err
	}

	return Request{
		Repository: repository,
		Payload:    payload,
		Data:       payload.Data(),
		Skipped:    !Matches(repository.Triggers, payload),
	}, nil
}

func authorizeGeneric(repository store.Repository, t Trigger) (Payload, error) {
	if t.SecretKey == "" {
		return Payload{}, forbidden("secret key is missing")
	}
	if !secretMatches(t.SecretKey, repository.Secret) {
		return Payload{}, forbidden("secret key does not match")
	}
	fields, err := FlattenJSON(t.Body)
	if err != nil {
		return Payload{}, invalid("malformed trigger body", err)
	}
	return Payload{Kind: PayloadGeneric, Fields: fields}, nil
}

func authorizeGitHub(repository store.Repository, t Trigger) (Payload, error) {
	secret := []byte(repository.Secret)
	switch {
	case t.Signature256 != "":
		if err := VerifyHMAC(SHA256, secret, t.Body, t.Signature256); err != nil {
			return Payload{}, &Error{Kind: Forbidden, Message: "signature does not match", Err: err}
		}
	case t.Signature != "":
		if err := VerifyHMAC(SHA1, secret, t.Body, t.Signature); err != nil {
			return Payload{}, &Error{Kind: Forbidden, Message: "signature does not match", Err: err}
		}
	default:
		return Payload{}, forbidden("signature is missing")
	}
	return parseService(PayloadGitHub, t)
}

func authorizeGitea(repository store.Repository, t Trigger) (Payload, error) {
	if t.Signature256 != "" {
		if err := VerifyHMAC(SHA256, []byte(repository.Secret), t.Body, t.Signature256); err != nil {
			return Payload{}, &Error{Kind: Forbidden, Message: "signature does not match", Err: err}
		}
		return parseService(PayloadGitea, t)
	}

	// Without a signature header the body must carry the secret. Only
	// the secret field is trusted before it has been checked.
	push, _, err := parseServicePush(t.Body)
	if push.Secret == "" {
		return Payload{}, forbidden("secret is missing")
	}
	if !secretMatches(push.Secret, repository.Secret) {
		return Payload{}, forbidden("secret does not match")
	}
	if err != nil && isPush(t.Event) {
		return Payload{}, invalid("malformed push payload", err)
	}
	return parseService(PayloadGitea, t)
}

func parseService(kind PayloadKind, t Trigger) (Payload, error) {
	payload := Payload{Kind: kind, Event: t.Event}
	if !isPush(t.Event) {
		return payload, nil
	}
	_, push, err := parseServicePush(t.Body)
	if err != nil {
		return Payload{}, invalid("malformed push payload", err)
	}
	payload.Push = push
	return payload, nil
}

func isPush(event string) bool {
	return event == "" || event == "push"
}
