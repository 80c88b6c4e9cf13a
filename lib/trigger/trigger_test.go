// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/littleci/littleci/lib/store"
)

const testSecret = "0f4c2a9e8b7d6c5f4e3d2c1b0a99887766554433221100ffeeddccbbaa998877"

type fakeFinder map[string]store.Repository

func (f fakeFinder) RepositoryBySlug(_ context.Context, slug string) (store.Repository, error) {
	repository, ok := f[slug]
	if !ok || repository.Deleted {
		return store.Repository{}, store.ErrNotFound
	}
	return repository, nil
}

func testRepository() store.Repository {
	return store.Repository{ID: "repo-1", Slug: "site", Name: "site", Run: "make", Secret: testSecret}
}

func requireKind(t *testing.T, err error, want ErrorKind) {
	t.Helper()
	var triggerErr *Error
	if !errors.As(err, &triggerErr) {
		t.Fatalf("error = %v, want *trigger.Error of kind %s", err, want)
	}
	if triggerErr.Kind != want {
		t.Fatalf("error kind = %s (%v), want %s", triggerErr.Kind, err, want)
	}
}

func TestAuthorizeUnknownRepository(t *testing.T) {
	authenticator := NewAuthenticator(fakeFinder{})
	_, err := authenticator.Authorize(context.Background(), Trigger{Slug: "nope", SecretKey: testSecret})
	requireKind(t, err, NotFound)

	var triggerErr *Error
	errors.As(err, &triggerErr)
	if triggerErr.HTTPStatus() != http.StatusNotFound {
		t.Errorf("HTTPStatus = %d, want 404", triggerErr.HTTPStatus())
	}
}

func TestAuthorizeDeletedRepository(t *testing.T) {
	repository := testRepository()
	repository.Deleted = true
	_, err := Authorize(repository, Trigger{SecretKey: testSecret})
	requireKind(t, err, NotFound)
}

func TestSecretKeyExactMatch(t *testing.T) {
	authenticator := NewAuthenticator(fakeFinder{"site": testRepository()})
	request, err := authenticator.Authorize(context.Background(), Trigger{
		Slug:      "site",
		SecretKey: testSecret,
		Body:      []byte(`{"BUILD_MODE":"release","COUNT":3,"DRY":false,"TAGS":["a","b"],"NOTE":null}`),
	})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if request.Skipped {
		t.Error("generic trigger was skipped")
	}
	want := map[string]string{
		"BUILD_MODE": "release",
		"COUNT":      "3",
		"DRY":        "false",
		"TAGS":       `["a","b"]`,
		"NOTE":       "",
	}
	for key, value := range want {
		if request.Data[key] != value {
			t.Errorf("Data[%s] = %q, want %q", key, request.Data[key], value)
		}
	}
	if len(request.Data) != len(want) {
		t.Errorf("Data = %v, want %d entries", request.Data, len(want))
	}
}

func TestSecretKeyRejectsEverySingleByteChange(t *testing.T) {
	repository := testRepository()
	for position := range len(testSecret) {
		mutated := []byte(testSecret)
		mutated[position] ^= 0x01
		_, err := Authorize(repository, Trigger{SecretKey: string(mutated)})
		requireKind(t, err, Forbidden)
	}

	for _, key := range []string{"", testSecret[:len(testSecret)-1], testSecret + "0"} {
		_, err := Authorize(repository, Trigger{SecretKey: key})
		requireKind(t, err, Forbidden)
	}
}

func TestSecretKeyMalformedBody(t *testing.T) {
	for _, body := range []string{`[1,2]`, `not json`, `null`, `{"A=B":"x"}`} {
		_, err := Authorize(testRepository(), Trigger{SecretKey: testSecret, Body: []byte(body)})
		requireKind(t, err, Invalid)
	}
}

const pushBody = `{"ref":"refs/heads/master","before":"1111","after":"2222","repository":{"full_name":"acme/site"}}`

func TestGitHubSignature(t *testing.T) {
	repository := testRepository()
	body := []byte(pushBody)
	signature, err := Sign(SHA1, []byte(testSecret), body)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	request, err := Authorize(repository, Trigger{
		Service:   ServiceGitHub,
		Signature: "sha1=" + signature,
		Body:      body,
	})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if request.Skipped {
		t.Error("push to master skipped under default rules")
	}
	if request.Payload.Kind != PayloadGitHub {
		t.Errorf("Payload.Kind = %s, want github", request.Payload.Kind)
	}
	want := map[string]string{
		EnvRef:        "refs/heads/master",
		EnvBranch:     "master",
		EnvBefore:     "1111",
		EnvAfter:      "2222",
		EnvRepository: "acme/site",
	}
	for key, value := range want {
		if request.Data[key] != value {
			t.Errorf("Data[%s] = %q, want %q", key, request.Data[key], value)
		}
	}
	if _, ok := request.Data[EnvTag]; ok {
		t.Error("branch push set LITTLECI_GIT_TAG")
	}
}

func TestGitHubSignatureBodyTampering(t *testing.T) {
	repository := testRepository()
	body := []byte(pushBody)
	signature, _ := Sign(SHA1, []byte(testSecret), body)

	for position := range body {
		tampered := append([]byte(nil), body...)
		tampered[position] ^= 0x20
		_, err := Authorize(repository, Trigger{
			Service:   ServiceGitHub,
			Signature: "sha1=" + signature,
			Body:      tampered,
		})
		requireKind(t, err, Forbidden)
	}
}

func TestGitHubPrefersSHA256(t *testing.T) {
	repository := testRepository()
	body := []byte(pushBody)
	sha256Signature, _ := Sign(SHA256, []byte(testSecret), body)
	sha1Signature, _ := Sign(SHA1, []byte(testSecret), body)

	// A valid SHA-256 signature wins over a bad SHA-1 one.
	if _, err := Authorize(repository, Trigger{
		Service:      ServiceGitHub,
		Signature:    "sha1=00",
		Signature256: "sha256=" + sha256Signature,
		Body:         body,
	}); err != nil {
		t.Errorf("valid sha256 with bad sha1: %v", err)
	}

	// A bad SHA-256 signature is not rescued by a valid SHA-1 one.
	_, err := Authorize(repository, Trigger{
		Service:      ServiceGitHub,
		Signature:    "sha1=" + sha1Signature,
		Signature256: "sha256=" + sha1Signature,
		Body:         body,
	})
	requireKind(t, err, Forbidden)

	_, err = Authorize(repository, Trigger{Service: ServiceGitHub, Body: body})
	requireKind(t, err, Forbidden)
}

func TestGitHubMalformedPayload(t *testing.T) {
	repository := testRepository()
	for _, body := range []string{`{"ref":"refs/pull/1/head"}`, `{`, `{"ref":"refs/heads/"}`} {
		signature, _ := Sign(SHA256, []byte(testSecret), []byte(body))
		_, err := Authorize(repository, Trigger{
			Service:      ServiceGitHub,
			Signature256: "sha256=" + signature,
			Body:         []byte(body),
		})
		requireKind(t, err, Invalid)
	}
}

func TestGitHubPingIsSkipped(t *testing.T) {
	body := []byte(`{"zen":"Design for failure."}`)
	signature, _ := Sign(SHA256, []byte(testSecret), body)
	request, err := Authorize(testRepository(), Trigger{
		Service:      ServiceGitHub,
		Signature256: signature,
		Event:        "ping",
		Body:         body,
	})
	if err != nil {
		t.Fatalf("Authorize(ping): %v", err)
	}
	if !request.Skipped {
		t.Error("ping event not skipped under default rules")
	}
}

func TestGiteaBodySecret(t *testing.T) {
	repository := testRepository()
	body := []byte(`{"secret":"` + testSecret + `","ref":"refs/tags/v1.2.0","before":"a","after":"b"}`)
	request, err := Authorize(repository, Trigger{Service: ServiceGitea, Body: body})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if request.Data[EnvTag] != "v1.2.0" {
		t.Errorf("Data[%s] = %q", EnvTag, request.Data[EnvTag])
	}
	if _, ok := request.Data["secret"]; ok {
		t.Error("secret leaked into job data")
	}
	// Default rules only build master.
	if !request.Skipped {
		t.Error("tag push not skipped under default rules")
	}

	wrong := []byte(`{"secret":"nope","ref":"refs/heads/master"}`)
	_, err = Authorize(repository, Trigger{Service: ServiceGitea, Body: wrong})
	requireKind(t, err, Forbidden)

	_, err = Authorize(repository, Trigger{Service: ServiceGitea, Body: []byte(`{"ref":"refs/heads/master"}`)})
	requireKind(t, err, Forbidden)
}

func TestGiteaSignatureHeader(t *testing.T) {
	repository := testRepository()
	body := []byte(pushBody)
	signature, _ := Sign(SHA256, []byte(testSecret), body)
	if _, err := Authorize(repository, Trigger{Service: ServiceGitea, Signature256: signature, Body: body}); err != nil {
		t.Errorf("valid gitea signature: %v", err)
	}
	_, err := Authorize(repository, Trigger{Service: ServiceGitea, Signature256: signature, Body: append(body, ' ')})
	requireKind(t, err, Forbidden)
}

func TestVerifyHMAC(t *testing.T) {
	secret := []byte("s3cret")
	body := []byte("payload")
	signature, err := Sign(SHA256, secret, body)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := VerifyHMAC(SHA256, secret, body, signature); err != nil {
		t.Errorf("bare hex: %v", err)
	}
	if err := VerifyHMAC(SHA256, secret, body, "sha256="+signature); err != nil {
		t.Errorf("prefixed: %v", err)
	}
	if err := VerifyHMAC(SHA256, []byte("other"), body, signature); err == nil {
		t.Error("wrong secret accepted")
	}
	if err := VerifyHMAC(SHA256, secret, body, "zz"); err == nil {
		t.Error("non-hex signature accepted")
	}
	if err := VerifyHMAC(SHA256, nil, body, signature); err == nil {
		t.Error("empty secret accepted")
	}
	if _, err := Sign("md5", secret, body); err == nil {
		t.Error("Sign accepted md5")
	}
}
