// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies a rejected trigger.
type ErrorKind int

const (
	// NotFound: the repository does not exist or is deleted.
	NotFound ErrorKind = iota + 1

	// Forbidden: the credential is missing or does not match.
	Forbidden

	// Invalid: the payload could not be parsed.
	Invalid
)

// String returns the kind name used in logs and metric labels.
func (k ErrorKind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Forbidden:
		return "forbidden"
	case Invalid:
		return "invalid"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Error is a trigger rejection. Message is safe to return to the
// caller; it never contains the secret or the expected signature.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("trigger %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("trigger %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the kind to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case NotFound:
		return http.StatusNotFound
	case Forbidden:
		return http.StatusForbidden
	case Invalid:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func notFound(message string) *Error { return &Error{Kind: NotFound, Message: message} }

func forbidden(message string) *Error { return &Error{Kind: Forbidden, Message: message} }

func invalid(message string, err error) *Error {
	return &Error{Kind: Invalid, Message: message, Err: err}
}
