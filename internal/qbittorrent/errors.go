// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures against the qBittorrent Web API so that
// callers can pick a recovery strategy without parsing error strings.
type ErrorKind string

const (
	// KindAuth means the upstream rejected our credentials.
	KindAuth ErrorKind = "auth"
	// KindSessionExpired means a previously valid session cookie was
	// rejected (HTTP 403). The caller may re-login and retry once.
	KindSessionExpired ErrorKind = "session_expired"
	// KindUnreachable covers network errors and timeouts.
	KindUnreachable ErrorKind = "unreachable"
	// KindDecode means the upstream answered but the payload violated
	// the expected contract.
	KindDecode ErrorKind = "decode"
)

// APIError is the error type returned by all Client operations.
type APIError struct {
	Kind     ErrorKind
	Endpoint string
	Status   int
	Err      error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("qbittorrent: %s: %s: %v", e.Endpoint, e.Kind, e.Err)
	}
	return fmt.Sprintf("qbittorrent: %s: %s (status %d)", e.Endpoint, e.Kind, e.Status)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ErrBadCredentials is wrapped inside a KindAuth APIError when the upstream
// explicitly rejected the username/password, as opposed to being unreachable.
var ErrBadCredentials = errors.New("invalid username or password")

func newAPIError(kind ErrorKind, endpoint string, status int, err error) *APIError {
	return &APIError{Kind: kind, Endpoint: endpoint, Status: status, Err: err}
}

// KindOf returns the classification of err, or an empty kind for errors that
// did not originate from the client.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// IsSessionExpired reports whether err is a rejected-session failure.
func IsSessionExpired(err error) bool {
	return KindOf(err) == KindSessionExpired
}
