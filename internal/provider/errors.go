// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorKind categorizes provider failures for handling.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindMissingCredential
	KindConnectionFailed
	KindUpstream
	KindVisionUnsupported
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindMissingCredential:
		return "missing_credential"
	case KindConnectionFailed:
		return "connection_failed"
	case KindUpstream:
		return "upstream"
	case KindVisionUnsupported:
		return "vision_unsupported"
	}
	return "unknown"
}

// Error is the single error type returned by provider clients.
type Error struct {
	Kind ErrorKind
	// Status is the HTTP status of an upstream rejection, zero otherwise.
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches sentinel errors by kind, so errors.Is(err, ErrUpstream) holds
// for every upstream failure regardless of status or message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || !isSentinel(t) {
		return false
	}
	return t.Kind == e.Kind
}

func isSentinel(e *Error) bool {
	switch e {
	case ErrUnknown, ErrMissingCredential, ErrConnectionFailed, ErrUpstream, ErrVisionUnsupported:
		return true
	}
	return false
}

// Sentinel errors for errors.Is checks.
var (
	ErrUnknown           = &Error{Kind: KindUnknown, Message: "unknown provider error"}
	ErrMissingCredential = &Error{Kind: KindMissingCredential, Message: "cloud credential is not configured"}
	ErrConnectionFailed  = &Error{Kind: KindConnectionFailed, Message: "connection failed"}
	ErrUpstream          = &Error{Kind: KindUpstream, Message: "upstream error"}
	ErrVisionUnsupported = &Error{Kind: KindVisionUnsupported, Message: "model does not support vision"}
)

// =============================================================================
// CONSTRUCTORS
// =============================================================================

// MissingCredential reports that the cloud call had no credential.
func MissingCredential() *Error {
	return &Error{
		Kind:    KindMissingCredential,
		Message: "API key is missing. Set it with \"omnitool config set-key\".",
	}
}

// ConnectionFailed wraps a transport failure reaching target.
func ConnectionFailed(target string, cause error) *Error {
	return &Error{
		Kind:    KindConnectionFailed,
		Message: fmt.Sprintf("could not reach %s", target),
		Cause:   cause,
	}
}

// Upstream reports a non-success HTTP response.
func Upstream(status int, message string) *Error {
	return &Error{Kind: KindUpstream, Status: status, Message: message}
}

// VisionUnsupported reports that a local model rejected an image request.
func VisionUnsupported(status int, detail string) *Error {
	msg := "Model may not support vision."
	if detail != "" {
		msg += " " + detail
	}
	return &Error{Kind: KindVisionUnsupported, Status: status, Message: msg}
}

// Unknown wraps any other failure, such as an undecodable response.
func Unknown(message string, cause error) *Error {
	return &Error{Kind: KindUnknown, Message: message, Cause: cause}
}

// =============================================================================
// HELPERS
// =============================================================================

// KindOf returns the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// StatusOf returns the upstream HTTP status carried by err, or zero.
func StatusOf(err error) int {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Status
	}
	return 0
}

// IsConnectionFailure reports whether err is a network-level transport
// failure: refused, reset, DNS, timeout or a dial error. Caller
// cancellation is not a connection failure.
func IsConnectionFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// http.Client wraps every transport failure in *url.Error.
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
