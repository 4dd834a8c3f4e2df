package upload

import (
	"context"
	"errors"
	"net"
	"net/http"
	"syscall"
)

// FailureKind groups failed attempts by where they went wrong.
type FailureKind string

const (
	// FailureTransport means no HTTP response was received.
	FailureTransport FailureKind = "transport"
	// FailureRemote means the server answered with a non-2xx status.
	FailureRemote FailureKind = "remote"
	// FailureCredentials means no token was available or the server refused it.
	FailureCredentials FailureKind = "credentials"
	// FailurePayload means the spooled payload could not be read.
	FailurePayload FailureKind = "payload"
)

// Metric reasons reported alongside a FailureKind.
const (
	ReasonTimeout           = "timeout"
	ReasonConnectionRefused = "connection_refused"
	ReasonDNS               = "dns_error"
	ReasonNetwork           = "network"
	ReasonCanceled          = "canceled"
	ReasonHTTP4xx           = "http_4xx"
	ReasonHTTP429           = "http_429"
	ReasonHTTP5xx           = "http_5xx"
	ReasonHTTPOther         = "http_other"
	ReasonCredentials       = "credentials"
	ReasonPayload           = "payload"
)

// payloadError marks failures reading the local payload while streaming.
type payloadError struct{ err error }

func (e *payloadError) Error() string { return "read payload: " + e.err.Error() }
func (e *payloadError) Unwrap() error { return e.err }

// credentialsError marks token source failures.
type credentialsError struct{ err error }

func (e *credentialsError) Error() string { return "credentials: " + e.err.Error() }
func (e *credentialsError) Unwrap() error { return e.err }

// Classify maps an attempt result to a failure kind and metrics reason.
// statusCode is ignored when err is non-nil. A 2xx status with a nil error
// is not a failure and returns empty values.
func Classify(statusCode int, err error) (FailureKind, string) {
	if err != nil {
		return classifyError(err)
	}
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "", ""
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return FailureCredentials, ReasonHTTP4xx
	case statusCode == http.StatusTooManyRequests:
		return FailureRemote, ReasonHTTP429
	case statusCode >= 400 && statusCode < 500:
		return FailureRemote, ReasonHTTP4xx
	case statusCode >= 500:
		return FailureRemote, ReasonHTTP5xx
	default:
		return FailureRemote, ReasonHTTPOther
	}
}

func classifyError(err error) (FailureKind, string) {
	var pe *payloadError
	if errors.As(err, &pe) {
		return FailurePayload, ReasonPayload
	}
	var ce *credentialsError
	if errors.As(err, &ce) {
		return FailureCredentials, ReasonCredentials
	}
	if errors.Is(err, context.Canceled) {
		return FailureTransport, ReasonCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTransport, ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTransport, ReasonTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return FailureTransport, ReasonConnectionRefused
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return FailureTransport, ReasonDNS
	}
	return FailureTransport, ReasonNetwork
}
