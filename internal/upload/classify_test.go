package upload

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"syscall"
	"testing"
)

func TestClassifyStatusCodes(t *testing.T) {
	cases := []struct {
		status int
		kind   FailureKind
		reason string
	}{
		{http.StatusOK, "", ""},
		{http.StatusNoContent, "", ""},
		{http.StatusUnauthorized, FailureCredentials, ReasonHTTP4xx},
		{http.StatusForbidden, FailureCredentials, ReasonHTTP4xx},
		{http.StatusRequestEntityTooLarge, FailureRemote, ReasonHTTP4xx},
		{http.StatusTooManyRequests, FailureRemote, ReasonHTTP429},
		{http.StatusBadGateway, FailureRemote, ReasonHTTP5xx},
		{http.StatusFound, FailureRemote, ReasonHTTPOther},
	}
	for _, tc := range cases {
		kind, reason := Classify(tc.status, nil)
		if kind != tc.kind || reason != tc.reason {
			t.Errorf("Classify(%d) = %s/%s, want %s/%s", tc.status, kind, reason, tc.kind, tc.reason)
		}
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyErrors(t *testing.T) {
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}
	cases := []struct {
		name   string
		err    error
		kind   FailureKind
		reason string
	}{
		{"payload", &payloadError{err: errors.New("eof")}, FailurePayload, ReasonPayload},
		{"credentials", &credentialsError{err: ErrNoToken}, FailureCredentials, ReasonCredentials},
		{"deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), FailureTransport, ReasonTimeout},
		{"canceled", context.Canceled, FailureTransport, ReasonCanceled},
		{"net timeout", timeoutErr{}, FailureTransport, ReasonTimeout},
		{"refused", refused, FailureTransport, ReasonConnectionRefused},
		{"dns", &net.DNSError{Err: "no such host", Name: "warranty.invalid"}, FailureTransport, ReasonDNS},
		{"reset", errors.New("connection reset by peer"), FailureTransport, ReasonNetwork},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kind, reason := Classify(500, tc.err)
			if kind != tc.kind || reason != tc.reason {
				t.Fatalf("got %s/%s, want %s/%s", kind, reason, tc.kind, tc.reason)
			}
		})
	}
}

func TestErrorDetailTruncates(t *testing.T) {
	long := make([]byte, 0, 400)
	for len(long) < 400 {
		long = append(long, 'a')
	}
	detail := errorDetail([]byte(`{"detail":"` + string(long) + `"}`))
	if len(detail) != maxDetailLength+3 {
		t.Fatalf("expected truncated detail, got %d chars", len(detail))
	}
	if errorDetail([]byte(`{"detail":null}`)) != "" {
		t.Fatal("expected null detail to be ignored")
	}
}
