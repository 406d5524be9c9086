// ABOUTME: Tests for daemon-unreachable detection.
// ABOUTME: Covers refused connections, wrapped errors and unrelated failures.

package consumer

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"testing"
)

func TestIsDaemonUnreachable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{&net.DNSError{Err: "no such host", Name: "daemon.local"}, true},
		{errors.New(`Get "http://127.0.0.1:8787/v1": dial tcp 127.0.0.1:8787: connect: connection refused`), true},
		{errors.New("open event stream: 401 Unauthorized"), false},
	}
	for _, tt := range tests {
		if got := IsDaemonUnreachable(tt.err); got != tt.want {
			t.Errorf("IsDaemonUnreachable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestDescribe(t *testing.T) {
	msg := Describe(syscall.ECONNREFUSED, "127.0.0.1:8787")
	if !strings.Contains(msg, "daemon unreachable at 127.0.0.1:8787") {
		t.Errorf("Describe = %q", msg)
	}
	if Describe(errors.New("boom"), "x") != "boom" {
		t.Error("other errors are passed through verbatim")
	}
}
