// ABOUTME: Detection of "daemon not running" transport failures so readers can print a start hint.
// ABOUTME: Matches refused connections and unknown hosts by error type first, then by message.

package consumer

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// IsDaemonUnreachable reports whether err means nothing is listening at the
// daemon address, as opposed to the daemon answering with a failure.
func IsDaemonUnreachable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "failed to fetch")
}

// Describe returns the message a reader shows for err, adding a hint when
// the daemon is not running.
func Describe(err error, addr string) string {
	if err == nil {
		return ""
	}
	if IsDaemonUnreachable(err) {
		return "daemon unreachable at " + addr + " (start it with: summarize -daemon): " + err.Error()
	}
	return err.Error()
}
