package blobstore

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	// ErrNotFound is a normal outcome: nothing is stored under the key.
	ErrNotFound = errors.New("blob not found")

	// ErrTransient marks failures worth retrying (timeouts, refused
	// connections, throttling, 5xx).
	ErrTransient = errors.New("transient storage error")

	// ErrAccessDenied marks authentication or permission failures.
	ErrAccessDenied = errors.New("storage access denied")

	// ErrInvalidKey is returned for keys that do not follow the key format.
	ErrInvalidKey = errors.New("invalid storage key")

	// ErrInvalidPayload is returned when Save gets no body or a negative size.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrSizeMismatch is returned when the body length differs from the
	// declared size.
	ErrSizeMismatch = errors.New("payload size mismatch")
)

// Error carries the operation context of a storage failure. Match the
// underlying condition with errors.Is against the sentinels above.
type Error struct {
	Op      string
	Backend string
	Key     string
	Err     error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("blobstore %s %s: %v", e.Backend, e.Op, e.Err)
	}
	return fmt.Sprintf("blobstore %s %s %s: %v", e.Backend, e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsNotFound reports whether err means the key holds nothing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// markTransient wraps err with ErrTransient when it looks like a network
// hiccup; otherwise err is returned unchanged.
func markTransient(err error) error {
	if err == nil || errors.Is(err, ErrTransient) {
		return err
	}
	if isTransientConnection(err) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return err
}

var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"connection timeout",
	"context deadline exceeded",
	"i/o timeout",
	"no such host",
	"network is unreachable",
	"temporary failure",
	"connection closed",
	"broken pipe",
}

func isTransientConnection(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
