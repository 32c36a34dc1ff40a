package policy

import (
	"errors"
	"net"
	"strings"
)

// HTTPStatusError lets a model provider or tool transport report an HTTP
// response status to Retry's default classifier without Retry needing to
// import any HTTP client package.
type HTTPStatusError struct {
	Status int
	Err    error
}

func (e *HTTPStatusError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "http status error"
}

func (e *HTTPStatusError) Unwrap() error { return e.Err }

var defaultRetryableStatuses = map[int]bool{
	408: true, 429: true, 500: true, 502: true, 503: true, 504: true, 529: true,
}

// defaultRetryableMessages catches transport failures that reach Retry
// already flattened to a plain error string (e.g. crossing a process
// boundary or an SDK that doesn't preserve structured causes).
var defaultRetryableMessages = []string{
	"connection reset",
	"connection refused",
	"connection aborted",
	"broken pipe",
	"timeout",
	"timed out",
	"network is unreachable",
	"no route to host",
	"temporary failure in name resolution",
}

// DefaultRetryable is Retry's built-in retryable(error) predicate: true
// for HTTPStatusError carrying a retryable status, for net.Error timeouts
// and net.OpError transport failures (which on Unix wrap the ECONNRESET /
// ECONNREFUSED / ETIMEDOUT / EPIPE / EHOSTUNREACH / ENETUNREACH family of
// syscall errnos), and for a small lowercase-message heuristic covering
// the same failure classes when the structured error has been lost.
func DefaultRetryable(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return defaultRetryableStatuses[statusErr.Status]
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
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

	msg := strings.ToLower(err.Error())
	for _, needle := range defaultRetryableMessages {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
