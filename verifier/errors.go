package verifier

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMXRecords marks a domain with no usable mail exchangers. It is a
	// negative signal, not a failure: validation continues without SMTP.
	ErrNoMXRecords = errors.New("no MX records found")

	// ErrResolutionTimeout marks a DNS lookup that exceeded its deadline.
	// Treated the same as ErrNoMXRecords by the pipeline.
	ErrResolutionTimeout = errors.New("MX resolution timed out")
)

// SyntaxError reports a malformed address. It is terminal: a syntactically
// invalid address is never resolved or probed.
type SyntaxError struct {
	Email  string
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid email %q: %s", e.Email, e.Reason)
}

// LimitError rejects a bulk request before any work begins.
type LimitError struct {
	Count int
	Limit int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("request contains %d addresses, limit is %d", e.Count, e.Limit)
}

// ProbeError wraps a transport or protocol failure during an SMTP probe.
// Transient conditions (refused connection, timeout, greylisting) are
// retryable; malformed protocol responses are not.
type ProbeError struct {
	Host      string
	Op        string
	Code      int
	Err       error
	Transient bool
}

func (e *ProbeError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("smtp probe %s %s: code %d: %v", e.Op, e.Host, e.Code, e.Err)
	}
	return fmt.Sprintf("smtp probe %s %s: %v", e.Op, e.Host, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// Retryable reports whether the orchestrator may re-attempt the probe.
func (e *ProbeError) Retryable() bool { return e.Transient }
