package browser

import (
	"context"
	"errors"
	"strings"
)

// FailureClass buckets a navigation failure by the recovery it needs.
type FailureClass int

const (
	// ClassNone means the navigation succeeded.
	ClassNone FailureClass = iota
	// ClassTimeout means the load deadline fired; the session is still good.
	ClassTimeout
	// ClassTransientProtocol covers protocol hiccups worth a backed-off retry.
	ClassTransientProtocol
	// ClassSocketPoisoned means the transport under the session is dead or
	// hung; the session cannot be trusted for even one more call.
	ClassSocketPoisoned
)

func (c FailureClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassTimeout:
		return "timeout"
	case ClassTransientProtocol:
		return "transient"
	case ClassSocketPoisoned:
		return "poisoned"
	}
	return "unknown"
}

// poisonedSignatures mark a dead transport between us and the browser.
// These are Go-level socket failures; site-level load errors
// (net::ERR_CONNECTION_REFUSED and friends from the page itself) do not
// match and stay transient, because the session is still usable.
var poisonedSignatures = []string{
	"read timed out",
	"connection pool",
	"i/o timeout",
	"use of closed network connection",
	"connection reset by peer",
	"broken pipe",
	"connection refused",
	"websocket: close",
}

// Classify buckets a navigation error. Poisoned signatures are checked
// first so "read timed out" never falls through to the timeout bucket.
func Classify(err error) FailureClass {
	if err == nil {
		return ClassNone
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range poisonedSignatures {
		if strings.Contains(msg, sig) {
			return ClassSocketPoisoned
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "deadline exceeded") {
		return ClassTimeout
	}

	return ClassTransientProtocol
}
