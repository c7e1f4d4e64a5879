// Package checkout drives a booking attempt end to end against the
// booking API: it sequences the seat, combo, points and payment steps,
// keeps a countdown against the server's hold deadline, mirrors in-flight
// state for reload recovery, and reconciles the return leg of an external
// payment redirect.
package checkout

import "fmt"

// Kind classifies a failed flow operation so callers can pick the right
// recovery: conflicts re-fetch and re-select, expiry restarts the flow,
// validation stays on the current step, transport failures retry as-is.
type Kind int

const (
	// KindTransport covers network failures and unstructured server
	// errors.  The session is untouched, so the same action can be
	// retried safely.
	KindTransport Kind = iota
	// KindConflict means a selection lost a race, typically seats taken
	// by another session.  The stale selection must be discarded and
	// fresh data fetched before trying again.
	KindConflict
	// KindSessionExpired covers both server-reported expiry and the
	// not-found case after a session was reaped.  The flow restarts
	// from seat selection.
	KindSessionExpired
	// KindValidation is a rejected input: bad combo, points over a cap,
	// missing fields.  The user stays on the current step.
	KindValidation
	// KindPaymentFailure is a declined or aborted payment.  The session
	// survives so payment can be retried until the hold runs out.
	KindPaymentFailure
)

func (k Kind) String() string {
	switch k {
	case KindConflict:
		return "conflict"
	case KindSessionExpired:
		return "session_expired"
	case KindValidation:
		return "validation"
	case KindPaymentFailure:
		return "payment_failure"
	default:
		return "transport"
	}
}

// FlowError is the only error type flow operations return.  Unavailable
// is populated on seat conflicts so the caller can highlight exactly
// which seats were lost.
type FlowError struct {
	Kind        Kind
	Message     string
	Unavailable []uint64
}

func (e *FlowError) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// IsKind reports whether err is a FlowError of the given kind.
func IsKind(err error, k Kind) bool {
	fe, ok := err.(*FlowError)
	return ok && fe.Kind == k
}

func flowErr(k Kind, msg string) *FlowError {
	return &FlowError{Kind: k, Message: msg}
}
