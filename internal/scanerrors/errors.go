// Package scanerrors defines the closed error taxonomy that is allowed
// to cross the scan boundary (spec §7). Everything else — a single
// analyzer panicking, a cache miss, an explainer timeout — is
// recovered locally and never reaches the caller as an error.
package scanerrors

import "errors"

// Sentinel errors checked with errors.Is at the API boundary.
var (
	// ErrQueueFull is returned when the admission layer's bounded
	// queue is at capacity. Retriable; HTTP 503-equivalent.
	ErrQueueFull = errors.New("admission queue full")

	// ErrBreakerOpen is returned when the admission-layer circuit
	// breaker has tripped. Retriable; HTTP 503-equivalent.
	ErrBreakerOpen = errors.New("admission breaker open")

	// ErrScanTimeout is returned when the pipeline-wide deadline
	// expires before a result could be assembled. HTTP 408-equivalent.
	ErrScanTimeout = errors.New("scan deadline exceeded")

	// ErrParse is returned when the transaction blob/struct fails to
	// decode or violates a structural invariant. HTTP 400/422-equivalent.
	ErrParse = errors.New("transaction parse error")

	// ErrInvalidWallet is returned when user_wallet is present but
	// malformed.
	ErrInvalidWallet = errors.New("invalid wallet identifier")

	// ErrInvalidScanType is returned for an unrecognized scan_type.
	ErrInvalidScanType = errors.New("invalid scan type")

	// ErrUnauthorized / ErrForbidden map to 401/403-equivalent; the
	// core never produces these itself (auth is an external
	// collaborator per spec §1) but the taxonomy reserves them so the
	// HTTP adapter can surface a uniform shape.
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// ErrPaymentRequired maps to 402-equivalent; also an external
	// collaborator concern, reserved here for a uniform error shape.
	ErrPaymentRequired = errors.New("payment required")
)

// ParseError wraps ErrParse with a human-readable cause while still
// satisfying errors.Is(err, ErrParse).
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return "parse error: " + e.Reason }

func (e *ParseError) Unwrap() error { return ErrParse }

// NewParseError builds a ParseError for the given reason.
func NewParseError(reason string) error {
	return &ParseError{Reason: reason}
}
