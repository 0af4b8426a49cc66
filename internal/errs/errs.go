// Package errs defines the error taxonomy shared across the engine.
//
// Components never use exceptions-as-control-flow (the original Python source
// did); instead they return one of these sentinel-wrapped kinds and callers
// branch with errors.Is/errors.As. See DESIGN.md for the rationale.
package errs

import "fmt"

// Kind classifies an error for the purposes of the propagation rule in spec §7:
// transient errors (network failures, HTTP 429/5xx) are returned to the caller
// without a retry, data gaps trigger a full refetch,
// invariant violations skip the current decision tick, and the rest are logged
// and surfaced to the operator without crashing the process.
type Kind int

const (
	KindTransient Kind = iota
	KindDataGap
	KindInvariant
	KindOrderFailed
	KindInsufficientBalance
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindDataGap:
		return "data_gap"
	case KindInvariant:
		return "invariant"
	case KindOrderFailed:
		return "order_failed"
	case KindInsufficientBalance:
		return "insufficient_balance"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind and the instrument it concerns,
// so upstream loops can apply the per-kind policy from spec §7 without string
// matching.
type Error struct {
	Kind       Kind
	Instrument string
	Op         string
	Err        error
}

func (e *Error) Error() string {
	if e.Instrument != "" {
		return fmt.Sprintf("%s[%s]: %s: %v", e.Kind, e.Instrument, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func Transient(instrument, op string, err error) error {
	return &Error{Kind: KindTransient, Instrument: instrument, Op: op, Err: err}
}

func DataGap(instrument, op string, err error) error {
	return &Error{Kind: KindDataGap, Instrument: instrument, Op: op, Err: err}
}

func Invariant(instrument, op string, err error) error {
	return &Error{Kind: KindInvariant, Instrument: instrument, Op: op, Err: err}
}

func OrderFailed(instrument, op string, err error) error {
	return &Error{Kind: KindOrderFailed, Instrument: instrument, Op: op, Err: err}
}

func InsufficientBalance(instrument, op string, err error) error {
	return &Error{Kind: KindInsufficientBalance, Instrument: instrument, Op: op, Err: err}
}

// Is reports whether err carries the given Kind, for use with errors.Is-style
// call sites that only care about the classification.
func Is(err error, k Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == k
}
