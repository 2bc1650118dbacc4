package errors

import "fmt"

// NewAggregate builds the terminal error for a request whose primary and
// fallback attempts both failed. The message and context name both backends
// and carry both underlying causes so neither is lost when the error is
// reported upstream.
func NewAggregate(primaryBackend, fallbackBackend string, primary, fallback error) *Error {
	e := New(ErrCodeAggregate, fmt.Sprintf(
		"both backends failed: %s: %v; %s (fallback): %v",
		primaryBackend, primary, fallbackBackend, fallback,
	))
	e.Underlying = primary
	e.Context["primary_backend"] = primaryBackend
	e.Context["fallback_backend"] = fallbackBackend
	e.Context["primary_error"] = fmt.Sprint(primary)
	e.Context["fallback_error"] = fmt.Sprint(fallback)
	return e
}

// AggregateCauses extracts the per-backend failure messages recorded by
// NewAggregate. ok is false when err is not an aggregate error.
func AggregateCauses(err error) (primary, fallback string, ok bool) {
	gateErr, isGate := err.(*Error)
	if !isGate || gateErr.Code != ErrCodeAggregate {
		return "", "", false
	}
	primary, _ = gateErr.Context["primary_error"].(string)
	fallback, _ = gateErr.Context["fallback_error"].(string)
	return primary, fallback, true
}
