package engine

import (
	"errors"
	"fmt"
)

// ErrInvalidState marks a root state that fails structural checks before
// any simulation starts.
var ErrInvalidState = errors.New("invalid state")

var (
	errNilDomain      = errors.New("nil domain")
	errNegativeWeight = errors.New("exploration weight must be > 0")
)

// CapabilityError reports a failure inside a caller-supplied capability
// (LegalActions, Apply, Reward, or the estimator). It aborts the search
// that hit it and is never conflated with a legitimate no-decision.
type CapabilityError struct {
	Op  string
	Err error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("capability %s: %v", e.Op, e.Err)
}

func (e *CapabilityError) Unwrap() error { return e.Err }

func capErr(op string, err error) error {
	var ce *CapabilityError
	if errors.As(err, &ce) {
		return err
	}
	return &CapabilityError{Op: op, Err: err}
}

func joinInvalidState(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidState, err)
}
