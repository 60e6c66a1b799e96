package dashprefs

import (
	"errors"
	"fmt"
)

// Persistence failure kinds. They never escape as panics: loads degrade to
// the empty tree and failed saves keep the in-memory state.
var (
	ErrTransportUnavailable = errors.New("dashprefs: transport unavailable")
	ErrLoadFailed           = errors.New("dashprefs: load failed")
	ErrSaveFailed           = errors.New("dashprefs: save failed")
	ErrScopeRace            = errors.New("dashprefs: scope changed during load")
	ErrStoreClosed          = errors.New("dashprefs: store closed")
)

// PersistenceError records which operation failed for which scope.
type PersistenceError struct {
	Op    string
	Scope string
	Kind  error
	Err   error
}

func (e *PersistenceError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err == nil {
		return fmt.Sprintf("%v: op=%s scope=%q", e.Kind, e.Op, e.Scope)
	}
	return fmt.Sprintf("%v: op=%s scope=%q: %v", e.Kind, e.Op, e.Scope, e.Err)
}

// Unwrap exposes both the failure kind and the cause to errors.Is/As.
func (e *PersistenceError) Unwrap() []error {
	if e == nil {
		return nil
	}
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

func persistenceError(op, scope string, kind, err error) error {
	return &PersistenceError{Op: op, Scope: scope, Kind: kind, Err: err}
}
