package syncer

import (
	"errors"
	"fmt"
)

// Failure categories. Every error a table sync produces wraps exactly one of
// them inside a *StepError.
var (
	ErrLayoutParse    = errors.New("layout parse error")
	ErrDecode         = errors.New("decode error")
	ErrValidation     = errors.New("data validation failed")
	ErrSchemaMismatch = errors.New("schema mismatch")
	ErrNoRecords      = errors.New("no records decoded")
	ErrIntrospect     = errors.New("table introspection failed")
	ErrSnapshot       = errors.New("existing rows read failed")
	ErrInsert         = errors.New("insert failed")
	ErrConfig         = errors.New("configuration error")
)

// StepError records where a table sync stopped. State is the last state
// reached before the failure.
type StepError struct {
	State State
	Table string
	Kind  error
	Err   error
}

func (e *StepError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Table, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Table, e.Kind, e.Err)
}

// Unwrap exposes both the category and the cause to errors.Is/As.
func (e *StepError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func stepErr(state State, table string, kind, err error) *StepError {
	return &StepError{State: state, Table: table, Kind: kind, Err: err}
}
