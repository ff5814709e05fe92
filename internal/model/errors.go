package model

import "errors"

// Engine error taxonomy. Callers classify failures with errors.Is; every
// error returned by the engine wraps exactly one of these sentinels.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInternal        = errors.New("internal error")
)
