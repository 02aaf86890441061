package forecast

import "errors"

var (
	ErrInsufficientHistory = errors.New("insufficient training history")
	ErrGappedHistory       = errors.New("training window is not contiguous")
	ErrNonFiniteValue      = errors.New("training value is not finite")

	ErrNotFitted      = errors.New("model has not been fitted")
	ErrAlreadyFitted  = errors.New("model is already fitted; use a new engine to retrain")
	ErrInvalidHorizon = errors.New("horizon must be positive")

	ErrInvalidConfig = errors.New("invalid forecast config")
)

// PreconditionError reports a training window the engine refuses to fit.
type PreconditionError struct {
	Err error
}

func (e *PreconditionError) Error() string { return "forecast precondition: " + e.Err.Error() }
func (e *PreconditionError) Unwrap() error { return e.Err }

// SequenceError reports an engine operation invoked in the wrong state.
type SequenceError struct {
	Err error
}

func (e *SequenceError) Error() string { return "forecast sequence: " + e.Err.Error() }
func (e *SequenceError) Unwrap() error { return e.Err }
