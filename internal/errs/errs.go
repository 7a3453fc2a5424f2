// Package errs defines the fatal-error taxonomy of the marker-graph
// core: ConfigError, InputMissing, AlgorithmicFailure,
// ConsensusFailure and IOError. Every constructor names the offending
// object id and the check that failed, so the single fatal message the
// CLI prints on exit is self-contained.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a fatal error for the CLI's exit path.
type Kind int

const (
	ConfigError Kind = iota
	InputMissing
	AlgorithmicFailure
	ConsensusFailure
	IOError
)

func (k Kind) String() string {
	switch k {
	case ConfigError:
		return "ConfigError"
	case InputMissing:
		return "InputMissing"
	case AlgorithmicFailure:
		return "AlgorithmicFailure"
	case ConsensusFailure:
		return "ConsensusFailure"
	case IOError:
		return "IOError"
	default:
		return "UnknownError"
	}
}

// Error is a typed, causal error naming the object id and the check that
// failed. It wraps its cause with github.com/pkg/errors so the original
// stack is preserved through the CLI boundary.
type Error struct {
	Kind   Kind
	Object string
	Check  string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] object=%s check=%s: %v", e.Kind, e.Object, e.Check, e.cause)
	}
	return fmt.Sprintf("[%s] object=%s check=%s", e.Kind, e.Object, e.Check)
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Cause() error { return e.cause }

// New builds a *Error naming object and check, with an optional
// underlying cause (nil is fine).
func New(kind Kind, object, check string, cause error) *Error {
	var wrapped error
	if cause != nil {
		wrapped = errors.WithStack(cause)
	}
	return &Error{Kind: kind, Object: object, Check: check, cause: wrapped}
}

func Config(object, check string) error {
	return New(ConfigError, object, check, nil)
}

func Missing(object, check string) error {
	return New(InputMissing, object, check, nil)
}

func Algorithmic(object, check string) error {
	return New(AlgorithmicFailure, object, check, nil)
}

func Consensus(object string, cause error) error {
	return New(ConsensusFailure, object, "aligner raised an exception", cause)
}

func IO(object string, cause error) error {
	return New(IOError, object, "backing-file operation failed", cause)
}

// KindOf reports the Kind of err if it (or something it wraps) is an
// *Error, and false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
