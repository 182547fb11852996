package triage

import (
	"errors"

	"github.com/linnemanlabs/medtriage/internal/features"
	"github.com/linnemanlabs/medtriage/internal/model"
)

// Kind is the machine-checkable category of a triage failure.
type Kind string

const (
	// KindModelNotLoaded means no usable model is available.
	KindModelNotLoaded Kind = "model_not_loaded"

	// KindInvalidInput means a supplied field could not be coerced.
	KindInvalidInput Kind = "invalid_feature_input"

	// KindShapeMismatch means the extractor and the model disagree on the
	// feature layout. It indicates a deployment bug.
	KindShapeMismatch Kind = "shape_mismatch"

	// KindInternal covers everything else.
	KindInternal Kind = "internal"
)

// Error is a request-scoped triage failure carrying its kind.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or KindInternal when err is not a triage
// error and wraps none of the known sentinels.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return wrap(err).Kind
}

// wrap classifies err by the sentinel it carries.
func wrap(err error) *Error {
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	switch {
	case errors.Is(err, features.ErrInvalidInput):
		return &Error{Kind: KindInvalidInput, Msg: "invalid input", Err: err}
	case errors.Is(err, model.ErrShapeMismatch):
		return &Error{Kind: KindShapeMismatch, Msg: "feature shape mismatch", Err: err}
	case errors.Is(err, model.ErrNotLoaded):
		return &Error{Kind: KindModelNotLoaded, Msg: "model not loaded", Err: err}
	default:
		return &Error{Kind: KindInternal, Msg: "inference failed", Err: err}
	}
}
