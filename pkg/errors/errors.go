//
// Copyright (c) 2020, NVIDIA CORPORATION. All rights reserved.
//
// See LICENSE.txt for license information
//

package errors

import "fmt"

type InternalError struct {
	msg  string // message associated to the error
	code int    // error code
}

// TranslationError is the error type returned by the translation engine. It
// wraps one of the internal sentinel errors together with the underlying
// details so callers can test the category without parsing messages.
type TranslationError struct {
	internal InternalError
	details  error
}

// ErrNone means success
var ErrNone = InternalError{"Success", 0}

// ErrNotFound means that the object/entity requested could not be found
var ErrNotFound = InternalError{"Not found", -1}

// ErrUnknownType means a datatype handle was never registered
var ErrUnknownType = InternalError{"Unknown datatype", -2}

// ErrUnimplemented means the operation is declared but intentionally not implemented
var ErrUnimplemented = InternalError{"Unimplemented operation", -3}

// ErrMissingSetup means a required registration call was never made
var ErrMissingSetup = InternalError{"Missing registration", -4}

// ErrFatal means the input call stream is not self-consistent; the run must abort
var ErrFatal = InternalError{"Fatal error", -5}

func New(i InternalError, err error) *TranslationError {
	e := new(TranslationError)
	e.details = err
	e.internal = i
	return e
}

func (e *TranslationError) Error() string {
	if e.details == nil {
		return e.internal.msg
	}
	return fmt.Sprintf("%s: %s", e.internal.msg, e.details)
}

func (e *TranslationError) Is(i InternalError) bool {
	if e.internal == i {
		return true
	}
	return false
}

func (e *TranslationError) GetInternal() error {
	return e.details
}

// IsFatal reports whether err marks an internal-consistency problem in the
// input call stream. Fatal errors abort the run; nothing else does.
func IsFatal(err error) bool {
	te, ok := err.(*TranslationError)
	return ok && te.Is(ErrFatal)
}
