package phrp

import (
	"context"
	"errors"
	"fmt"
)

// Code classifies a failed run.
type Code int

const (
	Unspecified Code = iota
	InvalidInputPath
	InvalidOutputPath
	ParameterFile
	MassCorrectionTags
	ModificationDefinitions
	InputRead
	OutputWrite
	Aborted
)

var codeNames = map[Code]string{
	Unspecified:             "unspecified error",
	InvalidInputPath:        "invalid input path",
	InvalidOutputPath:       "invalid output path",
	ParameterFile:           "parameter file error",
	MassCorrectionTags:      "mass correction tags error",
	ModificationDefinitions: "modification definitions error",
	InputRead:               "input read error",
	OutputWrite:             "output write error",
	Aborted:                 "aborted",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// ErrAborted is returned, wrapped in an *Error with code Aborted, when the
// run is cancelled through its context.
var ErrAborted = errors.New("processing aborted")

// Error is the error returned by Run.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// classify wraps err with code, turning context cancellation into an
// Aborted error.
func classify(code Code, err error, format string, args ...any) *Error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newError(Aborted, fmt.Errorf("%w: %w", ErrAborted, err), format, args...)
	}
	return newError(code, err, format, args...)
}

// CodeOf returns the code of err, Unspecified when err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Unspecified
}
