// Package xerrors defines the closed error taxonomy used to classify
// per-file ingestion failures before they are turned into reject events.
package xerrors

import "fmt"

// Code is one of the eight classification tags a Worker can attach to a
// failed run. The set is closed: the Worker's reject path maps every failure
// onto one of these through CodeOf before emitting a reject event.
type Code string

const (
	MissingProcedureHeader Code = "MissingProcedureHeader"
	UnknownProcedure       Code = "UnknownProcedure"
	CastError              Code = "CastError"
	EmptyDataTable         Code = "EmptyDataTable"
	ColumnAmbiguous        Code = "ColumnAmbiguous"
	WriteConflict          Code = "WriteConflict"
	IOFailure              Code = "IOFailure"
	SchemaLoadFailure      Code = "SchemaLoadFailure"
)

// Error is a classified failure: a Code plus the operation and path it
// occurred on, and the underlying cause if any.
type Error struct {
	Code Code
	Op   string
	Path string
	Err  error
}

func New(code Code, op, path string, cause error) *Error {
	return &Error{Code: code, Op: op, Path: path, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Code, e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, e.Path)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf extracts the classification code from err, defaulting to
// IOFailure for any error that was not already classified — this is the
// Worker boundary's catch-all per the propagation policy.
func CodeOf(err error) Code {
	var classified *Error
	if As(err, &classified) {
		return classified.Code
	}
	return IOFailure
}

// As walks err's Unwrap chain for an *Error, a reduced local form of
// errors.As: it follows single-error Unwrap only, not Unwrap() []error or
// custom As methods.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
