// Package errors implements the error taxonomy used by package
// hashlog: an error carries a Kind (a semantically meaningful error
// code) and can chain an underlying cause, so a caller can test
// errors.Is(errors.Torn, err) instead of comparing against a family of
// exported sentinel values. Its kinds are limited to the ones
// package hashlog actually produces.
package errors

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Separator defines the separation string inserted between
// chained errors in error messages.
var Separator = ": "

// Kind defines the type of error, per the taxonomy in the design doc's
// error handling section.
type Kind int

const (
	// Other indicates an unclassified error.
	Other Kind = iota
	// MissingLog indicates the log file does not exist.
	MissingLog
	// BadHeader indicates an unrecognized signature or version.
	BadHeader
	// Torn indicates a short read, checksum mismatch, or ordering
	// violation in the record stream: a torn tail requiring recovery.
	Torn
	// ReadIO indicates an I/O error while reading the log.
	ReadIO
	// WriteIO indicates an I/O error while writing the log.
	WriteIO
	// Hasher indicates the external content hasher returned an error.
	Hasher
	// Oversize indicates a record would exceed MaxRecordSize.
	Oversize
	// Rename indicates a rename or unlink failed during compaction.
	Rename
	// Invalid indicates the caller supplied invalid parameters.
	Invalid

	maxKind
)

var kinds = map[Kind]string{
	Other:      "unknown error",
	MissingLog: "log file does not exist",
	BadHeader:  "bad signature or unknown version",
	Torn:       "torn tail",
	ReadIO:     "read I/O error",
	WriteIO:    "write I/O error",
	Hasher:     "error hashing file",
	Oversize:   "record exceeds maximum size",
	Rename:     "rename/unlink failure",
	Invalid:    "invalid argument",
}

// String returns a human-readable explanation of the error kind k.
func (k Kind) String() string {
	return kinds[k]
}

// Error is hashlog's standard error type, carrying a kind, an
// optional message, and an optional underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// E constructs a new error from the provided arguments. Arguments are
// interpreted according to their type:
//
//   - Kind: sets the Error's kind
//   - string: sets the Error's message; multiple strings are
//     separated by a single space
//   - *Error: copies the error and sets it as the cause
//   - error: sets the Error's cause
//
// If no Kind is provided but an underlying error is, E classifies
// os.IsNotExist errors as MissingLog, and inherits the Kind of a
// wrapped *Error.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("errors.E: no args")
	}
	e := new(Error)
	var msg strings.Builder
	for _, arg := range args {
		switch arg := arg.(type) {
		case Kind:
			e.Kind = arg
		case string:
			if msg.Len() > 0 {
				msg.WriteString(" ")
			}
			msg.WriteString(arg)
		case *Error:
			cp := *arg
			if len(args) == 1 {
				return &cp
			}
			e.Err = &cp
		case error:
			e.Err = arg
		default:
			return &Error{
				Kind:    Invalid,
				Message: fmt.Sprintf("unknown type %T, value %v in error call", arg, arg),
			}
		}
	}
	e.Message = msg.String()
	if e.Err == nil {
		return e
	}
	if prev, ok := e.Err.(*Error); ok {
		if e.Kind == Other {
			e.Kind = prev.Kind
			prev.Kind = Other
		}
	} else if e.Kind == Other && os.IsNotExist(e.Err) {
		e.Kind = MissingLog
	}
	return e
}

// Recover recovers any error into an *Error. If err is already an
// *Error, it is returned unchanged; otherwise it is wrapped.
func Recover(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return E(err).(*Error)
}

// Error returns a human readable string describing this error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b bytes.Buffer
	e.writeError(&b)
	return b.String()
}

func (e *Error) writeError(b *bytes.Buffer) {
	if e.Message != "" {
		pad(b, ": ")
		b.WriteString(e.Message)
	}
	if e.Kind != Other {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}
	if e.Err == nil {
		return
	}
	if err, ok := e.Err.(*Error); ok {
		pad(b, Separator)
		b.WriteString(err.Error())
	} else {
		pad(b, ": ")
		b.WriteString(e.Err.Error())
	}
}

// Is tells whether err has the given Kind. If err has kind Other, the
// cause chain is traversed until a non-Other error is found.
func Is(kind Kind, err error) bool {
	if err == nil {
		return false
	}
	return is(kind, Recover(err))
}

func is(kind Kind, e *Error) bool {
	if e.Kind != Other {
		return e.Kind == kind
	}
	if e.Err != nil {
		if e2, ok := e.Err.(*Error); ok {
			return is(kind, e2)
		}
	}
	return false
}

// Match tells whether every nonempty field in err1 matches the
// corresponding field in err2. It is designed to aid in testing
// errors without depending on exact message text.
func Match(err1, err2 error) bool {
	e1, e2 := Recover(err1), Recover(err2)
	if e1.Kind != Other && e1.Kind != e2.Kind {
		return false
	}
	if e1.Message != "" && e1.Message != e2.Message {
		return false
	}
	if e1.Err != nil {
		if e2.Err == nil {
			return false
		}
		if _, ok := e1.Err.(*Error); ok {
			return Match(e1.Err, e2.Err)
		}
		return e1.Err.Error() == e2.Err.Error()
	}
	return true
}

// New is synonymous with errors.New, provided so that callers need
// import only one errors package.
func New(msg string) error {
	return errors.New(msg)
}

func pad(b *bytes.Buffer, s string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(s)
}
