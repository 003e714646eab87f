package tabula

import (
	"errors"
)

// Conversion errors. These are returned by the dbconv package when resolving a
// Converter for a type or when encoding or decoding a value with one.
var (
	ErrUnsupportedType = errors.New("type has no storage mapping")
	ErrInvalidEnum     = errors.New("type is not a valid enumerated type")
	ErrTypeMismatch    = errors.New("value does not match the expected type")
	ErrUnknownVariant  = errors.New("name is not a member of the enumerated type")
	ErrParse           = errors.New("text could not be parsed")
	ErrNotImplemented  = errors.New("storage of this kind is not implemented")
	ErrAmbiguous       = errors.New("type has more than one parse operation")
	ErrEncodingFailure = errors.New("value could not be encoded to storage format")
)

// Persistence errors. These are returned by the db package.
var (
	ErrDB                  = errors.New("an error occured with the DB")
	ErrNotFound            = errors.New("the requested entity could not be found")
	ErrNotUnique           = errors.New("more than one entity matched")
	ErrConstraintViolation = errors.New("a uniqueness constraint was violated")
	ErrTransactionActive   = errors.New("a transaction is already in progress")
	ErrNoTransaction       = errors.New("no transaction is in progress")
	ErrClosed              = errors.New("the session is closed")
)

// Error is a typed error returned by functions in tabula packages as their
// error value. It contains both a message explaining what happened as well as
// one or more error values it considers to be its causes. Error is compatible
// with the use of errors.Is() - calling errors.Is on some Error value err along
// with any value of error it holds as one of its causes will return true. This
// allows for easy examination and failure condition checking without needing to
// resort to manual typecasting.
//
// If Error has at least one cause defined, the result of calling Error.Error()
// will be its primary message with the result of calling Error() on its first
// cause appended to it.
//
// Error should not be used directly; call NewError to create one.
type Error struct {
	msg   string
	cause []error
}

// Error returns the message defined for the Error. If a message was defined for
// it when created, that message is returned, concatenated with the result of
// calling Error() on the its first cause if one is defined. If no message or an
// empty message was defined for it when created, but there is at least one
// cause defined for it, the result of calling Error() on the first cause is
// returned. If no message is defined and no causes are defined, returns the
// empty string.
func (e Error) Error() string {
	if e.msg == "" && e.cause != nil {
		return e.cause[0].Error()
	}

	if e.cause != nil {
		return e.msg + ": " + e.cause[0].Error()
	}

	return e.msg
}

// Unwrap returns the causes of Error. The return value will be nil if no causes
// were defined for it.
//
// This function is for interaction with the errors API.
func (e Error) Unwrap() []error {
	if len(e.cause) > 0 {
		return e.cause
	}
	return nil
}

// Is returns whether Error either Is itself the given target error, or one of
// its causes is.
//
// This function is for interaction with the errors API.
func (e Error) Is(target error) bool {
	// is the target error itself?
	if errTarget, ok := target.(Error); ok {
		if e.msg == errTarget.msg {
			if len(e.cause) == len(errTarget.cause) {
				allCausesEqual := true
				for i := range e.cause {
					if e.cause[i] != errTarget.cause[i] {
						allCausesEqual = false
						break
					}
				}
				if allCausesEqual {
					return true
				}
			}
		}
	}

	for i := range e.cause {
		// causes of type Error need their own Is run so that their causes are
		// checked as well.
		if sErr, ok := e.cause[i].(Error); ok {
			if sErr.Is(target) {
				return true
			}
		} else if e.cause[i] == target {
			return true
		}
	}
	return false
}

// NewError creates a new Error with the given message, along with any errors it
// should wrap as its causes. Providing cause errors is not required, but will
// cause it to return true when it is checked against that error via a call to
// errors.Is.
func NewError(msg string, causes ...error) Error {
	err := Error{msg: msg}
	if len(causes) > 0 {
		err.cause = make([]error, len(causes))
		copy(err.cause, causes)
	}
	return err
}
