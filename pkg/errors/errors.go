package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
func New(msg string) error {
	return errors.New(msg)
}

// Is is a passthrough to the standard library so that callers only need to
// import this package.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a passthrough to the standard library.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// contextError annotates an error with a short description of the operation
// that failed. Nested contexts are printed outermost first, e.g.
// "download: list directory: permission denied".
type contextError struct {
	cause   error
	context string
}

// WithContext adds context to err. It returns nil if err is nil so that it
// can wrap the return value of functions directly.
func WithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return contextError{cause: err, context: context}
}

func (err contextError) Error() string {
	return fmt.Sprintf("%s: %s", err.context, err.cause)
}

func (err contextError) Unwrap() error {
	return err.cause
}

// FriendlyError is an error whose message is meant to be shown to users
// as-is, without the wrapping context used for debugging.
type FriendlyError struct {
	msg string
}

// NewFriendlyError creates a FriendlyError with a formatted message.
func NewFriendlyError(format string, args ...interface{}) error {
	return FriendlyError{fmt.Sprintf(format, args...)}
}

func (err FriendlyError) Error() string {
	return err.msg
}

// FriendlyMessage returns the message that should be displayed to users.
func (err FriendlyError) FriendlyMessage() string {
	return err.msg
}

// GetRootError returns the innermost error in the chain.
func GetRootError(err error) error {
	for {
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil {
			return err
		}
		err = unwrapped
	}
}

// GetPrintableMessage returns the message that should be shown to the user.
// If any error in the chain has a friendly message, that message is used
// instead of the full context chain.
func GetPrintableMessage(err error) string {
	var friendly interface{ FriendlyMessage() string }
	if errors.As(err, &friendly) {
		return friendly.FriendlyMessage()
	}
	return err.Error()
}
