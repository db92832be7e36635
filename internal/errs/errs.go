// Package errs defines the error taxonomy shared by the ranking run.
package errs

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeOracleTransport  Code = "ORACLE_TRANSPORT"
	CodeOracleValidation Code = "ORACLE_VALIDATION"
	CodeConfiguration    Code = "CONFIGURATION"
	CodePersistence      Code = "PERSISTENCE"
)

type Error struct {
	Code    Code
	Message string
	Hint    string
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, msg, hint string, cause error) *Error {
	return &Error{Code: code, Message: msg, Hint: hint, Cause: cause}
}

func Transport(msg string, cause error) *Error {
	return New(CodeOracleTransport, msg, "", cause)
}

func Validation(msg string, cause error) *Error {
	return New(CodeOracleValidation, msg, "", cause)
}

func Configuration(msg, hint string, cause error) *Error {
	return New(CodeConfiguration, msg, hint, cause)
}

func Persistence(msg string, cause error) *Error {
	return New(CodePersistence, msg, "", cause)
}

// CodeOf returns the code of the first *Error in err's chain, or "" when there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsOracleFailure reports whether err is recoverable through the fallback policy.
func IsOracleFailure(err error) bool {
	switch CodeOf(err) {
	case CodeOracleTransport, CodeOracleValidation:
		return true
	}
	return false
}
