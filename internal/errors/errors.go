package errors

import (
	stderrors "errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
)

type ErrorType string

const (
	ErrTypeValidation   ErrorType = "VALIDATION"
	ErrTypeNotFound     ErrorType = "NOT_FOUND"
	ErrTypeConflict     ErrorType = "CONFLICT"
	ErrTypePrecondition ErrorType = "PRECONDITION"
	ErrTypeStorage      ErrorType = "STORAGE"
	ErrTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrTypeInternal     ErrorType = "INTERNAL"
	ErrTypeUnavailable  ErrorType = "UNAVAILABLE"
)

// Code narrows an ErrorType down to the operation failure callers branch on.
type Code string

const (
	CodeNone                 Code = ""
	CodeDuplicateApplication Code = "DuplicateApplication"
	CodeJobClosed            Code = "JobClosed"
	CodeNotFound             Code = "NotFound"
	CodeInvalidTransition    Code = "InvalidTransition"
	CodeMissingPayload       Code = "MissingPayload"
	CodeCandidateNotHired    Code = "CandidateNotHired"
	CodeInvalidAmount        Code = "InvalidAmount"
	CodeMissingFields        Code = "MissingFields"
	CodeMissingFilter        Code = "MissingFilter"
	CodeForbidden            Code = "Forbidden"
)

type DomainError struct {
	Type    ErrorType
	Code    Code
	Message string
	Err     error
	Stack   []byte
}

func (e *DomainError) Error() string {
	prefix := string(e.Type)
	if e.Code != CodeNone {
		prefix = fmt.Sprintf("%s(%s)", e.Type, e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func (e *DomainError) StackTrace() []byte {
	return e.Stack
}

// WithCode sets the failure code and returns the same error for chaining.
func (e *DomainError) WithCode(code Code) *DomainError {
	e.Code = code
	return e
}

func New(errType ErrorType, message string, err error) *DomainError {
	var stack []byte
	if err != nil {
		if stackErr, ok := err.(*goerrors.Error); ok {
			stack = stackErr.Stack()
		} else {
			stack = goerrors.Wrap(err, 2).Stack()
		}
	} else {
		stack = goerrors.New(message).Stack()
	}

	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Stack:   stack,
	}
}

func Validation(message string, err error) *DomainError {
	return New(ErrTypeValidation, message, err)
}

func NotFound(message string, err error) *DomainError {
	return New(ErrTypeNotFound, message, err).WithCode(CodeNotFound)
}

func Conflict(message string, err error) *DomainError {
	return New(ErrTypeConflict, message, err)
}

func Precondition(message string, err error) *DomainError {
	return New(ErrTypePrecondition, message, err)
}

func Storage(message string, err error) *DomainError {
	return New(ErrTypeStorage, message, err)
}

func Unauthorized(message string, err error) *DomainError {
	return New(ErrTypeUnauthorized, message, err).WithCode(CodeForbidden)
}

func Internal(message string, err error) *DomainError {
	return New(ErrTypeInternal, message, err)
}

func Unavailable(message string, err error) *DomainError {
	return New(ErrTypeUnavailable, message, err)
}

// TypeOf returns the type of the first DomainError in err's chain, or
// ErrTypeInternal for foreign errors.
func TypeOf(err error) ErrorType {
	var de *DomainError
	if stderrors.As(err, &de) {
		return de.Type
	}
	return ErrTypeInternal
}

func CodeOf(err error) Code {
	var de *DomainError
	if stderrors.As(err, &de) {
		return de.Code
	}
	return CodeNone
}

func IsType(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}

func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target any) bool {
	return stderrors.As(err, target)
}
