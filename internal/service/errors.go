package service

import (
	"errors"
	"fmt"
)

// ErrorCode tags a domain failure. Coordinators return *Error for every
// expected failure; the transport edge maps the code to a wire error
// event exactly once.
type ErrorCode string

const (
	CodeNotInRoom           ErrorCode = "NOT_IN_ROOM"
	CodeForbidden           ErrorCode = "FORBIDDEN"
	CodeNotOwner            ErrorCode = "NOT_OWNER"
	CodeNotFound            ErrorCode = "NOT_FOUND"
	CodeTargetNotFound      ErrorCode = "TARGET_NOT_FOUND"
	CodeCategoryLimit       ErrorCode = "CATEGORY_LIMIT"
	CodeCategoryMin         ErrorCode = "CATEGORY_MIN"
	CodeBadRequest          ErrorCode = "BAD_REQUEST"
	CodeDuplicatedCandidate ErrorCode = "DUPLICATED_CANDIDATE"
	CodeNoCandidates        ErrorCode = "NO_CANDIDATES"
	CodeInternal            ErrorCode = "INTERNAL_ERROR"
)

// Error is a domain error surfaced only to the originating connection.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsError extracts a domain error from an error chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
