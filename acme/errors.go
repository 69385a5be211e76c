package acme

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Error is the structured error every certweld operation surfaces to
// its caller. Code is a stable machine-readable identifier, Message is
// human readable, and Data optionally carries the raw server payload
// for diagnostics.
type Error struct {
	Code    string
	Message string
	Data    interface{}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a structured Error with the given code and
// a formatted message.
func NewError(code string, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrorCode returns the structured code of err, or an empty string if
// err is not (or does not wrap) an *Error.
func ErrorCode(err error) string {
	var acmeErr *Error
	if errors.As(err, &acmeErr) {
		return acmeErr.Code
	}
	return ""
}

// serverProblem is the JSON error document v1 servers return alongside
// non-2xx status codes.
type serverProblem struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
	Status int    `json:"status"`
}

// ParseServerError maps a raw ACME error body to a structured Error.
// The problem document's colon-delimited "type" URN becomes the error
// code with colons replaced by underscores and a "letsencrypt_" prefix;
// "detail" becomes the message. Generic substitutes are used for
// anything the server didn't supply. The raw body is attached as Data.
func ParseServerError(body []byte) *Error {
	code := "letsencrypt_error"
	message := "Unknown error"

	var problem serverProblem
	if err := json.Unmarshal(body, &problem); err == nil {
		if problem.Type != "" {
			code = "letsencrypt_" + strings.ReplaceAll(problem.Type, ":", "_")
		}
		if problem.Detail != "" {
			message = problem.Detail
		}
	}

	return &Error{
		Code:    code,
		Message: message,
		Data:    string(body),
	}
}
