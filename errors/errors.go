package errors

import (
	"errors"
	"fmt"
	"os"
)

// Error codes for the chain client. Codes below 1000 mirror HTTP statuses
// for the gateway surface; 2000+ are game/chain specific.
const (
	ErrInvalidRequest      = 400
	ErrUnauthorized        = 401
	ErrNotFound            = 404
	ErrInternalServerError = 500
	ErrServiceUnavailable  = 503

	// Chain client error codes (2000+)
	ErrValidation         = 2001
	ErrUserRejected       = 2002
	ErrNoWalletFound      = 2003
	ErrNetworkMismatch    = 2004
	ErrNetworkSwitch      = 2005
	ErrInsufficientFunds  = 2006
	ErrContractReverted   = 2007
	ErrRpcUnavailable     = 2008
	ErrTimeout            = 2009
	ErrResolutionDegraded = 2010
	ErrNotRegistered      = 2011
	ErrStaleSession       = 2012
	ErrBusy               = 2013
)

// AppError represents a custom application error
type AppError struct {
	Code         int    `json:"code"`
	Message      string `json:"message"`
	DebugMessage string `json:"debug_message,omitempty"`
	Err          error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.DebugMessage != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.DebugMessage)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s [%v]", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message
func Newf(code int, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error into an AppError
func Wrap(err error, code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WrapWithDebug wraps an existing error into an AppError with a debug message
func WrapWithDebug(err error, code int, message string, debugMessage string) *AppError {
	return &AppError{
		Code:         code,
		Message:      message,
		DebugMessage: debugMessage,
		Err:          err,
	}
}

// Response returns a map suitable for JSON response
func (e *AppError) Response() map[string]interface{} {
	response := map[string]interface{}{
		"code":    e.Code,
		"message": e.Message,
	}

	env := os.Getenv("APP_ENV")
	if (env == "dev" || env == "development") && e.DebugMessage != "" {
		response["debug_message"] = e.DebugMessage
	}

	return response
}

// GetCode extracts the error code from an error chain
func GetCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternalServerError
}

// IsCode reports whether err carries the given code
func IsCode(err error, code int) bool {
	return GetCode(err) == code
}

// IsValidation reports whether err is a client-local validation error
func IsValidation(err error) bool {
	return IsCode(err, ErrValidation)
}

// IsUserRejected reports whether the wallet declined the signature
func IsUserRejected(err error) bool {
	return IsCode(err, ErrUserRejected)
}

// IsRevert reports whether the contract deterministically rejected the call
func IsRevert(err error) bool {
	return IsCode(err, ErrContractReverted)
}

// IsRetryable reports whether err is a transient RPC failure worth retrying
func IsRetryable(err error) bool {
	code := GetCode(err)
	return code == ErrRpcUnavailable || code == ErrTimeout
}

// HTTPStatusFromCode maps error codes to HTTP status codes
func HTTPStatusFromCode(code int) int {
	switch code {
	case ErrInvalidRequest, ErrValidation, ErrInsufficientFunds:
		return 400
	case ErrUnauthorized, ErrUserRejected:
		return 401
	case ErrNotFound:
		return 404
	case ErrNotRegistered:
		return 403
	case ErrNetworkMismatch, ErrNetworkSwitch, ErrStaleSession:
		return 409
	case ErrBusy:
		return 409
	case ErrContractReverted:
		return 422
	case ErrRpcUnavailable, ErrServiceUnavailable:
		return 503
	case ErrTimeout:
		return 504
	case ErrNoWalletFound:
		return 424
	default:
		return 500
	}
}
