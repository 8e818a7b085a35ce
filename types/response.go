package types

import "time"

// ErrorDetail carries the error payload for a failed request.
type ErrorDetail struct {
	Timestamp    string `json:"timestamp"`
	Path         string `json:"path"`
	ErrorCode    int    `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message"`
}

// ErrorResponse is the standardized error envelope.
type ErrorResponse struct {
	StatusCode int         `json:"status_code"`
	IsSuccess  bool        `json:"is_success"`
	Error      ErrorDetail `json:"error,omitempty"`
}

// SuccessResponse is the standardized success envelope.
type SuccessResponse[T any] struct {
	StatusCode int  `json:"status_code"`
	IsSuccess  bool `json:"is_success"`
	Data       T    `json:"data,omitempty"`
}

// NewError builds an error envelope with the current timestamp.
func NewError(status int, path string, code int, message string) ErrorResponse {
	return ErrorResponse{
		StatusCode: status,
		IsSuccess:  false,
		Error: ErrorDetail{
			Timestamp:    time.Now().Format(time.RFC3339),
			Path:         path,
			ErrorCode:    code,
			ErrorMessage: message,
		},
	}
}

// NewSuccess builds a success envelope.
func NewSuccess[T any](status int, data T) SuccessResponse[T] {
	return SuccessResponse[T]{
		StatusCode: status,
		IsSuccess:  true,
		Data:       data,
	}
}
