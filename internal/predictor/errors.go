package predictor

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies why a prediction request failed
type Kind string

const (
	KindUnreachable       Kind = "unreachable"
	KindRequestRejected   Kind = "request_rejected"
	KindMalformedResponse Kind = "malformed_response"
	KindUnknown           Kind = "unknown"
)

// User-facing messages for failures that carry no server-supplied text
const (
	MsgUnreachable     = "Cannot connect to prediction service. Please check if the backend is running."
	MsgRejectedDefault = "Failed to get prediction"
	MsgMalformed       = "The prediction service returned an invalid response"
	MsgUnknown         = "An unexpected error occurred"
)

// Error is returned by Client.Predict for every failure.
// Message is safe to show to the user; Err holds the technical cause.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	BaseURL string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Detail renders the error with its kind, status and cause for logs
func (e *Error) Detail() string {
	if e.Err != nil {
		return fmt.Sprintf("predictor %s (status %d): %s: %v", e.Kind, e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("predictor %s (status %d): %s", e.Kind, e.Status, e.Message)
}

func unreachable(baseURL string, cause error) *Error {
	return &Error{Kind: KindUnreachable, Message: MsgUnreachable, BaseURL: baseURL, Err: cause}
}

func rejected(status int, message string) *Error {
	if message == "" {
		message = MsgRejectedDefault
	}
	return &Error{Kind: KindRequestRejected, Status: status, Message: message}
}

func malformed(status int, cause error) *Error {
	return &Error{Kind: KindMalformedResponse, Status: status, Message: MsgMalformed, Err: cause}
}

func unknown(cause error) *Error {
	return &Error{Kind: KindUnknown, Status: http.StatusInternalServerError, Message: MsgUnknown, Err: cause}
}

// AsError classifies any error as a prediction error. Errors that did not come
// from the client are reported as KindUnknown.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return unknown(err)
}
