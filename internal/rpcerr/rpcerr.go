// Package rpcerr implements a logical error taxonomy and maps it onto the
// wire error envelope (pkg/protocol.ErrorObject). Handlers return a
// *rpcerr.Error (or a plain error, which is wrapped as an unclassified
// internal error) and the router does the rest.
package rpcerr

import "fmt"

// Code is one of the logical error codes. Values are strings on the wire,
// never numeric.
type Code string

const (
	NotConnected       Code = "NOT_CONNECTED"
	RequestTimeout     Code = "REQUEST_TIMEOUT"
	MethodUnknown      Code = "METHOD_UNKNOWN"
	InvalidParams      Code = "INVALID_PARAMS"
	ChannelNotFound    Code = "CHANNEL_NOT_FOUND"
	ChannelDuplicate   Code = "CHANNEL_DUPLICATE"
	ChannelStateInvalid Code = "CHANNEL_STATE_INVALID"
	AgentNotFound      Code = "AGENT_NOT_FOUND"
	AgentStateInvalid  Code = "AGENT_STATE_INVALID"
	AgentAdapterMismatch Code = "AGENT_ADAPTER_MISMATCH"
	SubscriptionUnknown Code = "SUBSCRIPTION_UNKNOWN"
	DuplicateStep      Code = "DUPLICATE_STEP"
	Suspended          Code = "SUSPENDED"
	AdapterAPIError    Code = "ADAPTER_API_ERROR"
	ConfigInvalid      Code = "CONFIG_INVALID"
	ShutdownInProgress Code = "SHUTDOWN_IN_PROGRESS"
	Internal           Code = "INTERNAL"
)

// Error is a taxonomy-classified error that crosses the RPC boundary as
// {code, message, data}.
type Error struct {
	Code    Code
	Message string
	Data    interface{}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds a classified error.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithData attaches structured context data to an existing error.
func (e *Error) WithData(data interface{}) *Error {
	e.Data = data
	return e
}

// As reports whether err is (or wraps) an *Error and returns it.
func As(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	if e, ok := err.(*Error); ok {
		return e, true
	}
	type wrapper interface{ Unwrap() error }
	if w, ok := err.(wrapper); ok {
		return As(w.Unwrap())
	}
	return nil, false
}

// Classify converts any error into an *Error, defaulting to Internal for
// errors that were never deliberately classified, so a handler error always
// becomes a well-formed response instead of crashing the daemon.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	return &Error{Code: Internal, Message: err.Error()}
}
