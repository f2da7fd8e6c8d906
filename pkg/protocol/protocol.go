// Package protocol defines the wire-level shapes exchanged on the daemon's
// control socket: requests, responses, notifications, and the error
// envelope. Everything here is newline-delimited JSON — see
// internal/transport for the framing itself.
package protocol

import "encoding/json"

// ProtocolVersion is bumped whenever a breaking change lands on the wire.
const ProtocolVersion = 1

// Request is a client-originated call that expects exactly one Response
// carrying the same Id.
type Request struct {
	Id     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response answers a Request with the same Id. Exactly one of Result/Error
// is set.
type Response struct {
	Id     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorObject    `json:"error,omitempty"`
}

// Notification is a server-pushed message that carries no Id and expects no
// reply. Subscriptions deliver these.
type Notification struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// ErrorObject is the response error envelope.
type ErrorObject struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Kind classifies a raw decoded frame: presence of "id" distinguishes
// request/response from notification, and presence of "method"
// distinguishes a request from a response.
type Kind int

const (
	KindUnknown Kind = iota
	KindRequest
	KindResponse
	KindNotification
)

// envelope is used only to sniff which concrete shape a raw frame decodes
// into, without committing to one before we know which.
type envelope struct {
	Id     *string `json:"id"`
	Method *string `json:"method"`
}

// Sniff inspects a raw JSON frame and reports which of Request/Response/
// Notification it represents: a frame with `id` is a request (if it also
// has `method`) or a response (otherwise); a frame with no `id` is a
// notification.
func Sniff(raw []byte) Kind {
	var e envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return KindUnknown
	}
	switch {
	case e.Id != nil && e.Method != nil:
		return KindRequest
	case e.Id != nil:
		return KindResponse
	case e.Method != nil:
		return KindNotification
	default:
		return KindUnknown
	}
}

// NewNotification builds a Notification frame from a method name and a
// payload that will be marshalled as its params.
func NewNotification(method string, params interface{}) (*Notification, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return &Notification{Method: method, Params: raw}, nil
}

// NewResult builds a successful Response for the given request id.
func NewResult(id string, result interface{}) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &Response{Id: id, Result: raw}, nil
}

// NewError builds a failed Response for the given request id.
func NewError(id, code, message string, data interface{}) *Response {
	resp := &Response{Id: id, Error: &ErrorObject{Code: code, Message: message}}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			resp.Error.Data = raw
		}
	}
	return resp
}
