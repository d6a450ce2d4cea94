package transport

import "fmt"

// ErrorKind classifies transport failures
type ErrorKind int

const (
	KindUnknown      ErrorKind = iota
	KindConnection             // endpoint unreachable
	KindHTTP                   // non-2xx status
	KindUnauthorized           // 401
	KindNotFound               // 404
	KindProtocol               // body could not be decoded
	KindBackend                // backend reported an error in-band
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindHTTP:
		return "http"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindProtocol:
		return "protocol"
	case KindBackend:
		return "backend"
	default:
		return "unknown"
	}
}

// Error is returned by every transport
type Error struct {
	Kind    ErrorKind
	Status  int // HTTP status, 0 when not applicable
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// statusError describes a failed HTTP exchange. body is appended on its
// own line when non-empty.
func statusError(status int, reason, body string) *Error {
	kind := KindHTTP
	msg := fmt.Sprintf("HTTP %d %s from Nox endpoint", status, reason)
	switch status {
	case 401:
		kind = KindUnauthorized
		msg += ": unauthorized (set NOX_LLM_API_KEY or OPENAI_API_KEY?)"
	case 404:
		kind = KindNotFound
		msg += ": endpoint not found (URL path invalid?)"
	}
	if body != "" {
		msg += "\n" + body
	}
	return &Error{Kind: kind, Status: status, Message: msg}
}
