// Package transport performs the network calls issued by provider adapters.
//
// Two implementations satisfy the Transport contract: Direct issues the HTTP
// call from the calling process, Delegated hands it to a privileged Host and
// receives incremental chunks through a per-request event channel. The rest of
// the pipeline only sees the Transport interface.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/upb/llm-chat-gateway/services/secrets"
)

// MaxErrorMessageLength bounds the message carried by an Error.
const MaxErrorMessageLength = 4096

// Request describes a single outbound call.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte

	// Stream asks the transport to deliver body chunks through the ChunkFunc.
	Stream bool
}

// Response is the settled result of a call.
type Response struct {
	Status  int
	OK      bool
	Headers http.Header
	Data    []byte
}

// ChunkFunc receives raw body text as it arrives. Chunk boundaries carry no
// meaning; consumers must buffer partial lines themselves.
type ChunkFunc func(chunk string)

// Transport executes requests. Implementations check ctx before dispatching
// and return *Error for every failure, including non-2xx statuses.
type Transport interface {
	Do(ctx context.Context, req *Request, onChunk ChunkFunc) (*Response, error)
}

// Error is a transport failure. StatusCode is 0 when no HTTP response was
// received (cancellation, DNS, TLS, connection errors).
type Error struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.StatusCode != 0 {
		b.WriteString(fmt.Sprintf("http %d", e.StatusCode))
		if t := http.StatusText(e.StatusCode); t != "" {
			b.WriteString(" ")
			b.WriteString(t)
		}
	} else {
		b.WriteString("request failed")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil && e.StatusCode == 0 {
		b.WriteString(" (")
		b.WriteString(e.Cause.Error())
		b.WriteString(")")
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// IsCancelled reports whether the call settled because its context ended.
func (e *Error) IsCancelled() bool {
	return errors.Is(e.Cause, context.Canceled) || errors.Is(e.Cause, context.DeadlineExceeded)
}

// AsError extracts *Error.
func AsError(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// IsTransportError reports whether err carries a transport Error.
func IsTransportError(err error) bool {
	_, ok := AsError(err)
	return ok
}

// IsCancelled reports whether err is a cancellation-flavored transport error.
func IsCancelled(err error) bool {
	te, ok := AsError(err)
	return ok && te.IsCancelled()
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	if te, ok := AsError(err); ok {
		return te.StatusCode
	}
	return 0
}

// NewStatusError builds the Error for a non-2xx response. The message is the
// vendor's error envelope message when present, otherwise the body text.
func NewStatusError(status int, body []byte) *Error {
	msg := errorEnvelopeMessage(body)
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{
		StatusCode: status,
		Message:    truncate(secrets.MaskAllSecrets(msg), MaxErrorMessageLength),
	}
}

// NewRequestError wraps a failure that happened before a response arrived.
func NewRequestError(cause error) *Error {
	return &Error{
		Message: truncate(secrets.MaskAllSecrets(cause.Error()), MaxErrorMessageLength),
		Cause:   cause,
	}
}

// Cancelled builds the error returned when ctx ends before or during a call.
func Cancelled(cause error) *Error {
	if cause == nil {
		cause = context.Canceled
	}
	return &Error{Message: "request cancelled", Cause: cause}
}

// settle turns a finished response into the contract result.
func settle(resp *Response) (*Response, error) {
	if !resp.OK {
		return nil, NewStatusError(resp.Status, resp.Data)
	}
	return resp, nil
}

func isOK(status int) bool {
	return status >= 200 && status < 300
}

// errorEnvelopeMessage understands both {"error":{"message":..}} (OpenAI,
// Anthropic) and {"error":"..."} / {"message":".."} shapes.
func errorEnvelopeMessage(body []byte) string {
	var env struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	if len(env.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(env.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
		var flat string
		if err := json.Unmarshal(env.Error, &flat); err == nil && flat != "" {
			return flat
		}
	}
	return env.Message
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
