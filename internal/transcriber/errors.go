package transcriber

import (
	"errors"
	"fmt"
)

// ErrAlreadyStarted is returned by Start on a Link that already owns a session.
var ErrAlreadyStarted = errors.New("link already started")

// sentinels used inside a session's task group; Wait maps them to nil
var (
	errAudioExhausted = errors.New("audio exhausted")
	errRemoteClosed   = errors.New("remote closed connection")
)

// ConnectionErrorKind separates a refused handshake from a broken transport.
type ConnectionErrorKind int

const (
	// Rejected means the backend answered the handshake with an HTTP status
	// instead of upgrading (bad credentials, bad parameters, quota).
	Rejected ConnectionErrorKind = iota
	// Lost covers network failures during dial and mid-stream drops.
	Lost
)

func (k ConnectionErrorKind) String() string {
	switch k {
	case Rejected:
		return "rejected"
	case Lost:
		return "lost"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ConnectionError is a fatal transport failure of the streaming connection.
// Status is the HTTP status of a rejected handshake, or the websocket close
// code of a lost connection.
type ConnectionError struct {
	Kind   ConnectionErrorKind
	Status int
	Detail string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e == nil {
		return "connection error"
	}
	msg := "connection " + e.Kind.String()
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ConnectionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsConnectionError reports whether err wraps a ConnectionError of the given kind.
func IsConnectionError(err error, kind ConnectionErrorKind) bool {
	var ce *ConnectionError
	return errors.As(err, &ce) && ce.Kind == kind
}

// ProtocolError is an inbound frame that could not be decoded. A session
// discards such frames; it only becomes fatal once the configured limit of
// consecutive malformed frames is exceeded.
type ProtocolError struct {
	Err   error
	Frame string
}

func (e *ProtocolError) Error() string {
	if e == nil || e.Err == nil {
		return "malformed frame"
	}
	if e.Frame == "" {
		return "malformed frame: " + e.Err.Error()
	}
	return fmt.Sprintf("malformed frame %q: %v", e.Frame, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
