package audio

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by ReadChunk once the stream has been closed.
var ErrClosed = errors.New("audio stream closed")

// DecoderErrorKind separates failures to start the decoder from failures mid-stream.
type DecoderErrorKind int

const (
	// Startup covers a missing executable, a spawn failure and a source the
	// decoder rejected before producing any audio.
	Startup DecoderErrorKind = iota
	// Crash is an unexpected exit after audio started flowing.
	Crash
)

func (k DecoderErrorKind) String() string {
	switch k {
	case Startup:
		return "startup"
	case Crash:
		return "crash"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// DecoderError reports a decoder subprocess failure together with whatever it
// printed on stderr.
type DecoderError struct {
	Kind   DecoderErrorKind
	Err    error
	Stderr string
}

func (e *DecoderError) Error() string {
	if e == nil {
		return "decoder error"
	}
	msg := fmt.Sprintf("decoder %s", e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *DecoderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsDecoderError reports whether err wraps a DecoderError of the given kind.
func IsDecoderError(err error, kind DecoderErrorKind) bool {
	var de *DecoderError
	return errors.As(err, &de) && de.Kind == kind
}
