package pipeline

import (
	"errors"

	"github.com/AxelotlZoons/Word/internal/audio"
	"github.com/AxelotlZoons/Word/internal/transcriber"
)

// Reason is why a run ended in Failed.
type Reason string

const (
	NoReason              Reason = ""
	DecoderStartupFailure Reason = "decoder_startup_failure"
	DecoderCrash          Reason = "decoder_crash"
	ConnectionRejected    Reason = "connection_rejected"
	ConnectionLost        Reason = "connection_lost"
	ProtocolError         Reason = "protocol_error"
)

// Classify maps a terminal error onto a Reason. Errors that carry no
// recognizable cause are treated as a lost connection, since everything
// that is not the decoder runs over the connection.
func Classify(err error) Reason {
	var de *audio.DecoderError
	if errors.As(err, &de) {
		if de.Kind == audio.Startup {
			return DecoderStartupFailure
		}
		return DecoderCrash
	}

	var ce *transcriber.ConnectionError
	if errors.As(err, &ce) {
		if ce.Kind == transcriber.Rejected {
			return ConnectionRejected
		}
		return ConnectionLost
	}

	if transcriber.IsProtocolError(err) {
		return ProtocolError
	}
	if err == nil {
		return NoReason
	}
	return ConnectionLost
}

// RunError is the single summarized cause of a failed run.
type RunError struct {
	Reason Reason
	Err    error
}

func (e *RunError) Error() string {
	if e == nil {
		return "run failed"
	}
	if e.Err == nil {
		return string(e.Reason)
	}
	return string(e.Reason) + ": " + e.Err.Error()
}

func (e *RunError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ReasonOf returns the Reason carried by err, or NoReason.
func ReasonOf(err error) Reason {
	var re *RunError
	if errors.As(err, &re) {
		return re.Reason
	}
	return NoReason
}
