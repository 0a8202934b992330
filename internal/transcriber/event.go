package transcriber

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type EventKind int

const (
	PartialTranscript EventKind = iota
	FinalTranscript
	ErrorEvent
)

func (k EventKind) String() string {
	switch k {
	case PartialTranscript:
		return "partial"
	case FinalTranscript:
		return "final"
	case ErrorEvent:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Word is one recognized token. Words inside an Event are ordered by Start.
type Word struct {
	Text       string
	Start      float64
	End        float64
	Confidence float64
}

// Event is a decoded inbound frame: a partial or final transcript, or a
// server-reported error. A transcript frame that also reports an error keeps
// its transcript kind and carries the message in Err.
type Event struct {
	Kind         EventKind
	Transcript   string
	Words        []Word
	IsFinal      bool
	SpeechFinal  bool
	FromFinalize bool
	Start        float64
	Duration     float64
	Err          string
	Received     time.Time
}

// Deepgram websocket response (incoming)
type deepgramWSResponse struct {
	Type         string            `json:"type"`
	Channel      *deepgramChannel  `json:"channel,omitempty"`
	Metadata     *deepgramMetadata `json:"metadata,omitempty"`
	IsFinal      bool              `json:"is_final,omitempty"`
	SpeechFinal  bool              `json:"speech_final,omitempty"`
	FromFinalize bool              `json:"from_finalize,omitempty"`
	Start        float64           `json:"start,omitempty"`
	Duration     float64           `json:"duration,omitempty"`

	// Error frames carry either a top level "error" string or
	// type=Error with message/description.
	Error       json.RawMessage `json:"error,omitempty"`
	Message     string          `json:"message,omitempty"`
	Description string          `json:"description,omitempty"`
}

type deepgramChannel struct {
	Alternatives []deepgramAlternative `json:"alternatives"`
}

type deepgramAlternative struct {
	Transcript string         `json:"transcript"`
	Confidence float64        `json:"confidence"`
	Words      []deepgramWord `json:"words"`
}

type deepgramWord struct {
	Word       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

type deepgramMetadata struct {
	RequestID string `json:"request_id"`
	ModelInfo struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"model_info"`
}

// control frames (outgoing)
type controlFrame struct {
	Type string `json:"type"`
}

var (
	finalizeFrame  = controlFrame{Type: "Finalize"}
	keepAliveFrame = controlFrame{Type: "KeepAlive"}
)

var errNotTranscript = errors.New("frame carries no transcript")

// decodeFrame turns one text frame into an Event. Metadata and other
// informational frames return errNotTranscript along with the parsed
// response; malformed JSON returns a ProtocolError.
func decodeFrame(payload []byte) (Event, *deepgramWSResponse, error) {
	var resp deepgramWSResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return Event{}, nil, &ProtocolError{Err: err, Frame: truncate(string(payload), 120)}
	}

	msg := resp.errorMessage()
	if resp.Channel == nil {
		if msg != "" {
			return Event{Kind: ErrorEvent, Err: msg, Received: time.Now()}, &resp, nil
		}
		return Event{}, &resp, errNotTranscript
	}

	ev := Event{
		Kind:         PartialTranscript,
		IsFinal:      resp.IsFinal,
		SpeechFinal:  resp.SpeechFinal,
		FromFinalize: resp.FromFinalize,
		Start:        resp.Start,
		Duration:     resp.Duration,
		Err:          msg,
		Received:     time.Now(),
	}
	if resp.IsFinal {
		ev.Kind = FinalTranscript
	}
	if len(resp.Channel.Alternatives) > 0 {
		alt := resp.Channel.Alternatives[0]
		ev.Transcript = alt.Transcript
		ev.Words = make([]Word, 0, len(alt.Words))
		for _, w := range alt.Words {
			ev.Words = append(ev.Words, Word{Text: w.Word, Start: w.Start, End: w.End, Confidence: w.Confidence})
		}
	}
	return ev, &resp, nil
}

func (r *deepgramWSResponse) errorMessage() string {
	if len(r.Error) > 0 && string(r.Error) != "null" {
		var s string
		if err := json.Unmarshal(r.Error, &s); err == nil {
			if s != "" {
				return s
			}
		} else {
			return string(r.Error)
		}
	}
	if strings.EqualFold(r.Type, "Error") {
		msg := r.Message
		if r.Description != "" {
			if msg != "" {
				msg += ": "
			}
			msg += r.Description
		}
		if msg == "" {
			msg = "unknown server error"
		}
		return msg
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
