package transcriber

import (
	"errors"
	"testing"
)

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantKind  EventKind
		wantWords int
		wantErr   error
		protoErr  bool
	}{
		{
			name:      "partial",
			payload:   `{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"fire","words":[{"word":"fire","start":1.5,"end":1.8,"confidence":0.93}]}]}}`,
			wantKind:  PartialTranscript,
			wantWords: 1,
		},
		{
			name:      "final",
			payload:   `{"type":"Results","is_final":true,"speech_final":true,"channel":{"alternatives":[{"transcript":"a b","words":[{"word":"a","start":0,"confidence":1},{"word":"b","start":0.5,"confidence":1}]}]}}`,
			wantKind:  FinalTranscript,
			wantWords: 2,
		},
		{
			name:     "empty alternatives",
			payload:  `{"type":"Results","is_final":true,"channel":{"alternatives":[]}}`,
			wantKind: FinalTranscript,
		},
		{
			name:     "top level error string",
			payload:  `{"error":"rate limited"}`,
			wantKind: ErrorEvent,
		},
		{
			name:     "error message type",
			payload:  `{"type":"Error","message":"bad audio","description":"DATA-0000"}`,
			wantKind: ErrorEvent,
		},
		{
			name:    "metadata",
			payload: `{"type":"Metadata","metadata":{"request_id":"abc"}}`,
			wantErr: errNotTranscript,
		},
		{
			name:     "malformed",
			payload:  `{"type":`,
			protoErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, _, err := decodeFrame([]byte(tt.payload))
			if tt.protoErr {
				if !IsProtocolError(err) {
					t.Fatalf("decodeFrame() error = %v, want ProtocolError", err)
				}
				return
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("decodeFrame() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeFrame() error = %v", err)
			}
			if ev.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", ev.Kind, tt.wantKind)
			}
			if len(ev.Words) != tt.wantWords {
				t.Errorf("len(Words) = %d, want %d", len(ev.Words), tt.wantWords)
			}
		})
	}
}

func TestDecodeFrameFields(t *testing.T) {
	payload := `{"type":"Results","is_final":true,"from_finalize":true,"start":4.2,"duration":1.1,` +
		`"channel":{"alternatives":[{"transcript":"fires","words":[{"word":"fires","start":4.3,"end":4.6,"confidence":0.88}]}]}}`

	ev, _, err := decodeFrame([]byte(payload))
	if err != nil {
		t.Fatalf("decodeFrame() error = %v", err)
	}
	if !ev.IsFinal || !ev.FromFinalize {
		t.Errorf("flags = final:%v from_finalize:%v, want both", ev.IsFinal, ev.FromFinalize)
	}
	if ev.Transcript != "fires" {
		t.Errorf("Transcript = %q", ev.Transcript)
	}
	w := ev.Words[0]
	if w.Text != "fires" || w.Start != 4.3 || w.Confidence != 0.88 {
		t.Errorf("word = %+v", w)
	}
	if ev.Received.IsZero() {
		t.Error("Received should be set")
	}
}

func TestErrorEventMessage(t *testing.T) {
	ev, _, err := decodeFrame([]byte(`{"type":"Error","message":"bad audio","description":"DATA-0000"}`))
	if err != nil {
		t.Fatalf("decodeFrame() error = %v", err)
	}
	if ev.Err != "bad audio: DATA-0000" {
		t.Errorf("Err = %q", ev.Err)
	}
}

func TestTranscriptWithErrorKeepsWords(t *testing.T) {
	payload := `{"is_final":true,"error":"partial outage",` +
		`"channel":{"alternatives":[{"transcript":"fire","words":[{"word":"fire","start":1.0,"end":1.3,"confidence":0.9}]}]}}`

	ev, _, err := decodeFrame([]byte(payload))
	if err != nil {
		t.Fatalf("decodeFrame() error = %v", err)
	}
	if ev.Kind != FinalTranscript || !ev.IsFinal {
		t.Errorf("Kind = %s final=%v, want a final transcript", ev.Kind, ev.IsFinal)
	}
	if len(ev.Words) != 1 || ev.Words[0].Text != "fire" {
		t.Errorf("Words = %+v, want the transcript words kept", ev.Words)
	}
	if ev.Err != "partial outage" {
		t.Errorf("Err = %q, want the server message carried along", ev.Err)
	}
}
