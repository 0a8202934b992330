package console

import (
	"bytes"
	"strings"
	"testing"

	"github.com/AxelotlZoons/Word/internal/pipeline"
	"github.com/AxelotlZoons/Word/internal/transcriber"
)

func partial(text string) transcriber.Event {
	return transcriber.Event{Kind: transcriber.PartialTranscript, Transcript: text}
}

func final(text string) transcriber.Event {
	return transcriber.Event{Kind: transcriber.FinalTranscript, IsFinal: true, Transcript: text}
}

func TestPrinterInterimThenFinal(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, nil)

	p.OnTranscript(partial("the fire"))
	if strings.Contains(buf.String(), "\n") {
		t.Errorf("interim result should not end the line: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "\r[Interim] the fire") {
		t.Errorf("output = %q, want interim line", buf.String())
	}

	p.OnTranscript(final("the fire spread"))
	out := buf.String()
	if !strings.HasSuffix(out, "[Final] the fire spread\n") {
		t.Errorf("output = %q, want final line terminated", out)
	}
}

func TestPrinterSkipsEmptyTranscripts(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, nil)

	p.OnTranscript(partial("   "))
	p.OnTranscript(final(""))
	if buf.Len() != 0 {
		t.Errorf("output = %q, want nothing", buf.String())
	}
}

func TestPrinterServerError(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, nil)

	p.OnTranscript(partial("hello"))
	p.OnTranscript(transcriber.Event{Kind: transcriber.ErrorEvent, Err: "rate limited"})

	out := buf.String()
	if !strings.Contains(out, "hello\n[Server Error] rate limited\n") {
		t.Errorf("output = %q, want interim line closed before the error", out)
	}
}

func TestPrinterEndsDanglingLineOnStop(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, nil)

	p.OnTranscript(partial("unfinished"))
	p.OnState(pipeline.Draining, pipeline.NoReason, nil)
	if strings.HasSuffix(buf.String(), "\n") {
		t.Error("draining is not terminal, line should stay open")
	}
	p.OnState(pipeline.Stopped, pipeline.NoReason, nil)
	if !strings.HasSuffix(buf.String(), "unfinished\n") {
		t.Errorf("output = %q, want the interim line terminated", buf.String())
	}
}

func TestPrinterHighlightsKeywords(t *testing.T) {
	var buf bytes.Buffer
	calls := 0
	p := New(&buf, func(w string) bool {
		calls++
		return w == "fires"
	})

	p.OnTranscript(final("two fires today"))
	if calls != 3 {
		t.Errorf("isKeyword called %d times, want once per token", calls)
	}
	if !strings.Contains(buf.String(), "fires") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestPrinterTranscriptWithServerError(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, nil)

	ev := final("the fire spread")
	ev.Err = "partial outage"
	p.OnTranscript(ev)

	out := buf.String()
	if !strings.Contains(out, "[Server Error] partial outage\n") {
		t.Errorf("output = %q, want the server error", out)
	}
	if !strings.HasSuffix(out, "[Final] the fire spread\n") {
		t.Errorf("output = %q, want the transcript printed after the error", out)
	}
}
