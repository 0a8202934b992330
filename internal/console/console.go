package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/AxelotlZoons/Word/internal/pipeline"
	"github.com/AxelotlZoons/Word/internal/transcriber"
	"github.com/AxelotlZoons/Word/internal/tui"
)

// Printer echoes transcripts to a terminal. Interim results overwrite the
// current line; a final result ends it.
type Printer struct {
	pipeline.NopObserver

	mu      sync.Mutex
	w       io.Writer
	out     *termenv.Output
	pending bool

	isKeyword func(word string) bool

	interim lipgloss.Style
	final   lipgloss.Style
	keyword lipgloss.Style
	server  lipgloss.Style
}

// New returns a Printer writing to w. isKeyword decides which transcript
// tokens are highlighted; nil highlights nothing.
func New(w io.Writer, isKeyword func(word string) bool) *Printer {
	if isKeyword == nil {
		isKeyword = func(string) bool { return false }
	}
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:         w,
		out:       termenv.NewOutput(w),
		isKeyword: isKeyword,
		interim:   r.NewStyle().Inherit(tui.StyleInterim),
		final:     r.NewStyle().Inherit(tui.StyleFinal),
		keyword:   r.NewStyle().Inherit(tui.StyleKeyword),
		server:    r.NewStyle().Inherit(tui.StyleError),
	}
}

func (p *Printer) OnTranscript(ev transcriber.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ev.Err != "" {
		p.endLine()
		fmt.Fprintf(p.w, "%s %s\n", p.server.Render("[Server Error]"), ev.Err)
	}
	if ev.Kind == transcriber.ErrorEvent {
		return
	}

	text := strings.TrimSpace(ev.Transcript)
	if text == "" {
		return
	}

	p.out.ClearLine()
	if ev.IsFinal {
		fmt.Fprintf(p.w, "\r%s %s\n", p.final.Render("[Final]"), p.highlight(text))
		p.pending = false
		return
	}
	fmt.Fprintf(p.w, "\r%s %s", p.interim.Render("[Interim]"), p.highlight(text))
	p.pending = true
}

func (p *Printer) OnState(state pipeline.State, reason pipeline.Reason, err error) {
	if !state.Terminal() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endLine()
}

// endLine terminates a dangling interim line.
func (p *Printer) endLine() {
	if p.pending {
		fmt.Fprintln(p.w)
		p.pending = false
	}
}

func (p *Printer) highlight(text string) string {
	tokens := strings.Fields(text)
	for i, tok := range tokens {
		if p.isKeyword(tok) {
			tokens[i] = p.keyword.Render(tok)
		}
	}
	return strings.Join(tokens, " ")
}
