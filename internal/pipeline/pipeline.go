package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/AxelotlZoons/Word/internal/audio"
	"github.com/AxelotlZoons/Word/internal/spotter"
	"github.com/AxelotlZoons/Word/internal/transcriber"
)

// abandonTimeout bounds the wait for a cancelled session whose reader is
// held up by an observer.
const abandonTimeout = time.Second

type State string

const (
	Starting  State = "starting"
	Streaming State = "streaming"
	Draining  State = "draining"
	Stopped   State = "stopped"
	Failed    State = "failed"
)

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool { return s == Stopped || s == Failed }

// Resolver turns a page URL into a media URL. On failure it returns the URL
// to fall back to together with the error.
type Resolver interface {
	Resolve(ctx context.Context, source string) (string, error)
}

// Observer is told about lifecycle changes, every transcript event and
// every batch of keyword matches. OnTranscript and OnMatches run on the
// connection's reader goroutine and should return quickly; a draining run
// abandons a reader that an observer holds up past the drain deadline.
type Observer interface {
	OnState(state State, reason Reason, err error)
	OnTranscript(ev transcriber.Event)
	OnMatches(matches []spotter.Match, counts spotter.Snapshot)
}

// NopObserver can be embedded to implement only part of Observer.
type NopObserver struct{}

func (NopObserver) OnState(State, Reason, error)                {}
func (NopObserver) OnTranscript(transcriber.Event)              {}
func (NopObserver) OnMatches([]spotter.Match, spotter.Snapshot) {}

type Options struct {
	Source        string
	Resolver      Resolver
	Decoder       *audio.Decoder
	Transcription transcriber.Config
	Spotter       *spotter.Spotter
	DrainTimeout  time.Duration
	Observers     []Observer
	Logger        *log.Logger
}

// Report summarizes one finished run.
type Report struct {
	RunID   string
	Source  string
	State   State
	Reason  Reason
	Err     error
	Started time.Time
	Ended   time.Time
	Stats   transcriber.Stats
	Counts  spotter.Snapshot
}

func (r Report) Duration() time.Duration { return r.Ended.Sub(r.Started) }

// Status is a point in time view of a run.
type Status struct {
	RunID   string
	State   State
	Reason  Reason
	Started time.Time
	Stats   transcriber.Stats
}

// Supervisor runs one pipeline: decoder, streaming connection and spotter.
// A Supervisor is single use.
type Supervisor struct {
	opts   Options
	logger *log.Logger
	runID  string

	mu      sync.RWMutex
	state   State
	reason  Reason
	started time.Time
	session *transcriber.Session

	ran      atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

func New(opts Options) (*Supervisor, error) {
	if opts.Decoder == nil {
		return nil, errors.New("pipeline: decoder is required")
	}
	if opts.Spotter == nil {
		return nil, errors.New("pipeline: spotter is required")
	}
	if opts.Source == "" {
		return nil, errors.New("pipeline: source url is required")
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 5 * time.Second
	}

	runID := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = log.Default().WithPrefix("pipeline")
	}
	logger = logger.With("run", runID[:8])

	return &Supervisor{
		opts:   opts,
		logger: logger,
		runID:  runID,
		state:  Starting,
		stopCh: make(chan struct{}),
	}, nil
}

func (s *Supervisor) RunID() string { return s.runID }

func (s *Supervisor) State() (State, Reason) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.reason
}

func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{RunID: s.runID, State: s.state, Reason: s.reason, Started: s.started}
	if s.session != nil {
		st.Stats = s.session.Stats()
	}
	return st
}

// Stop asks for a graceful end: audio stops, the backend is asked to
// flush, and the run drains to Stopped.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("stop requested")
		close(s.stopCh)
	})
}

// Run blocks until the pipeline reaches Stopped or Failed. The decoder is
// terminated on every return path. A failed run returns a *RunError.
func (s *Supervisor) Run(ctx context.Context) (Report, error) {
	if !s.ran.CompareAndSwap(false, true) {
		return Report{}, errors.New("pipeline: supervisor already ran")
	}

	report := Report{RunID: s.runID, Started: time.Now()}
	s.mu.Lock()
	s.started = report.Started
	s.mu.Unlock()
	s.transition(Starting, NoReason, nil)

	source := s.resolve(ctx)
	report.Source = source

	stream, err := s.opts.Decoder.Open(ctx, source)
	if err != nil {
		return s.finish(report, err)
	}
	defer stream.Close()

	link := transcriber.NewLink(s.opts.Transcription)
	session, err := link.Start(ctx, stream, s.handle)
	if err != nil {
		return s.finish(report, err)
	}

	s.mu.Lock()
	s.session = session
	s.mu.Unlock()
	s.transition(Streaming, NoReason, nil)

	select {
	case <-session.Done():
	case <-session.Finished():
	case <-s.stopCh:
		session.EndAudio()
		select {
		case <-session.Done():
		case <-session.Finished():
		}
	}

	// A session that failed while streaming finishes without draining and
	// goes straight to Failed.
	var runErr error
	unwound := true
	if isClosed(session.Done()) {
		s.transition(Draining, NoReason, nil)
		s.logger.Info("draining", "cause", session.DrainCause())
		unwound = s.drain(session)
	}
	if unwound {
		runErr = session.Wait()
	}

	if err := stream.Close(); err != nil {
		s.logger.Debug("closing decoder", "err", err)
	}
	report.Stats = session.Stats()
	return s.finish(report, runErr)
}

// drain waits up to DrainTimeout for the session to finish, then cancels it
// and waits at most abandonTimeout more. It returns false when the session
// is still running and has been abandoned.
func (s *Supervisor) drain(session *transcriber.Session) bool {
	timer := time.NewTimer(s.opts.DrainTimeout)
	defer timer.Stop()

	select {
	case <-session.Finished():
		return true
	case <-timer.C:
	}
	s.logger.Warn("drain timed out, closing connection", "timeout", s.opts.DrainTimeout)
	session.Cancel()

	timer.Reset(abandonTimeout)
	select {
	case <-session.Finished():
		return true
	case <-timer.C:
		s.logger.Error("session did not unwind, abandoning it", "timeout", abandonTimeout)
		return false
	}
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func (s *Supervisor) resolve(ctx context.Context) string {
	if s.opts.Resolver == nil {
		return s.opts.Source
	}
	resolved, err := s.opts.Resolver.Resolve(ctx, s.opts.Source)
	if err != nil {
		s.logger.Warn("url resolution failed, using original url", "err", err)
		return s.opts.Source
	}
	if resolved == "" {
		return s.opts.Source
	}
	return resolved
}

// handle runs on the connection's reader goroutine, one event at a time in
// arrival order.
func (s *Supervisor) handle(ev transcriber.Event) {
	for _, o := range s.opts.Observers {
		o.OnTranscript(ev)
	}

	matches := s.opts.Spotter.Spot(ev)
	if len(matches) == 0 {
		return
	}
	counts := s.opts.Spotter.Snapshot()
	for _, m := range matches {
		s.logger.Info("keyword", "root", m.Root, "word", m.Word, "start", m.Start, "confidence", m.Confidence)
	}
	for _, o := range s.opts.Observers {
		o.OnMatches(matches, counts)
	}
}

func (s *Supervisor) finish(report Report, err error) (Report, error) {
	report.Ended = time.Now()
	report.Counts = s.opts.Spotter.Snapshot()

	if err == nil || errors.Is(err, context.Canceled) {
		report.State = Stopped
		s.transition(Stopped, NoReason, nil)
		s.logger.Info("stopped", "duration", report.Duration().Round(time.Millisecond), "counts", report.Counts.String())
		return report, nil
	}

	reason := Classify(err)
	report.State = Failed
	report.Reason = reason
	report.Err = &RunError{Reason: reason, Err: err}
	s.transition(Failed, reason, err)
	s.logger.Error("failed", "reason", reason, "err", err)
	return report, report.Err
}

func (s *Supervisor) transition(state State, reason Reason, err error) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	s.reason = reason
	s.mu.Unlock()

	if prev != state {
		s.logger.Debug("state", "from", prev, "to", state)
	}
	for _, o := range s.opts.Observers {
		o.OnState(state, reason, err)
	}
}

// String renders a one line summary for logs and the CLI.
func (r Report) String() string {
	if r.State == Failed {
		return fmt.Sprintf("run %s failed (%s) after %s: %v", r.RunID, r.Reason, r.Duration().Round(time.Millisecond), r.Err)
	}
	return fmt.Sprintf("run %s stopped after %s, %d chunks sent, %d events", r.RunID,
		r.Duration().Round(time.Millisecond), r.Stats.ChunksSent, r.Stats.EventsReceived)
}
