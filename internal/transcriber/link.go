package transcriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultEndpoint = "wss://api.deepgram.com/v1/listen"

	closeWriteTimeout = time.Second
	maxRejectDetail   = 512
)

// Source is the audio side of a session. ReadChunk returns io.EOF once the
// audio ended cleanly; any other error ends the session with that error.
type Source interface {
	ReadChunk(p []byte) (int, error)
}

// Handler receives every decoded event, in arrival order, on the session's
// reader goroutine.
type Handler func(Event)

type Config struct {
	Endpoint string
	APIKey   string
	Model    string
	Language string

	SampleRate     int
	Channels       int
	InterimResults bool
	SmartFormat    bool
	Punctuate      bool
	Keywords       []string

	ChunkSize         int
	KeepAliveInterval time.Duration
	FinalizeGrace     time.Duration

	// MaxProtocolErrors ends the session after this many consecutive
	// malformed frames. Zero never gives up.
	MaxProtocolErrors int

	Dialer *websocket.Dialer
	Logger *log.Logger
}

func DefaultConfig() Config {
	return Config{
		Endpoint:          DefaultEndpoint,
		Model:             "nova-2",
		Language:          "en",
		SampleRate:        16000,
		Channels:          1,
		InterimResults:    true,
		ChunkSize:         4096,
		KeepAliveInterval: 5 * time.Second,
		FinalizeGrace:     3 * time.Second,
	}
}

// Link opens one streaming connection to Deepgram. A Link is single use.
type Link struct {
	config  Config
	logger  *log.Logger
	started atomic.Bool
}

func NewLink(config Config) *Link {
	logger := config.Logger
	if logger == nil {
		logger = log.Default().WithPrefix("deepgram")
	}
	return &Link{config: config, logger: logger}
}

// Stats are running totals for one session.
type Stats struct {
	ChunksSent     int64
	BytesSent      int64
	KeepAlives     int64
	EventsReceived int64
	ProtocolErrors int64
	ServerErrors   int64
}

type stats struct {
	chunksSent     atomic.Int64
	bytesSent      atomic.Int64
	keepAlives     atomic.Int64
	eventsReceived atomic.Int64
	protocolErrors atomic.Int64
	serverErrors   atomic.Int64
}

// Session is a live connection running its outbound pump, inbound reader
// and keepalive pump. The first of them to end cancels the other two.
type Session struct {
	config  Config
	logger  *log.Logger
	conn    *websocket.Conn
	handler Handler

	writeMu sync.Mutex
	stats   stats

	cancel   context.CancelFunc
	endAudio chan struct{}
	endOnce  sync.Once

	draining  chan struct{}
	drainOnce sync.Once
	drainWhy  atomic.Value // string

	finalized    chan struct{}
	finalizeOnce sync.Once

	closeOnce sync.Once

	finished chan struct{}
	err      error // written before finished is closed
}

// Start dials the backend and starts streaming src. Handshake failures are
// returned here as a *ConnectionError; later failures come from Wait.
func (l *Link) Start(ctx context.Context, src Source, handler Handler) (*Session, error) {
	if !l.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}
	if src == nil {
		return nil, errors.New("nil audio source")
	}
	if handler == nil {
		handler = func(Event) {}
	}
	if err := l.validateConfig(); err != nil {
		return nil, err
	}

	conn, err := l.dial(ctx)
	if err != nil {
		return nil, err
	}
	l.logger.Info("connected", "model", l.config.Model, "language", l.config.Language)

	runCtx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(runCtx)

	s := &Session{
		config:    l.config,
		logger:    l.logger,
		conn:      conn,
		handler:   handler,
		cancel:    cancel,
		endAudio:  make(chan struct{}),
		draining:  make(chan struct{}),
		finalized: make(chan struct{}),
		finished:  make(chan struct{}),
	}

	// releasing the connection is what unblocks the inbound reader
	stopClose := context.AfterFunc(gctx, s.closeConn)

	chunks := s.feed(gctx, src)
	group.Go(s.activity(gctx, "outbound", func() error { return s.pumpAudio(gctx, chunks) }))
	group.Go(s.activity(gctx, "inbound", func() error { return s.readLoop(gctx) }))
	group.Go(s.activity(gctx, "keepalive", func() error { return s.keepAlive(gctx) }))

	go func() {
		err := group.Wait()
		cancel()
		stopClose()
		s.closeConn()

		if errors.Is(err, errAudioExhausted) || errors.Is(err, errRemoteClosed) {
			err = nil
		}
		s.err = err
		if err == nil {
			s.beginDrain("cancelled")
		}
		close(s.finished)

		st := s.Stats()
		s.logger.Info("session ended",
			"chunks", st.ChunksSent, "bytes", st.BytesSent,
			"events", st.EventsReceived, "keepalives", st.KeepAlives,
			"protocol_errors", st.ProtocolErrors, "err", err)
	}()

	return s, nil
}

func (l *Link) validateConfig() error {
	if strings.TrimSpace(l.config.APIKey) == "" {
		return &ConnectionError{Kind: Rejected, Detail: "missing API key"}
	}
	if l.config.ChunkSize <= 0 {
		return fmt.Errorf("invalid ChunkSize: %d", l.config.ChunkSize)
	}
	if l.config.KeepAliveInterval <= 0 {
		return fmt.Errorf("invalid KeepAliveInterval: %v", l.config.KeepAliveInterval)
	}
	if l.config.FinalizeGrace < 0 {
		return fmt.Errorf("invalid FinalizeGrace: %v", l.config.FinalizeGrace)
	}
	return nil
}

func (l *Link) dial(ctx context.Context) (*websocket.Conn, error) {
	wsURL, err := l.buildURL()
	if err != nil {
		return nil, fmt.Errorf("build websocket url: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+l.config.APIKey)

	dialer := l.config.Dialer
	if dialer == nil {
		d := *websocket.DefaultDialer
		d.HandshakeTimeout = 10 * time.Second
		dialer = &d
	}

	l.logger.Debug("dialing", "url", wsURL)
	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			detail := readDetail(resp)
			l.logger.Error("handshake rejected", "status", resp.StatusCode, "detail", detail)
			return nil, &ConnectionError{Kind: Rejected, Status: resp.StatusCode, Detail: detail, Err: err}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ConnectionError{Kind: Lost, Err: fmt.Errorf("websocket dial: %w", err)}
	}
	return conn, nil
}

func readDetail(resp *http.Response) string {
	if resp.Body == nil {
		return resp.Status
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxRejectDetail))
	if detail := strings.TrimSpace(string(body)); detail != "" {
		return detail
	}
	return resp.Status
}

// buildURL constructs the WebSocket URL with query parameters
func (l *Link) buildURL() (string, error) {
	endpoint := l.config.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("endpoint must be ws:// or wss://, got %q", endpoint)
	}

	sampleRate := l.config.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	channels := l.config.Channels
	if channels <= 0 {
		channels = 1
	}

	q := u.Query()
	q.Set("model", l.config.Model)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(sampleRate))
	q.Set("channels", strconv.Itoa(channels))
	q.Set("interim_results", strconv.FormatBool(l.config.InterimResults))
	q.Set("smart_format", strconv.FormatBool(l.config.SmartFormat))
	q.Set("punctuate", strconv.FormatBool(l.config.Punctuate))
	if l.config.Language != "" {
		q.Set("language", l.config.Language)
	}
	for _, kw := range l.config.Keywords {
		q.Add("keywords", kw)
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Done is closed as soon as the session starts winding down gracefully:
// the audio ran out, a stop was requested, the remote closed or the context
// was cancelled. It stays open for a session that fails while streaming.
func (s *Session) Done() <-chan struct{} { return s.draining }

// DrainCause names what started the wind down, once Done is closed.
func (s *Session) DrainCause() string {
	if v, ok := s.drainWhy.Load().(string); ok {
		return v
	}
	return ""
}

// Finished is closed once all activities have returned and the connection
// is released.
func (s *Session) Finished() <-chan struct{} { return s.finished }

// Wait blocks until the session has finished. A session that ended because
// the audio was exhausted or the remote closed normally returns nil.
func (s *Session) Wait() error {
	<-s.finished
	return s.err
}

// EndAudio stops forwarding audio and finalizes, as if the source had
// reached end of stream.
func (s *Session) EndAudio() {
	s.endOnce.Do(func() { close(s.endAudio) })
}

// Cancel stops all activities and releases the connection without waiting
// for them to return.
func (s *Session) Cancel() { s.cancel() }

// Close cancels all activities and waits for them to return.
func (s *Session) Close() error {
	s.cancel()
	<-s.finished
	return nil
}

func (s *Session) Stats() Stats {
	return Stats{
		ChunksSent:     s.stats.chunksSent.Load(),
		BytesSent:      s.stats.bytesSent.Load(),
		KeepAlives:     s.stats.keepAlives.Load(),
		EventsReceived: s.stats.eventsReceived.Load(),
		ProtocolErrors: s.stats.protocolErrors.Load(),
		ServerErrors:   s.stats.serverErrors.Load(),
	}
}

// activity wraps one member of the task group. Only a graceful end starts
// the drain; a failure cancels the group and the session finishes without
// ever draining.
func (s *Session) activity(ctx context.Context, name string, fn func() error) func() error {
	return func() error {
		err := fn()
		if graceful(ctx, err) {
			s.beginDrain(name)
		}
		s.logger.Debug("activity ended", "activity", name, "err", err)
		return err
	}
}

func graceful(ctx context.Context, err error) bool {
	if err == nil {
		// nil is also what a cancelled sibling returns
		return ctx.Err() == nil
	}
	return errors.Is(err, errAudioExhausted) || errors.Is(err, errRemoteClosed)
}

func (s *Session) beginDrain(cause string) {
	s.drainOnce.Do(func() {
		s.drainWhy.Store(cause)
		close(s.draining)
	})
}

type chunk struct {
	data []byte
	err  error
}

// feed reads the source on its own goroutine. ReadChunk cannot be
// cancelled, so this goroutine is not part of the task group; it ends when
// the source reports an error, which the owner forces by closing it.
func (s *Session) feed(ctx context.Context, src Source) <-chan chunk {
	out := make(chan chunk)
	size := s.config.ChunkSize
	go func() {
		for {
			buf := make([]byte, size)
			n, err := src.ReadChunk(buf)
			if n > 0 {
				select {
				case out <- chunk{data: buf[:n]}:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				select {
				case out <- chunk{err: err}:
				case <-ctx.Done():
				}
				return
			}
		}
	}()
	return out
}

func (s *Session) pumpAudio(ctx context.Context, chunks <-chan chunk) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.endAudio:
			s.logger.Info("stop requested, finalizing")
			return s.finalize(ctx)
		case c := <-chunks:
			if c.err != nil {
				if errors.Is(c.err, io.EOF) {
					s.logger.Info("audio ended, finalizing")
					return s.finalize(ctx)
				}
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("read audio: %w", c.err)
			}
			if err := s.write(websocket.BinaryMessage, c.data); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return &ConnectionError{Kind: Lost, Err: fmt.Errorf("send audio: %w", err)}
			}
			s.stats.chunksSent.Add(1)
			s.stats.bytesSent.Add(int64(len(c.data)))
		}
	}
}

// finalize asks the backend to flush, then gives it a bounded window to
// deliver trailing results before the session is torn down.
func (s *Session) finalize(ctx context.Context) error {
	s.beginDrain("outbound")

	if err := s.writeJSON(finalizeFrame); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return &ConnectionError{Kind: Lost, Err: fmt.Errorf("send finalize: %w", err)}
	}
	s.logger.Debug("sent Finalize, waiting for trailing results", "grace", s.config.FinalizeGrace)

	grace := time.NewTimer(s.config.FinalizeGrace)
	defer grace.Stop()

	select {
	case <-s.finalized:
		s.logger.Debug("finalize acknowledged")
	case <-grace.C:
		s.logger.Debug("finalize grace elapsed")
	case <-ctx.Done():
		return nil
	}
	return errAudioExhausted
}

func (s *Session) readLoop(ctx context.Context) error {
	consecutive := 0
	for {
		msgType, payload, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Info("remote closed connection")
				return errRemoteClosed
			}
			ce := &ConnectionError{Kind: Lost, Err: fmt.Errorf("websocket read: %w", err)}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				ce.Status = closeErr.Code
				ce.Detail = closeErr.Text
			}
			return ce
		}

		if msgType != websocket.TextMessage {
			err = &ProtocolError{Err: fmt.Errorf("unexpected message type %d", msgType)}
		}

		var ev Event
		var resp *deepgramWSResponse
		if err == nil {
			ev, resp, err = decodeFrame(payload)
		}

		var perr *ProtocolError
		switch {
		case errors.As(err, &perr):
			s.stats.protocolErrors.Add(1)
			consecutive++
			s.logger.Warn("discarding malformed frame", "err", perr)
			if s.config.MaxProtocolErrors > 0 && consecutive >= s.config.MaxProtocolErrors {
				return perr
			}
			continue
		case errors.Is(err, errNotTranscript):
			consecutive = 0
			s.logInfoFrame(resp)
			continue
		}
		consecutive = 0

		s.stats.eventsReceived.Add(1)
		if ev.Err != "" {
			s.stats.serverErrors.Add(1)
			s.logger.Warn("server error", "message", ev.Err)
		}

		s.handler(ev)

		if ev.FromFinalize {
			s.finalizeOnce.Do(func() { close(s.finalized) })
		}
	}
}

func (s *Session) logInfoFrame(resp *deepgramWSResponse) {
	if resp == nil {
		return
	}
	switch resp.Type {
	case "Metadata":
		if resp.Metadata != nil {
			s.logger.Info("session started", "request_id", resp.Metadata.RequestID, "model", resp.Metadata.ModelInfo.Name)
		}
	case "UtteranceEnd", "SpeechStarted":
		s.logger.Debug(resp.Type)
	default:
		s.logger.Debug("ignoring frame", "type", resp.Type)
	}
}

func (s *Session) keepAlive(ctx context.Context) error {
	ticker := time.NewTicker(s.config.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.writeJSON(keepAliveFrame); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return &ConnectionError{Kind: Lost, Err: fmt.Errorf("send keepalive: %w", err)}
			}
			s.stats.keepAlives.Add(1)
		}
	}
}

func (s *Session) write(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(messageType, data)
}

func (s *Session) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.write(websocket.TextMessage, data)
}

// closeConn sends a best-effort close frame and releases the socket.
func (s *Session) closeConn() {
	s.closeOnce.Do(func() {
		deadline := time.Now().Add(closeWriteTimeout)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = s.conn.Close()
	})
}
