package transcriber

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AxelotlZoons/Word/internal/testutil"
	"github.com/gorilla/websocket"
)

// memSource hands out fixed chunks, then returns end.
type memSource struct {
	mu     sync.Mutex
	chunks [][]byte
	end    error
}

func (m *memSource) ReadChunk(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.chunks) == 0 {
		return 0, m.end
	}
	n := copy(p, m.chunks[0])
	m.chunks = m.chunks[1:]
	return n, nil
}

func newMemSource(n int, end error) *memSource {
	src := &memSource{end: end}
	for i := 0; i < n; i++ {
		src.chunks = append(src.chunks, make([]byte, 320))
	}
	return src
}

// liveSource blocks until closed, like a decoder on a live stream.
type liveSource struct {
	closed chan struct{}
	once   sync.Once
}

func newLiveSource() *liveSource { return &liveSource{closed: make(chan struct{})} }

func (l *liveSource) ReadChunk(p []byte) (int, error) {
	<-l.closed
	return 0, errors.New("source closed")
}

func (l *liveSource) Close() { l.once.Do(func() { close(l.closed) }) }

// eventLog is a goroutine safe Handler sink.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) handle(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) all() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

func testLinkConfig(endpoint string) Config {
	config := DefaultConfig()
	config.Endpoint = endpoint
	config.APIKey = testutil.TestAPIKey
	config.ChunkSize = 320
	config.KeepAliveInterval = time.Second
	config.FinalizeGrace = time.Second
	return config
}

func waitSession(t *testing.T, s *Session) error {
	t.Helper()
	select {
	case <-s.Finished():
		return s.Wait()
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
		return nil
	}
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		want    []string
		notWant []string
	}{
		{
			name: "defaults",
			want: []string{
				"model=nova-2", "language=en", "encoding=linear16", "sample_rate=16000",
				"channels=1", "interim_results=true", "smart_format=false", "punctuate=false",
			},
			notWant: []string{"keywords="},
		},
		{
			name: "keyword boosting",
			mutate: func(c *Config) {
				c.Keywords = []string{"fire", "china"}
			},
			want: []string{"keywords=fire", "keywords=china"},
		},
		{
			name: "no language",
			mutate: func(c *Config) {
				c.Language = ""
			},
			notWant: []string{"language="},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testLinkConfig(DefaultEndpoint)
			if tt.mutate != nil {
				tt.mutate(&config)
			}
			got, err := NewLink(config).buildURL()
			if err != nil {
				t.Fatalf("buildURL() error = %v", err)
			}
			if !strings.HasPrefix(got, DefaultEndpoint+"?") {
				t.Errorf("buildURL() = %q, want endpoint prefix", got)
			}
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("buildURL() = %q, want to contain %q", got, want)
				}
			}
			for _, notWant := range tt.notWant {
				if strings.Contains(got, notWant) {
					t.Errorf("buildURL() = %q, should not contain %q", got, notWant)
				}
			}
		})
	}
}

func TestBuildURLRejectsHTTPEndpoint(t *testing.T) {
	_, err := NewLink(testLinkConfig("https://api.deepgram.com/v1/listen")).buildURL()
	if err == nil {
		t.Fatal("buildURL() should reject a non websocket endpoint")
	}
}

func TestStartRejectedCredentials(t *testing.T) {
	server := testutil.NewDeepgramServer(t, nil)
	config := testLinkConfig(server.WSURL())
	config.APIKey = "wrong-key"

	_, err := NewLink(config).Start(context.Background(), newMemSource(1, io.EOF), nil)
	if !IsConnectionError(err, Rejected) {
		t.Fatalf("Start() error = %v, want rejected ConnectionError", err)
	}
	var ce *ConnectionError
	errors.As(err, &ce)
	if ce.Status != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", ce.Status)
	}
	if !strings.Contains(ce.Detail, "INVALID_AUTH") {
		t.Errorf("Detail = %q, want the rejection body", ce.Detail)
	}
	if server.Connections() != 0 {
		t.Errorf("Connections() = %d, want 0", server.Connections())
	}
}

func TestStartMissingAPIKey(t *testing.T) {
	config := testLinkConfig(DefaultEndpoint)
	config.APIKey = " "

	_, err := NewLink(config).Start(context.Background(), newMemSource(1, io.EOF), nil)
	if !IsConnectionError(err, Rejected) {
		t.Fatalf("Start() error = %v, want rejected ConnectionError", err)
	}
}

func TestStartUnreachable(t *testing.T) {
	server := testutil.NewDeepgramServer(t, nil)
	endpoint := server.WSURL()
	server.Close()

	_, err := NewLink(testLinkConfig(endpoint)).Start(context.Background(), newMemSource(1, io.EOF), nil)
	if !IsConnectionError(err, Lost) {
		t.Fatalf("Start() error = %v, want lost ConnectionError", err)
	}
}

func TestStartTwice(t *testing.T) {
	server := testutil.NewDeepgramServer(t, testutil.Transcribe(testutil.FinalizeAck()))
	link := NewLink(testLinkConfig(server.WSURL()))

	session, err := link.Start(context.Background(), newMemSource(1, io.EOF), nil)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer session.Close()

	if _, err := link.Start(context.Background(), newMemSource(1, io.EOF), nil); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestSessionStreamsAudioThenFinalizes(t *testing.T) {
	server := testutil.NewDeepgramServer(t, testutil.Transcribe(
		testutil.FinalizeAck(testutil.Word{Text: "china", Start: 3.1, Confidence: 0.97}),
		testutil.MetadataFrame("req-1"),
		testutil.ResultsFrame(false, testutil.Word{Text: "fire", Start: 1.0, Confidence: 0.9}),
		testutil.ResultsFrame(true, testutil.Word{Text: "fire", Start: 1.0, Confidence: 0.92}),
	))

	var log eventLog
	session, err := NewLink(testLinkConfig(server.WSURL())).Start(context.Background(), newMemSource(5, io.EOF), log.handle)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := waitSession(t, session); err != nil {
		t.Fatalf("Wait() error = %v, want nil on exhausted audio", err)
	}

	events := log.all()
	if len(events) != 3 {
		t.Fatalf("received %d events, want 3: %+v", len(events), events)
	}
	if events[0].Kind != PartialTranscript || events[1].Kind != FinalTranscript {
		t.Errorf("event kinds = %v, %v; want partial then final", events[0].Kind, events[1].Kind)
	}
	if !events[2].FromFinalize || events[2].Words[0].Text != "china" {
		t.Errorf("last event = %+v, want the finalize ack", events[2])
	}

	if got := server.AudioBytes(); got != 5*320 {
		t.Errorf("server received %d audio bytes, want %d", got, 5*320)
	}
	if got := server.CountControl("Finalize"); got != 1 {
		t.Errorf("Finalize frames = %d, want 1", got)
	}

	stats := session.Stats()
	if stats.ChunksSent != 5 || stats.BytesSent != 5*320 {
		t.Errorf("stats = %+v, want 5 chunks / 1600 bytes", stats)
	}
	if stats.EventsReceived != 3 {
		t.Errorf("EventsReceived = %d, want 3", stats.EventsReceived)
	}
	if session.DrainCause() != "outbound" {
		t.Errorf("DrainCause() = %q, want outbound", session.DrainCause())
	}
}

func TestSessionFinalizeGraceWithoutAck(t *testing.T) {
	server := testutil.NewDeepgramServer(t, testutil.Transcribe(""))
	config := testLinkConfig(server.WSURL())
	config.FinalizeGrace = 100 * time.Millisecond

	session, err := NewLink(config).Start(context.Background(), newMemSource(2, io.EOF), nil)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	start := time.Now()
	if err := waitSession(t, session); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("session took %v to finish after grace", elapsed)
	}
}

func TestSessionSkipsMalformedFrames(t *testing.T) {
	server := testutil.NewDeepgramServer(t, testutil.Transcribe(
		testutil.FinalizeAck(),
		testutil.ResultsFrame(false, testutil.Word{Text: "fire", Start: 1.0, Confidence: 0.9}),
		`{"type":"Results","channel":`,
		"not json at all",
		testutil.ResultsFrame(true, testutil.Word{Text: "president", Start: 2.0, Confidence: 0.9}),
	))

	var log eventLog
	session, err := NewLink(testLinkConfig(server.WSURL())).Start(context.Background(), newMemSource(3, io.EOF), log.handle)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := waitSession(t, session); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	events := log.all()
	if len(events) != 3 {
		t.Fatalf("received %d events, want 3", len(events))
	}
	if events[1].Words[0].Text != "president" {
		t.Errorf("frame after malformed ones = %+v, want president", events[1])
	}
	if got := session.Stats().ProtocolErrors; got != 2 {
		t.Errorf("ProtocolErrors = %d, want 2", got)
	}
}

func TestSessionProtocolErrorLimit(t *testing.T) {
	server := testutil.NewDeepgramServer(t, func(c *testutil.DeepgramConn) {
		for i := 0; i < 3; i++ {
			if err := c.Send("{"); err != nil {
				return
			}
		}
		c.Drain()
	})
	config := testLinkConfig(server.WSURL())
	config.MaxProtocolErrors = 3

	source := newLiveSource()
	defer source.Close()

	session, err := NewLink(config).Start(context.Background(), source, nil)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := waitSession(t, session); !IsProtocolError(err) {
		t.Fatalf("Wait() error = %v, want ProtocolError", err)
	}
}

func TestSessionServerErrorIsNotFatal(t *testing.T) {
	server := testutil.NewDeepgramServer(t, testutil.Transcribe(
		testutil.FinalizeAck(),
		testutil.ErrorFrame("slow down"),
	))

	var log eventLog
	session, err := NewLink(testLinkConfig(server.WSURL())).Start(context.Background(), newMemSource(1, io.EOF), log.handle)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := waitSession(t, session); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	events := log.all()
	if len(events) == 0 || events[0].Kind != ErrorEvent || events[0].Err != "slow down" {
		t.Fatalf("events = %+v, want an ErrorEvent first", events)
	}
	if got := session.Stats().ServerErrors; got != 1 {
		t.Errorf("ServerErrors = %d, want 1", got)
	}
}

func TestSessionRemoteCloseEndsGracefully(t *testing.T) {
	server := testutil.NewDeepgramServer(t, func(c *testutil.DeepgramConn) {
		_ = c.Send(testutil.ResultsFrame(true, testutil.Word{Text: "fire", Start: 1, Confidence: 0.9}))
		_ = c.CloseWith(websocket.CloseNormalClosure, "bye")
		c.Drain()
	})

	source := newLiveSource()
	defer source.Close()

	var log eventLog
	session, err := NewLink(testLinkConfig(server.WSURL())).Start(context.Background(), source, log.handle)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := waitSession(t, session); err != nil {
		t.Fatalf("Wait() error = %v, want nil on normal remote close", err)
	}
	if len(log.all()) != 1 {
		t.Errorf("received %d events, want 1", len(log.all()))
	}
	if session.DrainCause() != "inbound" {
		t.Errorf("DrainCause() = %q, want inbound", session.DrainCause())
	}
}

func TestSessionConnectionLost(t *testing.T) {
	server := testutil.NewDeepgramServer(t, func(c *testutil.DeepgramConn) {
		_, _ = c.Next()
		_ = c.Reset()
	})

	source := newLiveSource()
	defer source.Close()

	session, err := NewLink(testLinkConfig(server.WSURL())).Start(context.Background(), source, nil)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// the server waits for one frame; the first keepalive provides it
	if err := waitSession(t, session); !IsConnectionError(err, Lost) {
		t.Fatalf("Wait() error = %v, want lost ConnectionError", err)
	}
	assertNotDrained(t, session)
}

// assertNotDrained checks that a failed session never signalled a
// graceful wind down.
func assertNotDrained(t *testing.T, session *Session) {
	t.Helper()
	select {
	case <-session.Done():
		t.Errorf("Done() closed for a failed session, cause %q", session.DrainCause())
	default:
	}
	if cause := session.DrainCause(); cause != "" {
		t.Errorf("DrainCause() = %q, want empty", cause)
	}
}

func TestSessionAbnormalCloseIsLost(t *testing.T) {
	server := testutil.NewDeepgramServer(t, func(c *testutil.DeepgramConn) {
		_ = c.CloseWith(websocket.CloseInternalServerErr, "NET-0001")
		c.Drain()
	})

	source := newLiveSource()
	defer source.Close()

	session, err := NewLink(testLinkConfig(server.WSURL())).Start(context.Background(), source, nil)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	err = waitSession(t, session)
	var ce *ConnectionError
	if !errors.As(err, &ce) || ce.Kind != Lost {
		t.Fatalf("Wait() error = %v, want lost ConnectionError", err)
	}
	if ce.Status != websocket.CloseInternalServerErr || ce.Detail != "NET-0001" {
		t.Errorf("ConnectionError = %+v, want close code and reason", ce)
	}
}

func TestSessionKeepAlive(t *testing.T) {
	server := testutil.NewDeepgramServer(t, func(c *testutil.DeepgramConn) { c.Drain() })
	config := testLinkConfig(server.WSURL())
	config.KeepAliveInterval = 30 * time.Millisecond

	source := newLiveSource()
	defer source.Close()

	session, err := NewLink(config).Start(context.Background(), source, nil)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer session.Close()

	testutil.Eventually(t, 3*time.Second, func() bool {
		return server.CountControl("KeepAlive") >= 3
	}, "three keepalives")

	if session.Stats().KeepAlives < 3 {
		t.Errorf("KeepAlives = %d, want >= 3", session.Stats().KeepAlives)
	}
}

func TestSessionSourceFailureIsReturned(t *testing.T) {
	server := testutil.NewDeepgramServer(t, func(c *testutil.DeepgramConn) { c.Drain() })
	boom := errors.New("decoder crashed")

	session, err := NewLink(testLinkConfig(server.WSURL())).Start(context.Background(), newMemSource(2, boom), nil)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := waitSession(t, session); !errors.Is(err, boom) {
		t.Fatalf("Wait() error = %v, want the source error", err)
	}
	if server.CountControl("Finalize") != 0 {
		t.Error("a failed source should not be finalized")
	}
	assertNotDrained(t, session)
}

func TestSessionEndAudio(t *testing.T) {
	server := testutil.NewDeepgramServer(t, testutil.Transcribe(testutil.FinalizeAck()))

	source := newLiveSource()
	defer source.Close()

	session, err := NewLink(testLinkConfig(server.WSURL())).Start(context.Background(), source, nil)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	session.EndAudio()
	session.EndAudio()

	if err := waitSession(t, session); err != nil {
		t.Fatalf("Wait() error = %v, want nil after EndAudio", err)
	}
	if got := server.CountControl("Finalize"); got != 1 {
		t.Errorf("Finalize frames = %d, want 1", got)
	}
}

func TestSessionCancelContext(t *testing.T) {
	server := testutil.NewDeepgramServer(t, func(c *testutil.DeepgramConn) { c.Drain() })

	source := newLiveSource()
	defer source.Close()

	ctx, cancel := context.WithCancel(context.Background())
	session, err := NewLink(testLinkConfig(server.WSURL())).Start(ctx, source, nil)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case <-session.Done():
		t.Fatal("session should not be draining yet")
	default:
	}

	cancel()
	if err := waitSession(t, session); err != nil {
		t.Errorf("Wait() error = %v, want nil on cancellation", err)
	}
	select {
	case <-session.Done():
	default:
		t.Error("Done() should be closed after the session finished")
	}
	if cause := session.DrainCause(); cause != "cancelled" {
		t.Errorf("DrainCause() = %q, want cancelled", cause)
	}
}

func TestConnectionErrorString(t *testing.T) {
	err := &ConnectionError{Kind: Rejected, Status: 401, Detail: "bad key", Err: errors.New("websocket: bad handshake")}
	want := "connection rejected (status 401): websocket: bad handshake: bad key"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
