package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

const TestAPIKey = "test-api-key"

// WriteScript writes an executable shell script into a temp dir and returns its path.
func WriteScript(t testing.TB, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o700); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}

// FakeDecoder writes an ffmpeg stand-in that prints n bytes of silence and
// then runs tail, e.g. "exit 0", "exit 1" or "exec sleep 30".
func FakeDecoder(t testing.TB, n int, tail string) string {
	t.Helper()
	body := fmt.Sprintf("head -c %d /dev/zero\n%s\n", n, tail)
	return WriteScript(t, "ffmpeg", body)
}

// Word is one word in a scripted transcript frame.
type Word struct {
	Text       string
	Start      float64
	Confidence float64
}

// ResultsFrame renders a Deepgram "Results" message.
func ResultsFrame(isFinal bool, words ...Word) string {
	return resultsFrame(isFinal, false, words)
}

// FinalizeAck renders the final Results message Deepgram sends in response to Finalize.
func FinalizeAck(words ...Word) string {
	return resultsFrame(true, true, words)
}

func resultsFrame(isFinal, fromFinalize bool, words []Word) string {
	type word struct {
		Word       string  `json:"word"`
		Start      float64 `json:"start"`
		End        float64 `json:"end"`
		Confidence float64 `json:"confidence"`
	}
	texts := make([]string, 0, len(words))
	ws := make([]word, 0, len(words))
	for _, w := range words {
		texts = append(texts, w.Text)
		ws = append(ws, word{Word: w.Text, Start: w.Start, End: w.Start + 0.3, Confidence: w.Confidence})
	}
	msg := map[string]any{
		"type":          "Results",
		"is_final":      isFinal,
		"speech_final":  isFinal,
		"from_finalize": fromFinalize,
		"channel": map[string]any{
			"alternatives": []map[string]any{{
				"transcript": strings.Join(texts, " "),
				"confidence": 0.9,
				"words":      ws,
			}},
		},
	}
	data, _ := json.Marshal(msg)
	return string(data)
}

func MetadataFrame(requestID string) string {
	return fmt.Sprintf(`{"type":"Metadata","request_id":%q,"metadata":{"request_id":%q,"model_info":{"name":"nova-2","version":"test"}}}`,
		requestID, requestID)
}

func ErrorFrame(message string) string {
	return fmt.Sprintf(`{"type":"Error","message":%q}`, message)
}

// Frame is one message the mock server received from the client.
type Frame struct {
	Binary bool
	Data   []byte
}

// Control returns the "type" of a text control frame.
func (f Frame) Control() string {
	if f.Binary {
		return ""
	}
	var msg struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(f.Data, &msg)
	return msg.Type
}

// DeepgramServer is an httptest websocket server that speaks enough of
// Deepgram's live protocol to drive a client under test.
type DeepgramServer struct {
	*httptest.Server
	APIKey string

	handle func(*DeepgramConn)

	mu       sync.Mutex
	queries  []url.Values
	controls []string

	audioBytes atomic.Int64
	conns      atomic.Int64
}

// DeepgramConn is the server side of one client connection.
type DeepgramConn struct {
	server *DeepgramServer
	conn   *websocket.Conn
	Query  url.Values
}

// NewDeepgramServer starts a mock server; handle runs once per accepted
// connection and the connection is closed when it returns.
func NewDeepgramServer(t testing.TB, handle func(*DeepgramConn)) *DeepgramServer {
	t.Helper()
	s := &DeepgramServer{APIKey: TestAPIKey, handle: handle}

	upgrader := websocket.Upgrader{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token "+s.APIKey {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"err_code":"INVALID_AUTH","err_msg":"Invalid credentials."}`))
			return
		}

		s.mu.Lock()
		s.queries = append(s.queries, r.URL.Query())
		s.mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		s.conns.Add(1)

		if s.handle != nil {
			s.handle(&DeepgramConn{server: s, conn: conn, Query: r.URL.Query()})
		}
	}))
	t.Cleanup(s.Close)
	return s
}

// WSURL returns the ws:// endpoint of the server.
func (s *DeepgramServer) WSURL() string {
	return "ws" + strings.TrimPrefix(s.Server.URL, "http") + "/v1/listen"
}

func (s *DeepgramServer) Queries() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.queries...)
}

// Controls lists the control frame types received, in order.
func (s *DeepgramServer) Controls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.controls...)
}

func (s *DeepgramServer) CountControl(typ string) int {
	n := 0
	for _, c := range s.Controls() {
		if c == typ {
			n++
		}
	}
	return n
}

func (s *DeepgramServer) AudioBytes() int64 { return s.audioBytes.Load() }

func (s *DeepgramServer) Connections() int64 { return s.conns.Load() }

// Next reads the next client frame and records it.
func (c *DeepgramConn) Next() (Frame, error) {
	msgType, data, err := c.conn.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	f := Frame{Binary: msgType == websocket.BinaryMessage, Data: data}
	if f.Binary {
		c.server.audioBytes.Add(int64(len(data)))
	} else {
		c.server.mu.Lock()
		c.server.controls = append(c.server.controls, f.Control())
		c.server.mu.Unlock()
	}
	return f, nil
}

// WaitControl reads frames until a control frame of the given type arrives.
func (c *DeepgramConn) WaitControl(typ string) error {
	for {
		f, err := c.Next()
		if err != nil {
			return err
		}
		if f.Control() == typ {
			return nil
		}
	}
}

// Drain reads and records frames until the client goes away.
func (c *DeepgramConn) Drain() {
	for {
		if _, err := c.Next(); err != nil {
			return
		}
	}
}

func (c *DeepgramConn) Send(frame string) error {
	return c.conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

func (c *DeepgramConn) SendBinary(data []byte) error {
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

// CloseWith sends a close frame with the given code.
func (c *DeepgramConn) CloseWith(code int, text string) error {
	return c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

// Reset drops the TCP connection without a close handshake.
func (c *DeepgramConn) Reset() error {
	return c.conn.UnderlyingConn().Close()
}

// Transcribe returns a handler that sends frames up front, then answers
// Finalize with ack and keeps reading until the client disconnects.
func Transcribe(ack string, frames ...string) func(*DeepgramConn) {
	return func(c *DeepgramConn) {
		for _, f := range frames {
			if err := c.Send(f); err != nil {
				return
			}
		}
		if err := c.WaitControl("Finalize"); err != nil {
			return
		}
		if ack != "" {
			if err := c.Send(ack); err != nil {
				return
			}
		}
		c.Drain()
	}
}

// Eventually polls cond until it holds or the timeout elapses.
func Eventually(t testing.TB, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}
