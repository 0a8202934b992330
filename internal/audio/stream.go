package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

type Config struct {
	Command      string
	SampleRate   int
	Channels     int
	Format       string
	ChunkSize    int
	Reconnect    bool
	StartupProbe time.Duration
	StopTimeout  time.Duration
	Logger       *log.Logger
}

func DefaultConfig() Config {
	return Config{
		Command:      "ffmpeg",
		SampleRate:   16000,
		Channels:     1,
		Format:       "s16le",
		ChunkSize:    4096,
		StartupProbe: 250 * time.Millisecond,
		StopTimeout:  time.Second,
	}
}

// Decoder spawns one ffmpeg process per Open call.
type Decoder struct {
	config Config
	logger *log.Logger
}

func NewDecoder(config Config) *Decoder {
	logger := config.Logger
	if logger == nil {
		logger = log.Default().WithPrefix("ffmpeg")
	}
	return &Decoder{config: config, logger: logger}
}

func NewDefaultDecoder() *Decoder { return NewDecoder(DefaultConfig()) }

// Stream is a running decoder. The caller owns it and must Close it.
type Stream struct {
	config Config
	logger *log.Logger

	cmd    *exec.Cmd
	stdout *os.File
	diag   *diagBuffer

	bytesRead atomic.Int64
	closed    atomic.Bool

	exited  chan struct{}
	waitErr error // written before exited is closed

	closeOnce sync.Once
	closeErr  error
}

// Open starts the decoder on a media URL. Failures here are always
// DecoderErrors of kind Startup, or ctx.Err() if ctx ends during the
// startup probe.
func (d *Decoder) Open(ctx context.Context, source string) (*Stream, error) {
	if err := d.validateConfig(); err != nil {
		return nil, &DecoderError{Kind: Startup, Err: err}
	}
	if strings.TrimSpace(source) == "" {
		return nil, &DecoderError{Kind: Startup, Err: errors.New("empty source url")}
	}

	path, err := exec.LookPath(d.config.Command)
	if err != nil {
		return nil, &DecoderError{Kind: Startup, Err: fmt.Errorf("%s not found: %w", d.config.Command, err)}
	}

	// A pipe we own, so cmd.Wait cannot close the read end while
	// trailing audio is still buffered in it.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, &DecoderError{Kind: Startup, Err: fmt.Errorf("create stdout pipe: %w", err)}
	}

	diag := newDiagBuffer(d.logger)
	cmd := exec.Command(path, d.buildArgs(source)...)
	cmd.Stdout = pw
	cmd.Stderr = diag
	cmd.WaitDelay = d.config.StopTimeout

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, &DecoderError{Kind: Startup, Err: fmt.Errorf("start %s: %w", d.config.Command, err)}
	}
	pw.Close()

	s := &Stream{
		config: d.config,
		logger: d.logger,
		cmd:    cmd,
		stdout: pr,
		diag:   diag,
		exited: make(chan struct{}),
	}
	go func() {
		s.waitErr = cmd.Wait()
		close(s.exited)
	}()

	d.logger.Info("decoder started", "pid", cmd.Process.Pid, "rate", d.config.SampleRate, "channels", d.config.Channels)

	if d.config.StartupProbe <= 0 {
		return s, nil
	}

	probe := time.NewTimer(d.config.StartupProbe)
	defer probe.Stop()

	select {
	case <-s.exited:
		if s.waitErr != nil {
			pr.Close()
			return nil, &DecoderError{
				Kind:   Startup,
				Err:    fmt.Errorf("exited before audio started: %w", s.waitErr),
				Stderr: diag.String(),
			}
		}
		// exited cleanly; whatever it wrote is still readable
	case <-probe.C:
	case <-ctx.Done():
		_ = s.Close()
		return nil, ctx.Err()
	}

	return s, nil
}

// ReadChunk reads at most len(p) bytes of PCM. At end of stream it waits for
// the decoder to exit: a clean exit yields io.EOF, anything else a
// DecoderError carrying the captured stderr.
func (s *Stream) ReadChunk(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}

	n, err := s.stdout.Read(p)
	if n > 0 {
		s.bytesRead.Add(int64(n))
		return n, nil
	}
	if err == nil {
		return 0, nil
	}
	if s.closed.Load() || errors.Is(err, os.ErrClosed) {
		return 0, ErrClosed
	}
	if !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("read decoder output: %w", err)
	}

	<-s.exited
	if s.closed.Load() {
		return 0, ErrClosed
	}
	return 0, s.exitError()
}

func (s *Stream) exitError() error {
	if s.waitErr == nil {
		return io.EOF
	}
	kind := Crash
	if s.bytesRead.Load() == 0 {
		kind = Startup
	}
	return &DecoderError{Kind: kind, Err: s.waitErr, Stderr: s.diag.String()}
}

// Close stops the decoder if it is still running. Safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)

		select {
		case <-s.exited:
		default:
			_ = s.cmd.Process.Signal(os.Interrupt)
			timer := time.NewTimer(s.config.StopTimeout)
			select {
			case <-s.exited:
			case <-timer.C:
				_ = s.cmd.Process.Kill()
				<-s.exited
			}
			timer.Stop()
			s.logger.Info("decoder stopped", "bytes", s.bytesRead.Load())
		}

		if err := s.stdout.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			s.closeErr = err
		}
	})
	return s.closeErr
}

// ChunkSize is the configured read size for ReadChunk callers.
func (s *Stream) ChunkSize() int { return s.config.ChunkSize }

// BytesRead counts PCM bytes handed out so far.
func (s *Stream) BytesRead() int64 { return s.bytesRead.Load() }

// Diagnostics returns the tail of the decoder's stderr.
func (s *Stream) Diagnostics() string { return s.diag.String() }

// Exited is closed once the decoder process has been reaped.
func (s *Stream) Exited() <-chan struct{} { return s.exited }

func (d *Decoder) buildArgs(source string) []string {
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		// low latency start: no input buffering, minimal probing
		"-fflags", "nobuffer",
		"-flags", "low_delay",
		"-probesize", "32",
		"-analyzeduration", "0",
		"-avioflags", "direct",
	}
	if d.config.Reconnect && isHTTP(source) {
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
		)
	}
	args = append(args,
		"-i", source,
		"-f", d.config.Format,
		"-ac", strconv.Itoa(d.config.Channels),
		"-ar", strconv.Itoa(d.config.SampleRate),
		"-", // stdout
	)
	return args
}

func isHTTP(source string) bool {
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func (d *Decoder) validateConfig() error {
	if d.config.Command == "" {
		return fmt.Errorf("invalid Command: empty")
	}
	if d.config.SampleRate <= 0 {
		return fmt.Errorf("invalid SampleRate: %d", d.config.SampleRate)
	}
	if d.config.Channels <= 0 {
		return fmt.Errorf("invalid Channels: %d", d.config.Channels)
	}
	if d.config.ChunkSize <= 0 {
		return fmt.Errorf("invalid ChunkSize: %d", d.config.ChunkSize)
	}
	if d.config.Format == "" {
		return fmt.Errorf("invalid Format: empty")
	}
	if d.config.StopTimeout <= 0 {
		return fmt.Errorf("invalid StopTimeout: %v", d.config.StopTimeout)
	}
	// s16le is 2 bytes per sample per channel.
	if d.config.Format == "s16le" {
		frameBytes := 2 * d.config.Channels
		if d.config.ChunkSize%frameBytes != 0 {
			d.logger.Warn("chunk size not aligned to sample frame; samples may split across chunks",
				"chunk_size", d.config.ChunkSize, "frame_bytes", frameBytes)
		}
	}
	return nil
}
