package resolve

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Hosts whose pages must go through yt-dlp to find a media URL. Anything
// else is assumed to be a direct stream (mp3, aac, m3u8, icecast).
var extractedHosts = []string{"youtube", "youtu.be", "twitch"}

// Failure is a resolver error. Callers fall back to the original URL.
type Failure struct {
	URL    string
	Err    error
	Stderr string
}

func (e *Failure) Error() string {
	msg := fmt.Sprintf("resolve %s: %v", e.URL, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *Failure) Unwrap() error { return e.Err }

type Config struct {
	Command string
	Format  string
	Timeout time.Duration
	Logger  *log.Logger
}

func DefaultConfig() Config {
	return Config{
		Command: "yt-dlp",
		Format:  "bestaudio/best",
		Timeout: 30 * time.Second,
	}
}

type Resolver struct {
	config Config
	logger *log.Logger
}

func New(config Config) *Resolver {
	logger := config.Logger
	if logger == nil {
		logger = log.Default().WithPrefix("resolver")
	}
	if config.Command == "" {
		config.Command = "yt-dlp"
	}
	if config.Format == "" {
		config.Format = "bestaudio/best"
	}
	return &Resolver{config: config, logger: logger}
}

// NeedsExtraction reports whether source is a page URL that yt-dlp must
// resolve rather than a direct media URL.
func NeedsExtraction(source string) bool {
	u, err := url.Parse(source)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range extractedHosts {
		if strings.Contains(host, h) {
			return true
		}
	}
	return false
}

// Resolve returns a URL the decoder can open. Direct URLs come back
// unchanged; page URLs are handed to yt-dlp. On error the original URL is
// returned alongside a *Failure so the caller can still try it.
func (r *Resolver) Resolve(ctx context.Context, source string) (string, error) {
	if !NeedsExtraction(source) {
		return source, nil
	}

	r.logger.Info("extracting audio feed", "url", source)

	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.config.Command,
		"-f", r.config.Format,
		"--no-playlist",
		"--no-warnings",
		"-g",
		source,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", err, ctx.Err())
		}
		return source, &Failure{URL: source, Err: err, Stderr: strings.TrimSpace(stderr.String())}
	}

	for _, line := range strings.Split(stdout.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			r.logger.Info("stream url found")
			r.logger.Debug("resolved", "url", line)
			return line, nil
		}
	}
	return source, &Failure{URL: source, Err: errors.New("yt-dlp printed no url")}
}
