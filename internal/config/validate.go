package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/AxelotlZoons/Word/internal/language"
)

func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}

	// Source
	if c.Source.URL == "" {
		return fmt.Errorf("invalid source.url: empty")
	}
	if u, err := url.Parse(c.Source.URL); err != nil || u.Scheme == "" {
		return fmt.Errorf("invalid source.url: %s", c.Source.URL)
	}
	if c.Source.Resolve && c.Source.Resolver == "" {
		return fmt.Errorf("invalid source.resolver: empty")
	}

	// Decoder
	if c.Decoder.Command == "" {
		return fmt.Errorf("invalid decoder.command: empty")
	}
	if c.Decoder.SampleRate <= 0 {
		return fmt.Errorf("invalid decoder.sample_rate: %d", c.Decoder.SampleRate)
	}
	if c.Decoder.Channels <= 0 {
		return fmt.Errorf("invalid decoder.channels: %d", c.Decoder.Channels)
	}
	if c.Decoder.ChunkSize <= 0 || c.Decoder.ChunkSize%2 != 0 {
		return fmt.Errorf("invalid decoder.chunk_size: %d (must be a positive even number)", c.Decoder.ChunkSize)
	}
	if c.Decoder.StartupProbe < 0 {
		return fmt.Errorf("invalid decoder.startup_probe: %v", c.Decoder.StartupProbe)
	}
	if c.Decoder.StopTimeout <= 0 {
		return fmt.Errorf("invalid decoder.stop_timeout: %v", c.Decoder.StopTimeout)
	}

	// Transcription
	u, err := url.Parse(c.Transcription.Endpoint)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return fmt.Errorf("invalid transcription.endpoint: %s (must be a ws:// or wss:// URL)", c.Transcription.Endpoint)
	}
	if c.Transcription.Model == "" {
		return fmt.Errorf("invalid transcription.model: empty")
	}
	if !language.IsValidCode(c.Transcription.Language) {
		return fmt.Errorf("invalid transcription.language: %s", c.Transcription.Language)
	}
	if c.Transcription.KeepAliveInterval <= 0 {
		return fmt.Errorf("invalid transcription.keepalive_interval: %v", c.Transcription.KeepAliveInterval)
	}
	if c.Transcription.FinalizeGrace <= 0 {
		return fmt.Errorf("invalid transcription.finalize_grace: %v", c.Transcription.FinalizeGrace)
	}
	if c.Transcription.DrainTimeout <= 0 {
		return fmt.Errorf("invalid transcription.drain_timeout: %v", c.Transcription.DrainTimeout)
	}
	if c.Transcription.MaxProtocolErrors < 0 {
		return fmt.Errorf("invalid transcription.max_protocol_errors: %d", c.Transcription.MaxProtocolErrors)
	}
	if c.APIKey() == "" {
		return fmt.Errorf("Deepgram API key required: not found in config (providers.deepgram.api_key) or environment variable (%s)", APIKeyEnv)
	}

	// Spotter
	if len(c.Spotter.Keywords) == 0 {
		return fmt.Errorf("invalid spotter.keywords: empty")
	}
	seen := make(map[string]bool, len(c.Spotter.Keywords))
	for _, kw := range c.Spotter.Keywords {
		if strings.TrimSpace(kw) == "" || strings.ContainsAny(kw, " \t") {
			return fmt.Errorf("invalid spotter.keywords: %q (must be a single word)", kw)
		}
		if seen[kw] {
			return fmt.Errorf("invalid spotter.keywords: %q listed twice", kw)
		}
		seen[kw] = true
	}
	if t := c.Spotter.ConfidenceThreshold; t < 0 || t > 1 {
		return fmt.Errorf("invalid spotter.confidence_threshold: %v (must be between 0 and 1)", t)
	}

	// Output
	if c.Output.CountsFile == "" {
		return fmt.Errorf("invalid output.counts_file: empty")
	}

	// Notifications
	validTypes := map[string]bool{"desktop": true, "log": true, "none": true}
	if !validTypes[c.Notifications.Type] {
		return fmt.Errorf("invalid notifications.type: %s (must be desktop, log, or none)", c.Notifications.Type)
	}

	return nil
}

// APIKey returns the Deepgram key from the config file or the environment.
func (c *Config) APIKey() string {
	if p, ok := c.Providers["deepgram"]; ok && p.APIKey != "" {
		return p.APIKey
	}
	return os.Getenv(APIKeyEnv)
}
