package config

import (
	"github.com/charmbracelet/log"

	"github.com/AxelotlZoons/Word/internal/audio"
	"github.com/AxelotlZoons/Word/internal/resolve"
	"github.com/AxelotlZoons/Word/internal/transcriber"
)

func (c *Config) ToAudioConfig() audio.Config {
	ac := audio.DefaultConfig()
	ac.Command = c.Decoder.Command
	ac.SampleRate = c.Decoder.SampleRate
	ac.Channels = c.Decoder.Channels
	ac.ChunkSize = c.Decoder.ChunkSize
	ac.Reconnect = c.Decoder.Reconnect
	ac.StartupProbe = c.Decoder.StartupProbe
	ac.StopTimeout = c.Decoder.StopTimeout
	return ac
}

func (c *Config) ToTranscriberConfig() transcriber.Config {
	tc := transcriber.DefaultConfig()
	tc.Endpoint = c.Transcription.Endpoint
	tc.APIKey = c.APIKey()
	tc.Model = c.Transcription.Model
	tc.Language = c.Transcription.Language
	tc.SampleRate = c.Decoder.SampleRate
	tc.Channels = c.Decoder.Channels
	tc.InterimResults = c.Transcription.InterimResults
	tc.SmartFormat = c.Transcription.SmartFormat
	tc.Punctuate = c.Transcription.Punctuate
	tc.ChunkSize = c.Decoder.ChunkSize
	tc.KeepAliveInterval = c.Transcription.KeepAliveInterval
	tc.FinalizeGrace = c.Transcription.FinalizeGrace
	tc.MaxProtocolErrors = c.Transcription.MaxProtocolErrors
	if c.Transcription.BoostKeywords {
		tc.Keywords = append([]string(nil), c.Spotter.Keywords...)
	}
	return tc
}

func (c *Config) ToResolveConfig() resolve.Config {
	rc := resolve.DefaultConfig()
	if c.Source.Resolver != "" {
		rc.Command = c.Source.Resolver
	}
	return rc
}

// LogLevel parses log.level, falling back to info.
func (c *Config) LogLevel() log.Level {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return level
}
