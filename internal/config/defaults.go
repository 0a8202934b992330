package config

import "time"

// DefaultKeywords are the root keywords counted when none are configured.
var DefaultKeywords = []string{"venezuela", "fire", "emergency", "president", "china"}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Source: SourceConfig{
			URL:      "https://npr-ice.streamguys1.com/live.mp3",
			Resolve:  true,
			Resolver: "yt-dlp",
		},
		Decoder: DecoderConfig{
			Command:      "ffmpeg",
			SampleRate:   16000,
			Channels:     1,
			ChunkSize:    4096,
			Reconnect:    false,
			StartupProbe: 250 * time.Millisecond,
			StopTimeout:  time.Second,
		},
		Transcription: TranscriptionConfig{
			Endpoint:          "wss://api.deepgram.com/v1/listen",
			Model:             "nova-2",
			Language:          "en",
			InterimResults:    true,
			KeepAliveInterval: 5 * time.Second,
			FinalizeGrace:     3 * time.Second,
			DrainTimeout:      5 * time.Second,
		},
		Providers: map[string]ProviderConfig{
			"deepgram": {},
		},
		Spotter: SpotterConfig{
			Keywords:            append([]string(nil), DefaultKeywords...),
			ConfidenceThreshold: 0.85,
		},
		Output: OutputConfig{
			CountsFile: "keyword_counts.txt",
			Transcript: true,
		},
		Notifications: NotificationsConfig{
			Enabled: false,
			Type:    "log",
		},
	}
}
