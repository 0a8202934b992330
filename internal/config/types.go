package config

import "time"

type Config struct {
	Log           LogConfig                 `toml:"log"`
	Source        SourceConfig              `toml:"source"`
	Decoder       DecoderConfig             `toml:"decoder"`
	Transcription TranscriptionConfig       `toml:"transcription"`
	Providers     map[string]ProviderConfig `toml:"providers"`
	Spotter       SpotterConfig             `toml:"spotter"`
	Output        OutputConfig              `toml:"output"`
	Notifications NotificationsConfig       `toml:"notifications"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// SourceConfig names the stream to monitor. Page URLs from video sites are
// resolved to a direct media URL first when Resolve is set.
type SourceConfig struct {
	URL      string `toml:"url"`
	Resolve  bool   `toml:"resolve"`
	Resolver string `toml:"resolver"`
}

type DecoderConfig struct {
	Command      string        `toml:"command"`
	SampleRate   int           `toml:"sample_rate"`
	Channels     int           `toml:"channels"`
	ChunkSize    int           `toml:"chunk_size"`
	Reconnect    bool          `toml:"reconnect"`
	StartupProbe time.Duration `toml:"startup_probe"`
	StopTimeout  time.Duration `toml:"stop_timeout"`
}

type TranscriptionConfig struct {
	Endpoint          string        `toml:"endpoint"`
	Model             string        `toml:"model"`
	Language          string        `toml:"language"`
	InterimResults    bool          `toml:"interim_results"`
	SmartFormat       bool          `toml:"smart_format"`
	Punctuate         bool          `toml:"punctuate"`
	BoostKeywords     bool          `toml:"boost_keywords"`
	KeepAliveInterval time.Duration `toml:"keepalive_interval"`
	FinalizeGrace     time.Duration `toml:"finalize_grace"`
	DrainTimeout      time.Duration `toml:"drain_timeout"`
	MaxProtocolErrors int           `toml:"max_protocol_errors"`
}

// ProviderConfig holds API key for a provider
type ProviderConfig struct {
	APIKey string `toml:"api_key"`
}

type SpotterConfig struct {
	Keywords            []string `toml:"keywords"`
	ConfidenceThreshold float64  `toml:"confidence_threshold"`
}

type OutputConfig struct {
	CountsFile string `toml:"counts_file"`
	Transcript bool   `toml:"transcript"`
	HTTPAddr   string `toml:"http_addr"`
}

type NotificationsConfig struct {
	Enabled bool   `toml:"enabled"`
	Type    string `toml:"type"` // "desktop", "log", "none"
}
