package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration for the slidepilot binaries. Tuning knobs
// come from an optional YAML file; credentials come from the environment and
// are validated fail-fast before any resource is acquired.
type Config struct {
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Qdrant     QdrantConfig     `yaml:"qdrant"`
	Relay      RelayConfig      `yaml:"relay"`
	Listener   ListenerConfig   `yaml:"listener"`
	Audio      AudioConfig      `yaml:"audio"`
	Match      MatchConfig      `yaml:"match"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Keywords   KeywordsConfig   `yaml:"keywords"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// OpenAIConfig contains hosted-API settings. The API key is environment-only
// so it never lands in a config file.
type OpenAIConfig struct {
	APIKey             string `yaml:"-"`
	RealtimeURL        string `yaml:"realtime_url"`
	TranscriptionModel string `yaml:"transcription_model"`
	EmbeddingModel     string `yaml:"embedding_model"`
	Prompt             string `yaml:"prompt"`
	Language           string `yaml:"language"`
}

// QdrantConfig contains vector index settings.
type QdrantConfig struct {
	URL        string `yaml:"-"`
	APIKey     string `yaml:"-"`
	Collection string `yaml:"collection"`
	VectorSize int    `yaml:"vector_size"`
}

// RelayConfig contains slide relay addresses and server behavior.
type RelayConfig struct {
	URL           string `yaml:"url"`             // client side, ws:// URL
	ListenAddr    string `yaml:"listen_addr"`     // server side
	MetricsAddr   string `yaml:"metrics_addr"`    // server side, empty disables
	SyncOnConnect bool   `yaml:"sync_on_connect"` // changeSlide(current) instead of bootstrap nextSlide
}

// ListenerConfig contains listener-process settings.
type ListenerConfig struct {
	MetricsAddr string `yaml:"metrics_addr"` // empty disables
}

// AudioConfig contains microphone capture parameters.
type AudioConfig struct {
	SampleRate   int    `yaml:"sample_rate"`
	Channels     int    `yaml:"channels"`
	FrameSamples int    `yaml:"frame_samples"` // 1024 samples at 16 kHz is about 64 ms
	InputFormat  string `yaml:"input_format"`  // ffmpeg -f value, e.g. alsa, avfoundation, pulse
	Device       string `yaml:"device"`
	FFmpegPath   string `yaml:"ffmpeg_path"`
}

// MatchConfig contains semantic matcher tuning.
type MatchConfig struct {
	Threshold  float32 `yaml:"threshold"`
	TopK       int     `yaml:"top_k"`
	SnippetLen int     `yaml:"snippet_len"`
	CooldownMS int     `yaml:"cooldown_ms"` // 0 disables navigation debounce
}

// TranscriptConfig contains transcript store settings.
type TranscriptConfig struct {
	MaxHistory int `yaml:"max_history"` // 0 = unbounded
}

// KeywordsConfig contains the literal navigation phrases.
type KeywordsConfig struct {
	Next     []string `yaml:"next"`
	Previous []string `yaml:"previous"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config with every tuning knob at its default value.
// Credentials are left empty and filled from the environment by Load.
func Default() *Config {
	return &Config{
		OpenAI: OpenAIConfig{
			RealtimeURL:        "wss://api.openai.com/v1/realtime?intent=transcription",
			TranscriptionModel: "gpt-4o-mini-transcribe",
			EmbeddingModel:     "text-embedding-3-small",
			Prompt:             "This is a presentation and/or a pitch",
			Language:           "en",
		},
		Qdrant: QdrantConfig{
			Collection: "pdf_collection",
			VectorSize: 1536,
		},
		Relay: RelayConfig{
			URL:         "ws://127.0.0.1:5050/ws",
			ListenAddr:  ":5050",
			MetricsAddr: ":9091",
		},
		Listener: ListenerConfig{
			MetricsAddr: ":9090",
		},
		Audio: AudioConfig{
			SampleRate:   16000,
			Channels:     1,
			FrameSamples: 1024,
			InputFormat:  "alsa",
			Device:       "default",
			FFmpegPath:   "ffmpeg",
		},
		Match: MatchConfig{
			Threshold:  0.5,
			TopK:       2,
			SnippetLen: 200,
		},
		Keywords: KeywordsConfig{
			Next:     []string{"next slide"},
			Previous: []string{"previous slide"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then environment variables for credentials and
// overrides. The caller is expected to have loaded .env beforehand
// (godotenv) so local runs work without exported variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config file %s", path)
		}
	}

	cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	cfg.Qdrant.URL = os.Getenv("QDRANT_HOST")
	cfg.Qdrant.APIKey = os.Getenv("QDRANT_API_KEY")
	if v := os.Getenv("QDRANT_COLLECTION_NAME"); v != "" {
		cfg.Qdrant.Collection = v
	}
	if v := os.Getenv("RELAY_URL"); v != "" {
		cfg.Relay.URL = v
	}

	return cfg, nil
}

// ValidateListener checks everything the listener process needs.
func (c *Config) ValidateListener() error {
	if c.OpenAI.APIKey == "" {
		return errors.New("OPENAI_API_KEY must be set")
	}
	if c.Qdrant.URL == "" {
		return errors.New("QDRANT_HOST must be set")
	}
	if err := c.Audio.Validate(); err != nil {
		return errors.Wrap(err, "audio config")
	}
	if err := c.Match.Validate(); err != nil {
		return errors.Wrap(err, "match config")
	}
	if err := c.Keywords.Validate(); err != nil {
		return errors.Wrap(err, "keywords config")
	}
	if c.Relay.URL == "" {
		return errors.New("relay url cannot be empty")
	}
	if c.Transcript.MaxHistory < 0 {
		return errors.Errorf("transcript max_history cannot be negative, got %d", c.Transcript.MaxHistory)
	}
	return c.Logging.Validate()
}

// ValidateRelay checks everything the relay server process needs.
func (c *Config) ValidateRelay() error {
	if c.Relay.ListenAddr == "" {
		return errors.New("relay listen_addr cannot be empty")
	}
	return c.Logging.Validate()
}

// ValidateIngest checks everything the ingest tool needs.
func (c *Config) ValidateIngest() error {
	if c.OpenAI.APIKey == "" {
		return errors.New("OPENAI_API_KEY must be set")
	}
	if c.Qdrant.URL == "" {
		return errors.New("QDRANT_HOST must be set")
	}
	if c.Qdrant.Collection == "" {
		return errors.New("qdrant collection cannot be empty")
	}
	if c.Qdrant.VectorSize < 1 {
		return errors.Errorf("qdrant vector_size must be positive, got %d", c.Qdrant.VectorSize)
	}
	return c.Logging.Validate()
}

// Validate validates audio capture configuration.
func (a *AudioConfig) Validate() error {
	if a.SampleRate != 16000 {
		return errors.Errorf("sample_rate must be 16000 Hz for the realtime transcription endpoint, got %d", a.SampleRate)
	}
	if a.Channels != 1 {
		return errors.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}
	if a.FrameSamples < 1 {
		return errors.Errorf("frame_samples must be positive, got %d", a.FrameSamples)
	}
	if a.InputFormat == "" {
		return errors.New("input_format cannot be empty")
	}
	if a.FFmpegPath == "" {
		return errors.New("ffmpeg_path cannot be empty")
	}
	return nil
}

// Validate validates matcher configuration.
func (m *MatchConfig) Validate() error {
	if m.Threshold < 0 || m.Threshold > 1 {
		return errors.Errorf("threshold must be between 0 and 1, got %f", m.Threshold)
	}
	if m.TopK < 1 {
		return errors.Errorf("top_k must be at least 1, got %d", m.TopK)
	}
	if m.SnippetLen < 1 {
		return errors.Errorf("snippet_len must be positive, got %d", m.SnippetLen)
	}
	if m.CooldownMS < 0 {
		return errors.Errorf("cooldown_ms cannot be negative, got %d", m.CooldownMS)
	}
	return nil
}

// Validate validates keyword configuration.
func (k *KeywordsConfig) Validate() error {
	for _, phrase := range append(append([]string{}, k.Next...), k.Previous...) {
		if phrase == "" {
			return errors.New("keyword phrases cannot be empty")
		}
	}
	return nil
}

// Validate validates logging configuration.
func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.Errorf("level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	switch l.Format {
	case "text", "json":
	default:
		return errors.Errorf("format must be 'text' or 'json', got %q", l.Format)
	}
	return nil
}

// FrameBytes returns the size in bytes of one capture frame (s16le mono).
func (a *AudioConfig) FrameBytes() int {
	return a.FrameSamples * a.Channels * 2
}

// FrameDuration returns the wall-clock duration covered by one frame.
func (a *AudioConfig) FrameDuration() time.Duration {
	return time.Duration(a.FrameSamples) * time.Second / time.Duration(a.SampleRate)
}

// Cooldown returns the navigation debounce window.
func (m *MatchConfig) Cooldown() time.Duration {
	return time.Duration(m.CooldownMS) * time.Millisecond
}
