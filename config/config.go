package config

import (
	"fmt"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Audio         AudioConfig         `yaml:"audio"`
	Silence       SilenceConfig       `yaml:"silence"`
	Recorder      RecorderConfig      `yaml:"recorder"`
	Buttons       ButtonsConfig       `yaml:"buttons"`
	HID           HIDConfig           `yaml:"hid"`
	Wake          WakeConfig          `yaml:"wake"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Assistant     AssistantConfig     `yaml:"assistant"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// AudioConfig contains capture parameters
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
	ChunkSize  int `yaml:"chunk_size"`
	// Microphone is the input device index, -1 selects the first input device.
	Microphone int `yaml:"microphone"`
}

// SilenceConfig contains the end of speech detection parameters
type SilenceConfig struct {
	Threshold float64       `yaml:"threshold"`
	Duration  time.Duration `yaml:"duration"`
}

type RecorderConfig struct {
	StopTimeout    time.Duration `yaml:"stop_timeout"`
	OutputDir      string        `yaml:"output_dir"`
	KeepRecordings bool          `yaml:"keep_recordings"`
}

type ButtonsConfig struct {
	Workers          int           `yaml:"workers"`
	QueueSize        int           `yaml:"queue_size"`
	MinPressDuration time.Duration `yaml:"min_press_duration"`
}

// HIDConfig selects the button device
type HIDConfig struct {
	Enabled   bool   `yaml:"enabled"`
	VendorID  uint16 `yaml:"vendor_id"`
	ProductID uint16 `yaml:"product_id"`
	// Path opens a specific device node instead of the first vendor/product match.
	Path string `yaml:"path"`
}

type WakeConfig struct {
	Enabled    bool          `yaml:"enabled"`
	OnsetRatio float64       `yaml:"onset_ratio"`
	MinFlux    float64       `yaml:"min_flux"`
	Cooldown   time.Duration `yaml:"cooldown"`
}

// TranscriptionConfig selects the speech to text engine
type TranscriptionConfig struct {
	Engine    string `yaml:"engine"`
	ModelPath string `yaml:"model_path"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	Language  string `yaml:"language"`
}

// AssistantConfig selects the language model the transcript is sent to
type AssistantConfig struct {
	Kind    string `yaml:"kind"`
	APIHost string `yaml:"api_host"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	EngineWhisper = "whisper"
	EngineOpenAI  = "openai"

	AssistantNone   = "none"
	AssistantHTTP   = "http"
	AssistantOpenAI = "openai"
)

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate: 16000,
			ChunkSize:  1024,
			Microphone: -1,
		},
		Silence: SilenceConfig{
			Threshold: 500,
			Duration:  time.Second,
		},
		Recorder: RecorderConfig{
			StopTimeout: 3 * time.Second,
			OutputDir:   "recordings",
		},
		Buttons: ButtonsConfig{
			Workers:   4,
			QueueSize: 32,
		},
		HID: HIDConfig{
			Enabled:   true,
			VendorID:  0x17EF,
			ProductID: 0xB813,
		},
		Wake: WakeConfig{
			OnsetRatio: 1.75,
			MinFlux:    1.0,
			Cooldown:   500 * time.Millisecond,
		},
		Transcription: TranscriptionConfig{
			Engine:    EngineWhisper,
			ModelPath: "models/ggml-base.en.bin",
			Language:  "en",
		},
		Assistant: AssistantConfig{
			Kind: AssistantNone,
		},
		Metrics: MetricsConfig{
			Address: ":9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the configuration file on top of the defaults
func Load(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs validation of every section
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Silence.Validate(); err != nil {
		return fmt.Errorf("silence config: %w", err)
	}

	if err := c.Recorder.Validate(); err != nil {
		return fmt.Errorf("recorder config: %w", err)
	}

	if err := c.Buttons.Validate(); err != nil {
		return fmt.Errorf("buttons config: %w", err)
	}

	if err := c.HID.Validate(); err != nil {
		return fmt.Errorf("hid config: %w", err)
	}

	if err := c.Wake.Validate(); err != nil {
		return fmt.Errorf("wake config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Assistant.Validate(); err != nil {
		return fmt.Errorf("assistant config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func (a *AudioConfig) Validate() error {
	if a.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", a.SampleRate)
	}

	if a.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", a.ChunkSize)
	}

	if a.Microphone < -1 {
		return fmt.Errorf("microphone must be a device index or -1, got %d", a.Microphone)
	}

	return nil
}

func (s *SilenceConfig) Validate() error {
	if s.Threshold <= 0 {
		return fmt.Errorf("threshold must be positive, got %f", s.Threshold)
	}

	if s.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %s", s.Duration)
	}

	return nil
}

func (r *RecorderConfig) Validate() error {
	if r.StopTimeout <= 0 {
		return fmt.Errorf("stop_timeout must be positive, got %s", r.StopTimeout)
	}

	if r.OutputDir == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}

	return nil
}

func (b *ButtonsConfig) Validate() error {
	if b.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", b.Workers)
	}

	if b.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", b.QueueSize)
	}

	if b.MinPressDuration < 0 {
		return fmt.Errorf("min_press_duration cannot be negative, got %s", b.MinPressDuration)
	}

	return nil
}

func (h *HIDConfig) Validate() error {
	if h.Enabled && h.Path == "" && (h.VendorID == 0 || h.ProductID == 0) {
		return fmt.Errorf("vendor_id and product_id are required when no path is set")
	}

	return nil
}

func (w *WakeConfig) Validate() error {
	if !w.Enabled {
		return nil
	}

	if w.OnsetRatio <= 1 {
		return fmt.Errorf("onset_ratio must be greater than 1, got %f", w.OnsetRatio)
	}

	if w.MinFlux <= 0 {
		return fmt.Errorf("min_flux must be positive, got %f", w.MinFlux)
	}

	if w.Cooldown < 0 {
		return fmt.Errorf("cooldown cannot be negative, got %s", w.Cooldown)
	}

	return nil
}

func (t *TranscriptionConfig) Validate() error {
	switch t.Engine {
	case EngineWhisper:
		if t.ModelPath == "" {
			return fmt.Errorf("model_path cannot be empty for the whisper engine")
		}
	case EngineOpenAI:
		if t.APIKey == "" && t.BaseURL == "" {
			return fmt.Errorf("api_key or base_url is required for the openai engine")
		}
	default:
		return fmt.Errorf("engine must be '%s' or '%s', got '%s'", EngineWhisper, EngineOpenAI, t.Engine)
	}

	return nil
}

func (a *AssistantConfig) Validate() error {
	switch a.Kind {
	case AssistantNone:
	case AssistantHTTP:
		if a.APIHost == "" {
			return fmt.Errorf("api_host cannot be empty for the http assistant")
		}
	case AssistantOpenAI:
		if a.BaseURL == "" && a.APIKey == "" {
			return fmt.Errorf("base_url or api_key is required for the openai assistant")
		}

		if a.Model == "" {
			return fmt.Errorf("model cannot be empty for the openai assistant")
		}
	default:
		return fmt.Errorf("kind must be one of [none, http, openai], got '%s'", a.Kind)
	}

	return nil
}

func (m *MetricsConfig) Validate() error {
	if m.Enabled && m.Address == "" {
		return fmt.Errorf("address cannot be empty when metrics are enabled")
	}

	return nil
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}
