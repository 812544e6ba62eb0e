package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *Config)
		errorMsg string
	}{
		{
			name:     "zero sample rate",
			mutate:   func(c *Config) { c.Audio.SampleRate = 0 },
			errorMsg: "sample_rate",
		},
		{
			name:     "negative chunk size",
			mutate:   func(c *Config) { c.Audio.ChunkSize = -1 },
			errorMsg: "chunk_size",
		},
		{
			name:     "bad microphone index",
			mutate:   func(c *Config) { c.Audio.Microphone = -2 },
			errorMsg: "microphone",
		},
		{
			name:     "zero silence threshold",
			mutate:   func(c *Config) { c.Silence.Threshold = 0 },
			errorMsg: "threshold",
		},
		{
			name:     "zero silence duration",
			mutate:   func(c *Config) { c.Silence.Duration = 0 },
			errorMsg: "duration",
		},
		{
			name:     "empty output dir",
			mutate:   func(c *Config) { c.Recorder.OutputDir = "" },
			errorMsg: "output_dir",
		},
		{
			name:     "no workers",
			mutate:   func(c *Config) { c.Buttons.Workers = 0 },
			errorMsg: "workers",
		},
		{
			name:     "hid without ids",
			mutate:   func(c *Config) { c.HID.VendorID = 0 },
			errorMsg: "vendor_id",
		},
		{
			name: "wake ratio too low",
			mutate: func(c *Config) {
				c.Wake.Enabled = true
				c.Wake.OnsetRatio = 1
			},
			errorMsg: "onset_ratio",
		},
		{
			name:     "unknown engine",
			mutate:   func(c *Config) { c.Transcription.Engine = "vosk" },
			errorMsg: "engine",
		},
		{
			name: "openai engine without credentials",
			mutate: func(c *Config) {
				c.Transcription.Engine = EngineOpenAI
			},
			errorMsg: "api_key",
		},
		{
			name: "http assistant without host",
			mutate: func(c *Config) {
				c.Assistant.Kind = AssistantHTTP
			},
			errorMsg: "api_host",
		},
		{
			name: "metrics without address",
			mutate: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Address = ""
			},
			errorMsg: "address",
		},
		{
			name:     "bad log level",
			mutate:   func(c *Config) { c.Logging.Level = "verbose" },
			errorMsg: "level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)

			err := c.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q", tt.errorMsg)
			}

			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("expected error containing %q, got %v", tt.errorMsg, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()

	content := `
audio:
  microphone: 2
silence:
  threshold: 800
  duration: 1500ms
buttons:
  min_press_duration: 30ms
hid:
  enabled: false
transcription:
  engine: openai
  api_key: test-key
assistant:
  kind: http
  api_host: http://localhost:8080
logging:
  level: debug
  format: json
`

	if err := afero.WriteFile(fs, "config.yaml", []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	c, err := Load(fs, "config.yaml")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if c.Audio.Microphone != 2 || c.Audio.SampleRate != 16000 {
		t.Errorf("unexpected audio config %+v", c.Audio)
	}

	if c.Silence.Threshold != 800 || c.Silence.Duration != 1500*time.Millisecond {
		t.Errorf("unexpected silence config %+v", c.Silence)
	}

	if c.Buttons.MinPressDuration != 30*time.Millisecond || c.Buttons.Workers != 4 {
		t.Errorf("unexpected buttons config %+v", c.Buttons)
	}

	if c.HID.Enabled {
		t.Errorf("expected hid to be disabled")
	}

	if c.Transcription.Engine != EngineOpenAI || c.Assistant.APIHost != "http://localhost:8080" {
		t.Errorf("unexpected collaborators %+v %+v", c.Transcription, c.Assistant)
	}

	if c.Logging.Level != "debug" || c.Logging.Format != "json" {
		t.Errorf("unexpected logging config %+v", c.Logging)
	}
}

func TestLoad_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()

	if _, err := Load(fs, "missing.yaml"); err == nil {
		t.Errorf("expected error for a missing file")
	}

	afero.WriteFile(fs, "broken.yaml", []byte("audio: [1, 2"), 0o644)

	if _, err := Load(fs, "broken.yaml"); err == nil {
		t.Errorf("expected error for malformed yaml")
	}

	afero.WriteFile(fs, "invalid.yaml", []byte("silence:\n  threshold: -1\n"), 0o644)

	if _, err := Load(fs, "invalid.yaml"); err == nil || !strings.Contains(err.Error(), "validation") {
		t.Errorf("expected validation error, got %v", err)
	}
}
