package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"assistant-voice-trigger/audio_device"
	"assistant-voice-trigger/audio_recorder"
	"assistant-voice-trigger/button_events"
	"assistant-voice-trigger/config"
	"assistant-voice-trigger/trigger_coordinator"
)

type fakeCoordinator struct {
	mu      sync.Mutex
	sources []trigger_coordinator.Source
	err     error
}

func (c *fakeCoordinator) OnTrigger(ctx context.Context, source trigger_coordinator.Source) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sources = append(c.sources, source)

	return c.err
}

func (c *fakeCoordinator) Busy() bool {
	return false
}

func TestInitLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := initLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", slog.String("key", "value"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one log line, got %q", buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("expected json output: %v", err)
	}

	if entry["msg"] != "shown" || entry["key"] != "value" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestManualTrigger(t *testing.T) {
	coordinator := &fakeCoordinator{err: trigger_coordinator.ErrTriggerRejected}

	manualTrigger(context.Background(), strings.NewReader("\n\n\n"), coordinator, slog.Default())

	if len(coordinator.sources) != 3 {
		t.Fatalf("expected 3 triggers, got %d", len(coordinator.sources))
	}

	for _, s := range coordinator.sources {
		if s != trigger_coordinator.SourceManual {
			t.Errorf("unexpected source %s", s)
		}
	}
}

func TestRegisterButtons(t *testing.T) {
	coordinator := &fakeCoordinator{err: trigger_coordinator.ErrTriggerRejected}

	dispatcher, err := button_events.New(&button_events.Config{})
	if err != nil {
		t.Fatalf("error with button_events.New: %v", err)
	}

	registerButtons(dispatcher, coordinator, slog.Default())

	for _, id := range []byte{140, 141, 143} {
		dispatcher.OnReport([]byte{1, id, 0})
		dispatcher.OnReport([]byte{2, 0, 0})
	}

	dispatcher.Close()

	if len(coordinator.sources) != 2 {
		t.Fatalf("expected center and center_sound to trigger, got %v", coordinator.sources)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "config.yaml", []byte("audio:\n  microphone: 1\n"), 0o644)

	configPath, modelPath, microphone, logLevel = "config.yaml", "model.bin", 3, "debug"

	t.Cleanup(func() {
		configPath, modelPath, microphone, logLevel = "", "", -2, ""
	})

	cfg, err := loadConfig(fs)
	if err != nil {
		t.Fatalf("error loading config: %v", err)
	}

	if cfg.Audio.Microphone != 3 || cfg.Transcription.ModelPath != "model.bin" || cfg.Logging.Level != "debug" {
		t.Errorf("overrides not applied: %+v %+v %+v", cfg.Audio, cfg.Transcription, cfg.Logging)
	}

	logLevel = "loud"

	if _, err := loadConfig(fs); err == nil {
		t.Errorf("expected invalid override to fail validation")
	}
}

// sharedMicrophone records how many streams are open at once. Each stream
// yields loudChunks loud chunks and then silence.
type sharedMicrophone struct {
	mu     sync.Mutex
	open   int
	peak   int
	opened int
}

const (
	testChunkSize = 160
	loudChunks    = 4
)

func (m *sharedMicrophone) Open(params audio_device.Params) (audio_device.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.open++
	m.opened++

	if m.open > m.peak {
		m.peak = m.open
	}

	return &sharedStream{mic: m}, nil
}

func (m *sharedMicrophone) Microphones() ([]audio_device.Microphone, error) {
	return []audio_device.Microphone{{Index: 0, Name: "shared"}}, nil
}

func (m *sharedMicrophone) Terminate() error {
	return nil
}

func (m *sharedMicrophone) stats() (open, peak, opened int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.open, m.peak, m.opened
}

type sharedStream struct {
	mic   *sharedMicrophone
	reads int
}

func (s *sharedStream) Read() ([]int16, error) {
	time.Sleep(time.Millisecond)

	chunk := make([]int16, testChunkSize)

	if s.reads < loudChunks {
		for i := range chunk {
			chunk[i] = 2000
		}
	}

	s.reads++

	return chunk, nil
}

func (s *sharedStream) Close() error {
	s.mic.mu.Lock()
	defer s.mic.mu.Unlock()

	s.mic.open--

	return nil
}

type fakeTranscriber struct{}

func (fakeTranscriber) Transcribe(ctx context.Context, wavPath string) (string, error) {
	return "hello", nil
}

func TestWakeListenerAndRecorderShareMicrophone(t *testing.T) {
	mic := &sharedMicrophone{}
	device := audio_device.Exclusive(mic)
	fs := afero.NewMemMapFs()
	micIndex := 0

	recorder, err := audio_recorder.New(&audio_recorder.Config{
		Device:          device,
		FileSys:         fs,
		Microphone:      &micIndex,
		SampleRate:      16000,
		ChunkSize:       testChunkSize,
		Threshold:       500,
		SilenceDuration: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("error with audio_recorder.New: %v", err)
	}

	var results []trigger_coordinator.Result

	coordinator, err := trigger_coordinator.New(&trigger_coordinator.Config{
		Recorder:     recorder,
		STTEngine:    fakeTranscriber{},
		FileSys:      fs,
		PollInterval: time.Millisecond,
		OnResult:     func(r trigger_coordinator.Result) { results = append(results, r) },
	})
	if err != nil {
		t.Fatalf("error with trigger_coordinator.New: %v", err)
	}

	cfg := config.Default()
	cfg.Audio.ChunkSize = testChunkSize
	cfg.Wake.Enabled = true

	listener, err := newWakeListener(cfg, device, micIndex, coordinator, slog.Default())
	if err != nil {
		t.Fatalf("error with newWakeListener: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- listener.Run(ctx)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if open, _, _ := mic.stats(); open == 1 {
			break
		}

		if time.Now().After(deadline) {
			t.Fatalf("wake listener never opened the microphone")
		}

		time.Sleep(time.Millisecond)
	}

	if err := coordinator.OnTrigger(ctx, trigger_coordinator.SourceManual); err != nil {
		t.Fatalf("recording cycle failed: %v", err)
	}

	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	open, peak, opened := mic.stats()

	if peak != 1 {
		t.Errorf("expected one stream on the microphone at a time, peak was %d", peak)
	}

	if open != 0 {
		t.Errorf("expected every stream closed, %d still open", open)
	}

	if opened < 2 {
		t.Errorf("expected the listener and the recorder to open the microphone, got %d opens", opened)
	}

	if len(results) != 1 || results[0].Transcript != "hello" {
		t.Errorf("unexpected results %+v", results)
	}
}

func TestManualTrigger_StopsOnCancel(t *testing.T) {
	coordinator := &fakeCoordinator{}

	// never written, like an idle terminal
	in, out := io.Pipe()
	defer out.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		manualTrigger(ctx, in, coordinator, slog.Default())
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("manual trigger kept waiting for input after cancellation")
	}

	if len(coordinator.sources) != 0 {
		t.Errorf("unexpected triggers %v", coordinator.sources)
	}
}

func TestManualTrigger_WaitsForRunningCycle(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})

	coordinator := &blockingCoordinator{entered: entered, release: release}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		manualTrigger(ctx, strings.NewReader("\n"), coordinator, slog.Default())
		close(done)
	}()

	<-entered
	cancel()

	select {
	case <-done:
		t.Fatalf("manual trigger returned while its cycle was still running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("manual trigger did not return after its cycle finished")
	}
}

type blockingCoordinator struct {
	entered chan struct{}
	release chan struct{}
}

func (c *blockingCoordinator) OnTrigger(ctx context.Context, source trigger_coordinator.Source) error {
	close(c.entered)
	<-c.release

	return ctx.Err()
}

func (c *blockingCoordinator) Busy() bool {
	return false
}
