package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"assistant-voice-trigger/audio_device"
	"assistant-voice-trigger/audio_recorder"
	"assistant-voice-trigger/button_events"
	"assistant-voice-trigger/clients/ai_bot"
	"assistant-voice-trigger/config"
	"assistant-voice-trigger/hid_transport"
	"assistant-voice-trigger/metrics"
	"assistant-voice-trigger/speech_to_text"
	"assistant-voice-trigger/speech_to_text/whisper_engine"
	"assistant-voice-trigger/trigger_coordinator"
	"assistant-voice-trigger/wake_detection"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Listen for triggers and transcribe what is said",
	Long: `Listen for triggers and transcribe what is said.

Triggers:
  - release of the center button of the glasses (HID)
  - a sudden onset heard by the microphone (wake.enabled)
  - ENTER on the terminal

Recording stops after silence.duration of silence once speech was heard.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func run(ctx context.Context) error {
	fs := afero.NewOsFs()

	cfg, err := loadConfig(fs)
	if err != nil {
		return err
	}

	logger := initLogger(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	appMetrics := metrics.New()

	if cfg.Metrics.Enabled {
		shutdown := serveMetrics(cfg.Metrics.Address, appMetrics, logger)
		defer shutdown()
	}

	// the wake listener and the recorder share the microphone
	device := audio_device.Exclusive(audio_device.NewPortAudio())

	micIndex, err := selectMicrophone(device, cfg.Audio.Microphone, logger)
	if err != nil {
		device.Terminate()

		return err
	}

	recorder, err := audio_recorder.New(&audio_recorder.Config{
		Device:          device,
		FileSys:         fs,
		Microphone:      &micIndex,
		SampleRate:      cfg.Audio.SampleRate,
		ChunkSize:       cfg.Audio.ChunkSize,
		Threshold:       cfg.Silence.Threshold,
		SilenceDuration: cfg.Silence.Duration,
		StopTimeout:     cfg.Recorder.StopTimeout,
		OnRecordingStart: func(s audio_recorder.Session) {
			fmt.Println("Recording... speak now")
		},
		OnRecordingStop: func(s audio_recorder.Session) {
			fmt.Printf("Recording finished (%d chunks)\n", s.Frames)
		},
		Logger:  logger.With(slog.String("component", "recorder")),
		Metrics: appMetrics,
	})
	if err != nil {
		device.Terminate()

		return fmt.Errorf("error with audio_recorder.New: %w", err)
	}

	defer recorder.Cleanup()

	sttEngine, closeSTT, err := newTranscriber(cfg.Transcription, fs)
	if err != nil {
		return err
	}

	defer closeSTT()

	aiBotClient, err := newAssistant(cfg.Assistant)
	if err != nil {
		return err
	}

	coordinator, err := trigger_coordinator.New(&trigger_coordinator.Config{
		Recorder:       recorder,
		STTEngine:      sttEngine,
		FileSys:        fs,
		AIBotClient:    aiBotClient,
		OutputDir:      cfg.Recorder.OutputDir,
		KeepRecordings: cfg.Recorder.KeepRecordings,
		OnResult:       printResult,
		Logger:         logger.With(slog.String("component", "coordinator")),
		Metrics:        appMetrics,
	})
	if err != nil {
		return fmt.Errorf("error with trigger_coordinator.New: %w", err)
	}

	dispatcher, err := button_events.New(&button_events.Config{
		Workers:          cfg.Buttons.Workers,
		QueueSize:        cfg.Buttons.QueueSize,
		MinPressDuration: cfg.Buttons.MinPressDuration,
		Logger:           logger.With(slog.String("component", "buttons")),
		Metrics:          appMetrics,
	})
	if err != nil {
		return fmt.Errorf("error with button_events.New: %w", err)
	}

	defer dispatcher.Close()

	registerButtons(dispatcher, coordinator, logger)

	if cfg.HID.Enabled {
		transport, err := hid_transport.New(&hid_transport.Config{
			VendorID:  cfg.HID.VendorID,
			ProductID: cfg.HID.ProductID,
			Path:      cfg.HID.Path,
			Logger:    logger.With(slog.String("component", "hid")),
		})
		if err != nil {
			return fmt.Errorf("error with hid_transport.New: %w", err)
		}

		transport.RegisterReportHandler(dispatcher.OnReport)

		err = transport.Open()
		if err != nil {
			logger.Warn("glasses buttons unavailable, use ENTER to record", slog.Any("error", err))
		} else {
			defer transport.Close()
		}
	}

	// trigger sources are waited for before the collaborators are torn down
	var sources sync.WaitGroup

	if cfg.Wake.Enabled {
		listener, err := newWakeListener(cfg, device, micIndex, coordinator, logger.With(slog.String("component", "wake")))
		if err != nil {
			return err
		}

		sources.Add(1)

		go func() {
			defer sources.Done()

			err := listener.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("wake listener stopped", slog.Any("error", err))
			}
		}()
	}

	sources.Add(1)

	go func() {
		defer sources.Done()

		manualTrigger(ctx, os.Stdin, coordinator, logger)
	}()

	logger.Info("ready",
		slog.Int("microphone", micIndex),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Float64("silence_threshold", cfg.Silence.Threshold),
		slog.Duration("silence_duration", cfg.Silence.Duration),
		slog.String("engine", cfg.Transcription.Engine),
		slog.String("assistant", cfg.Assistant.Kind),
	)
	fmt.Println("Press ENTER to record, Ctrl+C to quit")

	<-ctx.Done()

	logger.Info("shutting down")

	sources.Wait()

	return nil
}

// newWakeListener builds the onset listener. It releases the microphone
// while the coordinator runs a cycle.
func newWakeListener(cfg *config.Config, device audio_device.Device, micIndex int, coordinator trigger_coordinator.Interface, logger *slog.Logger) (wake_detection.Listener, error) {
	listener, err := wake_detection.New(&wake_detection.Config{
		Device:          device,
		MicrophoneIndex: micIndex,
		SampleRate:      cfg.Audio.SampleRate,
		ChunkSize:       cfg.Audio.ChunkSize,
		OnsetRatio:      cfg.Wake.OnsetRatio,
		MinFlux:         cfg.Wake.MinFlux,
		Cooldown:        cfg.Wake.Cooldown,
		OnWake: func(ctx context.Context) error {
			return coordinator.OnTrigger(ctx, trigger_coordinator.SourceWake)
		},
		Paused: coordinator.Busy,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("error with wake_detection.New: %w", err)
	}

	return listener, nil
}

// selectMicrophone resolves -1 to the first input device.
func selectMicrophone(device audio_device.Device, index int, logger *slog.Logger) (int, error) {
	if index >= 0 {
		return index, nil
	}

	mic, err := audio_device.DefaultMicrophone(device)
	if err != nil {
		return 0, fmt.Errorf("selecting microphone: %w", err)
	}

	logger.Info("using default microphone", slog.Int("index", mic.Index), slog.String("name", mic.Name))

	return mic.Index, nil
}

func newTranscriber(cfg config.TranscriptionConfig, fs afero.Fs) (speech_to_text.Interface, func(), error) {
	switch cfg.Engine {
	case config.EngineOpenAI:
		stt, err := speech_to_text.NewOpenAI(&speech_to_text.OpenAIConfig{
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
			Model:    cfg.Model,
			Language: cfg.Language,
			FileSys:  fs,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("error with speech_to_text.NewOpenAI: %w", err)
		}

		return stt, func() {}, nil
	default:
		model, err := whisper.New(cfg.ModelPath)
		if err != nil {
			return nil, nil, fmt.Errorf("error loading model: %w", err)
		}

		stt, err := whisper_engine.New(&whisper_engine.Config{
			Model:    model,
			FileSys:  fs,
			Language: cfg.Language,
		})
		if err != nil {
			model.Close()

			return nil, nil, fmt.Errorf("error with whisper_engine.New: %w", err)
		}

		return stt, func() { model.Close() }, nil
	}
}

// newAssistant returns nil when transcripts are not forwarded.
func newAssistant(cfg config.AssistantConfig) (ai_bot.AIBotAPI, error) {
	switch cfg.Kind {
	case config.AssistantHTTP:
		client, err := ai_bot.NewClient(&ai_bot.Config{ApiHost: cfg.APIHost})
		if err != nil {
			return nil, fmt.Errorf("error with ai_bot.NewClient: %w", err)
		}

		return client, nil
	case config.AssistantOpenAI:
		client, err := ai_bot.NewChatClient(&ai_bot.ChatConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("error with ai_bot.NewChatClient: %w", err)
		}

		return client, nil
	default:
		return nil, nil
	}
}

func registerButtons(dispatcher button_events.Interface, coordinator trigger_coordinator.Interface, logger *slog.Logger) {
	record := func(ctx context.Context, event button_events.ButtonEvent) error {
		err := coordinator.OnTrigger(ctx, trigger_coordinator.SourceButton)
		if errors.Is(err, trigger_coordinator.ErrTriggerRejected) {
			return nil
		}

		return err
	}

	dispatcher.RegisterCallback(button_events.Center, record)
	dispatcher.RegisterCallback(button_events.CenterSound, record)

	logOnly := func(ctx context.Context, event button_events.ButtonEvent) error {
		logger.Info("button has no action", slog.String("event", event.String()))

		return nil
	}

	dispatcher.RegisterCallback(button_events.Plus, logOnly)
	dispatcher.RegisterCallback(button_events.Minus, logOnly)
	dispatcher.RegisterCallback(button_events.Unknown, logOnly)
}

// manualTrigger records once per line read from in and returns when ctx is
// cancelled or in is exhausted.
func manualTrigger(ctx context.Context, in io.Reader, coordinator trigger_coordinator.Interface, logger *slog.Logger) {
	lines := make(chan struct{})

	// left blocked on a terminal read after shutdown; it touches nothing else
	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-lines:
			if !ok {
				return
			}

			err := coordinator.OnTrigger(ctx, trigger_coordinator.SourceManual)
			if err != nil && !errors.Is(err, trigger_coordinator.ErrTriggerRejected) {
				logger.Error("recording cycle failed", slog.Any("error", err))
			}
		}
	}
}

func printResult(r trigger_coordinator.Result) {
	if r.Transcript == "" {
		fmt.Println("No speech detected")

		return
	}

	fmt.Printf("You said: %s\n", r.Transcript)

	if r.Reply != "" {
		fmt.Printf("Assistant: %s\n", r.Reply)
	}
}

func serveMetrics(address string, m *metrics.Metrics, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", slog.String("address", address))

		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.Any("error", err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		server.Shutdown(ctx)
	}
}
