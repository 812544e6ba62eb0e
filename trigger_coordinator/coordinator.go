package trigger_coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"assistant-voice-trigger/audio_recorder"
	"assistant-voice-trigger/clients/ai_bot"
	"assistant-voice-trigger/metrics"
	"assistant-voice-trigger/speech_to_text"
)

const (
	DefaultPollInterval = 50 * time.Millisecond
	DefaultOutputDir    = "recordings"
)

type coordinatorImpl struct {
	recorder       Recorder
	sttEngine      speech_to_text.Interface
	aiBotClient    ai_bot.AIBotAPI
	fileSys        afero.Fs
	outputDir      string
	pollInterval   time.Duration
	keepRecordings bool
	onResult       func(Result)
	logger         *slog.Logger
	metrics        *metrics.Metrics

	mu   sync.Mutex
	busy bool
}

type Config struct {
	Recorder  Recorder
	STTEngine speech_to_text.Interface
	FileSys   afero.Fs

	// AIBotClient receives the transcript when set.
	AIBotClient ai_bot.AIBotAPI

	OutputDir      string
	PollInterval   time.Duration
	KeepRecordings bool
	OnResult       func(Result)

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

func New(cfg *Config) (Interface, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.Recorder == nil {
		return nil, fmt.Errorf("recorder is nil")
	}

	if cfg.STTEngine == nil {
		return nil, fmt.Errorf("sttEngine is nil")
	}

	if cfg.FileSys == nil {
		return nil, fmt.Errorf("fileSys is nil")
	}

	c := &coordinatorImpl{
		recorder:       cfg.Recorder,
		sttEngine:      cfg.STTEngine,
		aiBotClient:    cfg.AIBotClient,
		fileSys:        cfg.FileSys,
		outputDir:      cfg.OutputDir,
		pollInterval:   cfg.PollInterval,
		keepRecordings: cfg.KeepRecordings,
		onResult:       cfg.OnResult,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
	}

	if c.outputDir == "" {
		c.outputDir = DefaultOutputDir
	}

	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c, nil
}

func (c *coordinatorImpl) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.busy
}

// OnTrigger runs one record, save and transcribe cycle on the caller's
// goroutine. Triggers arriving while a cycle runs are rejected.
func (c *coordinatorImpl) OnTrigger(ctx context.Context, source Source) error {
	c.mu.Lock()

	if c.busy {
		c.mu.Unlock()

		c.logger.Info("trigger ignored, cycle already running", slog.String("source", string(source)))
		c.metrics.ObserveTrigger(string(source), "rejected")

		return ErrTriggerRejected
	}

	c.busy = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	c.metrics.ObserveTrigger(string(source), "accepted")
	c.logger.Info("trigger accepted", slog.String("source", string(source)))

	result, err := c.runCycle(ctx, source)
	if err != nil {
		return err
	}

	if c.onResult != nil && result != nil {
		c.onResult(*result)
	}

	return nil
}

func (c *coordinatorImpl) runCycle(ctx context.Context, source Source) (*Result, error) {
	err := c.recorder.StartRecording()
	if err != nil {
		return nil, fmt.Errorf("start recording: %w", err)
	}

	err = c.waitIdle(ctx)
	if err != nil {
		return nil, err
	}

	session := c.recorder.Session()
	path := filepath.Join(c.outputDir, "recording-"+session.ID.String()+".wav")

	err = c.recorder.SaveRecording(path)
	if errors.Is(err, audio_recorder.ErrEmptyBuffer) {
		c.logger.Warn("nothing recorded", slog.String("session", session.ID.String()))

		return nil, err
	}

	if err != nil {
		return nil, fmt.Errorf("save recording: %w", err)
	}

	if !c.keepRecordings {
		defer func() {
			removeErr := c.fileSys.Remove(path)
			if removeErr != nil {
				c.logger.Warn("error removing recording", slog.String("path", path), slog.Any("error", removeErr))
			}
		}()
	}

	started := time.Now()

	text, err := c.sttEngine.Transcribe(ctx, path)
	if err != nil {
		c.metrics.ObserveTranscription("error")

		return nil, fmt.Errorf("transcribe: %w", err)
	}

	c.metrics.ObserveTranscription("ok")

	text = strings.TrimSpace(text)

	c.logger.Info("transcription finished",
		slog.String("session", session.ID.String()),
		slog.Duration("took", time.Since(started)),
		slog.String("text", text),
	)

	result := &Result{
		Source:     source,
		SessionID:  session.ID,
		Path:       path,
		Duration:   c.recorder.Duration(),
		Transcript: text,
	}

	if text == "" {
		c.logger.Info("no speech detected", slog.String("session", session.ID.String()))

		return result, nil
	}

	if c.aiBotClient != nil {
		reply, sendErr := c.aiBotClient.SendPrompt(ctx, text)
		if sendErr != nil {
			return nil, fmt.Errorf("send prompt: %w", sendErr)
		}

		result.Reply = reply

		c.logger.Info("assistant replied", slog.String("reply", reply))
	}

	return result, nil
}

// waitIdle polls the recorder until the capture loop has finished. A
// cancelled context stops the recording.
func (c *coordinatorImpl) waitIdle(ctx context.Context) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for c.recorder.State() != audio_recorder.Idle {
		select {
		case <-ctx.Done():
			c.recorder.StopRecording()

			return ctx.Err()
		case <-ticker.C:
		}
	}

	return nil
}
