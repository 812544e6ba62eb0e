package wake_detection

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"assistant-voice-trigger/audio_device"
)

const (
	DefaultCooldown  = 500 * time.Millisecond
	DefaultPausePoll = 50 * time.Millisecond
)

type listenerImpl struct {
	device    audio_device.Device
	params    audio_device.Params
	detector  *OnsetDetector
	cooldown  time.Duration
	onWake    func(ctx context.Context) error
	paused    func() bool
	pausePoll time.Duration
	logger    *slog.Logger
}

type Config struct {
	Device          audio_device.Device
	MicrophoneIndex int
	SampleRate      int
	ChunkSize       int
	OnsetRatio      float64
	MinFlux         float64
	// Cooldown is waited after each wake before listening again.
	Cooldown time.Duration
	// OnWake runs with the input device released, so it may record from it.
	OnWake func(ctx context.Context) error
	// Paused reports when another capture owns the microphone. The listener
	// releases the device while it returns true.
	Paused    func() bool
	PausePoll time.Duration
	Logger    *slog.Logger
}

// Listener watches the microphone for an onset and fires OnWake.
type Listener interface {
	Run(ctx context.Context) error
}

func New(cfg *Config) (Listener, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.Device == nil {
		return nil, fmt.Errorf("device is nil")
	}

	if cfg.OnWake == nil {
		return nil, fmt.Errorf("onWake is nil")
	}

	if cfg.SampleRate <= 0 || cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("sample rate and chunk size must be positive")
	}

	l := &listenerImpl{
		device: cfg.Device,
		params: audio_device.Params{
			SampleRate:  cfg.SampleRate,
			Channels:    1,
			ChunkSize:   cfg.ChunkSize,
			DeviceIndex: cfg.MicrophoneIndex,
		},
		detector:  NewOnsetDetector(cfg.OnsetRatio, cfg.MinFlux),
		cooldown:  cfg.Cooldown,
		onWake:    cfg.OnWake,
		paused:    cfg.Paused,
		pausePoll: cfg.PausePoll,
		logger:    cfg.Logger,
	}

	if l.paused == nil {
		l.paused = func() bool { return false }
	}

	if l.pausePoll <= 0 {
		l.pausePoll = DefaultPausePoll
	}

	if l.cooldown <= 0 {
		l.cooldown = DefaultCooldown
	}

	if l.logger == nil {
		l.logger = slog.Default()
	}

	return l, nil
}

// Run listens until ctx is cancelled or the device fails.
func (l *listenerImpl) Run(ctx context.Context) error {
	l.logger.Info("waiting for wake")

	for {
		err := l.waitResumed(ctx)
		if err != nil {
			return err
		}

		woke, err := l.listenOnce(ctx)
		if err != nil {
			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if !woke {
			continue
		}

		l.logger.Info("wake detected")

		err = l.onWake(ctx)
		if err != nil {
			l.logger.Warn("wake trigger failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.cooldown):
		}
	}
}

// waitResumed blocks while the listener is paused.
func (l *listenerImpl) waitResumed(ctx context.Context) error {
	if !l.paused() {
		return ctx.Err()
	}

	l.logger.Debug("wake paused, microphone in use")

	ticker := time.NewTicker(l.pausePoll)
	defer ticker.Stop()

	for l.paused() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	l.logger.Debug("wake resumed")

	return nil
}

// listenOnce holds the device until an onset is heard, ctx is cancelled or
// the listener is paused.
func (l *listenerImpl) listenOnce(ctx context.Context) (bool, error) {
	handle, err := l.device.Open(l.params)
	if err != nil {
		return false, fmt.Errorf("opening input device: %w", err)
	}

	defer func() {
		closeErr := handle.Close()
		if closeErr != nil {
			l.logger.Warn("error closing input device", slog.Any("error", closeErr))
		}
	}()

	l.detector.Reset()

	for {
		if ctx.Err() != nil || l.paused() {
			return false, nil
		}

		chunk, err := handle.Read()
		if err != nil {
			return false, fmt.Errorf("reading input device: %w", err)
		}

		if l.detector.Process(chunk) {
			return true, nil
		}
	}
}
