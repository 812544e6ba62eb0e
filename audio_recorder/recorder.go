package audio_recorder

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"assistant-voice-trigger/audio_device"
	"assistant-voice-trigger/metrics"
	"assistant-voice-trigger/silence_detection"
)

const (
	DefaultSampleRate  = 16000
	DefaultChunkSize   = 1024
	DefaultStopTimeout = 3 * time.Second

	channels   = 1
	bitDepth   = 16
	noSelected = -1
)

type recorderImpl struct {
	device      audio_device.Device
	fileSys     afero.Fs
	sampleRate  int
	chunkSize   int
	stopTimeout time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics

	onStart  func(Session)
	onStop   func(Session)
	onVolume func(float64)

	mu            sync.Mutex
	detector      silence_detection.Interface
	micIndex      int
	state         State
	stopRequested bool
	session       Session
	frames        [][]int16
	done          chan struct{}
}

type Config struct {
	Device  audio_device.Device
	FileSys afero.Fs

	// Microphone is the input device index to record from. Nil leaves the
	// recorder without a microphone until SetMicrophone is called.
	Microphone *int

	SampleRate      int
	ChunkSize       int
	Threshold       float64
	SilenceDuration time.Duration
	StopTimeout     time.Duration

	OnRecordingStart func(Session)
	OnRecordingStop  func(Session)
	OnVolumeUpdate   func(volume float64)

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

func New(cfg *Config) (Interface, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.Device == nil {
		return nil, fmt.Errorf("device is nil")
	}

	if cfg.FileSys == nil {
		return nil, fmt.Errorf("fileSys is nil")
	}

	r := &recorderImpl{
		device:      cfg.Device,
		fileSys:     cfg.FileSys,
		sampleRate:  valueOr(cfg.SampleRate, DefaultSampleRate),
		chunkSize:   valueOr(cfg.ChunkSize, DefaultChunkSize),
		stopTimeout: valueOr(cfg.StopTimeout, DefaultStopTimeout),
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		onStart:     cfg.OnRecordingStart,
		onStop:      cfg.OnRecordingStop,
		onVolume:    cfg.OnVolumeUpdate,
		micIndex:    noSelected,
		state:       Idle,
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}

	if cfg.Microphone != nil {
		r.micIndex = *cfg.Microphone
	}

	detector, err := silence_detection.New(&silence_detection.Config{
		Threshold:       valueOr(cfg.Threshold, silence_detection.DefaultThreshold),
		SilenceDuration: valueOr(cfg.SilenceDuration, silence_detection.DefaultSilenceDuration),
		SampleRate:      r.sampleRate,
		ChunkSize:       r.chunkSize,
	})
	if err != nil {
		return nil, fmt.Errorf("silence detector: %w", err)
	}

	r.detector = detector

	return r, nil
}

func valueOr[T int | float64 | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}

	return v
}

// SetMicrophone selects the input device. A negative index clears the selection.
func (r *recorderImpl) SetMicrophone(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if index < 0 {
		index = noSelected
	}

	r.micIndex = index
}

func (r *recorderImpl) SetSilenceSettings(threshold float64, duration time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Idle {
		return ErrAlreadyRecording
	}

	return r.detector.Configure(threshold, duration, r.sampleRate, r.chunkSize)
}

// StartRecording launches a capture session and returns without waiting for it.
func (r *recorderImpl) StartRecording() error {
	r.mu.Lock()

	if r.state != Idle {
		r.mu.Unlock()

		return ErrAlreadyRecording
	}

	if r.micIndex == noSelected {
		r.mu.Unlock()

		return ErrDeviceUnavailable
	}

	r.detector.Reset()
	r.frames = nil
	r.stopRequested = false
	r.state = Recording
	r.session = Session{
		ID:              uuid.New(),
		MicrophoneIndex: r.micIndex,
		StartTime:       time.Now(),
		State:           Recording,
	}

	done := make(chan struct{})
	r.done = done
	session := r.session

	r.mu.Unlock()

	r.logger.Info("recording started",
		slog.String("session", session.ID.String()),
		slog.Int("microphone", session.MicrophoneIndex),
	)

	go r.captureLoop(session, done)

	r.safeCallback("recording start", func() {
		if r.onStart != nil {
			r.onStart(session)
		}
	})

	return nil
}

// StopRecording asks the capture loop to finish and waits for it up to the
// stop timeout. It is a no-op while idle.
func (r *recorderImpl) StopRecording() {
	r.mu.Lock()

	if r.state == Idle {
		r.mu.Unlock()

		return
	}

	r.stopRequested = true
	r.state = Stopping
	done := r.done
	id := r.session.ID

	r.mu.Unlock()

	select {
	case <-done:
		r.logger.Debug("capture loop stopped", slog.String("session", id.String()))
	case <-time.After(r.stopTimeout):
		r.logger.Warn("capture loop unresponsive",
			slog.String("session", id.String()),
			slog.Duration("timeout", r.stopTimeout),
			slog.Any("error", ErrStopTimeout),
		)
		r.metrics.ObserveStopTimeout()

		r.mu.Lock()
		if r.session.ID == id {
			r.state = Idle
		}
		r.mu.Unlock()
	}
}

func (r *recorderImpl) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state
}

func (r *recorderImpl) Session() Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.snapshot()
}

// snapshot must be called with mu held.
func (r *recorderImpl) snapshot() Session {
	s := r.session
	s.Frames = len(r.frames)
	s.State = r.state

	return s
}

func (r *recorderImpl) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.durationLocked()
}

func (r *recorderImpl) durationLocked() time.Duration {
	samples := len(r.frames) * r.chunkSize

	return time.Duration(samples) * time.Second / time.Duration(r.sampleRate)
}

// Buffer returns the captured frames as one contiguous buffer.
func (r *recorderImpl) Buffer() *audio.IntBuffer {
	r.mu.Lock()
	frames := r.frames
	r.mu.Unlock()

	return r.toIntBuffer(frames)
}

func (r *recorderImpl) toIntBuffer(frames [][]int16) *audio.IntBuffer {
	total := 0
	for _, f := range frames {
		total += len(f)
	}

	data := make([]int, 0, total)
	for _, f := range frames {
		for _, sample := range f {
			data = append(data, int(sample))
		}
	}

	return &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  r.sampleRate,
		},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
}

func (r *recorderImpl) Cleanup() {
	r.StopRecording()

	err := r.device.Terminate()
	if err != nil {
		r.logger.Warn("error while freeing audio", slog.Any("error", err))
	}
}

func (r *recorderImpl) safeCallback(name string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("callback panicked", slog.String("callback", name), slog.Any("panic", rec))
		}
	}()

	fn()
}
