package audio_recorder

import (
	"log/slog"

	"assistant-voice-trigger/audio_device"
	"assistant-voice-trigger/silence_detection"
)

// captureLoop owns the device handle for one session. Every exit path closes
// the handle and returns the recorder to Idle.
func (r *recorderImpl) captureLoop(session Session, done chan struct{}) {
	defer close(done)
	defer r.finish(session)
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("capture loop panicked", slog.String("session", session.ID.String()), slog.Any("panic", rec))
		}
	}()

	handle, err := r.device.Open(audio_device.Params{
		SampleRate:  r.sampleRate,
		Channels:    channels,
		ChunkSize:   r.chunkSize,
		DeviceIndex: session.MicrophoneIndex,
	})
	if err != nil {
		r.logger.Error("error opening input device",
			slog.String("session", session.ID.String()),
			slog.Int("microphone", session.MicrophoneIndex),
			slog.Any("error", err),
		)

		return
	}

	defer func() {
		closeErr := handle.Close()
		if closeErr != nil {
			r.logger.Warn("error closing input device", slog.Any("error", closeErr))
		}
	}()

	for {
		r.mu.Lock()
		stop := r.session.ID != session.ID || r.stopRequested || r.state != Recording
		r.mu.Unlock()

		if stop {
			r.logger.Debug("stop requested", slog.String("session", session.ID.String()))

			return
		}

		chunk, err := handle.Read()
		if err != nil {
			r.logger.Error("error reading input device", slog.String("session", session.ID.String()), slog.Any("error", err))

			return
		}

		r.mu.Lock()

		// a timed out stop forced Idle while Read was blocked; drop the late chunk
		if r.session.ID != session.ID || r.state == Idle {
			r.mu.Unlock()

			return
		}

		r.frames = append(r.frames, chunk)

		if !r.stopRequested && !r.detector.ProcessChunk(chunk) {
			r.state = Stopping
			r.mu.Unlock()

			r.logger.Info("silence detected", slog.String("session", session.ID.String()))

			return
		}

		r.mu.Unlock()

		if r.onVolume != nil {
			volume := silence_detection.RMS(chunk)

			r.safeCallback("volume update", func() {
				r.onVolume(volume)
			})
		}
	}
}

func (r *recorderImpl) finish(session Session) {
	r.mu.Lock()

	// a timed out stop may already have handed the recorder to a new session
	if r.session.ID != session.ID {
		r.mu.Unlock()

		return
	}

	r.state = Idle
	final := r.snapshot()
	duration := r.durationLocked()

	r.mu.Unlock()

	result := "captured"
	if final.Frames == 0 {
		result = "empty"
	}

	r.metrics.ObserveRecording(result, duration.Seconds())

	r.logger.Info("recording finished",
		slog.String("session", final.ID.String()),
		slog.Int("frames", final.Frames),
		slog.Duration("duration", duration),
	)

	r.safeCallback("recording stop", func() {
		if r.onStop != nil {
			r.onStop(final)
		}
	})
}
