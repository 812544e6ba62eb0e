package trigger_coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"assistant-voice-trigger/audio_recorder"
)

// Source names what fired a trigger.
type Source string

const (
	SourceButton Source = "button"
	SourceWake   Source = "wake"
	SourceManual Source = "manual"
)

// ErrTriggerRejected is returned when a cycle is already running. The
// trigger is dropped, not queued.
var ErrTriggerRejected = errors.New("capture cycle already in progress")

// Recorder is the part of audio_recorder.Interface the coordinator drives.
type Recorder interface {
	StartRecording() error
	StopRecording()
	State() audio_recorder.State
	Session() audio_recorder.Session
	SaveRecording(path string) error
	Duration() time.Duration
}

type Result struct {
	Source     Source
	SessionID  uuid.UUID
	Path       string
	Duration   time.Duration
	Transcript string
	Reply      string
}

type Interface interface {
	OnTrigger(ctx context.Context, source Source) error
	Busy() bool
}
