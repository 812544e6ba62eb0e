package audio_recorder

import (
	"time"

	"github.com/go-audio/audio"
	"github.com/google/uuid"
)

type State int

const (
	Idle State = iota
	Recording
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Session is a snapshot of the current or last recording session.
type Session struct {
	ID              uuid.UUID
	MicrophoneIndex int
	StartTime       time.Time
	Frames          int
	State           State
}

type Interface interface {
	SetMicrophone(index int)
	SetSilenceSettings(threshold float64, duration time.Duration) error
	StartRecording() error
	StopRecording()
	State() State
	Session() Session
	SaveRecording(path string) error
	Buffer() *audio.IntBuffer
	Duration() time.Duration
	Cleanup()
}
