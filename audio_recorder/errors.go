package audio_recorder

import "errors"

var (
	ErrDeviceUnavailable = errors.New("no microphone selected")
	ErrAlreadyRecording  = errors.New("already recording")
	ErrStopTimeout       = errors.New("capture loop did not stop in time")
	ErrEmptyBuffer       = errors.New("no audio captured")
)
