package audio_device

import "errors"

var ErrNoMicrophone = errors.New("no input device available")

type Params struct {
	SampleRate  int
	Channels    int
	ChunkSize   int
	DeviceIndex int
}

type Microphone struct {
	Index      int
	Name       string
	Channels   int
	SampleRate float64
}

// Handle is an open capture stream. Read blocks until one chunk of
// ChunkSize*Channels samples is available.
type Handle interface {
	Read() ([]int16, error)
	Close() error
}

type Device interface {
	Open(params Params) (Handle, error)
	Microphones() ([]Microphone, error)
	// Terminate releases library level resources. Handles must be closed first.
	Terminate() error
}

// DefaultMicrophone returns the first input device the device reports.
func DefaultMicrophone(d Device) (Microphone, error) {
	mics, err := d.Microphones()
	if err != nil {
		return Microphone{}, err
	}

	if len(mics) == 0 {
		return Microphone{}, ErrNoMicrophone
	}

	return mics[0], nil
}
