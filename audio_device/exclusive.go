package audio_device

import "sync"

// exclusiveDevice lets one stream at a time hold the input. Open blocks
// until the previous handle is closed.
type exclusiveDevice struct {
	Device
	slot chan struct{}
}

// Exclusive serializes the handles opened on d, so at most one stream reads
// the input at a time.
func Exclusive(d Device) Device {
	return &exclusiveDevice{
		Device: d,
		slot:   make(chan struct{}, 1),
	}
}

func (e *exclusiveDevice) Open(params Params) (Handle, error) {
	e.slot <- struct{}{}

	handle, err := e.Device.Open(params)
	if err != nil {
		<-e.slot

		return nil, err
	}

	return &exclusiveHandle{Handle: handle, release: func() { <-e.slot }}, nil
}

type exclusiveHandle struct {
	Handle
	once    sync.Once
	release func()
}

func (h *exclusiveHandle) Close() error {
	err := h.Handle.Close()
	h.once.Do(h.release)

	return err
}
