package audio_device

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

type portaudioImpl struct {
	mu           sync.Mutex
	audioRunning bool
}

func NewPortAudio() Device {
	return &portaudioImpl{}
}

func (p *portaudioImpl) initAudio() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.audioRunning {
		err := portaudio.Initialize()
		if err != nil {
			return err
		}

		p.audioRunning = true
	}

	return nil
}

func (p *portaudioImpl) Terminate() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.audioRunning {
		return nil
	}

	p.audioRunning = false

	return portaudio.Terminate()
}

func (p *portaudioImpl) Microphones() ([]Microphone, error) {
	err := p.initAudio()
	if err != nil {
		return nil, err
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	mics := make([]Microphone, 0)

	for i, info := range devices {
		if info.MaxInputChannels <= 0 {
			continue
		}

		mics = append(mics, Microphone{
			Index:      i,
			Name:       info.Name,
			Channels:   info.MaxInputChannels,
			SampleRate: info.DefaultSampleRate,
		})
	}

	return mics, nil
}

func (p *portaudioImpl) Open(params Params) (Handle, error) {
	err := p.initAudio()
	if err != nil {
		return nil, err
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	if params.DeviceIndex < 0 || params.DeviceIndex >= len(devices) {
		return nil, fmt.Errorf("device index %d out of range", params.DeviceIndex)
	}

	info := devices[params.DeviceIndex]
	if info.MaxInputChannels < params.Channels {
		return nil, fmt.Errorf("device %q has %d input channels, need %d", info.Name, info.MaxInputChannels, params.Channels)
	}

	in := make([]int16, params.ChunkSize*params.Channels)

	streamParams := portaudio.LowLatencyParameters(info, nil)
	streamParams.Input.Channels = params.Channels
	streamParams.SampleRate = float64(params.SampleRate)
	streamParams.FramesPerBuffer = params.ChunkSize

	stream, err := portaudio.OpenStream(streamParams, in)
	if err != nil {
		return nil, err
	}

	err = stream.Start()
	if err != nil {
		stream.Close()

		return nil, err
	}

	return &streamHandle{stream: stream, in: in}, nil
}

type streamHandle struct {
	stream *portaudio.Stream
	in     []int16
}

func (h *streamHandle) Read() ([]int16, error) {
	err := h.stream.Read()
	if err != nil && err != portaudio.InputOverflowed {
		return nil, err
	}

	chunk := make([]int16, len(h.in))
	copy(chunk, h.in)

	return chunk, nil
}

func (h *streamHandle) Close() error {
	stopErr := h.stream.Stop()
	closeErr := h.stream.Close()

	if stopErr != nil {
		return stopErr
	}

	return closeErr
}
