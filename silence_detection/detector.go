package silence_detection

import (
	"fmt"
	"math"
	"time"

	"assistant-voice-trigger/ring_buffer"
)

const (
	DefaultThreshold       = 500
	DefaultSilenceDuration = time.Second
)

type detectorImpl struct {
	threshold      float64
	speechDetected bool
	volumes        *ring_buffer.Buffer[float64]
}

type Config struct {
	Threshold       float64
	SilenceDuration time.Duration
	SampleRate      int
	ChunkSize       int
}

func New(cfg *Config) (Interface, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	d := &detectorImpl{}

	err := d.Configure(cfg.Threshold, cfg.SilenceDuration, cfg.SampleRate, cfg.ChunkSize)
	if err != nil {
		return nil, err
	}

	return d, nil
}

// Configure replaces the detector settings and resets its state. The volume
// window holds silenceDuration worth of chunks, rounded down, at least one.
func (d *detectorImpl) Configure(threshold float64, silenceDuration time.Duration, sampleRate, chunkSize int) error {
	if threshold <= 0 {
		return fmt.Errorf("threshold must be positive, got %f", threshold)
	}

	if silenceDuration <= 0 {
		return fmt.Errorf("silence duration must be positive, got %s", silenceDuration)
	}

	if sampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	if chunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}

	d.threshold = threshold
	d.volumes = ring_buffer.New[float64](WindowCapacity(silenceDuration, sampleRate, chunkSize))
	d.speechDetected = false

	return nil
}

// ProcessChunk returns false once speech has been heard and the whole volume
// window has since stayed below the threshold.
func (d *detectorImpl) ProcessChunk(chunk []int16) bool {
	volume := RMS(chunk)
	d.volumes.Add(volume)

	if volume > d.threshold {
		d.speechDetected = true
	}

	// never cut off before the speaker has started
	if !d.speechDetected {
		return true
	}

	if d.volumes.Full() && d.volumes.Every(d.isSilent) {
		return false
	}

	return true
}

func (d *detectorImpl) isSilent(volume float64) bool {
	return volume < d.threshold
}

func (d *detectorImpl) Reset() {
	d.volumes.Clear()
	d.speechDetected = false
}

func (d *detectorImpl) Capacity() int {
	return d.volumes.Cap()
}

func (d *detectorImpl) SpeechDetected() bool {
	return d.speechDetected
}

// WindowCapacity is the number of chunks covering silenceDuration.
func WindowCapacity(silenceDuration time.Duration, sampleRate, chunkSize int) int {
	if chunkSize <= 0 {
		return 1
	}

	n := int(math.Floor(silenceDuration.Seconds() * float64(sampleRate) / float64(chunkSize)))
	if n < 1 {
		return 1
	}

	return n
}

// RMS is the root-mean-square amplitude of the samples. Empty input and any
// non-finite intermediate yield 0.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}

	meanSquare := sum / float64(len(samples))
	if math.IsNaN(meanSquare) || math.IsInf(meanSquare, 0) || meanSquare < 0 {
		return 0
	}

	volume := math.Sqrt(meanSquare)
	if math.IsNaN(volume) || math.IsInf(volume, 0) {
		return 0
	}

	return volume
}
