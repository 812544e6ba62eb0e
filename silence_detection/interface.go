package silence_detection

import "time"

// Interface decides, chunk by chunk, whether audio capture should continue.
// Implementations are not safe for concurrent use; the owner serializes calls.
type Interface interface {
	Configure(threshold float64, silenceDuration time.Duration, sampleRate, chunkSize int) error
	ProcessChunk(chunk []int16) bool
	Reset()
	Capacity() int
	SpeechDetected() bool
}
