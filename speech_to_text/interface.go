package speech_to_text

import "context"

// Interface turns a saved WAV recording into text.
type Interface interface {
	Transcribe(ctx context.Context, wavPath string) (string, error)
}
