package audio_recorder

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// SaveRecording writes the captured frames as a mono 16-bit PCM WAV file.
// Nothing is written when no frames were captured.
func (r *recorderImpl) SaveRecording(path string) error {
	r.mu.Lock()
	frames := r.frames
	r.mu.Unlock()

	if len(frames) == 0 {
		return ErrEmptyBuffer
	}

	if dir := filepath.Dir(path); dir != "." {
		err := r.fileSys.MkdirAll(dir, 0o755)
		if err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	waveFile, err := r.fileSys.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	defer waveFile.Close()

	encoder := wav.NewEncoder(waveFile, r.sampleRate, bitDepth, channels, wavFormatPCM)

	err = encoder.Write(r.toIntBuffer(frames))
	if err != nil {
		encoder.Close()

		return fmt.Errorf("writing %s: %w", path, err)
	}

	err = encoder.Close()
	if err != nil {
		return fmt.Errorf("finalizing %s: %w", path, err)
	}

	r.logger.Info("recording saved", slog.String("path", path), slog.Int("frames", len(frames)))

	return nil
}
