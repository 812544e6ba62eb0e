package whisper_engine

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"

	"assistant-voice-trigger/speech_to_text"
)

type sttImpl struct {
	model    whisper.Model
	fileSys  afero.Fs
	language string
}

type Config struct {
	Model    whisper.Model
	FileSys  afero.Fs
	Language string
}

func New(cfg *Config) (speech_to_text.Interface, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.Model == nil {
		return nil, fmt.Errorf("model is nil")
	}

	if cfg.FileSys == nil {
		return nil, fmt.Errorf("fileSys is nil")
	}

	return &sttImpl{
		model:    cfg.Model,
		fileSys:  cfg.FileSys,
		language: cfg.Language,
	}, nil
}

func (stt *sttImpl) Transcribe(ctx context.Context, wavPath string) (string, error) {
	samples, err := stt.loadSamples(wavPath)
	if err != nil {
		return "", err
	}

	err = ctx.Err()
	if err != nil {
		return "", err
	}

	// Create processing context
	context, err := stt.model.NewContext()
	if err != nil {
		return "", err
	}

	if stt.language != "" {
		err = context.SetLanguage(stt.language)
		if err != nil {
			return "", err
		}
	}

	err = context.Process(samples, nil)
	if err != nil {
		return "", err
	}

	segments, err := outputSegments(context)
	if err != nil {
		return "", err
	}

	texts := make([]string, 0, len(segments))
	for _, segment := range segments {
		texts = append(texts, strings.TrimSpace(segment.Text))
	}

	return strings.Join(texts, " "), nil
}

func (stt *sttImpl) loadSamples(wavPath string) ([]float32, error) {
	f, err := stt.fileSys.Open(wavPath)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	decoder := wav.NewDecoder(f)

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", wavPath, err)
	}

	if int(decoder.SampleRate) != whisper.SampleRate {
		return nil, fmt.Errorf("whisper needs %d Hz audio, %s is %d Hz", whisper.SampleRate, wavPath, decoder.SampleRate)
	}

	if decoder.NumChans != 1 {
		return nil, fmt.Errorf("whisper needs mono audio, %s has %d channels", wavPath, decoder.NumChans)
	}

	return Normalize(buf), nil
}

// Normalize scales integer PCM into [-1, 1].
func Normalize(buf *audio.IntBuffer) []float32 {
	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = 16
	}

	scale := float32(int(1) << (bitDepth - 1))

	data := make([]float32, len(buf.Data))
	for i, s := range buf.Data {
		data[i] = float32(s) / scale
	}

	return data
}

// outputSegments drains the segments, skipping bracketed annotations such as
// "[BLANK_AUDIO]" and repeated text.
func outputSegments(context whisper.Context) ([]whisper.Segment, error) {
	seenText := make(map[string]bool)

	segments := make([]whisper.Segment, 0)

	for {
		segment, err := context.NextSegment()
		if err == io.EOF {
			return segments, nil
		} else if err != nil {
			return nil, err
		}

		text := strings.TrimSpace(segment.Text)

		if len(text) > 0 && (text[0] == '(' || text[0] == '[' ||
			text[len(text)-1] == ')' || text[len(text)-1] == ']') {
			continue
		}

		if seenText[text] {
			continue
		}

		seenText[text] = true

		segments = append(segments, segment)
	}
}
