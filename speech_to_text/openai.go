package speech_to_text

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/spf13/afero"
)

const DefaultOpenAIModel = openai.AudioModelWhisper1

type openaiImpl struct {
	client   openai.Client
	fileSys  afero.Fs
	model    openai.AudioModel
	language string
}

type OpenAIConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	FileSys  afero.Fs
}

func NewOpenAI(cfg *OpenAIConfig) (Interface, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.FileSys == nil {
		return nil, fmt.Errorf("fileSys is nil")
	}

	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := openai.AudioModel(cfg.Model)
	if model == "" {
		model = DefaultOpenAIModel
	}

	return &openaiImpl{
		client:   openai.NewClient(opts...),
		fileSys:  cfg.FileSys,
		model:    model,
		language: cfg.Language,
	}, nil
}

func (stt *openaiImpl) Transcribe(ctx context.Context, wavPath string) (string, error) {
	f, err := stt.fileSys.Open(wavPath)
	if err != nil {
		return "", err
	}

	defer f.Close()

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(f, filepath.Base(wavPath), "audio/wav"),
		Model: stt.model,
	}

	if stt.language != "" {
		params.Language = openai.String(stt.language)
	}

	resp, err := stt.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}

	return resp.Text, nil
}
