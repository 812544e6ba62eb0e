package ai_bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultPrePrompt is prepended to every transcript.
const DefaultPrePrompt = "Answer as this question concisely:\n"

type chatImpl struct {
	client    openai.Client
	model     string
	prePrompt string
}

// ChatConfig targets any OpenAI compatible chat endpoint, LM Studio included.
type ChatConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	PrePrompt *string
}

func NewChatClient(cfg *ChatConfig) (AIBotAPI, error) {
	if cfg == nil {
		return nil, errors.New("missing parameter: cfg")
	}

	if cfg.Model == "" {
		return nil, errors.New("missing parameter: cfg.Model")
	}

	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	prePrompt := DefaultPrePrompt
	if cfg.PrePrompt != nil {
		prePrompt = *cfg.PrePrompt
	}

	return &chatImpl{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		prePrompt: prePrompt,
	}, nil
}

func (c *chatImpl) SendPrompt(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(c.prePrompt + prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat: empty response")
	}

	return resp.Choices[0].Message.Content, nil
}
