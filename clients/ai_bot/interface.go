package ai_bot

import "context"

// AIBotAPI answers a transcribed prompt. NewClient talks to the prompt
// endpoint of the assistant server, NewChatClient to any OpenAI compatible
// chat completion API.
type AIBotAPI interface {
	SendPrompt(ctx context.Context, prompt string) (string, error)
}
