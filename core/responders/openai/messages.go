package openai

import "github.com/sashabaranov/go-openai"

// exchange is one completed prompt and the answer given to it.
type exchange struct {
	prompt   string
	response string
}

func toChatMessages(instructions string, history []exchange, prompt string) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, 2*len(history)+2)
	if instructions != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: instructions,
		})
	}

	for _, turn := range history {
		messages = append(messages,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: turn.prompt},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: turn.response},
		)
	}

	return append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})
}
