// Package llm wraps the completion services the planner and the built-in
// handlers talk to. Providers are collaborators; the scheduler only depends
// on the Provider contract.
package llm

import "context"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message represents a conversation message
type Message struct {
	Role    Role
	Content string
}

// NewTextMessage creates a simple text-only message
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Content: text}
}

type ChatRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

type ChatResponse struct {
	ID           string
	Content      string
	FinishReason string
	Usage        Usage
}

type Usage struct {
	InputTokens  int
	OutputTokens int
}

type Provider interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// Complete is a convenience wrapper for single-turn prompts with an optional
// system prompt.
func Complete(ctx context.Context, p Provider, model, prompt, systemPrompt string) (string, error) {
	var msgs []Message
	if systemPrompt != "" {
		msgs = append(msgs, NewTextMessage(RoleSystem, systemPrompt))
	}
	msgs = append(msgs, NewTextMessage(RoleUser, prompt))

	resp, err := p.Chat(ctx, &ChatRequest{Model: model, Messages: msgs})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
