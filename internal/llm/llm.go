// Package llm talks to the language model behind the relationship assistant.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Message is one turn of a conversation.
type Message struct {
	Role string
	Text string
}

// Client produces the assistant's next reply.
type Client interface {
	Reply(ctx context.Context, system string, history []Message, message string) (string, error)
}

// ErrEmptyReply is returned when the model answers with no text.
var ErrEmptyReply = errors.New("llm: empty reply")

// GeminiClient is a Client backed by Google Gemini.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func NewGeminiClient(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model, timeout: timeout}, nil
}

func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// Reply starts a chat seeded with history and sends message.
func (c *GeminiClient) Reply(ctx context.Context, system string, history []Message, message string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(0.7)
	model.SystemInstruction = genai.NewUserContent(genai.Text(system))

	session := model.StartChat()
	for _, m := range history {
		session.History = append(session.History, &genai.Content{
			Role:  m.Role,
			Parts: []genai.Part{genai.Text(m.Text)},
		})
	}

	resp, err := session.SendMessage(ctx, genai.Text(message))
	if err != nil {
		return "", fmt.Errorf("gemini send: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyReply
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", ErrEmptyReply
	}
	return out, nil
}
