package llm

import (
	"context"
	"strings"
	"sync"
)

// Mock is an offline Client. Without a scripted reply it answers with a
// canned supportive line, in Russian unless the system prompt is English.
type Mock struct {
	mu      sync.Mutex
	Replies []string
	Err     error
	Calls   []MockCall
}

// MockCall captures one Reply invocation.
type MockCall struct {
	System  string
	History []Message
	Message string
}

func (m *Mock) Reply(_ context.Context, system string, history []Message, message string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{
		System:  system,
		History: append([]Message(nil), history...),
		Message: message,
	})
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Replies) > 0 {
		r := m.Replies[0]
		m.Replies = m.Replies[1:]
		return r, nil
	}
	if strings.HasPrefix(system, "You") {
		return "Thank you for sharing. Try to tell your partner how you feel, calmly and without blame.", nil
	}
	return "Спасибо, что поделились. Попробуйте спокойно рассказать партнёру о своих чувствах, без упрёков.", nil
}
