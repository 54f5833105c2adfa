// Package assistant is the pair's relationship psychologist chat.
package assistant

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/oggyb/pulse/internal/app"
	"github.com/oggyb/pulse/internal/db"
	svcErr "github.com/oggyb/pulse/internal/errors"
	"github.com/oggyb/pulse/internal/llm"
	"github.com/oggyb/pulse/internal/repository"
)

const (
	ContextMessages  = 20
	DefaultHistory   = 50
	MaxHistory       = 200
	MaxMessageLength = 2000
)

const promptEN = `You are a professional, empathetic, and wise relationship psychologist in the Pulse app.
Your goal is to help a couple improve their communication, intimacy, and understanding.
Keep your responses concise, supportive, and practical. Use a warm tone.
Never take sides; always look for common ground.
If they ask for advice, give it in a non-judgmental way.
Reference their activity together in Pulse if relevant.`

const promptRU = `Ты профессиональный, эмпатичный и мудрый семейный психолог в приложении Pulse.
Твоя цель помочь паре улучшить общение, близость и взаимопонимание.
Отвечай кратко, поддерживающе и практично. Используй теплый тон.
Никогда не вставай на чью-либо сторону, всегда ищи точки соприкосновения.
Если просят совета, давай его мягко и без осуждения.
Если уместно, упоминай их активность в приложении (клики любви, общие желания).`

// SystemPrompt picks the prompt for a language code; anything but English gets Russian.
func SystemPrompt(lang string) string {
	if strings.HasPrefix(strings.ToLower(lang), "en") {
		return promptEN
	}
	return promptRU
}

type Service struct {
	appCtx *app.AppContext
	chats  *repository.ChatRepository
	users  *repository.UserRepository
	client llm.Client
}

func NewService(appCtx *app.AppContext, client llm.Client) *Service {
	return &Service{
		appCtx: appCtx,
		chats:  repository.NewChatRepository(appCtx.DB),
		users:  repository.NewUserRepository(appCtx.DB),
		client: client,
	}
}

// Chat sends message on behalf of userID and returns the stored reply.
// The user message is kept even when the model call fails.
func (s *Service) Chat(ctx context.Context, pairID string, userID int64, message string) (*db.AiChat, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, svcErr.Invalid("message is required")
	}
	if utf8.RuneCountInString(message) > MaxMessageLength {
		return nil, svcErr.Invalid("message is too long")
	}

	u, err := s.users.Find(ctx, userID)
	if err != nil {
		return nil, svcErr.Storage("load user", err)
	}
	if !u.HasPremium(s.appCtx.Now()) {
		return nil, svcErr.ErrPremium
	}

	recent, err := s.chats.Recent(ctx, pairID, ContextMessages)
	if err != nil {
		return nil, svcErr.Storage("load chat", err)
	}
	history := make([]llm.Message, 0, len(recent))
	for _, m := range recent {
		history = append(history, llm.Message{Role: m.Role, Text: m.Message})
	}

	asked := s.appCtx.Now().Truncate(time.Millisecond)
	if err := s.chats.Create(ctx, &db.AiChat{
		ID:        uuid.NewString(),
		PairID:    pairID,
		UserID:    userID,
		Role:      db.RoleUser,
		Message:   message,
		CreatedAt: asked,
	}); err != nil {
		return nil, svcErr.Storage("store message", err)
	}

	reply, err := s.client.Reply(ctx, SystemPrompt(u.LanguageCode), history, message)
	if err != nil {
		s.appCtx.Logger.Error("assistant reply failed", "pair_id", pairID, "err", err)
		return nil, svcErr.Upstream("assistant reply", err)
	}

	out := &db.AiChat{
		ID:        uuid.NewString(),
		PairID:    pairID,
		UserID:    userID,
		Role:      db.RoleModel,
		Message:   reply,
		CreatedAt: replyTime(asked, s.appCtx.Now()),
	}
	if err := s.chats.Create(ctx, out); err != nil {
		return nil, svcErr.Storage("store reply", err)
	}
	return out, nil
}

// replyTime orders the reply strictly after the question it answers.
func replyTime(asked, now time.Time) time.Time {
	now = now.Truncate(time.Millisecond)
	if !now.After(asked) {
		return asked.Add(time.Millisecond)
	}
	return now
}

// History returns the pair's last messages, oldest first.
func (s *Service) History(ctx context.Context, pairID string, limit int) ([]db.AiChat, error) {
	if limit <= 0 {
		limit = DefaultHistory
	}
	limit = min(limit, MaxHistory)
	msgs, err := s.chats.Recent(ctx, pairID, limit)
	if err != nil {
		return nil, svcErr.Storage("load chat", err)
	}
	return msgs, nil
}
