package bot

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the slice of *tgbotapi.BotAPI the bot uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Notifier delivers notifications as bot messages. Users are addressed by
// their Telegram id, which is also their private chat id.
type Notifier struct {
	api       Sender
	webAppURL string
}

func NewNotifier(api Sender, webAppURL string) *Notifier {
	return &Notifier{api: api, webAppURL: webAppURL}
}

func (n *Notifier) openButton(text, path string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(text, n.webAppURL+path)),
	)
}

func (n *Notifier) send(chatID int64, text, parseMode string, markup *tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = parseMode
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}

func (n *Notifier) Love(_ context.Context, receiverID int64, senderName string, message *string) error {
	kb := n.openButton("💕 Открыть Pulse", "")
	return n.send(receiverID, loveText(senderName, message), "", &kb)
}

func (n *Notifier) DateCreated(_ context.Context, receiverID int64, creatorName, title, eventDate, category string) error {
	kb := n.openButton("📅 Открыть даты", "/dates")
	return n.send(receiverID, dateCreatedText(creatorName, title, eventDate, category), tgbotapi.ModeMarkdownV2, &kb)
}

func (n *Notifier) DateReminder(_ context.Context, receiverID int64, title, eventDate, description string) error {
	return n.send(receiverID, reminderText(title, eventDate, description), tgbotapi.ModeMarkdownV2, nil)
}

func (n *Notifier) PartnerJoined(_ context.Context, creatorID int64, partnerName string) error {
	kb := n.openButton("🚀 Начать приключение", "")
	return n.send(creatorID, partnerJoinedText(partnerName), "", &kb)
}

func (n *Notifier) PremiumActivated(_ context.Context, userID int64, until time.Time) error {
	return n.send(userID, premiumText(until), "", nil)
}
