// Package bot is the Telegram side of Pulse: the update loop, outgoing
// notifications and Stars invoice links.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"regexp"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/oggyb/pulse/internal/db"
	svcErr "github.com/oggyb/pulse/internal/errors"
	"github.com/oggyb/pulse/internal/service/billing"
	"github.com/oggyb/pulse/internal/service/identity"
	"github.com/oggyb/pulse/internal/service/pairing"
)

const (
	cbHowItWorks    = "how_it_works"
	cbConfirmUnlink = "confirm_unlink"
	cbCancelUnlink  = "cancel_unlink"
)

var typedCode = regexp.MustCompile(`^[A-Z0-9]{8}$`)

// UpdateSource yields updates by long polling.
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Options carries the links the bot puts into its replies.
type Options struct {
	WebAppURL   string
	BotUsername string
}

// Bot answers commands, deep links, callbacks and payment updates.
type Bot struct {
	api      Sender
	identity *identity.Resolver
	pairs    *pairing.Registry
	billing  *billing.Service
	opts     Options
	log      *slog.Logger
}

func New(api Sender, resolver *identity.Resolver, pairs *pairing.Registry, bill *billing.Service, opts Options, log *slog.Logger) *Bot {
	return &Bot{
		api:      api,
		identity: resolver,
		pairs:    pairs,
		billing:  bill,
		opts:     opts,
		log:      log.With("component", "bot"),
	}
}

// Run long-polls src until ctx is cancelled.
func (b *Bot) Run(ctx context.Context, src UpdateSource) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := src.GetUpdatesChan(u)

	b.log.Info("bot polling started")
	for {
		select {
		case <-ctx.Done():
			src.StopReceivingUpdates()
			b.log.Info("bot polling stopped")
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			b.Handle(ctx, upd)
		}
	}
}

// Handle dispatches one update. Errors are logged, never returned:
// Telegram does not redeliver.
func (b *Bot) Handle(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.PreCheckoutQuery != nil:
		b.onPreCheckout(ctx, upd.PreCheckoutQuery)
	case upd.CallbackQuery != nil:
		b.onCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil && upd.Message.SuccessfulPayment != nil:
		b.onPayment(ctx, upd.Message)
	case upd.Message != nil && upd.Message.IsCommand():
		b.onCommand(ctx, upd.Message)
	case upd.Message != nil && upd.Message.Text != "":
		b.onText(ctx, upd.Message)
	}
}

func profileOf(u *tgbotapi.User) identity.Profile {
	return identity.Profile{
		ID:           u.ID,
		Username:     u.UserName,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		LanguageCode: u.LanguageCode,
	}
}

func (b *Bot) reply(chatID int64, text, mode string, markup any) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = mode
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("reply failed", "chat_id", chatID, "err", err)
	}
}

func (b *Bot) welcomeKeyboard(paired bool, inviteCode string) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("🚀 Начать приключение", b.opts.WebAppURL)),
	}
	if !paired && inviteCode != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("💕 Поделиться с партнёром", ShareLink(InviteLink(b.opts.BotUsername, inviteCode))),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonURL("⭐️ Pulse Plus", b.opts.WebAppURL+"/premium"),
		tgbotapi.NewInlineKeyboardButtonData("❓ Как работает Pulse", cbHowItWorks),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) onCommand(ctx context.Context, m *tgbotapi.Message) {
	if m.From == nil {
		return
	}
	user, err := b.identity.Resolve(ctx, profileOf(m.From))
	if err != nil {
		b.log.Error("resolve user failed", "user_id", m.From.ID, "err", err)
		b.reply(m.Chat.ID, textFailed, "", nil)
		return
	}

	switch m.Command() {
	case "start":
		kind, arg := ParseStart(m.CommandArguments())
		switch kind {
		case StartJoin:
			b.join(ctx, m.Chat.ID, user, arg)
		case StartApplyPromo:
			b.applyPromo(ctx, m.Chat.ID, user, arg)
		default:
			b.start(ctx, m.Chat.ID, user)
		}
	case "link":
		b.link(ctx, m.Chat.ID, user)
	case "unlink":
		b.askUnlink(ctx, m.Chat.ID, user)
	}
}

func (b *Bot) start(ctx context.Context, chatID int64, user *db.User) {
	v, err := b.pairs.GetActivePair(ctx, user.ID)
	if err != nil {
		b.log.Error("load pair failed", "user_id", user.ID, "err", err)
		b.reply(chatID, textFailed, "", nil)
		return
	}
	if v.Joined() {
		b.reply(chatID, pairedText(user.DisplayName(), v.Partner.DisplayName(), v.Streak), tgbotapi.ModeMarkdownV2, b.welcomeKeyboard(true, ""))
		return
	}

	text := textWelcome + "\n\nСоздайте пару и пригласите партнёра\\!"
	code := ""
	if v != nil {
		code = v.Pair.InviteCode
		text = textWelcome + "\n\n📎 *Ваш код приглашения:* `" + code + "`\n\nОтправьте его партнёру\\!"
	}
	b.reply(chatID, text, tgbotapi.ModeMarkdownV2, b.welcomeKeyboard(false, code))
}

func (b *Bot) join(ctx context.Context, chatID int64, user *db.User, code string) {
	if _, err := b.pairs.JoinInvite(ctx, user.ID, code); err != nil {
		b.reply(chatID, "❌ "+errorText(err), "", nil)
		return
	}
	b.reply(chatID, textJoined, tgbotapi.ModeMarkdownV2, b.welcomeKeyboard(true, ""))
}

func (b *Bot) applyPromo(ctx context.Context, chatID int64, user *db.User, code string) {
	res, err := b.billing.ApplyPromo(ctx, user.ID, code)
	if err != nil {
		b.reply(chatID, "❌ Ошибка активации: "+errorText(err), "", nil)
		return
	}
	b.reply(chatID, promoText(res.Type, res.Days, res.Discount), tgbotapi.ModeMarkdownV2, b.welcomeKeyboard(true, ""))
}

func (b *Bot) link(ctx context.Context, chatID int64, user *db.User) {
	v, err := b.pairs.CreateInvite(ctx, user.ID)
	if err != nil {
		b.reply(chatID, "❌ "+errorText(err), "", nil)
		return
	}
	if v.Joined() {
		b.reply(chatID, textAlreadyPaired, "", nil)
		return
	}
	link := InviteLink(b.opts.BotUsername, v.Pair.InviteCode)
	b.reply(chatID, inviteText(v.Pair.InviteCode, link), "", tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("Поделиться", ShareLink(link))),
	))
}

func (b *Bot) askUnlink(ctx context.Context, chatID int64, user *db.User) {
	v, err := b.pairs.GetActivePair(ctx, user.ID)
	if err != nil {
		b.reply(chatID, textFailed, "", nil)
		return
	}
	if v == nil {
		b.reply(chatID, textNotPaired, "", nil)
		return
	}
	b.reply(chatID, textUnlinkConfirm, "", tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("❌ Да, разорвать", cbConfirmUnlink),
		tgbotapi.NewInlineKeyboardButtonData("💕 Нет, остаться", cbCancelUnlink),
	)))
}

func (b *Bot) onText(ctx context.Context, m *tgbotapi.Message) {
	code := pairing.NormalizeCode(m.Text)
	if m.From == nil || !typedCode.MatchString(code) {
		return
	}
	user, err := b.identity.Resolve(ctx, profileOf(m.From))
	if err != nil {
		b.reply(m.Chat.ID, textFailed, "", nil)
		return
	}
	b.join(ctx, m.Chat.ID, user, code)
}

func (b *Bot) onCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		b.log.Warn("answer callback failed", "err", err)
	}
	if q.Message == nil || q.From == nil {
		return
	}
	chatID, msgID := q.Message.Chat.ID, q.Message.MessageID

	var text, mode string
	switch q.Data {
	case cbHowItWorks:
		text, mode = textHowItWorks, tgbotapi.ModeMarkdownV2
	case cbCancelUnlink:
		text = textUnlinkKept
	case cbConfirmUnlink:
		_, err := b.pairs.UnlinkForUser(ctx, q.From.ID)
		switch {
		case errors.Is(err, svcErr.ErrNotPaired):
			text = textNotPaired
		case err != nil:
			b.log.Error("unlink failed", "user_id", q.From.ID, "err", err)
			text = textFailed
		default:
			text = textUnlinked
		}
	default:
		return
	}

	edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
	edit.ParseMode = mode
	if _, err := b.api.Send(edit); err != nil {
		b.log.Warn("edit message failed", "err", err)
	}
}

// onPreCheckout approves only payloads of pending payments. Telegram
// expects an answer within ten seconds.
func (b *Bot) onPreCheckout(ctx context.Context, q *tgbotapi.PreCheckoutQuery) {
	ok, err := b.billing.IsPending(ctx, q.InvoicePayload)
	if err != nil {
		b.log.Error("pre-checkout lookup failed", "err", err)
	}
	answer := tgbotapi.PreCheckoutConfig{PreCheckoutQueryID: q.ID, OK: ok}
	if !ok {
		answer.ErrorMessage = textPayExpired
	}
	if _, err := b.api.Request(answer); err != nil {
		b.log.Error("answer pre-checkout failed", "err", err)
	}
}

func (b *Bot) onPayment(ctx context.Context, m *tgbotapi.Message) {
	sp := m.SuccessfulPayment
	if _, err := b.billing.Fulfill(ctx, sp.InvoicePayload, sp.TelegramPaymentChargeID); err != nil {
		b.log.Error("fulfill payment failed", "payload", sp.InvoicePayload, "err", err)
		return
	}
	b.reply(m.Chat.ID, textThanks, "", nil)
}

var errorTexts = map[string]string{
	svcErr.CodeInviteNotFound:    "Код приглашения не найден",
	svcErr.CodeAlreadyJoined:     "Этот код уже использован",
	svcErr.CodeSelfJoin:          "Нельзя присоединиться к своей паре",
	svcErr.CodeAlreadyPaired:     "Вы уже связаны с партнёром",
	svcErr.CodeInvalidPromo:      "Код не найден",
	svcErr.CodePromoLimitReached: "Код больше не активен",
	svcErr.CodePromoExpired:      "Срок действия кода истёк",
	svcErr.CodePromoApplied:      "Код уже применён",
}

// errorText turns a domain error into a short Russian message.
func errorText(err error) string {
	if de, ok := svcErr.As(err); ok {
		if t, ok := errorTexts[de.Code]; ok {
			return t
		}
	}
	return textFailed
}
