package bot_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/pulse/internal/bot"
	"github.com/oggyb/pulse/internal/db"
	"github.com/oggyb/pulse/internal/notify"
	"github.com/oggyb/pulse/internal/service/billing"
	"github.com/oggyb/pulse/internal/service/identity"
	"github.com/oggyb/pulse/internal/service/pairing"
	"github.com/oggyb/pulse/internal/testutil"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	err      error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) lastText(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	switch m := f.sent[len(f.sent)-1].(type) {
	case tgbotapi.MessageConfig:
		return m.Text
	case tgbotapi.EditMessageTextConfig:
		return m.Text
	}
	t.Fatalf("unexpected chattable %T", f.sent[len(f.sent)-1])
	return ""
}

func command(from *tgbotapi.User, text string, cmdLen int) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From:     from,
		Chat:     &tgbotapi.Chat{ID: from.ID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}}
}

type fixture struct {
	env     *testutil.Env
	api     *fakeAPI
	bot     *bot.Bot
	pairs   *pairing.Registry
	billing *billing.Service
	rec     *notify.Recorder
}

func setup(t *testing.T) *fixture {
	t.Helper()
	env := testutil.NewEnv(t)
	api := &fakeAPI{}
	rec := &notify.Recorder{}
	pairs := pairing.NewRegistry(env.App, pairing.WithNotifier(rec))
	bill := billing.NewService(env.App, bot.NewInvoiceLinker(fakeRequester{}), rec)
	b := bot.New(api, identity.NewResolver(env.App), pairs, bill,
		bot.Options{WebAppURL: "https://pulse.example", BotUsername: "pulse_bot"}, env.App.Logger)
	return &fixture{env: env, api: api, bot: b, pairs: pairs, billing: bill, rec: rec}
}

var (
	anna = &tgbotapi.User{ID: 1, FirstName: "Anna", LanguageCode: "ru"}
	bob  = &tgbotapi.User{ID: 2, FirstName: "Bob", LanguageCode: "en"}
)

func TestParseStart(t *testing.T) {
	cases := map[string]struct {
		kind bot.StartKind
		arg  string
	}{
		"":                {bot.StartPlain, ""},
		"invite_ABCD2345": {bot.StartJoin, "ABCD2345"},
		"promo_SPRING":    {bot.StartApplyPromo, "SPRING"},
		"invite_":         {bot.StartPlain, ""},
		"hello":           {bot.StartPlain, ""},
	}
	for in, want := range cases {
		kind, arg := bot.ParseStart(in)
		assert.Equal(t, want.kind, kind, in)
		assert.Equal(t, want.arg, arg, in)
	}
	assert.Equal(t, "https://t.me/pulse_bot?start=invite_ABCD2345", bot.InviteLink("pulse_bot", "ABCD2345"))
	assert.Equal(t, "11 марта 2026 г.", bot.FormatDateRU("2026-03-11"))
}

func TestStartAndJoinByDeepLink(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.bot.Handle(ctx, command(anna, "/link", 5))
	v, err := f.pairs.GetActivePair(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Contains(t, f.api.lastText(t), v.Pair.InviteCode)

	f.bot.Handle(ctx, command(bob, "/start invite_"+v.Pair.InviteCode, 6))
	assert.Contains(t, f.api.lastText(t), "Поздравляем")
	assert.Equal(t, []string{"partner_joined"}, f.rec.Kinds())

	joined, err := f.pairs.RequireJoined(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, v.Pair.ID, joined.Pair.ID)

	f.bot.Handle(ctx, command(anna, "/start", 6))
	assert.Contains(t, f.api.lastText(t), "Вы связаны с *Bob*")

	f.bot.Handle(ctx, command(bob, "/start invite_NOPE2345", 6))
	assert.Contains(t, f.api.lastText(t), "❌")
}

func TestJoinByTypedCode(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	v, err := f.pairs.CreateInvite(ctx, mustUser(t, f, anna))
	require.NoError(t, err)

	f.bot.Handle(ctx, tgbotapi.Update{Message: &tgbotapi.Message{
		From: bob, Chat: &tgbotapi.Chat{ID: 2}, Text: " " + v.Pair.InviteCode + " ",
	}})
	_, err = f.pairs.RequireJoined(ctx, 1)
	assert.NoError(t, err)
}

func mustUser(t *testing.T, f *fixture, u *tgbotapi.User) int64 {
	t.Helper()
	_, err := identity.NewResolver(f.env.App).Resolve(context.Background(), identity.Profile{ID: u.ID, FirstName: u.FirstName})
	require.NoError(t, err)
	return u.ID
}

func TestPromoDeepLink(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.billing.CreatePromo(ctx, billing.PromoInput{Code: "SPRING", Type: db.PromoPremium, Value: 14})
	require.NoError(t, err)

	f.bot.Handle(ctx, command(anna, "/start promo_spring", 6))
	assert.Contains(t, f.api.lastText(t), "14 дней")

	f.bot.Handle(ctx, command(anna, "/start promo_SPRING", 6))
	assert.Contains(t, f.api.lastText(t), "Код уже применён")
}

func TestUnlinkCallbacks(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.env.User(t, 1, "Anna")
	f.env.User(t, 2, "Bob")
	f.env.JoinedPair(t, "pair-1", 1, 2)

	f.bot.Handle(ctx, command(anna, "/unlink", 7))
	assert.Contains(t, f.api.lastText(t), "Вы уверены")

	cb := func(data string) tgbotapi.Update {
		return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
			ID: "cb", From: anna, Data: data,
			Message: &tgbotapi.Message{MessageID: 7, Chat: &tgbotapi.Chat{ID: 1}},
		}}
	}
	f.bot.Handle(ctx, cb("cancel_unlink"))
	assert.Contains(t, f.api.lastText(t), "сохранена")

	f.bot.Handle(ctx, cb("confirm_unlink"))
	assert.Contains(t, f.api.lastText(t), "Связь разорвана")
	v, err := f.pairs.GetActivePair(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, v)

	f.bot.Handle(ctx, cb("confirm_unlink"))
	assert.Contains(t, f.api.lastText(t), "не связаны")
}

func TestPaymentUpdates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.env.User(t, 1, "Anna")

	inv, err := f.billing.CreateInvoice(ctx, 1, billing.TierMonthly)
	require.NoError(t, err)
	assert.Equal(t, "https://t.me/$invoice", inv.InvoiceLink)

	preCheckout := func(payload string) tgbotapi.PreCheckoutConfig {
		f.bot.Handle(ctx, tgbotapi.Update{PreCheckoutQuery: &tgbotapi.PreCheckoutQuery{
			ID: "q", From: anna, Currency: "XTR", TotalAmount: inv.Amount, InvoicePayload: payload,
		}})
		req := f.api.requests[len(f.api.requests)-1]
		answer, ok := req.(tgbotapi.PreCheckoutConfig)
		require.True(t, ok)
		return answer
	}
	assert.True(t, preCheckout(inv.Payload).OK)
	assert.False(t, preCheckout("unknown").OK)

	paid := tgbotapi.Update{Message: &tgbotapi.Message{
		From: anna, Chat: &tgbotapi.Chat{ID: 1},
		SuccessfulPayment: &tgbotapi.SuccessfulPayment{
			Currency: "XTR", TotalAmount: inv.Amount,
			InvoicePayload: inv.Payload, TelegramPaymentChargeID: "charge-1",
		},
	}}
	f.bot.Handle(ctx, paid)
	assert.Contains(t, f.api.lastText(t), "Спасибо за покупку")
	assert.Equal(t, []string{"premium_activated"}, f.rec.Kinds())

	assert.False(t, preCheckout(inv.Payload).OK, "completed payments are not re-approved")

	f.bot.Handle(ctx, paid)
	assert.Len(t, f.rec.Kinds(), 1, "redelivered payment is a no-op")
}

type fakeRequester struct{ err error }

func (f fakeRequester) MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	if endpoint != "createInvoiceLink" || params["currency"] != "XTR" {
		return nil, errors.New("unexpected request")
	}
	raw, _ := json.Marshal("https://t.me/$invoice")
	return &tgbotapi.APIResponse{Ok: true, Result: raw}, nil
}

func TestNotifierTexts(t *testing.T) {
	api := &fakeAPI{}
	n := bot.NewNotifier(api, "https://pulse.example")
	ctx := context.Background()

	msg := "miss you"
	require.NoError(t, n.Love(ctx, 2, "Anna", &msg))
	assert.Equal(t, "💕 Anna отправил вам любовь:\n\n\"miss you\"", api.lastText(t))

	require.NoError(t, n.Love(ctx, 2, "Anna", nil))
	assert.Equal(t, "💕 Anna думает о вас и отправляет любовь!", api.lastText(t))

	require.NoError(t, n.DateCreated(ctx, 2, "Anna", "Our day", "2026-03-20", db.DateAnniversary))
	assert.Contains(t, api.lastText(t), "💍 Anna добавил\\(а\\) важную дату")
	assert.Contains(t, api.lastText(t), "20 марта 2026 г\\.")

	require.NoError(t, n.PremiumActivated(ctx, 1, time.Date(2026, 4, 9, 10, 0, 0, 0, time.UTC)))
	assert.Contains(t, api.lastText(t), "до 9 апреля 2026 г.")

	api.err = errors.New("blocked by user")
	assert.Error(t, n.PartnerJoined(ctx, 1, "Bob"))
}
