package identity

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	initdata "github.com/telegram-mini-apps/init-data-golang"

	"github.com/oggyb/pulse/internal/config"
	svcErr "github.com/oggyb/pulse/internal/errors"
)

// Profile is the Telegram user carried by Mini-App initData.
type Profile struct {
	ID           int64  `json:"id"`
	Username     string `json:"username,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
}

// Verifier turns a raw initData string into a trusted Profile.
type Verifier interface {
	Verify(initData string) (Profile, error)
}

// NewVerifier picks the verifier named by AUTH_VERIFIER.
func NewVerifier(cfg *config.Config, now func() time.Time) Verifier {
	if cfg.Auth.Verifier == config.VerifierTrusted {
		return TrustedVerifier{}
	}
	return NewTelegramVerifier(cfg.Telegram.BotToken, cfg.Auth.InitDataMaxAge, now)
}

// TelegramVerifier checks the initData signature against the bot token.
// Freshness is judged on its own clock so tests can pin time.
type TelegramVerifier struct {
	token  string
	maxAge time.Duration
	now    func() time.Time
}

func NewTelegramVerifier(botToken string, maxAge time.Duration, now func() time.Time) *TelegramVerifier {
	if now == nil {
		now = time.Now
	}
	return &TelegramVerifier{token: botToken, maxAge: maxAge, now: now}
}

func (v *TelegramVerifier) Verify(raw string) (Profile, error) {
	if err := initdata.Validate(raw, v.token, 0); err != nil {
		return Profile{}, svcErr.ErrInitData
	}
	data, err := initdata.Parse(raw)
	if err != nil {
		return Profile{}, svcErr.ErrInitData
	}
	if v.maxAge > 0 && v.now().Sub(data.AuthDate()) > v.maxAge {
		return Profile{}, svcErr.Unauthorized(svcErr.CodeInvalidInitData, "init data expired")
	}
	return profileOf(data)
}

// TrustedVerifier parses the user field without checking anything.
// Config validation only allows it in development.
type TrustedVerifier struct{}

func (TrustedVerifier) Verify(raw string) (Profile, error) {
	data, err := initdata.Parse(raw)
	if err != nil {
		return Profile{}, svcErr.ErrInitData
	}
	return profileOf(data)
}

func profileOf(data initdata.InitData) (Profile, error) {
	u := data.User
	if u.ID <= 0 {
		return Profile{}, svcErr.ErrInitData
	}
	return Profile{
		ID:           u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		LanguageCode: u.LanguageCode,
		PhotoURL:     u.PhotoURL,
	}, nil
}

// SignInitData builds a signed initData string for p. Used by the dev
// tooling and tests to produce payloads a TelegramVerifier accepts.
func SignInitData(botToken string, p Profile, authDate time.Time) (string, error) {
	user, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal user: %w", err)
	}
	payload := map[string]string{
		"user":     string(user),
		"query_id": "AAHdF6IQAAAAAN0XohDhrOrc",
	}
	values := url.Values{}
	for k, v := range payload {
		values.Set(k, v)
	}
	values.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	values.Set("hash", initdata.Sign(payload, botToken, authDate))
	return values.Encode(), nil
}
