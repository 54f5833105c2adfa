// Package billing sells Pulse Plus for Telegram Stars and applies promo codes.
package billing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oggyb/pulse/internal/app"
	"github.com/oggyb/pulse/internal/db"
	svcErr "github.com/oggyb/pulse/internal/errors"
	"github.com/oggyb/pulse/internal/notify"
	"github.com/oggyb/pulse/internal/repository"
)

// Invoice is what the payment provider needs to build a Stars invoice link.
type Invoice struct {
	Title       string
	Description string
	Payload     string
	Currency    string
	Amount      int
}

// InvoiceLinker turns an invoice into a link the client can open.
type InvoiceLinker interface {
	CreateInvoiceLink(ctx context.Context, inv Invoice) (string, error)
}

// Service owns payments, entitlement and promo codes.
type Service struct {
	appCtx   *app.AppContext
	payments *repository.PaymentRepository
	users    *repository.UserRepository
	promos   *repository.PromoRepository
	linker   InvoiceLinker
	notifier notify.Notifier
}

func NewService(appCtx *app.AppContext, linker InvoiceLinker, notifier notify.Notifier) *Service {
	return &Service{
		appCtx:   appCtx,
		payments: repository.NewPaymentRepository(appCtx.DB),
		users:    repository.NewUserRepository(appCtx.DB),
		promos:   repository.NewPromoRepository(appCtx.DB),
		linker:   linker,
		notifier: notify.Safe(notifier, appCtx.Logger),
	}
}

// PricedTier is a tier with the user's discount applied.
type PricedTier struct {
	Tier
	OriginalPrice int `json:"originalPrice"`
	Discount      int `json:"discount"`
}

// TiersFor prices every tier for userID.
func (s *Service) TiersFor(ctx context.Context, userID int64) ([]PricedTier, error) {
	u, err := s.users.Find(ctx, userID)
	if err != nil {
		return nil, svcErr.Storage("load user", err)
	}
	out := make([]PricedTier, 0, len(Tiers))
	for _, t := range Tiers {
		pt := PricedTier{Tier: t, OriginalPrice: t.Price, Discount: u.Discount}
		pt.Price = DiscountedPrice(t.Price, u.Discount)
		out = append(out, pt)
	}
	return out, nil
}

// InvoiceResult is returned to the client that asked to pay.
type InvoiceResult struct {
	InvoiceLink string `json:"invoiceLink"`
	Payload     string `json:"payload"`
	Amount      int    `json:"amount"`
	Tier        string `json:"tier"`
}

// NewPayload draws the opaque invoice payload: 16 random bytes as hex.
func NewPayload() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// CreateInvoice stores a pending payment for the tier and asks the linker for a link.
func (s *Service) CreateInvoice(ctx context.Context, userID int64, tierID string) (*InvoiceResult, error) {
	tier, ok := TierByID(tierID)
	if !ok {
		return nil, svcErr.ErrUnknownTier
	}
	u, err := s.users.Find(ctx, userID)
	if err != nil {
		return nil, svcErr.Storage("load user", err)
	}

	payload, err := NewPayload()
	if err != nil {
		return nil, err
	}
	amount := DiscountedPrice(tier.Price, u.Discount)
	description := tier.Description
	if u.Discount > 0 {
		description += fmt.Sprintf(" (Applied %d%% discount!)", u.Discount)
	}

	p := &db.Payment{
		ID:       uuid.NewString(),
		UserID:   userID,
		Tier:     tier.ID,
		Amount:   amount,
		Currency: db.CurrencyStars,
		Status:   db.PaymentPending,
		Payload:  payload,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, svcErr.Storage("store payment", err)
	}

	link, err := s.linker.CreateInvoiceLink(ctx, Invoice{
		Title:       tier.Title,
		Description: description,
		Payload:     payload,
		Currency:    db.CurrencyStars,
		Amount:      amount,
	})
	if err != nil {
		s.appCtx.Logger.Error("invoice link failed", "user_id", userID, "tier", tier.ID, "err", err)
		return nil, svcErr.Upstream("create invoice link", err)
	}

	s.appCtx.Logger.Info("invoice created", "user_id", userID, "tier", tier.ID, "amount", amount)
	return &InvoiceResult{InvoiceLink: link, Payload: payload, Amount: amount, Tier: tier.ID}, nil
}

// IsPending reports whether payload names a payment still awaiting completion.
// The bot answers pre-checkout queries with it.
func (s *Service) IsPending(ctx context.Context, payload string) (bool, error) {
	p, err := s.payments.FindByPayload(ctx, payload)
	if err != nil {
		return false, svcErr.Storage("load payment", err)
	}
	return p != nil && p.Status == db.PaymentPending, nil
}

// Fulfill completes the payment behind payload. It is safe to call again:
// only the first call moves the payment out of pending and extends premium.
//
// Behavior:
//   - Unknown payload: ErrPaymentUnknown.
//   - The window grows by the stored tier's days, stacked onto an unexpired window.
//   - The discount and applied promo are cleared on the first completion.
func (s *Service) Fulfill(ctx context.Context, payload, chargeID string) (*db.Payment, error) {
	now := s.appCtx.Now()

	var (
		out   *db.Payment
		until time.Time
		first bool
	)
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payments := s.payments.WithTx(tx)
		users := s.users.WithTx(tx)

		p, err := payments.FindByPayload(ctx, payload)
		if err != nil {
			return err
		}
		if p == nil {
			return svcErr.ErrPaymentUnknown
		}

		won, err := payments.MarkCompleted(ctx, payload, chargeID, now)
		if err != nil {
			return err
		}
		if !won {
			out = p
			return nil
		}

		tier, ok := TierByID(p.Tier)
		if !ok {
			return svcErr.ErrUnknownTier
		}
		u, err := users.LockForUpdate(ctx, p.UserID)
		if err != nil {
			return err
		}
		until = extend(u.PremiumUntil, now, tier.Days)
		if err := users.SetPremium(ctx, u.ID, until, true); err != nil {
			return err
		}

		if out, err = payments.FindByPayload(ctx, payload); err != nil {
			return err
		}
		first = true
		return nil
	})
	if err != nil {
		if _, ok := svcErr.As(err); ok {
			return nil, err
		}
		s.appCtx.Logger.Error("fulfill payment failed", "payload", payload, "err", err)
		return nil, svcErr.Storage("fulfill payment", err)
	}

	if first {
		s.appCtx.Logger.Info("payment fulfilled", "user_id", out.UserID, "tier", out.Tier, "until", until)
		_ = s.notifier.PremiumActivated(ctx, out.UserID, until)
	}
	return out, nil
}

// extend stacks days onto the current window when it has not expired yet.
func extend(current *time.Time, now time.Time, days int) time.Time {
	base := now
	if current != nil && current.After(now) {
		base = *current
	}
	return base.Add(time.Duration(days) * 24 * time.Hour)
}

// Status is the user's entitlement summary.
type Status struct {
	IsPremium        bool        `json:"isPremium"`
	PremiumUntil     *time.Time  `json:"premiumUntil,omitempty"`
	Discount         int         `json:"discount"`
	AppliedPromoCode *string     `json:"appliedPromoCode,omitempty"`
	LastPayment      *db.Payment `json:"lastPayment,omitempty"`
}

func (s *Service) Status(ctx context.Context, userID int64) (*Status, error) {
	u, err := s.users.Find(ctx, userID)
	if err != nil {
		return nil, svcErr.Storage("load user", err)
	}
	last, err := s.payments.LatestCompleted(ctx, userID)
	if err != nil {
		return nil, svcErr.Storage("load payments", err)
	}
	return &Status{
		IsPremium:        u.HasPremium(s.appCtx.Now()),
		PremiumUntil:     u.PremiumUntil,
		Discount:         u.Discount,
		AppliedPromoCode: u.AppliedPromoCode,
		LastPayment:      last,
	}, nil
}
