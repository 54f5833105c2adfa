package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oggyb/pulse/internal/db"
	svcErr "github.com/oggyb/pulse/internal/errors"
)

// NormalizePromo trims and upper-cases a promo code.
func NormalizePromo(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func checkPromo(p *db.PromoCode, now time.Time) error {
	switch {
	case p == nil || !p.IsActive:
		return svcErr.ErrInvalidPromo
	case p.UsageLimit != nil && p.TimesUsed >= *p.UsageLimit:
		return svcErr.ErrPromoLimit
	case p.ExpiresAt != nil && now.After(*p.ExpiresAt):
		return svcErr.ErrPromoExpired
	}
	return nil
}

// ValidatePromo returns the promo if it can still be applied.
func (s *Service) ValidatePromo(ctx context.Context, code string) (*db.PromoCode, error) {
	p, err := s.promos.FindByCode(ctx, NormalizePromo(code))
	if err != nil {
		return nil, svcErr.Storage("load promo", err)
	}
	if err := checkPromo(p, s.appCtx.Now()); err != nil {
		return nil, err
	}
	return p, nil
}

// PromoResult tells the user what the code granted.
type PromoResult struct {
	Type         string     `json:"type"`
	Days         int        `json:"days,omitempty"`
	Discount     int        `json:"discount,omitempty"`
	PremiumUntil *time.Time `json:"premiumUntil,omitempty"`
}

// ApplyPromo redeems code for userID.
//
// Behavior:
//   - ErrPromoApplied when the user's current applied code is this one.
//   - Usage is taken by a conditional increment, so the last slot goes to one user.
//   - premium codes stack days onto the window; discount codes set the percent.
func (s *Service) ApplyPromo(ctx context.Context, userID int64, code string) (*PromoResult, error) {
	code = NormalizePromo(code)
	now := s.appCtx.Now()

	var res *PromoResult
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)
		promos := s.promos.WithTx(tx)

		u, err := users.LockForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if u.AppliedPromoCode != nil && *u.AppliedPromoCode == code {
			return svcErr.ErrPromoApplied
		}

		p, err := promos.FindByCode(ctx, code)
		if err != nil {
			return err
		}
		if err := checkPromo(p, now); err != nil {
			return err
		}

		ok, err := promos.Consume(ctx, p.ID)
		if err != nil {
			return err
		}
		if !ok {
			return svcErr.ErrPromoLimit
		}

		switch p.Type {
		case db.PromoPremium:
			until := extend(u.PremiumUntil, now, p.Value)
			if err := users.SetPremium(ctx, userID, until, false); err != nil {
				return err
			}
			if err := users.SetAppliedPromo(ctx, userID, p.Code); err != nil {
				return err
			}
			res = &PromoResult{Type: p.Type, Days: p.Value, PremiumUntil: &until}
		case db.PromoDiscount:
			if err := users.SetDiscount(ctx, userID, p.Value, p.Code); err != nil {
				return err
			}
			res = &PromoResult{Type: p.Type, Discount: p.Value}
		default:
			return svcErr.ErrInvalidPromo
		}
		return nil
	})
	if err != nil {
		if _, ok := svcErr.As(err); ok {
			return nil, err
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, svcErr.NotFound(svcErr.CodeNotFound, "user not found")
		}
		return nil, svcErr.Storage("apply promo", err)
	}

	s.appCtx.Logger.Info("promo applied", "user_id", userID, "code", code, "type", res.Type)
	return res, nil
}

// PromoInput is what an admin submits to create a code.
type PromoInput struct {
	Code       string     `json:"code" binding:"required,min=3,max=50,alphanum"`
	Type       string     `json:"type" binding:"required,oneof=premium discount"`
	Value      int        `json:"value" binding:"required,min=1"`
	UsageLimit *int       `json:"usageLimit" binding:"omitempty,min=1"`
	ExpiresAt  *time.Time `json:"expiresAt"`
}

// CreatePromo stores a new active code.
func (s *Service) CreatePromo(ctx context.Context, in PromoInput) (*db.PromoCode, error) {
	code := NormalizePromo(in.Code)
	switch {
	case code == "":
		return nil, svcErr.Invalid("code is required")
	case in.Type != db.PromoPremium && in.Type != db.PromoDiscount:
		return nil, svcErr.Invalid("type must be premium or discount")
	case in.Value < 1:
		return nil, svcErr.Invalid("value must be positive")
	case in.Type == db.PromoDiscount && in.Value > 100:
		return nil, svcErr.Invalid("discount is a percent")
	}

	p := &db.PromoCode{
		ID:         uuid.NewString(),
		Code:       code,
		Type:       in.Type,
		Value:      in.Value,
		UsageLimit: in.UsageLimit,
		ExpiresAt:  in.ExpiresAt,
		IsActive:   true,
	}
	if err := s.promos.Create(ctx, p); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, svcErr.ErrPromoExists
		}
		return nil, svcErr.Storage("create promo", err)
	}
	return p, nil
}

// Promos lists every code, newest first.
func (s *Service) Promos(ctx context.Context) ([]db.PromoCode, error) {
	codes, err := s.promos.List(ctx)
	if err != nil {
		return nil, svcErr.Storage("list promos", err)
	}
	return codes, nil
}
