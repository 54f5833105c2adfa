// Package pairing links two users into a pair through a short invite code.
package pairing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oggyb/pulse/internal/app"
	"github.com/oggyb/pulse/internal/db"
	svcErr "github.com/oggyb/pulse/internal/errors"
	"github.com/oggyb/pulse/internal/notify"
	"github.com/oggyb/pulse/internal/repository"
)

// View is a pair with its streak and, once joined, the other member.
type View struct {
	Pair    *db.Pair       `json:"pair"`
	Streak  *db.TreeStreak `json:"streak,omitempty"`
	Partner *db.User       `json:"partner,omitempty"`
}

// Joined reports whether the invite has been redeemed.
func (v *View) Joined() bool { return v != nil && v.Pair.Joined() }

// PartnerOf returns the member that is not userID, or 0 while unjoined.
func (v *View) PartnerOf(userID int64) int64 { return v.Pair.Other(userID) }

// Registry owns the pair lifecycle: invite, join, unlink.
type Registry struct {
	appCtx   *app.AppContext
	pairs    *repository.PairRepository
	streaks  *repository.StreakRepository
	users    *repository.UserRepository
	notifier notify.Notifier
	newCode  CodeGenerator
}

type Option func(*Registry)

// WithCodeGenerator replaces the random invite code source.
func WithCodeGenerator(gen CodeGenerator) Option {
	return func(r *Registry) { r.newCode = gen }
}

// WithNotifier sets who hears about joins.
func WithNotifier(n notify.Notifier) Option {
	return func(r *Registry) { r.notifier = n }
}

func NewRegistry(appCtx *app.AppContext, opts ...Option) *Registry {
	r := &Registry{
		appCtx:  appCtx,
		pairs:   repository.NewPairRepository(appCtx.DB),
		streaks: repository.NewStreakRepository(appCtx.DB),
		users:   repository.NewUserRepository(appCtx.DB),
		newCode: GenerateCode,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.notifier = notify.Safe(r.notifier, appCtx.Logger)
	return r
}

// NormalizeCode trims and upper-cases a user-typed code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CreateInvite returns the user's active pair, or creates an unjoined one.
//
// Behavior:
//   - Idempotent: an existing active pair (joined or not) is returned unchanged.
//   - The pair and its zero streak are written in one transaction.
//   - A code collision on the unique index redraws, up to MaxCodeAttempts.
func (r *Registry) CreateInvite(ctx context.Context, userID int64) (*View, error) {
	existing, err := r.pairs.FindActiveForUser(ctx, userID)
	if err != nil {
		return nil, svcErr.Storage("find pair", err)
	}
	if existing != nil {
		return r.view(ctx, existing, userID)
	}

	for attempt := 1; attempt <= MaxCodeAttempts; attempt++ {
		code, err := r.newCode()
		if err != nil {
			return nil, fmt.Errorf("generate invite code: %w", err)
		}

		p := &db.Pair{
			ID:         uuid.NewString(),
			CreatorID:  userID,
			InviteCode: code,
			IsActive:   true,
		}
		err = r.pairs.CreateWithStreak(ctx, p)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			r.appCtx.Logger.Warn("invite code collision", "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, svcErr.Storage("create pair", err)
		}

		r.appCtx.Logger.Info("invite created", "pair_id", p.ID, "creator", userID)
		return r.view(ctx, p, userID)
	}
	return nil, fmt.Errorf("no free invite code after %d attempts", MaxCodeAttempts)
}

// JoinInvite redeems code for userID.
//
// Errors, in check order:
//   - ErrInviteNotFound: no active pair carries the code.
//   - ErrAlreadyJoined: the pair already has a partner (also when a racing joiner won).
//   - ErrSelfJoin: userID created the pair.
//   - ErrAlreadyPaired: userID is already in another active joined pair.
//
// The already-paired check, the deactivation of the joiner's own unjoined
// invites and the conditional partner write share one transaction.
func (r *Registry) JoinInvite(ctx context.Context, userID int64, code string) (*View, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, svcErr.ErrInviteNotFound
	}

	p, err := r.pairs.FindActiveByCode(ctx, code)
	if err != nil {
		return nil, svcErr.Storage("find invite", err)
	}
	switch {
	case p == nil:
		return nil, svcErr.ErrInviteNotFound
	case p.Joined():
		return nil, svcErr.ErrAlreadyJoined
	case p.CreatorID == userID:
		return nil, svcErr.ErrSelfJoin
	}

	now := r.appCtx.Now()
	err = r.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Both members are locked in id order so concurrent joins touching
		// either user run one after the other.
		users := r.users.WithTx(tx)
		for _, id := range lockOrder(userID, p.CreatorID) {
			if _, err := users.LockForUpdate(ctx, id); err != nil {
				return err
			}
		}

		pairs := r.pairs.WithTx(tx)
		paired, err := pairs.HasActiveJoined(ctx, userID)
		if err != nil {
			return err
		}
		if paired {
			return svcErr.ErrAlreadyPaired
		}
		if _, err := pairs.DeactivateIncomplete(ctx, userID, p.ID); err != nil {
			return err
		}
		ok, err := pairs.SetPartner(ctx, p.ID, userID, now)
		if err != nil {
			return err
		}
		if !ok {
			return svcErr.ErrAlreadyJoined
		}
		return nil
	})
	if err != nil {
		if _, ok := svcErr.As(err); ok {
			return nil, err
		}
		return nil, svcErr.Storage("join pair", err)
	}

	p.PartnerID = &userID
	p.PairedAt = &now
	r.appCtx.Logger.Info("pair joined", "pair_id", p.ID, "creator", p.CreatorID, "partner", userID)

	v, err := r.view(ctx, p, userID)
	if err != nil {
		return nil, err
	}

	joiner, err := r.users.FindOptional(ctx, userID)
	if err == nil {
		_ = r.notifier.PartnerJoined(ctx, p.CreatorID, joiner.DisplayName())
	}
	return v, nil
}

func lockOrder(a, b int64) []int64 {
	if a < b {
		return []int64{a, b}
	}
	return []int64{b, a}
}

// GetActivePair returns the user's current pair, or (nil, nil).
func (r *Registry) GetActivePair(ctx context.Context, userID int64) (*View, error) {
	p, err := r.pairs.FindActiveForUser(ctx, userID)
	if err != nil {
		return nil, svcErr.Storage("find pair", err)
	}
	if p == nil {
		return nil, nil
	}
	return r.view(ctx, p, userID)
}

// RequireJoined is GetActivePair for callers that need a partner.
func (r *Registry) RequireJoined(ctx context.Context, userID int64) (*View, error) {
	v, err := r.GetActivePair(ctx, userID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, svcErr.ErrNotPaired
	}
	if !v.Joined() {
		return nil, svcErr.ErrPartnerMissing
	}
	return v, nil
}

// Unlink deactivates the pair. Unlinking twice is a no-op.
func (r *Registry) Unlink(ctx context.Context, pairID string) error {
	if err := r.pairs.Deactivate(ctx, pairID); err != nil {
		return svcErr.Storage("unlink pair", err)
	}
	r.appCtx.Logger.Info("pair unlinked", "pair_id", pairID)
	return nil
}

// UnlinkForUser deactivates whatever active pair the user is in.
func (r *Registry) UnlinkForUser(ctx context.Context, userID int64) (*db.Pair, error) {
	p, err := r.pairs.FindActiveForUser(ctx, userID)
	if err != nil {
		return nil, svcErr.Storage("find pair", err)
	}
	if p == nil {
		return nil, svcErr.ErrNotPaired
	}
	if err := r.Unlink(ctx, p.ID); err != nil {
		return nil, err
	}
	p.IsActive = false
	return p, nil
}

func (r *Registry) view(ctx context.Context, p *db.Pair, userID int64) (*View, error) {
	s, err := r.streaks.Get(ctx, p.ID)
	if err != nil {
		return nil, svcErr.Storage("load streak", err)
	}
	v := &View{Pair: p, Streak: s}
	if other := p.Other(userID); other != 0 {
		partner, err := r.users.FindOptional(ctx, other)
		if err != nil {
			return nil, svcErr.Storage("load partner", err)
		}
		v.Partner = partner
	}
	return v, nil
}
