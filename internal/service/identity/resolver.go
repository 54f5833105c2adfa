// Package identity maps Telegram users onto stored identities.
package identity

import (
	"context"
	"strings"

	"github.com/oggyb/pulse/internal/app"
	"github.com/oggyb/pulse/internal/db"
	svcErr "github.com/oggyb/pulse/internal/errors"
	"github.com/oggyb/pulse/internal/repository"
)

// DefaultLanguage is stored when the client does not report one.
const DefaultLanguage = "ru"

// Resolver creates or refreshes users from verified profiles.
type Resolver struct {
	appCtx *app.AppContext
	users  *repository.UserRepository
}

func NewResolver(appCtx *app.AppContext) *Resolver {
	return &Resolver{
		appCtx: appCtx,
		users:  repository.NewUserRepository(appCtx.DB),
	}
}

// Resolve returns the stored user for p, creating it on first contact.
//
// Behavior:
//   - Username, names and language are refreshed on every call.
//   - The avatar is only taken on creation.
//   - Premium and billing fields are never touched here.
//   - Only storage failures are errors.
func (r *Resolver) Resolve(ctx context.Context, p Profile) (*db.User, error) {
	if p.ID <= 0 {
		return nil, svcErr.Invalid("telegram user id is required")
	}

	lang := strings.ToLower(strings.TrimSpace(p.LanguageCode))
	if lang == "" {
		lang = DefaultLanguage
	}

	u, err := r.users.Upsert(ctx, &db.User{
		ID:           p.ID,
		Username:     p.Username,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		LanguageCode: lang,
		AvatarURL:    p.PhotoURL,
	})
	if err != nil {
		r.appCtx.Logger.Error("resolve identity failed", "user_id", p.ID, "err", err)
		return nil, svcErr.Storage("resolve identity", err)
	}
	return u, nil
}

// Find loads a stored user by id.
func (r *Resolver) Find(ctx context.Context, id int64) (*db.User, error) {
	u, err := r.users.FindOptional(ctx, id)
	if err != nil {
		return nil, svcErr.Storage("load user", err)
	}
	if u == nil {
		return nil, svcErr.NotFound(svcErr.CodeNotFound, "user not found")
	}
	return u, nil
}
