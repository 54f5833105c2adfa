package errors

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a domain failure independent of transport.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindRateLimited
	KindUnauthorized
	KindForbidden
	KindInvalidArgument
	KindUpstream
	KindStorageUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindUpstream:
		return "upstream"
	case KindStorageUnavailable:
		return "storage_unavailable"
	default:
		return "internal"
	}
}

// Machine-readable codes returned to clients.
const (
	CodeNotFound          = "not_found"
	CodeInviteNotFound    = "code_not_found"
	CodeAlreadyJoined     = "already_joined"
	CodeSelfJoin          = "self_join"
	CodeAlreadyPaired     = "already_paired"
	CodeNotPaired         = "not_paired"
	CodePartnerMissing    = "partner_missing"
	CodeDailyLimit        = "daily_limit_reached"
	CodeCooldown          = "cooldown"
	CodeAlreadySwiped     = "already_swiped"
	CodeInvalidPromo      = "invalid_code"
	CodePromoLimitReached = "limit_reached"
	CodePromoExpired      = "expired"
	CodePromoApplied      = "already_applied"
	CodePromoExists       = "code_exists"
	CodePaymentNotFound   = "payment_not_found"
	CodePremiumRequired   = "premium_required"
	CodeInvalidInitData   = "invalid_init_data"
	CodeInvalidToken      = "invalid_token"
	CodeInvalidArgument   = "invalid_argument"
	CodeUnknownTier       = "unknown_tier"
	CodeStorage           = "storage_unavailable"
	CodeUpstream          = "upstream_unavailable"
)

// Error is the typed result every service returns for business-rule failures.
type Error struct {
	Kind       Kind
	Code       string
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind and code so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func NotFound(code, msg string) *Error { return New(KindNotFound, code, msg) }

func Conflict(code, msg string) *Error { return New(KindConflict, code, msg) }

func Forbidden(code, msg string) *Error { return New(KindForbidden, code, msg) }

func Unauthorized(code, msg string) *Error { return New(KindUnauthorized, code, msg) }

func Invalid(msg string) *Error { return New(KindInvalidArgument, CodeInvalidArgument, msg) }

// RateLimited carries how long the caller has to wait.
func RateLimited(code, msg string, retryAfter time.Duration) *Error {
	e := New(KindRateLimited, code, msg)
	e.RetryAfter = retryAfter
	return e
}

// Storage wraps an infrastructure failure of the database or cache.
func Storage(op string, err error) *Error {
	return &Error{Kind: KindStorageUnavailable, Code: CodeStorage, Message: op, Err: err}
}

// Upstream wraps a failure of an external collaborator (LLM, Telegram).
func Upstream(op string, err error) *Error {
	return &Error{Kind: KindUpstream, Code: CodeUpstream, Message: op, Err: err}
}

// Sentinels for errors.Is checks in callers and tests.
var (
	ErrInviteNotFound = NotFound(CodeInviteNotFound, "invalid invite code")
	ErrAlreadyJoined  = Conflict(CodeAlreadyJoined, "invite code already used")
	ErrSelfJoin       = Conflict(CodeSelfJoin, "cannot join your own pair")
	ErrAlreadyPaired  = Conflict(CodeAlreadyPaired, "already in an active pair")
	ErrNotPaired      = NotFound(CodeNotPaired, "no active pair")
	ErrPartnerMissing = Conflict(CodePartnerMissing, "partner has not joined yet")
	ErrDailyLimit     = RateLimited(CodeDailyLimit, "daily limit reached", 0)
	ErrCooldown       = RateLimited(CodeCooldown, "please wait before sending again", 0)
	ErrAlreadySwiped  = Conflict(CodeAlreadySwiped, "card already swiped")
	ErrInvalidPromo   = NotFound(CodeInvalidPromo, "invalid promo code")
	ErrPromoLimit     = Conflict(CodePromoLimitReached, "promo code usage limit reached")
	ErrPromoExpired   = Conflict(CodePromoExpired, "promo code expired")
	ErrPromoApplied   = Conflict(CodePromoApplied, "promo code already applied")
	ErrPremium        = Forbidden(CodePremiumRequired, "premium subscription required")
	ErrInitData       = Unauthorized(CodeInvalidInitData, "invalid telegram init data")
	ErrToken          = Unauthorized(CodeInvalidToken, "invalid session token")
	ErrUnknownTier    = NotFound(CodeUnknownTier, "unknown subscription tier")
	ErrPromoExists    = Conflict(CodePromoExists, "promo code already exists")
	ErrPaymentUnknown = NotFound(CodePaymentNotFound, "payment not found")
)

// With returns a copy of a sentinel carrying a retry hint.
func (e *Error) With(retryAfter time.Duration) *Error {
	c := *e
	c.RetryAfter = retryAfter
	return &c
}

// As extracts the domain error, if any.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// KindOf reports the kind of err; non-domain errors are internal.
func KindOf(err error) Kind {
	if de, ok := As(err); ok {
		return de.Kind
	}
	return KindInternal
}
