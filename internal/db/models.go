package db

import (
	"time"
)

// User is one real-world end user, keyed by the Telegram user id.
type User struct {
	ID               int64      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Username         string     `gorm:"size:100;index" json:"username,omitempty"`
	FirstName        string     `gorm:"size:100" json:"firstName"`
	LastName         string     `gorm:"size:100" json:"lastName,omitempty"`
	LanguageCode     string     `gorm:"size:10;not null" json:"languageCode"`
	AvatarURL        string     `gorm:"size:500" json:"avatarUrl,omitempty"`
	IsPremium        bool       `gorm:"not null" json:"isPremium"`
	PremiumUntil     *time.Time `json:"premiumUntil,omitempty"`
	Discount         int        `gorm:"not null" json:"discount"`
	AppliedPromoCode *string    `gorm:"size:50" json:"appliedPromoCode,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// HasPremium reports whether the user is entitled at the given instant.
func (u *User) HasPremium(now time.Time) bool {
	if u == nil || !u.IsPremium {
		return false
	}
	return u.PremiumUntil == nil || u.PremiumUntil.After(now)
}

// DisplayName is the name shown to the partner in notifications.
func (u *User) DisplayName() string {
	switch {
	case u == nil:
		return ""
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return "@" + u.Username
	default:
		return "Partner"
	}
}

// Pair links a creator and, once the invite is redeemed, a partner.
//
// Indexes:
//   - invite_code is unique, so a colliding code fails the insert and is redrawn.
//   - creator_id / partner_id back the "active pair for user" lookup.
type Pair struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	CreatorID  int64      `gorm:"column:creator_id;not null;index" json:"creatorId"`
	PartnerID  *int64     `gorm:"column:partner_id;index" json:"partnerId,omitempty"`
	InviteCode string     `gorm:"size:16;not null;uniqueIndex" json:"inviteCode"`
	IsActive   bool       `gorm:"not null;index" json:"isActive"`
	PairedAt   *time.Time `json:"pairedAt,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// Joined reports whether the second member has redeemed the invite.
func (p *Pair) Joined() bool { return p.PartnerID != nil }

// Other returns the member that is not userID, or 0 if there is none yet.
func (p *Pair) Other(userID int64) int64 {
	if p.CreatorID == userID {
		if p.PartnerID == nil {
			return 0
		}
		return *p.PartnerID
	}
	return p.CreatorID
}

// HasMember reports whether userID belongs to the pair.
func (p *Pair) HasMember(userID int64) bool {
	return p.CreatorID == userID || (p.PartnerID != nil && *p.PartnerID == userID)
}

// TreeStreak is the per-pair consecutive-day counter.
// TotalInteractions only grows, so it doubles as the row version for conditional updates.
type TreeStreak struct {
	PairID              string    `gorm:"primaryKey;size:36" json:"pairId"`
	CurrentStreak       int       `gorm:"not null" json:"currentStreak"`
	MaxStreak           int       `gorm:"not null" json:"maxStreak"`
	TreeLevel           int       `gorm:"not null" json:"treeLevel"`
	LastInteractionDate *string   `gorm:"size:10" json:"lastInteractionDate,omitempty"`
	TotalInteractions   int       `gorm:"not null" json:"totalInteractions"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// LoveClick is one accepted "send love" interaction.
type LoveClick struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	PairID     string    `gorm:"size:36;not null;index:idx_love_pair_created,priority:1" json:"pairId"`
	SenderID   int64     `gorm:"not null;index:idx_love_sender_created,priority:1" json:"senderId"`
	ReceiverID int64     `gorm:"not null" json:"receiverId"`
	Message    *string   `gorm:"size:200" json:"message,omitempty"`
	CreatedAt  time.Time `gorm:"not null;index:idx_love_pair_created,priority:2;index:idx_love_sender_created,priority:2" json:"createdAt"`
}

const (
	CategoryRomance   = "romance"
	CategoryAdventure = "adventure"
	CategoryLeisure   = "leisure"
)

// WishCard is a shared catalog item.
type WishCard struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Category  string `gorm:"size:20;not null;index" json:"category"`
	TextRu    string `gorm:"type:text;not null" json:"textRu"`
	TextEn    string `gorm:"type:text;not null" json:"textEn"`
	TextTg    string `gorm:"type:text" json:"textTg,omitempty"`
	Emoji     string `gorm:"size:10" json:"emoji"`
	IsPremium bool   `gorm:"not null" json:"isPremium"`
	SortOrder int    `gorm:"not null;index" json:"sortOrder"`
}

// WishSwipe is one user's judgment on one card. Unique per (user, card).
type WishSwipe struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    int64     `gorm:"not null;uniqueIndex:idx_swipe_user_card,priority:1" json:"userId"`
	CardID    uint      `gorm:"not null;uniqueIndex:idx_swipe_user_card,priority:2;index" json:"cardId"`
	PairID    string    `gorm:"size:36;not null;index" json:"pairId"`
	Liked     bool      `gorm:"not null" json:"liked"`
	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
}

// WishMatch is created when both members liked the same card. Unique per (pair, card).
type WishMatch struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	PairID      string     `gorm:"size:36;not null;uniqueIndex:idx_match_pair_card,priority:1" json:"pairId"`
	CardID      uint       `gorm:"not null;uniqueIndex:idx_match_pair_card,priority:2" json:"cardId"`
	MatchedAt   time.Time  `gorm:"not null" json:"matchedAt"`
	IsCompleted bool       `gorm:"not null" json:"isCompleted"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Card        *WishCard  `gorm:"foreignKey:CardID" json:"card,omitempty"`
}

const (
	DateAnniversary = "anniversary"
	DateBirthday    = "birthday"
	DateFirstDate   = "first_date"
	DateCustom      = "custom"

	VisibilityBoth    = "both"
	VisibilityPrivate = "private"
)

// ImportantDate is a pair's calendar entry. EventDate is a YYYY-MM-DD calendar date.
type ImportantDate struct {
	ID               string    `gorm:"primaryKey;size:36" json:"id"`
	PairID           string    `gorm:"size:36;not null;index" json:"pairId"`
	CreatedBy        int64     `gorm:"not null" json:"createdBy"`
	Title            string    `gorm:"size:200;not null" json:"title"`
	Description      string    `gorm:"type:text" json:"description,omitempty"`
	EventDate        string    `gorm:"size:10;not null;index" json:"eventDate"`
	Category         string    `gorm:"size:20;not null" json:"category"`
	Visibility       string    `gorm:"size:10;not null" json:"visibility"`
	ReminderDays     int       `gorm:"not null" json:"reminderDays"`
	IsRecurring      bool      `gorm:"not null" json:"isRecurring"`
	LastReminderSent *string   `gorm:"size:10" json:"-"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"

	CurrencyStars = "XTR"
)

// Payment is one Telegram Stars invoice. Payload is the opaque id echoed back by Telegram.
type Payment struct {
	ID               string     `gorm:"primaryKey;size:36" json:"id"`
	UserID           int64      `gorm:"not null;index" json:"userId"`
	Tier             string     `gorm:"size:20;not null" json:"tier"`
	Amount           int        `gorm:"not null" json:"amount"`
	Currency         string     `gorm:"size:10;not null" json:"currency"`
	Status           string     `gorm:"size:20;not null;index" json:"status"`
	Payload          string     `gorm:"size:64;not null;uniqueIndex" json:"-"`
	TelegramChargeID *string    `gorm:"size:255" json:"-"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

const (
	PromoPremium  = "premium"
	PromoDiscount = "discount"
)

// PromoCode grants premium days or a discount percent.
type PromoCode struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	Code       string     `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Type       string     `gorm:"size:20;not null" json:"type"`
	Value      int        `gorm:"not null" json:"value"`
	UsageLimit *int       `json:"usageLimit,omitempty"`
	TimesUsed  int        `gorm:"not null" json:"timesUsed"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	IsActive   bool       `gorm:"not null" json:"isActive"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"createdAt"`
}

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// AiChat is one message of a pair's conversation with the assistant.
type AiChat struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	PairID    string    `gorm:"size:36;not null;index:idx_chat_pair_created,priority:1" json:"pairId"`
	UserID    int64     `gorm:"not null" json:"userId"`
	Role      string    `gorm:"size:10;not null" json:"role"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time `gorm:"not null;index:idx_chat_pair_created,priority:2" json:"createdAt"`
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&Pair{},
		&TreeStreak{},
		&LoveClick{},
		&WishCard{},
		&WishSwipe{},
		&WishMatch{},
		&ImportantDate{},
		&Payment{},
		&PromoCode{},
		&AiChat{},
	}
}
