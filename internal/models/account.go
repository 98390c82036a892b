package models

import "time"

// SubscriptionTier identifies the billing plan of an account.
type SubscriptionTier string

const (
	TierFree             SubscriptionTier = "free"
	TierPremium15        SubscriptionTier = "premium_15"
	TierPremiumUnlimited SubscriptionTier = "premium_unlimited"
)

// Account is a registered user with a persistent profile and a
// monthly story allowance.
type Account struct {
	ID               string           `db:"id" json:"id"`
	Email            *string          `db:"email" json:"email,omitempty"`
	SubscriptionTier SubscriptionTier `db:"subscription_tier" json:"subscriptionTier"`
	StoriesThisMonth int              `db:"stories_this_month" json:"storiesThisMonth"`
	MonthlyResetDate time.Time        `db:"monthly_reset_date" json:"monthlyResetDate"`
	AssistantID      *string          `db:"assistant_id" json:"-"`
	ThreadID         *string          `db:"thread_id" json:"-"`
	CreatedAt        time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updatedAt"`
}

// Conversation returns the account's stored conversation context.
func (a *Account) Conversation() ConversationContext {
	ctx := ConversationContext{}
	if a.AssistantID != nil {
		ctx.AssistantID = *a.AssistantID
	}
	if a.ThreadID != nil {
		ctx.ThreadID = *a.ThreadID
	}
	return ctx
}

// SameResetPeriod reports whether t falls in the same calendar month
// (UTC) as the account's usage counter reset date.
func (a *Account) SameResetPeriod(t time.Time) bool {
	reset := a.MonthlyResetDate.UTC()
	t = t.UTC()
	return reset.Year() == t.Year() && reset.Month() == t.Month()
}

// ConversationContext pairs the assistant and thread that hold a
// family's story history. Both identifiers are required together; a
// context missing either half is treated as absent.
type ConversationContext struct {
	AssistantID string
	ThreadID    string
}

// IsPresent reports whether both identifiers are usable. Clients have
// been observed persisting the literal strings "undefined" and "null";
// those count as absent.
func (c ConversationContext) IsPresent() bool {
	return usableID(c.AssistantID) && usableID(c.ThreadID)
}

func usableID(id string) bool {
	switch id {
	case "", "undefined", "null":
		return false
	}
	return true
}

// MonthlyLimits maps subscription tiers to story allowances.
type MonthlyLimits struct {
	Free      int
	Premium15 int
}

// LimitFor returns the monthly story allowance for a tier, or -1 when
// the tier is unlimited. Unknown tiers fall back to the free limit.
func (m MonthlyLimits) LimitFor(tier SubscriptionTier) int {
	switch tier {
	case TierPremiumUnlimited:
		return -1
	case TierPremium15:
		return m.Premium15
	default:
		return m.Free
	}
}
