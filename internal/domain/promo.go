package domain

import "time"

type PromoBonus string

const (
	PromoBonusVideos      PromoBonus = "videos"
	PromoBonusVIPDays     PromoBonus = "vip_days"
	PromoBonusPremiumDays PromoBonus = "premium_days"
)

// PromoCode is an admin-created code granting bonus videos or plan days.
type PromoCode struct {
	Code      string          `json:"code"`
	Bonus     PromoBonus      `json:"bonus"`
	Amount    int             `json:"amount"`
	MaxUses   int             `json:"max_uses"`
	UsedBy    map[int64]bool  `json:"used_by,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at,omitempty"` // zero = never
}

func (p *PromoCode) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

func (p *PromoCode) Exhausted() bool {
	return p.MaxUses > 0 && len(p.UsedBy) >= p.MaxUses
}
