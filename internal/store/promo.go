package store

import (
	"sort"
	"strings"
	"time"

	"github.com/wapuda/virex/internal/domain"
)

// CreatePromo registers a new code. maxUses<=0 means unlimited uses, ttl<=0
// means the code never expires.
func (s *Store) CreatePromo(code string, bonus domain.PromoBonus, amount, maxUses int, ttl time.Duration) error {
	code = normalizeCode(code)
	if code == "" || amount <= 0 {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.promos[code]; ok {
		return domain.ErrPromoExists
	}
	p := &domain.PromoCode{
		Code:      code,
		Bonus:     bonus,
		Amount:    amount,
		MaxUses:   maxUses,
		UsedBy:    make(map[int64]bool),
		CreatedAt: s.now(),
	}
	if ttl > 0 {
		p.ExpiresAt = s.now().Add(ttl)
	}
	s.promos[code] = p
	s.dirty = true
	return nil
}

func (s *Store) DeletePromo(code string) error {
	code = normalizeCode(code)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.promos[code]; !ok {
		return domain.ErrPromoNotFound
	}
	delete(s.promos, code)
	s.dirty = true
	return nil
}

// ActivatePromo redeems code for userID and applies its bonus to the user
// record. Each user may redeem a given code once.
func (s *Store) ActivatePromo(userID int64, code string) (*domain.PromoCode, error) {
	code = normalizeCode(code)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.promos[code]
	if !ok {
		return nil, domain.ErrPromoNotFound
	}
	if p.Expired(s.now()) {
		return nil, domain.ErrPromoExpired
	}
	if p.UsedBy[userID] {
		return nil, domain.ErrPromoAlreadyUsed
	}
	if p.Exhausted() {
		return nil, domain.ErrPromoExhausted
	}

	u := s.get(userID)
	switch p.Bonus {
	case domain.PromoBonusVideos:
		u.ReferralBonus += p.Amount
	case domain.PromoBonusVIPDays:
		s.extendPlan(u, domain.PlanVIP, p.Amount)
	case domain.PromoBonusPremiumDays:
		s.extendPlan(u, domain.PlanPremium, p.Amount)
	default:
		return nil, domain.ErrInvalidInput
	}

	if p.UsedBy == nil {
		p.UsedBy = make(map[int64]bool)
	}
	p.UsedBy[userID] = true
	s.dirty = true
	return p, nil
}

// extendPlan upgrades the user to plan for days, stacking onto the current
// expiry when the plan already matches. A promo never downgrades premium.
func (s *Store) extendPlan(u *domain.UserRecord, plan domain.Plan, days int) {
	now := s.now()
	if u.Plan == domain.PlanPremium && plan == domain.PlanVIP {
		return
	}
	base := now
	if u.Plan == plan && u.PlanExpires.After(now) {
		base = u.PlanExpires
	}
	u.Plan = plan
	u.PlanExpires = base.Add(time.Duration(days) * 24 * time.Hour)
	u.ExpiryNotified = false
}

func (s *Store) ListPromos() []domain.PromoCode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.PromoCode, 0, len(s.promos))
	for _, p := range s.promos {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
