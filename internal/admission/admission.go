// Package admission decides whether a processing request is allowed to
// enter the queue. Gates run in a fixed order and the first one that
// fires wins; later gates are never consulted.
package admission

import (
	"crypto/sha1"
	"encoding/hex"
	"sync/atomic"
	"time"

	"github.com/wapuda/virex/internal/config"
	"github.com/wapuda/virex/internal/domain"
	"github.com/wapuda/virex/internal/store"
)

type Reason string

const (
	ReasonOK           Reason = "ok"
	ReasonMaintenance  Reason = "maintenance"
	ReasonBanned       Reason = "banned"
	ReasonSoftBlock    Reason = "soft_block"
	ReasonMonthlyLimit Reason = "monthly_limit"
	ReasonCooldown     Reason = "cooldown"
	ReasonButtonSpam   Reason = "button_spam"
	ReasonDuplicate    Reason = "duplicate"
	ReasonQueueFull    Reason = "queue_full"
)

// Decision is the outcome of one admission check.
type Decision struct {
	OK          bool
	Reason      Reason
	RetryAfter  time.Duration // set for soft_block and cooldown
	Silent      bool          // deny without messaging the user
	SoftBlocked bool          // this denial tripped a fresh soft block
	BonusUsed   bool          // admitted over the monthly cap on a referral bonus
}

// Gate evaluates the admission pipeline against the user store and the
// current queue depth.
type Gate struct {
	store       *store.Store
	queueLen    func() int
	queueCap    int
	now         func() time.Time
	maintenance atomic.Bool
}

func NewGate(st *store.Store, queueLen func() int, queueCap int, now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{store: st, queueLen: queueLen, queueCap: queueCap, now: now}
}

// SetMaintenance toggles maintenance mode. Admins always pass the gate.
func (g *Gate) SetMaintenance(on bool) { g.maintenance.Store(on) }
func (g *Gate) Maintenance() bool      { return g.maintenance.Load() }

// Check runs the gates for one request. dedupeKey identifies the submitted
// content (Telegram file_unique_id or the URL); empty skips the duplicate
// gate. On admit, the request is stamped into the user record so the next
// check sees it.
func (g *Gate) Check(userID int64, isAdmin bool, dedupeKey string) Decision {
	if g.maintenance.Load() && !isAdmin {
		return Decision{Reason: ReasonMaintenance}
	}

	now := g.now()
	var d Decision
	g.store.Update(userID, func(u *domain.UserRecord) {
		d = g.check(u, now, dedupeKey)
	})
	// Maintenance and ban rejections are not the user's fault and never
	// count toward the abuse threshold; neither do silent drops.
	if d.OK || d.Silent || d.Reason == ReasonBanned {
		return d
	}
	return g.deny(userID, d)
}

func (g *Gate) check(u *domain.UserRecord, now time.Time, dedupeKey string) Decision {
	if u.Banned {
		return Decision{Reason: ReasonBanned}
	}
	if now.Before(u.SoftBlockUntil) {
		return Decision{Reason: ReasonSoftBlock, RetryAfter: u.SoftBlockUntil.Sub(now)}
	}

	limits := config.LimitsFor(u.Plan)
	bonusNeeded := false
	if limits.VideosPerMonth < config.Unlimited && u.MonthlyVideos >= limits.VideosPerMonth {
		if u.ReferralBonus == 0 {
			return Decision{Reason: ReasonMonthlyLimit}
		}
		// A bonus video absorbs the overrun without any message. The
		// decrement happens only on admit so a later gate cannot burn it.
		bonusNeeded = true
	}

	if cd := time.Duration(limits.CooldownSeconds) * time.Second; cd > 0 && !u.LastRequest.IsZero() {
		if elapsed := now.Sub(u.LastRequest); elapsed < cd {
			return Decision{Reason: ReasonCooldown, RetryAfter: cd - elapsed}
		}
	}

	if now.Sub(u.LastButton) < config.ButtonCooldown {
		u.LastButton = now
		return Decision{Reason: ReasonButtonSpam, Silent: true}
	}

	if dedupeKey != "" {
		h := hashKey(dedupeKey)
		if h == u.LastFileHash && now.Sub(u.LastFileTime) < config.DuplicateWindow {
			return Decision{Reason: ReasonDuplicate}
		}
		u.LastFileHash = h
		u.LastFileTime = now
	}

	if g.queueLen() >= g.queueCap {
		return Decision{Reason: ReasonQueueFull}
	}

	if bonusNeeded {
		u.ReferralBonus--
	}
	u.LastRequest = now
	u.LastButton = now
	return Decision{OK: true, Reason: ReasonOK, BonusUsed: bonusNeeded}
}

// deny counts a rate-limit rejection toward the abuse threshold.
func (g *Gate) deny(userID int64, d Decision) Decision {
	d.SoftBlocked = g.store.RegisterDenial(userID)
	return d
}

func hashKey(key string) string {
	sum := sha1.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}
