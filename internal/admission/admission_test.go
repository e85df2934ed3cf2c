package admission

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wapuda/virex/internal/config"
	"github.com/wapuda/virex/internal/domain"
	"github.com/wapuda/virex/internal/store"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newGate(t *testing.T, queueLen int) (*Gate, *store.Store, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	st := store.New(t.TempDir(), c.now, zerolog.Nop())
	g := NewGate(st, func() int { return queueLen }, 8, c.now)
	return g, st, c
}

func TestAdmitFreshUser(t *testing.T) {
	g, _, _ := newGate(t, 0)
	d := g.Check(1, false, "file-a")
	assert.True(t, d.OK)
	assert.Equal(t, ReasonOK, d.Reason)
}

func TestMaintenanceBlocksNonAdmins(t *testing.T) {
	g, _, _ := newGate(t, 0)
	g.SetMaintenance(true)
	d := g.Check(1, false, "f")
	assert.Equal(t, ReasonMaintenance, d.Reason)

	d = g.Check(1, true, "f")
	assert.True(t, d.OK, "admins bypass maintenance")
}

func TestMaintenanceDenialsAreNotAbuse(t *testing.T) {
	g, st, _ := newGate(t, 0)
	g.SetMaintenance(true)
	for i := 0; i < config.AbuseThreshold+2; i++ {
		d := g.Check(1, false, "f")
		assert.Equal(t, ReasonMaintenance, d.Reason)
		assert.False(t, d.SoftBlocked)
	}
	assert.Equal(t, 0, st.Snapshot(1).AbuseHits)

	g.SetMaintenance(false)
	assert.True(t, g.Check(1, false, "f").OK, "no soft block accrued during maintenance")
}

func TestBannedDenialsAreNotAbuse(t *testing.T) {
	g, st, _ := newGate(t, 0)
	st.Ban(1, "spam")
	for i := 0; i < config.AbuseThreshold+2; i++ {
		assert.Equal(t, ReasonBanned, g.Check(1, false, "f").Reason)
	}
	assert.Equal(t, 0, st.Snapshot(1).AbuseHits)
}

func TestBannedBeatsEverything(t *testing.T) {
	g, st, _ := newGate(t, 8) // queue also full
	st.Ban(1, "spam")
	d := g.Check(1, false, "f")
	assert.Equal(t, ReasonBanned, d.Reason, "ban is reported before queue_full")
}

func TestSoftBlock(t *testing.T) {
	g, st, c := newGate(t, 0)
	st.Update(1, func(u *domain.UserRecord) { u.SoftBlockUntil = c.t.Add(10 * time.Minute) })
	d := g.Check(1, false, "f")
	assert.Equal(t, ReasonSoftBlock, d.Reason)
	assert.Equal(t, 10*time.Minute, d.RetryAfter)

	c.advance(11 * time.Minute)
	assert.True(t, g.Check(1, false, "f").OK)
}

func TestMonthlyLimitAndBonusConsumption(t *testing.T) {
	g, st, c := newGate(t, 0)
	limits := config.LimitsFor(domain.PlanFree)
	for i := 0; i < limits.VideosPerMonth; i++ {
		st.RecordVideo(1, domain.ModeTikTok, "file", false)
	}
	c.advance(time.Hour) // clear cooldown

	d := g.Check(1, false, "f1")
	assert.Equal(t, ReasonMonthlyLimit, d.Reason)

	// a bonus video is consumed silently and the request goes through
	st.Update(1, func(u *domain.UserRecord) { u.ReferralBonus = 1 })
	d = g.Check(1, false, "f2")
	assert.True(t, d.OK)
	assert.True(t, d.BonusUsed)
	assert.Equal(t, 0, st.Snapshot(1).ReferralBonus)
}

func TestBonusSurvivesLaterDenial(t *testing.T) {
	g, st, c := newGate(t, 8) // queue full
	limits := config.LimitsFor(domain.PlanFree)
	for i := 0; i < limits.VideosPerMonth; i++ {
		st.RecordVideo(1, domain.ModeTikTok, "file", false)
	}
	st.Update(1, func(u *domain.UserRecord) { u.ReferralBonus = 1 })
	c.advance(time.Hour)

	d := g.Check(1, false, "f")
	assert.Equal(t, ReasonQueueFull, d.Reason)
	assert.Equal(t, 1, st.Snapshot(1).ReferralBonus, "denied request must not burn the bonus")
}

func TestUnlimitedPlanNeverHitsMonthly(t *testing.T) {
	g, st, c := newGate(t, 0)
	require.NoError(t, st.SetPlan(1, domain.PlanPremium, 0))
	for i := 0; i < 50; i++ {
		st.RecordVideo(1, domain.ModeTikTok, "file", false)
	}
	c.advance(time.Hour)
	assert.True(t, g.Check(1, false, "f").OK)
}

func TestCooldown(t *testing.T) {
	g, _, c := newGate(t, 0)
	require.True(t, g.Check(1, false, "f1").OK)

	c.advance(5 * time.Second)
	d := g.Check(1, false, "f2")
	assert.Equal(t, ReasonCooldown, d.Reason)
	assert.Equal(t, 55*time.Second, d.RetryAfter)

	c.advance(56 * time.Second)
	assert.True(t, g.Check(1, false, "f3").OK)
}

func TestButtonSpamIsSilent(t *testing.T) {
	g, st, c := newGate(t, 0)
	require.NoError(t, st.SetPlan(1, domain.PlanPremium, 0)) // no cooldown in the way
	require.True(t, g.Check(1, false, "f1").OK)

	c.advance(time.Second)
	d := g.Check(1, false, "f2")
	assert.Equal(t, ReasonButtonSpam, d.Reason)
	assert.True(t, d.Silent)
	assert.Equal(t, 0, st.Snapshot(1).AbuseHits, "silent denials do not count as abuse")
}

func TestDuplicateFile(t *testing.T) {
	g, _, c := newGate(t, 0)
	require.True(t, g.Check(1, false, "same").OK)

	c.advance(10 * time.Second)
	// premium has no cooldown but user 1 is free; use a gap past cooldown
	c.advance(60 * time.Second)
	d := g.Check(1, false, "same")
	assert.Equal(t, ReasonOK, d.Reason, "duplicate window already elapsed")

	g2, st2, c2 := newGate(t, 0)
	require.NoError(t, st2.SetPlan(2, domain.PlanPremium, 0))
	require.True(t, g2.Check(2, false, "same").OK)
	c2.advance(5 * time.Second)
	d = g2.Check(2, false, "same")
	assert.Equal(t, ReasonDuplicate, d.Reason)

	c2.advance(config.DuplicateWindow)
	assert.True(t, g2.Check(2, false, "same").OK)
}

func TestQueueFull(t *testing.T) {
	g, _, _ := newGate(t, 8)
	d := g.Check(1, false, "f")
	assert.Equal(t, ReasonQueueFull, d.Reason)
}

func TestDeniesAccumulateIntoSoftBlock(t *testing.T) {
	g, _, _ := newGate(t, 8)
	var blocked bool
	for i := 0; i < config.AbuseThreshold; i++ {
		d := g.Check(1, false, fmt.Sprintf("f%d", i))
		assert.Equal(t, ReasonQueueFull, d.Reason)
		blocked = blocked || d.SoftBlocked
	}
	assert.True(t, blocked)
	assert.Equal(t, ReasonSoftBlock, g.Check(1, false, "f").Reason)
}
