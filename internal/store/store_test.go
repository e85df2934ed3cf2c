package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wapuda/virex/internal/config"
	"github.com/wapuda/virex/internal/domain"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(t *testing.T) (*Store, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	return New(t.TempDir(), c.now, zerolog.Nop()), c
}

func TestLazyCreateDefaults(t *testing.T) {
	s, _ := newTestStore(t)
	u := s.Snapshot(42)
	assert.Equal(t, domain.PlanFree, u.Plan)
	assert.Equal(t, domain.ModeTikTok, u.Mode)
	assert.Equal(t, domain.QualityMax, u.Quality)
	assert.True(t, u.TextOverlay)
	assert.Equal(t, "ru", u.Language)
}

func TestQuotaWindowResets(t *testing.T) {
	s, c := newTestStore(t)
	s.RecordVideo(1, domain.ModeTikTok, "file", false)
	s.RecordVideo(1, domain.ModeTikTok, "file", false)

	u := s.Snapshot(1)
	assert.Equal(t, 2, u.DailyVideos)
	assert.Equal(t, 2, u.MonthlyVideos)

	c.advance(25 * time.Hour)
	u = s.Snapshot(1)
	assert.Equal(t, 0, u.DailyVideos, "daily resets next day")
	assert.Equal(t, 2, u.MonthlyVideos, "monthly survives the day boundary")

	c.advance(31 * 24 * time.Hour)
	u = s.Snapshot(1)
	assert.Equal(t, 0, u.MonthlyVideos, "monthly resets after 30 days")
	assert.Equal(t, 2, u.TotalVideos, "total never resets")
}

func TestBonusVideoSkipsMonthlyCounter(t *testing.T) {
	s, _ := newTestStore(t)
	s.RecordVideo(1, domain.ModeTikTok, "file", true)

	u := s.Snapshot(1)
	assert.Equal(t, 0, u.MonthlyVideos)
	assert.Equal(t, 1, u.DailyVideos)
	assert.Equal(t, 1, u.TotalVideos)
}

func TestDownloadCounter(t *testing.T) {
	s, _ := newTestStore(t)
	s.RecordVideo(1, domain.ModeTikTok, "file", false)
	s.RecordVideo(1, domain.ModeYouTube, "url", false)

	u := s.Snapshot(1)
	assert.Equal(t, 2, u.TotalVideos)
	assert.Equal(t, 1, u.TotalDownloads, "only url intake counts as a download")
}

func TestFirstContactLatch(t *testing.T) {
	s, _ := newTestStore(t)
	assert.True(t, s.FirstContact(1))
	assert.False(t, s.FirstContact(1))
}

func TestStreak(t *testing.T) {
	s, c := newTestStore(t)
	s.RecordVideo(1, domain.ModeTikTok, "file", false)
	assert.Equal(t, 1, s.Snapshot(1).StreakCount)

	// same day does not extend
	s.RecordVideo(1, domain.ModeTikTok, "file", false)
	assert.Equal(t, 1, s.Snapshot(1).StreakCount)

	// next day extends
	c.advance(24 * time.Hour)
	s.RecordVideo(1, domain.ModeTikTok, "file", false)
	assert.Equal(t, 2, s.Snapshot(1).StreakCount)

	// a missed day resets
	c.advance(48 * time.Hour)
	s.RecordVideo(1, domain.ModeTikTok, "file", false)
	assert.Equal(t, 1, s.Snapshot(1).StreakCount)
}

func TestStreakWeeklyBonus(t *testing.T) {
	s, c := newTestStore(t)
	for i := 0; i < config.StreakBonusAfter; i++ {
		s.RecordVideo(1, domain.ModeTikTok, "file", false)
		c.advance(24 * time.Hour)
	}
	u := s.Snapshot(1)
	assert.Equal(t, config.StreakBonusAfter, u.StreakCount)
	assert.Equal(t, config.StreakBonusVideos, u.ReferralBonus)
}

func TestReferrerSetOnce(t *testing.T) {
	s, _ := newTestStore(t)
	assert.True(t, s.SetReferrer(2, 1))
	assert.False(t, s.SetReferrer(2, 3), "link may not be reassigned")
	assert.False(t, s.SetReferrer(4, 4), "self-referral rejected")

	ref := s.Snapshot(1)
	assert.Equal(t, 1, ref.ReferralCount)
	assert.Equal(t, config.ReferralBonusVideos, ref.ReferralBonus)
	assert.Equal(t, int64(1), s.Snapshot(2).ReferrerID)
}

func TestConsumeBonus(t *testing.T) {
	s, _ := newTestStore(t)
	assert.False(t, s.ConsumeBonus(1))
	s.Update(1, func(u *domain.UserRecord) { u.ReferralBonus = 1 })
	assert.True(t, s.ConsumeBonus(1))
	assert.False(t, s.ConsumeBonus(1))
}

func TestAbuseSoftBlock(t *testing.T) {
	s, c := newTestStore(t)
	for i := 0; i < config.AbuseThreshold-1; i++ {
		assert.False(t, s.RegisterDenial(1))
	}
	assert.True(t, s.RegisterDenial(1), "threshold trips the soft block")
	u := s.Snapshot(1)
	assert.True(t, u.SoftBlockUntil.After(c.t))
	assert.Equal(t, 0, u.AbuseHits, "counter resets after the block")
}

func TestAbuseWindowExpires(t *testing.T) {
	s, c := newTestStore(t)
	for i := 0; i < config.AbuseThreshold-1; i++ {
		s.RegisterDenial(1)
	}
	c.advance(config.AbuseWindow + time.Second)
	assert.False(t, s.RegisterDenial(1), "stale hits do not count")
	assert.Equal(t, 1, s.Snapshot(1).AbuseHits)
}

func TestPlanExpiryDowngrade(t *testing.T) {
	s, c := newTestStore(t)
	require.NoError(t, s.SetPlan(1, domain.PlanVIP, 24*time.Hour))
	assert.Equal(t, domain.PlanVIP, s.Snapshot(1).Plan)

	c.advance(25 * time.Hour)
	assert.Equal(t, domain.PlanFree, s.Snapshot(1).Plan, "lazy downgrade on read")

	ids := s.ExpiredUnnotified()
	require.Equal(t, []int64{1}, ids)
	assert.Empty(t, s.ExpiredUnnotified(), "notification latched")
}

func TestExpiringWarnedOncePerDay(t *testing.T) {
	s, c := newTestStore(t)
	require.NoError(t, s.SetPlan(1, domain.PlanVIP, 2*24*time.Hour))
	require.Len(t, s.ExpiringSoon(3), 1)

	s.MarkExpiryWarned(1)
	assert.Empty(t, s.ExpiringSoon(3), "warned users drop out of the scan")

	c.advance(24 * time.Hour)
	assert.Len(t, s.ExpiringSoon(3), 1, "the latch holds for one calendar day")
}

func TestTrialOnce(t *testing.T) {
	s, c := newTestStore(t)
	assert.True(t, s.UseTrial(1))
	assert.Equal(t, domain.PlanVIP, s.Snapshot(1).Plan)

	c.advance(2 * 24 * time.Hour)
	assert.Equal(t, domain.PlanFree, s.Snapshot(1).Plan)
	assert.False(t, s.UseTrial(1), "trial does not repeat")
}

func TestFavoritesCap(t *testing.T) {
	s, _ := newTestStore(t)
	fav := domain.Favorite{Mode: domain.ModeTikTok, Quality: domain.QualityMax, TextOverlay: true}
	for i := 0; i < config.MaxFavorites; i++ {
		require.NoError(t, s.AddFavorite(1, string(rune('a'+i)), fav))
	}
	assert.Error(t, s.AddFavorite(1, "onemore", fav))
	// overwriting an existing name is allowed at the cap
	assert.NoError(t, s.AddFavorite(1, "a", fav))
}

func TestPromoLifecycle(t *testing.T) {
	s, c := newTestStore(t)
	require.NoError(t, s.CreatePromo("march", domain.PromoBonusVideos, 5, 2, time.Hour))
	assert.ErrorIs(t, s.CreatePromo("MARCH", domain.PromoBonusVideos, 1, 0, 0), domain.ErrPromoExists)

	_, err := s.ActivatePromo(1, "march")
	require.NoError(t, err)
	assert.Equal(t, 5, s.Snapshot(1).ReferralBonus)

	_, err = s.ActivatePromo(1, "march")
	assert.ErrorIs(t, err, domain.ErrPromoAlreadyUsed)

	_, err = s.ActivatePromo(2, "march")
	require.NoError(t, err)
	_, err = s.ActivatePromo(3, "march")
	assert.ErrorIs(t, err, domain.ErrPromoExhausted)

	c.advance(2 * time.Hour)
	_, err = s.ActivatePromo(4, "march")
	assert.ErrorIs(t, err, domain.ErrPromoExpired)
}

func TestPromoPlanDays(t *testing.T) {
	s, c := newTestStore(t)
	require.NoError(t, s.CreatePromo("vip7", domain.PromoBonusVIPDays, 7, 0, 0))
	_, err := s.ActivatePromo(1, "vip7")
	require.NoError(t, err)
	u := s.Snapshot(1)
	assert.Equal(t, domain.PlanVIP, u.Plan)
	assert.Equal(t, c.t.Add(7*24*time.Hour), u.PlanExpires)

	// same-plan redemption stacks onto the current expiry
	require.NoError(t, s.CreatePromo("vip3", domain.PromoBonusVIPDays, 3, 0, 0))
	_, err = s.ActivatePromo(1, "vip3")
	require.NoError(t, err)
	assert.Equal(t, c.t.Add(10*24*time.Hour), s.Snapshot(1).PlanExpires)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := &clock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	s := New(dir, c.now, zerolog.Nop())
	s.EnsureUser(7, "alice")
	require.NoError(t, s.SetPlan(7, domain.PlanPremium, 0))
	s.RecordVideo(7, domain.ModeYouTube, "url", false)
	require.NoError(t, s.CreatePromo("x", domain.PromoBonusVideos, 1, 0, 0))
	require.NoError(t, s.Save())

	s2 := New(dir, c.now, zerolog.Nop())
	require.NoError(t, s2.Load())
	u := s2.Snapshot(7)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, domain.PlanPremium, u.Plan)
	assert.Equal(t, 1, u.TotalVideos)
	assert.Len(t, s2.ListPromos(), 1)
}

func TestLoadKeepsDefaultsForAbsentFields(t *testing.T) {
	dir := t.TempDir()
	// Hand-written snapshot that predates the text_overlay field.
	raw := []byte(`{"5": {"user_id": 5, "plan": "vip", "total_videos": 9}}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.json"), raw, 0o644))

	s := New(dir, time.Now, zerolog.Nop())
	require.NoError(t, s.Load())
	u := s.Snapshot(5)
	assert.True(t, u.TextOverlay, "absent field keeps the schema default")
	assert.Equal(t, domain.QualityMax, u.Quality)
	assert.Equal(t, domain.PlanVIP, u.Plan)
	assert.Equal(t, 9, u.TotalVideos)
}

func TestFindByUsername(t *testing.T) {
	s, _ := newTestStore(t)
	s.EnsureUser(9, "Bob")
	id, ok := s.FindByUsername("@bob")
	assert.True(t, ok)
	assert.Equal(t, int64(9), id)
	_, ok = s.FindByUsername("nobody")
	assert.False(t, ok)
}
