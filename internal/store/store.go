package store

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wapuda/virex/internal/config"
	"github.com/wapuda/virex/internal/domain"
)

// Store holds every user record and promo code in memory and snapshots them
// to JSON on disk. All methods are safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	users  map[int64]*domain.UserRecord
	promos map[string]*domain.PromoCode
	dirty  bool

	usersPath string
	promoPath string
	now       func() time.Time
	log       zerolog.Logger
}

func New(dataDir string, now func() time.Time, log zerolog.Logger) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		users:     make(map[int64]*domain.UserRecord),
		promos:    make(map[string]*domain.PromoCode),
		usersPath: filepath.Join(dataDir, "users.json"),
		promoPath: filepath.Join(dataDir, "promo_codes.json"),
		now:       now,
		log:       log,
	}
}

// get returns the live record for id, creating it if needed and applying
// lazy quota-window resets and plan expiry. Callers must hold mu.
func (s *Store) get(id int64) *domain.UserRecord {
	u, ok := s.users[id]
	if !ok {
		u = domain.NewUserRecord(id)
		u.FirstSeen = s.now()
		s.users[id] = u
		s.dirty = true
	}
	s.refresh(u)
	return u
}

// refresh applies the time-driven transitions that happen on read rather
// than on a timer: quota-window resets and plan expiry downgrade.
func (s *Store) refresh(u *domain.UserRecord) {
	now := s.now()
	today := now.Format(domain.DateFormat)

	if u.DailyStart != today {
		u.DailyStart = today
		u.DailyVideos = 0
		s.dirty = true
	}
	if windowElapsed(u.WeeklyStart, now, 7) {
		u.WeeklyStart = today
		u.WeeklyVideos = 0
		s.dirty = true
	}
	if windowElapsed(u.MonthlyStart, now, 30) {
		u.MonthlyStart = today
		u.MonthlyVideos = 0
		s.dirty = true
	}

	// Expired paid plans fall back to free. PlanExpires is kept so the
	// janitor can still tell the user once.
	if u.Plan != domain.PlanFree && !u.PlanExpires.IsZero() && now.After(u.PlanExpires) {
		u.Plan = domain.PlanFree
		u.ExpiryNotified = false
		s.dirty = true
	}
}

// windowElapsed reports whether at least days whole days passed since the
// stored calendar date. An empty or unparsable date counts as elapsed.
func windowElapsed(start string, now time.Time, days int) bool {
	if start == "" {
		return true
	}
	t, err := time.Parse(domain.DateFormat, start)
	if err != nil {
		return true
	}
	return now.Sub(t) >= time.Duration(days)*24*time.Hour
}

// EnsureUser creates the record on first contact and keeps the username
// current.
func (s *Store) EnsureUser(id int64, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.get(id)
	if username != "" && u.Username != username {
		u.Username = username
		s.dirty = true
	}
}

// FirstContact reports whether this is the first time the user is seen and
// latches the flag, so admins get notified about a newcomer exactly once.
func (s *Store) FirstContact(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.get(id)
	if u.AdminNotified {
		return false
	}
	u.AdminNotified = true
	s.dirty = true
	return true
}

// Update runs fn with the record under the write lock and marks the store
// dirty. fn must not retain the pointer.
func (s *Store) Update(id int64, fn func(u *domain.UserRecord)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.get(id))
	s.dirty = true
}

// Snapshot returns a value copy of the record for rendering.
func (s *Store) Snapshot(id int64) domain.UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.get(id)
}

// RecordVideo bumps the quota counters for one finished video, appends to
// history and advances the daily streak. A bonus-funded video does not
// count against the monthly cap.
func (s *Store) RecordVideo(id int64, mode domain.Mode, source string, bonusUsed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.get(id)
	now := s.now()

	u.DailyVideos++
	u.WeeklyVideos++
	if !bonusUsed {
		u.MonthlyVideos++
	}
	u.TotalVideos++
	if source == "url" {
		u.TotalDownloads++
	}
	u.LastProcessTime = now

	u.History = append(u.History, domain.HistoryEntry{Time: now, Mode: mode, Source: source})
	if len(u.History) > config.HistoryKeep {
		u.History = u.History[len(u.History)-config.HistoryKeep:]
	}

	s.advanceStreak(u, now)
	s.dirty = true
}

// advanceStreak: same day is a no-op, the day after yesterday's activity
// extends the streak, anything else restarts it. Every full week of streak
// earns a bonus video.
func (s *Store) advanceStreak(u *domain.UserRecord, now time.Time) {
	today := now.Format(domain.DateFormat)
	yesterday := now.AddDate(0, 0, -1).Format(domain.DateFormat)
	switch u.StreakLastDate {
	case today:
		return
	case yesterday:
		u.StreakCount++
	default:
		u.StreakCount = 1
	}
	u.StreakLastDate = today
	if u.StreakCount >= config.StreakBonusAfter && u.StreakCount%config.StreakBonusAfter == 0 {
		u.ReferralBonus += config.StreakBonusVideos
	}
}

// ConsumeBonus spends one bonus video if the user has any.
func (s *Store) ConsumeBonus(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.get(id)
	if u.ReferralBonus <= 0 {
		return false
	}
	u.ReferralBonus--
	s.dirty = true
	return true
}

// RegisterDenial counts one rejected request toward the abuse threshold and
// reports whether it tripped a soft block.
func (s *Store) RegisterDenial(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.get(id)
	now := s.now()
	if now.Sub(u.AbuseWindowStart) > config.AbuseWindow {
		u.AbuseHits = 0
		u.AbuseWindowStart = now
	}
	u.AbuseHits++
	s.dirty = true
	if u.AbuseHits >= config.AbuseThreshold {
		u.SoftBlockUntil = now.Add(config.SoftBlockDuration)
		u.AbuseHits = 0
		s.log.Warn().Int64("user_id", id).Time("until", u.SoftBlockUntil).Msg("soft block applied")
		return true
	}
	return false
}

// SetPlan grants plan for the given duration. Zero duration means no expiry.
func (s *Store) SetPlan(id int64, plan domain.Plan, d time.Duration) error {
	if !plan.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownPlan, plan)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.get(id)
	u.Plan = plan
	if d > 0 {
		u.PlanExpires = s.now().Add(d)
	} else {
		u.PlanExpires = time.Time{}
	}
	u.ExpiryNotified = false
	s.dirty = true
	return nil
}

func (s *Store) Ban(id int64, reason string) {
	s.Update(id, func(u *domain.UserRecord) {
		u.Banned = true
		u.BanReason = reason
	})
}

func (s *Store) Unban(id int64) {
	s.Update(id, func(u *domain.UserRecord) {
		u.Banned = false
		u.BanReason = ""
	})
}

// SetReferrer links a fresh account to the user who invited it. The link is
// set at most once and never to oneself; the referrer earns bonus videos.
func (s *Store) SetReferrer(id, referrerID int64) bool {
	if id == referrerID || referrerID == 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.get(id)
	if u.ReferrerID != 0 || u.TotalVideos > 0 {
		return false
	}
	u.ReferrerID = referrerID
	ref := s.get(referrerID)
	ref.ReferralCount++
	ref.ReferralBonus += config.ReferralBonusVideos
	s.dirty = true
	return true
}

// UseTrial grants the one-time VIP trial.
func (s *Store) UseTrial(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.get(id)
	if u.TrialUsed || u.Plan != domain.PlanFree {
		return false
	}
	u.TrialUsed = true
	u.Plan = domain.PlanVIP
	u.PlanExpires = s.now().Add(config.TrialDays * 24 * time.Hour)
	u.ExpiryNotified = false
	s.dirty = true
	return true
}

// AddFavorite stores a named settings preset, up to the per-user cap.
func (s *Store) AddFavorite(id int64, name string, fav domain.Favorite) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.get(id)
	if u.Favorites == nil {
		u.Favorites = make(map[string]domain.Favorite)
	}
	if _, ok := u.Favorites[name]; !ok && len(u.Favorites) >= config.MaxFavorites {
		return fmt.Errorf("%w: favorites limit reached", domain.ErrInvalidInput)
	}
	u.Favorites[name] = fav
	s.dirty = true
	return nil
}

func (s *Store) DeleteFavorite(id int64, name string) {
	s.Update(id, func(u *domain.UserRecord) { delete(u.Favorites, name) })
}

// AddOpLog appends to the per-user operation ring.
func (s *Store) AddOpLog(id int64, op, details string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.get(id)
	u.OperationLogs = append(u.OperationLogs, domain.OpLog{Time: s.now(), Op: op, Details: details})
	if len(u.OperationLogs) > config.OperationKeep {
		u.OperationLogs = u.OperationLogs[len(u.OperationLogs)-config.OperationKeep:]
	}
	s.dirty = true
}

// FindByUsername resolves an @username to a user ID.
func (s *Store) FindByUsername(username string) (int64, bool) {
	username = strings.TrimPrefix(username, "@")
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return id, true
		}
	}
	return 0, false
}

// AllIDs returns every known user ID, for broadcast.
func (s *Store) AllIDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	return ids
}
